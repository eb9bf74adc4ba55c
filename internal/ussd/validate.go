// SPDX-License-Identifier: MIT

package ussd

import (
	"regexp"
	"strings"
)

// Kenyan mobile numbers: +254/254/0 prefix, then a 7 or 1 subscriber prefix
// and 8 digits.
var phonePattern = regexp.MustCompile(`^(\+254|254|0)[17][0-9]{8}$`)

// ValidPhoneNumber reports whether s is an acceptable Kenyan mobile number.
// Embedded whitespace is stripped before matching.
func ValidPhoneNumber(s string) bool {
	cleaned := strings.Join(strings.Fields(s), "")
	return phonePattern.MatchString(cleaned)
}
