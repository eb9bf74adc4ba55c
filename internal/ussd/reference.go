// SPDX-License-Identifier: MIT

package ussd

import "crypto/rand"

const referenceChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewReferenceCode generates a caller-facing order reference like
// "CS-7K2QX9AB". Uniqueness is enforced by the order store; callers
// regenerate on collision.
func NewReferenceCode() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = referenceChars[int(b[i])%len(referenceChars)]
	}
	return "CS-" + string(b)
}
