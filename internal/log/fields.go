// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"
	FieldPhone     = "phone"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// State fields
	FieldState     = "state"
	FieldOldState  = "old_state"
	FieldNewState  = "new_state"
	FieldInput     = "input"
	FieldReference = "reference"
)
