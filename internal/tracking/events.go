// SPDX-License-Identifier: MIT

// Package tracking implements the asynchronous telemetry pipeline: producers
// enqueue typed events without blocking, a batch writer persists them on a
// timer, and sustained persistence failure disables the whole subsystem.
// Tracking is a disposable side channel; it must never affect the response
// path.
package tracking

import "time"

// InteractionType classifies a user interaction event.
type InteractionType string

const (
	InteractionInput           InteractionType = "INPUT"
	InteractionValidationError InteractionType = "VALIDATION_ERROR"
	InteractionError           InteractionType = "ERROR"
)

// SessionEventType classifies a session lifecycle event.
type SessionEventType string

const (
	SessionCreated     SessionEventType = "CREATED"
	SessionDataUpdated SessionEventType = "DATA_UPDATED"
	SessionExtended    SessionEventType = "EXTENDED"
	SessionTerminated  SessionEventType = "TERMINATED"
	SessionExpired     SessionEventType = "EXPIRED"
)

// NavigationType classifies a menu transition.
type NavigationType string

const (
	NavForward    NavigationType = "FORWARD"
	NavBack       NavigationType = "BACK"
	NavPagination NavigationType = "PAGINATION"
)

// Event is the marker for the four telemetry variants. Events are created by
// producers, owned by the queue, and destroyed on persistence.
type Event interface {
	eventKind() string
}

// Interaction records one webhook leg: state, input and rendered response.
type Interaction struct {
	SessionID     string
	PhoneNumber   string
	Type          InteractionType
	CurrentState  string
	PreviousState string
	Input         string
	Response      string
	ProcessingMs  int64
	ErrorMessage  string
	At            time.Time
}

func (Interaction) eventKind() string { return "interaction" }

// SessionEvent records a session lifecycle change.
type SessionEvent struct {
	SessionID   string
	PhoneNumber string
	Type        SessionEventType
	StoreMs     int64
	NetworkCode string
	ServiceCode string
	At          time.Time
}

func (SessionEvent) eventKind() string { return "session_event" }

// Navigation records a single menu transition.
type Navigation struct {
	SessionID   string
	PhoneNumber string
	FromState   string
	ToState     string
	Type        NavigationType
	Input       string
	At          time.Time
}

func (Navigation) eventKind() string { return "navigation" }

// Metric records a free-form performance measurement.
type Metric struct {
	SessionID   string
	PhoneNumber string
	Name        string
	Value       float64
	Context     string
	At          time.Time
}

func (Metric) eventKind() string { return "metric" }
