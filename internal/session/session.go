// SPDX-License-Identifier: MIT

// Package session holds the USSD session model and its Redis-backed store.
//
// A session is ephemeral state keyed by the aggregator-issued session ID. It
// lives for the duration of one USSD dialogue and disappears when the store
// TTL elapses; expiry is an expected outcome, not an error.
package session

import (
	"strconv"
	"strings"
)

// Session is the per-caller dialogue state, read-modify-written on every leg.
type Session struct {
	SessionID        string         `json:"session_id"`
	PhoneNumber      string         `json:"phone_number"`
	StateHistory     Stack          `json:"state_history"`
	Data             map[string]any `json:"data"`
	PaginationOffset int            `json:"pagination_offset"`
	CurrentMenuItems []string       `json:"current_menu_items"`
}

// New creates a fresh session positioned at the main menu.
func New(sessionID, phoneNumber string) *Session {
	return &Session{
		SessionID:    sessionID,
		PhoneNumber:  phoneNumber,
		StateHistory: NewStack(),
		Data:         make(map[string]any),
	}
}

// CurrentState returns the state on top of the history stack.
func (s *Session) CurrentState() string {
	return s.StateHistory.Current()
}

// Push enters a new menu state.
func (s *Session) Push(state string) {
	s.StateHistory.Push(state)
}

// Pop leaves the current state and returns the state now current.
func (s *Session) Pop() string {
	return s.StateHistory.Pop()
}

// Put stores a collected value under key.
func (s *Session) Put(key string, value any) {
	if s.Data == nil {
		s.Data = make(map[string]any)
	}
	s.Data[key] = value
}

// GetString returns the value under key rendered as a string, or "" when
// absent. Numeric values stored earlier in the flow coerce leniently, the way
// the legacy stored sessions did.
func (s *Session) GetString(key string) string {
	v, ok := s.Data[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case float64:
		// JSON round-trips integers as float64.
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// GetInt returns the value under key as an int. Strings holding digits
// coerce; anything else reports ok=false.
func (s *Session) GetInt(key string) (int, bool) {
	v, ok := s.Data[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return t, true
	case float64:
		return int(t), true
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return i, true
		}
	}
	return 0, false
}

// ResetPagination zeroes the cursor and forgets the displayed menu items.
// Called whenever a new paginated list is entered.
func (s *Session) ResetPagination() {
	s.PaginationOffset = 0
	s.CurrentMenuItems = nil
}

// AdvancePagination moves the cursor forward one page.
func (s *Session) AdvancePagination(pageSize int) {
	s.PaginationOffset += pageSize
}

// RewindPagination moves the cursor back one page, clamped at zero.
func (s *Session) RewindPagination(pageSize int) {
	s.PaginationOffset -= pageSize
	if s.PaginationOffset < 0 {
		s.PaginationOffset = 0
	}
}
