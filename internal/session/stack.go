// SPDX-License-Identifier: MIT

package session

import "encoding/json"

// RootState is the state every session bottoms out at.
const RootState = "main_menu"

// Stack is a non-empty stack of menu state names. The zero value is ready to
// use and behaves as if it holds only RootState. Popping never shrinks the
// stack below one element.
type Stack struct {
	states []string
}

// NewStack returns a stack seeded with RootState.
func NewStack() Stack {
	return Stack{states: []string{RootState}}
}

// Current returns the state on top of the stack.
func (s *Stack) Current() string {
	if len(s.states) == 0 {
		return RootState
	}
	return s.states[len(s.states)-1]
}

// Push adds a state on top of the stack.
func (s *Stack) Push(state string) {
	s.states = append(s.states, state)
}

// Pop removes the top state and returns the state now on top. Popping a
// single-element stack is a no-op that returns RootState.
func (s *Stack) Pop() string {
	if len(s.states) <= 1 {
		return RootState
	}
	s.states = s.states[:len(s.states)-1]
	return s.Current()
}

// Reset discards the history and leaves only RootState.
func (s *Stack) Reset() {
	s.states = []string{RootState}
}

// Depth reports the number of states on the stack.
func (s *Stack) Depth() int {
	if len(s.states) == 0 {
		return 1
	}
	return len(s.states)
}

// MarshalJSON serializes the stack as a plain string array, matching the
// legacy stored-session shape.
func (s Stack) MarshalJSON() ([]byte, error) {
	if len(s.states) == 0 {
		return json.Marshal([]string{RootState})
	}
	return json.Marshal(s.states)
}

// UnmarshalJSON restores the stack from a string array. An empty array
// deserializes to a stack holding RootState.
func (s *Stack) UnmarshalJSON(data []byte) error {
	var states []string
	if err := json.Unmarshal(data, &states); err != nil {
		return err
	}
	if len(states) == 0 {
		states = []string{RootState}
	}
	s.states = states
	return nil
}
