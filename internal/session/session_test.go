// SPDX-License-Identifier: MIT

package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStackNeverEmpty(t *testing.T) {
	st := NewStack()
	require.Equal(t, RootState, st.Current())

	// Popping the floor is a no-op yielding the root.
	for i := 0; i < 3; i++ {
		assert.Equal(t, RootState, st.Pop())
		assert.Equal(t, 1, st.Depth())
	}

	st.Push("select_camp")
	st.Push("select_location")
	assert.Equal(t, "select_location", st.Current())
	assert.Equal(t, "select_camp", st.Pop())
	assert.Equal(t, RootState, st.Pop())
	assert.Equal(t, RootState, st.Pop())
}

func TestStackZeroValue(t *testing.T) {
	var st Stack
	assert.Equal(t, RootState, st.Current())
	assert.Equal(t, RootState, st.Pop())
	assert.Equal(t, 1, st.Depth())
}

func TestSessionJSONRoundTrip(t *testing.T) {
	s := New("ATUid_abcd1234567890", "+254712345678")
	s.Push("select_camp")
	s.Push("enter_age")
	s.Put("participantName", "John Doe")
	s.Put("participantAge", 16)
	s.PaginationOffset = 3
	s.CurrentMenuItems = []string{"uuid-1", "uuid-2", "uuid-3"}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var got Session
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, s.SessionID, got.SessionID)
	assert.Equal(t, s.PhoneNumber, got.PhoneNumber)
	assert.Equal(t, "enter_age", got.CurrentState())
	assert.Equal(t, 3, got.PaginationOffset)
	assert.Equal(t, s.CurrentMenuItems, got.CurrentMenuItems)
	assert.Equal(t, "John Doe", got.GetString("participantName"))

	// JSON turns the int into float64; the accessor must still coerce.
	age, ok := got.GetInt("participantAge")
	require.True(t, ok)
	assert.Equal(t, 16, age)
	assert.Equal(t, "16", got.GetString("participantAge"))
}

func TestSessionWireShape(t *testing.T) {
	s := New("sid", "0712345678")
	data, err := json.Marshal(s)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, field := range []string{"session_id", "phone_number", "state_history", "data", "pagination_offset", "current_menu_items"} {
		assert.Contains(t, raw, field)
	}
}

func TestDataAccessorsCoercion(t *testing.T) {
	s := New("sid", "0712345678")
	s.Put("asString", "42")
	s.Put("asInt", 42)
	s.Put("notANumber", "forty-two")

	i, ok := s.GetInt("asString")
	require.True(t, ok)
	assert.Equal(t, 42, i)

	assert.Equal(t, "42", s.GetString("asInt"))

	_, ok = s.GetInt("notANumber")
	assert.False(t, ok)

	_, ok = s.GetInt("missing")
	assert.False(t, ok)
	assert.Equal(t, "", s.GetString("missing"))
}

func TestPaginationHelpers(t *testing.T) {
	s := New("sid", "0712345678")
	s.AdvancePagination(3)
	s.AdvancePagination(3)
	assert.Equal(t, 6, s.PaginationOffset)

	s.RewindPagination(3)
	assert.Equal(t, 3, s.PaginationOffset)
	s.RewindPagination(3)
	s.RewindPagination(3)
	assert.Equal(t, 0, s.PaginationOffset)

	s.CurrentMenuItems = []string{"a"}
	s.ResetPagination()
	assert.Equal(t, 0, s.PaginationOffset)
	assert.Empty(t, s.CurrentMenuItems)
}
