package syncpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateUnregistered, "UNREGISTERED"},
		{StateAnnounced, "ANNOUNCED"},
		{StateAchieved, "ACHIEVED"},
		{StateSynchronized, "SYNCHRONIZED"},
		{StateError, "ERROR"},
		{State(42), "State(42)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.state.String())
		})
	}
}

func TestState_OrdinalsAreStable(t *testing.T) {
	// Checkpoint records persist these ordinals; renumbering would corrupt
	// every saved snapshot.
	assert.Equal(t, 0, int(StateUnregistered))
	assert.Equal(t, 1, int(StateAnnounced))
	assert.Equal(t, 2, int(StateAchieved))
	assert.Equal(t, 3, int(StateSynchronized))
	assert.Equal(t, 4, int(StateError))
}

func TestState_Known(t *testing.T) {
	assert.True(t, StateUnregistered.Known())
	assert.True(t, StateError.Known())
	assert.False(t, State(-1).Known())
	assert.False(t, State(5).Known())
}

func TestState_Terminal(t *testing.T) {
	assert.False(t, StateUnregistered.Terminal())
	assert.False(t, StateAnnounced.Terminal())
	assert.False(t, StateAchieved.Terminal())
	assert.True(t, StateSynchronized.Terminal())
	assert.True(t, StateError.Terminal())
}
