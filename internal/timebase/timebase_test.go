package timebase

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTime_Scheduled(t *testing.T) {
	assert.True(t, Time(0).Scheduled(), "zero is a real time, not an absence marker")
	assert.True(t, Time(-5).Scheduled())
	assert.True(t, Time(math.MaxInt64).Scheduled())
	assert.False(t, Unscheduled.Scheduled())
}

func TestTime_DueAt(t *testing.T) {
	tests := []struct {
		name   string
		target Time
		check  Time
		due    bool
	}{
		{"unscheduled always due", Unscheduled, 0, true},
		{"unscheduled due at negative check", Unscheduled, -100, true},
		{"past target", Time(5), Time(10), true},
		{"exact boundary", Time(10), Time(10), true},
		{"future target", Time(15), Time(10), false},
		{"zero target at zero check", Time(0), Time(0), true},
		{"future target at zero check", Time(1), Time(0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.due, tt.target.DueAt(tt.check))
		})
	}
}

func TestTime_String(t *testing.T) {
	assert.Equal(t, "0", Time(0).String())
	assert.Equal(t, "-42", Time(-42).String())
	assert.Equal(t, "1500000", Time(1500000).String())
	assert.Equal(t, "unscheduled", Unscheduled.String())
}

func TestUnscheduled_IsMinInt64(t *testing.T) {
	// Checkpoint records store the sentinel value as-is, so it must stay
	// pinned even if the type definition is reworked.
	assert.Equal(t, int64(math.MinInt64), int64(Unscheduled))
}
