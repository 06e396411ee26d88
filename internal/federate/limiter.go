package federate

import (
	"errors"
	"fmt"
)

// CycleLimiter bounds the number of executive cycles in one run. It
// converts a runaway loop, a stop condition that can never trigger, or
// a wedged federation into a clean stop with a typed error instead of
// an unbounded spin.
type CycleLimiter struct {
	maxCycles int
	current   int
}

// NewCycleLimiter creates a limiter with the given bound.
func NewCycleLimiter(maxCycles int) *CycleLimiter {
	return &CycleLimiter{maxCycles: maxCycles}
}

// Check counts one cycle and returns CycleLimitError once the bound is
// exceeded. Called at the top of every Step.
func (l *CycleLimiter) Check(federate string) error {
	l.current++
	if l.current > l.maxCycles {
		return &CycleLimitError{
			Federate: federate,
			Cycles:   l.current,
			Limit:    l.maxCycles,
		}
	}
	return nil
}

// Current returns the number of cycles counted so far.
func (l *CycleLimiter) Current() int {
	return l.current
}

// MaxCycles returns the bound.
func (l *CycleLimiter) MaxCycles() int {
	return l.maxCycles
}

// Reset zeroes the counter.
func (l *CycleLimiter) Reset() {
	l.current = 0
}

// CycleLimitError reports that a federate ran past its cycle bound.
type CycleLimitError struct {
	Federate string
	Cycles   int
	Limit    int
}

func (e *CycleLimitError) Error() string {
	return fmt.Sprintf("federate %s exceeded cycle limit: %d cycles > %d limit",
		e.Federate, e.Cycles, e.Limit)
}

// IsCycleLimitError reports whether err is a CycleLimitError, unwrapping
// as needed.
func IsCycleLimitError(err error) bool {
	var ce *CycleLimitError
	return errors.As(err, &ce)
}
