package syncpoint

import (
	"context"

	"github.com/fedsync/fedsync/internal/timebase"
)

// recordingGateway is a Gateway fake. It records successful calls in
// order, counts every call including failures, and can be told to fail
// specific labels.
type recordingGateway struct {
	registered []string
	achieved   []string

	registerCalls int
	achieveCalls  int

	failRegister map[string]error
	failAchieve  map[string]error
}

func newRecordingGateway() *recordingGateway {
	return &recordingGateway{
		failRegister: make(map[string]error),
		failAchieve:  make(map[string]error),
	}
}

func (g *recordingGateway) Register(_ context.Context, label string, _ timebase.Time) error {
	g.registerCalls++
	if err := g.failRegister[label]; err != nil {
		return err
	}
	g.registered = append(g.registered, label)
	return nil
}

func (g *recordingGateway) Achieve(_ context.Context, label string) error {
	g.achieveCalls++
	if err := g.failAchieve[label]; err != nil {
		return err
	}
	g.achieved = append(g.achieved, label)
	return nil
}

// announcedList builds a list where every given label has already been
// added and announced, the common starting state for achievement tests.
func announcedList(labels ...string) *List {
	l := NewList()
	for _, label := range labels {
		if err := l.Add(label); err != nil {
			panic(err)
		}
		if err := l.Announce(label, timebase.Unscheduled); err != nil {
			panic(err)
		}
	}
	return l
}
