package testutil

import (
	"context"
	"sync"

	"github.com/fedsync/fedsync/internal/syncpoint"
	"github.com/fedsync/fedsync/internal/timebase"
)

var (
	_ syncpoint.Gateway = (*RecordingGateway)(nil)
	_ syncpoint.Gateway = (*ScriptedGateway)(nil)
)

// Registration is one recorded Register call.
type Registration struct {
	Label string
	At    timebase.Time
}

// RecordingGateway accepts every call and records the order, for
// asserting what reached the federation and in what sequence.
//
// Safe for concurrent use, though most tests drive it from one
// goroutine.
type RecordingGateway struct {
	mu         sync.Mutex
	registered []Registration
	achieved   []string
}

// Register records the call and succeeds.
func (g *RecordingGateway) Register(_ context.Context, label string, at timebase.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.registered = append(g.registered, Registration{Label: label, At: at})
	return nil
}

// Achieve records the call and succeeds.
func (g *RecordingGateway) Achieve(_ context.Context, label string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.achieved = append(g.achieved, label)
	return nil
}

// Registered returns the recorded Register calls in order.
func (g *RecordingGateway) Registered() []Registration {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Registration, len(g.registered))
	copy(out, g.registered)
	return out
}

// RegisteredLabels returns the registered labels in call order.
func (g *RecordingGateway) RegisteredLabels() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	labels := make([]string, len(g.registered))
	for i, r := range g.registered {
		labels[i] = r.Label
	}
	return labels
}

// Achieved returns the achieved labels in call order.
func (g *RecordingGateway) Achieved() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.achieved))
	copy(out, g.achieved)
	return out
}

// AchieveCount returns how many Achieve calls were recorded for the
// label, for asserting that re-achievement never reaches the gateway.
func (g *RecordingGateway) AchieveCount(label string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, l := range g.achieved {
		if l == label {
			n++
		}
	}
	return n
}

// ScriptedGateway is a RecordingGateway with per-label injected
// failures, for exercising failure isolation: a scripted label fails
// and is not recorded, every other label proceeds normally.
//
// Configure failures before use; the failure maps are not guarded.
type ScriptedGateway struct {
	RecordingGateway
	registerFailures map[string]error
	achieveFailures  map[string]error
}

// NewScriptedGateway creates a gateway with no failures scripted.
func NewScriptedGateway() *ScriptedGateway {
	return &ScriptedGateway{
		registerFailures: make(map[string]error),
		achieveFailures:  make(map[string]error),
	}
}

// FailRegister scripts Register to fail for the label.
func (g *ScriptedGateway) FailRegister(label string, err error) {
	g.registerFailures[label] = err
}

// FailAchieve scripts Achieve to fail for the label.
func (g *ScriptedGateway) FailAchieve(label string, err error) {
	g.achieveFailures[label] = err
}

// Register fails if scripted, otherwise records and succeeds.
func (g *ScriptedGateway) Register(ctx context.Context, label string, at timebase.Time) error {
	if err := g.registerFailures[label]; err != nil {
		return err
	}
	return g.RecordingGateway.Register(ctx, label, at)
}

// Achieve fails if scripted, otherwise records and succeeds.
func (g *ScriptedGateway) Achieve(ctx context.Context, label string) error {
	if err := g.achieveFailures[label]; err != nil {
		return err
	}
	return g.RecordingGateway.Achieve(ctx, label)
}
