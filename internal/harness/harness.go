package harness

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fedsync/fedsync/internal/exchange"
	"github.com/fedsync/fedsync/internal/federate"
	"github.com/fedsync/fedsync/internal/gateway"
	"github.com/fedsync/fedsync/internal/testutil"
	"github.com/fedsync/fedsync/internal/timebase"
)

// clockReader is the slice of the federate surface the trace decorator
// needs to stamp events.
type clockReader interface {
	Cycle() int64
	Now() timebase.Time
}

// traceGateway decorates the in-process ambassador so every register and
// achieve call a federate makes lands in the trace, stamped with that
// federate's cycle and logical time. The clock is bound after the
// federate is constructed; scripts run on one goroutine, so the late
// bind never races.
type traceGateway struct {
	inner    *gateway.Local
	federate string
	result   *Result
	clock    clockReader
}

func (g *traceGateway) Register(ctx context.Context, label string, at timebase.Time) error {
	if err := g.inner.Register(ctx, label, at); err != nil {
		return err
	}
	var atUnits *int64
	if at.Scheduled() {
		v := int64(at)
		atUnits = &v
	}
	g.result.AddRegisterTrace(g.federate, g.clock.Cycle(), int64(g.clock.Now()), label, atUnits)
	return nil
}

func (g *traceGateway) Achieve(ctx context.Context, label string) error {
	if err := g.inner.Achieve(ctx, label); err != nil {
		return err
	}
	g.result.AddAchieveTrace(g.federate, g.clock.Cycle(), int64(g.clock.Now()), label)
	return nil
}

// fedHandle pairs one scenario federate with its ambassador.
type fedHandle struct {
	fed *federate.Federate
	gw  *gateway.Local
}

// runner is the scenario execution state.
type runner struct {
	scenario *Scenario
	res      timebase.Resolution
	feds     map[string]*fedHandle
	order    []string
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh in-process exchange and its own
// metrics registry for isolation. Federates share a fixed run token so
// repeated runs are byte-identical.
//
// Execution flow:
// 1. Build the exchange and join every federate through a Local gateway
// 2. Seed the shared schedule into each federate's point list
// 3. Execute script steps, recording gateway calls in the trace
// 4. Settle delivered traffic and capture final point states
// 5. Evaluate assertions and return pass/fail, trace, and errors
func Run(scenario *Scenario) (*Result, error) {
	res := timebase.DefaultResolution
	if scenario.Federation.Resolution != "" {
		var err error
		res, err = timebase.ParseResolution(scenario.Federation.Resolution)
		if err != nil {
			return nil, fmt.Errorf("federation resolution: %w", err)
		}
	}
	if scenario.Federation.Step <= 0 {
		return nil, fmt.Errorf("federation step must be positive, got %v", scenario.Federation.Step)
	}
	stepTime := res.FromSeconds(scenario.Federation.Step)

	ex := exchange.New(scenario.Federation.Name, exchange.NewMetrics(prometheus.NewRegistry()))

	result := NewResult()
	h := &runner{
		scenario: scenario,
		res:      res,
		feds:     make(map[string]*fedHandle),
	}

	tokens := testutil.NewFixedTokenGenerator(scenario.RunToken)
	for _, name := range scenario.Federates {
		lg, err := gateway.NewLocal(ex, name)
		if err != nil {
			return nil, fmt.Errorf("join federate %s: %w", name, err)
		}
		tg := &traceGateway{inner: lg, federate: name, result: result}
		fed := federate.New(name, tg, timebase.NewSteppedTimeline(0, stepTime),
			federate.WithTokenGenerator(tokens),
		)
		tg.clock = fed
		h.feds[name] = &fedHandle{fed: fed, gw: lg}
		h.order = append(h.order, name)
	}

	for _, point := range scenario.Schedule {
		at := timebase.Unscheduled
		if point.At != nil {
			at = res.FromSeconds(*point.At)
		}
		for _, name := range h.order {
			if err := h.feds[name].fed.AddAt(point.Label, at); err != nil {
				return nil, fmt.Errorf("seed schedule point %q: %w", point.Label, err)
			}
		}
	}

	ctx := context.Background()

	for i, step := range scenario.Script {
		if err := h.executeStep(ctx, step); err != nil {
			return nil, fmt.Errorf("script step %d (%s): %w", i, step.Op, err)
		}
	}

	h.settle()
	h.captureFinal(result)

	actx := &AssertionContext{Federates: make(map[string]*federate.Federate, len(h.feds))}
	for name, handle := range h.feds {
		actx.Federates[name] = handle.fed
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// executeStep runs one script operation.
func (h *runner) executeStep(ctx context.Context, step ScriptStep) error {
	switch step.Op {
	case OpRegister:
		handle, err := h.handle(step.Federate)
		if err != nil {
			return err
		}
		// The schedule may have seeded the label already; seed on the
		// fly otherwise so standalone scripts stay concise.
		if _, ok := handle.fed.Lookup(step.Label); !ok {
			at := timebase.Unscheduled
			if step.At != nil {
				at = h.res.FromSeconds(*step.At)
			}
			if err := handle.fed.AddAt(step.Label, at); err != nil {
				return err
			}
		}
		return handle.fed.Register(ctx, step.Label)

	case OpAchieve:
		handle, err := h.handle(step.Federate)
		if err != nil {
			return err
		}
		return handle.fed.Achieve(ctx, step.Label)

	case OpStep:
		handle, err := h.handle(step.Federate)
		if err != nil {
			return err
		}
		for c := 0; c < cyclesOf(step); c++ {
			handle.fed.PumpWaiting(handle.gw.Inbound())
			if err := handle.fed.Step(ctx); err != nil {
				return err
			}
		}
		return nil

	case OpStepAll:
		for c := 0; c < cyclesOf(step); c++ {
			for _, name := range h.order {
				handle := h.feds[name]
				handle.fed.PumpWaiting(handle.gw.Inbound())
				if err := handle.fed.Step(ctx); err != nil {
					return fmt.Errorf("federate %s: %w", name, err)
				}
			}
		}
		return nil

	case OpDrain:
		handle, err := h.handle(step.Federate)
		if err != nil {
			return err
		}
		handle.fed.PumpWaiting(handle.gw.Inbound())
		handle.fed.ApplyQueued()
		return nil

	case OpResign:
		handle, err := h.handle(step.Federate)
		if err != nil {
			return err
		}
		handle.gw.Resign()
		return nil

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}

func (h *runner) handle(name string) (*fedHandle, error) {
	handle, ok := h.feds[name]
	if !ok {
		return nil, fmt.Errorf("unknown federate %q", name)
	}
	return handle, nil
}

func cyclesOf(step ScriptStep) int {
	if step.Cycles <= 0 {
		return 1
	}
	return step.Cycles
}

// settle applies whatever the exchange delivered after the last script
// step. Applying announce and synchronized traffic produces no outbound
// calls, so one pass over the members reaches a fixed point. Resigned
// federates have a closed inbound channel and pump nothing.
func (h *runner) settle() {
	for _, name := range h.order {
		handle := h.feds[name]
		handle.fed.PumpWaiting(handle.gw.Inbound())
		handle.fed.ApplyQueued()
	}
}

// captureFinal records each federate's point list in insertion order.
func (h *runner) captureFinal(result *Result) {
	for _, name := range h.order {
		fed := h.feds[name].fed
		labels := fed.Labels()
		points := make([]FinalPoint, 0, len(labels))
		for _, label := range labels {
			p, _ := fed.Lookup(label)
			fp := FinalPoint{Label: p.Label, State: p.State.String()}
			if p.At.Scheduled() {
				v := int64(p.At)
				fp.At = &v
			}
			points = append(points, fp)
		}
		result.Final[name] = points
	}
}
