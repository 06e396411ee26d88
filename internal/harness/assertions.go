package harness

import (
	"fmt"
	"strings"

	"github.com/fedsync/fedsync/internal/federate"
)

// AssertionError is returned when an assertion fails.
// It includes the recorded trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)

	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		if event.At != nil {
			fmt.Fprintf(&buf, "  [%d] cycle %d: %s %s %q at=%d\n",
				i+1, event.Cycle, event.Federate, event.Event, event.Label, *event.At)
		} else {
			fmt.Fprintf(&buf, "  [%d] cycle %d: %s %s %q\n",
				i+1, event.Cycle, event.Federate, event.Event, event.Label)
		}
	}

	return buf.String()
}

// assertPointState checks one point's final state at one federate.
func assertPointState(actx *AssertionContext, trace []TraceEvent, assertion Assertion) error {
	fed, ok := actx.Federates[assertion.Federate]
	if !ok {
		return fmt.Errorf("point_state assertion references unknown federate %q", assertion.Federate)
	}

	expected := fmt.Sprintf("point %q in state %s at federate %s",
		assertion.Label, strings.ToUpper(assertion.State), assertion.Federate)

	p, found := fed.Lookup(assertion.Label)
	if !found {
		return &AssertionError{
			Type:     AssertPointState,
			Expected: expected,
			Actual:   "label not present in the federate's list",
			Trace:    trace,
		}
	}

	if !strings.EqualFold(p.State.String(), assertion.State) {
		return &AssertionError{
			Type:     AssertPointState,
			Expected: expected,
			Actual:   fmt.Sprintf("state %s", p.State),
			Trace:    trace,
		}
	}

	return nil
}

// assertAchievedOrder checks that the federate's achieve events contain
// the labels in the specified order. The labels don't need to be
// consecutive (intervening achievements are allowed).
func assertAchievedOrder(trace []TraceEvent, assertion Assertion) error {
	// Step 1: Find the first position of each expected label among the
	// federate's achieve events.
	positions := make(map[string]int)

	for i, event := range trace {
		if event.Event == "achieve" && event.Federate == assertion.Federate {
			for _, label := range assertion.Labels {
				if event.Label == label && positions[label] == 0 {
					positions[label] = i + 1 // 1-indexed for readability
				}
			}
		}
	}

	// Step 2: Verify every label was achieved.
	for _, label := range assertion.Labels {
		if positions[label] == 0 {
			return &AssertionError{
				Type:     AssertAchievedOrder,
				Expected: fmt.Sprintf("federate %s achieved all of: %v", assertion.Federate, assertion.Labels),
				Actual:   fmt.Sprintf("no achieve event for %q", label),
				Trace:    trace,
			}
		}
	}

	// Step 3: Verify the order.
	for i := 1; i < len(assertion.Labels); i++ {
		prev := assertion.Labels[i-1]
		curr := assertion.Labels[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertAchievedOrder,
				Expected: fmt.Sprintf("labels achieved in order: %v", assertion.Labels),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertAchieveCount checks that the label reached the gateway exactly
// the specified number of times from the federate. Zero asserts the
// achievement never left the federate, which is how idempotent
// re-achievement and resigned members are verified.
func assertAchieveCount(trace []TraceEvent, assertion Assertion) error {
	count := 0

	for _, event := range trace {
		if event.Event == "achieve" && event.Federate == assertion.Federate && event.Label == assertion.Label {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertAchieveCount,
			Expected: fmt.Sprintf("%d achieve events for %q from %s", assertion.Count, assertion.Label, assertion.Federate),
			Actual:   fmt.Sprintf("%d achieve events", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertAllSynchronized checks that every non-errored point at the
// federate has been confirmed by the federation.
func assertAllSynchronized(actx *AssertionContext, trace []TraceEvent, assertion Assertion) error {
	fed, ok := actx.Federates[assertion.Federate]
	if !ok {
		return fmt.Errorf("all_synchronized assertion references unknown federate %q", assertion.Federate)
	}

	if fed.AllSynchronized() {
		return nil
	}

	var pending []string
	for _, label := range fed.Labels() {
		p, _ := fed.Lookup(label)
		if p.State.Terminal() {
			continue
		}
		pending = append(pending, fmt.Sprintf("%s=%s", p.Label, p.State))
	}

	return &AssertionError{
		Type:     AssertAllSynchronized,
		Expected: fmt.Sprintf("every point synchronized at federate %s", assertion.Federate),
		Actual:   fmt.Sprintf("still pending: %s", strings.Join(pending, ", ")),
		Trace:    trace,
	}
}

// AssertionContext provides the live federates for state assertions.
type AssertionContext struct {
	Federates map[string]*federate.Federate
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides federate access for state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertPointState:
			if actx == nil {
				err = fmt.Errorf("assertion[%d]: point_state requires federate context", i)
			} else {
				err = assertPointState(actx, result.Trace, assertion)
			}
		case AssertAchievedOrder:
			err = assertAchievedOrder(result.Trace, assertion)
		case AssertAchieveCount:
			err = assertAchieveCount(result.Trace, assertion)
		case AssertAllSynchronized:
			if actx == nil {
				err = fmt.Errorf("assertion[%d]: all_synchronized requires federate context", i)
			} else {
				err = assertAllSynchronized(actx, result.Trace, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
