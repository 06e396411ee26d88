package syncpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fedsync/fedsync/internal/timebase"
)

// Gateway performs the network-bound federation calls on behalf of a List.
// Implemented by the in-process and websocket ambassadors, and by
// recording fakes in tests.
//
// Register tells the federation about a point; a nil return means the
// federation has announced it. Achieve declares that this federate reached
// the barrier. Both may block on network I/O, so they take a context.
type Gateway interface {
	Register(ctx context.Context, label string, at timebase.Time) error
	Achieve(ctx context.Context, label string) error
}

// AnnouncePolicy decides what an inbound announce does when its label was
// never added locally.
type AnnouncePolicy int

const (
	// AnnounceAdopt creates the point on the fly, already Announced. This
	// is the default: a federate that joins late still learns every
	// pending barrier.
	AnnounceAdopt AnnouncePolicy = iota

	// AnnounceIgnore rejects the event with an unknown label error and
	// leaves the list unchanged.
	AnnounceIgnore
)

// List is an ordered registry of synchronization points.
//
// Points are kept in insertion order, which is also the achievement and
// display order. Labels are unique within a list.
//
// CRITICAL: a List has no internal locking. All mutation must come from
// the owning federate's single control flow; concurrent callers must
// funnel through one exclusive owner. Read-only methods share the same
// requirement because they walk the backing slice.
type List struct {
	points []*Point
	index  map[string]int

	announcePolicy AnnouncePolicy
}

// ListOption configures a List at construction.
type ListOption func(*List)

// WithAnnouncePolicy overrides the unknown-label policy for inbound
// announces. The default is AnnounceAdopt.
func WithAnnouncePolicy(p AnnouncePolicy) ListOption {
	return func(l *List) {
		l.announcePolicy = p
	}
}

// NewList creates an empty list.
func NewList(opts ...ListOption) *List {
	l := &List{
		index:          make(map[string]int),
		announcePolicy: AnnounceAdopt,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Add creates a new point with no target time. The point starts
// Unregistered and is eligible for achievement as soon as it is announced.
func (l *List) Add(label string) error {
	return l.AddAt(label, timebase.Unscheduled)
}

// AddAt creates a new point with a target logical time. The point will not
// be achieved by AchieveDue before the owning federate's time reaches at.
//
// Adding an existing label fails with a duplicate label error and changes
// nothing, including the original point's state and time.
func (l *List) AddAt(label string, at timebase.Time) error {
	if label == "" {
		return fmt.Errorf("sync point label must not be empty")
	}
	if _, exists := l.index[label]; exists {
		return NewDuplicateLabelError(label)
	}
	l.index[label] = len(l.points)
	l.points = append(l.points, &Point{Label: label, State: StateUnregistered, At: at})
	slog.Debug("sync point added", "label", label, "at", at.String())
	return nil
}

// Announce applies an inbound federation announcement.
//
// A known Unregistered point advances to Announced and adopts a scheduled
// announce time; an unscheduled announce leaves a locally recorded target
// in place. A repeat announce of an advanced point is a logged no-op,
// never a regression. An unknown label is handled per the announce
// policy.
func (l *List) Announce(label string, at timebase.Time) error {
	p := l.lookup(label)
	if p == nil {
		if l.announcePolicy == AnnounceIgnore {
			return NewUnknownLabelError(label)
		}
		l.index[label] = len(l.points)
		l.points = append(l.points, &Point{Label: label, State: StateAnnounced, At: at})
		slog.Debug("sync point adopted from announce", "label", label, "at", at.String())
		return nil
	}

	if p.State != StateUnregistered {
		slog.Debug("repeat announce ignored", "label", label, "state", p.State.String())
		return nil
	}

	p.State = StateAnnounced
	if at.Scheduled() {
		p.At = at
	}
	slog.Debug("sync point announced", "label", label, "at", p.At.String())
	return nil
}

// Synchronized applies an inbound federation confirmation that every
// federate achieved the point.
//
// The normal transition is Achieved to Synchronized. A confirmation for a
// point this federate never achieved is applied anyway so the point does
// not hang forever; the federation's word is authoritative. An errored
// point stays errored. An unknown label returns an unknown label error
// and creates no phantom point; callers log it and carry on.
func (l *List) Synchronized(label string) error {
	p := l.lookup(label)
	if p == nil {
		return NewUnknownLabelError(label)
	}

	switch p.State {
	case StateSynchronized:
		slog.Debug("repeat synchronized ignored", "label", label)
	case StateError:
		slog.Debug("synchronized ignored for errored point", "label", label)
	case StateAchieved:
		p.State = StateSynchronized
		slog.Debug("sync point synchronized", "label", label)
	default:
		slog.Debug("synchronized before local achieve", "label", label, "state", p.State.String())
		p.State = StateSynchronized
	}
	return nil
}

// Register tells the federation about one Unregistered point. On success
// the point is Announced; the gateway returns only after the federation
// has recorded and announced the point. A point past Unregistered is a
// logged no-op. A gateway failure moves the point to Error.
func (l *List) Register(ctx context.Context, gw Gateway, label string) error {
	p := l.lookup(label)
	if p == nil {
		return NewUnknownLabelError(label)
	}
	if p.State != StateUnregistered {
		slog.Debug("sync point already registered", "label", label, "state", p.State.String())
		return nil
	}

	if err := gw.Register(ctx, p.Label, p.At); err != nil {
		p.State = StateError
		return NewGatewayFailureError(label, err)
	}
	p.State = StateAnnounced
	slog.Debug("sync point registered", "label", label, "at", p.At.String())
	return nil
}

// RegisterAll registers every Unregistered point in insertion order. A
// failure moves that point to Error and registration continues with the
// remaining points; the per-point errors are joined in the return value.
func (l *List) RegisterAll(ctx context.Context, gw Gateway) error {
	var errs []error
	for _, p := range l.points {
		if p.State != StateUnregistered {
			continue
		}
		if err := gw.Register(ctx, p.Label, p.At); err != nil {
			p.State = StateError
			slog.Error("sync point registration failed", "label", p.Label, "error", err)
			errs = append(errs, NewGatewayFailureError(p.Label, err))
			continue
		}
		p.State = StateAnnounced
		slog.Debug("sync point registered", "label", p.Label, "at", p.At.String())
	}
	return errors.Join(errs...)
}

// Achieve declares that this federate reached one barrier, regardless of
// its target time; the caller has already decided the point is ready.
//
// Achieving an already Achieved or Synchronized point is a no-op with no
// gateway call. Achieving a point the federation has not announced is a
// protocol error. A gateway failure moves the point to Error.
func (l *List) Achieve(ctx context.Context, gw Gateway, label string) error {
	p := l.lookup(label)
	if p == nil {
		return NewUnknownLabelError(label)
	}

	switch p.State {
	case StateAchieved, StateSynchronized:
		slog.Debug("sync point already achieved", "label", label, "state", p.State.String())
		return nil
	case StateAnnounced:
		if err := gw.Achieve(ctx, label); err != nil {
			p.State = StateError
			return NewGatewayFailureError(label, err)
		}
		p.State = StateAchieved
		slog.Debug("sync point achieved", "label", label)
		return nil
	default:
		return NewNotAnnouncedError(label, p.State)
	}
}

// AchieveAll achieves every Announced point in insertion order, ignoring
// target times. Returns true iff at least one point reached Achieved on
// this call.
func (l *List) AchieveAll(ctx context.Context, gw Gateway) bool {
	return l.achieveWhere(ctx, gw, func(*Point) bool { return true }) > 0
}

// AchieveDue achieves every Announced point whose target time has been
// reached at check, in insertion order. Points sharing a target time are
// achieved in insertion order. Points not yet due stay Announced and are
// reconsidered on a later call. Returns true iff at least one point
// reached Achieved on this call.
func (l *List) AchieveDue(ctx context.Context, gw Gateway, check timebase.Time) bool {
	return l.achieveWhere(ctx, gw, func(p *Point) bool { return p.Due(check) }) > 0
}

// AchieveReady is AchieveDue at logical time zero: only unscheduled points
// and points whose target time is not in the future of the scenario start
// are achieved. Callers tracking an advancing timeline should prefer
// AchieveDue with their current time.
func (l *List) AchieveReady(ctx context.Context, gw Gateway) bool {
	return l.AchieveDue(ctx, gw, 0)
}

// achieveWhere is the single achievement routine behind AchieveAll,
// AchieveDue, and AchieveReady. It walks points in insertion order and
// drives every Announced point accepted by eligible through the gateway.
// A gateway failure moves that point to Error and the walk continues.
// Returns how many points reached Achieved.
func (l *List) achieveWhere(ctx context.Context, gw Gateway, eligible func(*Point) bool) int {
	achieved := 0
	for _, p := range l.points {
		if p.State != StateAnnounced || !eligible(p) {
			continue
		}
		if err := gw.Achieve(ctx, p.Label); err != nil {
			p.State = StateError
			slog.Error("sync point achieve failed", "label", p.Label, "error", err)
			continue
		}
		p.State = StateAchieved
		achieved++
		slog.Debug("sync point achieved", "label", p.Label, "at", p.At.String())
	}
	return achieved
}

// HasDue reports whether at least one Announced point is due at check.
// Cheap pre-check for the per-cycle loop before attempting network-bound
// achievement.
func (l *List) HasDue(check timebase.Time) bool {
	for _, p := range l.points {
		if p.State == StateAnnounced && p.Due(check) {
			return true
		}
	}
	return false
}

// HasPending reports whether any point has not reached a terminal state.
func (l *List) HasPending() bool {
	for _, p := range l.points {
		if !p.State.Terminal() {
			return true
		}
	}
	return false
}

// AllSynchronized reports whether every point has been confirmed by the
// federation. Errored points are excluded: they can never synchronize and
// are reported through Tally and Dump instead of stalling the run.
func (l *List) AllSynchronized() bool {
	for _, p := range l.points {
		if p.State == StateError {
			continue
		}
		if p.State != StateSynchronized {
			return false
		}
	}
	return true
}

// Lookup returns a copy of the named point. The copy keeps callers from
// mutating list state outside the owner's control flow.
func (l *List) Lookup(label string) (Point, bool) {
	p := l.lookup(label)
	if p == nil {
		return Point{}, false
	}
	return *p, true
}

// Labels returns every label in insertion order.
func (l *List) Labels() []string {
	labels := make([]string, len(l.points))
	for i, p := range l.points {
		labels[i] = p.Label
	}
	return labels
}

// Len returns the number of points.
func (l *List) Len() int {
	return len(l.points)
}

func (l *List) lookup(label string) *Point {
	i, ok := l.index[label]
	if !ok {
		return nil
	}
	return l.points[i]
}
