package federate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/fedsync/fedsync/internal/protocol"
	"github.com/fedsync/fedsync/internal/syncpoint"
	"github.com/fedsync/fedsync/internal/timebase"
)

// DefaultMaxCycles bounds a run that never reaches its stop condition.
const DefaultMaxCycles = 1_000_000

// DefaultPacing is the wall-clock interval between cycles under Run.
const DefaultPacing = 100 * time.Millisecond

// CheckpointFunc persists one snapshot of the point list. seq is the
// cycle stamp; records are the full list in insertion order. Failures
// are logged and the run continues, so implementations should do their
// own retrying if a missed snapshot matters.
type CheckpointFunc func(ctx context.Context, seq int64, records []syncpoint.Record) error

// Federate is the executive driving one federate's synchronization
// points through the step cycle.
//
// All methods except Enqueue, Pump, and PumpWaiting must be called from
// the single goroutine that owns the federate.
type Federate struct {
	name     string
	gw       syncpoint.Gateway
	list     *syncpoint.List
	queue    *messageQueue
	timeline *timebase.SteppedTimeline
	clock    *CycleClock
	limiter  *CycleLimiter
	tokens   TokenGenerator
	runToken string

	initLabels []string
	lateJoiner bool

	stopAt    timebase.Time
	stopLabel string

	pacing time.Duration

	checkpoint      CheckpointFunc
	checkpointEvery int64
}

// Option configures a federate.
type Option func(*Federate)

// WithMaxCycles bounds the number of cycles before Step fails with
// CycleLimitError.
func WithMaxCycles(n int) Option {
	return func(f *Federate) {
		f.limiter = NewCycleLimiter(n)
	}
}

// WithPacing sets the wall-clock interval between cycles under Run.
func WithPacing(d time.Duration) Option {
	return func(f *Federate) {
		f.pacing = d
	}
}

// WithInitLabels names the startup points RunInitBarrier holds on.
func WithInitLabels(labels ...string) Option {
	return func(f *Federate) {
		f.initLabels = labels
	}
}

// WithLateJoiner marks this federate as joining an already running
// federation; RunInitBarrier becomes a no-op.
func WithLateJoiner() Option {
	return func(f *Federate) {
		f.lateJoiner = true
	}
}

// WithStopTime stops Run once the timeline reaches at.
func WithStopTime(at timebase.Time) Option {
	return func(f *Federate) {
		f.stopAt = at
	}
}

// WithStopOnSynchronized stops Run once the labeled point synchronizes.
func WithStopOnSynchronized(label string) Option {
	return func(f *Federate) {
		f.stopLabel = label
	}
}

// WithCheckpoint installs a snapshot hook called every n cycles.
func WithCheckpoint(fn CheckpointFunc, every int64) Option {
	return func(f *Federate) {
		if every < 1 {
			every = 1
		}
		f.checkpoint = fn
		f.checkpointEvery = every
	}
}

// WithTokenGenerator replaces the run token source, for deterministic
// tests.
func WithTokenGenerator(gen TokenGenerator) Option {
	return func(f *Federate) {
		f.tokens = gen
	}
}

// WithListOptions configures the underlying point list.
func WithListOptions(opts ...syncpoint.ListOption) Option {
	return func(f *Federate) {
		f.list = syncpoint.NewList(opts...)
	}
}

// New creates a federate executive over the given gateway and timeline.
func New(name string, gw syncpoint.Gateway, timeline *timebase.SteppedTimeline, opts ...Option) *Federate {
	f := &Federate{
		name:            name,
		gw:              gw,
		list:            syncpoint.NewList(),
		queue:           newMessageQueue(),
		timeline:        timeline,
		clock:           NewCycleClock(),
		limiter:         NewCycleLimiter(DefaultMaxCycles),
		tokens:          UUIDv7Generator{},
		stopAt:          timebase.Unscheduled,
		pacing:          DefaultPacing,
		checkpointEvery: 1,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.runToken = f.tokens.Generate()
	return f
}

// Name returns the federate name.
func (f *Federate) Name() string {
	return f.name
}

// RunToken returns the token identifying this run in checkpoints and
// logs.
func (f *Federate) RunToken() string {
	return f.runToken
}

// Now returns the current logical time.
func (f *Federate) Now() timebase.Time {
	return f.timeline.Now()
}

// Cycle returns the last completed cycle's sequence number.
func (f *Federate) Cycle() int64 {
	return f.clock.Current()
}

// Enqueue submits a federation message for the next cycle's drain. Safe
// from any goroutine. Returns false after Stop.
func (f *Federate) Enqueue(m protocol.Message) bool {
	return f.queue.Enqueue(m)
}

// Pump forwards gateway traffic into the queue until the channel closes
// or ctx is cancelled. Run it on its own goroutine. A closed channel
// means the connection is gone, so the queue closes too and blocked
// waiters fail instead of hanging.
func (f *Federate) Pump(ctx context.Context, inbound <-chan protocol.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-inbound:
			if !ok {
				f.queue.Close()
				return
			}
			f.queue.Enqueue(m)
		}
	}
}

// PumpWaiting moves already-delivered traffic into the queue without
// blocking, and reports how many messages moved. Deterministic drivers
// use it to control exactly when federation traffic applies.
func (f *Federate) PumpWaiting(inbound <-chan protocol.Message) int {
	moved := 0
	for {
		select {
		case m, ok := <-inbound:
			if !ok {
				return moved
			}
			if f.queue.Enqueue(m) {
				moved++
			}
		default:
			return moved
		}
	}
}

// ApplyQueued applies queued federation traffic without advancing the
// timeline. Deterministic drivers pair it with PumpWaiting when traffic
// must settle between cycles.
func (f *Federate) ApplyQueued() {
	f.drain()
}

// Add seeds an unscheduled point.
func (f *Federate) Add(label string) error {
	return f.list.Add(label)
}

// AddAt seeds a point with an action time.
func (f *Federate) AddAt(label string, at timebase.Time) error {
	return f.list.AddAt(label, at)
}

// Register announces one seeded point to the federation.
func (f *Federate) Register(ctx context.Context, label string) error {
	return f.list.Register(ctx, f.gw, label)
}

// RegisterAll announces every unregistered point to the federation.
func (f *Federate) RegisterAll(ctx context.Context) error {
	return f.list.RegisterAll(ctx, f.gw)
}

// Achieve declares one point achieved regardless of its action time.
func (f *Federate) Achieve(ctx context.Context, label string) error {
	return f.list.Achieve(ctx, f.gw, label)
}

// Step runs one executive cycle: apply queued federation traffic,
// advance the timeline one step, achieve every point due at the new
// time, and checkpoint on the configured interval.
func (f *Federate) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.limiter.Check(f.name); err != nil {
		return err
	}

	f.drain()

	now := f.timeline.Advance()
	seq := f.clock.Next()

	if f.list.AchieveDue(ctx, f.gw, now) {
		slog.Debug("achieved due points", "federate", f.name, "cycle", seq, "now", now.String())
	}

	if f.checkpoint != nil && seq%f.checkpointEvery == 0 {
		if err := f.checkpoint(ctx, seq, f.list.Snapshot()); err != nil {
			slog.Error("checkpoint failed", "federate", f.name, "seq", seq, "error", err)
		}
	}
	return nil
}

// Run paces Step on a wall-clock ticker until the context is cancelled,
// the stop time is reached, the stop point synchronizes, or the cycle
// limit trips.
func (f *Federate) Run(ctx context.Context) error {
	slog.Info("federate starting",
		"federate", f.name,
		"run_token", f.runToken,
		"pacing", f.pacing,
		"step", f.timeline.Step().String(),
	)

	ticker := time.NewTicker(f.pacing)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("federate stopping", "federate", f.name, "reason", "context cancelled")
			return ctx.Err()
		case <-ticker.C:
			if err := f.Step(ctx); err != nil {
				return err
			}
			if reason, done := f.stopReason(); done {
				slog.Info("federate stopping",
					"federate", f.name,
					"reason", reason,
					"now", f.timeline.Now().String(),
					"cycles", f.clock.Current(),
				)
				return nil
			}
		}
	}
}

func (f *Federate) stopReason() (string, bool) {
	if f.stopAt.Scheduled() && f.timeline.Now() >= f.stopAt {
		return "stop time reached", true
	}
	if f.stopLabel != "" {
		if p, ok := f.list.Lookup(f.stopLabel); ok && p.State == syncpoint.StateSynchronized {
			return "stop point synchronized", true
		}
	}
	return "", false
}

// Stop closes the queue; pending messages still drain, new ones are
// rejected, and blocked waiters wake.
func (f *Federate) Stop() {
	f.queue.Close()
}

// RunInitBarrier announces the configured init labels and pumps
// federation traffic until every one synchronizes. Init points carry no
// action time, so each is achieved as soon as its announce arrives. The
// timeline does not advance.
func (f *Federate) RunInitBarrier(ctx context.Context) error {
	if len(f.initLabels) == 0 {
		return nil
	}
	if f.lateJoiner {
		slog.Info("skipping init barrier", "federate", f.name, "reason", "late joiner")
		return nil
	}

	for _, label := range f.initLabels {
		if err := f.list.Add(label); err != nil {
			return fmt.Errorf("add init point: %w", err)
		}
	}
	if err := f.list.RegisterAll(ctx, f.gw); err != nil {
		return fmt.Errorf("register init points: %w", err)
	}

	slog.Info("init barrier waiting", "federate", f.name, "labels", len(f.initLabels))

	for {
		f.drain()
		f.list.AchieveReady(ctx, f.gw)
		if f.InitDone() {
			slog.Info("init barrier complete", "federate", f.name)
			return nil
		}
		if f.queue.Closed() {
			return fmt.Errorf("federate %s stopped before init barrier completed", f.name)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.queue.Wait():
		}
	}
}

// InitDone reports whether every init label has synchronized.
func (f *Federate) InitDone() bool {
	for _, label := range f.initLabels {
		p, ok := f.list.Lookup(label)
		if !ok || p.State != syncpoint.StateSynchronized {
			return false
		}
	}
	return true
}

// WaitForSynchronized pumps federation traffic until the labeled point
// synchronizes. The timeline does not advance; use it for rendezvous
// the cycle loop does not drive, such as a shutdown point.
func (f *Federate) WaitForSynchronized(ctx context.Context, label string) error {
	for {
		f.drain()
		p, ok := f.list.Lookup(label)
		if !ok {
			return syncpoint.NewUnknownLabelError(label)
		}
		switch p.State {
		case syncpoint.StateSynchronized:
			return nil
		case syncpoint.StateError:
			return fmt.Errorf("sync point %q failed before synchronizing", label)
		}
		if f.queue.Closed() {
			return fmt.Errorf("federate %s stopped waiting for %q", f.name, label)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.queue.Wait():
		}
	}
}

// Lookup returns a copy of the named point.
func (f *Federate) Lookup(label string) (syncpoint.Point, bool) {
	return f.list.Lookup(label)
}

// Labels returns every label in insertion order.
func (f *Federate) Labels() []string {
	return f.list.Labels()
}

// Snapshot captures the point list as checkpoint records.
func (f *Federate) Snapshot() []syncpoint.Record {
	return f.list.Snapshot()
}

// Restore rebuilds the point list from checkpoint records and resumes
// the cycle clock and timeline at the checkpointed cycle.
func (f *Federate) Restore(records []syncpoint.Record, seq int64) error {
	if err := f.list.RestoreSnapshot(records); err != nil {
		return err
	}
	f.clock = NewCycleClockAt(seq)
	f.timeline.Seek(timebase.Time(seq) * f.timeline.Step())
	slog.Info("restored from checkpoint",
		"federate", f.name,
		"seq", seq,
		"now", f.timeline.Now().String(),
		"points", len(records),
	)
	return nil
}

// AllSynchronized reports whether every non-errored point synchronized.
func (f *Federate) AllSynchronized() bool {
	return f.list.AllSynchronized()
}

// HasPending reports whether any point is still before a terminal state.
func (f *Federate) HasPending() bool {
	return f.list.HasPending()
}

// Dump writes a human-readable view of the point list.
func (f *Federate) Dump(w io.Writer) {
	f.list.Dump(w)
}

func (f *Federate) drain() {
	for {
		m, ok := f.queue.TryDequeue()
		if !ok {
			return
		}
		f.apply(m)
	}
}

// apply is log and continue: one bad message must not stall the cycle.
func (f *Federate) apply(m protocol.Message) {
	switch m.Kind {
	case protocol.KindAnnounce:
		if err := f.list.Announce(m.Label, m.TimeOf()); err != nil {
			slog.Warn("announce not applied", "federate", f.name, "label", m.Label, "error", err)
		}
	case protocol.KindSynchronized:
		if err := f.list.Synchronized(m.Label); err != nil {
			slog.Warn("synchronized not applied", "federate", f.name, "label", m.Label, "error", err)
		}
	case protocol.KindError:
		slog.Warn("federation reported error",
			"federate", f.name,
			"code", m.Code,
			"detail", m.Detail,
			"label", m.Label,
		)
	default:
		slog.Debug("ignoring federation message", "federate", f.name, "kind", string(m.Kind))
	}
}
