package exchange

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/fedsync/fedsync/internal/protocol"
	"github.com/fedsync/fedsync/internal/syncpoint"
	"github.com/fedsync/fedsync/internal/timebase"
)

// SendFunc delivers one message to a federate. Implementations must not
// call back into the Exchange; they run while its lock is held. The
// websocket server hands the message to a per-connection writer queue,
// the in-process gateway to the federate's inbound queue.
type SendFunc func(protocol.Message)

// barrier is the exchange-side record of one synchronization point.
type barrier struct {
	label        string
	at           timebase.Time
	achieved     map[string]bool
	synchronized bool
}

// Exchange arbitrates synchronization points for one federation.
type Exchange struct {
	federation string
	metrics    *Metrics

	mu       sync.Mutex
	members  map[string]SendFunc
	barriers map[string]*barrier
	order    []string
	history  []protocol.Message
}

// New creates an exchange for the named federation. Metrics must not be
// nil; use NewMetrics(nil) for the default registerer.
func New(federation string, metrics *Metrics) *Exchange {
	return &Exchange{
		federation: federation,
		metrics:    metrics,
		members:    make(map[string]SendFunc),
		barriers:   make(map[string]*barrier),
	}
}

// Federation returns the federation name.
func (e *Exchange) Federation() string {
	return e.federation
}

// Join adds a federate to the roster and replays the announce and
// synchronized history so a late joiner learns every point it missed.
// The name must be unique among currently joined federates.
func (e *Exchange) Join(name string, send SendFunc) error {
	if name == "" {
		return fmt.Errorf("federate name must not be empty")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.members[name]; exists {
		return fmt.Errorf("federate %q already joined", name)
	}
	e.members[name] = send
	e.metrics.FederatesJoined.Inc()
	e.metrics.Federates.Set(float64(len(e.members)))

	slog.Info("federate joined",
		"federation", e.federation,
		"federate", name,
		"members", len(e.members),
		"replay", len(e.history),
	)

	send(protocol.Welcome(name))
	for _, m := range e.history {
		send(m)
	}
	return nil
}

// Resign removes a federate from the roster and re-checks every pending
// point: the leaver's achievement is no longer required, so a point
// waiting only on it completes now.
func (e *Exchange) Resign(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.members[name]; !exists {
		slog.Debug("resign from unknown federate ignored", "federate", name)
		return
	}
	delete(e.members, name)
	e.metrics.FederatesResigned.Inc()
	e.metrics.Federates.Set(float64(len(e.members)))

	slog.Info("federate resigned",
		"federation", e.federation,
		"federate", name,
		"members", len(e.members),
	)

	e.recheckLocked()
}

// Register creates and announces a point, reporting whether this call
// created it. Registering an existing label is idempotent: the first
// registration's target time wins and a differing time is logged and
// ignored. The announce is broadcast to every joined federate, including
// the registrar.
func (e *Exchange) Register(from, label string, at timebase.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if b, exists := e.barriers[label]; exists {
		if at.Scheduled() && at != b.at {
			slog.Warn("repeat registration with different time ignored",
				"label", label,
				"at", b.at.String(),
				"requested", at.String(),
				"federate", from,
			)
		} else {
			slog.Debug("repeat registration ignored", "label", label, "federate", from)
		}
		return false
	}

	e.barriers[label] = &barrier{
		label:    label,
		at:       at,
		achieved: make(map[string]bool),
	}
	e.order = append(e.order, label)
	e.metrics.PointsRegistered.Inc()
	e.metrics.PointsPending.Set(float64(e.pendingLocked()))

	slog.Info("sync point announced",
		"federation", e.federation,
		"label", label,
		"at", at.String(),
		"federate", from,
	)

	e.recordAndBroadcastLocked(protocol.Announce(label, at))

	// A federation with no members has nobody to wait for.
	e.completeIfReadyLocked(e.barriers[label])
	return true
}

// Achieve records one federate's achievement. When every joined federate
// has achieved the point, the synchronized confirmation is broadcast.
// An unknown label is reported back to the sender and otherwise ignored.
func (e *Exchange) Achieve(from, label string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	send, joined := e.members[from]
	if !joined {
		slog.Warn("achieve from federate outside the roster ignored", "federate", from, "label", label)
		return
	}

	b, exists := e.barriers[label]
	if !exists {
		slog.Warn("achieve for unknown sync point",
			"federation", e.federation,
			"label", label,
			"federate", from,
		)
		e.metrics.ProtocolErrors.Inc()
		send(protocol.NewError(string(syncpoint.ErrCodeUnknownLabel), fmt.Sprintf("sync point %q not announced", label)))
		return
	}
	if b.synchronized {
		slog.Debug("achieve for settled sync point ignored", "label", label, "federate", from)
		return
	}
	if b.achieved[from] {
		slog.Debug("repeat achieve ignored", "label", label, "federate", from)
		return
	}

	b.achieved[from] = true
	e.metrics.Achievements.Inc()
	slog.Debug("sync point achieved",
		"federation", e.federation,
		"label", label,
		"federate", from,
		"achieved", len(b.achieved),
		"members", len(e.members),
	)

	e.completeIfReadyLocked(b)
}

// completeIfReadyLocked synchronizes the barrier once every joined
// federate has achieved it. Callers hold e.mu.
func (e *Exchange) completeIfReadyLocked(b *barrier) {
	if b.synchronized {
		return
	}
	for name := range e.members {
		if !b.achieved[name] {
			return
		}
	}

	b.synchronized = true
	e.metrics.PointsSynchronized.Inc()
	e.metrics.PointsPending.Set(float64(e.pendingLocked()))

	slog.Info("sync point synchronized",
		"federation", e.federation,
		"label", b.label,
		"members", len(e.members),
	)

	e.recordAndBroadcastLocked(protocol.Synchronized(b.label))
}

// recheckLocked re-evaluates every pending barrier in announce order.
// Callers hold e.mu.
func (e *Exchange) recheckLocked() {
	for _, label := range e.order {
		e.completeIfReadyLocked(e.barriers[label])
	}
}

// recordAndBroadcastLocked appends a message to the replay history and
// fans it out to every joined federate. Callers hold e.mu.
func (e *Exchange) recordAndBroadcastLocked(m protocol.Message) {
	e.history = append(e.history, m)
	for _, send := range e.members {
		send(m)
	}
}

func (e *Exchange) pendingLocked() int {
	pending := 0
	for _, b := range e.barriers {
		if !b.synchronized {
			pending++
		}
	}
	return pending
}

// PointStatus is a read-only snapshot of one barrier for status
// reporting.
type PointStatus struct {
	Label        string   `json:"label"`
	At           *int64   `json:"at,omitempty"`
	Synchronized bool     `json:"synchronized"`
	AchievedBy   []string `json:"achieved_by"`
	Waiting      []string `json:"waiting"`
}

// Status lists every barrier in announce order along with which joined
// federates have achieved it and which are still awaited.
func (e *Exchange) Status() []PointStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	statuses := make([]PointStatus, 0, len(e.order))
	for _, label := range e.order {
		b := e.barriers[label]
		ps := PointStatus{
			Label:        b.label,
			Synchronized: b.synchronized,
			AchievedBy:   []string{},
			Waiting:      []string{},
		}
		if b.at.Scheduled() {
			v := int64(b.at)
			ps.At = &v
		}
		for _, name := range e.memberNamesLocked() {
			if b.achieved[name] {
				ps.AchievedBy = append(ps.AchievedBy, name)
			} else if !b.synchronized {
				ps.Waiting = append(ps.Waiting, name)
			}
		}
		statuses = append(statuses, ps)
	}
	return statuses
}

// StatusOf returns the snapshot of a single barrier.
func (e *Exchange) StatusOf(label string) (PointStatus, bool) {
	for _, ps := range e.Status() {
		if ps.Label == label {
			return ps, true
		}
	}
	return PointStatus{}, false
}

// Members returns the names of currently joined federates, sorted.
func (e *Exchange) Members() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.memberNamesLocked()
}

func (e *Exchange) memberNamesLocked() []string {
	names := make([]string, 0, len(e.members))
	for name := range e.members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
