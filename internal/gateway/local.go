package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/fedsync/fedsync/internal/exchange"
	"github.com/fedsync/fedsync/internal/protocol"
	"github.com/fedsync/fedsync/internal/timebase"
)

const localInboundBuffer = 256

// Local connects an in-process federate to an exchange without a network
// hop. It implements syncpoint.Gateway.
//
// Delivery is synchronous while the inbound buffer has room, so a caller
// driving the exchange directly observes traffic as soon as the call
// returns. When the buffer fills - a join replay longer than the buffer,
// or a federate that stopped draining - the excess spills into an
// unbounded backlog that a drainer goroutine forwards in order. Nothing
// is dropped; a dropped announce would leave the point unknown locally
// and wedge the barrier for the whole federation.
type Local struct {
	federate string
	ex       *exchange.Exchange
	inbound  chan protocol.Message

	mu      sync.Mutex
	backlog []protocol.Message
	spill   chan struct{} // coalesced wakeup for the drainer
	done    chan struct{} // closed on Resign, stops the drainer
	drained chan struct{} // closed when the drainer has exited

	resignOnce sync.Once
}

// NewLocal joins the federate to the exchange and consumes the welcome.
// Any replayed history is already waiting on Inbound (or queued behind
// it) when this returns.
func NewLocal(ex *exchange.Exchange, federate string) (*Local, error) {
	l := &Local{
		federate: federate,
		ex:       ex,
		inbound:  make(chan protocol.Message, localInboundBuffer),
		spill:    make(chan struct{}, 1),
		done:     make(chan struct{}),
		drained:  make(chan struct{}),
	}
	go l.drainBacklog()

	if err := ex.Join(federate, l.deliver); err != nil {
		// Not joined, so resigning from the exchange would hit whichever
		// member already holds this name. Only stop the drainer.
		l.stopDrainer()
		return nil, fmt.Errorf("join federation: %w", err)
	}

	// Join delivers the welcome synchronously before returning.
	if m := <-l.inbound; m.Kind != protocol.KindWelcome {
		l.Resign()
		return nil, fmt.Errorf("expected welcome, got %s", m.Kind)
	}
	return l, nil
}

// deliver runs under the exchange lock and must not block. The fast path
// is a buffered channel send; once the buffer is full, messages queue in
// the backlog until the drainer catches up.
func (l *Local) deliver(m protocol.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Ordering: while anything is queued, new traffic queues behind it
	// even if the channel has room again.
	if len(l.backlog) == 0 {
		select {
		case l.inbound <- m:
			return
		default:
		}
	}
	l.backlog = append(l.backlog, m)
	select {
	case l.spill <- struct{}{}:
	default:
	}
}

// drainBacklog forwards spilled messages onto the inbound channel. The
// head stays in the backlog until its send completes, so deliver keeps
// queueing behind an in-flight message and order is preserved.
func (l *Local) drainBacklog() {
	defer close(l.drained)
	for {
		select {
		case <-l.spill:
		case <-l.done:
			return
		}
		for {
			l.mu.Lock()
			if len(l.backlog) == 0 {
				l.mu.Unlock()
				break
			}
			m := l.backlog[0]
			l.mu.Unlock()

			select {
			case l.inbound <- m:
			case <-l.done:
				return
			}

			l.mu.Lock()
			// Zero the slot so the backing array does not retain the
			// message's pointers until reallocation.
			l.backlog[0] = protocol.Message{}
			l.backlog = l.backlog[1:]
			l.mu.Unlock()
		}
	}
}

// Federate returns the name this ambassador joined under.
func (l *Local) Federate() string {
	return l.federate
}

// Register announces a point to the federation.
func (l *Local) Register(ctx context.Context, label string, at timebase.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.ex.Register(l.federate, label, at)
	return nil
}

// Achieve declares that this federate reached the barrier.
func (l *Local) Achieve(ctx context.Context, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.ex.Achieve(l.federate, label)
	return nil
}

// Inbound delivers federation traffic. Closed after Resign.
func (l *Local) Inbound() <-chan protocol.Message {
	return l.inbound
}

// Resign removes the federate from the roster and closes Inbound. Safe to
// call more than once. Messages still in the backlog at resign time are
// discarded; buffered channel messages stay readable until the close.
func (l *Local) Resign() {
	l.resignOnce.Do(func() {
		// After Resign returns the exchange holds no reference to this
		// ambassador, so no further deliver call can race the close. The
		// drainer is stopped and waited out for the same reason.
		l.ex.Resign(l.federate)
		l.stopDrainer()
		close(l.inbound)
	})
}

func (l *Local) stopDrainer() {
	close(l.done)
	<-l.drained
}
