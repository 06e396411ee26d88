package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fedsync/fedsync/internal/timebase"
)

// Kind discriminates wire messages.
type Kind string

const (
	// KindHello is sent by a federate to join the federation.
	KindHello Kind = "hello"

	// KindWelcome acknowledges a join. The exchange follows it with a
	// replay of announce and synchronized messages for every point the
	// late joiner missed.
	KindWelcome Kind = "welcome"

	// KindRegister asks the exchange to create and announce a point.
	KindRegister Kind = "register"

	// KindAchieve declares that the sending federate reached the barrier.
	KindAchieve Kind = "achieve"

	// KindResign announces that the sending federate is leaving the
	// federation.
	KindResign Kind = "resign"

	// KindAnnounce tells every federate that a point is now pending.
	KindAnnounce Kind = "announce"

	// KindSynchronized tells every federate that all of them achieved the
	// point.
	KindSynchronized Kind = "synchronized"

	// KindError reports a protocol violation back to the offending
	// federate. Never broadcast.
	KindError Kind = "error"
)

// Connection-level error codes carried by KindError messages, alongside
// the lifecycle codes defined by the syncpoint package.
const (
	CodeBadMessage   = "BAD_MESSAGE"
	CodeJoinRejected = "JOIN_REJECTED"
)

// Message is the wire envelope. Exactly one JSON object per websocket
// text frame.
//
// At is a pointer so that "no target time" travels as an absent field
// rather than as a magic number on the wire.
type Message struct {
	Kind     Kind   `json:"kind"`
	Federate string `json:"federate,omitempty"`
	Label    string `json:"label,omitempty"`
	At       *int64 `json:"at,omitempty"`
	Code     string `json:"code,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// TimeOf returns the carried target time, or timebase.Unscheduled when
// the at field is absent.
func (m *Message) TimeOf() timebase.Time {
	if m.At == nil {
		return timebase.Unscheduled
	}
	return timebase.Time(*m.At)
}

func timePtr(at timebase.Time) *int64 {
	if !at.Scheduled() {
		return nil
	}
	v := int64(at)
	return &v
}

// Hello builds a join request.
func Hello(federate string) Message {
	return Message{Kind: KindHello, Federate: federate}
}

// Welcome builds a join acknowledgment.
func Welcome(federate string) Message {
	return Message{Kind: KindWelcome, Federate: federate}
}

// Register builds a point registration request.
func Register(federate, label string, at timebase.Time) Message {
	return Message{Kind: KindRegister, Federate: federate, Label: label, At: timePtr(at)}
}

// Achieve builds a local achievement declaration.
func Achieve(federate, label string) Message {
	return Message{Kind: KindAchieve, Federate: federate, Label: label}
}

// Resign builds a leave notice.
func Resign(federate string) Message {
	return Message{Kind: KindResign, Federate: federate}
}

// Announce builds a federation-wide pending notice.
func Announce(label string, at timebase.Time) Message {
	return Message{Kind: KindAnnounce, Label: label, At: timePtr(at)}
}

// Synchronized builds a federation-wide confirmation.
func Synchronized(label string) Message {
	return Message{Kind: KindSynchronized, Label: label}
}

// NewError builds a protocol error report.
func NewError(code, detail string) Message {
	return Message{Kind: KindError, Code: code, Detail: detail}
}

// Encode marshals a message for the wire.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", m.Kind, err)
	}
	return data, nil
}

// Decode parses one wire message strictly. Unknown fields and trailing
// data are rejected, labels are canonicalized, and kind-specific required
// fields are checked.
func Decode(data []byte) (Message, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var m Message
	if err := dec.Decode(&m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if dec.More() {
		return Message{}, fmt.Errorf("decode message: trailing data after %s", m.Kind)
	}

	m.Label = CanonicalLabel(m.Label)
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Validate checks the kind and its required fields.
func (m *Message) Validate() error {
	switch m.Kind {
	case KindHello, KindWelcome, KindResign:
		if m.Federate == "" {
			return fmt.Errorf("%s message requires a federate name", m.Kind)
		}
	case KindRegister, KindAchieve:
		if m.Federate == "" {
			return fmt.Errorf("%s message requires a federate name", m.Kind)
		}
		if err := ValidateLabel(m.Label); err != nil {
			return fmt.Errorf("%s message: %w", m.Kind, err)
		}
	case KindAnnounce, KindSynchronized:
		if err := ValidateLabel(m.Label); err != nil {
			return fmt.Errorf("%s message: %w", m.Kind, err)
		}
	case KindError:
		if m.Code == "" {
			return fmt.Errorf("error message requires a code")
		}
	default:
		return fmt.Errorf("unknown message kind %q", m.Kind)
	}
	return nil
}
