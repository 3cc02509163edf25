// Package relay defines the messages exchanged between stations and the
// relay hub, their JSON wire codec, and a WebSocket client.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bft-labs/ylog/internal/domain"
)

// Kind tags a relay message.
type Kind string

const (
	KindSubmit Kind = "submit"
	KindAck    Kind = "ack"
	KindError  Kind = "error"

	// KindPing keeps an idle connection alive. It is never answered.
	KindPing Kind = "ping"
)

// Error reasons sent to stations. Invalid records carry the validation
// message instead.
const (
	ReasonMalformed       = "malformed"
	ReasonSinkUnavailable = "sink unavailable"
	ReasonQueueFull       = "queue full"
	ReasonShuttingDown    = "hub shutting down"
)

// Message is the tagged union {Submit, Ack, Error} carried over the wire.
// Which fields are meaningful depends on Kind.
type Message struct {
	Kind Kind `json:"type"`

	// Ref is an optional client correlation token echoed on ack and error.
	Ref string `json:"ref,omitempty"`

	// Sequence is the hub-assigned id (ack; error after acceptance).
	Sequence uint64 `json:"sequence,omitempty"`

	// Supersedes is the sequence id a correction replaces (submit, ack).
	Supersedes uint64 `json:"supersedes,omitempty"`

	// Contact is the record (submit; ack echoes the accepted record).
	Contact *domain.ContactFields `json:"contact,omitempty"`

	// Reason explains an error.
	Reason string `json:"reason,omitempty"`
}

// NewSubmit builds a submission message. Supersedes is 0 for new contacts.
func NewSubmit(fields domain.ContactFields, supersedes uint64, ref string) Message {
	return Message{Kind: KindSubmit, Ref: ref, Supersedes: supersedes, Contact: &fields}
}

// NewAck builds the acknowledgement broadcast after s was persisted.
func NewAck(s domain.Submission) Message {
	fields := s.Contact.Fields()
	return Message{
		Kind:       KindAck,
		Ref:        s.Ref,
		Sequence:   s.Sequence,
		Supersedes: s.Supersedes,
		Contact:    &fields,
	}
}

// NewError builds an error notice. Sequence is 0 when the submission was
// never accepted.
func NewError(reason, ref string, sequence uint64) Message {
	return Message{Kind: KindError, Reason: reason, Ref: ref, Sequence: sequence}
}

// NewPing builds a keepalive message.
func NewPing() Message {
	return Message{Kind: KindPing}
}

// Encode serializes m as a JSON text frame.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a JSON frame. Any structural problem (bad JSON, wrong field
// types, unknown type tag, missing payload) is reported as
// domain.ErrMalformedMessage.
func Decode(raw []byte) (Message, error) {
	var m Message
	if len(raw) == 0 {
		return Message{}, domain.Malformed("decode", errors.New("empty frame"))
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, domain.Malformed("decode", err)
	}

	switch m.Kind {
	case KindSubmit:
		if m.Contact == nil {
			return Message{}, domain.Malformed("decode", errors.New("submit without contact"))
		}
	case KindAck:
		if m.Sequence == 0 {
			return Message{}, domain.Malformed("decode", errors.New("ack without sequence"))
		}
	case KindError:
		if m.Reason == "" {
			return Message{}, domain.Malformed("decode", errors.New("error without reason"))
		}
	case KindPing:
	default:
		return Message{}, domain.Malformed("decode", fmt.Errorf("unknown message type %q", m.Kind))
	}
	return m, nil
}
