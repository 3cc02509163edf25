package ylog

import (
	"io"

	"github.com/bft-labs/ylog/internal/domain"
	"github.com/bft-labs/ylog/internal/logsheet"
	"github.com/bft-labs/ylog/internal/relay"
)

// Contact is one validated contest contact.
type Contact = domain.Contact

// ContactFields is the unvalidated form of a contact.
type ContactFields = domain.ContactFields

// InvalidRecordError lists every violated field of a rejected contact.
type InvalidRecordError = domain.InvalidRecordError

// Message is a relay wire message.
type Message = relay.Message

// Sentinel errors, for use with errors.Is.
var (
	ErrInvalidRecord    = domain.ErrInvalidRecord
	ErrSinkUnavailable  = domain.ErrSinkUnavailable
	ErrMalformedMessage = domain.ErrMalformedMessage
	ErrAlreadyRunning   = domain.ErrAlreadyRunning
	ErrNotRunning       = domain.ErrNotRunning
	ErrShutdownTimeout  = domain.ErrShutdownTimeout
	ErrInvalidConfig    = domain.ErrInvalidConfig
)

// NewContact validates f.
func NewContact(f ContactFields) (Contact, error) {
	return domain.NewContact(f)
}

// EncodeLogsheet writes contacts as one logsheet bracket.
func EncodeLogsheet(w io.Writer, contacts []Contact) error {
	return logsheet.Encode(w, contacts)
}

// DecodeLogsheet reads every contact from every bracket in r.
func DecodeLogsheet(r io.Reader) ([]Contact, error) {
	return logsheet.DecodeAll(r)
}
