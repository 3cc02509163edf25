package domain

import (
	"strings"
	"time"
	"unicode"
)

// Common operating modes. Any non-empty token is accepted.
const (
	ModeSSB  = "SSB"
	ModeCW   = "CW"
	ModeFM   = "FM"
	ModeRTTY = "RTTY"
)

// Field names used in violations and on the wire.
const (
	FieldTimestamp        = "timestamp"
	FieldBand             = "band"
	FieldMode             = "mode"
	FieldCallsign         = "callsign"
	FieldSentReport       = "sent_report"
	FieldSentExchange     = "sent_exchange"
	FieldReceivedReport   = "received_report"
	FieldReceivedExchange = "received_exchange"
	FieldMultiplier       = "multiplier"
	FieldScore            = "score"
	FieldSupersedes       = "supersedes"
)

// ContactFields is the unvalidated form of a contact, as submitted by a
// station or read back from a logsheet.
type ContactFields struct {
	Timestamp        time.Time `json:"timestamp"`
	Band             string    `json:"band"`
	Mode             string    `json:"mode"`
	Callsign         string    `json:"callsign"`
	SentReport       string    `json:"sent_report"`
	SentExchange     string    `json:"sent_exchange"`
	ReceivedReport   string    `json:"received_report"`
	ReceivedExchange string    `json:"received_exchange"`
	Multiplier       string    `json:"multiplier"`
	Score            int       `json:"score"`
}

// Contact is one logged contest contact. It is immutable: corrections are
// new contacts submitted with a supersedes marker.
type Contact struct {
	timestamp        time.Time
	band             string
	mode             string
	callsign         string
	sentReport       string
	sentExchange     string
	receivedReport   string
	receivedExchange string
	multiplier       string
	score            int
}

// NewContact validates f and returns the resulting contact.
//
// The timestamp is converted to UTC and truncated to the second; callsign and
// mode are upper-cased. Every string field must be non-empty and free of
// whitespace, and score must be >= 0. On failure the returned
// *InvalidRecordError lists every violated field.
func NewContact(f ContactFields) (Contact, error) {
	var violations []Violation

	if f.Timestamp.IsZero() {
		violations = append(violations, Violation{Field: FieldTimestamp, Reason: "must be set"})
	}

	c := Contact{
		timestamp:        f.Timestamp.UTC().Truncate(time.Second),
		band:             strings.TrimSpace(f.Band),
		mode:             strings.ToUpper(strings.TrimSpace(f.Mode)),
		callsign:         strings.ToUpper(strings.TrimSpace(f.Callsign)),
		sentReport:       strings.TrimSpace(f.SentReport),
		sentExchange:     strings.TrimSpace(f.SentExchange),
		receivedReport:   strings.TrimSpace(f.ReceivedReport),
		receivedExchange: strings.TrimSpace(f.ReceivedExchange),
		multiplier:       strings.TrimSpace(f.Multiplier),
		score:            f.Score,
	}

	tokens := []struct {
		field string
		value string
	}{
		{FieldBand, c.band},
		{FieldMode, c.mode},
		{FieldCallsign, c.callsign},
		{FieldSentReport, c.sentReport},
		{FieldSentExchange, c.sentExchange},
		{FieldReceivedReport, c.receivedReport},
		{FieldReceivedExchange, c.receivedExchange},
		{FieldMultiplier, c.multiplier},
	}
	for _, tok := range tokens {
		if v, ok := checkToken(tok.field, tok.value); !ok {
			violations = append(violations, v)
		}
	}

	if f.Score < 0 {
		violations = append(violations, Violation{Field: FieldScore, Reason: "must be >= 0"})
	}

	if len(violations) > 0 {
		return Contact{}, &InvalidRecordError{Violations: violations}
	}
	return c, nil
}

// checkToken enforces the logsheet token rules: non-empty, single word.
func checkToken(field, value string) (Violation, bool) {
	if value == "" {
		return Violation{Field: field, Reason: "must not be empty"}, false
	}
	if strings.IndexFunc(value, unicode.IsSpace) >= 0 {
		return Violation{Field: field, Reason: "must not contain whitespace"}, false
	}
	return Violation{}, true
}

// Timestamp returns the contact time in UTC.
func (c Contact) Timestamp() time.Time { return c.timestamp }

func (c Contact) Band() string             { return c.band }
func (c Contact) Mode() string             { return c.mode }
func (c Contact) Callsign() string         { return c.callsign }
func (c Contact) SentReport() string       { return c.sentReport }
func (c Contact) SentExchange() string     { return c.sentExchange }
func (c Contact) ReceivedReport() string   { return c.receivedReport }
func (c Contact) ReceivedExchange() string { return c.receivedExchange }
func (c Contact) Multiplier() string       { return c.multiplier }
func (c Contact) Score() int               { return c.score }

// IsZero reports whether c is the zero Contact (never produced by NewContact).
func (c Contact) IsZero() bool {
	return c.callsign == ""
}

// Fields returns the contact as a ContactFields value for serialization.
func (c Contact) Fields() ContactFields {
	return ContactFields{
		Timestamp:        c.timestamp,
		Band:             c.band,
		Mode:             c.mode,
		Callsign:         c.callsign,
		SentReport:       c.sentReport,
		SentExchange:     c.sentExchange,
		ReceivedReport:   c.receivedReport,
		ReceivedExchange: c.receivedExchange,
		Multiplier:       c.multiplier,
		Score:            c.score,
	}
}
