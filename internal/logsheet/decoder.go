package logsheet

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/ylog/internal/domain"
)

const fieldCount = 11

// Sheet is one decoded bracket.
type Sheet struct {
	Contacts []domain.Contact
}

// ParseError reports a problem at a specific line of a logsheet.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("logsheet line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseLine parses a single record line as written by FormatLine.
// Timestamps have minute precision.
func ParseLine(line string) (domain.Contact, error) {
	parts := strings.Split(strings.TrimRight(line, "\r\n"), " ")
	if len(parts) != fieldCount {
		return domain.Contact{}, fmt.Errorf("want %d fields, got %d", fieldCount, len(parts))
	}

	ts, err := time.ParseInLocation(dateLayout+" "+timeLayout, parts[0]+" "+parts[1], time.UTC)
	if err != nil {
		return domain.Contact{}, fmt.Errorf("parse timestamp: %w", err)
	}
	score, err := strconv.Atoi(parts[10])
	if err != nil {
		return domain.Contact{}, fmt.Errorf("parse score: %w", err)
	}

	return domain.NewContact(domain.ContactFields{
		Timestamp:        ts,
		Band:             parts[2],
		Mode:             parts[3],
		Callsign:         parts[4],
		SentReport:       parts[5],
		SentExchange:     parts[6],
		ReceivedReport:   parts[7],
		ReceivedExchange: parts[8],
		Multiplier:       parts[9],
		Score:            score,
	})
}

// Decode reads every bracket in r, in file order. A file that ends inside
// a bracket (for example after an interrupted append) is an error, but the
// sheets decoded before it are still returned.
func Decode(r io.Reader) ([]Sheet, error) {
	var (
		sheets  []Sheet
		current *Sheet
		lineNo  int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")

		switch {
		case line == strings.TrimSuffix(Header, "\n"):
			if current != nil {
				return sheets, &ParseError{Line: lineNo, Err: fmt.Errorf("header inside open bracket")}
			}
			current = &Sheet{}
		case line == strings.TrimSpace(Trailer):
			if current == nil {
				return sheets, &ParseError{Line: lineNo, Err: fmt.Errorf("trailer without header")}
			}
			sheets = append(sheets, *current)
			current = nil
		case line == "":
			// blank separator before the trailer
		default:
			if current == nil {
				return sheets, &ParseError{Line: lineNo, Err: fmt.Errorf("record outside bracket")}
			}
			c, err := ParseLine(line)
			if err != nil {
				return sheets, &ParseError{Line: lineNo, Err: err}
			}
			current.Contacts = append(current.Contacts, c)
		}
	}
	if err := scanner.Err(); err != nil {
		return sheets, err
	}
	if current != nil {
		return sheets, &ParseError{Line: lineNo, Err: fmt.Errorf("unterminated bracket")}
	}
	return sheets, nil
}

// DecodeAll flattens every bracket in r into one slice, in file order.
func DecodeAll(r io.Reader) ([]domain.Contact, error) {
	sheets, err := Decode(r)
	var out []domain.Contact
	for _, s := range sheets {
		out = append(out, s.Contacts...)
	}
	return out, err
}
