// Package logsheet renders contacts into the ylog logsheet text format and
// parses it back.
//
// A logsheet bracket is:
//
//	<LOGSHEET TYPE=ylog>
//	2023-10-08 14:05 50 SSB JA1YXP 59 13M 59 20M 20 2
//	...
//
//	</LOGSHEET>
//
// Each record line holds, space separated: date, time (UTC, minute
// precision), band, mode, callsign, sent report, sent exchange, received
// report, received exchange, multiplier and score.
package logsheet

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/bft-labs/ylog/internal/domain"
	"github.com/bft-labs/ylog/internal/ports"
)

const (
	// Header opens a bracket.
	Header = "<LOGSHEET TYPE=ylog>\n"

	// Trailer closes a bracket.
	Trailer = "\n</LOGSHEET>\n"

	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// FormatLine renders one record line without the trailing newline.
func FormatLine(c domain.Contact) string {
	ts := c.Timestamp().UTC()
	return strings.Join([]string{
		ts.Format(dateLayout),
		ts.Format(timeLayout),
		c.Band(),
		c.Mode(),
		c.Callsign(),
		c.SentReport(),
		c.SentExchange(),
		c.ReceivedReport(),
		c.ReceivedExchange(),
		c.Multiplier(),
		strconv.Itoa(c.Score()),
	}, " ")
}

// Encode writes one full bracket (header, records in the given order,
// trailer) to w.
func Encode(w io.Writer, contacts []domain.Contact) error {
	_, err := w.Write(Render(contacts))
	return err
}

// Render returns one full bracket as bytes.
func Render(contacts []domain.Contact) []byte {
	var buf bytes.Buffer
	buf.WriteString(Header)
	for _, c := range contacts {
		buf.WriteString(FormatLine(c))
		buf.WriteByte('\n')
	}
	buf.WriteString(Trailer)
	return buf.Bytes()
}

// EncodeAndAppend renders contacts as one bracket and appends it to sink in
// a single Append call. Failures are reported as domain.ErrSinkUnavailable.
// A failed append is not rolled back; retrying is up to the caller.
func EncodeAndAppend(ctx context.Context, sink ports.LogSink, contacts []domain.Contact) error {
	if err := sink.Append(ctx, Render(contacts)); err != nil {
		return domain.SinkUnavailable("append logsheet", "", err)
	}
	return nil
}

// SortChronological returns a copy of contacts stably sorted by timestamp.
// Contacts logged in the same minute keep their submission order.
func SortChronological(contacts []domain.Contact) []domain.Contact {
	out := make([]domain.Contact, len(contacts))
	copy(out, contacts)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp().Before(out[j].Timestamp())
	})
	return out
}
