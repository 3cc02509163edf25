package logsheet

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bft-labs/ylog/internal/domain"
)

func mustContact(t *testing.T, callsign string, ts time.Time) domain.Contact {
	t.Helper()
	c, err := domain.NewContact(domain.ContactFields{
		Timestamp:        ts,
		Band:             "50",
		Mode:             "SSB",
		Callsign:         callsign,
		SentReport:       "59",
		SentExchange:     "13M",
		ReceivedReport:   "59",
		ReceivedExchange: "20M",
		Multiplier:       "20",
		Score:            2,
	})
	if err != nil {
		t.Fatalf("NewContact(%s) error = %v", callsign, err)
	}
	return c
}

// memorySink records every Append.
type memorySink struct {
	appends [][]byte
	err     error
}

func (s *memorySink) Append(ctx context.Context, p []byte) error {
	if s.err != nil {
		return s.err
	}
	s.appends = append(s.appends, append([]byte(nil), p...))
	return nil
}

func TestFormatLine(t *testing.T) {
	c := mustContact(t, "JA1YXP", time.Date(2023, 10, 8, 14, 5, 0, 0, time.UTC))

	want := "2023-10-08 14:05 50 SSB JA1YXP 59 13M 59 20M 20 2"
	if got := FormatLine(c); got != want {
		t.Errorf("FormatLine() = %q, want %q", got, want)
	}
}

func TestEncode_Bracket(t *testing.T) {
	ts := time.Date(2023, 10, 8, 14, 5, 0, 0, time.UTC)
	contacts := []domain.Contact{
		mustContact(t, "JA1YXP", ts.Add(time.Minute)),
		mustContact(t, "JA1ZGP", ts),
	}

	var buf bytes.Buffer
	if err := Encode(&buf, contacts); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	want := "<LOGSHEET TYPE=ylog>\n" +
		"2023-10-08 14:06 50 SSB JA1YXP 59 13M 59 20M 20 2\n" +
		"2023-10-08 14:05 50 SSB JA1ZGP 59 13M 59 20M 20 2\n" +
		"\n</LOGSHEET>\n"
	if buf.String() != want {
		t.Errorf("Encode() =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestEncode_Empty(t *testing.T) {
	if got := string(Render(nil)); got != Header+Trailer {
		t.Errorf("Render(nil) = %q", got)
	}
}

func TestEncodeAndAppend(t *testing.T) {
	sink := &memorySink{}
	c := mustContact(t, "JA1YXP", time.Date(2023, 10, 8, 14, 5, 0, 0, time.UTC))

	if err := EncodeAndAppend(context.Background(), sink, []domain.Contact{c}); err != nil {
		t.Fatalf("EncodeAndAppend() error = %v", err)
	}
	if len(sink.appends) != 1 {
		t.Fatalf("got %d appends, want exactly one", len(sink.appends))
	}
	if !strings.Contains(string(sink.appends[0]), "\n2023-10-08 14:05 50 SSB JA1YXP 59 13M 59 20M 20 2\n") {
		t.Errorf("append = %q", sink.appends[0])
	}
}

func TestEncodeAndAppend_SinkUnavailable(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}

	err := EncodeAndAppend(context.Background(), sink, nil)
	if !errors.Is(err, domain.ErrSinkUnavailable) {
		t.Fatalf("EncodeAndAppend() error = %v, want ErrSinkUnavailable", err)
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("error lost its cause: %v", err)
	}
}

func TestSortChronological(t *testing.T) {
	ts := time.Date(2023, 10, 8, 14, 5, 0, 0, time.UTC)
	late := mustContact(t, "LATE", ts.Add(time.Hour))
	early := mustContact(t, "EARLY", ts)
	alsoEarly := mustContact(t, "ALSO", ts)
	in := []domain.Contact{late, early, alsoEarly}

	out := SortChronological(in)

	got := []string{out[0].Callsign(), out[1].Callsign(), out[2].Callsign()}
	want := []string{"EARLY", "ALSO", "LATE"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortChronological() = %v, want %v", got, want)
		}
	}
	if in[0].Callsign() != "LATE" {
		t.Error("SortChronological reordered its input")
	}
}
