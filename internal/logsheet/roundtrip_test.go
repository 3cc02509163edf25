package logsheet

import (
	"bytes"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/bft-labs/ylog/internal/domain"
)

// TestRoundTrip verifies that encoding then decoding recovers every field.
// Property: FormatLine(Decode(Encode(c))) == FormatLine(c) for any valid c
func TestRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("decode(encode(records)) preserves fields and order", prop.ForAll(
		func(tokens []string, score int, secs int64) bool {
			c, err := domain.NewContact(domain.ContactFields{
				Timestamp:        time.Unix(secs, 0),
				Band:             tokens[0],
				Mode:             tokens[1],
				Callsign:         tokens[2],
				SentReport:       tokens[3],
				SentExchange:     tokens[4],
				ReceivedReport:   tokens[5],
				ReceivedExchange: tokens[6],
				Multiplier:       tokens[7],
				Score:            score,
			})
			if err != nil {
				return false
			}
			records := []domain.Contact{c, c}

			var buf bytes.Buffer
			if err := Encode(&buf, records); err != nil {
				return false
			}
			decoded, err := DecodeAll(&buf)
			if err != nil || len(decoded) != len(records) {
				return false
			}

			for i := range records {
				want := records[i].Fields()
				got := decoded[i].Fields()
				if !got.Timestamp.Equal(want.Timestamp.Truncate(time.Minute)) {
					return false
				}
				got.Timestamp, want.Timestamp = time.Time{}, time.Time{}
				if got != want {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(8, gen.Identifier()),
		gen.IntRange(0, 100000),
		gen.Int64Range(0, 4102444800),
	))

	properties.TestingRun(t)
}
