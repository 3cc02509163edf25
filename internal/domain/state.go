package domain

import "time"

// State is the persisted relay state. It lets sequence ids keep increasing
// across restarts of the same session.
type State struct {
	// LastSequence is the highest sequence id the hub has settled: appended
	// to the logsheet, or reported to its submitter as not persisted
	LastSequence uint64 `json:"last_sequence"`

	// Records is the number of contacts appended since the state was created
	Records uint64 `json:"records"`

	// UpdatedAt is the time of the last settled batch
	UpdatedAt time.Time `json:"updated_at"`
}

// IsEmpty returns true if the state has not been initialized.
func (s State) IsEmpty() bool {
	return s.LastSequence == 0 && s.Records == 0
}

// UpdateAfterPersist records a successfully appended batch.
func (s *State) UpdateAfterPersist(lastSequence uint64, records int) {
	if lastSequence > s.LastSequence {
		s.LastSequence = lastSequence
	}
	s.Records += uint64(records)
	s.UpdatedAt = time.Now().UTC()
}

// UpdateAfterFailure records a batch whose append failed. Its ids were
// already sent to the submitters in errors, so they stay used.
func (s *State) UpdateAfterFailure(lastSequence uint64) {
	if lastSequence > s.LastSequence {
		s.LastSequence = lastSequence
	}
	s.UpdatedAt = time.Now().UTC()
}
