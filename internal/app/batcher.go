package app

import "github.com/bft-labs/ylog/internal/domain"

// Batcher groups queued submissions so one logsheet bracket covers
// everything that was waiting when the consumer woke up.
type Batcher struct {
	batch      *domain.Batch
	maxRecords int
}

// NewBatcher creates a batcher holding at most maxRecords submissions.
// A non-positive limit means one submission per batch.
func NewBatcher(maxRecords int) *Batcher {
	if maxRecords <= 0 {
		maxRecords = 1
	}
	return &Batcher{
		batch:      domain.NewBatch(),
		maxRecords: maxRecords,
	}
}

// Add appends a submission. Returns true once the batch is full.
func (b *Batcher) Add(s domain.Submission) bool {
	b.batch.Add(s)
	return b.Full()
}

// Full returns true if no more submissions fit.
func (b *Batcher) Full() bool {
	return b.batch.Size() >= b.maxRecords
}

// Batch returns the current batch.
func (b *Batcher) Batch() *domain.Batch {
	return b.batch
}

// Reset clears the batch.
func (b *Batcher) Reset() {
	b.batch.Reset()
}

// HasPending returns true if there are submissions waiting to be persisted.
func (b *Batcher) HasPending() bool {
	return !b.batch.Empty()
}
