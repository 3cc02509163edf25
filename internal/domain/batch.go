package domain

import "time"

// Submission is a contact accepted by the relay hub.
// Sequence ids are assigned in acceptance order. A restarted hub continues
// after the last id recorded in the relay State, so ids are not reused as
// long as the state file could be written after every batch.
type Submission struct {
	// Sequence is the hub-assigned id, starting at 1
	Sequence uint64

	// Contact is the validated record
	Contact Contact

	// Supersedes is the sequence id this contact corrects, or 0
	Supersedes uint64

	// Origin is the id of the submitting connection
	Origin string

	// Ref is the submitter's correlation token, echoed on ack/error
	Ref string

	// AcceptedAt is when the hub queued the submission
	AcceptedAt time.Time
}

// Batch is an aggregate of submissions persisted together as one logsheet bracket.
type Batch struct {
	Submissions []Submission
}

// NewBatch creates a new empty batch.
func NewBatch() *Batch {
	return &Batch{
		Submissions: make([]Submission, 0),
	}
}

// Add appends a submission to the batch.
func (b *Batch) Add(s Submission) {
	b.Submissions = append(b.Submissions, s)
}

// Size returns the number of submissions in the batch.
func (b *Batch) Size() int {
	return len(b.Submissions)
}

// Empty returns true if the batch has no submissions.
func (b *Batch) Empty() bool {
	return len(b.Submissions) == 0
}

// Reset clears the batch for reuse.
func (b *Batch) Reset() {
	b.Submissions = b.Submissions[:0]
}

// Contacts returns the batch records in acceptance order.
func (b *Batch) Contacts() []Contact {
	out := make([]Contact, len(b.Submissions))
	for i, s := range b.Submissions {
		out[i] = s.Contact
	}
	return out
}

// Last returns the last submission in the batch, or nil if empty.
func (b *Batch) Last() *Submission {
	if len(b.Submissions) == 0 {
		return nil
	}
	return &b.Submissions[len(b.Submissions)-1]
}
