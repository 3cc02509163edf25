package app

import (
	"testing"

	"github.com/bft-labs/ylog/internal/domain"
)

func TestBatcher_FillsToLimit(t *testing.T) {
	b := NewBatcher(2)

	if b.HasPending() {
		t.Error("new batcher has pending submissions")
	}
	if full := b.Add(domain.Submission{Sequence: 1}); full {
		t.Error("Add() reported full after 1 of 2")
	}
	if full := b.Add(domain.Submission{Sequence: 2}); !full {
		t.Error("Add() did not report full after 2 of 2")
	}
	if got := b.Batch().Last().Sequence; got != 2 {
		t.Errorf("Last().Sequence = %d, want 2", got)
	}

	b.Reset()
	if b.HasPending() || b.Full() {
		t.Error("Reset() left submissions behind")
	}
}

func TestBatcher_NonPositiveLimit(t *testing.T) {
	b := NewBatcher(0)
	if !b.Add(domain.Submission{Sequence: 1}) {
		t.Error("zero limit should mean one submission per batch")
	}
}
