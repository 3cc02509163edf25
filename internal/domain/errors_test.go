package domain

import (
	"errors"
	"io"
	"testing"
)

func TestOpError_Is(t *testing.T) {
	tests := []struct {
		name   string
		kind   ErrorKind
		target error
		want   bool
	}{
		{"sink matches sink", KindSinkUnavailable, ErrSinkUnavailable, true},
		{"malformed matches malformed", KindMalformedMessage, ErrMalformedMessage, true},
		{"invalid matches invalid", KindInvalidRecord, ErrInvalidRecord, true},
		{"sink does not match malformed", KindSinkUnavailable, ErrMalformedMessage, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &OpError{Op: "test", Kind: tt.kind, Err: io.ErrShortWrite}
			if got := errors.Is(err, tt.target); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
			if !errors.Is(err, io.ErrShortWrite) {
				t.Error("OpError does not unwrap to the cause")
			}
		})
	}
}

func TestOpError_Error(t *testing.T) {
	err := &OpError{Op: "append", Kind: KindSinkUnavailable, Path: "/tmp/x", Err: io.ErrClosedPipe}
	want := "append: sink_unavailable (path=/tmp/x): io: read/write on closed pipe"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	var nilErr *OpError
	if nilErr.Error() != "<nil>" {
		t.Errorf("nil Error() = %q", nilErr.Error())
	}
}

func TestSinkUnavailable(t *testing.T) {
	if SinkUnavailable("op", "p", nil) != nil {
		t.Error("SinkUnavailable(nil) != nil")
	}

	first := SinkUnavailable("open", "a", io.EOF)
	if !errors.Is(first, ErrSinkUnavailable) {
		t.Fatalf("errors.Is(first, ErrSinkUnavailable) = false")
	}
	if second := SinkUnavailable("append", "b", first); second != first {
		t.Errorf("already-wrapped error was wrapped again: %v", second)
	}
}

func TestConnState_Transitions(t *testing.T) {
	tests := []struct {
		from, to ConnState
		want     bool
	}{
		{ConnConnecting, ConnOpen, true},
		{ConnConnecting, ConnClosed, true},
		{ConnOpen, ConnClosing, true},
		{ConnOpen, ConnConnecting, false},
		{ConnClosing, ConnClosed, true},
		{ConnClosing, ConnOpen, false},
		{ConnClosed, ConnOpen, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
	if !ConnOpen.Deliverable() || ConnClosing.Deliverable() {
		t.Error("only Open connections are deliverable")
	}
	if ConnState(42).String() != "Unknown" {
		t.Errorf("ConnState(42).String() = %q", ConnState(42).String())
	}
}

func TestState_UpdateAfterPersist(t *testing.T) {
	var s State
	if !s.IsEmpty() {
		t.Fatal("zero State is not empty")
	}
	s.UpdateAfterPersist(4, 2)
	s.UpdateAfterPersist(3, 1)
	if s.LastSequence != 4 {
		t.Errorf("LastSequence = %d, want 4", s.LastSequence)
	}
	if s.Records != 3 {
		t.Errorf("Records = %d, want 3", s.Records)
	}
	if s.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}
}

func TestState_UpdateAfterFailure(t *testing.T) {
	var s State
	s.UpdateAfterPersist(2, 2)
	s.UpdateAfterFailure(5)
	if s.LastSequence != 5 {
		t.Errorf("LastSequence = %d, want 5", s.LastSequence)
	}
	if s.Records != 2 {
		t.Errorf("Records = %d, want 2 (failed batches are not counted)", s.Records)
	}
}
