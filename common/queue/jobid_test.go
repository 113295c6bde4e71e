package queue

import (
	"errors"
	"testing"
)

func TestJobIDs(t *testing.T) {
	if got := GenerationJobID(42); got != "gen-42" {
		t.Errorf("GenerationJobID(42) = %q", got)
	}
	if got := OrderJobID(7); got != "order-7" {
		t.Errorf("OrderJobID(7) = %q", got)
	}

	// Deterministic: same input, same ID.
	if GenerationJobID(42) != GenerationJobID(42) {
		t.Error("job IDs must be deterministic")
	}
}

func TestParseJobID(t *testing.T) {
	tests := []struct {
		in       string
		wantKind string
		wantID   int64
		wantErr  bool
	}{
		{"gen-42", KindGeneration, 42, false},
		{"order-7", KindOrder, 7, false},
		{"gen-", "", 0, true},
		{"gen", "", 0, true},
		{"task-5", "", 0, true},
		{"gen-abc", "", 0, true},
		{"gen-0", "", 0, true},
		{"gen--3", "", 0, true},
		{"", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			kind, id, err := ParseJobID(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				if !errors.Is(err, ErrInvalidJobID) {
					t.Errorf("expected ErrInvalidJobID, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if kind != tt.wantKind || id != tt.wantID {
				t.Errorf("ParseJobID(%q) = (%q, %d), want (%q, %d)", tt.in, kind, id, tt.wantKind, tt.wantID)
			}
		})
	}
}

func TestParseJobIDRoundTrip(t *testing.T) {
	for _, id := range []int64{1, 42, 999999} {
		kind, parsed, err := ParseJobID(GenerationJobID(id))
		if err != nil || kind != KindGeneration || parsed != id {
			t.Errorf("round trip failed for %d: kind=%q id=%d err=%v", id, kind, parsed, err)
		}
	}
}
