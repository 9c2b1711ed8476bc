package app

import (
	"testing"
	"time"
)

func TestNewOperation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2024, 3, 9, 18, 4, 5, 0, loc)

	op := NewOperation("Ask", now)

	if op.Name != "Ask" {
		t.Errorf("Name = %q, want %q", op.Name, "Ask")
	}
	if op.ID != "20240309T160405Z" {
		t.Errorf("ID = %q, want %q", op.ID, "20240309T160405Z")
	}
	if !op.StartedAt.Equal(now) || op.StartedAt.Location() != time.UTC {
		t.Errorf("StartedAt = %v, want %v in UTC", op.StartedAt, now)
	}
	if got := op.Elapsed(now.Add(1500 * time.Millisecond)); got != 1500*time.Millisecond {
		t.Errorf("Elapsed() = %v, want 1.5s", got)
	}
}
