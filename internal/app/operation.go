package app

import "time"

// Operation identifies one CLI invocation. Its ID tags every log line the
// invocation writes.
type Operation struct {
	Name      string
	ID        string
	StartedAt time.Time
}

// NewOperation creates an operation started at now. The ID is the UTC start
// time, so log lines of one command sort and group together.
func NewOperation(name string, now time.Time) *Operation {
	started := now.UTC()
	return &Operation{
		Name:      name,
		ID:        started.Format("20060102T150405Z"),
		StartedAt: started,
	}
}

// Elapsed returns the time since the operation started.
func (op *Operation) Elapsed(now time.Time) time.Duration {
	return now.Sub(op.StartedAt)
}
