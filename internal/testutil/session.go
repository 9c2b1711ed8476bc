package testutil

import (
	"sync"
	"sync/atomic"
)

// RecordingNavigator counts redirects to the login entry point.
type RecordingNavigator struct {
	count atomic.Int32
}

func NewRecordingNavigator() *RecordingNavigator {
	return &RecordingNavigator{}
}

func (n *RecordingNavigator) ToLogin() { n.count.Add(1) }

// Count returns the number of redirects so far.
func (n *RecordingNavigator) Count() int { return int(n.count.Load()) }

// StaticConfirmer answers every prompt with the same decision and records the prompts.
type StaticConfirmer struct {
	Answer bool

	mu      sync.Mutex
	prompts []string
}

func NewStaticConfirmer(answer bool) *StaticConfirmer {
	return &StaticConfirmer{Answer: answer}
}

func (c *StaticConfirmer) Confirm(prompt string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	return c.Answer
}

// Prompts returns every prompt asked so far.
func (c *StaticConfirmer) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}
