package pdfchat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"pdfchat/internal/model"
)

// ApologyText is the assistant reply recorded when a query fails.
const ApologyText = "Sorry, something went wrong. Please try again."

// ConversationState is the state of the active conversation.
type ConversationState int

const (
	NoSelection ConversationState = iota
	AwaitingReadiness
	LoadingHistory
	Ready
	Sending
)

func (s ConversationState) String() string {
	switch s {
	case NoSelection:
		return "no-selection"
	case AwaitingReadiness:
		return "awaiting-readiness"
	case LoadingHistory:
		return "loading-history"
	case Ready:
		return "ready"
	case Sending:
		return "sending"
	default:
		return fmt.Sprintf("ConversationState(%d)", int(s))
	}
}

// SelectOptions modifies how a document is selected.
type SelectOptions struct {
	// NewConversation starts from an empty transcript instead of loading history.
	NewConversation bool
}

// Snapshot is an immutable copy of the conversation state.
type Snapshot struct {
	State    ConversationState
	Document *model.Document
	Messages []model.Message
}

// Conversation is the state machine for the currently selected document.
// At most one conversation is active; selecting a document or starting a new
// conversation discards the previous transcript in memory.
//
// The mutex is never held across a network call. Every selection bumps
// generation, and results of calls started under an older generation are
// dropped instead of applied.
type Conversation struct {
	backend ConversationBackend
	logger  Logger
	clock   Clock

	mu          sync.Mutex
	state       ConversationState
	doc         *model.Document
	messages    []model.Message
	generation  uint64
	subscribers map[int]func(Snapshot)
	nextSubID   int
}

// NewConversation creates a Conversation with nothing selected.
func NewConversation(backend ConversationBackend, logger Logger, clock Clock) *Conversation {
	return &Conversation{
		backend:     backend,
		logger:      logger,
		clock:       clock,
		state:       NoSelection,
		subscribers: make(map[int]func(Snapshot)),
	}
}

// Snapshot returns a copy of the current state.
func (c *Conversation) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// State returns the current state.
func (c *Conversation) State() ConversationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SelectedFileID returns the selected document's id, or "" when nothing is selected.
func (c *Conversation) SelectedFileID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doc == nil {
		return ""
	}
	return c.doc.FileID
}

// Subscribe registers fn to be called with a snapshot after every state change.
// fn runs on the goroutine that caused the change and must not block.
func (c *Conversation) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

// Select makes doc the active document.
//
// With opts.NewConversation the transcript starts empty and no history is
// fetched. Otherwise the most recent server conversation is adopted; a failed
// fetch degrades to an empty transcript and is only logged.
//
// If another selection happens while history is loading, the stale response
// is discarded and ErrSelectionChanged is returned.
func (c *Conversation) Select(ctx context.Context, doc model.Document, opts SelectOptions) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	selected := doc
	c.doc = &selected
	c.messages = nil
	if opts.NewConversation {
		c.state = c.restingStateLocked()
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)
		c.logger.Debug("new conversation selected", "file_id", doc.FileID)
		return nil
	}
	c.state = LoadingHistory
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)

	messages := c.loadLatest(ctx, doc.FileID)

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		c.logger.Debug("discarding stale history", "file_id", doc.FileID)
		return ErrSelectionChanged
	}
	c.messages = messages
	c.state = c.restingStateLocked()
	snap = c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
	return nil
}

// loadLatest fetches history and returns the messages of the most recent
// conversation. The backend returns conversations in creation order, so the
// last element wins.
func (c *Conversation) loadLatest(ctx context.Context, fileID string) []model.Message {
	conversations, err := c.backend.History(ctx, fileID)
	if err != nil {
		c.logger.Warn("loading history failed", "file_id", fileID, "error", err)
		return nil
	}
	if len(conversations) == 0 {
		return nil
	}
	latest := conversations[len(conversations)-1].Messages
	return append([]model.Message(nil), latest...)
}

// Send asks a question about the selected document.
//
// The user message is appended before the network call starts. On success the
// assistant's answer is appended; on failure an error-flagged apology is
// appended instead and the returned error stays nil. The user message is
// never rolled back.
//
// Send rejects without touching the transcript when nothing is selected, the
// text is blank, the document is not indexed, or another Send or a history
// load is in flight. Concurrent sends are rejected, not queued.
func (c *Conversation) Send(ctx context.Context, text string) (model.Message, error) {
	query := strings.TrimSpace(text)

	c.mu.Lock()
	switch {
	case c.doc == nil:
		c.mu.Unlock()
		return model.Message{}, ErrNoSelection
	case query == "":
		c.mu.Unlock()
		return model.Message{}, ErrEmptyQuery
	case c.state == Sending || c.state == LoadingHistory:
		c.mu.Unlock()
		return model.Message{}, ErrBusy
	case !c.doc.Indexed:
		c.mu.Unlock()
		return model.Message{}, ErrNotReady
	}

	gen := c.generation
	fileID := c.doc.FileID
	c.messages = append(c.messages, model.Message{
		Role:      model.RoleUser,
		Content:   query,
		Timestamp: model.NewTimestamp(c.clock.Now()),
	})
	c.state = Sending
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)

	answer, err := c.backend.Query(ctx, fileID, query)

	reply := model.Message{
		Role:      model.RoleAssistant,
		Content:   answer,
		Timestamp: model.NewTimestamp(c.clock.Now()),
	}
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			c.logger.Info("query rejected: session expired", "file_id", fileID)
		} else {
			c.logger.Warn("query failed", "file_id", fileID, "error", err)
		}
		reply.Content = ApologyText
		reply.Error = true
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		c.logger.Debug("discarding reply for previous selection", "file_id", fileID)
		return reply, ErrSelectionChanged
	}
	c.messages = append(c.messages, reply)
	c.state = c.restingStateLocked()
	snap = c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)

	return reply, nil
}

// Observe applies a fresher server record for the selected document.
// Records for other documents are ignored. Readiness changes move the
// conversation between AwaitingReadiness and Ready.
func (c *Conversation) Observe(doc model.Document) {
	c.mu.Lock()
	if c.doc == nil || c.doc.FileID != doc.FileID {
		c.mu.Unlock()
		return
	}
	changed := *c.doc != doc
	*c.doc = doc
	if c.state == AwaitingReadiness || c.state == Ready {
		next := c.restingStateLocked()
		changed = changed || next != c.state
		c.state = next
	}
	if !changed {
		c.mu.Unlock()
		return
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// ClearSelection drops the selected document and its transcript.
// In-flight history loads and sends for it are discarded when they complete.
func (c *Conversation) ClearSelection() {
	c.mu.Lock()
	c.generation++
	c.doc = nil
	c.messages = nil
	c.state = NoSelection
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// restingStateLocked is the state a selected document settles into between operations.
func (c *Conversation) restingStateLocked() ConversationState {
	if c.doc == nil {
		return NoSelection
	}
	if c.doc.Indexed {
		return Ready
	}
	return AwaitingReadiness
}

func (c *Conversation) snapshotLocked() Snapshot {
	snap := Snapshot{State: c.state}
	if c.doc != nil {
		d := *c.doc
		snap.Document = &d
	}
	snap.Messages = append([]model.Message(nil), c.messages...)
	return snap
}

func (c *Conversation) notify(snap Snapshot) {
	c.mu.Lock()
	fns := make([]func(Snapshot), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
