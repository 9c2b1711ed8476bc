package pdfchat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pdfchat/internal/model"
)

// DeletePrompt is the question asked before a document is deleted.
const DeletePrompt = "Delete this PDF?"

// DefaultWaitInterval is used by WaitIndexed when the given interval is not positive.
const DefaultWaitInterval = 2 * time.Second

// Selection is the view of the active conversation that Catalog needs.
// Conversation implements it.
type Selection interface {
	SelectedFileID() string
	ClearSelection()
	Observe(doc model.Document)
}

// Catalog is the local list of documents and their readiness.
// The list is always replaced wholesale from the server; it is small and
// refreshed whenever a command needs it.
type Catalog struct {
	backend   CatalogBackend
	selection Selection
	logger    Logger

	mu   sync.Mutex
	docs []model.Document
}

// NewCatalog creates an empty Catalog. selection may be nil.
func NewCatalog(backend CatalogBackend, selection Selection, logger Logger) *Catalog {
	return &Catalog{
		backend:   backend,
		selection: selection,
		logger:    logger,
	}
}

// Documents returns a copy of the current list.
func (c *Catalog) Documents() []model.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Document(nil), c.docs...)
}

// Find returns the record with the given id.
func (c *Catalog) Find(fileID string) (model.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.docs {
		if d.FileID == fileID {
			return d, true
		}
	}
	return model.Document{}, false
}

// Refresh replaces the local list with the server's.
// On failure the list degrades to empty and the error, wrapping
// ErrTransientFetch, is returned for callers that want to report it.
func (c *Catalog) Refresh(ctx context.Context) error {
	docs, err := c.backend.ListDocuments(ctx)
	if err != nil {
		c.logger.Warn("listing documents failed", "error", err)
		c.mu.Lock()
		c.docs = nil
		c.mu.Unlock()
		return fmt.Errorf("%w: listing documents: %w", ErrTransientFetch, err)
	}

	c.mu.Lock()
	c.docs = append([]model.Document(nil), docs...)
	c.mu.Unlock()
	c.logger.Debug("documents refreshed", "count", len(docs))

	if c.selection != nil {
		if selected := c.selection.SelectedFileID(); selected != "" {
			if doc, ok := c.Find(selected); ok {
				c.selection.Observe(doc)
			}
		}
	}
	return nil
}

// Add inserts doc, replacing any record with the same id. New records are
// appended, matching the server's listing order.
func (c *Catalog) Add(doc model.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.docs {
		if c.docs[i].FileID == doc.FileID {
			c.docs[i] = doc
			return
		}
	}
	c.docs = append(c.docs, doc)
}

// Reset forgets every record. Used on logout.
func (c *Catalog) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = nil
}

// Delete removes a document after confirm approves it. A refusal returns
// ErrCancelled without any network call. On success the record is removed
// locally and, if it was selected, the selection is cleared.
func (c *Catalog) Delete(ctx context.Context, fileID string, confirm Confirmer) error {
	if confirm == nil || !confirm.Confirm(DeletePrompt) {
		return ErrCancelled
	}

	if err := c.backend.DeleteDocument(ctx, fileID); err != nil {
		c.logger.Warn("deleting document failed", "file_id", fileID, "error", err)
		return fmt.Errorf("deleting document %s: %w", fileID, err)
	}

	c.mu.Lock()
	kept := c.docs[:0]
	for _, d := range c.docs {
		if d.FileID != fileID {
			kept = append(kept, d)
		}
	}
	c.docs = kept
	c.mu.Unlock()

	if c.selection != nil && c.selection.SelectedFileID() == fileID {
		c.selection.ClearSelection()
	}

	c.logger.Info("document deleted", "file_id", fileID)
	return nil
}

// StartNewConversation opens a fresh conversation slot for the document and
// returns its record. The caller must then select it with
// SelectOptions{NewConversation: true} so that prior history is ignored.
func (c *Catalog) StartNewConversation(ctx context.Context, fileID string) (model.Document, error) {
	doc, err := c.lookup(ctx, fileID)
	if err != nil {
		return model.Document{}, err
	}

	if err := c.backend.NewConversation(ctx, fileID); err != nil {
		c.logger.Warn("starting new conversation failed", "file_id", fileID, "error", err)
		return model.Document{}, fmt.Errorf("starting new conversation for %s: %w", fileID, err)
	}

	c.logger.Info("new conversation started", "file_id", fileID)
	return doc, nil
}

// Resolve returns the record for fileID, refreshing once if it is not known locally.
func (c *Catalog) Resolve(ctx context.Context, fileID string) (model.Document, error) {
	return c.lookup(ctx, fileID)
}

func (c *Catalog) lookup(ctx context.Context, fileID string) (model.Document, error) {
	if doc, ok := c.Find(fileID); ok {
		return doc, nil
	}
	if err := c.Refresh(ctx); err != nil {
		return model.Document{}, err
	}
	if doc, ok := c.Find(fileID); ok {
		return doc, nil
	}
	return model.Document{}, fmt.Errorf("%w: %s", ErrUnknownDocument, fileID)
}

// WaitIndexed polls the server every interval until the document is indexed.
// Transient list failures are retried; an expired session, a vanished
// document or ctx ending stop the wait. A non-positive interval means
// DefaultWaitInterval.
func (c *Catalog) WaitIndexed(ctx context.Context, fileID string, interval time.Duration) (model.Document, error) {
	if interval <= 0 {
		interval = DefaultWaitInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := c.Refresh(ctx)
		switch {
		case err == nil:
			doc, ok := c.Find(fileID)
			if !ok {
				return model.Document{}, fmt.Errorf("%w: %s", ErrUnknownDocument, fileID)
			}
			if doc.Indexed {
				return doc, nil
			}
		case errors.Is(err, ErrSessionExpired), ctx.Err() != nil:
			return model.Document{}, err
		default:
			c.logger.Debug("retrying after list failure", "file_id", fileID)
		}

		select {
		case <-ctx.Done():
			return model.Document{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
