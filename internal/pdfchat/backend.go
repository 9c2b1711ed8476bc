package pdfchat

import (
	"context"
	"io"

	"pdfchat/internal/model"
)

// CredentialStore holds the single bearer credential for this client installation.
// It is pure storage: no network access and no validation of the token's shape.
// Values persist across process restarts; Clear removes the persisted value.
type CredentialStore interface {
	// Get returns the stored token. ok is false when no credential is stored.
	Get() (token string, ok bool, err error)

	// Set replaces the stored token.
	Set(token string) error

	// Clear removes the stored token. Clearing an empty store is not an error.
	Clear() error
}

// AuthBackend is the subset of the backend used by AuthSession.
type AuthBackend interface {
	// Signup registers a new account. The response body is returned undecoded
	// beyond generic JSON since its shape is backend-defined.
	Signup(ctx context.Context, email, password string) (map[string]any, error)

	// Login exchanges credentials for a bearer token.
	Login(ctx context.Context, email, password string) (string, error)

	// Logout ends the session server-side.
	Logout(ctx context.Context) error

	// Me resolves the identity bound to the current credential.
	Me(ctx context.Context) (*model.Identity, error)
}

// CatalogBackend is the subset of the backend used by Catalog.
type CatalogBackend interface {
	// ListDocuments returns every document known to the server for this user.
	ListDocuments(ctx context.Context) ([]model.Document, error)

	// DeleteDocument removes a document and its history server-side.
	DeleteDocument(ctx context.Context, fileID string) error

	// NewConversation opens a fresh conversation slot for a document.
	NewConversation(ctx context.Context, fileID string) error
}

// ConversationBackend is the subset of the backend used by Conversation.
type ConversationBackend interface {
	// History returns the document's conversations, ordered oldest to newest.
	History(ctx context.Context, fileID string) ([]model.ConversationRecord, error)

	// Query asks a question about a document and returns the answer text.
	Query(ctx context.Context, fileID, query string) (string, error)
}

// UploadBackend is the subset of the backend used by Uploader.
type UploadBackend interface {
	// Upload submits a new document and returns the created record.
	Upload(ctx context.Context, filename string, r io.Reader) (*model.Document, error)
}

// Backend is the full set of endpoints the session components consume.
type Backend interface {
	AuthBackend
	CatalogBackend
	ConversationBackend
	UploadBackend
}

// Navigator moves the user to the unauthenticated entry point.
// It is triggered when the credential is found to be invalid.
type Navigator interface {
	ToLogin()
}

// Confirmer gates irreversible actions behind a user decision.
type Confirmer interface {
	Confirm(prompt string) bool
}
