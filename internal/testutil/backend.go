package testutil

import (
	"context"
	"io"
	"sync"

	"pdfchat/internal/model"
	"pdfchat/internal/pdfchat"
)

// FakeBackend is a scriptable pdfchat.Backend. Each endpoint delegates to its
// Func field when set and otherwise succeeds with a zero value. Every call is
// recorded by endpoint name so tests can assert that no request was made.
type FakeBackend struct {
	SignupFunc          func(ctx context.Context, email, password string) (map[string]any, error)
	LoginFunc           func(ctx context.Context, email, password string) (string, error)
	LogoutFunc          func(ctx context.Context) error
	MeFunc              func(ctx context.Context) (*model.Identity, error)
	UploadFunc          func(ctx context.Context, filename string, r io.Reader) (*model.Document, error)
	ListDocumentsFunc   func(ctx context.Context) ([]model.Document, error)
	QueryFunc           func(ctx context.Context, fileID, query string) (string, error)
	HistoryFunc         func(ctx context.Context, fileID string) ([]model.ConversationRecord, error)
	DeleteDocumentFunc  func(ctx context.Context, fileID string) error
	NewConversationFunc func(ctx context.Context, fileID string) error

	mu    sync.Mutex
	calls []string
}

var _ pdfchat.Backend = (*FakeBackend)(nil)

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{}
}

// Calls returns the endpoint names called so far, in order.
func (f *FakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount returns how many times the named endpoint was called.
func (f *FakeBackend) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *FakeBackend) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *FakeBackend) Signup(ctx context.Context, email, password string) (map[string]any, error) {
	f.record("Signup")
	if f.SignupFunc != nil {
		return f.SignupFunc(ctx, email, password)
	}
	return map[string]any{"email": email}, nil
}

func (f *FakeBackend) Login(ctx context.Context, email, password string) (string, error) {
	f.record("Login")
	if f.LoginFunc != nil {
		return f.LoginFunc(ctx, email, password)
	}
	return "token", nil
}

func (f *FakeBackend) Logout(ctx context.Context) error {
	f.record("Logout")
	if f.LogoutFunc != nil {
		return f.LogoutFunc(ctx)
	}
	return nil
}

func (f *FakeBackend) Me(ctx context.Context) (*model.Identity, error) {
	f.record("Me")
	if f.MeFunc != nil {
		return f.MeFunc(ctx)
	}
	return &model.Identity{}, nil
}

func (f *FakeBackend) Upload(ctx context.Context, filename string, r io.Reader) (*model.Document, error) {
	f.record("Upload")
	if f.UploadFunc != nil {
		return f.UploadFunc(ctx, filename, r)
	}
	return &model.Document{FileID: "file-1", Filename: filename}, nil
}

func (f *FakeBackend) ListDocuments(ctx context.Context) ([]model.Document, error) {
	f.record("ListDocuments")
	if f.ListDocumentsFunc != nil {
		return f.ListDocumentsFunc(ctx)
	}
	return nil, nil
}

func (f *FakeBackend) Query(ctx context.Context, fileID, query string) (string, error) {
	f.record("Query")
	if f.QueryFunc != nil {
		return f.QueryFunc(ctx, fileID, query)
	}
	return "answer: " + query, nil
}

func (f *FakeBackend) History(ctx context.Context, fileID string) ([]model.ConversationRecord, error) {
	f.record("History")
	if f.HistoryFunc != nil {
		return f.HistoryFunc(ctx, fileID)
	}
	return nil, nil
}

func (f *FakeBackend) DeleteDocument(ctx context.Context, fileID string) error {
	f.record("DeleteDocument")
	if f.DeleteDocumentFunc != nil {
		return f.DeleteDocumentFunc(ctx, fileID)
	}
	return nil
}

func (f *FakeBackend) NewConversation(ctx context.Context, fileID string) error {
	f.record("NewConversation")
	if f.NewConversationFunc != nil {
		return f.NewConversationFunc(ctx, fileID)
	}
	return nil
}
