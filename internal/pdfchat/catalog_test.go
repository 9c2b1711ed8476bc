package pdfchat_test

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"pdfchat/internal/model"
	"pdfchat/internal/pdfchat"
	"pdfchat/internal/testutil"
)

func newCatalog(backend *testutil.FakeBackend) (*pdfchat.Catalog, *pdfchat.Conversation) {
	conv := newConversation(backend)
	return pdfchat.NewCatalog(backend, conv, pdfchat.NewNopLogger()), conv
}

func listing(docs ...model.Document) func(context.Context) ([]model.Document, error) {
	return func(context.Context) ([]model.Document, error) {
		return docs, nil
	}
}

func TestCatalog_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces list", func(t *testing.T) {
		backend := testutil.NewFakeBackend()
		backend.ListDocumentsFunc = listing(indexedDoc("a"), indexedDoc("b"))
		catalog, _ := newCatalog(backend)
		catalog.Add(indexedDoc("stale"))

		if err := catalog.Refresh(ctx); err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}

		docs := catalog.Documents()
		if len(docs) != 2 || docs[0].FileID != "a" || docs[1].FileID != "b" {
			t.Errorf("Documents() = %+v, want [a b]", docs)
		}
		if _, ok := catalog.Find("stale"); ok {
			t.Error("Find(stale) found a record the server no longer lists")
		}
	})

	t.Run("failure degrades to empty", func(t *testing.T) {
		backend := testutil.NewFakeBackend()
		backend.ListDocumentsFunc = func(context.Context) ([]model.Document, error) {
			return nil, &pdfchat.StatusError{Method: "GET", Path: "/pdf/list", Status: http.StatusInternalServerError}
		}
		catalog, _ := newCatalog(backend)
		catalog.Add(indexedDoc("a"))

		err := catalog.Refresh(ctx)
		if !errors.Is(err, pdfchat.ErrTransientFetch) {
			t.Errorf("Refresh() error = %v, want %v", err, pdfchat.ErrTransientFetch)
		}
		if n := len(catalog.Documents()); n != 0 {
			t.Errorf("len(Documents()) = %d, want 0", n)
		}
	})

	t.Run("pushes readiness to selection", func(t *testing.T) {
		backend := testutil.NewFakeBackend()
		catalog, conv := newCatalog(backend)

		pending := model.Document{FileID: "a", Filename: "a.pdf"}
		if err := conv.Select(ctx, pending, pdfchat.SelectOptions{NewConversation: true}); err != nil {
			t.Fatalf("Select() error = %v", err)
		}

		backend.ListDocumentsFunc = listing(indexedDoc("a"))
		if err := catalog.Refresh(ctx); err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
		if got := conv.State(); got != pdfchat.Ready {
			t.Errorf("conversation State() = %v, want %v", got, pdfchat.Ready)
		}
	})
}

func TestCatalog_Add(t *testing.T) {
	catalog, _ := newCatalog(testutil.NewFakeBackend())

	catalog.Add(model.Document{FileID: "a", Filename: "a.pdf"})
	catalog.Add(indexedDoc("b"))
	catalog.Add(indexedDoc("a"))

	docs := catalog.Documents()
	if len(docs) != 2 {
		t.Fatalf("len(Documents()) = %d, want 2", len(docs))
	}
	if docs[0].FileID != "a" || !docs[0].Indexed {
		t.Errorf("Documents()[0] = %+v, want indexed a", docs[0])
	}

	catalog.Reset()
	if n := len(catalog.Documents()); n != 0 {
		t.Errorf("len(Documents()) after Reset = %d, want 0", n)
	}
}

func TestCatalog_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("refusal makes no call", func(t *testing.T) {
		backend := testutil.NewFakeBackend()
		catalog, _ := newCatalog(backend)
		catalog.Add(indexedDoc("a"))
		confirm := testutil.NewStaticConfirmer(false)

		if err := catalog.Delete(ctx, "a", confirm); !errors.Is(err, pdfchat.ErrCancelled) {
			t.Fatalf("Delete() error = %v, want %v", err, pdfchat.ErrCancelled)
		}
		if n := backend.CallCount("DeleteDocument"); n != 0 {
			t.Errorf("DeleteDocument calls = %d, want 0", n)
		}
		if _, ok := catalog.Find("a"); !ok {
			t.Error("Find(a) = false after refused delete")
		}
		if p := confirm.Prompts(); len(p) != 1 || p[0] != pdfchat.DeletePrompt {
			t.Errorf("prompts = %v, want [%q]", p, pdfchat.DeletePrompt)
		}
	})

	t.Run("nil confirmer is a refusal", func(t *testing.T) {
		backend := testutil.NewFakeBackend()
		catalog, _ := newCatalog(backend)

		if err := catalog.Delete(ctx, "a", nil); !errors.Is(err, pdfchat.ErrCancelled) {
			t.Errorf("Delete() error = %v, want %v", err, pdfchat.ErrCancelled)
		}
		if n := backend.CallCount("DeleteDocument"); n != 0 {
			t.Errorf("DeleteDocument calls = %d, want 0", n)
		}
	})

	t.Run("confirmed delete of selected document clears selection", func(t *testing.T) {
		backend := testutil.NewFakeBackend()
		var deleted string
		backend.DeleteDocumentFunc = func(ctx context.Context, fileID string) error {
			deleted = fileID
			return nil
		}
		catalog, conv := newCatalog(backend)
		catalog.Add(indexedDoc("a"))
		catalog.Add(indexedDoc("b"))
		if err := conv.Select(ctx, indexedDoc("a"), pdfchat.SelectOptions{}); err != nil {
			t.Fatalf("Select() error = %v", err)
		}

		if err := catalog.Delete(ctx, "a", testutil.NewStaticConfirmer(true)); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if deleted != "a" {
			t.Errorf("deleted = %q, want a", deleted)
		}
		if _, ok := catalog.Find("a"); ok {
			t.Error("Find(a) = true after delete")
		}
		if _, ok := catalog.Find("b"); !ok {
			t.Error("Find(b) = false, other records must survive")
		}
		if got := conv.State(); got != pdfchat.NoSelection {
			t.Errorf("conversation State() = %v, want %v", got, pdfchat.NoSelection)
		}
	})

	t.Run("delete of other document keeps selection", func(t *testing.T) {
		backend := testutil.NewFakeBackend()
		catalog, conv := newCatalog(backend)
		catalog.Add(indexedDoc("a"))
		catalog.Add(indexedDoc("b"))
		if err := conv.Select(ctx, indexedDoc("a"), pdfchat.SelectOptions{}); err != nil {
			t.Fatalf("Select() error = %v", err)
		}

		if err := catalog.Delete(ctx, "b", testutil.NewStaticConfirmer(true)); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if got := conv.SelectedFileID(); got != "a" {
			t.Errorf("SelectedFileID() = %q, want a", got)
		}
	})

	t.Run("server failure keeps record", func(t *testing.T) {
		backend := testutil.NewFakeBackend()
		backend.DeleteDocumentFunc = func(ctx context.Context, fileID string) error {
			return &pdfchat.StatusError{Method: "DELETE", Path: "/pdf/a", Status: http.StatusNotFound, Detail: "File not found"}
		}
		catalog, _ := newCatalog(backend)
		catalog.Add(indexedDoc("a"))

		err := catalog.Delete(ctx, "a", testutil.NewStaticConfirmer(true))
		var se *pdfchat.StatusError
		if !errors.As(err, &se) || se.Status != http.StatusNotFound {
			t.Errorf("Delete() error = %v, want 404 StatusError", err)
		}
		if _, ok := catalog.Find("a"); !ok {
			t.Error("Find(a) = false after failed delete")
		}
	})
}

func TestCatalog_StartNewConversation(t *testing.T) {
	ctx := context.Background()

	t.Run("known document", func(t *testing.T) {
		backend := testutil.NewFakeBackend()
		catalog, _ := newCatalog(backend)
		catalog.Add(indexedDoc("a"))

		doc, err := catalog.StartNewConversation(ctx, "a")
		if err != nil {
			t.Fatalf("StartNewConversation() error = %v", err)
		}
		if doc.FileID != "a" {
			t.Errorf("StartNewConversation() = %+v, want a", doc)
		}
		if n := backend.CallCount("ListDocuments"); n != 0 {
			t.Errorf("ListDocuments calls = %d, want 0", n)
		}
		if n := backend.CallCount("NewConversation"); n != 1 {
			t.Errorf("NewConversation calls = %d, want 1", n)
		}
	})

	t.Run("unknown locally refreshes once", func(t *testing.T) {
		backend := testutil.NewFakeBackend()
		backend.ListDocumentsFunc = listing(indexedDoc("a"))
		catalog, _ := newCatalog(backend)

		if _, err := catalog.StartNewConversation(ctx, "a"); err != nil {
			t.Fatalf("StartNewConversation() error = %v", err)
		}
		if n := backend.CallCount("ListDocuments"); n != 1 {
			t.Errorf("ListDocuments calls = %d, want 1", n)
		}
	})

	t.Run("unknown everywhere", func(t *testing.T) {
		backend := testutil.NewFakeBackend()
		catalog, _ := newCatalog(backend)

		_, err := catalog.StartNewConversation(ctx, "missing")
		if !errors.Is(err, pdfchat.ErrUnknownDocument) {
			t.Errorf("StartNewConversation() error = %v, want %v", err, pdfchat.ErrUnknownDocument)
		}
		if n := backend.CallCount("NewConversation"); n != 0 {
			t.Errorf("NewConversation calls = %d, want 0", n)
		}
	})
}

func TestCatalog_WaitIndexed(t *testing.T) {
	ctx := context.Background()

	t.Run("returns once indexed", func(t *testing.T) {
		backend := testutil.NewFakeBackend()
		var polls atomic.Int32
		backend.ListDocumentsFunc = func(context.Context) ([]model.Document, error) {
			n := polls.Add(1)
			switch n {
			case 1:
				return []model.Document{{FileID: "a"}}, nil
			case 2:
				return nil, errors.New("flaky")
			default:
				return []model.Document{indexedDoc("a")}, nil
			}
		}
		catalog, _ := newCatalog(backend)

		doc, err := catalog.WaitIndexed(ctx, "a", time.Millisecond)
		if err != nil {
			t.Fatalf("WaitIndexed() error = %v", err)
		}
		if !doc.Indexed {
			t.Errorf("WaitIndexed() = %+v, want indexed", doc)
		}
		if n := polls.Load(); n != 3 {
			t.Errorf("polls = %d, want 3", n)
		}
	})

	t.Run("non-positive interval falls back to default", func(t *testing.T) {
		for _, interval := range []time.Duration{0, -time.Second} {
			backend := testutil.NewFakeBackend()
			backend.ListDocumentsFunc = listing(indexedDoc("a"))
			catalog, _ := newCatalog(backend)

			doc, err := catalog.WaitIndexed(ctx, "a", interval)
			if err != nil {
				t.Fatalf("WaitIndexed(%v) error = %v", interval, err)
			}
			if !doc.Indexed {
				t.Errorf("WaitIndexed(%v) = %+v, want indexed", interval, doc)
			}
		}
	})

	t.Run("vanished document", func(t *testing.T) {
		backend := testutil.NewFakeBackend()
		catalog, _ := newCatalog(backend)

		if _, err := catalog.WaitIndexed(ctx, "a", time.Millisecond); !errors.Is(err, pdfchat.ErrUnknownDocument) {
			t.Errorf("WaitIndexed() error = %v, want %v", err, pdfchat.ErrUnknownDocument)
		}
	})

	t.Run("expired session stops", func(t *testing.T) {
		backend := testutil.NewFakeBackend()
		backend.ListDocumentsFunc = func(context.Context) ([]model.Document, error) {
			return nil, &pdfchat.StatusError{Method: "GET", Path: "/pdf/list", Status: http.StatusUnauthorized}
		}
		catalog, _ := newCatalog(backend)

		if _, err := catalog.WaitIndexed(ctx, "a", time.Millisecond); !errors.Is(err, pdfchat.ErrSessionExpired) {
			t.Errorf("WaitIndexed() error = %v, want %v", err, pdfchat.ErrSessionExpired)
		}
	})

	t.Run("context deadline stops", func(t *testing.T) {
		backend := testutil.NewFakeBackend()
		backend.ListDocumentsFunc = listing(model.Document{FileID: "a"})
		catalog, _ := newCatalog(backend)

		ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		if _, err := catalog.WaitIndexed(ctx, "a", time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("WaitIndexed() error = %v, want %v", err, context.DeadlineExceeded)
		}
	})
}
