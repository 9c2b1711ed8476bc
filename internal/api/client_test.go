package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pdfchat/internal/credential"
	"pdfchat/internal/model"
	"pdfchat/internal/pdfchat"
	"pdfchat/internal/testutil"
)

// newTestClient returns a client logged in as a@b.com against a fresh fake server.
func newTestClient(t *testing.T) (*Client, *testutil.FakeServer, *credential.MemoryStore) {
	t.Helper()
	srv := testutil.NewFakeServer(t)
	srv.AddUser("a@b.com", "pw")
	store := credential.NewMemoryStoreWith(srv.IssueToken("a@b.com"))
	return NewClient(NewGateway(srv.URL, store)), srv, store
}

func TestClient_Auth(t *testing.T) {
	ctx := context.Background()
	srv := testutil.NewFakeServer(t)
	store := credential.NewMemoryStore()
	c := NewClient(NewGateway(srv.URL, store))

	body, err := c.Signup(ctx, "new@b.com", "pw")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if body["email"] != "new@b.com" {
		t.Errorf("Signup() body = %v", body)
	}

	_, err = c.Signup(ctx, "new@b.com", "pw")
	var se *pdfchat.StatusError
	if !errors.As(err, &se) || se.Detail != "Email already registered" {
		t.Errorf("duplicate Signup() error = %v", err)
	}

	token, err := c.Login(ctx, "new@b.com", "pw")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if token == "" {
		t.Fatal("Login() returned empty token")
	}
	if err := store.Set(token); err != nil {
		t.Fatal(err)
	}

	id, err := c.Me(ctx)
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if id.Email != "new@b.com" || id.UID == "" {
		t.Errorf("Me() = %+v", id)
	}

	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := c.Me(ctx); !errors.Is(err, pdfchat.ErrSessionExpired) {
		t.Errorf("Me() after logout error = %v, want %v", err, pdfchat.ErrSessionExpired)
	}
}

func TestClient_LoginRejected(t *testing.T) {
	srv := testutil.NewFakeServer(t)
	srv.AddUser("a@b.com", "pw")
	c := NewClient(NewGateway(srv.URL, credential.NewMemoryStore()))

	_, err := c.Login(context.Background(), "a@b.com", "wrong")
	var se *pdfchat.StatusError
	if !errors.As(err, &se) || se.Detail != "Invalid credentials" {
		t.Errorf("Login() error = %v, want Invalid credentials", err)
	}
}

func TestClient_DocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	c, srv, _ := newTestClient(t)

	content := []byte("%PDF-1.4 fake document")
	doc, err := c.Upload(ctx, "/tmp/report.pdf", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.FileID == "" || doc.Filename != "report.pdf" || doc.Indexed {
		t.Errorf("Upload() = %+v", doc)
	}
	stored, contentType, ok := srv.Uploaded(doc.FileID)
	if !ok || !bytes.Equal(stored, content) {
		t.Errorf("server stored %q, want %q", stored, content)
	}
	if contentType != "application/pdf" {
		t.Errorf("part Content-Type = %q, want application/pdf", contentType)
	}

	docs, err := c.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(docs) != 1 || docs[0].FileID != doc.FileID {
		t.Fatalf("ListDocuments() = %+v", docs)
	}

	_, err = c.Query(ctx, doc.FileID, "hello")
	var se *pdfchat.StatusError
	if !errors.As(err, &se) || se.Status != http.StatusBadRequest {
		t.Errorf("Query() on unindexed error = %v, want 400", err)
	}

	srv.SetIndexed(doc.FileID, true)
	answer, err := c.Query(ctx, doc.FileID, "What is this?")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if answer != "Answer to: What is this?" {
		t.Errorf("Query() = %q", answer)
	}

	history, err := c.History(ctx, doc.FileID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 || len(history[0].Messages) != 2 {
		t.Fatalf("History() = %+v", history)
	}
	first := history[0].Messages[0]
	if first.Role != model.RoleUser || first.Content != "What is this?" || first.Timestamp.IsZero() {
		t.Errorf("History()[0][0] = %+v", first)
	}

	if err := c.NewConversation(ctx, doc.FileID); err != nil {
		t.Fatalf("NewConversation() error = %v", err)
	}
	if n := srv.Conversations(doc.FileID); n != 2 {
		t.Errorf("conversations = %d, want 2", n)
	}
	history, _ = c.History(ctx, doc.FileID)
	if last := history[len(history)-1]; len(last.Messages) != 0 {
		t.Errorf("latest conversation = %+v, want empty", last)
	}

	if err := c.DeleteDocument(ctx, doc.FileID); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
	docs, _ = c.ListDocuments(ctx)
	if len(docs) != 0 {
		t.Errorf("ListDocuments() after delete = %+v", docs)
	}
	err = c.DeleteDocument(ctx, doc.FileID)
	if !errors.As(err, &se) || se.Detail != "File not found" {
		t.Errorf("second DeleteDocument() error = %v", err)
	}
}

func TestClient_UploadRejected(t *testing.T) {
	c, _, _ := newTestClient(t)

	_, err := c.Upload(context.Background(), "notes.txt", strings.NewReader("plain text"))
	var se *pdfchat.StatusError
	if !errors.As(err, &se) || se.Detail != "Only PDF files are allowed" {
		t.Errorf("Upload() error = %v", err)
	}
}

func TestClient_QueryFailure(t *testing.T) {
	ctx := context.Background()
	c, srv, _ := newTestClient(t)
	srv.IndexOnUpload = true
	srv.Answer = func(fileID, query string) (string, error) {
		return "", errors.New("LLM unavailable")
	}

	doc, err := c.Upload(ctx, "a.pdf", strings.NewReader("%PDF"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	_, err = c.Query(ctx, doc.FileID, "hello")
	var se *pdfchat.StatusError
	if !errors.As(err, &se) || se.Status != http.StatusInternalServerError || se.Detail != "LLM unavailable" {
		t.Errorf("Query() error = %v", err)
	}
}

func TestClient_HistoryOddTimestamps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pdf/history/f-1" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"conversations":[
			{"messages":[{"role":"user","content":"old","timestamp":"2024-01-14T08:00:00"}]},
			{"messages":[
				{"role":"user","content":"epoch","timestamp":1705314600},
				{"role":"assistant","content":"offset","timestamp":"2024-01-15T10:30:00+0000"},
				{"role":"user","content":"unknown","timestamp":"last tuesday"},
				{"role":"assistant","content":"missing"}
			]}
		]}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(NewGateway(srv.URL, credential.NewMemoryStore()))
	conversation := pdfchat.NewConversation(c, pdfchat.NewNopLogger(), testutil.FixedClock())

	doc := model.Document{FileID: "f-1", Filename: "a.pdf", Indexed: true}
	if err := conversation.Select(context.Background(), doc, pdfchat.SelectOptions{}); err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	msgs := conversation.Snapshot().Messages
	want := []string{"epoch", "offset", "unknown", "missing"}
	if len(msgs) != len(want) {
		t.Fatalf("adopted %d messages, want %d", len(msgs), len(want))
	}
	for i, w := range want {
		if msgs[i].Content != w {
			t.Errorf("message %d = %q, want %q", i, msgs[i].Content, w)
		}
	}

	at := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	if !msgs[0].Timestamp.Equal(at) || !msgs[1].Timestamp.Equal(at) {
		t.Errorf("timestamps = %v, %v, want %v", msgs[0].Timestamp, msgs[1].Timestamp, at)
	}
	if !msgs[2].Timestamp.IsZero() {
		t.Errorf("unrecognized timestamp = %v, want zero", msgs[2].Timestamp)
	}
}
