package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"pdfchat/internal/model"
)

// FakeServer is an in-memory implementation of the backend's HTTP API.
// Tokens are HS256 JWTs carrying the user's uid and email.
type FakeServer struct {
	*httptest.Server

	// IndexOnUpload marks uploads as indexed immediately.
	IndexOnUpload bool
	// FailLogout makes the logout endpoint answer 500.
	FailLogout bool
	// Answer produces query responses. A returned error becomes a 500.
	Answer func(fileID, query string) (string, error)

	mu       sync.Mutex
	users    map[string]*fakeUser // email -> user
	tokens   map[string]string    // token -> email
	docs     []*fakeDocument
	requests []RecordedRequest
	issued   int
}

// RecordedRequest is what the server saw of one request.
type RecordedRequest struct {
	Method        string
	Path          string
	Authorization string
	RequestID     string
	UserAgent     string
}

type fakeUser struct {
	UID      string
	Email    string
	Password string
}

type fakeDocument struct {
	doc           model.Document
	owner         string
	content       []byte
	contentType   string
	conversations [][]wireMessage
}

// wireMessage mirrors the backend's history encoding, whose timestamps carry no zone.
type wireMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

var fakeSigningKey = []byte("fake-server-signing-key")

// NewFakeServer starts a FakeServer that is closed when the test ends.
func NewFakeServer(t *testing.T) *FakeServer {
	t.Helper()

	s := &FakeServer{
		users:  make(map[string]*fakeUser),
		tokens: make(map[string]string),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.record)

	r.Post("/auth/signup", s.handleSignup)
	r.Post("/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/auth/logout", s.handleLogout)
		r.Get("/user/me", s.handleMe)
		r.Post("/pdf/upload", s.handleUpload)
		r.Get("/pdf/list", s.handleList)
		r.Post("/pdf/query", s.handleQuery)
		r.Get("/pdf/history/{id}", s.handleHistory)
		r.Delete("/pdf/{id}", s.handleDelete)
		r.Post("/pdf/new-conversation/{id}", s.handleNewConversation)
	})

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// AddUser registers an account directly.
func (s *FakeServer) AddUser(email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = &fakeUser{UID: uuid.NewString(), Email: email, Password: password}
}

// IssueToken returns a valid token for a registered user.
func (s *FakeServer) IssueToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(s.users[email])
}

// ExpireAll revokes every issued token.
func (s *FakeServer) ExpireAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]string)
}

// SetIndexed flips a document's readiness.
func (s *FakeServer) SetIndexed(fileID string, indexed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.findLocked(fileID); d != nil {
		d.doc.Indexed = indexed
	}
}

// SetHistory replaces a document's conversations.
func (s *FakeServer) SetHistory(fileID string, conversations ...[]model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.findLocked(fileID)
	if d == nil {
		return
	}
	d.conversations = nil
	d.doc.MessageCount = 0
	for _, conv := range conversations {
		wire := make([]wireMessage, len(conv))
		for i, m := range conv {
			wire[i] = wireMessage{Role: string(m.Role), Content: m.Content, Timestamp: zoneless(m.Timestamp.Time)}
		}
		d.conversations = append(d.conversations, wire)
		d.doc.MessageCount += len(conv)
	}
}

// Conversations returns how many conversation slots a document has.
func (s *FakeServer) Conversations(fileID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.findLocked(fileID); d != nil {
		return len(d.conversations)
	}
	return 0
}

// Uploaded returns the stored bytes and part content type of a document.
func (s *FakeServer) Uploaded(fileID string) ([]byte, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.findLocked(fileID)
	if d == nil {
		return nil, "", false
	}
	return append([]byte(nil), d.content...), d.contentType, true
}

// Requests returns every request seen so far.
func (s *FakeServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// RequestCount returns how many requests hit method and path.
func (s *FakeServer) RequestCount(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (s *FakeServer) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, RecordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get("X-Request-ID"),
			UserAgent:     r.Header.Get("User-Agent"),
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

type ctxUserKey struct{}

func (s *FakeServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		email, known := s.tokens[token]
		s.mu.Unlock()
		if !ok || !known {
			respondDetail(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithUser(r, email)))
	})
}

func (s *FakeServer) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Email == "" || in.Password == "" {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]string{{"msg": "field required"}},
		})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[in.Email]; exists {
		respondDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	u := &fakeUser{UID: uuid.NewString(), Email: in.Email, Password: in.Password}
	s.users[in.Email] = u
	respondJSON(w, http.StatusOK, map[string]string{"uid": u.UID, "email": u.Email})
}

func (s *FakeServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[in.Email]
	if !ok || u.Password != in.Password {
		respondDetail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": s.issueLocked(u)})
}

func (s *FakeServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.FailLogout {
		respondDetail(w, http.StatusInternalServerError, "logout failed")
		return
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *FakeServer) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u := s.users[userFrom(r)]
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, map[string]any{
		"firebase": model.Identity{UID: u.UID, Email: u.Email},
	})
}

func (s *FakeServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		respondDetail(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		respondDetail(w, http.StatusBadRequest, "Only PDF files are allowed")
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		respondDetail(w, http.StatusBadRequest, "could not read file")
		return
	}

	d := &fakeDocument{
		doc: model.Document{
			FileID:   uuid.NewString(),
			Filename: header.Filename,
			Indexed:  s.IndexOnUpload,
		},
		owner:       userFrom(r),
		content:     content,
		contentType: header.Header.Get("Content-Type"),
	}
	s.mu.Lock()
	s.docs = append(s.docs, d)
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, d.doc)
}

func (s *FakeServer) handleList(w http.ResponseWriter, r *http.Request) {
	owner := userFrom(r)
	s.mu.Lock()
	files := make([]model.Document, 0, len(s.docs))
	for _, d := range s.docs {
		if d.owner == owner {
			files = append(files, d.doc)
		}
	}
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (s *FakeServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	fileID := r.FormValue("file_id")
	query := r.FormValue("query")

	s.mu.Lock()
	d := s.ownedLocked(r, fileID)
	if d == nil {
		s.mu.Unlock()
		respondDetail(w, http.StatusNotFound, "File not found")
		return
	}
	if !d.doc.Indexed {
		s.mu.Unlock()
		respondDetail(w, http.StatusBadRequest, "File is still being processed")
		return
	}
	answerFn := s.Answer
	s.mu.Unlock()

	answer := "Answer to: " + query
	if answerFn != nil {
		var err error
		if answer, err = answerFn(fileID, query); err != nil {
			respondDetail(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	now := zoneless(time.Now())
	s.mu.Lock()
	if len(d.conversations) == 0 {
		d.conversations = append(d.conversations, nil)
	}
	last := len(d.conversations) - 1
	d.conversations[last] = append(d.conversations[last],
		wireMessage{Role: string(model.RoleUser), Content: query, Timestamp: now},
		wireMessage{Role: string(model.RoleAssistant), Content: answer, Timestamp: now},
	)
	d.doc.MessageCount += 2
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]string{"response": answer})
}

func (s *FakeServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.ownedLocked(r, chi.URLParam(r, "id"))
	if d == nil {
		respondDetail(w, http.StatusNotFound, "File not found")
		return
	}

	conversations := make([]map[string]any, len(d.conversations))
	for i, msgs := range d.conversations {
		if msgs == nil {
			msgs = []wireMessage{}
		}
		conversations[i] = map[string]any{"messages": msgs}
	}
	respondJSON(w, http.StatusOK, map[string]any{"conversations": conversations})
}

func (s *FakeServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownedLocked(r, id) == nil {
		respondDetail(w, http.StatusNotFound, "File not found")
		return
	}
	kept := s.docs[:0]
	for _, d := range s.docs {
		if d.doc.FileID != id {
			kept = append(kept, d)
		}
	}
	s.docs = kept
	respondJSON(w, http.StatusOK, map[string]string{"message": "File deleted"})
}

func (s *FakeServer) handleNewConversation(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.ownedLocked(r, chi.URLParam(r, "id"))
	if d == nil {
		respondDetail(w, http.StatusNotFound, "File not found")
		return
	}
	d.conversations = append(d.conversations, []wireMessage{})
	respondJSON(w, http.StatusOK, map[string]string{"message": "New conversation started"})
}

func (s *FakeServer) issueLocked(u *fakeUser) string {
	s.issued++
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   u.UID,
		"email": u.Email,
		"jti":   fmt.Sprintf("%d", s.issued),
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(fakeSigningKey)
	if err != nil {
		panic(err)
	}
	s.tokens[token] = u.Email
	return token
}

func (s *FakeServer) findLocked(fileID string) *fakeDocument {
	for _, d := range s.docs {
		if d.doc.FileID == fileID {
			return d
		}
	}
	return nil
}

func (s *FakeServer) ownedLocked(r *http.Request, fileID string) *fakeDocument {
	d := s.findLocked(fileID)
	if d == nil || d.owner != userFrom(r) {
		return nil
	}
	return d
}

func contextWithUser(r *http.Request, email string) context.Context {
	return context.WithValue(r.Context(), ctxUserKey{}, email)
}

func userFrom(r *http.Request) string {
	email, _ := r.Context().Value(ctxUserKey{}).(string)
	return email
}

func zoneless(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.999999")
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondDetail(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}
