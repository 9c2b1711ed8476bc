package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pdfchat/internal/pdfchat"
)

// maxDetailBytes bounds how much of an error body is read for its detail.
const maxDetailBytes = 64 << 10

// DefaultUserAgent is sent when WithUserAgent is not used.
const DefaultUserAgent = "pdfchat"

// Gateway is the single HTTP transport to the backend. It attaches the stored
// credential to every request and owns the reaction to unauthorized
// responses: the credential is cleared and the unauthorized handler runs once
// per such response.
type Gateway struct {
	baseURL        string
	client         *http.Client
	store          pdfchat.CredentialStore
	logger         pdfchat.Logger
	ids            pdfchat.IDGenerator
	userAgent      string
	onUnauthorized func()
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.client = c }
}

// WithTimeout sets the per-request timeout of the underlying client.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		c := *g.client
		c.Timeout = d
		g.client = &c
	}
}

// WithUnauthorizedHandler sets the function called after a 401 response has
// cleared the credential.
func WithUnauthorizedHandler(fn func()) Option {
	return func(g *Gateway) { g.onUnauthorized = fn }
}

func WithLogger(l pdfchat.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

func WithIDGenerator(ids pdfchat.IDGenerator) Option {
	return func(g *Gateway) { g.ids = ids }
}

func WithUserAgent(ua string) Option {
	return func(g *Gateway) { g.userAgent = ua }
}

// NewGateway creates a Gateway for the backend at baseURL.
func NewGateway(baseURL string, store pdfchat.CredentialStore, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{},
		store:     store,
		logger:    pdfchat.NewNopLogger(),
		ids:       pdfchat.UUIDGenerator{},
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// OnUnauthorized replaces the unauthorized handler. It exists for wiring
// cycles where the handler needs components built on top of the Gateway.
func (g *Gateway) OnUnauthorized(fn func()) {
	g.onUnauthorized = fn
}

// BaseURL returns the backend root without a trailing slash.
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// DoJSON sends in as a JSON body (when non-nil) and decodes the response into out.
func (g *Gateway) DoJSON(ctx context.Context, method, path string, in, out any) error {
	if in == nil {
		return g.Do(ctx, method, path, nil, "", out)
	}
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	return g.Do(ctx, method, path, bytes.NewReader(body), "application/json", out)
}

// Do performs one request. A 2xx response is decoded into out when out is
// non-nil; an empty body leaves out untouched. Any other status becomes a
// *pdfchat.StatusError.
func (g *Gateway) Do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request %s %s: %w", method, path, err)
	}

	requestID := g.ids.New()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	token, ok, err := g.store.Get()
	if err != nil {
		g.logger.Warn("reading credential", "error", err)
	} else if ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Debug("request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	g.logger.Debug("request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"request_id", requestID,
	)

	if resp.StatusCode == http.StatusUnauthorized {
		g.unauthorized()
		return &pdfchat.StatusError{Method: method, Path: path, Status: resp.StatusCode, Detail: readDetail(resp.Body)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &pdfchat.StatusError{Method: method, Path: path, Status: resp.StatusCode, Detail: readDetail(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func (g *Gateway) unauthorized() {
	if err := g.store.Clear(); err != nil {
		g.logger.Error("clearing credential after unauthorized response", "error", err)
	}
	g.logger.Info("session expired")
	if g.onUnauthorized != nil {
		g.onUnauthorized()
	}
}

// readDetail extracts the server's "detail" message. It is either a string or
// a list of validation problems, in which case the first one's msg is used.
func readDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxDetailBytes))
	if err != nil || len(data) == 0 {
		return ""
	}

	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(body.Detail, &text); err == nil {
		return text
	}

	var problems []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &problems); err == nil && len(problems) > 0 {
		return problems[0].Msg
	}
	return ""
}
