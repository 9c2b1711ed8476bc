package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"pdfchat/internal/api"
	"pdfchat/internal/config"
	"pdfchat/internal/credential"
	"pdfchat/internal/export"
	"pdfchat/internal/fs"
	"pdfchat/internal/model"
	"pdfchat/internal/pdfchat"
)

// DefaultPollInterval is how often WaitIndexed asks the server about readiness.
const DefaultPollInterval = pdfchat.DefaultWaitInterval

// App is the application layer between the CLI and the session components.
// It constructs all dependencies from config, wires the unauthorized-response
// hook, and exposes high-level operations that accept raw ids and paths.
// The caller must call Close when done.
type App struct {
	cfg          *config.Config
	op           *Operation
	store        credential.Store
	gateway      *api.Gateway
	client       *api.Client
	auth         *pdfchat.AuthSession
	conversation *pdfchat.Conversation
	catalog      *pdfchat.Catalog
	uploader     *pdfchat.Uploader
	navigator    pdfchat.Navigator
	clock        pdfchat.Clock
	logger       pdfchat.Logger
	logCloser    io.Closer
	pollInterval time.Duration
}

type options struct {
	navigator    pdfchat.Navigator
	clock        pdfchat.Clock
	logger       pdfchat.Logger
	httpClient   *http.Client
	store        credential.Store
	verbose      bool
	pollInterval time.Duration
}

// Option customizes NewApp.
type Option func(*options)

// WithNavigator sets what happens when the session expires.
func WithNavigator(n pdfchat.Navigator) Option {
	return func(o *options) { o.navigator = n }
}

// WithClock replaces the wall clock used for message timestamps.
func WithClock(c pdfchat.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger replaces the file logger. No log file is opened.
func WithLogger(l pdfchat.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHTTPClient replaces the transport used to reach the backend.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithStore replaces the configured credential store.
func WithStore(s credential.Store) Option {
	return func(o *options) { o.store = s }
}

// WithVerbose enables debug logging mirrored to stderr.
func WithVerbose(v bool) Option {
	return func(o *options) { o.verbose = v }
}

// WithPollInterval sets how often WaitIndexed polls. Non-positive values are ignored.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "Login", "Ask").
func NewApp(cfg *config.Config, operation string, opts ...Option) (*App, error) {
	o := options{
		navigator:    nopNavigator{},
		clock:        pdfchat.RealClock{},
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}

	op := NewOperation(operation, o.clock.Now())

	logger := o.logger
	var logCloser io.Closer
	if logger == nil {
		l, closer, err := newLogger(cfg.LogDir, op.ID, o.verbose)
		if err != nil {
			return nil, fmt.Errorf("creating logger: %w", err)
		}
		logger = &slogAdapter{l: l}
		logCloser = closer
	}

	store := o.store
	if store == nil {
		s, err := credential.NewStoreFromConfig(cfg.Credential)
		if err != nil {
			if logCloser != nil {
				logCloser.Close()
			}
			return nil, fmt.Errorf("creating credential store: %w", err)
		}
		store = s
	}

	gwOpts := []api.Option{
		api.WithTimeout(cfg.Server.TimeoutOrDefault()),
		api.WithLogger(logger),
		api.WithIDGenerator(pdfchat.UUIDGenerator{}),
		api.WithUserAgent(api.DefaultUserAgent + "/" + cfg.ClientID),
	}
	if o.httpClient != nil {
		// WithTimeout copies the client it finds, so the custom one goes first.
		gwOpts = append([]api.Option{api.WithHTTPClient(o.httpClient)}, gwOpts...)
	}
	gw := api.NewGateway(cfg.Server.BaseURL, store, gwOpts...)
	client := api.NewClient(gw)

	conversation := pdfchat.NewConversation(client, logger, o.clock)
	a := &App{
		cfg:          cfg,
		op:           op,
		store:        store,
		gateway:      gw,
		client:       client,
		auth:         pdfchat.NewAuthSession(client, store, logger),
		conversation: conversation,
		catalog:      pdfchat.NewCatalog(client, conversation, logger),
		uploader:     pdfchat.NewUploader(client, logger),
		navigator:    o.navigator,
		clock:        o.clock,
		logger:       logger,
		logCloser:    logCloser,
		pollInterval: o.pollInterval,
	}
	gw.OnUnauthorized(a.sessionExpired)

	logger.Debug("operation started", "operation", op.Name, "base_url", cfg.Server.BaseURL)
	return a, nil
}

// sessionExpired runs once per unauthorized response, after the gateway has
// cleared the stored credential.
func (a *App) sessionExpired() {
	a.auth.Invalidate()
	a.conversation.ClearSelection()
	a.catalog.Reset()
	a.navigator.ToLogin()
}

// Config returns the config the App was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Operation returns the operation this App was created for.
func (a *App) Operation() *Operation { return a.op }

// Start restores the session from the stored credential. It must run before
// any other operation.
func (a *App) Start(ctx context.Context) error {
	return a.auth.Restore(ctx)
}

// AuthState returns the current authentication state.
func (a *App) AuthState() pdfchat.AuthState { return a.auth.State() }

// Identity returns the authenticated identity, or nil.
func (a *App) Identity() *model.Identity { return a.auth.Identity() }

// Login authenticates and stores the credential.
func (a *App) Login(ctx context.Context, email, password string) (*model.Identity, error) {
	return a.auth.Login(ctx, email, password)
}

// Signup registers a new account without logging in.
func (a *App) Signup(ctx context.Context, email, password string) (map[string]any, error) {
	return a.auth.Signup(ctx, email, password)
}

// Logout ends the session and drops every piece of per-user state.
func (a *App) Logout(ctx context.Context) error {
	err := a.auth.Logout(ctx)
	a.conversation.ClearSelection()
	a.catalog.Reset()
	return err
}

// TokenInfo decodes the claims of the stored credential without verifying it.
func (a *App) TokenInfo() (credential.TokenInfo, error) {
	token, ok, err := a.store.Get()
	if err != nil {
		return credential.TokenInfo{}, fmt.Errorf("reading credential: %w", err)
	}
	if !ok {
		return credential.TokenInfo{}, pdfchat.ErrNotAuthenticated
	}
	return credential.Inspect(token)
}

// Documents refreshes and returns the document list. On a failed refresh the
// returned list is empty and the error wraps ErrTransientFetch.
func (a *App) Documents(ctx context.Context) ([]model.Document, error) {
	if _, err := a.auth.RequireIdentity(); err != nil {
		return nil, err
	}
	err := a.catalog.Refresh(ctx)
	return a.catalog.Documents(), a.expired(err)
}

// Upload checks that rawPath is a PDF, uploads it, records it in the catalog
// and selects it with an empty transcript. The list is not reloaded.
func (a *App) Upload(ctx context.Context, rawPath string) (model.Document, error) {
	if _, err := a.auth.RequireIdentity(); err != nil {
		return model.Document{}, err
	}

	file, err := fs.ResolvePDF(rawPath)
	if err != nil {
		return model.Document{}, err
	}
	r, err := file.Open()
	if err != nil {
		return model.Document{}, fmt.Errorf("opening %s: %w", file.Path, err)
	}
	defer r.Close()

	doc, err := a.uploader.Upload(ctx, file.Name, r)
	if err != nil {
		return model.Document{}, a.expired(err)
	}

	a.catalog.Add(doc)
	if err := a.conversation.Select(ctx, doc, pdfchat.SelectOptions{NewConversation: true}); err != nil {
		return doc, err
	}
	return doc, nil
}

// WaitIndexed blocks until the document is indexed or ctx ends.
func (a *App) WaitIndexed(ctx context.Context, fileID string) (model.Document, error) {
	if _, err := a.auth.RequireIdentity(); err != nil {
		return model.Document{}, err
	}
	doc, err := a.catalog.WaitIndexed(ctx, fileID, a.pollInterval)
	return doc, a.expired(err)
}

// Delete removes a document once confirm approves it.
func (a *App) Delete(ctx context.Context, fileID string, confirm pdfchat.Confirmer) error {
	if _, err := a.auth.RequireIdentity(); err != nil {
		return err
	}
	return a.expired(a.catalog.Delete(ctx, fileID, confirm))
}

// Open selects a document and loads its most recent conversation.
func (a *App) Open(ctx context.Context, fileID string) (pdfchat.Snapshot, error) {
	if _, err := a.auth.RequireIdentity(); err != nil {
		return pdfchat.Snapshot{}, err
	}
	doc, err := a.catalog.Resolve(ctx, fileID)
	if err != nil {
		return pdfchat.Snapshot{}, a.expired(err)
	}
	if err := a.conversation.Select(ctx, doc, pdfchat.SelectOptions{}); err != nil {
		return pdfchat.Snapshot{}, a.expired(err)
	}
	return a.conversation.Snapshot(), nil
}

// NewConversation opens a fresh conversation for a document and selects it
// with an empty transcript.
func (a *App) NewConversation(ctx context.Context, fileID string) (pdfchat.Snapshot, error) {
	if _, err := a.auth.RequireIdentity(); err != nil {
		return pdfchat.Snapshot{}, err
	}
	doc, err := a.catalog.StartNewConversation(ctx, fileID)
	if err != nil {
		return pdfchat.Snapshot{}, a.expired(err)
	}
	if err := a.conversation.Select(ctx, doc, pdfchat.SelectOptions{NewConversation: true}); err != nil {
		return pdfchat.Snapshot{}, err
	}
	return a.conversation.Snapshot(), nil
}

// Ask sends a question about the selected document and returns the reply.
// A failed query still returns the error-flagged apology with a nil error.
func (a *App) Ask(ctx context.Context, text string) (model.Message, error) {
	reply, err := a.conversation.Send(ctx, text)
	return reply, a.expired(err)
}

// Export writes the server's full history for a document in format.
func (a *App) Export(ctx context.Context, fileID, format string, w io.Writer) error {
	if _, err := a.auth.RequireIdentity(); err != nil {
		return err
	}
	exporter, err := export.NewExporter(format)
	if err != nil {
		return err
	}
	doc, err := a.catalog.Resolve(ctx, fileID)
	if err != nil {
		return a.expired(err)
	}
	conversations, err := a.client.History(ctx, doc.FileID)
	if err != nil {
		return a.expired(fmt.Errorf("loading history for %s: %w", doc.FileID, err))
	}

	transcript := export.NewTranscript(doc, conversations, a.clock.Now())
	if err := exporter.Export(transcript, w); err != nil {
		return fmt.Errorf("exporting history: %w", err)
	}
	a.logger.Info("history exported", "file_id", doc.FileID, "format", format, "messages", transcript.MessageCount())
	return nil
}

// Snapshot returns the current conversation state.
func (a *App) Snapshot() pdfchat.Snapshot { return a.conversation.Snapshot() }

// Subscribe registers fn for conversation state changes.
func (a *App) Subscribe(fn func(pdfchat.Snapshot)) (unsubscribe func()) {
	return a.conversation.Subscribe(fn)
}

// expired reports ErrSessionExpired for errors that happened because the
// session was torn down mid-call, e.g. a discarded reply after a 401.
func (a *App) expired(err error) error {
	if err == nil || errors.Is(err, pdfchat.ErrSessionExpired) {
		return err
	}
	if errors.Is(err, pdfchat.ErrSelectionChanged) && a.auth.State() == pdfchat.Unauthenticated {
		return fmt.Errorf("%w: %w", pdfchat.ErrSessionExpired, err)
	}
	return err
}

// Close releases the credential store and the log file.
func (a *App) Close() error {
	var firstErr error

	a.logger.Debug("operation finished", "operation", a.op.Name, "elapsed", a.op.Elapsed(a.clock.Now()))

	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing credential store: %w", err)
	}
	if a.logCloser != nil {
		if err := a.logCloser.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log: %w", err)
		}
	}
	return firstErr
}

type nopNavigator struct{}

func (nopNavigator) ToLogin() {}
