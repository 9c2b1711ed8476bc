package pdfchat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"pdfchat/internal/model"
)

// AuthState is the lifecycle state of the authenticated identity.
type AuthState int

const (
	Unauthenticated AuthState = iota
	Restoring
	Authenticated
)

func (s AuthState) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Restoring:
		return "restoring"
	case Authenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("AuthState(%d)", int(s))
	}
}

// credentials is the validated input of Login and Signup.
type credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// AuthSession owns the authenticated-identity lifecycle: session restore on
// startup, login, signup and logout. Identity is valid exactly as long as the
// credential is.
type AuthSession struct {
	backend  AuthBackend
	store    CredentialStore
	logger   Logger
	validate *validator.Validate

	mu       sync.Mutex
	state    AuthState
	identity *model.Identity
}

// NewAuthSession creates an AuthSession in the Restoring state.
// Call Restore before using any other component.
func NewAuthSession(backend AuthBackend, store CredentialStore, logger Logger) *AuthSession {
	return &AuthSession{
		backend:  backend,
		store:    store,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		state:    Restoring,
	}
}

// State returns the current lifecycle state.
func (a *AuthSession) State() AuthState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Identity returns a copy of the resolved identity, or nil when unauthenticated.
func (a *AuthSession) Identity() *model.Identity {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.identity == nil {
		return nil
	}
	id := *a.identity
	return &id
}

// RequireIdentity returns the identity, or ErrNotAuthenticated when there is none.
func (a *AuthSession) RequireIdentity() (*model.Identity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Authenticated || a.identity == nil {
		return nil, ErrNotAuthenticated
	}
	id := *a.identity
	return &id, nil
}

// Restore resolves the identity for a stored credential.
// With no stored credential it moves straight to Unauthenticated without a
// network call. A failed resolution leaves the session Unauthenticated and is
// returned; only an unauthorized response (handled by the gateway) discards
// the stored credential.
func (a *AuthSession) Restore(ctx context.Context) error {
	a.setState(Restoring, nil)

	_, ok, err := a.store.Get()
	if err != nil {
		a.logger.Warn("reading stored credential", "error", err)
	}
	if err != nil || !ok {
		a.setState(Unauthenticated, nil)
		return nil
	}

	return a.resolveIdentity(ctx)
}

// Login exchanges credentials for a token, stores it and resolves the identity.
// A rejected login wraps ErrAuthFailure and leaves the stored credential untouched.
func (a *AuthSession) Login(ctx context.Context, email, password string) (*model.Identity, error) {
	creds := credentials{Email: strings.TrimSpace(email), Password: password}
	if err := a.validateCredentials(creds); err != nil {
		return nil, err
	}

	token, err := a.backend.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		a.logger.Info("login rejected", "email", creds.Email, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrAuthFailure, err)
	}

	if err := a.store.Set(token); err != nil {
		return nil, fmt.Errorf("storing credential: %w", err)
	}

	if err := a.resolveIdentity(ctx); err != nil {
		return nil, err
	}

	a.logger.Info("logged in", "email", creds.Email)
	return a.Identity(), nil
}

// Signup registers a new account. It does not authenticate; callers decide
// whether to follow up with Login.
func (a *AuthSession) Signup(ctx context.Context, email, password string) (map[string]any, error) {
	creds := credentials{Email: strings.TrimSpace(email), Password: password}
	if err := a.validateCredentials(creds); err != nil {
		return nil, err
	}

	body, err := a.backend.Signup(ctx, creds.Email, creds.Password)
	if err != nil {
		a.logger.Info("signup rejected", "email", creds.Email, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrAuthFailure, err)
	}

	a.logger.Info("account created", "email", creds.Email)
	return body, nil
}

// Logout ends the session. The remote call is best-effort: its failure is
// logged and never prevents the local credential and identity from being
// cleared. The returned error only reports a failure to clear local storage.
func (a *AuthSession) Logout(ctx context.Context) error {
	if err := a.backend.Logout(ctx); err != nil {
		a.logger.Warn("remote logout failed", "error", err)
	}

	clearErr := a.store.Clear()
	a.setState(Unauthenticated, nil)

	if clearErr != nil {
		a.logger.Error("clearing credential", "error", clearErr)
		return fmt.Errorf("clearing credential: %w", clearErr)
	}
	a.logger.Info("logged out")
	return nil
}

// Invalidate drops the identity after the credential was cleared elsewhere,
// e.g. by the gateway on an unauthorized response.
func (a *AuthSession) Invalidate() {
	a.setState(Unauthenticated, nil)
}

// resolveIdentity runs the who-am-i call and settles the state on its outcome.
func (a *AuthSession) resolveIdentity(ctx context.Context) error {
	a.setState(Restoring, nil)

	identity, err := a.backend.Me(ctx)
	if err != nil {
		a.setState(Unauthenticated, nil)
		if errors.Is(err, ErrSessionExpired) {
			a.logger.Info("stored credential rejected")
		} else {
			a.logger.Warn("resolving identity", "error", err)
		}
		return fmt.Errorf("resolving identity: %w", err)
	}
	if identity == nil {
		identity = &model.Identity{}
	}

	a.setState(Authenticated, identity)
	return nil
}

func (a *AuthSession) setState(state AuthState, identity *model.Identity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = state
	a.identity = identity
}

// validateCredentials rejects malformed input before any network call.
func (a *AuthSession) validateCredentials(creds credentials) error {
	err := a.validate.Struct(creds)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			problems = append(problems, field+" is required")
		case "email":
			problems = append(problems, field+" must be a valid email address")
		default:
			problems = append(problems, field+" is invalid")
		}
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, ", "))
}
