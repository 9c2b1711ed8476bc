package pdfchat

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthFailure wraps rejected login or signup attempts.
	ErrAuthFailure = errors.New("authentication failed")

	// ErrSessionExpired matches any error caused by an unauthorized response.
	ErrSessionExpired = errors.New("session expired")

	// ErrNotAuthenticated is returned when an operation needs a resolved identity.
	ErrNotAuthenticated = errors.New("not logged in")

	// ErrNotReady is returned when a query targets a document that is not indexed yet.
	ErrNotReady = errors.New("document is still being indexed")

	// ErrTransientFetch wraps list fetch failures that were degraded to an empty result.
	ErrTransientFetch = errors.New("fetch failed")

	// ErrValidation is the parent of all input errors rejected before dispatch.
	ErrValidation = errors.New("invalid input")

	ErrEmptyQuery  = fmt.Errorf("%w: question is empty", ErrValidation)
	ErrMissingFile = fmt.Errorf("%w: no file provided", ErrValidation)

	// ErrBusy is returned when a question is already in flight or history is loading.
	ErrBusy = errors.New("conversation is busy")

	ErrNoSelection      = errors.New("no document selected")
	ErrSelectionChanged = errors.New("selection changed while request was in flight")
	ErrUnknownDocument  = errors.New("unknown document")
	ErrCancelled        = errors.New("cancelled")
)

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	Method string
	Path   string
	Status int
	Detail string // server-provided "detail" message, if any
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Status, http.StatusText(e.Status), e.Detail)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// Is reports unauthorized responses as ErrSessionExpired.
func (e *StatusError) Is(target error) bool {
	return target == ErrSessionExpired && e.Status == http.StatusUnauthorized
}

// detailOf returns the server-provided detail carried by err, if any.
func detailOf(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Detail
	}
	return ""
}

// UploadError is a failed upload. Message is safe to show to the user.
type UploadError struct {
	Message string
	Err     error
}

func (e *UploadError) Error() string { return e.Message }

func (e *UploadError) Unwrap() error { return e.Err }
