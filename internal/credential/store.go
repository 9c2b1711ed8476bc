package credential

import "pdfchat/internal/pdfchat"

// Store is a pdfchat.CredentialStore that may hold resources.
type Store interface {
	pdfchat.CredentialStore
	Close() error
}
