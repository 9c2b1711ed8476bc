package encryption

import (
	"fmt"

	"pdfchat/internal/config"
)

// NewSealerFromConfig returns an AgeSealer when credential encryption is
// enabled and a PlainSealer otherwise.
func NewSealerFromConfig(cfg config.CredentialConfig) (Sealer, error) {
	if !cfg.Encrypt {
		return PlainSealer{}, nil
	}
	if cfg.KeyPath == "" {
		return nil, fmt.Errorf("credential encryption requires key_path to be set")
	}
	return NewAgeSealer(cfg.KeyPath), nil
}
