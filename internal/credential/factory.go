package credential

import (
	"fmt"

	"pdfchat/internal/config"
	"pdfchat/internal/encryption"
)

// NewStoreFromConfig creates a Store implementation based on the credential config type.
func NewStoreFromConfig(cfg config.CredentialConfig) (Store, error) {
	sealer, err := encryption.NewSealerFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "file", "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("file credential store requires path to be set")
		}
		return NewFileStore(cfg.Path, sealer), nil
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite credential store requires path to be set")
		}
		s, err := NewSQLiteStore(cfg.Path, sealer)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown credential store type: %s", cfg.Type)
	}
}
