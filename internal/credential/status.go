package credential

import (
	"errors"
	"io/fs"
	"os"

	"pdfchat/internal/config"
	"pdfchat/internal/database"
	"pdfchat/internal/database/migrations"
	"pdfchat/internal/encryption"
)

// Status describes the on-disk state of a configured credential store.
// Describe never creates or migrates a store.
type Status struct {
	Type   string
	Path   string
	Exists bool

	// Schema is only set for sqlite stores.
	Schema string

	Encrypted  bool
	KeyPath    string
	KeyPresent bool
}

// Schema states reported for sqlite stores.
const (
	SchemaCurrent     = "current"
	SchemaUnversioned = "not migrated"
	SchemaMissing     = "not created"
)

// Describe inspects the store selected by cfg.
func Describe(cfg config.CredentialConfig) Status {
	st := Status{Type: cfg.Type, Path: cfg.Path, Encrypted: cfg.Encrypt}
	if st.Type == "" {
		st.Type = "file"
	}

	switch st.Type {
	case "file":
		if cfg.Path != "" {
			_, err := os.Stat(cfg.Path)
			st.Exists = err == nil
		}
	case "sqlite":
		st.Schema = SchemaMissing
		if cfg.Path != "" {
			describeDatabase(&st)
		}
	}

	if cfg.Encrypt && cfg.KeyPath != "" {
		st.KeyPath = cfg.KeyPath
		st.KeyPresent = encryption.NewAgeSealer(cfg.KeyPath).IsConfigured()
	}
	return st
}

func describeDatabase(st *Status) {
	db, err := database.OpenExisting(st.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		st.Schema = err.Error()
		return
	}
	defer db.Close()

	st.Exists = true
	st.Path = db.Path()
	switch err := db.CheckMigrations(); {
	case err == nil:
		st.Schema = SchemaCurrent
	case errors.Is(err, migrations.ErrNoVersion):
		st.Schema = SchemaUnversioned
	default:
		st.Schema = err.Error()
	}
}
