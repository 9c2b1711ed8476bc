package credential

import (
	"context"
	"fmt"

	"pdfchat/internal/database"
	"pdfchat/internal/encryption"
)

// tokenKey is the kv row holding the credential.
const tokenKey = "token"

// SQLiteStore keeps the credential in the client's SQLite database.
type SQLiteStore struct {
	db     *database.SQLiteDatabase
	sealer encryption.Sealer
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (and migrates) the database at path.
func NewSQLiteStore(path string, sealer encryption.Sealer) (*SQLiteStore, error) {
	db, err := database.NewSQLiteDatabase(path)
	if err != nil {
		return nil, err
	}
	if sealer == nil {
		sealer = encryption.PlainSealer{}
	}
	return &SQLiteStore{db: db, sealer: sealer}, nil
}

func (s *SQLiteStore) Get() (string, bool, error) {
	value, ok, err := s.db.Get(context.Background(), tokenKey)
	if err != nil || !ok {
		return "", false, err
	}

	plain, err := s.sealer.Open([]byte(value))
	if err != nil {
		return "", false, fmt.Errorf("opening credential: %w", err)
	}
	return string(plain), true, nil
}

func (s *SQLiteStore) Set(token string) error {
	sealed, err := s.sealer.Seal([]byte(token))
	if err != nil {
		return fmt.Errorf("sealing credential: %w", err)
	}
	return s.db.Put(context.Background(), tokenKey, string(sealed))
}

func (s *SQLiteStore) Clear() error {
	return s.db.Delete(context.Background(), tokenKey)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
