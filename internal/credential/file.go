package credential

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"pdfchat/internal/encryption"
)

// FileStore keeps the credential in a single file readable only by the owner.
// Writes go to a temporary file in the same directory and are renamed into
// place, so a crash never leaves a truncated credential behind.
type FileStore struct {
	path   string
	sealer encryption.Sealer
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore at path. A nil sealer stores plaintext.
func NewFileStore(path string, sealer encryption.Sealer) *FileStore {
	if sealer == nil {
		sealer = encryption.PlainSealer{}
	}
	return &FileStore{path: path, sealer: sealer}
}

func (s *FileStore) Get() (string, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading credential: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", false, nil
	}

	plain, err := s.sealer.Open(data)
	if err != nil {
		return "", false, fmt.Errorf("opening credential: %w", err)
	}
	return string(plain), true, nil
}

func (s *FileStore) Set(token string) error {
	sealed, err := s.sealer.Seal([]byte(token))
	if err != nil {
		return fmt.Errorf("sealing credential: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating credential directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credential-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("setting credential permissions: %w", err)
	}
	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing credential: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming credential into place: %w", err)
	}
	return nil
}

func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing credential: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
