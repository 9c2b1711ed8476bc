package encryption

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func newTestAgeSealer(t *testing.T) *AgeSealer {
	t.Helper()
	return NewAgeSealer(filepath.Join(t.TempDir(), "keys", "credential.key"))
}

func TestAgeSealer_IsConfigured_BeforeSeal(t *testing.T) {
	t.Parallel()
	s := newTestAgeSealer(t)
	if s.IsConfigured() {
		t.Error("IsConfigured() = true before Seal, want false")
	}
}

func TestAgeSealer_SealCreatesKey(t *testing.T) {
	t.Parallel()
	s := newTestAgeSealer(t)

	if _, err := s.Seal([]byte("token")); err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if !s.IsConfigured() {
		t.Fatal("IsConfigured() = false after Seal, want true")
	}

	info, err := os.Stat(s.keyPath)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("key permissions = %o, want 600", perm)
	}
}

func TestAgeSealer_SealOpenRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "jwt", input: []byte("eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJ1MSJ9.sig")},
		{name: "empty", input: []byte{}},
		{name: "binary data", input: []byte{0x00, 0xff, 0x01, 0xfe}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestAgeSealer(t)

			sealed, err := s.Seal(tt.input)
			if err != nil {
				t.Fatalf("Seal() error = %v", err)
			}
			if len(tt.input) > 0 && bytes.Contains(sealed, tt.input) {
				t.Error("sealed value contains plaintext")
			}

			got, err := s.Open(sealed)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if !bytes.Equal(got, tt.input) {
				t.Errorf("Open() = %q, want %q", got, tt.input)
			}
		})
	}
}

func TestAgeSealer_OpenWithReloadedKey(t *testing.T) {
	t.Parallel()
	keyPath := filepath.Join(t.TempDir(), "credential.key")

	sealed, err := NewAgeSealer(keyPath).Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	got, err := NewAgeSealer(keyPath).Open(sealed)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if string(got) != "secret" {
		t.Errorf("Open() = %q, want %q", got, "secret")
	}
}

func TestAgeSealer_OpenWithoutKey(t *testing.T) {
	t.Parallel()
	s := newTestAgeSealer(t)

	if _, err := s.Open([]byte("anything")); err == nil {
		t.Fatal("Open() expected error without key")
	}
	if s.IsConfigured() {
		t.Error("Open() must not create a key")
	}
}

func TestAgeSealer_OpenWithWrongKey(t *testing.T) {
	t.Parallel()

	sealed, err := newTestAgeSealer(t).Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	other := newTestAgeSealer(t)
	if _, err := other.Seal(nil); err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if _, err := other.Open(sealed); err == nil {
		t.Fatal("Open() expected error for a value sealed to another key")
	}
}
