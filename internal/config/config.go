package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultBaseURL is used when neither the config file nor PDFCHAT_API_URL set one.
	DefaultBaseURL = "http://localhost:3000"

	// DefaultTimeout bounds a single request. Uploads and queries wait on the
	// backend's indexing and LLM, so this is generous.
	DefaultTimeout = 120 * time.Second

	// APIURLEnv overrides Server.BaseURL.
	APIURLEnv = "PDFCHAT_API_URL"
)

// Config represents the main configuration for pdfchat.
type Config struct {
	ClientID   string           `toml:"client_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Server     ServerConfig     `toml:"server"`
	Credential CredentialConfig `toml:"credential"`
}

// ServerConfig locates the backend.
type ServerConfig struct {
	BaseURL string `toml:"base_url"`
	Timeout string `toml:"timeout,omitempty"` // Go duration string, e.g. "90s"
}

// CredentialConfig selects where the bearer credential is persisted.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type CredentialConfig struct {
	Type    string `toml:"type"`               // "file" (default), "sqlite" or "memory"
	Path    string `toml:"path,omitempty"`     // credential file or sqlite database
	Encrypt bool   `toml:"encrypt"`            // seal the stored value with age
	KeyPath string `toml:"key_path,omitempty"` // age identity, only used when Encrypt is set
}

// TimeoutOrDefault parses Timeout, falling back to DefaultTimeout when it is
// empty, malformed or not positive.
func (s ServerConfig) TimeoutOrDefault() time.Duration {
	if s.Timeout == "" {
		return DefaultTimeout
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil || d <= 0 {
		return DefaultTimeout
	}
	return d
}

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(clientID, baseDir string) *Config {
	return &Config{
		ClientID: clientID,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		Server: ServerConfig{
			BaseURL: DefaultBaseURL,
			Timeout: DefaultTimeout.String(),
		},
		Credential: CredentialConfig{
			Type:    "file",
			Path:    filepath.Join(baseDir, "credential"),
			KeyPath: filepath.Join(baseDir, "keys", "credential.key"),
		},
	}
}

// fillDefaults sets every empty field to the value NewConfig would use.
func (c *Config) fillDefaults(baseDir string) {
	if c.BaseDir == "" {
		c.BaseDir = baseDir
	}
	def := NewConfig(c.ClientID, c.BaseDir)
	if c.LogDir == "" {
		c.LogDir = def.LogDir
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = def.Server.BaseURL
	}
	if c.Credential.Type == "" {
		c.Credential.Type = def.Credential.Type
	}
	if c.Credential.Path == "" {
		switch c.Credential.Type {
		case "sqlite":
			c.Credential.Path = filepath.Join(c.BaseDir, "pdfchat.db")
		default:
			c.Credential.Path = def.Credential.Path
		}
	}
	if c.Credential.KeyPath == "" {
		c.Credential.KeyPath = def.Credential.KeyPath
	}
}

// ApplyEnv applies environment overrides on top of the file values.
func (c *Config) ApplyEnv() {
	if url := strings.TrimSpace(os.Getenv(APIURLEnv)); url != "" {
		c.Server.BaseURL = url
	}
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads the config at path, or starts from defaults when the file does
// not exist. Missing fields are defaulted relative to baseDir and environment
// overrides are applied.
func Load(path, baseDir string) (*Config, error) {
	cfg, err := ReadFromFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = NewConfig("", baseDir)
	} else if err != nil {
		return nil, err
	}

	cfg.fillDefaults(baseDir)
	cfg.ApplyEnv()
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
