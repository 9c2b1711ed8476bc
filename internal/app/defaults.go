package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	// ConfigPathEnv overrides the config file location.
	ConfigPathEnv = "PDFCHAT_CONFIG_PATH"
	// HomeEnv overrides the base directory for pdfchat data.
	HomeEnv = "PDFCHAT_HOME"
)

// LoadEnvFile loads variables from path into the environment without
// overriding ones already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - PDFCHAT_CONFIG_PATH: config file location (default: ~/.config/pdfchat.toml)
//   - PDFCHAT_HOME: base directory for pdfchat data (default: ~/.local/share/pdfchat)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv(ConfigPathEnv); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "pdfchat.toml"), nil
}

func getBaseDir() (string, error) {
	if path := os.Getenv(HomeEnv); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "pdfchat"), nil
}
