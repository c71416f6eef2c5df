package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	// DefaultClientBaseURL is where the animals service listens by default.
	DefaultClientBaseURL = "http://localhost:3000/api"
	defaultClientLog     = "warn"

	// EnvClientBaseURL overrides the base URL from the config file.
	EnvClientBaseURL = "ANIMALS_API_URL"
)

// ClientConfig holds the settings of the animals CLI client.
type ClientConfig struct {
	BaseURL  string
	LogLevel string
}

// LoadClient resolves the client configuration. Defaults come first, then the
// optional TOML file at path (keys base_url and log_level), then
// ANIMALS_API_URL. A missing file is not an error.
func LoadClient(path string) (ClientConfig, error) {
	cfg := ClientConfig{BaseURL: DefaultClientBaseURL, LogLevel: defaultClientLog}

	if strings.TrimSpace(path) != "" {
		resolved, err := expandPath(path)
		if err != nil {
			return ClientConfig{}, err
		}
		if err := readClientFile(resolved, &cfg); err != nil {
			return ClientConfig{}, err
		}
	}

	if v := strings.TrimSpace(os.Getenv(EnvClientBaseURL)); v != "" {
		cfg.BaseURL = v
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	return cfg, nil
}

func readClientFile(path string, cfg *ClientConfig) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open client config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read client config: %w", err)
	}

	var raw struct {
		BaseURL  string `toml:"base_url"`
		LogLevel string `toml:"log_level"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return fmt.Errorf("parse client config: %w", err)
	}
	if v := strings.TrimSpace(raw.BaseURL); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = v
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
