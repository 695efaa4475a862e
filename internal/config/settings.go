package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SettingsFile is looked up in the served root.
const SettingsFile = "nocache.yaml"

// Settings contains the server tunables.
// These can be overridden via nocache.yaml
type Settings struct {
	// Timeouts
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"` // Request header read timeout (default: 10s)
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`   // Time in-flight requests get after interrupt (default: 5s)

	// Watcher
	Watch            bool          `yaml:"watch"`            // Log changed files under the root (default: false)
	DebounceDuration time.Duration `yaml:"debounceDuration"` // File watcher debounce (default: 300ms)

	// Extra extension -> content type registrations, e.g. ".wasm": "application/wasm"
	MimeTypes map[string]string `yaml:"mimeTypes"`

	LogLevel string `yaml:"logLevel"` // debug, info, warn, error (default: info)
}

// DefaultSettings returns the default settings
func DefaultSettings() Settings {
	return Settings{
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		Watch:             false,
		DebounceDuration:  300 * time.Millisecond,
		LogLevel:          "info",
	}
}

// LoadSettings loads settings from nocache.yaml in dir.
// Returns defaults if the file doesn't exist.
func LoadSettings(dir string) (Settings, error) {
	s := DefaultSettings()

	path := filepath.Join(dir, SettingsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &s); err != nil {
		return DefaultSettings(), fmt.Errorf("failed to parse %s: %w", path, err)
	}

	s.validate()
	return s, nil
}

// validate clamps values into reasonable bounds
func (s *Settings) validate() {
	if s.ReadHeaderTimeout < time.Second {
		s.ReadHeaderTimeout = time.Second
	}
	if s.ReadHeaderTimeout > 5*time.Minute {
		s.ReadHeaderTimeout = 5 * time.Minute
	}
	if s.ShutdownTimeout < 0 {
		s.ShutdownTimeout = 0
	}
	if s.ShutdownTimeout > 60*time.Second {
		s.ShutdownTimeout = 60 * time.Second
	}
	if s.DebounceDuration < 10*time.Millisecond {
		s.DebounceDuration = 10 * time.Millisecond
	}
	if s.DebounceDuration > 5*time.Second {
		s.DebounceDuration = 5 * time.Second
	}

	s.LogLevel = strings.ToLower(strings.TrimSpace(s.LogLevel))
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}

	if len(s.MimeTypes) > 0 {
		normalized := make(map[string]string, len(s.MimeTypes))
		for ext, typ := range s.MimeTypes {
			ext = strings.TrimSpace(ext)
			if ext == "" || typ == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			normalized[ext] = typ
		}
		s.MimeTypes = normalized
	}
}
