// Package config builds the server configuration once at startup.
package config

import (
	"errors"
	"fmt"
	"strconv"
)

// DefaultPort is used when no port argument is given.
const DefaultPort = 8000

// ErrInvalidPort is returned when the port argument is not an integer in 1..65535.
var ErrInvalidPort = errors.New("invalid port")

// Config is constructed once by Load and passed by value afterwards.
type Config struct {
	Port     int
	Root     string
	Settings Settings
}

// Addr returns the listen address for all interfaces.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Load reads the optional positional port argument and the optional
// settings file found in root.
func Load(args []string, root string) (Config, error) {
	port, err := ParsePort(args)
	if err != nil {
		return Config{}, err
	}

	settings, err := LoadSettings(root)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Port:     port,
		Root:     root,
		Settings: settings,
	}, nil
}

// ParsePort returns DefaultPort for empty args, otherwise the first argument.
// Extra arguments are ignored.
func ParsePort(args []string) (int, error) {
	if len(args) == 0 || args[0] == "" {
		return DefaultPort, nil
	}

	port, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w %q: not an integer", ErrInvalidPort, args[0])
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("%w %d: must be between 1 and 65535", ErrInvalidPort, port)
	}
	return port, nil
}
