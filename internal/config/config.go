// Package config holds the server configuration. Defaults match the
// long-standing wire constants; a YAML file can override the tunables
// and the positional CLI arguments supply the secrets and the address.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Server holds all configuration for the chess server.
type Server struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// Binding probes Port and up to MaxAttempts-1 successors.
	MaxAttempts int `yaml:"max_attempts"`

	// AcceptTimeoutSec bounds a single accept wait; it also bounds how long
	// a stop request can go unnoticed by the listener.
	AcceptTimeoutSec int `yaml:"accept_timeout"` // seconds

	// Admission
	MaxPerIP           int `yaml:"max_connection_per_ip"`
	HandshakeTimeoutMS int `yaml:"handshake_timeout"` // ms, per handshake record

	// Relay
	LinkIntervalSec  int `yaml:"link_interval"`      // seconds between matchmaker ticks
	RelayCycleMS     int `yaml:"relay_cycle"`        // ms, relay cycle floor
	DBUpdateInterval int `yaml:"db_update_interval"` // seconds between persistence passes

	// DataRoot is the directory the per-instance data dir is created in.
	DataRoot string `yaml:"data_root"`

	// Secrets, never read from the config file.
	Authentication      string `yaml:"-"`
	AdminAuthentication string `yaml:"-"`
}

// Default returns the Server config with the standard constants.
func Default() Server {
	return Server{
		Port:               55555,
		MaxAttempts:        5,
		AcceptTimeoutSec:   5,
		MaxPerIP:           25,
		HandshakeTimeoutMS: 900,
		LinkIntervalSec:    10,
		RelayCycleMS:       50,
		DBUpdateInterval:   3600,
		DataRoot:           ".",
	}
}

// Load reads the YAML config at path over the defaults. A missing file
// yields the defaults.
func Load(path string) (Server, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// DataDir returns the per-instance data directory, named after the
// configured address with dots flattened so it is filesystem-safe.
func (c Server) DataDir() string {
	name := fmt.Sprintf("data_%s_%d", c.BindAddress, c.Port)
	return filepath.Join(c.DataRoot, strings.ReplaceAll(name, ".", "_"))
}

// DatabasePath returns the location of the user database file.
func (c Server) DatabasePath() string {
	return filepath.Join(c.DataDir(), "users.db")
}

func (c Server) AcceptTimeout() time.Duration {
	return time.Duration(c.AcceptTimeoutSec) * time.Second
}

func (c Server) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutMS) * time.Millisecond
}

func (c Server) LinkInterval() time.Duration {
	return time.Duration(c.LinkIntervalSec) * time.Second
}

func (c Server) RelayCycle() time.Duration {
	return time.Duration(c.RelayCycleMS) * time.Millisecond
}

func (c Server) DBUpdateIntervalDur() time.Duration {
	return time.Duration(c.DBUpdateInterval) * time.Second
}

// LocalIP auto-detects the outward-facing local address by opening a UDP
// socket towards a public resolver. No traffic is sent.
func LocalIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", fmt.Errorf("detecting local address: %w", err)
	}
	defer conn.Close()

	host, _, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil {
		return "", fmt.Errorf("splitting local address: %w", err)
	}
	return host, nil
}
