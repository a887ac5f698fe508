// Package config provides configuration loading and management for semmap.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
)

// Config represents the complete semmap configuration
type Config struct {
	Session  SessionConfig  `yaml:"session"`
	Mappings MappingsConfig `yaml:"mappings"`
	Store    StoreConfig    `yaml:"store"`
	Log      LogConfig      `yaml:"log"`

	// Root is the project root relative paths resolve against. Set by the
	// Loader, never persisted.
	Root string `yaml:"-"`
}

// SessionConfig configures new sessions
type SessionConfig struct {
	// BaseURI resolves relative entity ids (empty = relative ids are rejected)
	BaseURI string `yaml:"base_uri"`
	// TrackChanges records changes for commit and rollback (default: true)
	TrackChanges bool `yaml:"track_changes"`
	// Language tags strings written through views
	Language string `yaml:"language"`
	// TypeGraph reads rdf:type from "<entity><suffix>" when it starts with
	// "#", or from one fixed graph IRI otherwise (empty = union of graphs)
	TypeGraph string `yaml:"type_graph"`
}

// MappingsConfig configures where mapping files come from
type MappingsConfig struct {
	// Paths are glob patterns of mapping files, relative to the project root
	Paths []string `yaml:"paths"`
	// Watch rebuilds mappings when files change
	Watch bool `yaml:"watch"`
	// Debounce is how long to wait for more changes before rebuilding
	Debounce time.Duration `yaml:"debounce"`
}

// StoreConfig configures the triple store backend
type StoreConfig struct {
	// Backend is "memory" or "nats"
	Backend string `yaml:"backend"`
	// NATSURL is the NATS server URL for the nats backend
	NATSURL string `yaml:"nats_url"`
	// Bucket is the JetStream KV bucket holding facts
	Bucket string `yaml:"bucket"`
	// Timeout bounds store round trips
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig configures logging
type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			TrackChanges: true,
		},
		Mappings: MappingsConfig{
			Paths:    []string{"mappings/**/*.yaml"},
			Debounce: 500 * time.Millisecond,
		},
		Store: StoreConfig{
			Backend: BackendMemory,
			NATSURL: "nats://localhost:4222",
			Bucket:  "SEMMAP_FACTS",
			Timeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendNATS:
		if c.Store.NATSURL == "" {
			return fmt.Errorf("store.nats_url is required for the nats backend")
		}
		if c.Store.Bucket == "" {
			return fmt.Errorf("store.bucket is required for the nats backend")
		}
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", BackendMemory, BackendNATS, c.Store.Backend)
	}
	if c.Mappings.Debounce < 0 {
		return fmt.Errorf("mappings.debounce must not be negative")
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		return fmt.Errorf("log.level must be debug, info, warn or error")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values).
// TrackChanges is always taken from other since files loaded with
// LoadFromFile start from the defaults.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Session
	if other.Session.BaseURI != "" {
		c.Session.BaseURI = other.Session.BaseURI
	}
	c.Session.TrackChanges = other.Session.TrackChanges
	if other.Session.Language != "" {
		c.Session.Language = other.Session.Language
	}
	if other.Session.TypeGraph != "" {
		c.Session.TypeGraph = other.Session.TypeGraph
	}

	// Mappings
	if len(other.Mappings.Paths) > 0 {
		c.Mappings.Paths = other.Mappings.Paths
	}
	if other.Mappings.Watch {
		c.Mappings.Watch = true
	}
	if other.Mappings.Debounce != 0 {
		c.Mappings.Debounce = other.Mappings.Debounce
	}

	// Store
	if other.Store.Backend != "" {
		c.Store.Backend = other.Store.Backend
	}
	if other.Store.NATSURL != "" {
		c.Store.NATSURL = other.Store.NATSURL
	}
	if other.Store.Bucket != "" {
		c.Store.Bucket = other.Store.Bucket
	}
	if other.Store.Timeout != 0 {
		c.Store.Timeout = other.Store.Timeout
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
}

// MappingPatterns returns the mapping globs resolved against the root.
func (c *Config) MappingPatterns() []string {
	out := make([]string, 0, len(c.Mappings.Paths))
	for _, p := range c.Mappings.Paths {
		if !filepath.IsAbs(p) && c.Root != "" {
			p = filepath.Join(c.Root, p)
		}
		out = append(out, p)
	}
	return out
}
