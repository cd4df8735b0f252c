// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Reactor configuration: defaults, YAML file, environment overrides, and a
// thread-safe snapshot store with reload listeners.

package control

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Environment overrides, applied after the config file.
const (
	EnvBackend   = "HIOLOAD_EV_BACKEND"
	EnvMaxEvents = "HIOLOAD_EV_MAX_EVENTS"
	EnvLogLevel  = "HIOLOAD_EV_LOG_LEVEL"
	EnvMetrics   = "HIOLOAD_EV_METRICS"
)

// Config selects the multiplexer and ambient behaviour of event bases.
type Config struct {
	Backend   string `yaml:"backend"`    // "" picks the preferred backend
	MaxEvents int    `yaml:"max_events"` // initial readiness buffer size
	LogLevel  string `yaml:"log_level"`
	Metrics   bool   `yaml:"metrics"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		MaxEvents: 128,
		LogLevel:  "warn",
	}
}

// LoadConfig reads path (optional) over the defaults, then applies the
// environment. Unknown YAML keys are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv(EnvBackend); ok {
		cfg.Backend = v
	}
	if v, ok := os.LookupEnv(EnvMaxEvents); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxEvents, err)
		}
		cfg.MaxEvents = n
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv(EnvMetrics); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMetrics, err)
		}
		cfg.Metrics = b
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.MaxEvents < 1 {
		return fmt.Errorf("max_events must be positive, got %d", c.MaxEvents)
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}
	return nil
}

// ConfigStore keeps the current configuration and notifies listeners on change.
type ConfigStore struct {
	mu        sync.RWMutex
	config    Config
	listeners []func(Config)
}

// NewConfigStore initializes a store with cfg.
func NewConfigStore(cfg Config) *ConfigStore {
	return &ConfigStore{config: cfg}
}

// Snapshot returns the current configuration.
func (cs *ConfigStore) Snapshot() Config {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.config
}

// SetConfig replaces the configuration and runs listeners synchronously, in
// registration order, outside the store lock.
func (cs *ConfigStore) SetConfig(cfg Config) {
	cs.mu.Lock()
	cs.config = cfg
	listeners := append([]func(Config){}, cs.listeners...)
	cs.mu.Unlock()
	for _, fn := range listeners {
		fn(cfg)
	}
}

// OnReload registers a listener hook called on config changes.
func (cs *ConfigStore) OnReload(fn func(Config)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}
