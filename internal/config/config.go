// Package config loads chitchat.yaml and applies environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/omochice/chit-chat/internal/store"
	"github.com/omochice/chit-chat/internal/transport"
)

// DefaultPath is the config file read when no --config flag is given.
const DefaultPath = "chitchat.yaml"

// Config is the whole configuration for both binaries.
type Config struct {
	Client  ClientConfig  `yaml:"client"`
	History HistoryConfig `yaml:"history"`
	Typing  TypingConfig  `yaml:"typing"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// ClientConfig configures the connection side of the client.
type ClientConfig struct {
	WSURL            string `yaml:"ws_url"`
	HTTPURL          string `yaml:"http_url"`
	Transport        string `yaml:"transport"`
	HandshakeTimeout string `yaml:"handshake_timeout"`
	EventBuffer      int    `yaml:"event_buffer"`
}

// HistoryConfig configures the history request.
type HistoryConfig struct {
	Timeout string `yaml:"timeout"`
}

// TypingConfig configures the typing indicator.
type TypingConfig struct {
	Interval string `yaml:"interval"`
}

// ServerConfig configures the reference server.
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	Store        string `yaml:"store"`
	MongoURI     string `yaml:"mongo_uri"`
	SQLitePath   string `yaml:"sqlite_path"`
	HistoryLimit int    `yaml:"history_limit"`
	SendQueue    int    `yaml:"send_queue"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			WSURL:            "ws://localhost:8080",
			HTTPURL:          "http://localhost:8080",
			Transport:        transport.Gorilla,
			HandshakeTimeout: "10s",
			EventBuffer:      64,
		},
		History: HistoryConfig{
			Timeout: "5s",
		},
		Typing: TypingConfig{
			Interval: "2s",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			Store:        store.KindMemory,
			MongoURI:     "mongodb://localhost:27017",
			SQLitePath:   "chitchat.db",
			HistoryLimit: 20,
			SendQueue:    256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. The CHITCHAT_
// names win over the older REACT_APP_ ones.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("REACT_APP_WS_URL"); url != "" {
		c.Client.WSURL = url
	}
	if url := os.Getenv("REACT_APP_API_URL"); url != "" {
		c.Client.HTTPURL = url
	}
	if url := os.Getenv("CHITCHAT_WS_URL"); url != "" {
		c.Client.WSURL = url
	}
	if url := os.Getenv("CHITCHAT_HTTP_URL"); url != "" {
		c.Client.HTTPURL = url
	}
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		c.Server.MongoURI = uri
	}
}

// GetHandshakeTimeout returns the websocket handshake timeout.
func (c *Config) GetHandshakeTimeout() time.Duration {
	return parseDuration(c.Client.HandshakeTimeout, 10*time.Second)
}

// GetHistoryTimeout returns the history request timeout.
func (c *Config) GetHistoryTimeout() time.Duration {
	return parseDuration(c.History.Timeout, 5*time.Second)
}

// GetTypingInterval returns how long a typing signal stays visible.
func (c *Config) GetTypingInterval() time.Duration {
	return parseDuration(c.Typing.Interval, 2*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// ValidTransports lists the accepted client.transport values.
var ValidTransports = []string{transport.Gorilla, transport.Gobwas, transport.Nhooyr}

// ValidStores lists the accepted server.store values.
var ValidStores = []string{store.KindMemory, store.KindMongo, store.KindSQLite}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Client.Transport != "" && !contains(ValidTransports, c.Client.Transport) {
		return fmt.Errorf("invalid transport: %s (valid: %v)", c.Client.Transport, ValidTransports)
	}
	if !contains(ValidStores, c.Server.Store) {
		return fmt.Errorf("invalid store: %s (valid: %v)", c.Server.Store, ValidStores)
	}
	if c.Client.EventBuffer < 0 {
		return fmt.Errorf("invalid event_buffer: %d", c.Client.EventBuffer)
	}
	if c.Server.HistoryLimit <= 0 {
		return fmt.Errorf("invalid history_limit: %d", c.Server.HistoryLimit)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
