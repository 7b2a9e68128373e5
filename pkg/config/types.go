package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Remote  RemoteConfig  `yaml:"remote"`
	Sync    SyncConfig    `yaml:"sync"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds the local consumer-API listen settings.
type ServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// StorageConfig holds the local cache database settings.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// RemoteConfig holds the endpoints of the external collaborators: the
// directory service, the history fetch service, and the push channel.
type RemoteConfig struct {
	DirectoryURL string `yaml:"directory_url"`
	HistoryURL   string `yaml:"history_url"`
	PushURL      string `yaml:"push_url"`
	Token        string `yaml:"token"`
	Username     string `yaml:"username"`
}

// SyncConfig holds the synchronization engine tunables.
type SyncConfig struct {
	// PageLimit is the history fetch page size (default 100).
	PageLimit int `yaml:"page_limit"`
	// SendWatchdog bounds how long an optimistic send waits for a server
	// acknowledgment before the local copy is annotated as failed.
	SendWatchdog Duration `yaml:"send_watchdog"`
	// FetchRPS / FetchBurst pace history fetch requests.
	FetchRPS   float64 `yaml:"fetch_rps"`
	FetchBurst int     `yaml:"fetch_burst"`
	// ResyncCron optionally re-runs the pull reconciliation on a schedule.
	ResyncCron string `yaml:"resync_cron"`
	// QueueCapacity bounds the push-event queue.
	QueueCapacity int `yaml:"queue_capacity"`
	// MaxContentLen rejects messages whose content exceeds this many bytes
	// (0 disables the check).
	MaxContentLen int `yaml:"max_content_len"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Addr returns the configured listen address as host:port.
func (c *Config) Addr() string {
	host := c.Server.Address
	port := c.Server.Port
	if port == 0 {
		port = 8777
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// Duration is a wrapper around time.Duration that supports YAML parsing from
// strings like "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
