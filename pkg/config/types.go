package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Status    StatusConfig    `yaml:"status"`
	Cache     CacheConfig     `yaml:"cache"`
	Hub       HubConfig       `yaml:"hub"`
	Realtime  RealtimeConfig  `yaml:"realtime"`
	Unread    UnreadConfig    `yaml:"unread"`
	Receipts  ReceiptsConfig  `yaml:"receipts"`
	Retention RetentionConfig `yaml:"retention"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StatusConfig holds the local status/metrics listener settings.
type StatusConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// CacheConfig holds the local pebble cache settings.
type CacheConfig struct {
	Path string `yaml:"path"`
	// MaxValueSize bounds a single cached page; larger sync payloads are
	// skipped rather than written.
	MaxValueSize Size `yaml:"max_value_size"`
}

// HubConfig holds the upstream hub API settings.
type HubConfig struct {
	BaseURL string   `yaml:"base_url"`
	APIKey  string   `yaml:"api_key"`
	Timeout Duration `yaml:"timeout"`
}

// RealtimeConfig selects and configures the realtime channel adapter.
type RealtimeConfig struct {
	Adapter string `yaml:"adapter"` // redis|websocket|none
	Redis   struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Websocket struct {
		URL string `yaml:"url"`
	} `yaml:"websocket"`
}

// UnreadConfig tunes the unread separator lifecycle.
type UnreadConfig struct {
	// ExitDelay is how long the separator's exit animation runs before the
	// frozen snapshot clears.
	ExitDelay Duration `yaml:"exit_delay"`
}

// ReceiptsConfig throttles read-receipt broadcasting.
type ReceiptsConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// RetentionConfig holds configuration for the cache purge runner.
type RetentionConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
	// UndoWindow is how long a soft-deleted thread stays recoverable.
	UndoWindow Duration `yaml:"undo_window"`
	DryRun     bool     `yaml:"dry_run"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// StatusAddr returns the listen address for the status endpoint.
func (c *Config) StatusAddr() string {
	host := c.Status.Address
	port := c.Status.Port
	if port == 0 {
		port = 7610
	}
	return host + ":" + strconv.Itoa(port)
}

// Duration is a yaml-friendly wrapper accepting Go duration strings
// ("300ms", "24h").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Size is a yaml-friendly byte size accepting humanized strings
// ("4 MiB", "512KB") or plain integers.
type Size uint64

func (s *Size) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw == "" {
		*s = 0
		return nil
	}
	v, err := humanize.ParseBytes(raw)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", raw, err)
	}
	*s = Size(v)
	return nil
}
