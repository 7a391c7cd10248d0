package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied after file/env/flag merging.
const (
	DefaultCachePath  = "./.hubcache"
	DefaultExitDelay  = 300 * time.Millisecond
	DefaultHubTimeout = 10 * time.Second
	DefaultUndoWindow = 24 * time.Hour
	DefaultCron       = "0 3 * * *"
)

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyDefaults fills zero values with defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = DefaultCachePath
	}
	if cfg.Hub.Timeout == 0 {
		cfg.Hub.Timeout = Duration(DefaultHubTimeout)
	}
	if cfg.Unread.ExitDelay == 0 {
		cfg.Unread.ExitDelay = Duration(DefaultExitDelay)
	}
	if cfg.Retention.UndoWindow == 0 {
		cfg.Retention.UndoWindow = Duration(DefaultUndoWindow)
	}
	if cfg.Retention.Cron == "" {
		cfg.Retention.Cron = DefaultCron
	}
	if cfg.Realtime.Adapter == "" {
		cfg.Realtime.Adapter = "none"
	}
	if cfg.Receipts.RPS == 0 {
		cfg.Receipts.RPS = 5
	}
	if cfg.Receipts.Burst == 0 {
		cfg.Receipts.Burst = 20
	}
}

// EffectiveConfigResult is the merged view handed to the app: config file
// values overlaid by env, overlaid by explicitly set flags.
type EffectiveConfigResult struct {
	Config     *Config
	StatusAddr string
	CachePath  string
	Sources    []string // which of "flags", "env", "config" contributed
}

// LoadEffective merges config file, env and flags (flags win over env,
// env wins over file) and applies defaults.
func LoadEffective(flags Flags) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult
	cfg := &Config{}

	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	if loaded, err := Load(cfgPath); err == nil {
		cfg = loaded
		res.Sources = append(res.Sources, "config")
	} else if !os.IsNotExist(err) {
		return res, err
	}

	if ApplyEnv(cfg) {
		res.Sources = append(res.Sources, "env")
	}

	if len(flags.Set) > 0 {
		res.Sources = append(res.Sources, "flags")
	}
	if flags.Set["cache"] {
		cfg.Cache.Path = flags.Cache
	}
	if flags.Set["hub"] {
		cfg.Hub.BaseURL = flags.Hub
	}

	ApplyDefaults(cfg)

	res.Config = cfg
	res.StatusAddr = cfg.StatusAddr()
	if flags.Set["addr"] {
		res.StatusAddr = flags.Addr
	}
	res.CachePath = cfg.Cache.Path
	return res, nil
}
