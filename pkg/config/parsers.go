package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr   string
	Cache  string
	Hub    string
	Config string
	Set    map[string]bool
}

// ParseCommandFlags parses command-line flags. Flags explicitly set win
// over env and config file values.
func ParseCommandFlags() Flags {
	addrPtr := flag.String("addr", ":7610", "status listen address")
	cachePtr := flag.String("cache", DefaultCachePath, "local cache path")
	hubPtr := flag.String("hub", "", "hub API base URL")
	cfgPtr := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return Flags{Addr: *addrPtr, Cache: *cachePtr, Hub: *hubPtr, Config: *cfgPtr, Set: set}
}

// ResolveConfigPath picks the config file path: an explicit flag wins,
// otherwise HUBSYNC_CONFIG, otherwise the flag default.
func ResolveConfigPath(flagVal string, flagSet bool) string {
	if flagSet {
		return flagVal
	}
	if v := os.Getenv("HUBSYNC_CONFIG"); v != "" {
		return v
	}
	return flagVal
}

// ApplyEnv overlays HUBSYNC_* environment variables onto cfg and reports
// whether any were present.
func ApplyEnv(cfg *Config) bool {
	used := false
	sv := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
			used = true
		}
	}
	sv("HUBSYNC_CACHE_PATH", &cfg.Cache.Path)
	sv("HUBSYNC_HUB_BASE_URL", &cfg.Hub.BaseURL)
	sv("HUBSYNC_HUB_API_KEY", &cfg.Hub.APIKey)
	sv("HUBSYNC_LOG_LEVEL", &cfg.Logging.Level)
	sv("HUBSYNC_REALTIME_ADAPTER", &cfg.Realtime.Adapter)
	sv("HUBSYNC_REDIS_ADDR", &cfg.Realtime.Redis.Addr)
	sv("HUBSYNC_WS_URL", &cfg.Realtime.Websocket.URL)

	if v := strings.TrimSpace(os.Getenv("HUBSYNC_STATUS_ADDR")); v != "" {
		used = true
		if i := strings.LastIndex(v, ":"); i >= 0 {
			cfg.Status.Address = v[:i]
			if p, err := strconv.Atoi(v[i+1:]); err == nil {
				cfg.Status.Port = p
			}
		} else {
			cfg.Status.Address = v
		}
	}
	if v := strings.TrimSpace(os.Getenv("HUBSYNC_UNREAD_EXIT_DELAY")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Unread.ExitDelay = Duration(d)
			used = true
		}
	}
	if v := strings.TrimSpace(os.Getenv("HUBSYNC_RETENTION_ENABLED")); v != "" {
		used = true
		switch strings.ToLower(v) {
		case "1", "true", "yes":
			cfg.Retention.Enabled = true
		default:
			cfg.Retention.Enabled = false
		}
	}
	return used
}
