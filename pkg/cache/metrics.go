package cache

import (
	"io/fs"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hubsync_cache_writes_total",
		Help: "Successful cache page writes.",
	})
	syncSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hubsync_cache_skips_total",
		Help: "Cache writes skipped by the malformed/oversized payload guard.",
	})
	syncErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hubsync_cache_errors_total",
		Help: "Cache write failures (swallowed by callers).",
	})
	hits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hubsync_cache_hits_total",
		Help: "Cache read hits.",
	})
	misses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hubsync_cache_misses_total",
		Help: "Cache read misses.",
	})
)

// Stats is a compact view of cache state for the status endpoint.
type Stats struct {
	Ready     bool   `json:"ready"`
	Path      string `json:"path"`
	DiskBytes uint64 `json:"disk_bytes"`
}

// GetStats returns best-effort cache stats; disk usage is computed by
// walking the cache directory.
func GetStats() Stats {
	mu.RLock()
	s := Stats{Ready: db != nil, Path: dbPath}
	mu.RUnlock()
	if s.Path == "" {
		return s
	}
	var total uint64
	_ = filepath.WalkDir(s.Path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += uint64(fi.Size())
		}
		return nil
	})
	s.DiskBytes = total
	return s
}
