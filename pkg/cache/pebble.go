package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble"

	"hubsync/pkg/logger"
	"hubsync/pkg/models"
)

// Local cache store for the hub. Gives the UI an instant "last known" view
// on cold load before network data arrives. Caching must never block or
// fail the caller: write errors are logged and swallowed, and when the
// store is unavailable every operation degrades to a no-op so in-memory
// query state stays the source of truth.
//
// Key layout:
//   threads:snapshot            full thread-list payload (last writer wins)
//   msgs:<threadID>             one thread's message page
//   pref:<threadID>:<name>      per-thread UI preference flags

const threadsKey = "threads:snapshot"

var (
	mu     sync.RWMutex
	db     *pebble.DB
	dbPath string

	// maxValueSize bounds a single cached page; 0 means unbounded.
	maxValueSize uint64
)

// Open opens (or creates) the pebble cache at the given path and keeps a
// package-level handle for simple usage.
func Open(path string) error {
	mu.Lock()
	defer mu.Unlock()
	logger.Info("opening_cache", "path", path)
	d, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("cache_open_failed", "path", path, "error", err)
		return err
	}
	db = d
	dbPath = path
	return nil
}

// Close closes the cache if open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("cache_closed")
	return nil
}

// Ready reports whether the cache is opened and usable.
func Ready() bool {
	mu.RLock()
	defer mu.RUnlock()
	return db != nil
}

// SetMaxValueSize bounds individual cached pages. Oversized sync payloads
// are skipped, not truncated.
func SetMaxValueSize(n uint64) {
	mu.Lock()
	maxValueSize = n
	mu.Unlock()
}

// SyncThreads persists the full thread-list payload under a fixed key.
// Last writer wins; there is no merge logic.
func SyncThreads(snap models.ThreadSnapshot) error {
	if snap.HouseholdID == "" || snap.CurrentUserID == "" {
		syncSkips.Inc()
		logger.Debug("cache_sync_skipped", "reason", "missing_identity")
		return nil
	}
	return setJSON(threadsKey, snap)
}

// Threads returns the last-known thread snapshot; ok=false on any miss or
// storage problem so cold-load rendering can fall through to the network.
func Threads() (models.ThreadSnapshot, bool) {
	var snap models.ThreadSnapshot
	ok := getJSON(threadsKey, &snap)
	return snap, ok
}

// SyncMessages persists a single thread's message page. The write is
// skipped when the page is empty or the payload is missing its thread or
// household identity, preventing a cache write from a malformed or
// partial response.
func SyncMessages(threadID string, snap models.MessageSnapshot) error {
	if threadID == "" || len(snap.Messages) == 0 || snap.Thread == "" || snap.HouseholdID == "" {
		syncSkips.Inc()
		logger.Debug("cache_sync_skipped", "thread", threadID, "reason", "malformed_page")
		return nil
	}
	return setJSON(msgsKey(threadID), snap)
}

// Messages returns the last-known message page for a thread.
func Messages(threadID string) (models.MessageSnapshot, bool) {
	var snap models.MessageSnapshot
	ok := getJSON(msgsKey(threadID), &snap)
	return snap, ok
}

// DropMessages removes a thread's cached message page (used by retention
// and hard thread deletion).
func DropMessages(threadID string) {
	mu.RLock()
	defer mu.RUnlock()
	if db == nil {
		return
	}
	if err := db.Delete([]byte(msgsKey(threadID)), pebble.Sync); err != nil {
		logger.Warn("cache_drop_failed", "thread", threadID, "error", err)
	}
}

// ZeroUnread optimistically zeroes a thread's unread badge inside the
// cached thread list. Called when the unread snapshot is captured, because
// the server has already marked those messages read as a side effect of
// returning them.
func ZeroUnread(threadID string) {
	snap, ok := Threads()
	if !ok {
		return
	}
	changed := false
	for i := range snap.Threads {
		if snap.Threads[i].ID == threadID && snap.Threads[i].UnreadCount != 0 {
			snap.Threads[i].UnreadCount = 0
			changed = true
		}
	}
	if changed {
		_ = setJSON(threadsKey, snap)
	}
}

// SetPref stores a per-thread UI preference flag (e.g. "show completed
// actions").
func SetPref(threadID, name string, on bool) {
	v := []byte("0")
	if on {
		v = []byte("1")
	}
	mu.RLock()
	defer mu.RUnlock()
	if db == nil {
		return
	}
	if err := db.Set([]byte(prefKey(threadID, name)), v, pebble.Sync); err != nil {
		logger.Warn("cache_pref_write_failed", "thread", threadID, "pref", name, "error", err)
	}
}

// Pref reads a per-thread preference flag; absent flags default to false.
func Pref(threadID, name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	if db == nil {
		return false
	}
	v, closer, err := db.Get([]byte(prefKey(threadID, name)))
	if err != nil {
		return false
	}
	on := bytes.Equal(v, []byte("1"))
	_ = closer.Close()
	return on
}

// CachedMessageThreads lists thread ids that currently have a cached
// message page. Used by retention to sweep orphaned pages.
func CachedMessageThreads() []string {
	mu.RLock()
	defer mu.RUnlock()
	if db == nil {
		return nil
	}
	prefix := []byte("msgs:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil
	}
	defer iter.Close()
	var out []string
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		out = append(out, strings.TrimPrefix(string(iter.Key()), "msgs:"))
	}
	return out
}

func msgsKey(threadID string) string { return "msgs:" + threadID }

func prefKey(threadID, name string) string {
	return fmt.Sprintf("pref:%s:%s", threadID, name)
}

func setJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	mu.RLock()
	defer mu.RUnlock()
	if db == nil {
		// storage unavailable: degrade to no-op
		return nil
	}
	if maxValueSize > 0 && uint64(len(data)) > maxValueSize {
		syncSkips.Inc()
		logger.Debug("cache_sync_skipped", "key", key, "reason", "oversized", "bytes", len(data))
		return nil
	}
	if err := db.Set([]byte(key), data, pebble.Sync); err != nil {
		syncErrors.Inc()
		logger.Warn("cache_write_failed", "key", key, "error", err)
		return err
	}
	syncWrites.Inc()
	return nil
}

func getJSON(key string, out any) bool {
	mu.RLock()
	defer mu.RUnlock()
	if db == nil {
		misses.Inc()
		return false
	}
	v, closer, err := db.Get([]byte(key))
	if err != nil {
		misses.Inc()
		return false
	}
	data := append([]byte(nil), v...)
	_ = closer.Close()
	if err := json.Unmarshal(data, out); err != nil {
		misses.Inc()
		logger.Warn("cache_decode_failed", "key", key, "error", err)
		return false
	}
	hits.Inc()
	return true
}
