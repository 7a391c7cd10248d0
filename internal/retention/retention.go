package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"hubsync/pkg/cache"
	"hubsync/pkg/config"
	"hubsync/pkg/logger"
)

var storedEff *config.EffectiveConfigResult

// SetEffectiveConfig stores the effective config so tests (or admin
// triggers) can invoke purge runs on-demand.
func SetEffectiveConfig(eff config.EffectiveConfigResult) {
	storedEff = &eff
}

// RunImmediate triggers a single purge run using the stored effective
// config. Returns an error if no effective config was registered.
func RunImmediate() error {
	if storedEff == nil {
		return fmt.Errorf("no effective config registered for retention run")
	}
	return runOnce(context.Background(), *storedEff)
}

// Start starts the cache purge scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, eff config.EffectiveConfigResult) (context.CancelFunc, error) {
	ret := eff.Config.Retention

	if !ret.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	cronExpr := ret.Cron
	if cronExpr == "" {
		cronExpr = config.DefaultCron
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", ret.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", ret.Cron)
	}

	logger.Info("retention_enabled", "cron", cronExpr, "undo_window", ret.UndoWindow.Std().String())
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, eff, cronExpr)
	return cancel, nil
}

// runScheduler computes the next tick for the configured cron expression
// with gronx and sleeps until that time, then purges expired cache entries.
func runScheduler(ctx context.Context, eff config.EffectiveConfigResult, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				logger.Info("retention_scheduler_stopping")
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			wait = time.Second
		}
		select {
		case <-time.After(wait):
			if err := runOnce(ctx, eff); err != nil {
				logger.Error("retention_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

// runOnce drops cached state that can no longer be useful: message pages
// of threads whose soft-delete passed the undo window (the server will
// refuse to restore them), the expired threads themselves, and orphaned
// message pages whose thread is gone from the cached list entirely.
func runOnce(_ context.Context, eff config.EffectiveConfigResult) error {
	ret := eff.Config.Retention
	window := ret.UndoWindow.Std()
	if window <= 0 {
		window = config.DefaultUndoWindow
	}
	cutoff := time.Now().UTC().Add(-window).UnixNano()

	snap, ok := cache.Threads()
	if !ok {
		logger.Info("retention_no_cached_threads")
		return nil
	}

	live := snap.Threads[:0:0]
	keep := make(map[string]struct{}, len(snap.Threads))
	expired := 0
	for _, t := range snap.Threads {
		if t.Deleted && t.DeletedTS != 0 && t.DeletedTS < cutoff {
			expired++
			if !ret.DryRun {
				cache.DropMessages(t.ID)
			}
			continue
		}
		live = append(live, t)
		keep[t.ID] = struct{}{}
	}

	orphans := 0
	for _, id := range cache.CachedMessageThreads() {
		if _, ok := keep[id]; ok {
			continue
		}
		orphans++
		if !ret.DryRun {
			cache.DropMessages(id)
		}
	}

	if ret.DryRun {
		logger.Info("retention_dry_run", "expired_threads", expired, "orphan_pages", orphans)
		return nil
	}

	if expired > 0 {
		snap.Threads = live
		if err := cache.SyncThreads(snap); err != nil {
			return fmt.Errorf("failed to rewrite thread snapshot: %w", err)
		}
	}
	logger.Info("retention_run_complete", "expired_threads", expired, "orphan_pages", orphans)
	return nil
}
