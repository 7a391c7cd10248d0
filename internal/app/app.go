package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"hubsync/pkg/cache"
	"hubsync/pkg/config"
	"hubsync/pkg/hubapi"
	"hubsync/pkg/logger"
	"hubsync/pkg/realtime"
	"hubsync/pkg/receipts"
	"hubsync/pkg/session"
	"hubsync/pkg/state"
	"hubsync/pkg/unread"

	"hubsync/internal/retention"
)

// App encapsulates the reconciler components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string
	// instanceID distinguishes this process in logs and status output when
	// both household members run a reconciler against the same hub.
	instanceID string

	hub  *hubapi.Client
	ch   realtime.Channel
	sess *session.Session

	srv             *http.Server
	cancelRetention context.CancelFunc
}

// New initializes resources that do not require a running context (local
// cache, hub client). It does not open realtime channels or the status
// listener; call Run to start those and block until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	// cache trouble degrades to fetch-every-time, never to a startup failure
	if err := state.EnsureStateDirs(eff.CachePath); err != nil {
		logger.Warn("state_dirs_failed", "root", eff.CachePath, "error", err)
	} else if err := cache.Open(state.PathsVar.Store); err != nil {
		logger.Warn("cache_open_failed", "path", state.PathsVar.Store, "error", err)
	}
	if n := eff.Config.Cache.MaxValueSize; n > 0 {
		cache.SetMaxValueSize(uint64(n))
	}

	hub := hubapi.New(eff.Config.Hub.BaseURL, eff.Config.Hub.APIKey, eff.Config.Hub.Timeout.Std())

	a := &App{
		eff:        eff,
		version:    version,
		commit:     commit,
		buildDate:  buildDate,
		instanceID: uuid.NewString(),
		hub:        hub,
	}
	logger.Info("app_initialized", "instance", a.instanceID, "hub", eff.Config.Hub.BaseURL)
	return a, nil
}

// Run wires the realtime channel, receipts, unread engine and session
// together, starts the status listener and retention scheduler, and
// blocks until ctx is canceled or a fatal listener error occurs.
func (a *App) Run(ctx context.Context) error {
	ch, err := a.buildChannel()
	if err != nil {
		return err
	}
	a.ch = ch

	rec := receipts.New(a.hub, ch, a.eff.Config.Receipts.RPS, a.eff.Config.Receipts.Burst)
	eng := unread.NewEngine(a.eff.Config.Unread.ExitDelay.Std())
	a.sess = session.New(a.hub, ch, rec, eng, session.Options{
		Notify: func(msg string) {
			logger.Warn("user_notice", "message", msg)
		},
		OnScroll: func(d unread.ScrollDirective) {
			logger.Debug("scroll_directive", "kind", d.Kind.String(), "target", d.TargetID)
		},
	})

	a.printBanner()

	cancelRet, err := retention.Start(ctx, a.eff)
	if err != nil {
		return err
	}
	a.cancelRetention = cancelRet
	retention.SetEffectiveConfig(a.eff)

	errCh := a.startHTTP(ctx)

	if err := a.sess.Start(ctx); err != nil {
		a.shutdown()
		return fmt.Errorf("failed to load thread list: %w", err)
	}

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		a.shutdown()
		return err
	}
}

// Session exposes the running session for embedding callers.
func (a *App) Session() *session.Session { return a.sess }

func (a *App) shutdown() {
	if a.sess != nil {
		a.sess.Close()
	}
	if a.cancelRetention != nil {
		a.cancelRetention()
	}
	if a.srv != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		_ = a.srv.Shutdown(shutCtx)
		cancel()
	}
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			logger.Warn("channel_close_failed", "error", err)
		}
	}
	if err := cache.Close(); err != nil {
		logger.Warn("cache_close_failed", "error", err)
	}
}

// buildChannel selects the realtime adapter from config. "none" runs an
// in-process channel so the session logic is identical with or without a
// broker.
func (a *App) buildChannel() (realtime.Channel, error) {
	rt := a.eff.Config.Realtime
	switch rt.Adapter {
	case "redis":
		return realtime.NewRedis(rt.Redis.Addr, rt.Redis.Password, rt.Redis.DB), nil
	case "websocket":
		return realtime.NewWebsocket(rt.Websocket.URL), nil
	case "", "none":
		return realtime.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown realtime adapter: %s", rt.Adapter)
	}
}

// validateConfig fails fast on config the app cannot run with.
func validateConfig(eff config.EffectiveConfigResult) error {
	cfg := eff.Config
	if cfg == nil {
		return fmt.Errorf("no effective config")
	}
	if cfg.Hub.BaseURL == "" {
		return fmt.Errorf("hub base URL is required (hub.base_url or HUBSYNC_HUB_BASE_URL)")
	}
	switch cfg.Realtime.Adapter {
	case "redis":
		if cfg.Realtime.Redis.Addr == "" {
			return fmt.Errorf("realtime adapter redis requires realtime.redis.addr")
		}
	case "websocket":
		if cfg.Realtime.Websocket.URL == "" {
			return fmt.Errorf("realtime adapter websocket requires realtime.websocket.url")
		}
	}
	return nil
}
