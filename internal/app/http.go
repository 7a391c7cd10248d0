package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hubsync/pkg/banner"
	"hubsync/pkg/cache"
	"hubsync/pkg/session"
	"hubsync/pkg/utils"
)

const shutdownTimeout = 5 * time.Second

// printBanner prints the startup banner and build info.
func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "none" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "unknown" {
		verStr += " @ " + a.buildDate
	}
	banner.PrintWithEff(a.eff, verStr)
}

// statusPayload is the /statusz response body.
type statusPayload struct {
	Status   string      `json:"status"`
	Version  string      `json:"version"`
	Instance string      `json:"instance"`
	View     string      `json:"view"`
	Thread   string      `json:"thread,omitempty"`
	Adapter  string      `json:"adapter"`
	Cache    cache.Stats `json:"cache"`
}

func (a *App) setupRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	r.HandleFunc("/statusz", a.statuszHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statuszHandler reports what the reconciler is doing right now: active
// view, open thread, realtime adapter and local cache health.
func (a *App) statuszHandler(w http.ResponseWriter, _ *http.Request) {
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	p := statusPayload{
		Status:   "ok",
		Version:  ver,
		Instance: a.instanceID,
		Adapter:  a.eff.Config.Realtime.Adapter,
		Cache:    cache.GetStats(),
	}
	if a.sess == nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "session not started")
		return
	}
	if a.sess.View() == session.ViewThread {
		p.View = "thread"
		p.Thread = a.sess.ActiveThread()
	} else {
		p.View = "list"
	}
	_ = utils.JSONWrite(w, http.StatusOK, p)
}

// startHTTP starts the local status listener in a goroutine and returns a
// channel that will contain any listener error.
func (a *App) startHTTP(_ context.Context) <-chan error {
	r := mux.NewRouter()
	a.setupRoutes(r)

	a.srv = &http.Server{Addr: a.eff.StatusAddr, Handler: r}

	errCh := make(chan error, 1)
	go func() {
		err := a.srv.ListenAndServe()
		if err == http.ErrServerClosed {
			err = nil
		}
		errCh <- err
	}()
	return errCh
}
