// Package gateway serves the liveness endpoint and metrics.
package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/voxrelay/voxrelay/internal/observability"
)

// AliveBanner is the fixed body of the root liveness route.
const AliveBanner = "✅ voxrelay gateway is alive"

// NewRouter builds the gateway HTTP router. It has no access to conversation
// state; it only signals process health.
func NewRouter(version string, started time.Time) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, AliveBanner)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"version": version,
			"uptime":  time.Since(started).Round(time.Second).String(),
		})
	})

	r.Method(http.MethodGet, "/metrics", observability.MetricsHandler())

	return r
}

// Serve runs the gateway server until the listener fails.
func Serve(addr, version string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(version, time.Now()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
