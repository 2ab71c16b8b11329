// Package server exposes the watch process over HTTP: health checks, metrics
// and a read-only JSON view of the tree, dashboard and route list.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nholik/sail-sentinel/internal/healthcheck"
	"github.com/nholik/sail-sentinel/internal/metrics"
	"github.com/nholik/sail-sentinel/internal/routes"
	"github.com/nholik/sail-sentinel/internal/view"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// TreeSource provides the service tree.
type TreeSource interface {
	Nodes() []view.Node
}

// DashboardSource provides the dashboard state.
type DashboardSource interface {
	State() view.DashboardState
}

// RouteSource provides the route table.
type RouteSource interface {
	Table() routes.Table
	Err() error
}

// ErrUnknownAction is returned by an action handler for names it does not serve.
var ErrUnknownAction = errors.New("unknown action")

// API holds the view sources. Nil members leave their route unregistered.
type API struct {
	Tree      TreeSource
	Dashboard DashboardSource
	Routes    RouteSource
	Refresh   func()
	// Action starts the named dashboard action and returns without waiting
	// for it to finish.
	Action func(name string) error
}

// Config describes which servers to start.
type Config struct {
	PollInterval time.Duration
	Tracker      *healthcheck.Tracker
	Metrics      *metrics.Metrics
	Host         string
	HealthPort   int
	MetricsPort  int
	API          API
}

// Start launches the HTTP servers as configured. The API shares the health
// port; a metrics port equal to the health port shares its mux.
func Start(ctx context.Context, logger zerolog.Logger, cfg Config) {
	if cfg.HealthPort == 0 && cfg.MetricsPort == 0 {
		return
	}

	if cfg.HealthPort > 0 && cfg.MetricsPort > 0 && cfg.HealthPort == cfg.MetricsPort {
		mux := HealthMux(cfg)
		registerMetricsRoute(mux, cfg.Metrics)
		startServer(ctx, logger, mux, ListenAddr(cfg.Host, cfg.HealthPort), "health/metrics")
		return
	}

	if cfg.HealthPort > 0 {
		startServer(ctx, logger, HealthMux(cfg), ListenAddr(cfg.Host, cfg.HealthPort), "health")
	}

	if cfg.MetricsPort > 0 {
		mux := http.NewServeMux()
		registerMetricsRoute(mux, cfg.Metrics)
		startServer(ctx, logger, mux, ListenAddr(cfg.Host, cfg.MetricsPort), "metrics")
	}
}

// HealthMux builds the mux served on the health port.
func HealthMux(cfg Config) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthcheck.HealthHandler(cfg.Tracker, cfg.PollInterval))
	mux.HandleFunc("/readyz", healthcheck.ReadyHandler(cfg.Tracker))
	registerAPIRoutes(mux, cfg.API)
	return mux
}

func registerAPIRoutes(mux *http.ServeMux, api API) {
	if api.Tree != nil {
		mux.HandleFunc("GET /api/tree", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, api.Tree.Nodes())
		})
	}
	if api.Dashboard != nil {
		mux.HandleFunc("GET /api/dashboard", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, api.Dashboard.State())
		})
	}
	if api.Routes != nil {
		mux.HandleFunc("GET /api/routes", func(w http.ResponseWriter, r *http.Request) {
			payload := routesPayload{Table: api.Routes.Table().Filter(r.URL.Query().Get("q"))}
			if err := api.Routes.Err(); err != nil {
				payload.Error = err.Error()
			}
			writeJSON(w, http.StatusOK, payload)
		})
	}
	if api.Refresh != nil {
		mux.HandleFunc("POST /api/refresh", func(w http.ResponseWriter, r *http.Request) {
			api.Refresh()
			w.WriteHeader(http.StatusAccepted)
		})
	}
	if api.Action != nil {
		mux.HandleFunc("POST /api/actions/{name}", func(w http.ResponseWriter, r *http.Request) {
			err := api.Action(r.PathValue("name"))
			switch {
			case errors.Is(err, ErrUnknownAction):
				http.Error(w, err.Error(), http.StatusNotFound)
			case err != nil:
				http.Error(w, err.Error(), http.StatusConflict)
			default:
				w.WriteHeader(http.StatusAccepted)
			}
		})
	}
}

type routesPayload struct {
	routes.Table
	Error string `json:"error,omitempty"`
}

func registerMetricsRoute(mux *http.ServeMux, metricsCollector *metrics.Metrics) {
	if metricsCollector == nil {
		return
	}
	mux.Handle("/metrics", metricsCollector.Handler())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// ListenAddr joins host and port. An empty host means loopback.
func ListenAddr(host string, port int) string {
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func startServer(ctx context.Context, logger zerolog.Logger, handler http.Handler, addr, label string) {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("server", label).Str("addr", addr).Msg("http server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("server", label).Str("addr", addr).Msg("http server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Str("server", label).Str("addr", addr).Msg("http server shutdown failed")
		}
	}()
}
