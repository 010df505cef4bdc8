package routes

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/BenjDW/maitre-slither/gateway/middleware"
)

// NodeRoute locates the settlement node RPC behind the gateway.
type NodeRoute struct {
	Target *url.URL
	Token  string
}

type Config struct {
	Node          NodeRoute
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
}

// New assembles the gateway router: health, metrics, the settlement REST
// bridge under /v1/settlement, and a raw JSON-RPC passthrough under /rpc
// (which also reaches the node's /ws/events stream).
func New(cfg Config) (http.Handler, error) {
	if cfg.Node.Target == nil {
		return nil, fmt.Errorf("node target is required")
	}

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))

	obs := cfg.Observability
	if obs != nil {
		r.Use(obs.Middleware("root"))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	bridge, err := newSettlementRoutes(cfg.Node.Target, cfg.Node.Token)
	if err != nil {
		return nil, fmt.Errorf("configure settlement routes: %w", err)
	}
	r.Route("/v1/settlement", func(sr chi.Router) {
		if cfg.RateLimiter != nil {
			sr.Use(cfg.RateLimiter.Middleware("settlement"))
		}
		if cfg.Authenticator != nil {
			sr.Use(cfg.Authenticator.Middleware(middleware.ScopeSettle))
		}
		if obs != nil {
			sr.Use(obs.Middleware("settlement"))
		}
		bridge.mount(sr)
	})

	proxy := NewProxy(cfg.Node.Target, "/rpc", cfg.Node.Token)
	r.Route("/rpc", func(sr chi.Router) {
		if cfg.RateLimiter != nil {
			sr.Use(cfg.RateLimiter.Middleware("rpc"))
		}
		if cfg.Authenticator != nil {
			sr.Use(cfg.Authenticator.Middleware(middleware.ScopeRPC))
		}
		if obs != nil {
			sr.Use(obs.Middleware("rpc"))
		}
		sr.Handle("/*", proxy)
		sr.Handle("/", proxy)
	})

	if obs != nil {
		r.Handle("/metrics", obs.MetricsHandler())
	}

	return r, nil
}
