// Package server exposes the read-only query surface and the refresh
// control endpoint over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/neofeeds/internal/aggregate"
	"github.com/R3E-Network/neofeeds/internal/config"
	"github.com/R3E-Network/neofeeds/internal/httputil"
	"github.com/R3E-Network/neofeeds/internal/metrics"
	"github.com/R3E-Network/neofeeds/internal/middleware"
	"github.com/R3E-Network/neofeeds/internal/publish"
	"github.com/R3E-Network/neofeeds/internal/scheduler"
	"github.com/R3E-Network/neofeeds/pkg/logging"
)

// Options tunes the control plane surface.
type Options struct {
	ListenAddr        string
	RequestsPerSecond int
	Burst             int
	CORSOrigins       []string
}

// limiterCleanupInterval is how often the rate limiter sheds stale clients.
const limiterCleanupInterval = 10 * time.Minute

// Server serves feed state, prices, and policy over HTTP.
type Server struct {
	cfg       *config.FeedsConfig
	scheduler *scheduler.Scheduler
	engine    *publish.Engine
	metrics   *metrics.Metrics
	log       *logging.Logger
	router    *mux.Router
	httpSrv   *http.Server
	limiter   *middleware.RateLimiter
	stopCh    chan struct{}
	stopOnce  sync.Once
	started   time.Time
}

// New builds the server and its routes.
func New(opts Options, cfg *config.FeedsConfig, sched *scheduler.Scheduler, engine *publish.Engine, m *metrics.Metrics, log *logging.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		scheduler: sched,
		engine:    engine,
		metrics:   m,
		log:       log,
		router:    mux.NewRouter(),
		stopCh:    make(chan struct{}),
		started:   time.Now(),
	}

	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 20
	}
	if opts.Burst <= 0 {
		opts.Burst = 40
	}

	s.router.Use(middleware.LoggingMiddleware(log))
	s.router.Use(middleware.MetricsMiddleware(m))
	if len(opts.CORSOrigins) > 0 {
		s.router.Use(middleware.NewCORSMiddleware(opts.CORSOrigins).Handler)
	}
	s.limiter = middleware.NewRateLimiter(opts.RequestsPerSecond, opts.Burst, log)
	s.router.Use(s.limiter.Handler)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/price/{symbol}", s.handlePrice).Methods(http.MethodGet)
	s.router.HandleFunc("/prices", s.handlePrices).Methods(http.MethodGet)
	s.router.HandleFunc("/feeds", s.handleFeeds).Methods(http.MethodGet)
	s.router.HandleFunc("/feeds/{symbol}/refresh", s.handleRefresh).Methods(http.MethodPost)
	s.router.HandleFunc("/sources", s.handleSources).Methods(http.MethodGet)
	s.router.HandleFunc("/config", s.handleConfig).Methods(http.MethodGet)
	s.router.HandleFunc("/policy", s.handlePolicy).Methods(http.MethodGet)
	s.router.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	s.router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	s.httpSrv = &http.Server{
		Addr:              opts.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router exposes the handler tree, used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.limiter.StartCleanup(limiterCleanupInterval, s.stopCh)
	s.log.WithField("addr", s.httpSrv.Addr).Info("http server listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the limiter cleanup loop.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"service":        "neofeeds",
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"feeds":          len(s.cfg.GetEnabledFeeds()),
	})
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	symbol := config.NormalizePair(mux.Vars(r)["symbol"])
	price, ok := s.scheduler.LatestPrice(symbol)
	if !ok {
		httputil.NotFound(w, "no price observed for "+symbol)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, price)
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	prices := s.scheduler.LatestPrices()
	if prices == nil {
		prices = []*aggregate.AggregatedPrice{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"prices": prices,
		"count":  len(prices),
	})
}

func (s *Server) handleFeeds(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"feeds": s.cfg.Feeds,
		"count": len(s.cfg.Feeds),
	})
}

// sourceView is a SourceConfig with credential headers redacted.
type sourceView struct {
	ID       string   `json:"id"`
	Name     string   `json:"name,omitempty"`
	URL      string   `json:"url"`
	JSONPath string   `json:"json_path"`
	Weight   int      `json:"weight"`
	Headers  []string `json:"headers,omitempty"`
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	views := make([]sourceView, 0, len(s.cfg.Sources))
	for _, src := range s.cfg.Sources {
		view := sourceView{
			ID:       src.ID,
			Name:     src.Name,
			URL:      src.URL,
			JSONPath: src.JSONPath,
			Weight:   src.Weight,
		}
		for name := range src.Headers {
			view.Headers = append(view.Headers, name)
		}
		views = append(views, view)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sources": views,
		"count":   len(views),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version":         s.cfg.Version,
		"update_interval": s.cfg.UpdateInterval.String(),
		"strict_mode":     s.cfg.StrictMode,
		"sources":         len(s.cfg.Sources),
		"feeds":           len(s.cfg.Feeds),
		"publish_policy":  s.cfg.PublishPolicy,
	})
}

func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.engine.Policy())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snapshots := s.engine.Snapshots()
	if snapshots == nil {
		snapshots = []publish.Snapshot{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"symbols": snapshots,
		"count":   len(snapshots),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	symbol := config.NormalizePair(mux.Vars(r)["symbol"])

	result, err := s.scheduler.RunOnce(r.Context(), symbol)
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrUnknownFeed):
			httputil.NotFound(w, err.Error())
		case errors.Is(err, scheduler.ErrTickInFlight):
			httputil.Conflict(w, "a pass for "+symbol+" is already running")
		default:
			var insufficient *aggregate.InsufficientSourcesError
			if errors.As(err, &insufficient) {
				httputil.ServiceUnavailable(w, err.Error())
				return
			}
			s.log.WithError(err).WithField("symbol", symbol).Error("forced refresh failed")
			httputil.InternalError(w, "refresh failed")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"result": result,
	})
}
