package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"clipforge/internal/auth"
	"clipforge/internal/config"
	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/queue"
	"clipforge/internal/ratelimit"
	"clipforge/internal/status"
	"clipforge/internal/storage"
)

// Server carries the HTTP handlers and their collaborators.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	router *chi.Mux

	store        *jobs.Store
	queues       *queue.Queues
	publisher    *status.Publisher
	subscriber   *status.Subscriber
	jobLimiter   *ratelimit.JobLimiter
	loginLimiter *ratelimit.LoginLimiter
	issuer       *auth.TokenIssuer
	layout       storage.Layout
	rdb          *redis.Client

	throttle *rate.Limiter
	upgrader websocket.Upgrader
}

// NewServer wires the HTTP surface together and registers all routes.
func NewServer(
	cfg *config.Config,
	logger *slog.Logger,
	store *jobs.Store,
	queues *queue.Queues,
	publisher *status.Publisher,
	subscriber *status.Subscriber,
	jobLimiter *ratelimit.JobLimiter,
	loginLimiter *ratelimit.LoginLimiter,
	rdb *redis.Client,
) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		cfg:          cfg,
		logger:       logger.With(logging.String(logging.FieldComponent, "api")),
		router:       chi.NewRouter(),
		store:        store,
		queues:       queues,
		publisher:    publisher,
		subscriber:   subscriber,
		jobLimiter:   jobLimiter,
		loginLimiter: loginLimiter,
		issuer:       auth.NewTokenIssuer(cfg.Server.TokenSecret, cfg.TokenTTL()),
		layout:       storage.NewLayout(cfg.Paths.StorageDir),
		rdb:          rdb,
		throttle:     rate.NewLimiter(rate.Limit(cfg.Server.RequestsPerSec), cfg.Server.RequestBurst),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.registerRoutes()
	return s
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.corsMiddleware)
	s.router.Use(s.throttleMiddleware)

	s.router.Get("/healthz", s.health)

	s.router.Post("/auth/register", s.register)
	s.router.Post("/auth/login", s.login)

	s.router.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/jobs", s.createJob)
		r.Get("/jobs", s.listJobs)
		r.Get("/jobs/{id}", s.getJob)
		r.Patch("/jobs/{id}/status", s.overrideStatus)
		r.Get("/jobs/{id}/stream", s.streamJob)
		r.Get("/jobs/{id}/ws", s.streamJobWS)
	})

	staticFS := http.FileServer(http.Dir(s.layout.Root()))
	s.router.Handle("/storage/*", http.StripPrefix("/storage/", staticFS))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := map[string]string{"store": "ok", "redis": "ok"}
	healthy := true
	if err := s.store.Ping(ctx); err != nil {
		checks["store"] = err.Error()
		healthy = false
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	}
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	s.respond(w, code, envelope{Success: healthy, Data: map[string]any{
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}})
}
