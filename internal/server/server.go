package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/crusont/crusont/internal/handler"
	"github.com/crusont/crusont/internal/provider"
	"github.com/crusont/crusont/internal/server/middleware"
	"github.com/crusont/crusont/internal/service"
	"github.com/crusont/crusont/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host              string
	Port              int
	ShutdownTimeout   time.Duration
	CORSOrigins       []string
	CORSMethods       []string
	MaxBodySize       int64 // bytes
	RequestsPerMinute int   // per API key on inference endpoints, 0 disables
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              8080,
		ShutdownTimeout:   30 * time.Second,
		CORSOrigins:       []string{"*"},
		CORSMethods:       []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		MaxBodySize:       10 * 1024 * 1024, // 10MB
		RequestsPerMinute: 0,
	}
}

// Server is the top-level HTTP server for Crusont. It owns the Chi
// router, the provider registry, the store, and the key and auth
// services.
type Server struct {
	cfg        Config
	router     chi.Router
	registry   *provider.Registry
	store      *store.Store
	authSvc    *service.AuthService
	keySvc     *service.KeyService
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, registry *provider.Registry, st *store.Store, authSvc *service.AuthService, keySvc *service.KeyService, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		registry: registry,
		store:    st,
		authSvc:  authSvc,
		keySvc:   keySvc,
		logger:   logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	corsMethods := s.cfg.CORSMethods
	if len(corsMethods) == 0 {
		corsMethods = DefaultConfig().CORSMethods
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   corsMethods,
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))

	// --- Health checks (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// --- OpenAPI spec (no auth required) ---
	r.Get("/openapi.json", handler.NewOpenAPIHandler(s.registry).ServeSpec)

	r.Route("/v1", func(r chi.Router) {
		forwardHandler := handler.NewForwardHandler(s.registry, s.cfg.MaxBodySize, s.logger)

		// Key self-management
		r.Route("/keys", func(r chi.Router) {
			r.Use(middleware.Authenticate(s.authSvc))

			keysHandler := handler.NewKeysHandler(s.keySvc, s.logger)
			r.Get("/", keysHandler.List)
			r.Post("/", keysHandler.Create)
			r.Delete("/{keyID}", keysHandler.Delete)
		})

		// Inference endpoints, forwarded to upstream providers
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(s.authSvc))
			if s.cfg.RequestsPerMinute > 0 {
				r.Use(middleware.RateLimitByBearer(s.cfg.RequestsPerMinute))
			}

			r.Get("/models", forwardHandler.Models)
			r.Post("/chat/completions", forwardHandler.Forward)
			r.Post("/embeddings", forwardHandler.Forward)
			r.Post("/moderations", forwardHandler.Forward)
			r.Post("/images/generations", forwardHandler.Forward)
			r.Post("/audio/speech", forwardHandler.Forward)
			r.Post("/text/translations", forwardHandler.Forward)
		})

		// System APIs (admin management)
		r.Route("/system", func(r chi.Router) {
			sysHandler := handler.NewSystemHandler(s.store, s.authSvc, s.keySvc, s.registry, s.logger)

			// Session endpoints are unauthenticated (login) or self-authenticated (logout)
			r.Post("/admin/session", sysHandler.Login)
			r.Delete("/admin/session", sysHandler.Logout)

			// All other system endpoints require an admin session
			r.Group(func(r chi.Router) {
				r.Use(middleware.AuthenticateAdmin(s.authSvc))

				// Admin accounts
				r.Get("/admins", sysHandler.ListAdmins)
				r.Post("/admins", sysHandler.CreateAdmin)

				// User accounts
				r.Get("/users", sysHandler.ListUsers)
				r.Post("/users", sysHandler.CreateUser)
				r.Get("/users/{userID}", sysHandler.GetUser)
				r.Put("/users/{userID}", sysHandler.UpdateUser)
				r.Delete("/users/{userID}", sysHandler.DeleteUser)
				r.Post("/users/{userID}/keys", sysHandler.CreateUserKey)

				// Providers
				r.Get("/providers", sysHandler.ListProviders)
				r.Post("/providers", sysHandler.CreateProvider)
				r.Get("/providers/{providerName}", sysHandler.GetProvider)
				r.Put("/providers/{providerName}", sysHandler.UpdateProvider)
				r.Delete("/providers/{providerName}", sysHandler.DeleteProvider)
			})
		})
	})

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the store is
// reachable, 503 otherwise. Provider reachability is reported but does
// not fail readiness; the gateway can still serve key management while
// an upstream is down.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if err := s.store.Ping(r.Context()); err != nil {
		checks["store"] = "error: " + err.Error()
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	for _, name := range s.registry.Names() {
		client, err := s.registry.Get(name)
		if err != nil {
			checks[name] = "error: " + err.Error()
			continue
		}
		if err := client.Check(r.Context()); err != nil {
			checks[name] = "error: " + err.Error()
		} else {
			checks[name] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before closing the store.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // upstream inference calls can be slow
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if err := s.store.Close(); err != nil {
		s.logger.Warn("closing store", "error", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
