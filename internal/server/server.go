// Package server exposes the code pipeline over HTTP so a repository
// webhook can trigger deployments. The HMAC signature on the payload is
// the credential here; the CLI allow-list does not apply.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/isotopp/deploy/internal/deploy"
	"github.com/isotopp/deploy/internal/history"
	"github.com/isotopp/deploy/internal/store"
)

const (
	HTTPReadTimeout  = 10 * time.Second
	HTTPWriteTimeout = 10 * time.Second
	HTTPIdleTimeout  = 60 * time.Second

	RequestTimeout = 60 * time.Second

	// Requests per minute, per IP.
	GlobalRateLimit  = 12
	WebhookRateLimit = 4
)

// Server receives webhook requests and runs the deploy pipeline.
type Server struct {
	Store         *store.Store
	Runner        deploy.Runner
	History       *history.History // optional
	LockManager   *deploy.LockManager
	Logger        *slog.Logger
	Secret        string
	DeployTimeout time.Duration
	ExposeOutput  bool
	TestMode      bool

	deployWg sync.WaitGroup
}

// NewServer creates a server over the given store and runner.
func NewServer(st *store.Store, runner deploy.Runner, hist *history.History, logger *slog.Logger, secret string, deployTimeout time.Duration) *Server {
	return &Server{
		Store:         st,
		Runner:        runner,
		History:       hist,
		LockManager:   deploy.NewLockManager(),
		Logger:        logger,
		Secret:        secret,
		DeployTimeout: deployTimeout,
	}
}

// Router creates and configures the HTTP router.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout))

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				s.Logger.Info("http_request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration_ms", time.Since(start).Milliseconds())
			}()

			next.ServeHTTP(ww, r)
		})
	})

	if !s.TestMode {
		r.Use(NewRateLimitMiddleware(GlobalRateLimit, s.Logger))
	}

	r.Get("/health", s.HandleHealth)
	r.Get("/status/{projectName}", s.HandleStatus)

	if !s.TestMode {
		r.With(NewRateLimitMiddleware(WebhookRateLimit, s.Logger)).Post("/deploy/{projectName}", s.HandleDeploy)
	} else {
		r.Post("/deploy/{projectName}", s.HandleDeploy)
	}

	return r
}

// Start starts the HTTP server.
func (s *Server) Start(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	s.Logger.Info("starting webhook server", "addr", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  HTTPReadTimeout,
		WriteTimeout: HTTPWriteTimeout,
		IdleTimeout:  HTTPIdleTimeout,
	}

	return server.ListenAndServe()
}

// WaitForDeployments waits for all in-flight async deploys to finish.
// This is primarily useful for testing.
func (s *Server) WaitForDeployments() {
	s.deployWg.Wait()
}

// Shutdown waits for in-flight deploys and closes the history database.
func (s *Server) Shutdown(ctx context.Context) error {
	s.deployWg.Wait()

	if s.History != nil {
		return s.History.Close()
	}
	return nil
}
