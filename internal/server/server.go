// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the composition root: the store, services, handlers and
// middleware are built and wired here and nowhere else. main stays minimal.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → sqlstore.DB → services → handlers → routes
//
// Each layer only receives what it needs. Services get repository
// interfaces, never the concrete *sqlstore.DB; handlers get services.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/snippethub/internal/auth"
	"github.com/sakif/snippethub/internal/config"
	"github.com/sakif/snippethub/internal/executor"
	"github.com/sakif/snippethub/internal/handler"
	"github.com/sakif/snippethub/internal/middleware"
	"github.com/sakif/snippethub/internal/repository/sqlstore"
	"github.com/sakif/snippethub/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database pool and the rate limiter and releases both
// in Close. The executor is owned by the caller.
type Server struct {
	router       *chi.Mux
	config       *config.Config
	logger       *slog.Logger
	db           *sqlstore.DB
	closeLimiter func()
}

// New opens the store, applies migrations and builds the router.
//
// exec may be nil, in which case running code answers 503. Pass a nil
// interface, not a nil *docker.Executor.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, exec executor.Executor) (*Server, error) {
	// === CREATE DATABASE ===
	db, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(exec); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// newLimiter picks the Redis limiter when a URL is configured. A Redis that
// cannot be reached degrades to the in-process limiter.
func (s *Server) newLimiter() middleware.Limiter {
	rl := s.config.RateLimit
	if rl.RedisURL != "" {
		redisLimiter, err := middleware.NewRedisLimiter(rl.RedisURL, rl.Requests, rl.Window)
		if err == nil {
			s.closeLimiter = func() { redisLimiter.Close() }
			s.logger.Info("rate limiting via redis")
			return redisLimiter
		}
		s.logger.Warn("redis unavailable, rate limiting in-process",
			slog.String("error", err.Error()),
		)
	}
	memLimiter := middleware.NewMemoryLimiter(rl.Requests, rl.Window)
	s.closeLimiter = memLimiter.Close
	return memLimiter
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                        liveness + database ping
//	GET    /auth/github/login              start OAuth
//	GET    /auth/github/callback           finish OAuth, set JWT cookie
//	POST   /auth/logout                    clear JWT cookie
//	GET    /api/getUser?userId=            public user lookup
//	GET    /api/session                    theme + signed-in state
//	PUT    /api/session/theme              store theme
//	GET    /api/languages                  runnable languages
//	GET    /api/snippets                   search (q, lang, tags, sort, page)
//	GET    /api/snippets/latest            newest snippets
//	GET    /api/snippets/{slug}            one snippet
//	GET    /api/snippets/{slug}/votes      vote summary
//	POST   /api/snippets/{slug}/vote       toggle vote (401 carries the prompt)
//	GET    /api/snippets/{slug}/comments   comment threads
//	POST   /api/snippets/{slug}/run        run a stored snippet
//	GET    /api/me                         (auth)
//	GET    /api/dashboard                  (auth)
//	POST   /api/snippets                   (auth)
//	PUT    /api/snippets/{slug}            (auth, owner)
//	POST   /api/snippets/{slug}/comments   (auth)
//	POST   /api/execute                    (auth) run unsaved code
//
// MIDDLEWARE ORDER MATTERS:
// RequestID, RealIP, Logger, Recoverer run on every request. Under /api,
// OptionalAuth puts the caller's identity in the context, WithProfile fills
// in a missing profile ID, and RateLimit bounds writes per client.
func (s *Server) setupRoutes(exec executor.Executor) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	tokens, err := auth.NewTokenService(s.config.Auth.JWTSecret, s.config.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	// === SERVICES ===
	authService := service.NewAuthService(s.db, s.db, tokens, s.logger)
	voteService := service.NewVoteService(s.db, s.db, s.logger)
	snippetService := service.NewSnippetService(s.db, voteService, s.logger)
	searchService := service.NewSearchService(s.db, voteService, s.config.PageSize, s.logger)
	commentService := service.NewCommentService(s.db, s.db, s.logger)
	runService := service.NewRunService(s.db, exec, s.logger)

	// === HANDLERS ===
	var github handler.GitHubAuthenticator
	if s.config.GitHub.ClientID != "" {
		github = auth.NewGitHubProvider(s.config.GitHub.ClientID, s.config.GitHub.ClientSecret, s.config.GitHub.CallbackURL)
	} else {
		s.logger.Warn("GitHub client ID not set, sign-in routes are disabled")
	}

	authHandler := handler.NewAuthHandler(github, authService, s.config.Auth.SecureCookies, s.logger)
	snippetHandler := handler.NewSnippetHandler(snippetService, searchService, s.logger)
	voteHandler := handler.NewVoteHandler(voteService, s.logger)
	commentHandler := handler.NewCommentHandler(commentService, s.logger)
	runHandler := handler.NewRunHandler(runService, s.logger)
	sessionHandler := handler.NewSessionHandler(
		handler.NewCookieStore(s.config.Auth.SessionSecret, s.config.Auth.SecureCookies), s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	// === ROUTES ===
	s.router.Get("/healthz", healthHandler.HandleHealth)

	if github != nil {
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	}
	s.router.Post("/auth/logout", authHandler.HandleLogout)

	limiter := s.newLimiter()

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.OptionalAuth(tokens), authHandler.WithProfile)
		r.Use(middleware.RateLimit(limiter, s.logger))

		r.Get("/getUser", authHandler.HandleGetUser)
		r.Get("/session", sessionHandler.HandleGet)
		r.Put("/session/theme", sessionHandler.HandleSetTheme)
		r.Get("/languages", runHandler.HandleLanguages)

		r.Get("/snippets", snippetHandler.HandleSearch)
		r.Get("/snippets/latest", snippetHandler.HandleLatest)
		r.Get("/snippets/{slug}", snippetHandler.HandleGet)
		r.Get("/snippets/{slug}/votes", voteHandler.HandleSummary)
		r.Post("/snippets/{slug}/vote", voteHandler.HandleToggle)
		r.Get("/snippets/{slug}/comments", commentHandler.HandleList)
		r.Post("/snippets/{slug}/run", runHandler.HandleRun)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", authHandler.HandleMe)
			r.Get("/dashboard", snippetHandler.HandleDashboard)
			r.Post("/snippets", snippetHandler.HandleCreate)
			r.Put("/snippets/{slug}", snippetHandler.HandleUpdate)
			r.Post("/snippets/{slug}/comments", commentHandler.HandleCreate)
			r.Post("/execute", runHandler.HandleExecute)
		})
	})

	return nil
}

// Close releases the rate limiter and the database pool.
func (s *Server) Close() error {
	if s.closeLimiter != nil {
		s.closeLimiter()
	}
	return s.db.Close()
}

// Start serves HTTP until ctx is cancelled or SIGINT/SIGTERM arrives, then
// shuts down gracefully and closes the server's resources.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait up to 30s for in-flight requests
//  3. Close the limiter and the database (flushes the SQLite WAL)
func (s *Server) Start(ctx context.Context) error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second, // runs can take a few seconds
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.Database.Driver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
