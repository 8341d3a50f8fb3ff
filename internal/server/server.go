// Package server is the composition root: it opens the store, builds the
// services and mounts the HTML views and the JSON API on one chi router.
//
// ROUTE STRUCTURE:
//
//	GET  /static/*   → embedded CSS and images (or Web.StaticDir)
//	     /api/...    → JSON API, bearer token
//	     /...        → HTML views, session cookie
//
// Middleware runs in the order it is added: RequestID, RealIP, Recoverer,
// then our request logger, so the log line carries the request id and a
// recovered panic still gets logged as a 500.
package server

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"

	"github.com/sakif/warbler/internal/auth"
	"github.com/sakif/warbler/internal/config"
	"github.com/sakif/warbler/internal/handler"
	"github.com/sakif/warbler/internal/middleware"
	"github.com/sakif/warbler/internal/repository/sqlstore"
	"github.com/sakif/warbler/internal/service"
	"github.com/sakif/warbler/internal/session"
	"github.com/sakif/warbler/web"
)

// Server owns the router and the database pool. Start closes the pool on
// shutdown.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqlstore.DB
}

// New opens the database and wires every layer.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.Database.Driver == "sqlite" && cfg.Database.DSN != ":memory:" {
		dir := filepath.Dir(cfg.Database.DSN)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}

	db, err := sqlstore.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// === Static Files ===
	static := http.FileServerFS(web.Static())
	if dir := s.config.Web.StaticDir; dir != "" {
		static = http.FileServer(http.Dir(dir))
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", static))

	// === Services ===
	secret := s.config.Auth.JWTSecret
	if secret == "" {
		s.logger.Warn("no JWT secret configured, API tokens will not survive a restart")
		secret = hex.EncodeToString(securecookie.GenerateRandomKey(32))
	}
	tokens, err := auth.NewTokenService(secret, s.config.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService(s.config.Auth.BcryptCost)

	svc := handler.Services{
		Auth:     service.NewAuthService(s.db, passwords, tokens, s.logger),
		Users:    service.NewUserService(s.db, passwords, s.logger),
		Follows:  service.NewFollowService(s.db, s.logger),
		Messages: service.NewMessageService(s.db, s.logger),
	}

	sessions := session.NewManager(session.Options{
		Secret: s.config.Auth.SessionSecret,
		Secure: s.config.Auth.SecureCookies,
	}, s.logger)

	views, err := handler.NewViews(web.Templates(), sessions, svc, s.logger)
	if err != nil {
		return fmt.Errorf("creating views: %w", err)
	}
	api := handler.NewAPI(svc, tokens, s.logger)

	// === Routes ===
	s.router.Route("/api", api.Routes)
	s.router.Group(views.Routes)

	return nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database pool without starting the server.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Server.Port)),
			slog.String("driver", s.config.Database.Driver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
