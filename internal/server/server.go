// Package server is the composition root: it opens the store, builds the
// services and handlers on top of it, and mounts them on a chi router.
//
// DEPENDENCY FLOW:
//
//	config.Config ─► sqlstore.Store ─► services ─► handlers ─► routes
//	                      ▲
//	metrics.Metrics ──────┘ (pool observer, auth recorder, HTTP middleware)
//
// Each layer receives only the interfaces it needs; nothing below the
// handlers knows about HTTP.
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

	"github.com/sakif/drink-tracker/internal/auth"
	"github.com/sakif/drink-tracker/internal/config"
	"github.com/sakif/drink-tracker/internal/handler"
	"github.com/sakif/drink-tracker/internal/metrics"
	"github.com/sakif/drink-tracker/internal/middleware"
	"github.com/sakif/drink-tracker/internal/model"
	"github.com/sakif/drink-tracker/internal/repository/sqlstore"
	"github.com/sakif/drink-tracker/internal/service"
)

// limiterSweepInterval is how often idle rate-limit buckets are dropped.
const limiterSweepInterval = 10 * time.Minute

// Server owns the router and every long-lived resource behind it. Start
// releases them on shutdown; tests call Close instead.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	store   *sqlstore.Store
	metrics *metrics.Metrics
	janitor *service.Janitor
	limiter *middleware.RateLimiter
}

// New opens (and migrates) the database, seeds reference data when
// configured, and wires every route.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	dialect, err := sqlstore.ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	store, err := sqlstore.Open(ctx, sqlstore.Config{
		Dialect:  dialect,
		DSN:      cfg.DBDSN,
		MaxConns: cfg.DBMaxConns,
	}, logger, m)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if cfg.Seed {
		data, err := sqlstore.DefaultSeed()
		if err == nil {
			err = store.Seed(ctx, data)
		}
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("seeding database: %w", err)
		}
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		store:   store,
		metrics: m,
		janitor: service.NewJanitor(store, cfg.SessionRetention, logger),
		limiter: middleware.NewRateLimiter(cfg.AuthRatePerMinute, logger, m),
	}

	if err := s.setupRoutes(); err != nil {
		store.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// setupRoutes mounts the API.
//
// ROUTES (all under /api unless noted):
//
//	GET    /metrics                              Prometheus exposition
//	GET    /healthz                              readiness, pings the database
//	GET    /rtt                                  round-trip probe
//	POST   /users, /login                        rate limited, no auth
//	GET    /tags                                 no auth
//	GET    /ingredients, /drinks, /drinks/{id}   optional auth
//	everything else                              required auth
//
// MIDDLEWARE ORDER:
// RequestID and RealIP run first so the logger and the rate limiter see
// their results. Recoverer sits inside the logger and the metrics so a panic
// is still logged and counted as a 500.
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.TokenSecret)
	if err != nil {
		return err
	}
	passwords := auth.NewPasswordService(s.config.BcryptCost)
	gate := auth.NewGate(s.store, tokens, s.logger, auth.WithRecorder(s.metrics))

	accounts := service.NewAuthService(s.store, s.store, tokens, passwords, s.config.TokenTTL, s.logger)
	users := handler.NewUserHandler(accounts, s.logger)
	ingredients := handler.NewIngredientHandler(service.NewIngredientService(s.store, s.logger), s.logger)
	drinks := handler.NewDrinkHandler(service.NewDrinkService(s.store, s.logger), s.logger)
	sessions := handler.NewSessionHandler(service.NewSessionService(s.store, s.logger), s.logger)
	tags := handler.NewTagHandler(service.NewTagService(s.store, s.logger), s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(s.metrics.InstrumentHandler)
	s.router.Use(chimiddleware.Recoverer)

	s.router.Handle("/metrics", s.metrics.Handler())
	s.router.Get("/healthz", handler.HandleReady(s.store, s.logger))

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(s.config.RequestTimeout))

		r.Get("/rtt", handler.HandleRTT)
		r.Get("/tags", tags.HandleList)

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Handler)
			r.Post("/users", users.HandleRegister)
			r.Post("/login", users.HandleLogin)
		})

		r.Group(func(r chi.Router) {
			r.Use(gate.Optional())
			r.Get("/ingredients", ingredients.HandleList)
			r.Get("/drinks", drinks.HandleList)
			r.Get("/drinks/{id}", drinks.HandleGet)
		})

		r.Group(func(r chi.Router) {
			r.Use(gate.Required())

			r.Post("/ingredients", ingredients.HandleCreate)
			r.Delete("/ingredients/{id}", ingredients.HandleDelete)
			r.Put("/ingredients/{id}/tags/{tag_id}", tags.HandleAttach(model.IngredientKind))
			r.Delete("/ingredients/{id}/tags/{tag_id}", tags.HandleDetach(model.IngredientKind))

			r.Post("/drinks", drinks.HandleCreate)
			r.Delete("/drinks/{id}", drinks.HandleDelete)
			r.Put("/drinks/{id}/tags/{tag_id}", tags.HandleAttach(model.DrinkKind))
			r.Delete("/drinks/{id}/tags/{tag_id}", tags.HandleDetach(model.DrinkKind))

			r.Post("/sessions", sessions.HandleCreate)
			r.Get("/sessions", sessions.HandleList)
			r.Get("/sessions/{id}", sessions.HandleGet)
			r.Delete("/sessions/{id}", sessions.HandleDelete)
			r.Post("/sessions/{id}/sessiondrinks", sessions.HandleAddDrink)
			r.Delete("/sessions/{id}/sessiondrinks/{pairing_id}", sessions.HandleRemoveDrink)
		})
	})

	return nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database. Start calls it on the way out.
func (s *Server) Close() error {
	return s.store.Close()
}

// Start serves until SIGINT or SIGTERM, then shuts down in order: stop
// accepting requests, drain in-flight ones (30s), wait for a running purge,
// close the database.
func (s *Server) Start() error {
	defer s.Close()

	if err := s.janitor.Start(s.config.PurgeSchedule); err != nil {
		return err
	}
	defer func() { <-s.janitor.Stop().Done() }()

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go s.limiter.Run(sweepCtx, limiterSweepInterval)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("driver", s.config.DBDriver),
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
