// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/baraks/slotwatch/internal/catalog"
	"github.com/baraks/slotwatch/internal/config"
	"github.com/baraks/slotwatch/internal/cycle"
	"github.com/baraks/slotwatch/internal/notify"
	"github.com/baraks/slotwatch/internal/pkg/ctxlog"
	"github.com/baraks/slotwatch/internal/pkg/httputil"
	"github.com/baraks/slotwatch/internal/pkg/metrics"
	"github.com/baraks/slotwatch/internal/pkg/postgres"
	"github.com/baraks/slotwatch/internal/provider"
	subscriptionpostgres "github.com/baraks/slotwatch/internal/subscription/postgres"
	"github.com/baraks/slotwatch/internal/telegram"
	"github.com/baraks/slotwatch/internal/version"
	"github.com/baraks/slotwatch/migrations"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server

	runner    *cycle.Runner
	scheduler *cycle.Scheduler
	poller    *telegram.Poller

	bgCancel context.CancelFunc
	bgWg     sync.WaitGroup
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)

	if err := migrations.Up(cfg.Database.URL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	app := &App{
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := app.wire(); err != nil {
		db.Close()
		return nil, err
	}

	router := app.setupRouter()

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// wire builds the domain components: repository, provider client, renderer,
// dispatch engine, cycle runner, telegram transport.
func (a *App) wire() error {
	cat := catalog.Default()
	repo := subscriptionpostgres.NewRepository(a.db)

	client := provider.NewClient(provider.Config{
		BaseURL:              a.config.Provider.BaseURL,
		AccessToken:          a.config.Provider.AccessToken,
		MaxResults:           a.config.Provider.MaxResults,
		Timeout:              a.config.Provider.Timeout,
		MaxConcurrentFetches: a.config.Provider.MaxConcurrentFetches,
		RequestsPerSecond:    a.config.Provider.RequestsPerSecond,
	}, cat)
	provider.LogTokenStatus(a.logger, a.config.Provider.AccessToken)

	renderer, err := notify.NewRenderer()
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}

	sender, err := telegram.NewSender(telegram.Config{
		BotToken:  a.config.Telegram.BotToken,
		RateLimit: a.config.Telegram.RateLimit,
	})
	if err != nil {
		return fmt.Errorf("create telegram sender: %w", err)
	}

	engine := notify.NewEngine(cat, renderer, sender, 0)

	a.runner = cycle.NewRunner(client, repo, engine, sender, renderer, a.config.Telegram.AdminChatID)
	a.scheduler = cycle.NewScheduler(a.runner, a.config.Poll.Interval())

	handler := telegram.NewHandler(cat, repo, renderer, sender, client, a.config.Telegram.AdminChatID)
	poller, err := telegram.NewPoller(telegram.PollerConfig{
		BotToken:    a.config.Telegram.BotToken,
		PollTimeout: a.config.Telegram.PollTimeout,
	}, handler)
	if err != nil {
		return fmt.Errorf("create telegram poller: %w", err)
	}
	a.poller = poller

	return nil
}

// Run starts the servers and background loops, blocking until the main
// server stops.
func (a *App) Run() error {
	bgCtx, bgCancel := context.WithCancel(ctxlog.WithLogger(context.Background(), a.logger))
	a.bgCancel = bgCancel

	a.scheduler.Start(bgCtx)

	a.bgWg.Add(1)
	go func() {
		defer a.bgWg.Done()
		a.poller.Run(bgCtx)
	}()

	a.bgWg.Add(1)
	go func() {
		defer a.bgWg.Done()
		a.collectDBMetrics(bgCtx)
	}()

	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	if a.bgCancel != nil {
		a.bgCancel()
	}
	a.scheduler.Stop()
	a.bgWg.Wait()

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Runner returns the cycle runner. Used in tests to trigger cycles directly.
func (a *App) Runner() *cycle.Runner {
	return a.runner
}

func (a *App) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", a.statusHandler)
		r.Post("/cycle/run", a.runCycleHandler)
	})

	return r
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

// statusHandler reports the outcome of the most recent polling cycle.
func (a *App) statusHandler(w http.ResponseWriter, _ *http.Request) {
	status := a.runner.LastStatus()
	if status == nil {
		httputil.JSON(w, http.StatusOK, map[string]string{"state": "no cycle completed yet"})
		return
	}
	httputil.JSON(w, http.StatusOK, status)
}

// runCycleHandler triggers a polling cycle outside the schedule.
func (a *App) runCycleHandler(w http.ResponseWriter, r *http.Request) {
	ctx := ctxlog.WithLogger(context.WithoutCancel(r.Context()), a.logger)

	report, err := a.runner.RunCycle(ctx)
	if err != nil {
		if errors.Is(err, cycle.ErrCycleInProgress) {
			httputil.Error(w, http.StatusConflict, "cycle already in progress")
			return
		}
		httputil.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
