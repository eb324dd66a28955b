package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"workforce/internal/domain/audit"
	"workforce/internal/domain/auth"
	"workforce/internal/domain/checklists"
	"workforce/internal/domain/compliance"
	"workforce/internal/domain/employees"
	"workforce/internal/domain/notifications"
	"workforce/internal/domain/reports"
	"workforce/internal/domain/roster"
	"workforce/internal/platform/config"
	cryptoutil "workforce/internal/platform/crypto"
	"workforce/internal/platform/db"
	"workforce/internal/platform/email"
	"workforce/internal/platform/jobs"
	"workforce/internal/platform/metrics"
	"workforce/internal/platform/slack"
	audithandler "workforce/internal/transport/http/handlers/audit"
	authhandler "workforce/internal/transport/http/handlers/auth"
	checklistshandler "workforce/internal/transport/http/handlers/checklists"
	compliancehandler "workforce/internal/transport/http/handlers/compliance"
	employeeshandler "workforce/internal/transport/http/handlers/employees"
	healthhandler "workforce/internal/transport/http/handlers/health"
	notificationshandler "workforce/internal/transport/http/handlers/notifications"
	reportshandler "workforce/internal/transport/http/handlers/reports"
	rosterhandler "workforce/internal/transport/http/handlers/roster"
	"workforce/internal/transport/http/middleware"
)

// Services holds the domain services shared by the router and the background jobs.
type Services struct {
	Auth          *auth.Service
	Audit         *audit.Service
	Employees     *employees.Service
	Compliance    *compliance.Service
	Roster        *roster.Service
	Checklists    *checklists.Service
	Reports       *reports.Service
	Notifications *notifications.Service
}

type App struct {
	Config   config.Config
	DB       *pgxpool.Pool
	Router   http.Handler
	Jobs     *jobs.Service
	Metrics  *metrics.Collector
	Services Services
}

// New connects to Postgres, applies migrations and seed data as configured, and assembles
// the router and job scheduler.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid configuration")
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, err
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, err
		}
	}

	sealer, err := cryptoutil.New(cfg.DataEncryptionKey)
	if err != nil {
		pool.Close()
		return nil, err
	}

	app := &App{Config: cfg, DB: pool, Metrics: metrics.New()}
	app.Services = buildServices(cfg, pool, sealer)
	app.Jobs = jobs.New(jobs.NewStore(pool))
	app.Jobs.Schedule(jobs.JobComplianceSweep, cfg.SweepInterval, app.Sweep)
	app.Router = NewRouter(cfg, pool, app.Services, app.Metrics)
	return app, nil
}

func buildServices(cfg config.Config, pool *pgxpool.Pool, sealer *cryptoutil.Sealer) Services {
	loc := cfg.Location()
	recorder := audit.New(pool)

	notifier := notifications.New(notifications.NewStore(pool), email.New(cfg), slack.New(cfg.SlackWebhookURL))
	notifier.DefaultFrom = cfg.EmailFrom

	emps := employees.NewService(employees.NewStore(pool), recorder)
	evaluator := compliance.NewService(compliance.NewStore(pool, sealer), recorder, loc, cfg.ComplianceWarningDays, cfg.ComplianceTopN)

	shifts := roster.NewService(roster.NewStore(pool), evaluator, recorder, loc)
	shifts.Notifier = notifier

	lists := checklists.NewService(checklists.NewStore(pool), recorder, notifier, loc)

	authSvc := auth.NewService(auth.NewStore(pool), cfg.JWTSecret)
	authSvc.Sealer = sealer

	return Services{
		Auth:          authSvc,
		Audit:         recorder,
		Employees:     emps,
		Compliance:    evaluator,
		Roster:        shifts,
		Checklists:    lists,
		Reports:       reports.NewService(reports.NewStore(pool), evaluator, lists, shifts),
		Notifications: notifier,
	}
}

const loginAttemptsPerMinute = 10

// NewRouter mounts the health endpoints at the root and the API under /api/v1.
func NewRouter(cfg config.Config, pool *pgxpool.Pool, svc Services, collector *metrics.Collector) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(collector))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

	var metricsSource healthhandler.MetricsSource
	if cfg.MetricsEnabled && collector != nil {
		metricsSource = collector
	}
	var pinger healthhandler.Pinger
	if pool != nil {
		pinger = pool
	}
	healthhandler.NewHandler(pinger, metricsSource).RegisterRoutes(router)

	idempotency := middleware.NewIdempotencyStore(pool)
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret, svc.Auth))
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

		authHandler := authhandler.NewHandler(svc.Auth, svc.Employees, svc.Audit)
		authHandler.RegisterPublicRoutes(r.With(middleware.RateLimit(loginAttemptsPerMinute, time.Minute, middleware.WithKeyFunc(middleware.AuthEmailOrIPKey("email")))))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			authHandler.RegisterRoutes(r)
			employeeshandler.NewHandler(svc.Employees, svc.Auth).RegisterRoutes(r)
			compliancehandler.NewHandler(svc.Compliance, svc.Employees, svc.Auth, idempotency).RegisterRoutes(r)
			rosterhandler.NewHandler(svc.Roster, svc.Auth).RegisterRoutes(r)
			checklistshandler.NewHandler(svc.Checklists, svc.Employees, svc.Auth).RegisterRoutes(r)
			reportshandler.NewHandler(svc.Reports, svc.Auth).RegisterRoutes(r)
			notificationshandler.NewHandler(svc.Notifications).RegisterRoutes(r)
			audithandler.NewHandler(svc.Audit, svc.Auth).RegisterRoutes(r)
		})
	})
	return router
}

// Sweep is the scheduled compliance job for one tenant.
func (a *App) Sweep(ctx context.Context, tenantID string) (any, error) {
	result, err := a.Services.Compliance.Sweep(ctx, tenantID, a.Services.Notifications)
	a.Metrics.RecordSweep(tenantID, result.Outstanding, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Serve runs the HTTP server and the job scheduler until ctx is done, then shuts both down.
func (a *App) Serve(ctx context.Context) error {
	logger := ctxlog.From(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.Jobs.Start(ctx)
	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("workforce server listening", slog.String("addr", a.Config.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		serveErr = err
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = goerr.Wrap(err, "failed to shutdown server gracefully")
	}
	cancel()
	a.Jobs.Wait()
	return serveErr
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}
