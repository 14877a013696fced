package server

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cdms/internal/domain/auth"
	"cdms/internal/domain/holds"
	"cdms/internal/domain/ledger"
	"cdms/internal/domain/reports"
	"cdms/internal/domain/retention"
	"cdms/internal/domain/rights"
	"cdms/internal/platform/config"
	"cdms/internal/platform/db"
	"cdms/internal/platform/email"
	"cdms/internal/platform/hashing"
	"cdms/internal/platform/jobs"
	"cdms/internal/platform/metrics"
	authhandler "cdms/internal/transport/http/handlers/auth"
	holdshandler "cdms/internal/transport/http/handlers/holds"
	ledgerhandler "cdms/internal/transport/http/handlers/ledger"
	reportshandler "cdms/internal/transport/http/handlers/reports"
	retentionhandler "cdms/internal/transport/http/handlers/retention"
	rightshandler "cdms/internal/transport/http/handlers/rights"
	"cdms/internal/transport/http/middleware"
)

// App wires the compliance services onto one router. Tests build it against
// their own pool; Run builds it from the environment.
type App struct {
	Config    config.Config
	DB        *pgxpool.Pool
	Router    http.Handler
	Jobs      *jobs.Service
	Ledger    *ledger.Service
	Holds     *holds.Service
	Rights    *rights.Service
	Retention *retention.Service
}

func NewApp(cfg config.Config, pool *pgxpool.Pool, m *metrics.Metrics) (*App, error) {
	hasher, err := hashing.New(cfg.HashAlgorithm)
	if err != nil {
		return nil, err
	}

	ledgerSvc := ledger.NewService(ledger.NewStore(pool), hasher, m)
	holdsSvc := holds.NewService(holds.NewStore(pool), ledgerSvc)
	mailer := email.New(cfg)
	rightsSvc := rights.NewService(rights.NewStore(pool), ledgerSvc, holdsSvc, hasher, mailer, cfg.EmailFrom, m)
	retentionSvc := retention.NewService(retention.NewStore(pool), ledgerSvc, holdsSvc, m)
	reportsSvc := reports.NewService(rightsSvc, ledgerSvc, retentionSvc)
	authSvc := auth.NewService(auth.NewStore(pool))

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.CORS(cfg.CORSOrigins))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Metrics(m))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		authHandler := authhandler.NewHandler(authSvc, cfg.JWTSecret, cfg.JWTTTL)
		r.With(middleware.LoginRateLimit(cfg.RateLimitPerMinute)).Post("/auth/login", authHandler.HandleLogin)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.RateLimitPerMinute))

			holdshandler.NewHandler(holdsSvc, authSvc).RegisterRoutes(r)
			rightshandler.NewHandler(rightsSvc, reportsSvc, authSvc, middleware.NewIdempotencyStore(pool)).RegisterRoutes(r)
			retentionhandler.NewHandler(retentionSvc, authSvc).RegisterRoutes(r)
			ledgerhandler.NewHandler(ledgerSvc, authSvc).RegisterRoutes(r)
			reportshandler.NewHandler(reportsSvc, authSvc).RegisterRoutes(r)
		})
	})

	return &App{
		Config:    cfg,
		DB:        pool,
		Router:    router,
		Jobs:      jobs.New(pool, cfg, retentionSvc, rightsSvc, m),
		Ledger:    ledgerSvc,
		Holds:     holdsSvc,
		Rights:    rightsSvc,
		Retention: retentionSvc,
	}, nil
}

func Run() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config invalid: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
	}

	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	app, err := NewApp(cfg, pool, m)
	if err != nil {
		log.Fatalf("app wiring failed: %v", err)
	}

	jobsCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	app.Jobs.Start(jobsCtx)

	slog.Info("compliance server listening", "addr", cfg.Addr, "env", cfg.Environment)
	if err := http.ListenAndServe(cfg.Addr, app.Router); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
