package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"staffdesk/internal/auth"
	"staffdesk/internal/config"
	"staffdesk/internal/db"
	"staffdesk/internal/employee"
	"staffdesk/internal/maintenance"
	"staffdesk/internal/observability"
	"staffdesk/internal/project"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Config  *config.Config
	Handler http.Handler
	Close   func() error
}

// Build wires the whole service: config, database, repositories, the
// auth subsystem and the HTTP surface.
func Build(options Options) (*Runtime, error) {
	cfg, err := config.Load(options.LoadDotEnv)
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger()

	if err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := OpenDatabase(cfg)
	if err != nil {
		return nil, err
	}

	if options.RunMigrations {
		if err := db.RunMigrations(context.Background(), database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	employeeRepo := employee.NewRepository(database)
	if cfg.AdminEmail != "" {
		if err := employeeRepo.UpsertAdmin(context.Background(), cfg.AdminEmail, cfg.AdminPassword); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	authRepo := auth.NewRepository(database)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.Tokens.AccessTTL, cfg.Tokens.RefreshTTL, authRepo)
	authService := auth.NewService(authRepo, authRepo, authRepo, tokens, logger)
	authHandler := auth.NewHandler(authService)
	gate := auth.NewGate(tokens, authRepo)

	employeeHandler := employee.NewHandler(employeeRepo)
	projectRepo := project.NewRepository(database)
	projectHandler := project.NewHandler(projectRepo)

	reaper := maintenance.NewReaper(authRepo, authRepo, cfg.Tokens.LedgerGrace, logger)
	reapHandler := maintenance.NewReapHandler(reaper, logger, cfg.CronSecret)

	loginLimiter := auth.NewLoginRateLimiter(cfg.RateLimit.MaxHits, cfg.RateLimit.Window)

	mux := http.NewServeMux()
	mux.Handle("POST /Register/{$}", http.HandlerFunc(employeeHandler.Register))
	mux.Handle("POST /Login/{$}", loginLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.Handle("POST /Logout/{$}", gate.Protect(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("POST /Refresh/{$}", http.HandlerFunc(authHandler.Refresh))

	mux.Handle("GET /employee/self/{$}", gate.Protect(http.HandlerFunc(employeeHandler.Self)))
	mux.Handle("PUT /employee/self/update/{$}", gate.Protect(http.HandlerFunc(employeeHandler.SelfUpdate)))
	mux.Handle("GET /employee/search/all/{$}", gate.ProtectAdmin(http.HandlerFunc(employeeHandler.ListAll)))
	mux.Handle("GET /employee/search/{id}/{$}", gate.ProtectAdmin(http.HandlerFunc(employeeHandler.Search)))
	mux.Handle("PUT /employee/update/{id}/{$}", gate.ProtectAdmin(http.HandlerFunc(employeeHandler.Update)))
	mux.Handle("DELETE /employee/update/{id}/{$}", gate.ProtectAdmin(http.HandlerFunc(employeeHandler.Delete)))
	mux.Handle("GET /employee/filter", gate.ProtectAdmin(http.HandlerFunc(employeeHandler.Filter)))

	mux.Handle("GET /project/self", gate.Protect(http.HandlerFunc(projectHandler.Self)))
	mux.Handle("POST /project/post/{$}", gate.ProtectAdmin(http.HandlerFunc(projectHandler.Create)))
	mux.Handle("GET /project/all/{$}", gate.ProtectAdmin(http.HandlerFunc(projectHandler.All)))
	mux.Handle("GET /project/search/{id}/{$}", gate.ProtectAdmin(http.HandlerFunc(projectHandler.Specific)))
	mux.Handle("PUT /project/update/{id}/{$}", gate.ProtectAdmin(http.HandlerFunc(projectHandler.Update)))
	mux.Handle("DELETE /project/delete/{id}/{$}", gate.ProtectAdmin(http.HandlerFunc(projectHandler.Delete)))
	mux.Handle("GET /project/filter", gate.ProtectAdmin(http.HandlerFunc(projectHandler.Filter)))

	mux.HandleFunc("GET /internal/maintenance/reap", reapHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/reap", reapHandler.Handle)
	mux.HandleFunc("GET /health", HealthHandler(database))

	handler := observability.RecoverMiddleware(logger, observability.RequestLoggingMiddleware(logger, mux))

	return &Runtime{
		Config:  cfg,
		Handler: handler,
		Close: func() error {
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

// OpenDatabase opens and pings the Postgres pool with the configured
// limits. Callers own the returned handle.
func OpenDatabase(cfg *config.Config) (*sql.DB, error) {
	database, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	database.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	database.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	database.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return database, nil
}

func HealthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
