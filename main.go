package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MGallo-Code/styx/internal/config"
	"github.com/MGallo-Code/styx/internal/enqueue"
	"github.com/MGallo-Code/styx/internal/gate"
	"github.com/MGallo-Code/styx/internal/metrics"
	"github.com/MGallo-Code/styx/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Embeds the migration files INTO the go bin

//go:embed migrations/*.sql
var migrationsDir embed.FS

// auditRetention is how long admission decisions are kept in Postgres.
const auditRetention = 30 * 24 * time.Hour

func main() {
	// Load config first so we can set log level
	cfg, err := config.LoadConfig()
	if err != nil {
		// Fallback logger before config is available
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}

	// Include source location in log entries at debug level only.
	addSrc := cfg.LogLevel == slog.LevelDebug

	// Set up slog to output as json with configured level
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     cfg.LogLevel,
		AddSource: addSrc,
	})))

	// Cancel ctx on SIGINT/SIGTERM; run() shuts down when ctx is done.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run() is a separate func so deferred closes (ps, rdb) always execute before os.Exit.
	if err := run(ctx, cfg, nil); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// run holds all server logic and returns error instead of calling os.Exit,
// so deferred resource cleanup always runs.
// Shuts down when ctx is cancelled (signal handling is the caller's concern).
// If ready is non-nil, the server's base URL is sent on it once the listener is bound.
func run(ctx context.Context, cfg *config.Config, ready chan<- string) error {
	h := &gate.Handler{
		CustomerID: cfg.CustomerID,
		SecretKey:  cfg.SecretKey,
		Audit:      store.NopAuditor{},
		Metrics:    metrics.New(),
		BodyLimit:  cfg.BodyLimit(),
	}

	// Redis is optional; without it every instance reads the file on its own.
	var cache store.IntegrationCache = store.NoopIntegrationCache{}
	if cfg.RedisURL != "" {
		rdb, err := store.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to set up redis client: %w", err)
		}
		defer rdb.Close()
		rs := store.NewRedisStore(rdb)
		cache = rs
		h.RS = rs
	}

	// Postgres is optional; without it decisions are only logged and counted.
	if cfg.DatabaseURL != "" {
		ps, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to set up postgres store: %w", err)
		}
		defer ps.Close()

		migrationsFS, err := fs.Sub(migrationsDir, "migrations")
		if err != nil {
			return fmt.Errorf("failed to access embedded migrations: %w", err)
		}
		if _, err := ps.Migrate(ctx, migrationsFS); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		h.Audit = ps
		h.PS = ps

		// Audit cleanup goroutine; removes decisions past retention, runs every 24h.
		// Cancelled via cleanupCtx when run() returns.
		cleanupCtx, cancelCleanup := context.WithCancel(ctx)
		defer cancelCleanup()
		go func() {
			ticker := time.NewTicker(24 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					n, err := ps.CleanupDecisions(cleanupCtx, auditRetention)
					if err != nil {
						slog.Warn("audit cleanup failed", "error", err)
					} else {
						slog.Info("audit cleanup complete", "deleted", n)
					}
				case <-cleanupCtx.Done():
					return
				}
			}
		}()
	}

	src := store.NewIntegrationSource(cfg.CustomerID, store.NewFileSource(cfg.IntegrationConfigPath), cache, cfg.IntegrationCacheTTL)
	// Fail fast on a broken config rather than passing every visitor through.
	if _, err := src.Integration(ctx); err != nil {
		return fmt.Errorf("failed to load integration config: %w", err)
	}
	h.Integrations = src

	if cfg.EnqueueTokenEnabled {
		h.Enqueue = enqueue.NewJWTProvider(cfg.CustomerID, cfg.SecretKey, cfg.EnqueueSettings())
	}

	// Bind listener; ":0" picks a free port (useful in tests).
	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	server := &http.Server{
		Handler:           buildRouter(h, gate.NewOriginProxy(cfg.OriginURL), cfg.TrustedProxyHeaders, cfg.RequestTimeout),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine; run() continues past this.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("styx listening", "addr", ln.Addr().String(), "origin", cfg.OriginURL.String())
		// Send error only if server stops for a reason other than explicit shutdown.
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Signal readiness to caller (used by tests; nil in production).
	if ready != nil {
		ready <- "http://" + ln.Addr().String()
	}

	// Wait for server error or shutdown signal from ctx.
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	// Stops accepting new conns and waits for in-flight requests, up to 30s.
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// buildRouter wires all routes and middleware.
// /health and /metrics are answered by the gate itself; everything else goes
// through RequireAdmission to origin.
func buildRouter(h *gate.Handler, origin http.Handler, trustProxy bool, timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	// Only trust X-Forwarded-For/X-Real-IP when a proxy in front sets them.
	if trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Get("/health", h.CheckHealth)
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics.Handler())
	}

	// Admission required routes
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAdmission)
		r.Handle("/*", origin)
	})

	return r
}
