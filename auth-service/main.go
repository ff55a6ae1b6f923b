package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chepyr/go-task-manager/auth-service/handlers"
	"github.com/chepyr/go-task-manager/internal/auth"
	"github.com/chepyr/go-task-manager/internal/config"
	"github.com/chepyr/go-task-manager/internal/db"
	"github.com/chepyr/go-task-manager/internal/logging"
	"github.com/chepyr/go-task-manager/internal/ratelimit"
	"github.com/chepyr/go-task-manager/shared"
	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	pflag.Parse()

	cfg := loadConfig(*configPath)
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	dbConn := initDB(cfg)
	defer func() {
		if err := dbConn.Close(); err != nil {
			slog.Error("closing database connection", "error", err)
		}
	}()

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL, db.NewTokenRepository(dbConn))

	scheduler, err := initScheduler(cfg, tokens)
	if err != nil {
		slog.Error("failed to schedule token pruning", "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	mux, handler := initHandlers(dbConn, tokens)
	defer handler.RateLimiter.Stop()

	server := initServer(cfg, mux)
	startServer(server)
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(cfg.ServerPort); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initDB(cfg *config.Config) *sql.DB {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbConn, err := db.Connect(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(ctx, dbConn); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	return dbConn
}

// initScheduler removes expired token records on a fixed interval so that
// personal_access_tokens does not grow without bound.
func initScheduler(cfg *config.Config, tokens *auth.Tokens) (*cron.Cron, error) {
	scheduler := cron.New()
	_, err := scheduler.AddFunc("@every "+cfg.TokenPruneInterval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		pruned, err := tokens.Prune(ctx)
		if err != nil {
			slog.Error("pruning expired tokens", "error", err)
			return
		}
		slog.Debug("pruned expired tokens", "count", pruned)
	})
	return scheduler, err
}

func initHandlers(dbConn *sql.DB, tokens *auth.Tokens) (*http.ServeMux, *handlers.Handler) {
	handler := &handlers.Handler{
		UserRepo: db.NewUserRepository(dbConn),
		Tokens:   tokens,
		// allow max 5 login or register attempts per 15 minutes from the same IP
		RateLimiter: ratelimit.New(5, 15*time.Minute),
	}

	mux := http.NewServeMux()
	handler.Routes(mux)
	mux.HandleFunc("/healthz", shared.HealthHandler(dbConn))
	return mux, handler
}

func initServer(cfg *config.Config, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           logging.Middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func startServer(server *http.Server) {
	slog.Info("starting auth server", "addr", server.Addr)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server shutdown failed", "error", err)
		return
	}
	slog.Info("server stopped")
}
