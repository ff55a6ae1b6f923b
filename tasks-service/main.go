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

	"github.com/chepyr/go-task-manager/internal/auth"
	"github.com/chepyr/go-task-manager/internal/config"
	coredb "github.com/chepyr/go-task-manager/internal/db"
	"github.com/chepyr/go-task-manager/internal/logging"
	"github.com/chepyr/go-task-manager/internal/ratelimit"
	"github.com/chepyr/go-task-manager/shared"
	"github.com/chepyr/go-task-manager/tasks-service/db"
	"github.com/chepyr/go-task-manager/tasks-service/handlers"
	"github.com/chepyr/go-task-manager/tasks-service/service"
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

	mux, handler := initHandlers(cfg, dbConn)
	defer handler.RateLimiter.Stop()

	server := initServer(cfg, mux)
	startServer(server, handler.WSHub)
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(cfg.ServerPortTasks); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initDB(cfg *config.Config) *sql.DB {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbConn, err := coredb.Connect(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	if err := coredb.Migrate(ctx, dbConn); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	return dbConn
}

func initHandlers(cfg *config.Config, dbConn *sql.DB) (*http.ServeMux, *handlers.Handler) {
	handler := &handlers.Handler{
		Tasks:      service.NewTaskService(db.NewTaskRepository(dbConn)),
		Categories: service.NewCategoryService(db.NewCategoryRepository(dbConn)),
		Verifier:   auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL, coredb.NewTokenRepository(dbConn)),
		// allow max 5 websocket connection attempts per second from the same IP
		RateLimiter: ratelimit.New(5, time.Second),
		WSHub:       handlers.NewWSHub(cfg.AllowedOrigins),
	}

	mux := http.NewServeMux()
	handler.Routes(mux)
	mux.HandleFunc("/healthz", shared.HealthHandler(dbConn))
	return mux, handler
}

func initServer(cfg *config.Config, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.ServerPortTasks,
		Handler:           logging.Middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func startServer(server *http.Server, hub *handlers.WSHub) {
	slog.Info("starting tasks server", "addr", server.Addr)

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

	// hijacked websocket connections are not closed by Shutdown
	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server shutdown failed", "error", err)
		return
	}
	slog.Info("server stopped")
}
