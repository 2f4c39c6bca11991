// Package main is the entrypoint for the Tagtrail API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/tagtrail/tagtrail/internal/auth"
	"github.com/tagtrail/tagtrail/internal/config"
	"github.com/tagtrail/tagtrail/internal/handler"
	"github.com/tagtrail/tagtrail/internal/middleware"
	"github.com/tagtrail/tagtrail/internal/repository"
	"github.com/tagtrail/tagtrail/internal/server"
	"github.com/tagtrail/tagtrail/internal/service"
)

func main() {
	ctx := context.Background()

	// Optional .env for local development; real deployments use the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// The shared token secret is built exactly once and handed by reference
	// to everything that needs it. Too little key material is fatal.
	secret, err := auth.NewSecret([]byte(cfg.AuthSecret))
	if err != nil {
		logger.Error("invalid auth secret", slog.String("error", err.Error()))
		os.Exit(1)
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	users := service.NewUserService(repo, secret, logger)

	// Bootstrap the admin account before serving any traffic.
	if err := users.EnsureAdmin(ctx); err != nil {
		logger.Error("failed to bootstrap admin user", slog.String("error", err.Error()))
		os.Exit(1)
	}

	bypass := cfg.BypassToken()
	if bypass != "" {
		logger.Warn("auth bypass token is enabled; never run this configuration in production")
	}

	r := setupRouter(users, bypass, logger)

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
// The auth gate wraps every route, including the health check; the gate
// itself exempts the health path for anonymous requests.
func setupRouter(users *service.UserService, bypassToken string, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Auth(middleware.AuthConfig{
		Logger:      logger,
		Users:       users,
		HealthPath:  handler.HealthPath,
		BypassToken: bypassToken,
	}))

	userHandler := handler.NewUserHandler(logger, users)

	r.Get(handler.HealthPath, handler.Health)

	r.Route("/users", func(r chi.Router) {
		r.Post("/", userHandler.Create)
		r.Put("/{id}", userHandler.Rotate)
		r.Delete("/{id}", userHandler.Delete)
		r.Get("/token/{token}", userHandler.FindByToken)
	})

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return msg
}
