// Eco Packaging chat widget backend.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bagstory/ecopack-server/internal/api"
	"github.com/bagstory/ecopack-server/internal/assistant"
	"github.com/bagstory/ecopack-server/internal/chat"
	"github.com/bagstory/ecopack-server/internal/config"
	"github.com/bagstory/ecopack-server/internal/middleware"
	"github.com/bagstory/ecopack-server/internal/notify"
	"github.com/bagstory/ecopack-server/internal/store"
	"github.com/bagstory/ecopack-server/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Notification gateways. Each channel is optional; a missing one is
	// logged and skipped at send time.
	var mailer notify.Mailer
	if cfg.EmailEnabled() {
		smtpMailer, err := notify.NewSMTPMailer(cfg.Email)
		if err != nil {
			slog.Error("Failed to initialize SMTP mailer", "error", err)
			os.Exit(1)
		}
		mailer = smtpMailer
		slog.Info("Email notifications enabled", "host", cfg.Email.Host, "admin_email", cfg.Email.AdminEmail)
	} else {
		slog.Info("Email notifications disabled (EMAIL_USER/EMAIL_PASS/ADMIN_EMAIL not set)")
	}

	var texter notify.Texter
	if cfg.SMSEnabled() {
		texter = notify.NewTwilioTexter(cfg.SMS)
		slog.Info("SMS notifications enabled", "admin_phones", len(cfg.SMS.AdminPhones))
	} else {
		slog.Info("SMS notifications disabled (Twilio credentials not set)")
	}
	notifier := notify.NewNotifier(mailer, texter, cfg.Email.AdminEmail, cfg.SMS.AdminPhones)

	// Automated responder (optional). Without an API key the coordinator
	// answers every automated turn with the fallback reply.
	var responder assistant.Responder
	if cfg.Assistant.APIKey != "" {
		openaiResponder, err := assistant.NewOpenAIResponder(cfg.Assistant, logger)
		if err != nil {
			slog.Error("Failed to initialize assistant responder", "error", err)
			os.Exit(1)
		}
		responder = openaiResponder
		slog.Info("Assistant responder enabled", "model", cfg.Assistant.Model)
	} else {
		slog.Info("Assistant responder disabled (OPENAI_API_KEY not set), using fallback replies")
	}

	// Initialize services.
	hub := chat.NewHub()
	registry := chat.NewRegistry()
	coord := chat.NewCoordinator(repo, hub, registry, responder, notifier,
		cfg.HandoffGraceWindow, cfg.InactivityTimeout)

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, coord, notifier)
	chatHandler := api.NewChatHandler(baseHandler, cfg.AdminKey)
	wsHandler := chat.NewWebSocketHandler(coord, hub, registry, cfg.AdminKey, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(corsOrigins(cfg)))

	chatHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // websocket connections stay open indefinitely
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	// Stop pending hand-off and inactivity timers before closing the store.
	coord.Reset()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

func corsOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() || cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
