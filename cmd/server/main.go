// driftchat - ephemeral in-memory group chat relay
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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avolent/driftchat/internal/api"
	"github.com/avolent/driftchat/internal/chat"
	"github.com/avolent/driftchat/internal/config"
	"github.com/avolent/driftchat/internal/gif"
	"github.com/avolent/driftchat/internal/middleware"
	"github.com/avolent/driftchat/internal/preview"
	"github.com/avolent/driftchat/web"
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

	slog.Info("Starting server",
		"port", cfg.Port,
		"max_origins", cfg.MaxOrigins,
		"max_messages", cfg.MaxMessages,
	)

	hub := chat.NewHub(chat.Options{
		MaxOrigins:         cfg.MaxOrigins,
		MaxMessages:        cfg.MaxMessages,
		MaxAttachmentBytes: cfg.MaxAttachmentBytes,
		GracePeriod:        cfg.GracePeriod,
		IdleTimeout:        cfg.IdleTimeout,
		SweepInterval:      cfg.SweepInterval,
	})

	gifs := gif.NewClient(cfg.GiphyAPIKey)
	if cfg.GiphyAPIKey == "" {
		slog.Info("GIPHY_API_KEY not set, GIF search serves the local pool")
	}
	previews := preview.NewClient()

	handler := api.NewHandler(hub, gifs, previews, cfg)

	// Setup router.
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	handler.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/*", web.Handler())

	// SSE streams need long-lived responses (no WriteTimeout); keepalive
	// frames hold the transport open instead.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go hub.Run(ctx)

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
