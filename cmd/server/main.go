// BPB - Build Perfect Body coaching server
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

	"github.com/ashureev/bpb-coach/internal/api"
	"github.com/ashureev/bpb-coach/internal/coach"
	"github.com/ashureev/bpb-coach/internal/config"
	"github.com/ashureev/bpb-coach/internal/domain"
	"github.com/ashureev/bpb-coach/internal/identity"
	"github.com/ashureev/bpb-coach/internal/illustration"
	"github.com/ashureev/bpb-coach/internal/live"
	"github.com/ashureev/bpb-coach/internal/middleware"
	"github.com/ashureev/bpb-coach/internal/plan"
	"github.com/ashureev/bpb-coach/internal/report"
	"github.com/ashureev/bpb-coach/internal/store"
	"github.com/ashureev/bpb-coach/web"
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "illustration_mode", cfg.Illustration.Mode)

	reporter, err := report.New(report.Config{DSN: cfg.Sentry.DSN, Environment: cfg.Env}, logger)
	if err != nil {
		slog.Error("Failed to initialize error reporting", "error", err)
		os.Exit(1)
	}
	defer reporter.Flush(2 * time.Second)

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// AI collaborators.
	collab, err := coach.NewGeminiClient(ctx, cfg.AI.APIKey, cfg.AI.Model)
	if err != nil {
		slog.Error("Failed to initialize Gemini client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := collab.Close(); closeErr != nil {
			slog.Warn("Failed to close Gemini client", "error", closeErr)
		}
	}()

	binder, closeBinder, err := newBinder(ctx, cfg, repo, logger)
	if err != nil {
		slog.Error("Failed to initialize illustration binder", "error", err)
		os.Exit(1)
	}
	defer closeBinder()

	records, err := repo.ListIllustrations(ctx)
	if err != nil {
		slog.Error("Failed to load illustrations", "error", err)
		os.Exit(1)
	}
	binder.Load(records)
	slog.Info("Illustration bindings loaded", "count", len(records))

	// Initialize services.
	svc, err := coach.NewService(coach.Options{
		Collaborator:  collab,
		Store:         repo,
		Parser:        plan.NewParser(cfg.AI.TrainingMarker),
		Reporter:      reporter,
		Logger:        logger,
		HistoryWindow: cfg.AI.HistoryWindow,
		Temperature:   cfg.AI.Temperature,
		Timeout:       cfg.AI.RequestTimeout,
	})
	if err != nil {
		slog.Error("Failed to initialize coach", "error", err)
		os.Exit(1)
	}

	hub := live.NewHub()
	binder.SetOnBound(hub.OnIllustrationBound)
	svc.Subscribe(hub.OnCoachEvent)
	svc.Subscribe(func(ctx context.Context, ev coach.Event) {
		if ev.Type == coach.EventMessageAppended && ev.Message.Role == domain.RoleAssistant {
			binder.BindMessage(ctx, ev.Conversation, *ev.Message, ev.Sections)
		}
	})

	conversationLogger, err := coach.NewConversationLogger(cfg.ConversationLog, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}

	// Initialize handlers.
	chatHandler := coach.NewHandler(coach.HandlerConfig{
		Service:      svc,
		Profiles:     repo,
		Bindings:     binder,
		RateLimiter:  coach.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window),
		Log:          conversationLogger,
		MaxBodyBytes: cfg.MaxRequestBytes,
	})
	defer chatHandler.Close()

	apiHandler := api.NewHandler(repo, svc, binder, cfg.AI.APIKey != "")
	healthHandler := api.NewHealthHandler(repo)
	wsHandler := live.NewWebSocketHandler(hub, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(reporter.Middleware)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(allowedOrigins(cfg)))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	// Public routes.
	healthHandler.RegisterHealth(r)
	apiHandler.RegisterRoutes(r)
	chatHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/events", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Chat requests wait on the model; WriteTimeout stays above the AI timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // websocket streams are long-lived
		IdleTimeout:  120 * time.Second,
	}

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}
	binder.Wait()

	slog.Info("Server stopped successfully")
}

// newBinder builds the illustration binder for the configured mode. The
// returned func releases the generator and asset clients.
func newBinder(ctx context.Context, cfg *config.Config, repo store.Repository, logger *slog.Logger) (*illustration.Binder, func(), error) {
	mode, err := illustration.ParseMode(cfg.Illustration.Mode)
	if err != nil {
		return nil, nil, err
	}
	bc := illustration.Config{
		Mode:            mode,
		Store:           repo,
		Logger:          logger,
		GenerateTimeout: cfg.Illustration.GenerateTimeout,
	}
	var closers []func() error

	if mode == illustration.ModeGenerate {
		gen, err := illustration.NewGeminiGenerator(ctx, cfg.AI.APIKey, cfg.AI.ImageModel)
		if err != nil {
			return nil, nil, err
		}
		bc.Generator = gen
		closers = append(closers, gen.Close)

		if cfg.Illustration.AssetsBucket != "" {
			assets, err := illustration.NewGCSAssetStore(ctx, cfg.Illustration.AssetsBucket, cfg.Illustration.AssetsBaseURL)
			if err != nil {
				return nil, nil, err
			}
			bc.Assets = assets
			closers = append(closers, assets.Close)
		} else {
			slog.Info("ASSETS_BUCKET not set, generated illustrations stay inline")
		}
	}

	binder, err := illustration.NewBinder(bc)
	if err != nil {
		return nil, nil, err
	}
	return binder, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Warn("Failed to close illustration client", "error", err)
			}
		}
	}, nil
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.FrontendURL == "" || cfg.IsDevelopment() {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
