package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AndreRH09/download_valet/internal/artifact"
	"github.com/AndreRH09/download_valet/internal/cleanup"
	"github.com/AndreRH09/download_valet/internal/config"
	"github.com/AndreRH09/download_valet/internal/curator"
	"github.com/AndreRH09/download_valet/internal/delivery"
	"github.com/AndreRH09/download_valet/internal/http/rest"
	"github.com/AndreRH09/download_valet/internal/logctx"
	"github.com/AndreRH09/download_valet/internal/notifier"
	"github.com/AndreRH09/download_valet/internal/storage"
	"github.com/AndreRH09/download_valet/internal/storage/sqlite"
	"github.com/AndreRH09/download_valet/internal/svc/eyes"
	"github.com/AndreRH09/download_valet/internal/telemetry"
)

// version is set at build time.
var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := slog.New(logctx.NewTraceHandler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("download valet starting...", "version", version, "log_level", cfg.LogLevel)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "download_valet",
		ServiceVersion: version,
		WatchDir:       cfg.WatchDir,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown telemetry", "err", err)
		}
	}()

	// =========================================================================
	// Start Database
	database, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		logger.Error("DB error", "err", err)

		return err
	}
	defer database.Close()

	repo := sqlite.NewInstrumentedDeliveryRepository(database, tel)

	// =========================================================================
	// Start Delivery Pipeline
	instanceID := storage.GenerateInstanceID()

	deliverer := delivery.NewDeliverer(
		delivery.NewInstrumentedWaiter(delivery.NewWaiter(), tel),
		delivery.NewInstrumentedRelocator(delivery.NewRelocator(), tel),
		delivery.WithTransitionFunc(func(ctx context.Context, exp artifact.Expectation, state artifact.State) {
			if state.Terminal() {
				// The curator records terminal outcomes with their full details.
				return
			}

			if err := repo.UpdateDeliveryStatus(ctx, exp.ID, string(state)); err != nil {
				logctx.LoggerFromContext(ctx).Error("failed to persist delivery state",
					"expectation_id", exp.ID, "state", string(state), "err", err)
			}
		}),
	)

	// runCtx stops the producer and curator goroutines before their Close
	// calls run, so nothing sends on a closed channel during shutdown.
	runCtx, cancelRun := context.WithCancel(ctx)

	producer := curator.NewProducer(repo, instanceID, cfg.UpdateInterval, cfg.MaxWait, cfg.PollInterval, cfg.MaxParallel*2)
	defer producer.Close()

	cur := curator.NewCurator(deliverer, repo, tel, cfg.MaxParallel)
	defer cur.Close()
	defer cancelRun()

	producer.ProduceExpectations(runCtx)
	cur.WatchExpectations(runCtx, producer.OnExpectationQueued)

	// =========================================================================
	// Start Notification
	setupNotifications(runCtx, cur, tel, cfg)

	// =========================================================================
	// Start Cleanup
	setupCleanup(runCtx, repo, cfg)

	// =========================================================================
	// Start API Service

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	server := setupServer(ctx, cur, repo, tel, cfg)

	go func() {
		logger.Info("Initializing API support", "host", cfg.Web.BindAddress)
		serverErrors <- server.ListenAndServe()
	}()

	logger.Info("waiting for artifacts...",
		"watch_dir", cfg.WatchDir,
		"archive_dir", cfg.ArchiveDir,
		"update_interval", cfg.UpdateInterval.String(),
		"retention", cfg.KeepArtifactsFor.String(),
	)

	// =========================================================================
	// Wait for Shutdown
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("start shutdown")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to gracefully shutdown the server", "err", err)

			if err = server.Close(); err != nil {
				return fmt.Errorf("could not stop server gracefully: %w", err)
			}
		}
	}

	return nil
}

func setupNotifications(ctx context.Context, cur *curator.Curator, tel *telemetry.Telemetry, cfg *config.Config) {
	logger := logctx.LoggerFromContext(ctx)

	var notif notifier.Notifier
	if cfg.DiscordWebhookURL != "" {
		notif = notifier.NewInstrumentedNotifier(&notifier.DiscordNotifier{WebhookURL: cfg.DiscordWebhookURL}, tel, "discord")
	}

	var validator *eyes.Client
	if cfg.Eyes.BaseURL != "" {
		validator = eyes.NewClient(cfg.Eyes.BaseURL, cfg.Eyes.Token, cfg.Eyes.Timeout)
	}

	notify := func(content string) {
		if notif == nil {
			return
		}

		if err := notif.Notify(ctx, content); err != nil {
			logger.Error("failed to send notification", "err", err)
		}
	}

	go func() {
		for d := range cur.OnDelivered {
			notify("✅ Artifact delivered: " + d.Expectation.Name + " (" + d.Expectation.Destination + ")")

			if validator == nil {
				continue
			}

			checkpoint := eyes.Checkpoint{
				Name:  d.Expectation.Name,
				Batch: filepath.Base(filepath.Dir(d.Expectation.Destination)),
				Path:  d.Expectation.Destination,
			}

			err := tel.InstrumentClientOperation(ctx, "eyes", "submit_checkpoint", func(ctx context.Context) error {
				return validator.SubmitCheckpoint(ctx, checkpoint)
			})
			if err != nil {
				logger.Error("failed to submit validation checkpoint", "artifact_name", d.Expectation.Name, "err", err)
			}
		}
	}()

	go func() {
		for d := range cur.OnTimedOut {
			notify("⏰ Artifact never arrived: " + d.Expectation.Name + " (waited " + d.Wait.Elapsed.String() + ")")
		}
	}()

	go func() {
		for d := range cur.OnDeliveryFailed {
			msg := "❌ Delivery failed for artifact: " + d.Expectation.Name
			if d.Relocation != nil && d.Relocation.Reason != nil {
				msg += " (" + artifact.FailureReason(d.Relocation.Reason) + ")"
			}

			notify(msg)
		}
	}()
}

func setupCleanup(ctx context.Context, repo storage.DeliveryReadRepository, cfg *config.Config) {
	logger := logctx.LoggerFromContext(ctx)

	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("cleanup goroutine shutting down.")

				return
			case <-ticker.C:
				delivered, err := repo.GetDeliveriesByStatus(ctx, string(artifact.StateMoved))
				if err != nil {
					logger.Error("failed to get delivered artifacts for cleanup", "err", err)

					continue
				}

				if err := cleanup.DeleteExpiredArtifacts(ctx, delivered, cfg.KeepArtifactsFor); err != nil {
					logger.Error("failed to delete expired artifacts", "err", err)
				}
			}
		}
	}()
}

// setupServer prepares the handlers and middlewares of the http rest server.
func setupServer(ctx context.Context, cur *curator.Curator, repo rest.DeliveryRepository, tel *telemetry.Telemetry, cfg *config.Config) *http.Server {
	handler := rest.NewExpectationHandler(cfg.API.Username, cfg.API.Password, repo, cur, cfg.WatchDir, cfg.ArchiveDir)

	r := chi.NewRouter()
	r.Use(telemetry.RequestID)
	r.Use(telemetry.NewHTTPMiddleware(tel).Middleware)
	r.Use(telemetry.HTTPLogging)

	r.Handle("/metrics", tel.Handler())
	r.Mount("/", handler.Routes())

	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      r,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}
