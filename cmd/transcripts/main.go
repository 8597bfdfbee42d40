package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/smendozaCL/classroom-transcripts/internal/api"
	"github.com/smendozaCL/classroom-transcripts/internal/assemblyai"
	"github.com/smendozaCL/classroom-transcripts/internal/config"
	"github.com/smendozaCL/classroom-transcripts/internal/jobs"
	"github.com/smendozaCL/classroom-transcripts/internal/registry"
	"github.com/smendozaCL/classroom-transcripts/internal/store"
)

var version = "dev"

func main() {
	startTime := time.Now()

	envFile := flag.String("env", "", "path to .env file")
	httpAddr := flag.String("addr", "", "http listen address (overrides HTTP_ADDR)")
	logLevel := flag.String("log-level", "", "log level (overrides LOG_LEVEL)")
	flag.Parse()

	// Config
	cfg, err := config.Load(config.Overrides{
		EnvFile:  *envFile,
		HTTPAddr: *httpAddr,
		LogLevel: *logLevel,
	})
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("classroom-transcripts starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Job registry
	regLog := log.With().Str("component", "registry").Logger()
	reg, err := registry.Connect(ctx, cfg.DatabaseURL, regLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer reg.Close()
	if err := reg.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize schema")
	}

	// Audio object store
	storeLog := log.With().Str("component", "store").Logger()
	objects, err := store.NewS3Store(cfg.S3, storeLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure object store")
	}
	if err := objects.HeadBucket(ctx); err != nil {
		log.Fatal().Err(err).Str("bucket", cfg.S3.Bucket).Msg("bucket not reachable")
	}
	grants := store.NewGrantIssuer(objects, cfg.S3.PresignMaxTTL, storeLog)

	// Transcription provider
	provider := assemblyai.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.Timeout)

	// Job pipeline
	submitter := jobs.NewSubmitter(jobs.SubmitterOptions{
		Registry: reg,
		Store:    objects,
		Grants:   grants,
		Provider: provider,
		GrantTTL: cfg.S3.PresignExpiry,

		WebhookURL:        cfg.WebhookURL(),
		WebhookAuthHeader: cfg.Webhook.AuthHeader,
		WebhookAuthSecret: cfg.Webhook.AuthSecret,

		MaxBytes:     cfg.Upload.MaxBytes,
		ContentTypes: cfg.Upload.AllowedContentTypes(),

		Log: log,
	})
	completer := jobs.NewCompleter(reg, provider, log)

	reconciler := jobs.NewReconciler(jobs.ReconcilerOptions{
		Registry:  reg,
		Provider:  provider,
		Completer: completer,
		Interval:  cfg.ReconcileInterval,
		Grace:     cfg.ReconcileGrace,
		Log:       log,
	})
	reconciler.Start()
	defer reconciler.Stop()

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, api.Deps{
		Registry:  reg,
		Database:  reg,
		Objects:   objects,
		Submitter: submitter,
		Resolver:  completer,
		Version:   version,
		StartTime: startTime,
	}, httpLog)

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("classroom-transcripts stopped")
}
