package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/smendozaCL/classroom-transcripts/internal/config"
	"github.com/smendozaCL/classroom-transcripts/internal/jobs"
	"github.com/smendozaCL/classroom-transcripts/internal/metrics"
	"github.com/smendozaCL/classroom-transcripts/internal/store"
)

// Deps collects everything the HTTP surface needs.
type Deps struct {
	Registry  jobs.Registry
	Database  Pinger
	Objects   store.ObjectStore
	Submitter Submitter
	Resolver  Resolver

	Version   string
	StartTime time.Time
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(cfg *config.Config, deps Deps, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(metrics.InstrumentHandler)
	r.Use(CORS)

	health := NewHealthHandler(deps.Database, objectStorePinger(deps.Objects), deps.Version, deps.StartTime)
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	upload := NewUploadHandler(deps.Registry, deps.Objects, deps.Submitter, cfg.Upload.MaxBytes, cfg.Upload.AllowedContentTypes(), log)
	webhook := NewWebhookHandler(deps.Resolver, cfg.Webhook.AuthHeader, cfg.Webhook.AuthSecret, log)
	transcripts := NewTranscriptsHandler(deps.Registry, deps.Submitter, log)

	r.Route("/api/v1", func(r chi.Router) {
		upload.Routes(r)
		webhook.Routes(r)
		transcripts.Routes(r)
	})

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}

// objectStorePinger adapts the object store's bucket check to the health
// handler's Pinger when the store supports one.
func objectStorePinger(objects store.ObjectStore) Pinger {
	type bucketChecker interface {
		HeadBucket(ctx context.Context) error
	}
	if bc, ok := objects.(bucketChecker); ok {
		return PingerFunc(bc.HeadBucket)
	}
	return nil
}
