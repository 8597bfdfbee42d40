package api

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/smendozaCL/classroom-transcripts/internal/metrics"
)

// Resolver drives a transcript to its registry state from the provider's
// current view. Implemented by jobs.Completer.
type Resolver interface {
	Resolve(ctx context.Context, transcriptID string) error
}

// WebhookHandler receives provider completion callbacks. The payload carries
// only the transcript id and a coarse status; the authoritative transcript is
// always re-fetched from the provider, so a forged or stale body can at worst
// trigger a lookup.
type WebhookHandler struct {
	resolver   Resolver
	authHeader string
	authSecret string
	log        zerolog.Logger
}

func NewWebhookHandler(resolver Resolver, authHeader, authSecret string, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		resolver:   resolver,
		authHeader: authHeader,
		authSecret: authSecret,
		log:        log.With().Str("handler", "webhook").Logger(),
	}
}

// Routes registers the webhook endpoint.
func (h *WebhookHandler) Routes(r chi.Router) {
	r.Post("/webhook", h.Receive)
}

type webhookPayload struct {
	Status       string `json:"status"`
	TranscriptID string `json:"transcript_id"`
}

// Receive handles POST /api/v1/webhook.
// Unauthenticated deliveries are rejected before any state change. Duplicate
// deliveries for an already-terminal job are acknowledged as successes.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	provided := r.Header.Get(h.authHeader)
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.authSecret)) != 1 {
		metrics.WebhookDeliveriesTotal.WithLabelValues("unauthorized").Inc()
		hlog.FromRequest(r).Warn().Msg("webhook delivery with bad or missing secret")
		WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var payload webhookPayload
	if err := DecodeJSON(r, &payload); err != nil {
		metrics.WebhookDeliveriesTotal.WithLabelValues("invalid").Inc()
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.TranscriptID == "" {
		metrics.WebhookDeliveriesTotal.WithLabelValues("invalid").Inc()
		WriteError(w, http.StatusBadRequest, "transcript_id is required")
		return
	}

	log := hlog.FromRequest(r).With().
		Str("transcript_id", payload.TranscriptID).
		Str("webhook_status", payload.Status).
		Logger()

	switch payload.Status {
	case "completed", "error":
		if err := h.resolver.Resolve(r.Context(), payload.TranscriptID); err != nil {
			// A 5xx makes the provider redeliver; the reconciler is the
			// backstop if it gives up.
			metrics.WebhookDeliveriesTotal.WithLabelValues("failed").Inc()
			log.Error().Err(err).Msg("webhook resolution failed")
			WriteError(w, http.StatusInternalServerError, "failed to resolve transcript")
			return
		}
		metrics.WebhookDeliveriesTotal.WithLabelValues("applied").Inc()

	default:
		// Interim statuses are acknowledged without a provider round trip.
		metrics.WebhookDeliveriesTotal.WithLabelValues("ignored").Inc()
		log.Debug().Msg("interim webhook status acknowledged")
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":        "success",
		"transcript_id": payload.TranscriptID,
	})
}
