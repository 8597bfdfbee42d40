package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/smendozaCL/classroom-transcripts/internal/assemblyai"
	"github.com/smendozaCL/classroom-transcripts/internal/metrics"
)

// providerLostNote records why a job was marked failed when the provider no
// longer knows the transcript id.
const providerLostNote = "provider has no record of transcript"

// Completer applies the provider's current state for a transcript to the
// registry. It is the single completion path, shared verbatim by the webhook
// handler and the reconciler; registry idempotency makes the two racing
// harmless.
type Completer struct {
	registry Registry
	provider Provider
	log      zerolog.Logger
}

func NewCompleter(registry Registry, provider Provider, log zerolog.Logger) *Completer {
	return &Completer{
		registry: registry,
		provider: provider,
		log:      log.With().Str("component", "completer").Logger(),
	}
}

// Resolve fetches the transcript from the provider and applies its status:
// completed materializes the result, error/failed update the status field,
// and a provider 404 marks the job failed. Transient provider errors are
// returned to the caller (the webhook responds 500 so the provider retries;
// the reconciler picks the job up again next sweep).
func (c *Completer) Resolve(ctx context.Context, transcriptID string) error {
	tr, err := c.provider.Get(ctx, transcriptID)
	if err != nil {
		if errors.Is(err, assemblyai.ErrTranscriptNotFound) {
			return c.markFailed(ctx, transcriptID, providerLostNote)
		}
		return fmt.Errorf("fetch transcript %q: %w", transcriptID, err)
	}

	switch tr.Status {
	case "completed":
		return c.complete(ctx, tr)

	case "error":
		changed, err := c.registry.TransitionJob(ctx, transcriptID, StatusError, tr.Error)
		if err != nil {
			return err
		}
		if changed {
			metrics.JobsFinishedTotal.WithLabelValues(string(StatusError)).Inc()
			c.log.Info().Str("transcript_id", transcriptID).Str("provider_error", tr.Error).Msg("job errored")
		}
		return nil

	case "queued", "processing":
		if _, err := c.registry.TransitionJob(ctx, transcriptID, StatusProcessing, ""); err != nil {
			return err
		}
		return nil

	default:
		return fmt.Errorf("provider reported unknown status %q for %q", tr.Status, transcriptID)
	}
}

func (c *Completer) complete(ctx context.Context, tr *assemblyai.Transcript) error {
	result := NormalizeResult(tr)
	changed, err := c.registry.CompleteJob(ctx, tr.ID, result)
	if err != nil {
		return fmt.Errorf("materialize result %q: %w", tr.ID, err)
	}
	if changed {
		metrics.JobsFinishedTotal.WithLabelValues(string(StatusCompleted)).Inc()
		c.log.Info().
			Str("transcript_id", tr.ID).
			Int("utterances", len(result.Utterances)).
			Float64("audio_duration_sec", result.AudioDurationSec).
			Msg("transcript materialized")
	} else {
		c.log.Debug().Str("transcript_id", tr.ID).Msg("duplicate completion, no-op")
	}
	return nil
}

func (c *Completer) markFailed(ctx context.Context, transcriptID, note string) error {
	changed, err := c.registry.TransitionJob(ctx, transcriptID, StatusFailed, note)
	if err != nil {
		return err
	}
	if changed {
		metrics.JobsFinishedTotal.WithLabelValues(string(StatusFailed)).Inc()
		c.log.Warn().Str("transcript_id", transcriptID).Str("note", note).Msg("job failed")
	}
	return nil
}

// NormalizeResult converts a provider transcript into the persisted result
// shape. Utterance timestamps keep millisecond precision exactly as reported;
// HH:MM:SS rendering is left to the presentation layer.
func NormalizeResult(tr *assemblyai.Transcript) *Result {
	utterances := make([]Utterance, 0, len(tr.Utterances))
	for _, u := range tr.Utterances {
		utterances = append(utterances, Utterance{
			Speaker: u.Speaker,
			StartMs: u.Start,
			EndMs:   u.End,
			Text:    u.Text,
		})
	}

	text := ""
	if tr.Text != nil {
		text = *tr.Text
	}

	return &Result{
		TranscriptID:     tr.ID,
		Text:             text,
		Utterances:       utterances,
		AudioDurationSec: tr.AudioDuration,
		Language:         tr.LanguageCode,
		Confidence:       tr.Confidence,
	}
}
