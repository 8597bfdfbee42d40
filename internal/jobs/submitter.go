package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/smendozaCL/classroom-transcripts/internal/assemblyai"
	"github.com/smendozaCL/classroom-transcripts/internal/metrics"
	"github.com/smendozaCL/classroom-transcripts/internal/store"
)

// Provider is the external transcription API surface this service depends on.
// Implemented by internal/assemblyai; faked in tests.
type Provider interface {
	Submit(ctx context.Context, req assemblyai.SubmitRequest) (*assemblyai.Transcript, error)
	Get(ctx context.Context, id string) (*assemblyai.Transcript, error)
	List(ctx context.Context, beforeID string, limit int) (*assemblyai.TranscriptPage, error)
}

// GrantIssuer mints the read-only fetch capability handed to the provider.
type GrantIssuer interface {
	IssueReadGrant(ctx context.Context, objectKey string, ttl time.Duration) (store.ReadGrant, error)
}

// SubmitterOptions configures a Submitter.
type SubmitterOptions struct {
	Registry Registry
	Store    store.ObjectStore
	Grants   GrantIssuer
	Provider Provider

	GrantTTL time.Duration

	WebhookURL        string
	WebhookAuthHeader string
	WebhookAuthSecret string

	MaxBytes     int64
	ContentTypes map[string]bool

	Log zerolog.Logger
}

// Submitter turns an uploaded object into a queued transcription job.
type Submitter struct {
	opts SubmitterOptions
	log  zerolog.Logger
}

func NewSubmitter(opts SubmitterOptions) *Submitter {
	return &Submitter{
		opts: opts,
		log:  opts.Log.With().Str("component", "submitter").Logger(),
	}
}

// Submit validates the object, issues a read grant, submits the transcription
// to the provider, and writes the initial queued job row. All-or-nothing on
// the registry side: a provider failure surfaces as ErrSubmissionFailed and
// leaves no job row behind. Completion is never awaited here; it arrives via
// the webhook or the reconciler.
func (s *Submitter) Submit(ctx context.Context, objectKey string, owner OwnerIdentity, profile Profile) (*Job, error) {
	props, err := s.opts.Store.Properties(ctx, objectKey)
	if err != nil {
		return nil, fmt.Errorf("object %q: %w", objectKey, ErrValidation)
	}
	if s.opts.MaxBytes > 0 && props.Size > s.opts.MaxBytes {
		return nil, fmt.Errorf("object %q is %d bytes, limit %d: %w", objectKey, props.Size, s.opts.MaxBytes, ErrValidation)
	}
	if len(s.opts.ContentTypes) > 0 && !s.opts.ContentTypes[props.ContentType] {
		return nil, fmt.Errorf("content type %q not accepted: %w", props.ContentType, ErrValidation)
	}

	grant, err := s.opts.Grants.IssueReadGrant(ctx, objectKey, s.opts.GrantTTL)
	if err != nil {
		return nil, fmt.Errorf("issue read grant: %w", err)
	}

	tr, err := s.opts.Provider.Submit(ctx, assemblyai.SubmitRequest{
		AudioURL:          grant.URL,
		LanguageCode:      profile.Language,
		SpeechModel:       profile.SpeechModel,
		SpeakerLabels:     profile.SpeakerLabels,
		SpeakersExpected:  profile.SpeakersExpected,
		FilterProfanity:   profile.FilterProfanity,
		RedactPII:         profile.RedactPII,
		RedactPIIAudio:    profile.RedactAudio,
		RedactPIIPolicies: profile.RedactPolicies,
		RedactPIISub:      profile.PIISubstitution,

		WebhookURL:             s.opts.WebhookURL,
		WebhookAuthHeaderName:  s.opts.WebhookAuthHeader,
		WebhookAuthHeaderValue: s.opts.WebhookAuthSecret,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("object_key", objectKey).Msg("provider rejected submission")
		return nil, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	job := &Job{
		TranscriptID: tr.ID,
		ObjectKey:    objectKey,
		Status:       StatusQueued,
		Config:       profile,
		CreatedAt:    time.Now().UTC(),
	}
	job.UpdatedAt = job.CreatedAt

	if err := s.opts.Registry.InsertJob(ctx, job); err != nil {
		// The provider-side job exists but we could not record it. The
		// reconciler cannot recover a row that was never written, so this
		// is surfaced to the caller for re-submission.
		return nil, fmt.Errorf("record job %q: %w", tr.ID, err)
	}

	metrics.SubmissionsTotal.Inc()
	s.log.Info().
		Str("transcript_id", tr.ID).
		Str("object_key", objectKey).
		Str("owner", owner.Email).
		Msg("transcription submitted")

	return job, nil
}
