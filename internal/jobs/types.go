package jobs

import (
	"context"
	"time"
)

// Status is the lifecycle state of a transcription job. Transitions are
// monotonic: queued → processing → {completed | error | failed}. Terminal
// statuses never change again; duplicate terminal writes are no-ops.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusFailed     Status = "failed"
)

var statusRank = map[Status]int{
	StatusQueued:     0,
	StatusProcessing: 1,
	StatusCompleted:  2,
	StatusError:      2,
	StatusFailed:     2,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Terminal reports whether s is a final status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusFailed
}

// CanTransitionTo reports whether a job in status s may move to next.
// Equal-status writes and backward moves are rejected; terminal statuses
// accept nothing.
func (s Status) CanTransitionTo(next Status) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s.Terminal() {
		return false
	}
	return statusRank[next] > statusRank[s]
}

// Predecessors returns the statuses from which next is reachable. Used by the
// registry to express the monotonic guard as a single SQL predicate.
func Predecessors(next Status) []Status {
	var out []Status
	for _, s := range []Status{StatusQueued, StatusProcessing} {
		if s.CanTransitionTo(next) {
			out = append(out, s)
		}
	}
	return out
}

// OwnerIdentity identifies who uploaded a recording.
type OwnerIdentity struct {
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
}

// UploadRecord is one uploaded audio object. Immutable once created.
type UploadRecord struct {
	ObjectKey        string        `json:"object_key"`
	OriginalFilename string        `json:"original_filename"`
	Owner            OwnerIdentity `json:"owner"`
	ContentSize      int64         `json:"content_size"`
	ContentType      string        `json:"content_type"`
	UploadedAt       time.Time     `json:"uploaded_at"`
}

// Job is one submission to the transcription provider, keyed by the
// provider-assigned transcript id. Re-submission creates a new Job.
type Job struct {
	TranscriptID string    `json:"transcript_id"`
	ObjectKey    string    `json:"object_key"`
	Status       Status    `json:"status"`
	Config       Profile   `json:"config"`
	FailureNote  string    `json:"failure_note,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Utterance is one speaker-attributed, timestamped span of speech.
// Timestamps keep millisecond precision; HH:MM:SS rendering is display-only.
type Utterance struct {
	Speaker string `json:"speaker"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

// Result is the materialized transcript for a completed job. Created exactly
// once; immutable afterwards.
type Result struct {
	TranscriptID     string      `json:"transcript_id"`
	Text             string      `json:"text,omitempty"`
	Utterances       []Utterance `json:"utterances"`
	AudioDurationSec float64     `json:"audio_duration_sec"`
	Language         string      `json:"language,omitempty"`
	Confidence       float64     `json:"confidence"`
	CreatedAt        time.Time   `json:"created_at"`
}

// JobSummary is a job row joined with its upload, for list views.
type JobSummary struct {
	TranscriptID     string    `json:"transcript_id"`
	ObjectKey        string    `json:"object_key"`
	OriginalFilename string    `json:"original_filename"`
	OwnerEmail       string    `json:"owner_email"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ListFilter selects jobs for list views. Empty OwnerEmail means all owners.
type ListFilter struct {
	OwnerEmail string
	Limit      int
	Offset     int
}

// Registry is the durable job table. Implemented by internal/registry;
// faked in tests.
type Registry interface {
	InsertUpload(ctx context.Context, u *UploadRecord) error
	GetUpload(ctx context.Context, objectKey string) (*UploadRecord, error)

	InsertJob(ctx context.Context, j *Job) error
	GetJob(ctx context.Context, transcriptID string) (*Job, error)
	ListJobs(ctx context.Context, filter ListFilter) ([]JobSummary, error)
	// ListStale returns non-terminal jobs not updated since the cutoff.
	ListStale(ctx context.Context, cutoff time.Time) ([]Job, error)

	// TransitionJob moves a job to a non-completed status if the monotonic
	// guard allows it. Returns false (no error) when the write was a no-op.
	TransitionJob(ctx context.Context, transcriptID string, to Status, note string) (bool, error)

	// Touch bumps updated_at on a non-terminal job without changing status,
	// deferring it past the reconciler's grace window.
	Touch(ctx context.Context, transcriptID string) error

	// CompleteJob writes the result and flips the job to completed in one
	// logical write. Idempotent: a second call for the same transcript id
	// returns false with no error and no duplicate side effects.
	CompleteJob(ctx context.Context, transcriptID string, result *Result) (bool, error)

	GetResult(ctx context.Context, transcriptID string) (*Result, error)
}
