package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/smendozaCL/classroom-transcripts/internal/jobs"
)

// TranscriptsHandler serves transcript list and detail views.
type TranscriptsHandler struct {
	registry  jobs.Registry
	submitter Submitter
	log       zerolog.Logger
}

func NewTranscriptsHandler(registry jobs.Registry, submitter Submitter, log zerolog.Logger) *TranscriptsHandler {
	return &TranscriptsHandler{
		registry:  registry,
		submitter: submitter,
		log:       log.With().Str("handler", "transcripts").Logger(),
	}
}

// Routes registers the transcript endpoints.
func (h *TranscriptsHandler) Routes(r chi.Router) {
	r.Get("/transcripts", h.List)
	r.Get("/transcripts/{transcriptID}", h.Get)
	r.Post("/transcripts/{transcriptID}/resubmit", h.Resubmit)
}

// ListResponse is the transcript list envelope.
type ListResponse struct {
	Transcripts []jobs.JobSummary `json:"transcripts"`
	Count       int               `json:"count"`
}

// List handles GET /api/v1/transcripts.
// Plain users see only their own uploads; admins and coaches see everything
// and may narrow with ?owner=.
func (h *TranscriptsHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := CallerIdentity(r)
	if caller.Email == "" || !caller.EmailVerified {
		WriteError(w, http.StatusForbidden, "a verified email is required")
		return
	}

	p, err := ParsePagination(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := jobs.ListFilter{Limit: p.Limit, Offset: p.Offset}
	if caller.Role.Elevated() {
		if owner, ok := QueryString(r, "owner"); ok {
			filter.OwnerEmail = owner
		}
	} else {
		filter.OwnerEmail = caller.Email
	}

	summaries, err := h.registry.ListJobs(r.Context(), filter)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("list jobs failed")
		WriteError(w, http.StatusInternalServerError, "failed to list transcripts")
		return
	}
	if summaries == nil {
		summaries = []jobs.JobSummary{}
	}

	WriteJSON(w, http.StatusOK, ListResponse{Transcripts: summaries, Count: len(summaries)})
}

// UtteranceView is one utterance with display timestamps alongside the raw
// millisecond offsets.
type UtteranceView struct {
	Speaker string `json:"speaker"`
	Start   string `json:"start"`
	End     string `json:"end"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

// ResultView is the materialized transcript.
type ResultView struct {
	Text             string          `json:"text,omitempty"`
	Utterances       []UtteranceView `json:"utterances"`
	AudioDurationSec float64         `json:"audio_duration_sec"`
	Duration         string          `json:"duration"`
	Language         string          `json:"language,omitempty"`
	Confidence       float64         `json:"confidence"`
}

// TranscriptResponse is the transcript detail envelope.
type TranscriptResponse struct {
	TranscriptID     string      `json:"transcript_id"`
	ObjectKey        string      `json:"object_key"`
	OriginalFilename string      `json:"original_filename"`
	OwnerEmail       string      `json:"owner_email"`
	Status           jobs.Status `json:"status"`
	FailureNote      string      `json:"failure_note,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	Result           *ResultView `json:"result,omitempty"`
}

// Get handles GET /api/v1/transcripts/{transcriptID}.
func (h *TranscriptsHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller := CallerIdentity(r)
	id := chi.URLParam(r, "transcriptID")

	job, err := h.registry.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "transcript not found")
			return
		}
		hlog.FromRequest(r).Error().Err(err).Str("transcript_id", id).Msg("get job failed")
		WriteError(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}

	upload, err := h.registry.GetUpload(r.Context(), job.ObjectKey)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("object_key", job.ObjectKey).Msg("get upload failed")
		WriteError(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}

	if !jobs.CanView(caller, upload.Owner.Email) {
		WriteError(w, http.StatusForbidden, "you do not have access to this transcript")
		return
	}

	resp := TranscriptResponse{
		TranscriptID:     job.TranscriptID,
		ObjectKey:        job.ObjectKey,
		OriginalFilename: upload.OriginalFilename,
		OwnerEmail:       upload.Owner.Email,
		Status:           job.Status,
		FailureNote:      job.FailureNote,
		CreatedAt:        job.CreatedAt,
		UpdatedAt:        job.UpdatedAt,
	}

	if job.Status == jobs.StatusCompleted {
		result, err := h.registry.GetResult(r.Context(), id)
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Str("transcript_id", id).Msg("get result failed")
			WriteError(w, http.StatusInternalServerError, "failed to load transcript")
			return
		}
		resp.Result = renderResult(result)
	}

	WriteJSON(w, http.StatusOK, resp)
}

// Resubmit handles POST /api/v1/transcripts/{transcriptID}/resubmit.
// Creates a fresh job for the same audio with the same configuration; the
// old job row is left untouched as history.
func (h *TranscriptsHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
	caller := CallerIdentity(r)
	id := chi.URLParam(r, "transcriptID")

	job, err := h.registry.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "transcript not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}

	upload, err := h.registry.GetUpload(r.Context(), job.ObjectKey)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}

	if !jobs.CanView(caller, upload.Owner.Email) {
		WriteError(w, http.StatusForbidden, "you do not have access to this transcript")
		return
	}

	newJob, err := h.submitter.Submit(r.Context(), job.ObjectKey, upload.Owner, job.Config)
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrValidation):
			WriteError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, jobs.ErrSubmissionFailed):
			WriteErrorDetail(w, http.StatusBadGateway, "transcription submission failed", err.Error())
		default:
			h.log.Error().Err(err).Str("transcript_id", id).Msg("resubmission failed")
			WriteError(w, http.StatusInternalServerError, "failed to resubmit transcription")
		}
		return
	}

	h.log.Info().
		Str("transcript_id", id).
		Str("new_transcript_id", newJob.TranscriptID).
		Str("requested_by", caller.Email).
		Msg("transcription resubmitted")

	WriteJSON(w, http.StatusCreated, UploadResponse{
		ObjectKey:    newJob.ObjectKey,
		TranscriptID: newJob.TranscriptID,
		Status:       newJob.Status,
	})
}

// renderResult adds the display timestamps and speaker names the UI shows.
// Raw values are kept alongside so clients can do their own rendering.
func renderResult(result *jobs.Result) *ResultView {
	utterances := make([]UtteranceView, 0, len(result.Utterances))
	for _, u := range result.Utterances {
		utterances = append(utterances, UtteranceView{
			Speaker: "Speaker " + u.Speaker,
			Start:   jobs.FormatTimestamp(u.StartMs),
			End:     jobs.FormatTimestamp(u.EndMs),
			StartMs: u.StartMs,
			EndMs:   u.EndMs,
			Text:    u.Text,
		})
	}

	return &ResultView{
		Text:             result.Text,
		Utterances:       utterances,
		AudioDurationSec: result.AudioDurationSec,
		Duration:         jobs.FormatTimestamp(int64(result.AudioDurationSec * 1000)),
		Language:         result.Language,
		Confidence:       result.Confidence,
	}
}
