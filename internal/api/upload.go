package api

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/smendozaCL/classroom-transcripts/internal/jobs"
	"github.com/smendozaCL/classroom-transcripts/internal/store"
)

// Submitter turns a stored object into a queued transcription job.
// Implemented by jobs.Submitter.
type Submitter interface {
	Submit(ctx context.Context, objectKey string, owner jobs.OwnerIdentity, profile jobs.Profile) (*jobs.Job, error)
}

// UploadHandler accepts audio recordings and submits them for transcription.
type UploadHandler struct {
	registry  jobs.Registry
	objects   store.ObjectStore
	submitter Submitter

	maxBytes     int64
	contentTypes map[string]bool
	log          zerolog.Logger
}

func NewUploadHandler(registry jobs.Registry, objects store.ObjectStore, submitter Submitter, maxBytes int64, contentTypes map[string]bool, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		registry:     registry,
		objects:      objects,
		submitter:    submitter,
		maxBytes:     maxBytes,
		contentTypes: contentTypes,
		log:          log.With().Str("handler", "upload").Logger(),
	}
}

// Routes registers the upload endpoint.
func (h *UploadHandler) Routes(r chi.Router) {
	r.Post("/uploads", h.Upload)
}

// UploadResponse is returned on a successful submission.
type UploadResponse struct {
	ObjectKey    string      `json:"object_key"`
	TranscriptID string      `json:"transcript_id"`
	Status       jobs.Status `json:"status"`
}

// Upload handles POST /api/v1/uploads.
// Accepts a multipart form with an "audio" file field plus optional
// transcription overrides. The object is stored, recorded, and submitted in
// one request; the transcript itself arrives later via the webhook.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	caller := CallerIdentity(r)
	if caller.Email == "" || !caller.EmailVerified {
		WriteError(w, http.StatusForbidden, "a verified email is required to upload")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		WriteError(w, http.StatusBadRequest, `an "audio" file field is required`)
		return
	}
	defer file.Close()

	contentType := detectContentType(header.Header.Get("Content-Type"), header.Filename)
	if !h.contentTypes[contentType] {
		WriteError(w, http.StatusBadRequest, "unsupported content type "+contentType)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "failed to read audio file")
		return
	}
	if int64(len(data)) > h.maxBytes {
		WriteError(w, http.StatusBadRequest, "audio file exceeds the size limit")
		return
	}

	profile, err := profileFromForm(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now().UTC()
	key := jobs.ObjectKey(header.Filename, now)
	if err := h.objects.Put(r.Context(), key, data, contentType); err != nil {
		h.log.Error().Err(err).Str("object_key", key).Msg("object store write failed")
		WriteError(w, http.StatusInternalServerError, "failed to store audio")
		return
	}

	upload := &jobs.UploadRecord{
		ObjectKey:        key,
		OriginalFilename: header.Filename,
		Owner:            jobs.OwnerIdentity{Email: caller.Email, Verified: caller.EmailVerified},
		ContentSize:      int64(len(data)),
		ContentType:      contentType,
		UploadedAt:       now,
	}
	if err := h.registry.InsertUpload(r.Context(), upload); err != nil {
		h.log.Error().Err(err).Str("object_key", key).Msg("upload record write failed")
		WriteError(w, http.StatusInternalServerError, "failed to record upload")
		return
	}

	job, err := h.submitter.Submit(r.Context(), key, upload.Owner, profile)
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrValidation):
			WriteError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, jobs.ErrSubmissionFailed):
			// The object and upload record stay; the client can retry via
			// the resubmit endpoint without re-uploading.
			WriteErrorDetail(w, http.StatusBadGateway, "transcription submission failed", err.Error())
		default:
			h.log.Error().Err(err).Str("object_key", key).Msg("submission failed")
			WriteError(w, http.StatusInternalServerError, "failed to submit transcription")
		}
		return
	}

	WriteJSON(w, http.StatusCreated, UploadResponse{
		ObjectKey:    key,
		TranscriptID: job.TranscriptID,
		Status:       job.Status,
	})
}

// profileFromForm builds a transcription profile from optional form fields,
// starting from the default classroom profile.
func profileFromForm(r *http.Request) (jobs.Profile, error) {
	profile := jobs.DefaultProfile()

	if v := r.FormValue("speakers_expected"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 10 {
			return profile, errors.New("speakers_expected must be an integer between 1 and 10")
		}
		profile.SpeakersExpected = n
	}
	if v := r.FormValue("language"); v != "" {
		profile.Language = v
	}
	return profile, nil
}

// audioExtTypes covers the audio extensions the system mime table often
// lacks. mime.TypeByExtension's builtin table has no audio entries at all.
var audioExtTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".mp4":  "audio/mp4",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".webm": "audio/webm",
}

// detectContentType prefers the part's declared type, falling back to the
// filename extension. Multipart parts without a declared type arrive as
// application/octet-stream.
func detectContentType(declared, filename string) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "" && mt != "application/octet-stream" {
		return mt
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if mt, ok := audioExtTypes[ext]; ok {
		return mt
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		if mt, _, err := mime.ParseMediaType(byExt); err == nil {
			return mt
		}
	}
	return "application/octet-stream"
}
