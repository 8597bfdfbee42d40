package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/smendozaCL/classroom-transcripts/internal/jobs"
)

func seedTranscript(reg *memRegistry, id, owner string, status jobs.Status) {
	now := time.Now().UTC()
	key := "20250314_092653_" + id + ".mp3"
	reg.uploads[key] = &jobs.UploadRecord{
		ObjectKey:        key,
		OriginalFilename: id + ".mp3",
		Owner:            jobs.OwnerIdentity{Email: owner, Verified: true},
		ContentSize:      1024,
		ContentType:      "audio/mpeg",
		UploadedAt:       now,
	}
	reg.jobs[id] = &jobs.Job{
		TranscriptID: id,
		ObjectKey:    key,
		Status:       status,
		Config:       jobs.DefaultProfile(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func transcriptsRouter(reg *memRegistry, submitter *stubSubmitter) http.Handler {
	h := NewTranscriptsHandler(reg, submitter, zerolog.Nop())
	r := chi.NewRouter()
	r.Route("/api/v1", h.Routes)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path string, identity jobs.Identity) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if identity.Email != "" {
		req.Header.Set(HeaderUserEmail, identity.Email)
	}
	if identity.EmailVerified {
		req.Header.Set(HeaderUserVerified, "true")
	}
	if identity.Role != "" {
		req.Header.Set(HeaderUserRole, string(identity.Role))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTranscriptsList(t *testing.T) {
	teacher := jobs.Identity{Email: "teacher@school.edu", EmailVerified: true, Role: jobs.RoleUser}
	coach := jobs.Identity{Email: "coach@school.edu", EmailVerified: true, Role: jobs.RoleCoach}

	newSeeded := func() *memRegistry {
		reg := newMemRegistry()
		seedTranscript(reg, "tr_1", "teacher@school.edu", jobs.StatusCompleted)
		seedTranscript(reg, "tr_2", "other@school.edu", jobs.StatusQueued)
		return reg
	}

	t.Run("user sees only own transcripts", func(t *testing.T) {
		router := transcriptsRouter(newSeeded(), &stubSubmitter{})
		w := doRequest(t, router, http.MethodGet, "/api/v1/transcripts", teacher)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d; body %s", w.Code, w.Body.String())
		}
		var resp ListResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Count != 1 || resp.Transcripts[0].TranscriptID != "tr_1" {
			t.Errorf("response = %+v, want only tr_1", resp)
		}
	})

	t.Run("coach sees everything", func(t *testing.T) {
		router := transcriptsRouter(newSeeded(), &stubSubmitter{})
		w := doRequest(t, router, http.MethodGet, "/api/v1/transcripts", coach)
		var resp ListResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Count != 2 {
			t.Errorf("count = %d, want 2", resp.Count)
		}
	})

	t.Run("coach can narrow by owner", func(t *testing.T) {
		router := transcriptsRouter(newSeeded(), &stubSubmitter{})
		w := doRequest(t, router, http.MethodGet, "/api/v1/transcripts?owner=other@school.edu", coach)
		var resp ListResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Count != 1 || resp.Transcripts[0].TranscriptID != "tr_2" {
			t.Errorf("response = %+v, want only tr_2", resp)
		}
	})

	t.Run("unverified caller is forbidden", func(t *testing.T) {
		router := transcriptsRouter(newSeeded(), &stubSubmitter{})
		unverified := jobs.Identity{Email: "teacher@school.edu", Role: jobs.RoleUser}
		w := doRequest(t, router, http.MethodGet, "/api/v1/transcripts", unverified)
		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", w.Code)
		}
	})

	t.Run("bad pagination is a 400", func(t *testing.T) {
		router := transcriptsRouter(newSeeded(), &stubSubmitter{})
		w := doRequest(t, router, http.MethodGet, "/api/v1/transcripts?limit=zero", teacher)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})
}

func TestTranscriptsGet(t *testing.T) {
	teacher := jobs.Identity{Email: "teacher@school.edu", EmailVerified: true, Role: jobs.RoleUser}

	t.Run("completed transcript renders display timestamps", func(t *testing.T) {
		reg := newMemRegistry()
		seedTranscript(reg, "tr_1", "teacher@school.edu", jobs.StatusCompleted)
		reg.results["tr_1"] = &jobs.Result{
			TranscriptID: "tr_1",
			Text:         "hello everyone",
			Utterances: []jobs.Utterance{
				{Speaker: "A", StartMs: 0, EndMs: 2000, Text: "hello everyone"},
				{Speaker: "B", StartMs: 65500, EndMs: 70000, Text: "thanks"},
			},
			AudioDurationSec: 70,
			Language:         "en",
			Confidence:       0.91,
		}
		router := transcriptsRouter(reg, &stubSubmitter{})

		w := doRequest(t, router, http.MethodGet, "/api/v1/transcripts/tr_1", teacher)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d; body %s", w.Code, w.Body.String())
		}

		var resp TranscriptResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Result == nil {
			t.Fatal("completed transcript should include the result")
		}
		u := resp.Result.Utterances[1]
		if u.Speaker != "Speaker B" {
			t.Errorf("speaker = %q, want Speaker B", u.Speaker)
		}
		if u.Start != "00:01:05" || u.End != "00:01:10" {
			t.Errorf("display timestamps = %s-%s", u.Start, u.End)
		}
		if u.StartMs != 65500 {
			t.Errorf("raw milliseconds must be preserved, got %d", u.StartMs)
		}
		if resp.Result.Duration != "00:01:10" {
			t.Errorf("duration = %q", resp.Result.Duration)
		}
	})

	t.Run("pending transcript has no result", func(t *testing.T) {
		reg := newMemRegistry()
		seedTranscript(reg, "tr_1", "teacher@school.edu", jobs.StatusProcessing)
		router := transcriptsRouter(reg, &stubSubmitter{})

		w := doRequest(t, router, http.MethodGet, "/api/v1/transcripts/tr_1", teacher)
		var resp TranscriptResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Status != jobs.StatusProcessing || resp.Result != nil {
			t.Errorf("response = %+v", resp)
		}
	})

	t.Run("other users transcript is forbidden", func(t *testing.T) {
		reg := newMemRegistry()
		seedTranscript(reg, "tr_1", "other@school.edu", jobs.StatusCompleted)
		router := transcriptsRouter(reg, &stubSubmitter{})

		w := doRequest(t, router, http.MethodGet, "/api/v1/transcripts/tr_1", teacher)
		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", w.Code)
		}
	})

	t.Run("admin sees any transcript", func(t *testing.T) {
		reg := newMemRegistry()
		seedTranscript(reg, "tr_1", "other@school.edu", jobs.StatusQueued)
		router := transcriptsRouter(reg, &stubSubmitter{})

		admin := jobs.Identity{Email: "admin@school.edu", EmailVerified: true, Role: jobs.RoleAdmin}
		w := doRequest(t, router, http.MethodGet, "/api/v1/transcripts/tr_1", admin)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
	})

	t.Run("unknown transcript is a 404", func(t *testing.T) {
		router := transcriptsRouter(newMemRegistry(), &stubSubmitter{})
		w := doRequest(t, router, http.MethodGet, "/api/v1/transcripts/tr_missing", teacher)
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", w.Code)
		}
	})
}

func TestTranscriptsResubmit(t *testing.T) {
	teacher := jobs.Identity{Email: "teacher@school.edu", EmailVerified: true, Role: jobs.RoleUser}

	t.Run("owner resubmits with the original config", func(t *testing.T) {
		reg := newMemRegistry()
		seedTranscript(reg, "tr_1", "teacher@school.edu", jobs.StatusError)
		reg.jobs["tr_1"].Config.SpeakersExpected = 4
		submitter := &stubSubmitter{}
		router := transcriptsRouter(reg, submitter)

		w := doRequest(t, router, http.MethodPost, "/api/v1/transcripts/tr_1/resubmit", teacher)
		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d; body %s", w.Code, w.Body.String())
		}
		if submitter.calls != 1 {
			t.Fatalf("submitter calls = %d, want 1", submitter.calls)
		}
		if submitter.gotKey != reg.jobs["tr_1"].ObjectKey {
			t.Errorf("resubmitted key = %q", submitter.gotKey)
		}
		if submitter.gotProfile.SpeakersExpected != 4 {
			t.Errorf("resubmission must reuse the stored config, got %+v", submitter.gotProfile)
		}

		var resp UploadResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.TranscriptID == "tr_1" || resp.TranscriptID == "" {
			t.Errorf("resubmission should mint a new transcript id, got %q", resp.TranscriptID)
		}
	})

	t.Run("stranger cannot resubmit", func(t *testing.T) {
		reg := newMemRegistry()
		seedTranscript(reg, "tr_1", "other@school.edu", jobs.StatusError)
		submitter := &stubSubmitter{}
		router := transcriptsRouter(reg, submitter)

		w := doRequest(t, router, http.MethodPost, "/api/v1/transcripts/tr_1/resubmit", teacher)
		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", w.Code)
		}
		if submitter.calls != 0 {
			t.Errorf("forbidden resubmit must not reach the submitter")
		}
	})

	t.Run("provider rejection surfaces as 502", func(t *testing.T) {
		reg := newMemRegistry()
		seedTranscript(reg, "tr_1", "teacher@school.edu", jobs.StatusError)
		router := transcriptsRouter(reg, &stubSubmitter{err: jobs.ErrSubmissionFailed})

		w := doRequest(t, router, http.MethodPost, "/api/v1/transcripts/tr_1/resubmit", teacher)
		if w.Code != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502", w.Code)
		}
	})
}
