package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smendozaCL/classroom-transcripts/internal/jobs"
	"github.com/smendozaCL/classroom-transcripts/internal/store"
)

var errBoom = errors.New("boom")

// memRegistry is a minimal in-memory jobs.Registry for handler tests.
type memRegistry struct {
	uploads map[string]*jobs.UploadRecord
	jobs    map[string]*jobs.Job
	results map[string]*jobs.Result

	listErr error
}

func newMemRegistry() *memRegistry {
	return &memRegistry{
		uploads: make(map[string]*jobs.UploadRecord),
		jobs:    make(map[string]*jobs.Job),
		results: make(map[string]*jobs.Result),
	}
}

func (m *memRegistry) InsertUpload(ctx context.Context, u *jobs.UploadRecord) error {
	m.uploads[u.ObjectKey] = u
	return nil
}

func (m *memRegistry) GetUpload(ctx context.Context, objectKey string) (*jobs.UploadRecord, error) {
	if u, ok := m.uploads[objectKey]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("upload %q: %w", objectKey, jobs.ErrNotFound)
}

func (m *memRegistry) InsertJob(ctx context.Context, j *jobs.Job) error {
	m.jobs[j.TranscriptID] = j
	return nil
}

func (m *memRegistry) GetJob(ctx context.Context, transcriptID string) (*jobs.Job, error) {
	if j, ok := m.jobs[transcriptID]; ok {
		return j, nil
	}
	return nil, fmt.Errorf("job %q: %w", transcriptID, jobs.ErrNotFound)
}

func (m *memRegistry) ListJobs(ctx context.Context, filter jobs.ListFilter) ([]jobs.JobSummary, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []jobs.JobSummary
	for _, j := range m.jobs {
		u := m.uploads[j.ObjectKey]
		if u == nil {
			continue
		}
		if filter.OwnerEmail != "" && u.Owner.Email != filter.OwnerEmail {
			continue
		}
		out = append(out, jobs.JobSummary{
			TranscriptID:     j.TranscriptID,
			ObjectKey:        j.ObjectKey,
			OriginalFilename: u.OriginalFilename,
			OwnerEmail:       u.Owner.Email,
			Status:           j.Status,
			CreatedAt:        j.CreatedAt,
			UpdatedAt:        j.UpdatedAt,
		})
	}
	return out, nil
}

func (m *memRegistry) ListStale(ctx context.Context, cutoff time.Time) ([]jobs.Job, error) {
	return nil, nil
}

func (m *memRegistry) TransitionJob(ctx context.Context, transcriptID string, to jobs.Status, note string) (bool, error) {
	j, ok := m.jobs[transcriptID]
	if !ok || !j.Status.CanTransitionTo(to) {
		return false, nil
	}
	j.Status = to
	if note != "" {
		j.FailureNote = note
	}
	return true, nil
}

func (m *memRegistry) Touch(ctx context.Context, transcriptID string) error { return nil }

func (m *memRegistry) CompleteJob(ctx context.Context, transcriptID string, result *jobs.Result) (bool, error) {
	j, ok := m.jobs[transcriptID]
	if !ok {
		return false, fmt.Errorf("job %q: %w", transcriptID, jobs.ErrNotFound)
	}
	if _, exists := m.results[transcriptID]; !exists {
		m.results[transcriptID] = result
	}
	if !j.Status.CanTransitionTo(jobs.StatusCompleted) {
		return false, nil
	}
	j.Status = jobs.StatusCompleted
	return true, nil
}

func (m *memRegistry) GetResult(ctx context.Context, transcriptID string) (*jobs.Result, error) {
	if r, ok := m.results[transcriptID]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("result %q: %w", transcriptID, jobs.ErrNotFound)
}

// memObjectStore records Put calls for upload tests.
type memObjectStore struct {
	objects map[string]store.BlobProperties
	putErr  error
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{objects: make(map[string]store.BlobProperties)}
}

func (m *memObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[key] = store.BlobProperties{Size: int64(len(data)), ContentType: contentType}
	return nil
}

func (m *memObjectStore) Properties(ctx context.Context, key string) (store.BlobProperties, error) {
	props, ok := m.objects[key]
	if !ok {
		return store.BlobProperties{}, store.ErrObjectNotFound
	}
	return props, nil
}

func (m *memObjectStore) PresignRead(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://store.test/" + key, nil
}

// stubSubmitter is a scriptable Submitter.
type stubSubmitter struct {
	job        *jobs.Job
	err        error
	gotKey     string
	gotOwner   jobs.OwnerIdentity
	gotProfile jobs.Profile
	calls      int
}

func (s *stubSubmitter) Submit(ctx context.Context, objectKey string, owner jobs.OwnerIdentity, profile jobs.Profile) (*jobs.Job, error) {
	s.calls++
	s.gotKey = objectKey
	s.gotOwner = owner
	s.gotProfile = profile
	if s.err != nil {
		return nil, s.err
	}
	if s.job != nil {
		return s.job, nil
	}
	now := time.Now().UTC()
	return &jobs.Job{
		TranscriptID: "tr_new",
		ObjectKey:    objectKey,
		Status:       jobs.StatusQueued,
		Config:       profile,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// stubResolver is a scriptable Resolver.
type stubResolver struct {
	err   error
	calls []string
}

func (s *stubResolver) Resolve(ctx context.Context, transcriptID string) error {
	s.calls = append(s.calls, transcriptID)
	return s.err
}
