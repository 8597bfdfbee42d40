package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/smendozaCL/classroom-transcripts/internal/assemblyai"
	"github.com/smendozaCL/classroom-transcripts/internal/store"
)

// fakeRegistry is an in-memory Registry mirroring the SQL guard semantics:
// monotonic transitions and an idempotent complete-job write.
type fakeRegistry struct {
	mu      sync.Mutex
	uploads map[string]*UploadRecord
	jobs    map[string]*Job
	results map[string]*Result

	insertJobErr error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		uploads: make(map[string]*UploadRecord),
		jobs:    make(map[string]*Job),
		results: make(map[string]*Result),
	}
}

func (f *fakeRegistry) InsertUpload(ctx context.Context, u *UploadRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.uploads[u.ObjectKey]; ok {
		return fmt.Errorf("duplicate upload key %q", u.ObjectKey)
	}
	cp := *u
	f.uploads[u.ObjectKey] = &cp
	return nil
}

func (f *fakeRegistry) GetUpload(ctx context.Context, objectKey string) (*UploadRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.uploads[objectKey]
	if !ok {
		return nil, fmt.Errorf("upload %q: %w", objectKey, ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRegistry) InsertJob(ctx context.Context, j *Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertJobErr != nil {
		return f.insertJobErr
	}
	cp := *j
	f.jobs[j.TranscriptID] = &cp
	return nil
}

func (f *fakeRegistry) GetJob(ctx context.Context, transcriptID string) (*Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[transcriptID]
	if !ok {
		return nil, fmt.Errorf("job %q: %w", transcriptID, ErrNotFound)
	}
	cp := *j
	return &cp, nil
}

func (f *fakeRegistry) ListJobs(ctx context.Context, filter ListFilter) ([]JobSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []JobSummary
	for _, j := range f.jobs {
		u := f.uploads[j.ObjectKey]
		if u == nil {
			continue
		}
		if filter.OwnerEmail != "" && !strings.EqualFold(u.Owner.Email, filter.OwnerEmail) {
			continue
		}
		out = append(out, JobSummary{
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

func (f *fakeRegistry) ListStale(ctx context.Context, cutoff time.Time) ([]Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Job
	for _, j := range f.jobs {
		if !j.Status.Terminal() && j.UpdatedAt.Before(cutoff) {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (f *fakeRegistry) TransitionJob(ctx context.Context, transcriptID string, to Status, note string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[transcriptID]
	if !ok || !j.Status.CanTransitionTo(to) {
		return false, nil
	}
	j.Status = to
	if note != "" {
		j.FailureNote = note
	}
	j.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakeRegistry) Touch(ctx context.Context, transcriptID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j, ok := f.jobs[transcriptID]; ok && !j.Status.Terminal() {
		j.UpdatedAt = time.Now()
	}
	return nil
}

func (f *fakeRegistry) CompleteJob(ctx context.Context, transcriptID string, result *Result) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[transcriptID]
	if !ok {
		return false, fmt.Errorf("job %q: %w", transcriptID, ErrNotFound)
	}
	if _, exists := f.results[transcriptID]; !exists {
		cp := *result
		cp.CreatedAt = time.Now()
		f.results[transcriptID] = &cp
	}
	if !j.Status.CanTransitionTo(StatusCompleted) {
		return false, nil
	}
	j.Status = StatusCompleted
	j.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakeRegistry) GetResult(ctx context.Context, transcriptID string) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.results[transcriptID]
	if !ok {
		return nil, fmt.Errorf("result %q: %w", transcriptID, ErrNotFound)
	}
	cp := *res
	return &cp, nil
}

// fakeProvider is a scriptable Provider.
type fakeProvider struct {
	mu          sync.Mutex
	transcripts map[string]*assemblyai.Transcript
	submitErr   error
	getErr      error
	listErr     error
	nextID      int
	submitted   []assemblyai.SubmitRequest
	getCalls    int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{transcripts: make(map[string]*assemblyai.Transcript)}
}

func (f *fakeProvider) Submit(ctx context.Context, req assemblyai.SubmitRequest) (*assemblyai.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.nextID++
	id := fmt.Sprintf("tr_%d", f.nextID)
	f.submitted = append(f.submitted, req)
	tr := &assemblyai.Transcript{ID: id, Status: "queued"}
	f.transcripts[id] = tr
	return tr, nil
}

func (f *fakeProvider) Get(ctx context.Context, id string) (*assemblyai.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	tr, ok := f.transcripts[id]
	if !ok {
		return nil, assemblyai.ErrTranscriptNotFound
	}
	cp := *tr
	return &cp, nil
}

func (f *fakeProvider) List(ctx context.Context, beforeID string, limit int) (*assemblyai.TranscriptPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	page := &assemblyai.TranscriptPage{}
	for id, tr := range f.transcripts {
		page.Transcripts = append(page.Transcripts, assemblyai.TranscriptListItem{ID: id, Status: tr.Status})
	}
	page.PageDetails.ResultCount = len(page.Transcripts)
	return page, nil
}

// setTranscript scripts the provider-side state for an id.
func (f *fakeProvider) setTranscript(tr *assemblyai.Transcript) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts[tr.ID] = tr
}

// fakeObjectStore backs submitter validation and grant issuance.
type fakeObjectStore struct {
	objects map[string]store.BlobProperties
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string]store.BlobProperties)}
}

func (f *fakeObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	f.objects[key] = store.BlobProperties{Size: int64(len(data)), ContentType: contentType}
	return nil
}

func (f *fakeObjectStore) Properties(ctx context.Context, key string) (store.BlobProperties, error) {
	props, ok := f.objects[key]
	if !ok {
		return store.BlobProperties{}, store.ErrObjectNotFound
	}
	return props, nil
}

func (f *fakeObjectStore) PresignRead(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if _, ok := f.objects[key]; !ok {
		return "", store.ErrObjectNotFound
	}
	return "https://store.test/uploads/" + key + "?sig=ok", nil
}

var errTransient = errors.New("upstream timeout")
