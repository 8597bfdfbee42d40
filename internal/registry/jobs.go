package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/smendozaCL/classroom-transcripts/internal/jobs"
)

// staleSweepLimit caps how many stale jobs one reconciler sweep picks up.
// Anything beyond it is caught by the next sweep.
const staleSweepLimit = 500

// InsertJob writes the initial queued row for a fresh submission.
func (r *Registry) InsertJob(ctx context.Context, j *jobs.Job) error {
	cfg, err := json.Marshal(j.Config)
	if err != nil {
		return fmt.Errorf("marshal job config: %w", err)
	}

	_, err = r.Pool.Exec(ctx, `
		INSERT INTO transcription_jobs (
			transcript_id, object_key, status, config, failure_note, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $6)
	`,
		j.TranscriptID, j.ObjectKey, string(j.Status), cfg, j.FailureNote, j.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job %q: %w", j.TranscriptID, err)
	}
	return nil
}

// GetJob returns the job row for a transcript id.
func (r *Registry) GetJob(ctx context.Context, transcriptID string) (*jobs.Job, error) {
	row := r.Pool.QueryRow(ctx, `
		SELECT transcript_id, object_key, status, config, failure_note, created_at, updated_at
		FROM transcription_jobs
		WHERE transcript_id = $1
	`, transcriptID)

	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("job %q: %w", transcriptID, jobs.ErrNotFound)
		}
		return nil, err
	}
	return j, nil
}

// ListJobs returns job summaries joined with their uploads, newest first.
func (r *Registry) ListJobs(ctx context.Context, filter jobs.ListFilter) ([]jobs.JobSummary, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT j.transcript_id, j.object_key, u.original_filename, u.owner_email,
			j.status, j.created_at, j.updated_at
		FROM transcription_jobs j
		JOIN uploads u ON u.object_key = j.object_key
	`
	args := []any{}
	if filter.OwnerEmail != "" {
		query += ` WHERE lower(u.owner_email) = lower($1)`
		args = append(args, filter.OwnerEmail)
	}
	query += fmt.Sprintf(` ORDER BY j.created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []jobs.JobSummary{}
	for rows.Next() {
		var s jobs.JobSummary
		var status string
		if err := rows.Scan(
			&s.TranscriptID, &s.ObjectKey, &s.OriginalFilename, &s.OwnerEmail,
			&status, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		s.Status = jobs.Status(status)
		result = append(result, s)
	}
	return result, rows.Err()
}

// ListStale returns non-terminal jobs whose last update predates the cutoff,
// oldest first. These are the candidates for webhook-miss reconciliation.
func (r *Registry) ListStale(ctx context.Context, cutoff time.Time) ([]jobs.Job, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT transcript_id, object_key, status, config, failure_note, created_at, updated_at
		FROM transcription_jobs
		WHERE status = ANY($1) AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3
	`, []string{string(jobs.StatusQueued), string(jobs.StatusProcessing)}, cutoff, staleSweepLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []jobs.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *j)
	}
	return result, rows.Err()
}

// TransitionJob applies a monotonic, non-completed status change. The guard
// lives in the WHERE clause: the row only moves if its current status is a
// valid predecessor, so duplicate or late writes fall through as no-ops.
// Completed is reached only via CompleteJob.
func (r *Registry) TransitionJob(ctx context.Context, transcriptID string, to jobs.Status, note string) (bool, error) {
	if to == jobs.StatusCompleted {
		return false, fmt.Errorf("transition to completed must go through CompleteJob")
	}
	preds := jobs.Predecessors(to)
	if len(preds) == 0 {
		return false, fmt.Errorf("no valid transition to status %q", to)
	}
	from := make([]string, len(preds))
	for i, p := range preds {
		from[i] = string(p)
	}

	tag, err := r.Pool.Exec(ctx, `
		UPDATE transcription_jobs
		SET status = $2,
			failure_note = CASE WHEN $3 <> '' THEN $3 ELSE failure_note END,
			updated_at = now()
		WHERE transcript_id = $1 AND status = ANY($4)
	`, transcriptID, string(to), note, from)
	if err != nil {
		return false, fmt.Errorf("transition job %q to %s: %w", transcriptID, to, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Touch bumps updated_at on a non-terminal job without changing its status.
// The reconciler uses it to push a still-processing job past the grace window.
func (r *Registry) Touch(ctx context.Context, transcriptID string) error {
	_, err := r.Pool.Exec(ctx, `
		UPDATE transcription_jobs SET updated_at = now()
		WHERE transcript_id = $1 AND status = ANY($2)
	`, transcriptID, []string{string(jobs.StatusQueued), string(jobs.StatusProcessing)})
	return err
}

func scanJob(row pgx.Row) (*jobs.Job, error) {
	var j jobs.Job
	var status string
	var cfg []byte
	if err := row.Scan(
		&j.TranscriptID, &j.ObjectKey, &status, &cfg, &j.FailureNote, &j.CreatedAt, &j.UpdatedAt,
	); err != nil {
		return nil, err
	}
	j.Status = jobs.Status(status)
	if err := json.Unmarshal(cfg, &j.Config); err != nil {
		return nil, fmt.Errorf("decode job config: %w", err)
	}
	return &j, nil
}
