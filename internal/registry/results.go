package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/smendozaCL/classroom-transcripts/internal/jobs"
)

// CompleteJob writes the transcript result and flips the job to completed in
// one transaction. Idempotent under duplicate delivery: the result insert is
// ON CONFLICT DO NOTHING and the status flip is guarded by the monotonic
// predicate, so a second call for the same transcript id changes nothing and
// returns false with no error. Whichever of the webhook and reconciler paths
// lands first wins; the loser's write is this no-op.
func (r *Registry) CompleteJob(ctx context.Context, transcriptID string, result *jobs.Result) (bool, error) {
	utterances, err := json.Marshal(result.Utterances)
	if err != nil {
		return false, fmt.Errorf("marshal utterances: %w", err)
	}

	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO transcript_results (
			transcript_id, full_text, utterances, audio_duration_sec, language, confidence
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (transcript_id) DO NOTHING
	`,
		transcriptID, result.Text, utterances,
		result.AudioDurationSec, result.Language, result.Confidence,
	)
	if err != nil {
		return false, fmt.Errorf("insert result %q: %w", transcriptID, err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE transcription_jobs SET status = $2, updated_at = now()
		WHERE transcript_id = $1 AND status = ANY($3)
	`, transcriptID, string(jobs.StatusCompleted),
		[]string{string(jobs.StatusQueued), string(jobs.StatusProcessing)})
	if err != nil {
		return false, fmt.Errorf("complete job %q: %w", transcriptID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetResult returns the materialized transcript for a completed job.
func (r *Registry) GetResult(ctx context.Context, transcriptID string) (*jobs.Result, error) {
	var res jobs.Result
	var utterances []byte
	err := r.Pool.QueryRow(ctx, `
		SELECT transcript_id, full_text, utterances, audio_duration_sec, language, confidence, created_at
		FROM transcript_results
		WHERE transcript_id = $1
	`, transcriptID).Scan(
		&res.TranscriptID, &res.Text, &utterances,
		&res.AudioDurationSec, &res.Language, &res.Confidence, &res.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("result %q: %w", transcriptID, jobs.ErrNotFound)
		}
		return nil, err
	}
	if err := json.Unmarshal(utterances, &res.Utterances); err != nil {
		return nil, fmt.Errorf("decode utterances: %w", err)
	}
	return &res, nil
}
