package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/smendozaCL/classroom-transcripts/internal/jobs"
)

// InsertUpload records a new uploaded object. Object keys are unique per
// upload, so a conflict means a key-generation bug and surfaces as an error.
func (r *Registry) InsertUpload(ctx context.Context, u *jobs.UploadRecord) error {
	_, err := r.Pool.Exec(ctx, `
		INSERT INTO uploads (
			object_key, original_filename, owner_email, owner_verified,
			content_size, content_type, uploaded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		u.ObjectKey, u.OriginalFilename, u.Owner.Email, u.Owner.Verified,
		u.ContentSize, u.ContentType, u.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("insert upload %q: %w", u.ObjectKey, err)
	}
	return nil
}

// GetUpload returns the upload record for an object key.
func (r *Registry) GetUpload(ctx context.Context, objectKey string) (*jobs.UploadRecord, error) {
	var u jobs.UploadRecord
	err := r.Pool.QueryRow(ctx, `
		SELECT object_key, original_filename, owner_email, owner_verified,
			content_size, content_type, uploaded_at
		FROM uploads
		WHERE object_key = $1
	`, objectKey).Scan(
		&u.ObjectKey, &u.OriginalFilename, &u.Owner.Email, &u.Owner.Verified,
		&u.ContentSize, &u.ContentType, &u.UploadedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("upload %q: %w", objectKey, jobs.ErrNotFound)
		}
		return nil, err
	}
	return &u, nil
}
