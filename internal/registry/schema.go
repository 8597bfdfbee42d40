package registry

import (
	"context"

	_ "embed"
)

//go:embed schema.sql
var schemaSQL string

// InitSchema applies the schema on a fresh database. It checks whether the
// transcription_jobs table exists as a proxy for whether the schema has been
// loaded; every statement is IF NOT EXISTS so re-running is harmless.
func (r *Registry) InitSchema(ctx context.Context) error {
	var exists bool
	err := r.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT FROM pg_tables WHERE schemaname = 'public' AND tablename = 'transcription_jobs')`,
	).Scan(&exists)
	if err != nil {
		return err
	}

	if exists {
		r.log.Debug().Msg("schema already initialized, skipping")
		return nil
	}

	r.log.Info().Msg("fresh database detected — applying schema")
	if _, err := r.Pool.Exec(ctx, schemaSQL); err != nil {
		return err
	}
	r.log.Info().Msg("schema applied successfully")
	return nil
}
