package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ReadGrant is a short-lived, read-only fetch capability for one object.
// It is never persisted; it expires on its own and is consumed once by the
// transcription provider.
type ReadGrant struct {
	ObjectKey string
	URL       string
	ExpiresAt time.Time
}

// GrantIssuer mints read grants against an object store.
type GrantIssuer struct {
	store  ObjectStore
	maxTTL time.Duration
	log    zerolog.Logger
}

// NewGrantIssuer creates a grant issuer. maxTTL bounds the lifetime of any
// issued grant.
func NewGrantIssuer(store ObjectStore, maxTTL time.Duration, log zerolog.Logger) *GrantIssuer {
	return &GrantIssuer{
		store:  store,
		maxTTL: maxTTL,
		log:    log.With().Str("component", "grant-issuer").Logger(),
	}
}

// IssueReadGrant returns a signed read-only URL for objectKey valid for ttl.
// The object must exist; ttl must be positive and within the configured bound.
// No side effects beyond URL construction.
func (g *GrantIssuer) IssueReadGrant(ctx context.Context, objectKey string, ttl time.Duration) (ReadGrant, error) {
	if ttl <= 0 {
		return ReadGrant{}, fmt.Errorf("grant ttl must be positive, got %s", ttl)
	}
	if ttl > g.maxTTL {
		return ReadGrant{}, fmt.Errorf("grant ttl %s exceeds maximum %s", ttl, g.maxTTL)
	}

	if _, err := g.store.Properties(ctx, objectKey); err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return ReadGrant{}, fmt.Errorf("issue grant for %q: %w", objectKey, ErrObjectNotFound)
		}
		return ReadGrant{}, fmt.Errorf("check object %q: %w", objectKey, err)
	}

	url, err := g.store.PresignRead(ctx, objectKey, ttl)
	if err != nil {
		return ReadGrant{}, fmt.Errorf("presign %q: %w", objectKey, err)
	}

	g.log.Debug().Str("object_key", objectKey).Dur("ttl", ttl).Msg("read grant issued")

	return ReadGrant{
		ObjectKey: objectKey,
		URL:       url,
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}
