package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smk-lppmri/portal-api/internal/models"
)

// ErrSessionNotFound is returned for revoked, expired or unknown sessions.
var ErrSessionNotFound = fmt.Errorf("session not found")

// SessionRepository keeps the server-side session records in Redis. A session
// token is only honoured while its record is live, which lets the approval
// workflow and the identity watcher revoke sessions out-of-band.
type SessionRepository struct {
	client *redis.Client
}

// NewSessionRepository constructs a session repository.
func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{client: client}
}

func sessionKey(id string) string     { return "session:" + id }
func identitySetKey(id string) string { return "sessions:identity:" + id }

// Create stores a session record and indexes it by identity.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKey(session.ID), payload, ttl)
	pipe.SAdd(ctx, identitySetKey(session.IdentityID), session.ID)
	pipe.Expire(ctx, identitySetKey(session.IdentityID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Get returns a live session record.
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	raw, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

// Delete revokes a single session.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	session, err := r.Get(ctx, id)
	if err != nil {
		if err == ErrSessionNotFound {
			return nil
		}
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.SRem(ctx, identitySetKey(session.IdentityID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteByIdentity revokes every session bound to an identity. Used when the
// identity record disappears or approval is revoked.
func (r *SessionRepository) DeleteByIdentity(ctx context.Context, identityID string) error {
	ids, err := r.client.SMembers(ctx, identitySetKey(identityID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("list identity sessions: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, identitySetKey(identityID))

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete identity sessions: %w", err)
	}
	return nil
}
