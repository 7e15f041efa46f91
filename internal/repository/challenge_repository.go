package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smk-lppmri/portal-api/internal/models"
)

// ErrChallengeNotFound is returned when a pending exchange is absent or expired.
var ErrChallengeNotFound = fmt.Errorf("pending challenge not found")

// PendingRegistration parks the registration exchange state between the begin
// and finish round trips.
type PendingRegistration struct {
	Challenge  []byte                  `json:"challenge"`
	UserHandle []byte                  `json:"user_handle"`
	Form       models.RegistrationForm `json:"form"`
}

// PendingLogin parks the assertion exchange state between round trips.
type PendingLogin struct {
	Challenge  []byte `json:"challenge"`
	IdentityID string `json:"identity_id"`
}

// ChallengeRepository stores pending authenticator exchanges in Redis with a
// TTL so abandoned prompts expire on their own.
type ChallengeRepository struct {
	client *redis.Client
}

// NewChallengeRepository constructs a challenge repository.
func NewChallengeRepository(client *redis.Client) *ChallengeRepository {
	return &ChallengeRepository{client: client}
}

func registrationKey(id string) string { return "webauthn:reg:" + id }
func loginKey(id string) string        { return "webauthn:login:" + id }

// PutRegistration stores a pending registration under the given exchange id.
func (r *ChallengeRepository) PutRegistration(ctx context.Context, id string, pending *PendingRegistration, ttl time.Duration) error {
	return r.put(ctx, registrationKey(id), pending, ttl)
}

// TakeRegistration atomically retrieves and removes a pending registration,
// so a challenge can be consumed at most once.
func (r *ChallengeRepository) TakeRegistration(ctx context.Context, id string) (*PendingRegistration, error) {
	var pending PendingRegistration
	if err := r.take(ctx, registrationKey(id), &pending); err != nil {
		return nil, err
	}
	return &pending, nil
}

// DropRegistration discards a pending registration (client-side cancellation).
func (r *ChallengeRepository) DropRegistration(ctx context.Context, id string) error {
	return r.client.Del(ctx, registrationKey(id)).Err()
}

// PutLogin stores a pending login under the given exchange id.
func (r *ChallengeRepository) PutLogin(ctx context.Context, id string, pending *PendingLogin, ttl time.Duration) error {
	return r.put(ctx, loginKey(id), pending, ttl)
}

// TakeLogin atomically retrieves and removes a pending login.
func (r *ChallengeRepository) TakeLogin(ctx context.Context, id string) (*PendingLogin, error) {
	var pending PendingLogin
	if err := r.take(ctx, loginKey(id), &pending); err != nil {
		return nil, err
	}
	return &pending, nil
}

// DropLogin discards a pending login.
func (r *ChallengeRepository) DropLogin(ctx context.Context, id string) error {
	return r.client.Del(ctx, loginKey(id)).Err()
}

func (r *ChallengeRepository) put(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal pending challenge: %w", err)
	}
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *ChallengeRepository) take(ctx context.Context, key string, dest interface{}) error {
	raw, err := r.client.GetDel(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrChallengeNotFound
		}
		return fmt.Errorf("redis getdel %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal pending challenge: %w", err)
	}
	return nil
}
