package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingSessionStore struct {
	mu       sync.Mutex
	failures int
	deleted  []string
}

func (c *countingSessionStore) DeleteByIdentity(ctx context.Context, identityID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures > 0 {
		c.failures--
		return errors.New("redis down")
	}
	c.deleted = append(c.deleted, identityID)
	return nil
}

func (c *countingSessionStore) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.deleted...)
}

func TestRevocationQueueDeliversRevocation(t *testing.T) {
	store := &countingSessionStore{}
	queue := NewRevocationQueue(store, zap.NewNop())
	queue.Start(context.Background())
	defer queue.Stop()

	require.NoError(t, queue.DeleteByIdentity(context.Background(), "u1"))

	assert.Eventually(t, func() bool {
		return len(store.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"u1"}, store.snapshot())
}

func TestRevocationQueueRejectsWhenStopped(t *testing.T) {
	queue := NewRevocationQueue(&countingSessionStore{}, zap.NewNop())

	assert.Error(t, queue.DeleteByIdentity(context.Background(), "u1"))
}
