package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smk-lppmri/portal-api/internal/models"
	"github.com/smk-lppmri/portal-api/internal/repository"
)

type stubWatchRepo struct {
	events   chan repository.IdentityEvent
	watchErr error
}

func (s *stubWatchRepo) Watch(ctx context.Context) (*repository.IdentityStream, error) {
	if s.watchErr != nil {
		return nil, s.watchErr
	}
	return &repository.IdentityStream{Events: s.events}, nil
}

func TestWatcherRevokesSessionsOnDelete(t *testing.T) {
	events := make(chan repository.IdentityEvent, 3)
	events <- repository.IdentityEvent{Type: "update", ID: "u1"}
	events <- repository.IdentityEvent{Type: "delete", ID: "u1"}
	events <- repository.IdentityEvent{Type: "insert", ID: "u2"}
	close(events)

	sessions := &mockSessions{sessions: map[string]*models.Session{
		"s1": {ID: "s1", IdentityID: "u1"},
		"s2": {ID: "s2", IdentityID: "u2"},
	}}
	watcher := NewSessionWatcher(&stubWatchRepo{events: events}, sessions, zap.NewNop())

	require.NoError(t, watcher.consume(context.Background()))
	assert.NotContains(t, sessions.sessions, "s1")
	assert.Contains(t, sessions.sessions, "s2", "non-delete events must not revoke")
}

func TestWatcherPropagatesSubscribeError(t *testing.T) {
	watcher := NewSessionWatcher(&stubWatchRepo{watchErr: errors.New("no replica set")}, &mockSessions{}, zap.NewNop())

	assert.Error(t, watcher.consume(context.Background()))
}

func TestWatcherStopsOnContextCancel(t *testing.T) {
	events := make(chan repository.IdentityEvent)
	watcher := NewSessionWatcher(&stubWatchRepo{events: events}, &mockSessions{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, watcher.consume(ctx))
}
