package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/smk-lppmri/portal-api/internal/repository"
)

type identityWatchRepo interface {
	Watch(ctx context.Context) (*repository.IdentityStream, error)
}

type watcherSessionStore interface {
	DeleteByIdentity(ctx context.Context, identityID string) error
}

// SessionWatcher subscribes to identity change events and proactively revokes
// the sessions of deleted identities, so a rejected account is signed out
// everywhere without waiting for its next request.
//
// Approval revocation deliberately does NOT revoke sessions: the gate demotes
// those identities to PendingApproval on their next tick, matching the
// demote-without-relogin requirement.
type SessionWatcher struct {
	identities identityWatchRepo
	sessions   watcherSessionStore
	logger     *zap.Logger
	metrics    *MetricsService
	retryDelay time.Duration
}

// NewSessionWatcher constructs a SessionWatcher instance.
func NewSessionWatcher(identities identityWatchRepo, sessions watcherSessionStore, logger *zap.Logger) *SessionWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionWatcher{identities: identities, sessions: sessions, logger: logger, retryDelay: 5 * time.Second}
}

// WithMetrics attaches the watcher gauge. Accepts nil.
func (w *SessionWatcher) WithMetrics(metrics *MetricsService) *SessionWatcher {
	w.metrics = metrics
	return w
}

// Run consumes the change stream until the context is cancelled, reconnecting
// with a fixed delay when the stream ends.
func (w *SessionWatcher) Run(ctx context.Context) {
	for {
		if err := w.consume(ctx); err != nil {
			w.logger.Warn("identity stream interrupted", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.retryDelay):
		}
	}
}

func (w *SessionWatcher) consume(ctx context.Context) error {
	stream, err := w.identities.Watch(ctx)
	if err != nil {
		return err
	}
	defer stream.Cancel()

	w.metrics.WatcherStarted()
	defer w.metrics.WatcherStopped()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-stream.Events:
			if !ok {
				return nil
			}
			if event.Type != "delete" {
				continue
			}
			if err := w.sessions.DeleteByIdentity(ctx, event.ID); err != nil {
				w.logger.Warn("failed to revoke sessions for deleted identity",
					zap.String("identity_id", event.ID),
					zap.Error(err),
				)
				continue
			}
			w.logger.Info("sessions revoked for deleted identity",
				zap.String("identity_id", event.ID),
			)
		}
	}
}
