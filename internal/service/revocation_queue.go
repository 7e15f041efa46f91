package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/smk-lppmri/portal-api/pkg/jobs"
)

// RevocationQueue funnels session revocations for deleted identities through
// a retrying worker, so a transient session-store outage cannot leave a
// deleted identity signed in.
type RevocationQueue struct {
	queue *jobs.Queue
}

// NewRevocationQueue constructs the queue over the given session store.
func NewRevocationQueue(sessions watcherSessionStore, logger *zap.Logger) *RevocationQueue {
	handler := func(ctx context.Context, job jobs.Job) error {
		identityID, _ := job.Payload.(string)
		return sessions.DeleteByIdentity(ctx, identityID)
	}
	queue := jobs.NewQueue("session-revocation", handler, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 5,
		RetryDelay: 2 * time.Second,
		Logger:     logger,
	})
	return &RevocationQueue{queue: queue}
}

// Start launches the worker; Stop drains it.
func (q *RevocationQueue) Start(ctx context.Context) { q.queue.Start(ctx) }

// Stop cancels the worker and waits for it to exit.
func (q *RevocationQueue) Stop() { q.queue.Stop() }

// DeleteByIdentity enqueues the revocation; the worker retries failures.
func (q *RevocationQueue) DeleteByIdentity(ctx context.Context, identityID string) error {
	return q.queue.Enqueue(jobs.Job{ID: identityID, Payload: identityID})
}
