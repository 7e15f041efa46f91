package service

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/smk-lppmri/portal-api/internal/models"
	appErrors "github.com/smk-lppmri/portal-api/pkg/errors"
)

type approvalIdentityRepo interface {
	FindByID(ctx context.Context, id string) (*models.Identity, error)
	List(ctx context.Context, filter models.IdentityFilter) ([]models.Identity, error)
	SetApproved(ctx context.Context, id string, approved bool, ts time.Time) error
	Delete(ctx context.Context, id string) error
}

type approvalSessionStore interface {
	DeleteByIdentity(ctx context.Context, identityID string) error
}

// ApprovalService transitions pending identities to approved or rejected.
type ApprovalService struct {
	identities approvalIdentityRepo
	sessions   approvalSessionStore
	logger     *zap.Logger
}

// NewApprovalService constructs an ApprovalService instance.
func NewApprovalService(identities approvalIdentityRepo, sessions approvalSessionStore, logger *zap.Logger) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{identities: identities, sessions: sessions, logger: logger}
}

// ListPending returns identities awaiting verification.
func (s *ApprovalService) ListPending(ctx context.Context) ([]models.Identity, error) {
	approved := false
	identities, err := s.identities.List(ctx, models.IdentityFilter{Approved: &approved})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list pending identities")
	}

	pending := identities[:0]
	for _, identity := range identities {
		if identity.Role != models.RoleAdmin {
			pending = append(pending, identity)
		}
	}
	return pending, nil
}

// Approve marks an identity approved. Approving an already-approved identity
// is an observable no-op.
func (s *ApprovalService) Approve(ctx context.Context, id string) error {
	if err := s.identities.SetApproved(ctx, id, true, time.Now().UTC()); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return appErrors.Clone(appErrors.ErrIdentityNotFound, "")
		}
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to approve identity")
	}

	s.logger.Info("identity approved", zap.String("identity_id", id))
	return nil
}

// Reject deletes the identity record outright, regardless of prior approval
// state, and revokes any live sessions so the deletion is observed promptly.
// Rejecting an already-deleted identity is a no-op.
func (s *ApprovalService) Reject(ctx context.Context, id string) error {
	if err := s.identities.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to delete identity")
	}

	if err := s.sessions.DeleteByIdentity(ctx, id); err != nil {
		s.logger.Warn("failed to revoke sessions for rejected identity",
			zap.String("identity_id", id),
			zap.Error(err),
		)
	}

	s.logger.Info("identity rejected and removed", zap.String("identity_id", id))
	return nil
}
