package service

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/smk-lppmri/portal-api/internal/models"
	"github.com/smk-lppmri/portal-api/internal/repository"
)

type gateIdentityRepo interface {
	FindByID(ctx context.Context, id string) (*models.Identity, error)
}

type gateSessionStore interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

type tokenParser interface {
	ParseToken(token string) (*models.SessionClaims, error)
}

// Gate owns the session and authorization state machine. Every request (the
// server-side session tick) re-resolves the LIVE identity record, so an admin
// revoking approval or deleting the record takes effect without re-login.
type Gate struct {
	identities gateIdentityRepo
	sessions   gateSessionStore
	tokens     tokenParser
	logger     *zap.Logger
}

// NewGate constructs a Gate instance.
func NewGate(identities gateIdentityRepo, sessions gateSessionStore, tokens tokenParser, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{identities: identities, sessions: sessions, tokens: tokens, logger: logger}
}

// Resolve maps a presented session token onto the gate state machine.
func (g *Gate) Resolve(ctx context.Context, token string) models.GateDecision {
	if token == "" {
		return models.GateDecision{State: models.StateUnauthenticated, RedirectTo: "/login"}
	}

	claims, err := g.tokens.ParseToken(token)
	if err != nil {
		return models.GateDecision{State: models.StateUnauthenticated, RedirectTo: "/login"}
	}

	if _, err := g.sessions.Get(ctx, claims.SessionID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return models.GateDecision{State: models.StateUnauthenticated, RedirectTo: "/login"}
		}
		// Transient session-store failure: the marker exists but cannot be
		// confirmed yet. Callers treat Loading as retryable.
		return models.GateDecision{State: models.StateLoading}
	}

	identity, err := g.identities.FindByID(ctx, claims.IdentityID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// The record disappeared: tear the session down on this
			// observation and fall back to the login view.
			if derr := g.sessions.Delete(ctx, claims.SessionID); derr != nil {
				g.logger.Warn("failed to tear down orphaned session", zap.Error(derr))
			}
			g.logger.Info("session torn down, identity deleted",
				zap.String("identity_id", claims.IdentityID),
			)
			return models.GateDecision{State: models.StateProfileMissing, RedirectTo: "/login"}
		}
		return models.GateDecision{State: models.StateLoading}
	}

	if !identity.Approved && identity.Role != models.RoleAdmin {
		return models.GateDecision{
			State:      models.StatePendingApproval,
			Identity:   identity,
			Claims:     claims,
			RedirectTo: "/pending",
		}
	}

	return models.GateDecision{
		State:    models.StateAuthorized,
		Role:     identity.Role,
		Identity: identity,
		Claims:   claims,
	}
}

// Authorize applies a role requirement to a resolved decision. The zero Role
// means any authorized identity is acceptable.
func (g *Gate) Authorize(decision models.GateDecision, required models.Role) (bool, string) {
	switch decision.State {
	case models.StateAuthorized:
		if required == "" || decision.Role == required {
			return true, ""
		}
		return false, RoleHome(decision.Role)
	case models.StatePendingApproval:
		return false, "/pending"
	case models.StateUnauthenticated, models.StateProfileMissing:
		return false, "/login"
	case models.StateLoading:
		return false, ""
	}
	return false, "/login"
}

// RoleHome returns the default client area for a role.
func RoleHome(role models.Role) string {
	switch role {
	case models.RoleAdmin:
		return "/admin"
	case models.RoleTeacher:
		return "/teacher"
	case models.RoleStudent:
		return "/student"
	}
	return "/login"
}
