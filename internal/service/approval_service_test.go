package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/smk-lppmri/portal-api/internal/models"
)

type mockApprovalRepo struct {
	identities map[string]*models.Identity
}

func (m *mockApprovalRepo) FindByID(ctx context.Context, id string) (*models.Identity, error) {
	identity, ok := m.identities[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return identity, nil
}

func (m *mockApprovalRepo) List(ctx context.Context, filter models.IdentityFilter) ([]models.Identity, error) {
	var out []models.Identity
	for _, identity := range m.identities {
		if filter.Approved != nil && identity.Approved != *filter.Approved {
			continue
		}
		out = append(out, *identity)
	}
	return out, nil
}

func (m *mockApprovalRepo) SetApproved(ctx context.Context, id string, approved bool, ts time.Time) error {
	identity, ok := m.identities[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	identity.Approved = approved
	return nil
}

func (m *mockApprovalRepo) Delete(ctx context.Context, id string) error {
	delete(m.identities, id)
	return nil
}

func TestListPendingExcludesAdmins(t *testing.T) {
	repo := &mockApprovalRepo{identities: map[string]*models.Identity{
		"u1": {ID: "u1", Role: models.RoleStudent, Approved: false},
		"u2": {ID: "u2", Role: models.RoleAdmin, Approved: false},
		"u3": {ID: "u3", Role: models.RoleStudent, Approved: true},
	}}
	svc := NewApprovalService(repo, &mockSessions{}, zap.NewNop())

	pending, err := svc.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "u1", pending[0].ID)
}

func TestApproveIsIdempotent(t *testing.T) {
	repo := &mockApprovalRepo{identities: map[string]*models.Identity{
		"u1": {ID: "u1", Role: models.RoleStudent, Approved: false},
	}}
	svc := NewApprovalService(repo, &mockSessions{}, zap.NewNop())

	require.NoError(t, svc.Approve(context.Background(), "u1"))
	assert.True(t, repo.identities["u1"].Approved)

	require.NoError(t, svc.Approve(context.Background(), "u1"))
	assert.True(t, repo.identities["u1"].Approved)
}

func TestApproveUnknownIdentity(t *testing.T) {
	svc := NewApprovalService(&mockApprovalRepo{identities: map[string]*models.Identity{}}, &mockSessions{}, zap.NewNop())

	err := svc.Approve(context.Background(), "ghost")
	assert.Error(t, err)
}

func TestRejectDeletesIdentityAndSessions(t *testing.T) {
	repo := &mockApprovalRepo{identities: map[string]*models.Identity{
		"u1": {ID: "u1", Role: models.RoleStudent, Approved: true},
	}}
	sessions := &mockSessions{sessions: map[string]*models.Session{
		"s1": {ID: "s1", IdentityID: "u1"},
		"s2": {ID: "s2", IdentityID: "other"},
	}}
	svc := NewApprovalService(repo, sessions, zap.NewNop())

	require.NoError(t, svc.Reject(context.Background(), "u1"))
	assert.NotContains(t, repo.identities, "u1")
	assert.NotContains(t, sessions.sessions, "s1")
	assert.Contains(t, sessions.sessions, "s2")
}

func TestRejectAbsentIdentityIsNoOp(t *testing.T) {
	svc := NewApprovalService(&mockApprovalRepo{identities: map[string]*models.Identity{}}, &mockSessions{}, zap.NewNop())

	assert.NoError(t, svc.Reject(context.Background(), "already-gone"))
}
