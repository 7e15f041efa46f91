package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/smk-lppmri/portal-api/internal/models"
	"github.com/smk-lppmri/portal-api/internal/repository"
	appErrors "github.com/smk-lppmri/portal-api/pkg/errors"
)

type mockRegistrationRepo struct {
	existing  *models.Identity
	findErr   error
	created   *models.Identity
	createErr error
}

func (m *mockRegistrationRepo) FindByIdentityNumber(ctx context.Context, number string) (*models.Identity, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if m.existing != nil {
		return m.existing, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (m *mockRegistrationRepo) Create(ctx context.Context, identity *models.Identity) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = identity
	return nil
}

type mockRegistrationChallenges struct {
	pendings map[string]*repository.PendingRegistration
	putErr   error
	dropped  []string
}

func (m *mockRegistrationChallenges) PutRegistration(ctx context.Context, id string, pending *repository.PendingRegistration, ttl time.Duration) error {
	if m.putErr != nil {
		return m.putErr
	}
	if m.pendings == nil {
		m.pendings = make(map[string]*repository.PendingRegistration)
	}
	m.pendings[id] = pending
	return nil
}

func (m *mockRegistrationChallenges) TakeRegistration(ctx context.Context, id string) (*repository.PendingRegistration, error) {
	pending, ok := m.pendings[id]
	if !ok {
		return nil, repository.ErrChallengeNotFound
	}
	delete(m.pendings, id)
	return pending, nil
}

func (m *mockRegistrationChallenges) DropRegistration(ctx context.Context, id string) error {
	m.dropped = append(m.dropped, id)
	delete(m.pendings, id)
	return nil
}

func validForm() models.RegistrationForm {
	return models.RegistrationForm{
		Name:      "Siti Rahma",
		Email:     "siti@example.sch.id",
		NISN:      "0051234567",
		Classroom: "X-TKJ-1",
		Gender:    models.GenderFemale,
	}
}

func newRegistrationService(repo *mockRegistrationRepo, challenges *mockRegistrationChallenges) *RegistrationService {
	return NewRegistrationService(repo, challenges, testRelyingParty(), validator.New(), zap.NewNop(), RegistrationConfig{
		ChallengeTTL: 2 * time.Minute,
	})
}

func TestRegistrationBeginIssuesOptions(t *testing.T) {
	repo := &mockRegistrationRepo{}
	challenges := &mockRegistrationChallenges{}
	svc := newRegistrationService(repo, challenges)

	res, err := svc.Begin(context.Background(), validForm())
	require.NoError(t, err)

	assert.NotEmpty(t, res.RegistrationID)
	assert.Len(t, []byte(res.PublicKey.Challenge), 32)
	assert.Equal(t, "localhost", res.PublicKey.RP.ID)
	assert.Equal(t, "platform", res.PublicKey.AuthenticatorSelection.AuthenticatorAttachment)
	assert.Equal(t, "required", res.PublicKey.AuthenticatorSelection.UserVerification)
	assert.Equal(t, "none", res.PublicKey.Attestation)

	pending := challenges.pendings[res.RegistrationID]
	require.NotNil(t, pending)
	assert.Equal(t, []byte(res.PublicKey.Challenge), pending.Challenge)
}

func TestRegistrationBeginRejectsDuplicateNISN(t *testing.T) {
	repo := &mockRegistrationRepo{existing: &models.Identity{ID: "u1", NISN: "0051234567"}}
	svc := newRegistrationService(repo, &mockRegistrationChallenges{})

	_, err := svc.Begin(context.Background(), validForm())
	assert.True(t, appErrors.Is(err, appErrors.ErrDuplicateIdentity))
}

func TestRegistrationBeginRejectsInvalidForm(t *testing.T) {
	svc := newRegistrationService(&mockRegistrationRepo{}, &mockRegistrationChallenges{})

	form := validForm()
	form.NISN = "abc"
	_, err := svc.Begin(context.Background(), form)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestRegistrationFinishCreatesUnapprovedStudent(t *testing.T) {
	repo := &mockRegistrationRepo{}
	challenges := &mockRegistrationChallenges{}
	svc := newRegistrationService(repo, challenges)

	res, err := svc.Begin(context.Background(), validForm())
	require.NoError(t, err)

	auth := newTestAuthenticator(t)
	info, err := svc.Finish(context.Background(), models.FinishRegistrationRequest{
		RegistrationID: res.RegistrationID,
		Credential:     auth.attestationResponse(testRelyingParty(), res.PublicKey.Challenge),
	})
	require.NoError(t, err)

	assert.Equal(t, models.RoleStudent, info.Role)
	assert.False(t, info.Approved)

	require.NotNil(t, repo.created)
	assert.False(t, repo.created.Approved)
	require.NotNil(t, repo.created.Credential)
	assert.Equal(t, auth.coseKey(), repo.created.Credential.PublicKey)
	assert.Equal(t, "0051234567", repo.created.NISN)
}

func TestRegistrationFinishSingleUseChallenge(t *testing.T) {
	repo := &mockRegistrationRepo{}
	challenges := &mockRegistrationChallenges{}
	svc := newRegistrationService(repo, challenges)

	res, err := svc.Begin(context.Background(), validForm())
	require.NoError(t, err)

	auth := newTestAuthenticator(t)
	req := models.FinishRegistrationRequest{
		RegistrationID: res.RegistrationID,
		Credential:     auth.attestationResponse(testRelyingParty(), res.PublicKey.Challenge),
	}

	_, err = svc.Finish(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Finish(context.Background(), req)
	assert.True(t, appErrors.Is(err, appErrors.ErrChallengeExpired))
}

func TestRegistrationFinishMapsAuthenticatorErrors(t *testing.T) {
	challenges := &mockRegistrationChallenges{
		pendings: map[string]*repository.PendingRegistration{"reg1": {Challenge: []byte("c")}},
	}
	svc := newRegistrationService(&mockRegistrationRepo{}, challenges)

	_, err := svc.Finish(context.Background(), models.FinishRegistrationRequest{
		RegistrationID: "reg1",
		ErrorName:      "NotAllowedError",
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrUserCancelled))
	assert.Equal(t, []string{"reg1"}, challenges.dropped)

	challenges.pendings["reg2"] = &repository.PendingRegistration{Challenge: []byte("c")}
	_, err = svc.Finish(context.Background(), models.FinishRegistrationRequest{
		RegistrationID: "reg2",
		ErrorName:      "NotSupportedError",
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrUnsupportedDevice))
}

func TestRegistrationFinishRejectsTamperedAttestation(t *testing.T) {
	repo := &mockRegistrationRepo{}
	challenges := &mockRegistrationChallenges{}
	svc := newRegistrationService(repo, challenges)

	res, err := svc.Begin(context.Background(), validForm())
	require.NoError(t, err)

	auth := newTestAuthenticator(t)
	// Attestation produced for a different challenge than the one parked.
	_, err = svc.Finish(context.Background(), models.FinishRegistrationRequest{
		RegistrationID: res.RegistrationID,
		Credential:     auth.attestationResponse(testRelyingParty(), []byte("wrong-challenge-value-32-bytes!!")),
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrVerificationFailed))
	assert.Nil(t, repo.created)
}

func TestRegistrationFinishDuplicateRace(t *testing.T) {
	repo := &mockRegistrationRepo{createErr: mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}}
	challenges := &mockRegistrationChallenges{}
	svc := newRegistrationService(repo, challenges)

	res, err := svc.Begin(context.Background(), validForm())
	require.NoError(t, err)

	auth := newTestAuthenticator(t)
	_, err = svc.Finish(context.Background(), models.FinishRegistrationRequest{
		RegistrationID: res.RegistrationID,
		Credential:     auth.attestationResponse(testRelyingParty(), res.PublicKey.Challenge),
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrDuplicateIdentity))
}
