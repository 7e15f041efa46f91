package service

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/smk-lppmri/portal-api/internal/models"
	"github.com/smk-lppmri/portal-api/internal/repository"
	"github.com/smk-lppmri/portal-api/internal/webauthn"
	appErrors "github.com/smk-lppmri/portal-api/pkg/errors"
)

type registrationIdentityRepo interface {
	FindByIdentityNumber(ctx context.Context, number string) (*models.Identity, error)
	Create(ctx context.Context, identity *models.Identity) error
}

type registrationChallengeStore interface {
	PutRegistration(ctx context.Context, id string, pending *repository.PendingRegistration, ttl time.Duration) error
	TakeRegistration(ctx context.Context, id string) (*repository.PendingRegistration, error)
	DropRegistration(ctx context.Context, id string) error
}

// RegistrationConfig tunes the registration exchange.
type RegistrationConfig struct {
	ChallengeTTL time.Duration
}

// RegistrationService orchestrates platform-authenticator credential creation
// and binds the resulting credential to a new identity record.
type RegistrationService struct {
	identities registrationIdentityRepo
	challenges registrationChallengeStore
	rp         *webauthn.RelyingParty
	validator  *validator.Validate
	logger     *zap.Logger
	config     RegistrationConfig
}

// NewRegistrationService constructs a RegistrationService instance.
func NewRegistrationService(identities registrationIdentityRepo, challenges registrationChallengeStore, rp *webauthn.RelyingParty, validate *validator.Validate, logger *zap.Logger, config RegistrationConfig) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RegistrationService{identities: identities, challenges: challenges, rp: rp, validator: validate, logger: logger, config: config}
}

// Begin checks NISN uniqueness and issues credential creation options for the
// browser's authenticator prompt.
func (s *RegistrationService) Begin(ctx context.Context, form models.RegistrationForm) (*models.BeginRegistrationResponse, error) {
	if err := s.validator.Struct(form); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	if _, err := s.identities.FindByIdentityNumber(ctx, form.NISN); err == nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateIdentity, "NISN sudah terdaftar")
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to check existing identity")
	}

	challenge, err := webauthn.NewChallenge()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate challenge")
	}
	userHandle, err := webauthn.NewUserHandle()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate user handle")
	}

	registrationID := uuid.NewString()
	pending := &repository.PendingRegistration{
		Challenge:  challenge,
		UserHandle: userHandle,
		Form:       form,
	}
	if err := s.challenges.PutRegistration(ctx, registrationID, pending, s.config.ChallengeTTL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to store pending registration")
	}

	return &models.BeginRegistrationResponse{
		RegistrationID: registrationID,
		PublicKey:      s.rp.CreationOptions(challenge, userHandle, form.Email, form.Name),
	}, nil
}

// Finish verifies the attestation response and writes the identity record in
// a single document insert. The record starts unapproved; no session is
// created as a side effect of registration.
func (s *RegistrationService) Finish(ctx context.Context, req models.FinishRegistrationRequest) (*models.IdentityInfo, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	if req.ErrorName != "" {
		_ = s.challenges.DropRegistration(ctx, req.RegistrationID)
		return nil, authenticatorError(req.ErrorName)
	}
	if req.Credential == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "credential payload required")
	}

	pending, err := s.challenges.TakeRegistration(ctx, req.RegistrationID)
	if err != nil {
		if errors.Is(err, repository.ErrChallengeNotFound) {
			return nil, appErrors.Clone(appErrors.ErrChallengeExpired, "registration expired, start again")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load pending registration")
	}

	cred, err := s.rp.VerifyRegistration(req.Credential, pending.Challenge)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrVerificationFailed.Code, appErrors.ErrVerificationFailed.Status, "attestation verification failed")
	}

	now := time.Now().UTC()
	identity := &models.Identity{
		ID:        uuid.NewString(),
		Name:      pending.Form.Name,
		Email:     pending.Form.Email,
		Role:      models.RoleStudent,
		Classroom: pending.Form.Classroom,
		NISN:      pending.Form.NISN,
		NIS:       pending.Form.NIS,
		BirthDate: pending.Form.BirthDate,
		Gender:    pending.Form.Gender,
		Phone:     pending.Form.Phone,
		Credential: &models.Credential{
			ID:        base64.RawURLEncoding.EncodeToString(cred.ID),
			PublicKey: cred.PublicKey,
			SignCount: cred.SignCount,
			AAGUID:    cred.AAGUID,
			CreatedAt: now,
		},
		Approved:  false,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.identities.Create(ctx, identity); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateIdentity, "NISN sudah terdaftar")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to persist identity")
	}

	s.logger.Info("biometric identity registered",
		zap.String("identity_id", identity.ID),
		zap.String("nisn", identity.NISN),
	)

	info := identity.Info()
	return &info, nil
}

// authenticatorError maps a browser-reported DOMException name onto the error
// taxonomy, mirroring how the web client distinguishes prompt outcomes.
func authenticatorError(name string) error {
	switch name {
	case "NotAllowedError", "AbortError":
		return appErrors.Clone(appErrors.ErrUserCancelled, "proses biometrik dibatalkan atau ditolak oleh pengguna")
	case "NotSupportedError", "SecurityError":
		return appErrors.Clone(appErrors.ErrUnsupportedDevice, "perangkat tidak mendukung autentikasi biometrik")
	default:
		return appErrors.Clone(appErrors.ErrVerificationFailed, "gagal memverifikasi biometrik")
	}
}
