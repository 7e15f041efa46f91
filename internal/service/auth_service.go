package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/smk-lppmri/portal-api/internal/models"
	"github.com/smk-lppmri/portal-api/internal/repository"
	"github.com/smk-lppmri/portal-api/internal/webauthn"
	appErrors "github.com/smk-lppmri/portal-api/pkg/errors"
)

type authIdentityRepo interface {
	FindByIdentityNumber(ctx context.Context, number string) (*models.Identity, error)
	FindByID(ctx context.Context, id string) (*models.Identity, error)
	FindByEmail(ctx context.Context, email string) (*models.Identity, error)
	UpdateSignCount(ctx context.Context, id string, count uint32, ts time.Time) error
}

type authChallengeStore interface {
	PutLogin(ctx context.Context, id string, pending *repository.PendingLogin, ttl time.Duration) error
	TakeLogin(ctx context.Context, id string) (*repository.PendingLogin, error)
	DropLogin(ctx context.Context, id string) error
}

type sessionStore interface {
	Create(ctx context.Context, session *models.Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

// AuthConfig defines configuration for the login flows.
type AuthConfig struct {
	TokenSecret  string
	TokenTTL     time.Duration
	Issuer       string
	ChallengeTTL time.Duration
}

// AuthService verifies authenticator assertions and owns session issuance.
type AuthService struct {
	identities authIdentityRepo
	challenges authChallengeStore
	sessions   sessionStore
	rp         *webauthn.RelyingParty
	validator  *validator.Validate
	logger     *zap.Logger
	config     AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(identities authIdentityRepo, challenges authChallengeStore, sessions sessionStore, rp *webauthn.RelyingParty, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{identities: identities, challenges: challenges, sessions: sessions, rp: rp, validator: validate, logger: logger, config: config}
}

// BeginLogin resolves the identity behind a NISN or NIP handle and issues
// assertion options restricted to its registered credential.
func (s *AuthService) BeginLogin(ctx context.Context, req models.BeginLoginRequest) (*models.BeginLoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	identity, err := s.identities.FindByIdentityNumber(ctx, req.IdentityNumber)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrIdentityNotFound, "identitas tidak ditemukan, pastikan Anda sudah terdaftar")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to look up identity")
	}

	if !identity.BiometricEnrolled() {
		return nil, appErrors.Clone(appErrors.ErrBiometricNotEnrolled, "akun ini belum mengaktifkan kunci biometrik")
	}

	credentialID, err := base64.RawURLEncoding.DecodeString(identity.Credential.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored credential id is corrupt")
	}

	challenge, err := webauthn.NewChallenge()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate challenge")
	}

	loginID := uuid.NewString()
	pending := &repository.PendingLogin{Challenge: challenge, IdentityID: identity.ID}
	if err := s.challenges.PutLogin(ctx, loginID, pending, s.config.ChallengeTTL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to store pending login")
	}

	return &models.BeginLoginResponse{
		LoginID:   loginID,
		PublicKey: s.rp.RequestOptions(challenge, credentialID),
	}, nil
}

// FinishLogin performs full assertion verification and establishes a session.
// A cancelled or failed prompt leaves any prior session untouched.
func (s *AuthService) FinishLogin(ctx context.Context, req models.FinishLoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	if req.ErrorName != "" {
		_ = s.challenges.DropLogin(ctx, req.LoginID)
		return nil, authenticatorError(req.ErrorName)
	}
	if req.Credential == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "credential payload required")
	}

	pending, err := s.challenges.TakeLogin(ctx, req.LoginID)
	if err != nil {
		if errors.Is(err, repository.ErrChallengeNotFound) {
			return nil, appErrors.Clone(appErrors.ErrChallengeExpired, "login expired, start again")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load pending login")
	}

	identity, err := s.identities.FindByID(ctx, pending.IdentityID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrIdentityNotFound, "identitas tidak ditemukan")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load identity")
	}
	if !identity.BiometricEnrolled() {
		return nil, appErrors.Clone(appErrors.ErrBiometricNotEnrolled, "akun ini belum mengaktifkan kunci biometrik")
	}

	credentialID, err := base64.RawURLEncoding.DecodeString(identity.Credential.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored credential id is corrupt")
	}

	stored := &webauthn.RegisteredCredential{
		ID:        credentialID,
		PublicKey: identity.Credential.PublicKey,
		SignCount: identity.Credential.SignCount,
	}

	newCount, err := s.rp.VerifyAssertion(req.Credential, pending.Challenge, stored)
	if err != nil {
		s.logger.Warn("assertion rejected",
			zap.String("identity_id", identity.ID),
			zap.Error(err),
		)
		return nil, appErrors.Wrap(err, appErrors.ErrVerificationFailed.Code, appErrors.ErrVerificationFailed.Status, "gagal memverifikasi biometrik")
	}

	if err := s.identities.UpdateSignCount(ctx, identity.ID, newCount, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to persist sign count", zap.Error(err))
	}

	return s.issueSession(ctx, identity)
}

// PasswordLogin authenticates accounts that cannot enrol biometrics because
// they have no school identity number (admin-created staff accounts).
func (s *AuthService) PasswordLogin(ctx context.Context, req models.PasswordLoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	identity, err := s.identities.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to look up identity")
	}

	if identity.PasswordHash == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	return s.issueSession(ctx, identity)
}

// Logout revokes the session behind the presented claims.
func (s *AuthService) Logout(ctx context.Context, claims *models.SessionClaims) error {
	if err := s.sessions.Delete(ctx, claims.SessionID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to revoke session")
	}
	return nil
}

// ParseToken validates a session token and returns its claims. The claims are
// only a marker: callers must resolve the live identity before trusting them.
func (s *AuthService) ParseToken(tokenString string) (*models.SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.TokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid session token")
	}

	claims, ok := token.Claims.(*models.SessionClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid session claims")
	}
	return claims, nil
}

func (s *AuthService) issueSession(ctx context.Context, identity *models.Identity) (*models.LoginResponse, error) {
	now := time.Now().UTC()
	session := &models.Session{
		ID:         uuid.NewString(),
		IdentityID: identity.ID,
		CreatedAt:  now,
	}
	if err := s.sessions.Create(ctx, session, s.config.TokenTTL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to store session")
	}

	expiresAt := now.Add(s.config.TokenTTL)
	claims := &models.SessionClaims{
		IdentityID: identity.ID,
		SessionID:  session.ID,
		Role:       identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   identity.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.TokenSecret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign session token")
	}

	s.logger.Info("session established",
		zap.String("identity_id", identity.ID),
		zap.String("session_id", session.ID),
		zap.String("role", string(identity.Role)),
	)

	return &models.LoginResponse{
		Token:     signed,
		ExpiresIn: int64(s.config.TokenTTL.Seconds()),
		IssuedAt:  now,
		User:      identity.Info(),
	}, nil
}
