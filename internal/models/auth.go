package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/smk-lppmri/portal-api/internal/webauthn"
)

// RegistrationForm is the self-registration profile submitted before the
// authenticator prompt. Self-registration is always a student account.
type RegistrationForm struct {
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	NISN      string `json:"nisn" validate:"required,min=8,max=12,numeric"`
	NIS       string `json:"nis" validate:"omitempty,numeric"`
	Classroom string `json:"classroom"`
	BirthDate string `json:"birthDate"`
	Phone     string `json:"phone"`
	Gender    Gender `json:"gender" validate:"omitempty,oneof=L P"`
}

// BeginRegistrationResponse carries the creation options to the browser.
type BeginRegistrationResponse struct {
	RegistrationID string                             `json:"registration_id"`
	PublicKey      webauthn.CredentialCreationOptions `json:"publicKey"`
}

// FinishRegistrationRequest completes the registration exchange. ErrorName is
// set instead of Credential when the authenticator prompt failed client-side
// (e.g. NotAllowedError on cancellation).
type FinishRegistrationRequest struct {
	RegistrationID string                        `json:"registration_id" validate:"required"`
	ErrorName      string                        `json:"error,omitempty"`
	Credential     *webauthn.AttestationResponse `json:"credential,omitempty"`
}

// BeginLoginRequest starts a biometric login by NISN or NIP.
type BeginLoginRequest struct {
	IdentityNumber string `json:"identity" validate:"required"`
}

// BeginLoginResponse carries the assertion options to the browser.
type BeginLoginResponse struct {
	LoginID   string                            `json:"login_id"`
	PublicKey webauthn.CredentialRequestOptions `json:"publicKey"`
}

// FinishLoginRequest completes the assertion exchange.
type FinishLoginRequest struct {
	LoginID    string                      `json:"login_id" validate:"required"`
	ErrorName  string                      `json:"error,omitempty"`
	Credential *webauthn.AssertionResponse `json:"credential,omitempty"`
}

// PasswordLoginRequest is the fallback for accounts without a school identity
// number (admin-created staff accounts cannot enrol biometrics).
type PasswordLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued session token and profile info.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresIn int64        `json:"expires_in"`
	IssuedAt  time.Time    `json:"issued_at"`
	User      IdentityInfo `json:"user"`
}

// IdentityInfo describes the signed-in identity in responses.
type IdentityInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       Role   `json:"role"`
	Approved   bool   `json:"approved"`
	Classroom  string `json:"classroom,omitempty"`
	Department string `json:"department,omitempty"`
}

// Info projects an Identity into its response form.
func (i *Identity) Info() IdentityInfo {
	return IdentityInfo{
		ID:         i.ID,
		Name:       i.Name,
		Email:      i.Email,
		Role:       i.Role,
		Approved:   i.Approved,
		Classroom:  i.Classroom,
		Department: i.Department,
	}
}

// SessionClaims is the JWT payload for session tokens. The token is only the
// durable marker: the gate re-reads the live identity record on every request
// and the live record always wins over the claims.
type SessionClaims struct {
	IdentityID string `json:"identity_id"`
	SessionID  string `json:"session_id"`
	Role       Role   `json:"role"`
	jwt.RegisteredClaims
}

// CreateIdentityRequest is the admin-side account creation payload. Accounts
// created this way start approved.
type CreateIdentityRequest struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Role       Role   `json:"role" validate:"required,oneof=admin teacher student"`
	NISN       string `json:"nisn" validate:"omitempty,numeric"`
	NIP        string `json:"nip" validate:"omitempty,numeric"`
	Password   string `json:"password" validate:"omitempty,min=8"`
	Classroom  string `json:"classroom"`
	Department string `json:"department"`
}
