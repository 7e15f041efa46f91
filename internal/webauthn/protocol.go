// Package webauthn implements the server side of the platform-authenticator
// registration and assertion exchange used for biometric login.
//
// Only the subset of the protocol the portal needs is implemented: "none"
// attestation, ES256 and RS256 credentials, platform attachment with user
// verification required. The browser performs navigator.credentials.create /
// .get and posts the encoded responses back here for verification.
package webauthn

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

const (
	challengeLength  = 32
	userHandleLength = 16

	// COSE algorithm identifiers offered at registration.
	AlgES256 = -7
	AlgRS256 = -257
)

// URLEncodedBytes marshals to and from unpadded base64url, the encoding the
// WebAuthn JSON transport uses for all binary fields.
type URLEncodedBytes []byte

func (b URLEncodedBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.RawURLEncoding.EncodeToString(b))
}

func (b *URLEncodedBytes) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	// Tolerate padded and standard encodings from older clients.
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding, base64.StdEncoding} {
		decoded, err := enc.DecodeString(raw)
		if err == nil {
			*b = decoded
			return nil
		}
	}
	return fmt.Errorf("invalid base64url value")
}

// NewChallenge returns a fresh random challenge.
func NewChallenge() ([]byte, error) {
	return randomBytes(challengeLength)
}

// NewUserHandle returns a fresh random user handle.
func NewUserHandle() ([]byte, error) {
	return randomBytes(userHandleLength)
}

func randomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate random bytes: %w", err)
	}
	return buf, nil
}

// RelyingPartyEntity identifies the portal to the authenticator.
type RelyingPartyEntity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserEntity describes the account a credential is created for.
type UserEntity struct {
	ID          URLEncodedBytes `json:"id"`
	Name        string          `json:"name"`
	DisplayName string          `json:"displayName"`
}

// CredentialParameter names an acceptable signature algorithm.
type CredentialParameter struct {
	Type string `json:"type"`
	Alg  int64  `json:"alg"`
}

// AuthenticatorSelection constrains which authenticators may respond.
type AuthenticatorSelection struct {
	AuthenticatorAttachment string `json:"authenticatorAttachment"`
	UserVerification        string `json:"userVerification"`
	ResidentKey             string `json:"residentKey"`
}

// CredentialDescriptor references an existing credential in an allow-list.
type CredentialDescriptor struct {
	Type       string          `json:"type"`
	ID         URLEncodedBytes `json:"id"`
	Transports []string        `json:"transports,omitempty"`
}

// CredentialCreationOptions is the publicKey member passed to
// navigator.credentials.create.
type CredentialCreationOptions struct {
	Challenge              URLEncodedBytes        `json:"challenge"`
	RP                     RelyingPartyEntity     `json:"rp"`
	User                   UserEntity             `json:"user"`
	PubKeyCredParams       []CredentialParameter  `json:"pubKeyCredParams"`
	AuthenticatorSelection AuthenticatorSelection `json:"authenticatorSelection"`
	Timeout                int64                  `json:"timeout"`
	Attestation            string                 `json:"attestation"`
}

// CredentialRequestOptions is the publicKey member passed to
// navigator.credentials.get.
type CredentialRequestOptions struct {
	Challenge        URLEncodedBytes        `json:"challenge"`
	RPID             string                 `json:"rpId"`
	AllowCredentials []CredentialDescriptor `json:"allowCredentials"`
	UserVerification string                 `json:"userVerification"`
	Timeout          int64                  `json:"timeout"`
}

// AttestationResponse is the browser's encoding of a created credential.
type AttestationResponse struct {
	ID       string          `json:"id"`
	RawID    URLEncodedBytes `json:"rawId"`
	Type     string          `json:"type"`
	Response struct {
		ClientDataJSON    URLEncodedBytes `json:"clientDataJSON"`
		AttestationObject URLEncodedBytes `json:"attestationObject"`
	} `json:"response"`
}

// AssertionResponse is the browser's encoding of a signed assertion.
type AssertionResponse struct {
	ID       string          `json:"id"`
	RawID    URLEncodedBytes `json:"rawId"`
	Type     string          `json:"type"`
	Response struct {
		ClientDataJSON    URLEncodedBytes `json:"clientDataJSON"`
		AuthenticatorData URLEncodedBytes `json:"authenticatorData"`
		Signature         URLEncodedBytes `json:"signature"`
		UserHandle        URLEncodedBytes `json:"userHandle"`
	} `json:"response"`
}

// RelyingParty builds options and verifies authenticator responses for a
// single origin.
type RelyingParty struct {
	ID            string
	Name          string
	Origin        string
	PromptTimeout int64 // milliseconds surfaced to the browser
}

// CreationOptions assembles registration options for a new credential.
// User verification and a resident key are required so the credential is
// device-bound and unlocked biometrically.
func (rp *RelyingParty) CreationOptions(challenge, userHandle []byte, userName, displayName string) CredentialCreationOptions {
	return CredentialCreationOptions{
		Challenge: challenge,
		RP:        RelyingPartyEntity{ID: rp.ID, Name: rp.Name},
		User: UserEntity{
			ID:          userHandle,
			Name:        userName,
			DisplayName: displayName,
		},
		PubKeyCredParams: []CredentialParameter{
			{Type: "public-key", Alg: AlgES256},
			{Type: "public-key", Alg: AlgRS256},
		},
		AuthenticatorSelection: AuthenticatorSelection{
			AuthenticatorAttachment: "platform",
			UserVerification:        "required",
			ResidentKey:             "required",
		},
		Timeout:     rp.PromptTimeout,
		Attestation: "none",
	}
}

// RequestOptions assembles assertion options restricted to one credential.
func (rp *RelyingParty) RequestOptions(challenge, credentialID []byte) CredentialRequestOptions {
	return CredentialRequestOptions{
		Challenge: challenge,
		RPID:      rp.ID,
		AllowCredentials: []CredentialDescriptor{
			{Type: "public-key", ID: credentialID, Transports: []string{"internal"}},
		},
		UserVerification: "required",
		Timeout:          rp.PromptTimeout,
	}
}
