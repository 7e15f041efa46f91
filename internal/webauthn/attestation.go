package webauthn

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Verification failures callers may want to distinguish.
var (
	ErrChallengeMismatch  = errors.New("client data challenge does not match issued challenge")
	ErrOriginMismatch     = errors.New("client data origin does not match relying party origin")
	ErrRPIDHashMismatch   = errors.New("authenticator data rpIdHash does not match relying party id")
	ErrUserNotVerified    = errors.New("authenticator did not perform user verification")
	ErrCredentialMismatch = errors.New("asserted credential does not match allow-list")
	ErrSignCountRegressed = errors.New("authenticator sign count regressed")
)

// Authenticator data flag bits.
const (
	flagUserPresent      = 0x01
	flagUserVerified     = 0x04
	flagAttestedCredIncl = 0x40
)

const (
	clientDataTypeCreate = "webauthn.create"
	clientDataTypeGet    = "webauthn.get"
)

// RegisteredCredential is the durable outcome of a successful registration.
type RegisteredCredential struct {
	ID        []byte
	PublicKey []byte // raw COSE key, parsed again at assertion time
	SignCount uint32
	AAGUID    []byte
}

type clientData struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Origin    string `json:"origin"`
}

type attestationObject struct {
	Format   string          `cbor:"fmt"`
	AttStmt  cbor.RawMessage `cbor:"attStmt"`
	AuthData []byte          `cbor:"authData"`
}

type authenticatorData struct {
	rpIDHash  []byte
	flags     byte
	signCount uint32
	rest      []byte
}

// VerifyRegistration checks a credential creation response against the issued
// challenge and extracts the credential binding to store.
func (rp *RelyingParty) VerifyRegistration(resp *AttestationResponse, challenge []byte) (*RegisteredCredential, error) {
	if resp.Type != "public-key" {
		return nil, fmt.Errorf("unexpected credential type %q", resp.Type)
	}

	if err := rp.verifyClientData(resp.Response.ClientDataJSON, clientDataTypeCreate, challenge); err != nil {
		return nil, err
	}

	var att attestationObject
	if err := cbor.Unmarshal(resp.Response.AttestationObject, &att); err != nil {
		return nil, fmt.Errorf("decode attestation object: %w", err)
	}

	// Registration requests attestation "none". The credential binding is
	// taken from authData alone, so whatever format the authenticator
	// reports, its statement is not verified.

	auth, err := parseAuthenticatorData(att.AuthData)
	if err != nil {
		return nil, err
	}
	if err := rp.checkAuthFlags(auth); err != nil {
		return nil, err
	}
	if auth.flags&flagAttestedCredIncl == 0 {
		return nil, fmt.Errorf("attested credential data missing")
	}

	// Attested credential data: AAGUID (16) || credIdLen (2, BE) || credId || COSE key.
	rest := auth.rest
	if len(rest) < 18 {
		return nil, fmt.Errorf("attested credential data truncated")
	}
	aaguid := rest[:16]
	credLen := int(binary.BigEndian.Uint16(rest[16:18]))
	if len(rest) < 18+credLen {
		return nil, fmt.Errorf("credential id truncated")
	}
	credID := rest[18 : 18+credLen]
	coseKey := rest[18+credLen:]

	if _, err := ParsePublicKey(coseKey); err != nil {
		return nil, fmt.Errorf("credential public key: %w", err)
	}

	return &RegisteredCredential{
		ID:        append([]byte(nil), credID...),
		PublicKey: append([]byte(nil), coseKey...),
		SignCount: auth.signCount,
		AAGUID:    append([]byte(nil), aaguid...),
	}, nil
}

func (rp *RelyingParty) verifyClientData(raw []byte, wantType string, challenge []byte) error {
	var cd clientData
	if err := json.Unmarshal(raw, &cd); err != nil {
		return fmt.Errorf("decode client data: %w", err)
	}
	if cd.Type != wantType {
		return fmt.Errorf("unexpected client data type %q", cd.Type)
	}

	sent, err := base64.RawURLEncoding.DecodeString(cd.Challenge)
	if err != nil {
		return fmt.Errorf("decode client data challenge: %w", err)
	}
	if !bytes.Equal(sent, challenge) {
		return ErrChallengeMismatch
	}

	if cd.Origin != rp.Origin {
		return ErrOriginMismatch
	}
	return nil
}

func (rp *RelyingParty) checkAuthFlags(auth *authenticatorData) error {
	expected := sha256.Sum256([]byte(rp.ID))
	if !bytes.Equal(auth.rpIDHash, expected[:]) {
		return ErrRPIDHashMismatch
	}
	if auth.flags&flagUserPresent == 0 {
		return fmt.Errorf("user presence flag not set")
	}
	if auth.flags&flagUserVerified == 0 {
		return ErrUserNotVerified
	}
	return nil
}

func parseAuthenticatorData(raw []byte) (*authenticatorData, error) {
	if len(raw) < 37 {
		return nil, fmt.Errorf("authenticator data truncated: %d bytes", len(raw))
	}
	return &authenticatorData{
		rpIDHash:  raw[:32],
		flags:     raw[32],
		signCount: binary.BigEndian.Uint32(raw[33:37]),
		rest:      raw[37:],
	}, nil
}
