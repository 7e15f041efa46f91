package webauthn

import (
	"bytes"
	"crypto/sha256"
	"fmt"
)

// VerifyAssertion checks a signed assertion against the issued challenge and
// the credential captured at registration. On success it returns the new sign
// count to persist.
//
// All four server-side checks are performed: challenge match, origin match,
// signature over authenticatorData || SHA-256(clientDataJSON) against the
// stored public key, and sign-count monotonicity.
func (rp *RelyingParty) VerifyAssertion(resp *AssertionResponse, challenge []byte, cred *RegisteredCredential) (uint32, error) {
	if resp.Type != "public-key" {
		return 0, fmt.Errorf("unexpected credential type %q", resp.Type)
	}

	if !bytes.Equal(resp.RawID, cred.ID) {
		return 0, ErrCredentialMismatch
	}

	if err := rp.verifyClientData(resp.Response.ClientDataJSON, clientDataTypeGet, challenge); err != nil {
		return 0, err
	}

	auth, err := parseAuthenticatorData(resp.Response.AuthenticatorData)
	if err != nil {
		return 0, err
	}
	if err := rp.checkAuthFlags(auth); err != nil {
		return 0, err
	}

	key, err := ParsePublicKey(cred.PublicKey)
	if err != nil {
		return 0, fmt.Errorf("stored credential public key: %w", err)
	}

	clientHash := sha256.Sum256(resp.Response.ClientDataJSON)
	signed := make([]byte, 0, len(resp.Response.AuthenticatorData)+len(clientHash))
	signed = append(signed, resp.Response.AuthenticatorData...)
	signed = append(signed, clientHash[:]...)

	if err := key.Verify(signed, resp.Response.Signature); err != nil {
		return 0, fmt.Errorf("assertion signature: %w", err)
	}

	// Authenticators without a counter always report zero; a zero pair is the
	// only case where equality is acceptable.
	if auth.signCount != 0 || cred.SignCount != 0 {
		if auth.signCount <= cred.SignCount {
			return 0, ErrSignCountRegressed
		}
	}

	return auth.signCount, nil
}
