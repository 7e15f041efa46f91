package service

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/smk-lppmri/portal-api/internal/models"
	"github.com/smk-lppmri/portal-api/internal/webauthn"
)

func testRelyingParty() *webauthn.RelyingParty {
	return &webauthn.RelyingParty{
		ID:            "localhost",
		Name:          "Portal",
		Origin:        "http://localhost:5173",
		PromptTimeout: 60000,
	}
}

// testAuthenticator plays the browser-side platform authenticator in service
// tests.
type testAuthenticator struct {
	t      *testing.T
	key    *ecdsa.PrivateKey
	credID []byte
	// coseKeyRaw caches the encoded key: cbor.Marshal of a map is not
	// deterministic, and the same bytes must appear in authData and in
	// assertions against the stored credential.
	coseKeyRaw []byte
}

func newTestAuthenticator(t *testing.T) *testAuthenticator {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return &testAuthenticator{t: t, key: key, credID: []byte("service-test-credential")}
}

func (a *testAuthenticator) coseKey() []byte {
	a.t.Helper()
	if a.coseKeyRaw == nil {
		raw, err := cbor.Marshal(map[int64]interface{}{
			1:  2, // EC2
			3:  webauthn.AlgES256,
			-1: 1, // P-256
			-2: a.key.PublicKey.X.Bytes(),
			-3: a.key.PublicKey.Y.Bytes(),
		})
		require.NoError(a.t, err)
		a.coseKeyRaw = raw
	}
	return a.coseKeyRaw
}

func (a *testAuthenticator) clientData(typ string, challenge []byte, origin string) []byte {
	a.t.Helper()
	raw, err := json.Marshal(map[string]string{
		"type":      typ,
		"challenge": base64.RawURLEncoding.EncodeToString(challenge),
		"origin":    origin,
	})
	require.NoError(a.t, err)
	return raw
}

func (a *testAuthenticator) authData(rpID string, flags byte, signCount uint32, attested bool) []byte {
	a.t.Helper()
	hash := sha256.Sum256([]byte(rpID))
	data := append([]byte(nil), hash[:]...)
	data = append(data, flags)

	count := make([]byte, 4)
	binary.BigEndian.PutUint32(count, signCount)
	data = append(data, count...)

	if attested {
		data = append(data, make([]byte, 16)...) // zero AAGUID
		credLen := make([]byte, 2)
		binary.BigEndian.PutUint16(credLen, uint16(len(a.credID)))
		data = append(data, credLen...)
		data = append(data, a.credID...)
		data = append(data, a.coseKey()...)
	}
	return data
}

func (a *testAuthenticator) attestationResponse(rp *webauthn.RelyingParty, challenge []byte) *webauthn.AttestationResponse {
	a.t.Helper()
	attObj, err := cbor.Marshal(map[string]interface{}{
		"fmt":      "none",
		"attStmt":  map[string]interface{}{},
		"authData": a.authData(rp.ID, 0x01|0x04|0x40, 0, true),
	})
	require.NoError(a.t, err)

	resp := &webauthn.AttestationResponse{
		ID:    base64.RawURLEncoding.EncodeToString(a.credID),
		RawID: a.credID,
		Type:  "public-key",
	}
	resp.Response.ClientDataJSON = a.clientData("webauthn.create", challenge, rp.Origin)
	resp.Response.AttestationObject = attObj
	return resp
}

func (a *testAuthenticator) assertionResponse(rp *webauthn.RelyingParty, challenge []byte, signCount uint32) *webauthn.AssertionResponse {
	a.t.Helper()
	authData := a.authData(rp.ID, 0x01|0x04, signCount, false)
	clientJSON := a.clientData("webauthn.get", challenge, rp.Origin)

	clientHash := sha256.Sum256(clientJSON)
	signed := append(append([]byte(nil), authData...), clientHash[:]...)
	digest := sha256.Sum256(signed)
	sig, err := ecdsa.SignASN1(rand.Reader, a.key, digest[:])
	require.NoError(a.t, err)

	resp := &webauthn.AssertionResponse{
		ID:    base64.RawURLEncoding.EncodeToString(a.credID),
		RawID: a.credID,
		Type:  "public-key",
	}
	resp.Response.ClientDataJSON = clientJSON
	resp.Response.AuthenticatorData = authData
	resp.Response.Signature = sig
	return resp
}

// enrolledIdentity returns an identity bound to this authenticator's key.
func (a *testAuthenticator) enrolledIdentity(id string, approved bool) *models.Identity {
	return &models.Identity{
		ID:       id,
		Name:     "Siti Rahma",
		Email:    "siti@example.sch.id",
		Role:     models.RoleStudent,
		NISN:     "0051234567",
		Approved: approved,
		Credential: &models.Credential{
			ID:        base64.RawURLEncoding.EncodeToString(a.credID),
			PublicKey: a.coseKey(),
			SignCount: 0,
		},
	}
}
