package webauthn

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
)

func testRP() *RelyingParty {
	return &RelyingParty{
		ID:            "localhost",
		Name:          "Portal",
		Origin:        "http://localhost:5173",
		PromptTimeout: 60000,
	}
}

// fakeAuthenticator emulates a platform authenticator holding one ES256
// credential.
type fakeAuthenticator struct {
	t      *testing.T
	key    *ecdsa.PrivateKey
	credID []byte
	aaguid []byte
	// coseKeyRaw caches the encoded key: cbor.Marshal of a map is not
	// deterministic, and the same bytes must appear in authData and in
	// assertions against the stored credential.
	coseKeyRaw []byte
}

func newFakeAuthenticator(t *testing.T) *fakeAuthenticator {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return &fakeAuthenticator{
		t:      t,
		key:    key,
		credID: []byte("test-credential-id-01"),
		aaguid: make([]byte, 16),
	}
}

func (a *fakeAuthenticator) coseKey() []byte {
	a.t.Helper()
	if a.coseKeyRaw == nil {
		raw, err := cbor.Marshal(map[int64]interface{}{
			1:  coseKeyTypeEC2,
			3:  AlgES256,
			-1: coseCurveP256,
			-2: a.key.PublicKey.X.Bytes(),
			-3: a.key.PublicKey.Y.Bytes(),
		})
		require.NoError(a.t, err)
		a.coseKeyRaw = raw
	}
	return a.coseKeyRaw
}

func (a *fakeAuthenticator) clientData(typ string, challenge []byte, origin string) []byte {
	a.t.Helper()
	raw, err := json.Marshal(map[string]string{
		"type":      typ,
		"challenge": base64.RawURLEncoding.EncodeToString(challenge),
		"origin":    origin,
	})
	require.NoError(a.t, err)
	return raw
}

func (a *fakeAuthenticator) authData(rpID string, flags byte, signCount uint32, attested bool) []byte {
	a.t.Helper()
	hash := sha256.Sum256([]byte(rpID))
	data := append([]byte(nil), hash[:]...)
	data = append(data, flags)

	count := make([]byte, 4)
	binary.BigEndian.PutUint32(count, signCount)
	data = append(data, count...)

	if attested {
		data = append(data, a.aaguid...)
		credLen := make([]byte, 2)
		binary.BigEndian.PutUint16(credLen, uint16(len(a.credID)))
		data = append(data, credLen...)
		data = append(data, a.credID...)
		data = append(data, a.coseKey()...)
	}
	return data
}

// register produces the attestation response the browser would deliver.
func (a *fakeAuthenticator) register(rp *RelyingParty, challenge []byte) *AttestationResponse {
	a.t.Helper()
	attObj, err := cbor.Marshal(map[string]interface{}{
		"fmt":      "none",
		"attStmt":  map[string]interface{}{},
		"authData": a.authData(rp.ID, flagUserPresent|flagUserVerified|flagAttestedCredIncl, 0, true),
	})
	require.NoError(a.t, err)

	resp := &AttestationResponse{
		ID:    base64.RawURLEncoding.EncodeToString(a.credID),
		RawID: a.credID,
		Type:  "public-key",
	}
	resp.Response.ClientDataJSON = a.clientData(clientDataTypeCreate, challenge, rp.Origin)
	resp.Response.AttestationObject = attObj
	return resp
}

// assert produces a signed assertion response for the given sign count.
func (a *fakeAuthenticator) assert(rp *RelyingParty, challenge []byte, signCount uint32) *AssertionResponse {
	a.t.Helper()
	authData := a.authData(rp.ID, flagUserPresent|flagUserVerified, signCount, false)
	clientJSON := a.clientData(clientDataTypeGet, challenge, rp.Origin)

	clientHash := sha256.Sum256(clientJSON)
	signed := append(append([]byte(nil), authData...), clientHash[:]...)
	digest := sha256.Sum256(signed)
	sig, err := ecdsa.SignASN1(rand.Reader, a.key, digest[:])
	require.NoError(a.t, err)

	resp := &AssertionResponse{
		ID:    base64.RawURLEncoding.EncodeToString(a.credID),
		RawID: a.credID,
		Type:  "public-key",
	}
	resp.Response.ClientDataJSON = clientJSON
	resp.Response.AuthenticatorData = authData
	resp.Response.Signature = sig
	return resp
}

func (a *fakeAuthenticator) credential(signCount uint32) *RegisteredCredential {
	return &RegisteredCredential{
		ID:        a.credID,
		PublicKey: a.coseKey(),
		SignCount: signCount,
		AAGUID:    a.aaguid,
	}
}

func buildAttestationObject(t *testing.T, authData []byte) []byte {
	t.Helper()
	raw, err := cbor.Marshal(map[string]interface{}{
		"fmt":      "none",
		"attStmt":  map[string]interface{}{},
		"authData": authData,
	})
	require.NoError(t, err)
	return raw
}
