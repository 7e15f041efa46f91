package webauthn

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePublicKeyES256(t *testing.T) {
	auth := newFakeAuthenticator(t)

	key, err := ParsePublicKey(auth.coseKey())
	require.NoError(t, err)
	assert.Equal(t, int64(AlgES256), key.Algorithm())
}

func TestParsePublicKeyRejectsUnknownKeyType(t *testing.T) {
	raw, err := cbor.Marshal(map[int64]interface{}{1: 99, 3: AlgES256})
	require.NoError(t, err)

	_, err = ParsePublicKey(raw)
	assert.Error(t, err)
}

func TestParsePublicKeyRejectsUnknownCurve(t *testing.T) {
	auth := newFakeAuthenticator(t)
	raw, err := cbor.Marshal(map[int64]interface{}{
		1:  coseKeyTypeEC2,
		3:  AlgES256,
		-1: 8,
		-2: auth.key.PublicKey.X.Bytes(),
		-3: auth.key.PublicKey.Y.Bytes(),
	})
	require.NoError(t, err)

	_, err = ParsePublicKey(raw)
	assert.Error(t, err)
}

func TestParsePublicKeyRejectsOffCurvePoint(t *testing.T) {
	auth := newFakeAuthenticator(t)
	x := auth.key.PublicKey.X.Bytes()
	x[0] ^= 0xFF
	raw, err := cbor.Marshal(map[int64]interface{}{
		1:  coseKeyTypeEC2,
		3:  AlgES256,
		-1: coseCurveP256,
		-2: x,
		-3: auth.key.PublicKey.Y.Bytes(),
	})
	require.NoError(t, err)

	_, err = ParsePublicKey(raw)
	assert.Error(t, err)
}
