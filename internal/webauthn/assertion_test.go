package webauthn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyAssertionSuccess(t *testing.T) {
	rp := testRP()
	auth := newFakeAuthenticator(t)
	challenge, err := NewChallenge()
	require.NoError(t, err)

	count, err := rp.VerifyAssertion(auth.assert(rp, challenge, 5), challenge, auth.credential(4))
	require.NoError(t, err)
	assert.Equal(t, uint32(5), count)
}

func TestVerifyAssertionZeroCounterPair(t *testing.T) {
	rp := testRP()
	auth := newFakeAuthenticator(t)
	challenge, err := NewChallenge()
	require.NoError(t, err)

	count, err := rp.VerifyAssertion(auth.assert(rp, challenge, 0), challenge, auth.credential(0))
	require.NoError(t, err)
	assert.Equal(t, uint32(0), count)
}

func TestVerifyAssertionSignCountRegressed(t *testing.T) {
	rp := testRP()
	auth := newFakeAuthenticator(t)
	challenge, err := NewChallenge()
	require.NoError(t, err)

	_, err = rp.VerifyAssertion(auth.assert(rp, challenge, 3), challenge, auth.credential(3))
	assert.ErrorIs(t, err, ErrSignCountRegressed)
}

func TestVerifyAssertionCredentialMismatch(t *testing.T) {
	rp := testRP()
	auth := newFakeAuthenticator(t)
	other := newFakeAuthenticator(t)
	other.credID = []byte("different-credential")
	challenge, err := NewChallenge()
	require.NoError(t, err)

	_, err = rp.VerifyAssertion(other.assert(rp, challenge, 1), challenge, auth.credential(0))
	assert.ErrorIs(t, err, ErrCredentialMismatch)
}

func TestVerifyAssertionForgedSignature(t *testing.T) {
	rp := testRP()
	auth := newFakeAuthenticator(t)
	forger := newFakeAuthenticator(t)
	forger.credID = auth.credID
	challenge, err := NewChallenge()
	require.NoError(t, err)

	// Signed with a different private key than the registered one.
	_, err = rp.VerifyAssertion(forger.assert(rp, challenge, 1), challenge, auth.credential(0))
	assert.Error(t, err)
}

func TestVerifyAssertionWrongChallenge(t *testing.T) {
	rp := testRP()
	auth := newFakeAuthenticator(t)
	challenge, err := NewChallenge()
	require.NoError(t, err)
	other, err := NewChallenge()
	require.NoError(t, err)

	_, err = rp.VerifyAssertion(auth.assert(rp, other, 1), challenge, auth.credential(0))
	assert.ErrorIs(t, err, ErrChallengeMismatch)
}
