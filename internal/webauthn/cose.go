package webauthn

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// COSE key type and curve identifiers (RFC 9052 / RFC 9053).
const (
	coseKeyTypeEC2 = 2
	coseKeyTypeRSA = 3
	coseCurveP256  = 1
)

// PublicKey verifies authenticator signatures over SHA-256 digests.
type PublicKey interface {
	// Verify checks sig against the SHA-256 digest of data.
	Verify(data, sig []byte) error
	// Algorithm returns the COSE algorithm identifier.
	Algorithm() int64
}

type ec2Key struct {
	key *ecdsa.PublicKey
	alg int64
}

func (k *ec2Key) Verify(data, sig []byte) error {
	digest := sha256.Sum256(data)
	if !ecdsa.VerifyASN1(k.key, digest[:], sig) {
		return fmt.Errorf("ecdsa signature mismatch")
	}
	return nil
}

func (k *ec2Key) Algorithm() int64 { return k.alg }

type rsaKey struct {
	key *rsa.PublicKey
	alg int64
}

func (k *rsaKey) Verify(data, sig []byte) error {
	digest := sha256.Sum256(data)
	if err := rsa.VerifyPKCS1v15(k.key, crypto.SHA256, digest[:], sig); err != nil {
		return fmt.Errorf("rsa signature mismatch: %w", err)
	}
	return nil
}

func (k *rsaKey) Algorithm() int64 { return k.alg }

type coseKeyHeader struct {
	KeyType int64 `cbor:"1,keyasint"`
	Alg     int64 `cbor:"3,keyasint"`
}

type coseEC2Key struct {
	Curve int64  `cbor:"-1,keyasint"`
	X     []byte `cbor:"-2,keyasint"`
	Y     []byte `cbor:"-3,keyasint"`
}

type coseRSAKey struct {
	N []byte `cbor:"-1,keyasint"`
	E []byte `cbor:"-2,keyasint"`
}

// ParsePublicKey decodes a raw CBOR-encoded COSE public key as embedded in
// authenticator data at registration time.
func ParsePublicKey(raw []byte) (PublicKey, error) {
	var header coseKeyHeader
	if err := cbor.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("decode cose key: %w", err)
	}

	switch header.KeyType {
	case coseKeyTypeEC2:
		if header.Alg != AlgES256 {
			return nil, fmt.Errorf("unsupported ec2 algorithm %d", header.Alg)
		}
		var ec coseEC2Key
		if err := cbor.Unmarshal(raw, &ec); err != nil {
			return nil, fmt.Errorf("decode ec2 key: %w", err)
		}
		if ec.Curve != coseCurveP256 {
			return nil, fmt.Errorf("unsupported curve %d", ec.Curve)
		}
		key := &ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(ec.X),
			Y:     new(big.Int).SetBytes(ec.Y),
		}
		if !key.Curve.IsOnCurve(key.X, key.Y) {
			return nil, fmt.Errorf("ec2 point not on curve")
		}
		return &ec2Key{key: key, alg: header.Alg}, nil

	case coseKeyTypeRSA:
		if header.Alg != AlgRS256 {
			return nil, fmt.Errorf("unsupported rsa algorithm %d", header.Alg)
		}
		var rk coseRSAKey
		if err := cbor.Unmarshal(raw, &rk); err != nil {
			return nil, fmt.Errorf("decode rsa key: %w", err)
		}
		key := &rsa.PublicKey{
			N: new(big.Int).SetBytes(rk.N),
			E: int(new(big.Int).SetBytes(rk.E).Int64()),
		}
		if key.E <= 1 {
			return nil, fmt.Errorf("invalid rsa exponent")
		}
		return &rsaKey{key: key, alg: header.Alg}, nil
	}

	return nil, fmt.Errorf("unsupported cose key type %d", header.KeyType)
}
