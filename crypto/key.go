// Package crypto provides the ECDSA/P-384 primitives, canonical-JSON
// hashing, and simplified ring-signature scheme that the wallet, chain,
// and engine packages build on.
//
// The curve choice (NIST P-384) and the base64 raw r||s signature
// encoding follow the original Python reference implementation
// (ecdsa.SigningKey with NIST384p); see DESIGN.md for the scalar-length
// decision this implies for mnemonic-derived keys.
package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/anoncoinproject/anoncoin/nodeerrors"
)

// Curve is the fixed elliptic curve used for all signing keys.
func Curve() elliptic.Curve { return elliptic.P384() }

// scalarSize is the byte length of a P-384 private scalar and of each of
// the r, s signature components.
const scalarSize = 48

// KeyPair bundles a private key with its raw uncompressed public point.
type KeyPair struct {
	PrivateKey *ecdsa.PrivateKey
	PublicKey  []byte // uncompressed X||Y, scalarSize*2 bytes
}

// GenerateKeyPair creates a new random P-384 keypair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := ecdsa.GenerateKey(Curve(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w: %v", nodeerrors.ErrCryptoFailure, err)
	}
	return &KeyPair{
		PrivateKey: priv,
		PublicKey:  MarshalPublicKey(&priv.PublicKey),
	}, nil
}

// KeyPairFromScalar reconstructs a keypair from a raw private scalar,
// deriving the public point by scalar multiplication of the base point.
func KeyPairFromScalar(scalar []byte) (*KeyPair, error) {
	curve := Curve()
	d := new(big.Int).SetBytes(scalar)
	if d.Sign() == 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, fmt.Errorf("scalar out of range: %w", nodeerrors.ErrCryptoFailure)
	}

	priv := new(ecdsa.PrivateKey)
	priv.PublicKey.Curve = curve
	priv.D = d
	priv.PublicKey.X, priv.PublicKey.Y = curve.ScalarBaseMult(d.Bytes())

	return &KeyPair{
		PrivateKey: priv,
		PublicKey:  MarshalPublicKey(&priv.PublicKey),
	}, nil
}

// KeyPairFromHex reconstructs a keypair from a hex-encoded private scalar.
func KeyPairFromHex(privHex string) (*KeyPair, error) {
	raw, err := hex.DecodeString(privHex)
	if err != nil {
		return nil, fmt.Errorf("decode private key hex: %w: %v", nodeerrors.ErrCryptoFailure, err)
	}
	return KeyPairFromScalar(raw)
}

// PrivateKeyHex returns the hex encoding of the raw private scalar,
// left-padded to scalarSize bytes.
func (kp *KeyPair) PrivateKeyHex() string {
	return hex.EncodeToString(padLeft(kp.PrivateKey.D.Bytes(), scalarSize))
}

// PublicKeyHex returns the hex encoding of the raw uncompressed public key.
func (kp *KeyPair) PublicKeyHex() string {
	return hex.EncodeToString(kp.PublicKey)
}

// Address derives the 64-hex-character address: SHA-256 of the raw
// uncompressed public key bytes.
func (kp *KeyPair) Address() string {
	return AddressFromPublicKey(kp.PublicKey)
}

// AddressFromPublicKey derives an address from raw uncompressed public
// key bytes, without requiring a full KeyPair.
func AddressFromPublicKey(pubKey []byte) string {
	sum := sha256.Sum256(pubKey)
	return hex.EncodeToString(sum[:])
}

// AddressFromPublicKeyHex is a convenience wrapper over AddressFromPublicKey
// for hex-encoded public keys, as carried on the wire and in wallets.json.
func AddressFromPublicKeyHex(pubKeyHex string) (string, error) {
	raw, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return "", fmt.Errorf("decode public key hex: %w: %v", nodeerrors.ErrCryptoFailure, err)
	}
	return AddressFromPublicKey(raw), nil
}

// MarshalPublicKey returns the raw uncompressed X||Y point encoding,
// each coordinate left-padded to scalarSize bytes.
func MarshalPublicKey(pub *ecdsa.PublicKey) []byte {
	out := make([]byte, 0, scalarSize*2)
	out = append(out, padLeft(pub.X.Bytes(), scalarSize)...)
	out = append(out, padLeft(pub.Y.Bytes(), scalarSize)...)
	return out
}

// UnmarshalPublicKey parses raw uncompressed X||Y point bytes.
func UnmarshalPublicKey(raw []byte) (*ecdsa.PublicKey, error) {
	if len(raw) != scalarSize*2 {
		return nil, fmt.Errorf("public key must be %d bytes, got %d: %w", scalarSize*2, len(raw), nodeerrors.ErrCryptoFailure)
	}
	curve := Curve()
	x := new(big.Int).SetBytes(raw[:scalarSize])
	y := new(big.Int).SetBytes(raw[scalarSize:])
	if !curve.IsOnCurve(x, y) {
		return nil, fmt.Errorf("public key is not on curve: %w", nodeerrors.ErrCryptoFailure)
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

// UnmarshalPublicKeyHex parses a hex-encoded raw public key.
func UnmarshalPublicKeyHex(pubHex string) (*ecdsa.PublicKey, error) {
	raw, err := hex.DecodeString(pubHex)
	if err != nil {
		return nil, fmt.Errorf("decode public key hex: %w: %v", nodeerrors.ErrCryptoFailure, err)
	}
	return UnmarshalPublicKey(raw)
}

// Sign signs message with SHA-256 prehash under priv, returning the raw
// r||s signature, base64-encoded.
func Sign(priv *ecdsa.PrivateKey, message []byte) (string, error) {
	digest := sha256.Sum256(message)
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	if err != nil {
		return "", fmt.Errorf("sign: %w: %v", nodeerrors.ErrCryptoFailure, err)
	}
	raw := make([]byte, 0, scalarSize*2)
	raw = append(raw, padLeft(r.Bytes(), scalarSize)...)
	raw = append(raw, padLeft(s.Bytes(), scalarSize)...)
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Verify checks a base64 raw r||s signature over message under pub.
func Verify(pub *ecdsa.PublicKey, sigB64 string, message []byte) bool {
	raw, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil || len(raw) != scalarSize*2 {
		return false
	}
	r := new(big.Int).SetBytes(raw[:scalarSize])
	s := new(big.Int).SetBytes(raw[scalarSize:])
	digest := sha256.Sum256(message)
	return ecdsa.Verify(pub, digest[:], r, s)
}

// VerifyHex verifies a signature given a hex-encoded raw public key.
func VerifyHex(pubHex, sigB64 string, message []byte) bool {
	pub, err := UnmarshalPublicKeyHex(pubHex)
	if err != nil {
		return false
	}
	return Verify(pub, sigB64, message)
}

func padLeft(b []byte, size int) []byte {
	if len(b) >= size {
		return b[len(b)-size:]
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}
