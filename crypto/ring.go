package crypto

import (
	"fmt"

	"github.com/anoncoinproject/anoncoin/nodeerrors"
)

// RingSignature is the simplified ring signature scheme from spec: one
// slot holds a genuine signature from the real signer, every other slot
// holds a genuine signature from a freshly generated, discarded key. It is
// NOT cryptographically anonymity-preserving — see DESIGN.md.
type RingSignature struct {
	PubKeys []string `json:"pubkeys"` // hex-encoded raw public keys, signer's key included
	Sigs    []string `json:"sigs"`    // base64 signatures, same order as PubKeys
}

// BuildRingSignature signs message with realKP and fills every other ring
// slot with a signature from a freshly generated, discarded key, placing
// the real signer at index 0.
//
// decoyPubKeysHex only supplies the decoy COUNT: one decoy slot per entry.
// The declared public key for a decoy slot is the throwaway key that
// actually produced its signature, not decoyPubKeysHex's entry, since this
// simplified scheme does not require cooperation from the decoys and a
// slot's signature must verify against the key it claims.
func BuildRingSignature(realKP *KeyPair, message []byte, decoyPubKeysHex []string) (*RingSignature, error) {
	n := len(decoyPubKeysHex) + 1
	pubKeys := make([]string, n)
	sigs := make([]string, n)

	const realIdx = 0 // deterministic placement keeps the construction simple and auditable
	pubKeys[realIdx] = realKP.PublicKeyHex()
	realSig, err := Sign(realKP.PrivateKey, message)
	if err != nil {
		return nil, err
	}
	sigs[realIdx] = realSig

	for i := range decoyPubKeysHex {
		slot := i + 1

		throwaway, err := GenerateKeyPair()
		if err != nil {
			return nil, err
		}
		decoySig, err := Sign(throwaway.PrivateKey, message)
		if err != nil {
			return nil, err
		}
		pubKeys[slot] = throwaway.PublicKeyHex()
		sigs[slot] = decoySig
	}

	return &RingSignature{PubKeys: pubKeys, Sigs: sigs}, nil
}

// VerifyRingSignature checks that every (sig, pubkey) slot verifies as a
// genuine ECDSA signature over message. It does not consult any wallet
// directory; the transaction-level check in types additionally requires
// one ring key to be registered. A slot belonging to a decoy (a throwaway key not
// present in any wallet directory) still carries a real signature under
// its own declared key and therefore verifies, which is exactly the
// limitation documented in spec §9 — an observer who cross-references ring
// members against a wallet directory can still distinguish signer from
// decoys, even though the signature itself does not reveal which slot is
// real.
func VerifyRingSignature(sig *RingSignature, message []byte) bool {
	if sig == nil || len(sig.PubKeys) == 0 || len(sig.PubKeys) != len(sig.Sigs) {
		return false
	}
	for i, pubHex := range sig.PubKeys {
		if !VerifyHex(pubHex, sig.Sigs[i], message) {
			return false
		}
	}
	return true
}

// KeyImage derives the per-spend key image: SHA-256(private_key_bytes ||
// concat(prev_txid || output_index) for each input), matching spec §4.2.
func KeyImage(privateKeyScalar []byte, inputPreimages [][]byte) string {
	buf := append([]byte{}, privateKeyScalar...)
	for _, in := range inputPreimages {
		buf = append(buf, in...)
	}
	return SHA256Hex(buf)
}

// ErrDecoyPool is returned by callers that cannot assemble enough ring
// members; kept here so wallet code can wrap it uniformly.
var ErrDecoyPool = fmt.Errorf("not enough ring members available: %w", nodeerrors.ErrCryptoFailure)
