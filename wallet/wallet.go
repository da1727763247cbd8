// Package wallet owns key material lifecycle, address derivation,
// transaction signing, and anonymous-transaction assembly (spec §4.2).
package wallet

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/tyler-smith/go-bip39"

	"github.com/anoncoinproject/anoncoin/crypto"
	"github.com/anoncoinproject/anoncoin/directory"
	"github.com/anoncoinproject/anoncoin/nodeerrors"
	"github.com/anoncoinproject/anoncoin/types"
)

// scalarSeedBytes is the slice of the 64-byte BIP-39 seed used as the
// ECDSA signing scalar. The P-384 order needs 48 bytes; the first 32 are
// used instead to stay bit-compatible with the original derivation. See
// DESIGN.md for the full rationale behind this choice.
const scalarSeedBytes = 32

// UTXOQuery is the narrow capability a wallet needs to assemble an
// anonymous transaction: its own spendable outputs (UTXOsByAddress) and
// the full UTXO set (AllUTXOs, which CreateAnonymousTransaction does not
// use; ring decoys come from the directory). Passed explicitly by the
// caller (the engine, in practice) rather than reached for as a global —
// spec §9.
type UTXOQuery interface {
	UTXOsByAddress(address string) []types.TxOutput
	AllUTXOs() []types.TxOutput
}

// Wallet holds one keypair plus the address derived from it.
type Wallet struct {
	KeyPair *crypto.KeyPair
}

// New generates a fresh random keypair.
func New() (*Wallet, error) {
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &Wallet{KeyPair: kp}, nil
}

// NewMnemonic generates a fresh 12-word BIP-39 English mnemonic and the
// wallet derived from it, returning both so the caller can display the
// phrase once.
func NewMnemonic() (*Wallet, string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return nil, "", fmt.Errorf("generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, "", fmt.Errorf("derive mnemonic: %w", err)
	}
	w, err := FromSeed(mnemonic)
	if err != nil {
		return nil, "", err
	}
	return w, mnemonic, nil
}

// FromSeed derives a wallet deterministically from a BIP-39 mnemonic
// phrase: seed = PBKDF2(mnemonic) per BIP-39, scalar = seed[:32].
func FromSeed(mnemonic string) (*Wallet, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic: %w", nodeerrors.ErrCryptoFailure)
	}
	seed := bip39.NewSeed(mnemonic, "")
	kp, err := crypto.KeyPairFromScalar(seed[:scalarSeedBytes])
	if err != nil {
		return nil, fmt.Errorf("derive keypair from seed: %w", err)
	}
	return &Wallet{KeyPair: kp}, nil
}

// FromPrivateKey loads a wallet from a hex-encoded raw private scalar.
func FromPrivateKey(privHex string) (*Wallet, error) {
	kp, err := crypto.KeyPairFromHex(privHex)
	if err != nil {
		return nil, fmt.Errorf("load keypair: %w", err)
	}
	return &Wallet{KeyPair: kp}, nil
}

// Address returns the wallet's SHA-256 address.
func (w *Wallet) Address() string {
	return w.KeyPair.Address()
}

// PublicKeyHex returns the wallet's hex-encoded raw public key.
func (w *Wallet) PublicKeyHex() string {
	return w.KeyPair.PublicKeyHex()
}

// PrivateKeyHex returns the wallet's hex-encoded raw private scalar.
func (w *Wallet) PrivateKeyHex() string {
	return w.KeyPair.PrivateKeyHex()
}

// Sign signs raw bytes with the wallet's private key, base64-encoded.
func (w *Wallet) Sign(message []byte) (string, error) {
	return crypto.Sign(w.KeyPair.PrivateKey, message)
}

// SignTransaction sets tx.SenderPubKey and computes tx.Signature over the
// canonical signing bytes (signature and ring_signature excluded), per
// spec §4.2.
func (w *Wallet) SignTransaction(tx *types.Transaction) error {
	tx.SenderPubKey = w.PublicKeyHex()
	msg, err := tx.SigningBytes()
	if err != nil {
		return fmt.Errorf("encode signing bytes: %w", err)
	}
	sig, err := w.Sign(msg)
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	tx.Signature = sig
	return nil
}

// CreateAnonymousTransaction assembles an anonymous transfer of amount to
// receiver, spending this wallet's own UTXOs as inputs and, if dir has at
// least one other registered member, attaching a ring signature drawn
// from dir's public keys. query supplies the UTXO view; dir supplies ring
// membership. Neither is ambient state (spec §9).
func (w *Wallet) CreateAnonymousTransaction(query UTXOQuery, dir *directory.Directory, ringSize int, receiver string, amount float64, metadata string) (*types.Transaction, error) {
	owned := query.UTXOsByAddress(w.Address())

	var selected []types.TxOutput
	var total float64
	for _, out := range owned {
		selected = append(selected, out)
		total += out.Amount
		if total >= amount {
			break
		}
	}
	if total < amount {
		return nil, fmt.Errorf("need %.8f, have %.8f: %w", amount, total, nodeerrors.ErrInsufficientFunds)
	}

	inputs := make([]types.TxInput, len(selected))
	preimages := make([][]byte, len(selected))
	for i, out := range selected {
		inputs[i] = types.TxInput{PrevTxID: out.TxID, OutputIndex: out.Index}
		preimages[i] = []byte(fmt.Sprintf("%s%d", out.TxID, out.Index))
	}

	outputs := []types.TxOutput{{Address: receiver, Amount: amount}}
	if change := total - amount; change > 0 {
		outputs = append(outputs, types.TxOutput{Address: w.Address(), Amount: change})
	}

	privBytes, err := hex.DecodeString(w.PrivateKeyHex())
	if err != nil {
		return nil, fmt.Errorf("decode private key for key image: %w", err)
	}
	keyImage := crypto.KeyImage(privBytes, preimages)

	tx := &types.Transaction{
		ReceiverAddress: receiver,
		Amount:          amount,
		Metadata:        metadata,
		TxType:          types.TxAnonymous,
		Timestamp:       time.Now().Unix(),
		Inputs:          inputs,
		Outputs:         outputs,
		KeyImage:        keyImage,
	}

	if dir.Len() >= 2 {
		ring, err := w.buildRing(dir, tx, ringSize)
		if err != nil {
			return nil, err
		}
		tx.RingSignature = ring
	}

	return tx, nil
}

func (w *Wallet) buildRing(dir *directory.Directory, tx *types.Transaction, ringSize int) (*types.RingSignature, error) {
	msg, err := tx.SigningBytes()
	if err != nil {
		return nil, fmt.Errorf("encode signing bytes for ring: %w", err)
	}

	self := w.PublicKeyHex()
	var decoys []string
	for _, pub := range dir.PublicKeys() {
		if pub == self {
			continue
		}
		decoys = append(decoys, pub)
	}

	maxDecoys := ringSize - 1
	if maxDecoys >= 0 && len(decoys) > maxDecoys {
		decoys = decoys[:maxDecoys]
	}

	sig, err := crypto.BuildRingSignature(w.KeyPair, msg, decoys)
	if err != nil {
		return nil, fmt.Errorf("build ring signature: %w", err)
	}
	return &types.RingSignature{Sigs: sig.Sigs, PubKeys: sig.PubKeys}, nil
}
