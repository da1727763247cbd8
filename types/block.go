package types

import (
	"fmt"
	"strconv"

	"github.com/anoncoinproject/anoncoin/crypto"
)

// hashPreimage builds the exact byte string that Block.ComputeHash digests
// twice: index || previous_hash || timestamp || concat(tx.to_json()) ||
// nonce || manifest, per spec §3.
func (b *Block) hashPreimage() ([]byte, error) {
	buf := make([]byte, 0, 256)
	buf = append(buf, []byte(strconv.FormatUint(b.Index, 10))...)
	buf = append(buf, []byte(b.PreviousHash)...)
	buf = append(buf, []byte(strconv.FormatInt(b.Timestamp, 10))...)

	for i := range b.Transactions {
		txJSON, err := b.Transactions[i].ToJSON()
		if err != nil {
			return nil, fmt.Errorf("encode transaction %d for hashing: %w", i, err)
		}
		buf = append(buf, txJSON...)
	}

	buf = append(buf, []byte(strconv.FormatUint(b.Nonce, 10))...)
	buf = append(buf, []byte(b.Manifest)...)
	return buf, nil
}

// ComputeHash returns the double-SHA-256 hex digest of the block's
// canonical preimage, independent of the Hash field currently stored on b.
func (b *Block) ComputeHash() (string, error) {
	preimage, err := b.hashPreimage()
	if err != nil {
		return "", err
	}
	return crypto.DoubleSHA256Hex(preimage), nil
}

// Mine performs the single-threaded cooperative proof-of-work search
// described in spec §4.5: increment Nonce from 0 until ComputeHash has
// `difficulty` leading hex '0' characters, then store the result in Hash.
func (b *Block) Mine(difficulty int) error {
	b.Nonce = 0
	for {
		hash, err := b.ComputeHash()
		if err != nil {
			return err
		}
		if crypto.HasLeadingZeroHex(hash, difficulty) {
			b.Hash = hash
			return nil
		}
		b.Nonce++
	}
}

// VerifyProofOfWork recomputes the block hash and checks both that it
// matches the stored Hash and that it satisfies the difficulty prefix,
// per spec §4.6.6's "also re-verify the difficulty prefix" note.
func (b *Block) VerifyProofOfWork(difficulty int) (bool, error) {
	hash, err := b.ComputeHash()
	if err != nil {
		return false, err
	}
	if hash != b.Hash {
		return false, nil
	}
	return crypto.HasLeadingZeroHex(hash, difficulty), nil
}
