// Package nodeerrors defines the sentinel error taxonomy shared by the
// engine, wallet, and p2p packages. Callers branch on kind with errors.Is
// after unwrapping context added via fmt.Errorf("...: %w", ...).
package nodeerrors

import "errors"

var (
	// ErrInvalidSignature covers both standard ECDSA and ring signature failures.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrInsufficientFunds is returned when a sender's balance or selected
	// UTXOs cannot cover a transaction's amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateTransaction is returned when a transaction ID already
	// appears in the chain or mempool.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrUnknownOutpoint is returned when a transaction input references an
	// outpoint that is not in the UTXO set.
	ErrUnknownOutpoint = errors.New("unknown outpoint")

	// ErrDoubleSpendKeyImage is returned when an anonymous transaction's key
	// image has already been recorded as spent.
	ErrDoubleSpendKeyImage = errors.New("key image already spent")

	// ErrMalformedBlock covers bad hash, bad parent link, bad proof-of-work,
	// or internal inconsistency discovered during block application.
	ErrMalformedBlock = errors.New("malformed block")

	// ErrChainTooShort is returned when a peer-supplied chain is not
	// strictly longer than the local chain.
	ErrChainTooShort = errors.New("peer chain not longer than local chain")

	// ErrPeerProtocol covers malformed JSON or an unrecognized message type
	// on a peer session.
	ErrPeerProtocol = errors.New("peer protocol violation")

	// ErrStorageIO covers persistence read/write failures.
	ErrStorageIO = errors.New("storage I/O failure")

	// ErrCryptoFailure covers key generation, derivation, or encoding
	// failures not already covered by ErrInvalidSignature.
	ErrCryptoFailure = errors.New("cryptographic operation failed")
)
