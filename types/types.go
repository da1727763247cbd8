// Package types defines the consensus-critical data model: transactions,
// their inputs/outputs, and blocks. See spec §3 for the full invariants;
// this file carries the shapes, transaction.go and block.go carry the
// operations.
package types

// TxType discriminates the three transaction shapes spec §3 defines.
type TxType string

const (
	TxStandard  TxType = "standard"
	TxAnonymous TxType = "anonymous"
	TxCoinbase  TxType = "coinbase"
)

// TxOutput is an unspent-output-to-be: a (txid, index) identified payment
// to an address. TxID and Index are assigned at block-application time
// (spec §3) — a transaction authored before inclusion carries them empty.
type TxOutput struct {
	TxID    string  `json:"txid"`
	Index   uint32  `json:"index"`
	Address string  `json:"address"`
	Amount  float64 `json:"amount"`
}

// TxInput references a previously created output by outpoint. Signature is
// populated for transparent spends and left empty for anonymous ones.
type TxInput struct {
	PrevTxID    string `json:"prev_txid"`
	OutputIndex uint32 `json:"output_index"`
	Signature   string `json:"signature,omitempty"`
}

// RingSignature is re-exported at the types layer so Transaction can embed
// it without importing the crypto package's signing machinery; the actual
// build/verify logic lives in crypto.RingSignature (identical shape).
type RingSignature struct {
	Sigs    []string `json:"sigs"`
	PubKeys []string `json:"pubkeys"`
}

// Transaction is the typed value-transfer record described in spec §3.
// Field presence/absence by TxType is enforced by the engine and by
// Transaction.Validate, not by the Go type system.
type Transaction struct {
	SenderPubKey    string         `json:"sender_pubkey,omitempty"`
	ReceiverAddress string         `json:"receiver_address"`
	Amount          float64        `json:"amount"`
	Signature       string         `json:"signature,omitempty"`
	Metadata        string         `json:"metadata,omitempty"`
	TxType          TxType         `json:"tx_type"`
	Timestamp       int64          `json:"timestamp"`
	RingSignature   *RingSignature `json:"ring_signature,omitempty"`
	Inputs          []TxInput      `json:"inputs,omitempty"`
	Outputs         []TxOutput     `json:"outputs,omitempty"`
	KeyImage        string         `json:"key_image,omitempty"`
}

// Block is a header plus an ordered transaction list, as described in
// spec §3. Hash is computed by Block.ComputeHash and stored alongside the
// fields it commits to.
type Block struct {
	Index        uint64        `json:"index"`
	PreviousHash string        `json:"previous_hash"`
	Timestamp    int64         `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	Nonce        uint64        `json:"nonce"`
	Manifest     string        `json:"manifest,omitempty"`
	Hash         string        `json:"hash"`
}

// Chain is a non-empty ordered sequence of blocks, chain[0] being genesis.
type Chain []Block
