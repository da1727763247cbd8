// Package ledger maintains the UTXO set and key-image registry that
// together enforce no-double-spend for transparent and anonymous
// transactions. Both sets are derived state: rebuildable deterministically
// by replaying every block from genesis (spec §3, §4.6.7).
package ledger

import (
	"fmt"
	"sync"

	"github.com/anoncoinproject/anoncoin/nodeerrors"
	"github.com/anoncoinproject/anoncoin/types"
)

// Outpoint identifies a UTXO by the transaction that created it and the
// output's position within that transaction.
type Outpoint struct {
	TxID  string
	Index uint32
}

// State owns the UTXO set and key-image set. All mutation happens through
// ApplyBlock / Rebuild so the two sets and the current height always
// reflect exactly the chain that produced them (spec §5: single writer).
type State struct {
	mu sync.RWMutex

	utxos       map[Outpoint]types.TxOutput
	keyImages   map[string]struct{}
	height      int64 // -1 until a genesis block has been applied
	totalSupply float64
}

// New returns an empty State.
func New() *State {
	return &State{
		utxos:     make(map[Outpoint]types.TxOutput),
		keyImages: make(map[string]struct{}),
		height:    -1,
	}
}

// ApplyBlock applies every transaction in block to the UTXO and key-image
// sets, in order, per spec §4.6.4. It is the ONLY way this state mutates
// outside of Rebuild/Reset.
func (s *State) ApplyBlock(block *types.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range block.Transactions {
		if err := s.applyTransactionLocked(&block.Transactions[i]); err != nil {
			return fmt.Errorf("apply block %d tx %d: %w", block.Index, i, err)
		}
	}
	s.height = int64(block.Index)
	return nil
}

func (s *State) applyTransactionLocked(tx *types.Transaction) error {
	txID, err := tx.ID()
	if err != nil {
		return fmt.Errorf("compute txid: %w", err)
	}

	for _, in := range tx.Inputs {
		op := Outpoint{TxID: in.PrevTxID, Index: in.OutputIndex}
		if _, ok := s.utxos[op]; !ok {
			return fmt.Errorf("input %s:%d not found: %w", in.PrevTxID, in.OutputIndex, nodeerrors.ErrUnknownOutpoint)
		}
		delete(s.utxos, op)
	}

	if len(tx.Outputs) == 0 {
		// coinbase or legacy transaction with no declared outputs: synthesize one.
		out := types.TxOutput{TxID: txID, Index: 0, Address: tx.ReceiverAddress, Amount: tx.Amount}
		s.utxos[Outpoint{TxID: txID, Index: 0}] = out
		s.totalSupply += mintedAmount(tx, out)
	} else {
		for idx, out := range tx.Outputs {
			out.TxID = txID
			out.Index = uint32(idx)
			s.utxos[Outpoint{TxID: txID, Index: out.Index}] = out
			s.totalSupply += mintedAmount(tx, out)
		}
	}

	if tx.TxType == types.TxAnonymous && tx.KeyImage != "" {
		if _, seen := s.keyImages[tx.KeyImage]; seen {
			return fmt.Errorf("key image %s: %w", tx.KeyImage, nodeerrors.ErrDoubleSpendKeyImage)
		}
		s.keyImages[tx.KeyImage] = struct{}{}
	}

	return nil
}

// mintedAmount counts an output's amount toward total supply only when it
// originates from a coinbase transaction; transparent and anonymous
// transfers move existing value, they do not mint it.
func mintedAmount(tx *types.Transaction, out types.TxOutput) float64 {
	if tx.TxType != types.TxCoinbase {
		return 0
	}
	return out.Amount
}

// GetUTXO returns the unspent output at outpoint, if any.
func (s *State) GetUTXO(op Outpoint) (types.TxOutput, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, ok := s.utxos[op]
	return out, ok
}

// UTXOsByAddress returns every unspent output paying address, in
// unspecified order. Used by wallet input selection.
func (s *State) UTXOsByAddress(address string) []types.TxOutput {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.TxOutput
	for _, utxo := range s.utxos {
		if utxo.Address == address {
			out = append(out, utxo)
		}
	}
	return out
}

// Balance sums every unspent output paying address.
func (s *State) Balance(address string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total float64
	for _, utxo := range s.utxos {
		if utxo.Address == address {
			total += utxo.Amount
		}
	}
	return total
}

// AllUTXOs returns a snapshot of the full UTXO set, in unspecified order.
func (s *State) AllUTXOs() []types.TxOutput {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.TxOutput, 0, len(s.utxos))
	for _, u := range s.utxos {
		out = append(out, u)
	}
	return out
}

// IsKeyImageSpent reports whether keyImage has already been recorded by an
// applied anonymous transaction.
func (s *State) IsKeyImageSpent(keyImage string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, seen := s.keyImages[keyImage]
	return seen
}

// Height returns the height of the most recently applied block, or -1 if
// no block has been applied.
func (s *State) Height() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height
}

// TotalSupply returns the sum of all coinbase outputs applied so far.
func (s *State) TotalSupply() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalSupply
}

// Reset wipes the UTXO and key-image sets back to empty, the same state a
// fresh New() starts from (Rebuild replays onto a new State rather than
// calling Reset).
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.utxos = make(map[Outpoint]types.TxOutput)
	s.keyImages = make(map[string]struct{})
	s.height = -1
	s.totalSupply = 0
}

// Rebuild wipes state and re-applies every block in chain from genesis,
// per spec §4.6.7. Determinism (invariant §8.2) follows directly from
// ApplyBlock's in-order, single-writer application.
func Rebuild(chain types.Chain) (*State, error) {
	s := New()
	for i := range chain {
		if err := s.ApplyBlock(&chain[i]); err != nil {
			return nil, fmt.Errorf("rebuild at block %d: %w", chain[i].Index, err)
		}
	}
	return s, nil
}
