// Package engine implements the blockchain engine (spec §4.6): genesis
// construction, mempool admission, proof-of-work block assembly with
// reward halving and anonymity-bonus blocks, block application, and chain
// validation/rebuild. All mutation is serialized behind a single mutex —
// the single-threaded cooperative model of spec §5.
package engine

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anoncoinproject/anoncoin/config"
	"github.com/anoncoinproject/anoncoin/directory"
	"github.com/anoncoinproject/anoncoin/ledger"
	"github.com/anoncoinproject/anoncoin/nodeerrors"
	"github.com/anoncoinproject/anoncoin/types"
)

const (
	genesisAddress = "0000000000000000000000000000000000000000000000000000000000000000"
	genesisReward  = 3_333_666.0
	genesisSig     = "GENESIS"
)

// Engine owns the chain, mempool, and derived UTXO/key-image state. Every
// exported method that reads or mutates them takes the engine's single
// mutex; there is no concurrent mutation path (spec §5).
type Engine struct {
	mu sync.Mutex

	cfg config.Config
	log *zap.Logger
	dir *directory.Directory

	chain   types.Chain
	mempool []types.Transaction
	state   *ledger.State

	currentReward float64
	totalSupply   float64
}

// New constructs an engine and mines its genesis block, crediting
// genesisAddress with genesisReward (spec §4.6.1). dir is the shared
// wallet directory consulted by ring-signature verification (spec §9); the
// p2p server reaches it through this engine, not through its own copy.
func New(cfg config.Config, log *zap.Logger, dir *directory.Directory) (*Engine, error) {
	e := &Engine{
		cfg:           cfg,
		log:           log,
		dir:           dir,
		state:         ledger.New(),
		currentReward: cfg.DefaultReward,
	}

	coinbase := types.Transaction{
		ReceiverAddress: genesisAddress,
		Amount:          genesisReward,
		Signature:       genesisSig,
		TxType:          types.TxCoinbase,
		Timestamp:       time.Now().Unix(),
		Outputs:         []types.TxOutput{{Address: genesisAddress, Amount: genesisReward}},
	}

	genesis := types.Block{
		Index:        0,
		PreviousHash: "0",
		Timestamp:    time.Now().Unix(),
		Transactions: []types.Transaction{coinbase},
	}
	if err := genesis.Mine(cfg.Difficulty); err != nil {
		return nil, fmt.Errorf("mine genesis block: %w", err)
	}

	if err := e.state.ApplyBlock(&genesis); err != nil {
		return nil, fmt.Errorf("apply genesis block: %w", err)
	}
	e.totalSupply = genesisReward
	e.chain = types.Chain{genesis}

	if e.log != nil {
		e.log.Info("genesis block mined", zap.String("hash", genesis.Hash), zap.Float64("reward", genesisReward))
	}
	return e, nil
}

// Directory returns the shared wallet address/public-key registry, for
// callers that need to register or look up wallets against the same
// instance the engine verifies rings against.
func (e *Engine) Directory() *directory.Directory {
	return e.dir
}

// Chain returns a snapshot copy of the current chain.
func (e *Engine) Chain() types.Chain {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(types.Chain, len(e.chain))
	copy(out, e.chain)
	return out
}

// Tip returns the most recently appended block.
func (e *Engine) Tip() types.Block {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chain[len(e.chain)-1]
}

// Balance sums the unspent outputs paying address in the UTXO set. It does
// not re-scan the chain: every UTXO descends from some applied chain
// transaction, so this stands in for spec §4.6.2's chain-scan balance path
// (spec §9 calls for unifying on UTXO validation as authoritative).
func (e *Engine) Balance(address string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Balance(address)
}

// UTXOsByAddress exposes the engine as a wallet.UTXOQuery.
func (e *Engine) UTXOsByAddress(address string) []types.TxOutput {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.UTXOsByAddress(address)
}

// AllUTXOs exposes the engine as a wallet.UTXOQuery.
func (e *Engine) AllUTXOs() []types.TxOutput {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.AllUTXOs()
}

// TotalSupply returns coinbase-minted supply so far.
func (e *Engine) TotalSupply() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalSupply
}

// Mempool returns a snapshot copy of the pending transaction list.
func (e *Engine) Mempool() []types.Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.Transaction, len(e.mempool))
	copy(out, e.mempool)
	return out
}

// PendingCount returns the number of transactions awaiting a block.
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.mempool)
}

// AddTransaction admits tx to the mempool per spec §4.6.2.
func (e *Engine) AddTransaction(tx types.Transaction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addTransactionLocked(tx)
}

func (e *Engine) addTransactionLocked(tx types.Transaction) error {
	if !tx.VerifySignature(e.dir) {
		return nodeerrors.ErrInvalidSignature
	}

	if tx.TxType != types.TxCoinbase && tx.TxType != types.TxAnonymous {
		if tx.SenderPubKey == "" || tx.ReceiverAddress == "" {
			return fmt.Errorf("standard transaction missing sender or receiver: %w", nodeerrors.ErrMalformedBlock)
		}
	}

	if tx.TxType != types.TxCoinbase {
		sender := tx.GetSenderAddress()
		if sender != "" && sender != "ANONYMOUS" {
			if e.state.Balance(sender) < tx.Amount {
				return nodeerrors.ErrInsufficientFunds
			}
		}
	}

	txID, err := tx.ID()
	if err != nil {
		return fmt.Errorf("compute transaction id: %w", err)
	}
	if e.txExistsLocked(txID) {
		return nodeerrors.ErrDuplicateTransaction
	}
	if tx.TxType == types.TxAnonymous && tx.KeyImage != "" && e.state.IsKeyImageSpent(tx.KeyImage) {
		return nodeerrors.ErrDoubleSpendKeyImage
	}

	e.mempool = append(e.mempool, tx)
	return nil
}

func (e *Engine) txExistsLocked(txID string) bool {
	for i := range e.chain {
		for j := range e.chain[i].Transactions {
			if id, err := e.chain[i].Transactions[j].ID(); err == nil && id == txID {
				return true
			}
		}
	}
	for i := range e.mempool {
		if id, err := e.mempool[i].ID(); err == nil && id == txID {
			return true
		}
	}
	return false
}

// ValidateTransactionUTXO is the authoritative UTXO-layer validation path
// from spec §4.6.5.
func (e *Engine) ValidateTransactionUTXO(tx types.Transaction) error {
	if tx.TxType == types.TxCoinbase {
		return nil
	}
	if len(tx.Inputs) == 0 || len(tx.Outputs) == 0 {
		return fmt.Errorf("non-coinbase transaction missing inputs or outputs: %w", nodeerrors.ErrMalformedBlock)
	}

	var inSum, outSum float64
	var inputAddr string
	for _, in := range tx.Inputs {
		utxo, ok := e.state.GetUTXO(ledger.Outpoint{TxID: in.PrevTxID, Index: in.OutputIndex})
		if !ok {
			return nodeerrors.ErrUnknownOutpoint
		}
		inSum += utxo.Amount
		inputAddr = utxo.Address
	}
	for _, out := range tx.Outputs {
		outSum += out.Amount
	}
	const epsilon = 1e-9
	if inSum+epsilon < outSum {
		return fmt.Errorf("inputs %.8f do not cover outputs %.8f: %w", inSum, outSum, nodeerrors.ErrInsufficientFunds)
	}

	switch tx.TxType {
	case types.TxAnonymous:
		if tx.KeyImage != "" && e.state.IsKeyImageSpent(tx.KeyImage) {
			return nodeerrors.ErrDoubleSpendKeyImage
		}
	case types.TxStandard:
		if !tx.VerifySignature(e.dir) {
			return nodeerrors.ErrInvalidSignature
		}
		senderAddr := tx.GetSenderAddress()
		if senderAddr == "" || senderAddr != inputAddr {
			return fmt.Errorf("sender address does not match input owner: %w", nodeerrors.ErrInvalidSignature)
		}
	}
	return nil
}

// MinePending drains the mempool into a new block credited to
// minerAddress, per spec §4.6.3.
func (e *Engine) MinePending(minerAddress string, manifest string) (types.Block, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nextIndex := uint64(len(e.chain))
	reward := e.rewardForBlockLocked(nextIndex)

	coinbase := types.Transaction{
		ReceiverAddress: minerAddress,
		Amount:          reward,
		Signature:       genesisSig,
		TxType:          types.TxCoinbase,
		Timestamp:       time.Now().Unix(),
		Outputs:         []types.TxOutput{{Address: minerAddress, Amount: reward}},
	}

	if e.cfg.AnonBlockInterval > 0 && nextIndex%e.cfg.AnonBlockInterval == 0 {
		marker, err := anonymityMarker(nextIndex, e.cfg.AnonBlockInterval)
		if err != nil {
			return types.Block{}, fmt.Errorf("build anonymity marker: %w", err)
		}
		coinbase.Metadata = marker
		coinbase.Amount += e.cfg.BonusReward
		coinbase.Outputs[0].Amount = coinbase.Amount
	}

	txs := make([]types.Transaction, 0, len(e.mempool)+1)
	txs = append(txs, coinbase)
	txs = append(txs, e.mempool...)

	block := types.Block{
		Index:        nextIndex,
		PreviousHash: e.chain[len(e.chain)-1].Hash,
		Timestamp:    time.Now().Unix(),
		Transactions: txs,
		Manifest:     manifest,
	}
	if err := block.Mine(e.cfg.Difficulty); err != nil {
		return types.Block{}, fmt.Errorf("mine block %d: %w", nextIndex, err)
	}

	if err := e.applyBlockLocked(block); err != nil {
		return types.Block{}, err
	}
	e.mempool = nil

	if e.log != nil {
		e.log.Info("mined block", zap.Uint64("index", block.Index), zap.String("hash", block.Hash), zap.Float64("reward", coinbase.Amount))
	}
	return block, nil
}

// rewardForBlockLocked computes the coinbase reward for the block about to
// be mined at nextIndex, applying halving per spec §4.6.3. Must be called
// with e.mu held.
func (e *Engine) rewardForBlockLocked(nextIndex uint64) float64 {
	if e.totalSupply >= e.cfg.MaxSupply {
		return 0
	}
	if e.cfg.HalvingInterval > 0 && nextIndex > 0 && nextIndex%e.cfg.HalvingInterval == 0 {
		e.currentReward = math.Max(1, math.Floor(e.currentReward/2))
	}
	reward := e.currentReward
	if remaining := e.cfg.MaxSupply - e.totalSupply; reward > remaining {
		reward = remaining
	}
	return reward
}

// anonymityMarker returns the base64 metadata payload attached to an
// anonymity-bonus block's coinbase: a readable marker on even intervals,
// 32 random bytes on odd ones (spec §4.6.3).
func anonymityMarker(blockIndex, interval uint64) (string, error) {
	n := blockIndex / interval
	if n%2 == 0 {
		return base64.StdEncoding.EncodeToString([]byte("anonymity-bonus-block")), nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random marker bytes: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// ApplyBlock validates block as a successor to the current tip and, if
// valid, appends and applies it. Used by p2p when gossip delivers a new
// block (spec §4.7's new_block handler).
func (e *Engine) ApplyBlock(block types.Block) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tip := e.chain[len(e.chain)-1]
	if block.PreviousHash != tip.Hash {
		return fmt.Errorf("previous_hash does not match tip: %w", nodeerrors.ErrMalformedBlock)
	}
	ok, err := block.VerifyProofOfWork(e.cfg.Difficulty)
	if err != nil {
		return fmt.Errorf("verify proof of work: %w", err)
	}
	if !ok {
		return fmt.Errorf("block fails proof-of-work check: %w", nodeerrors.ErrMalformedBlock)
	}

	if err := e.applyBlockLocked(block); err != nil {
		return err
	}
	e.mempool = nil
	return nil
}

func (e *Engine) applyBlockLocked(block types.Block) error {
	if err := e.state.ApplyBlock(&block); err != nil {
		return fmt.Errorf("apply block %d: %w", block.Index, err)
	}
	for i := range block.Transactions {
		if block.Transactions[i].TxType == types.TxCoinbase {
			e.totalSupply += block.Transactions[i].Amount
		}
	}
	e.chain = append(e.chain, block)
	return nil
}

// IsChainValid checks every invariant in spec §4.6.6 against the current
// chain.
func (e *Engine) IsChainValid() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return isChainValid(e.chain, e.cfg.Difficulty)
}

func isChainValid(chain types.Chain, difficulty int) (bool, error) {
	if len(chain) == 0 {
		return false, fmt.Errorf("empty chain: %w", nodeerrors.ErrMalformedBlock)
	}
	for i := range chain {
		ok, err := chain[i].VerifyProofOfWork(difficulty)
		if err != nil {
			return false, fmt.Errorf("recompute hash for block %d: %w", chain[i].Index, err)
		}
		if !ok {
			return false, nil
		}
		if i > 0 && chain[i].PreviousHash != chain[i-1].Hash {
			return false, nil
		}
	}
	return true, nil
}

// RebuildState wipes and replays UTXO/key-image state from the current
// chain (spec §4.6.7).
func (e *Engine) RebuildState() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rebuildStateLocked()
}

func (e *Engine) rebuildStateLocked() error {
	state, err := ledger.Rebuild(e.chain)
	if err != nil {
		return fmt.Errorf("rebuild state: %w", err)
	}
	e.state = state

	var supply float64
	for i := range e.chain {
		for j := range e.chain[i].Transactions {
			if e.chain[i].Transactions[j].TxType == types.TxCoinbase {
				supply += e.chain[i].Transactions[j].Amount
			}
		}
	}
	e.totalSupply = supply
	return nil
}

// ReplaceChain validates candidate and, if internally valid and strictly
// longer than the current chain, replaces it: rebuilds state, clears the
// mempool, per spec §4.7's "blockchain" (full chain) handler.
func (e *Engine) ReplaceChain(candidate types.Chain) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(candidate) <= len(e.chain) {
		return nodeerrors.ErrChainTooShort
	}
	ok, err := isChainValid(candidate, e.cfg.Difficulty)
	if err != nil {
		return fmt.Errorf("validate candidate chain: %w", err)
	}
	if !ok {
		return fmt.Errorf("candidate chain failed validation: %w", nodeerrors.ErrMalformedBlock)
	}

	e.chain = candidate
	e.mempool = nil
	if err := e.rebuildStateLocked(); err != nil {
		return err
	}
	if e.log != nil {
		e.log.Info("replaced chain", zap.Int("new_height", len(candidate)))
	}
	return nil
}

// LoadChain installs chain as-is (used when restoring from storage) and
// rebuilds derived state from it.
func (e *Engine) LoadChain(chain types.Chain) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(chain) == 0 {
		return fmt.Errorf("cannot load an empty chain: %w", nodeerrors.ErrMalformedBlock)
	}
	e.chain = chain
	return e.rebuildStateLocked()
}
