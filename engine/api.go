package engine

import (
	"fmt"
	"time"

	"github.com/anoncoinproject/anoncoin/types"
	"github.com/anoncoinproject/anoncoin/wallet"
)

// ChainInfo summarizes engine state for the management API (spec §6).
type ChainInfo struct {
	BlockCount   int     `json:"block_count"`
	TotalSupply  float64 `json:"total_supply"`
	PendingCount int     `json:"pending_count"`
	Valid        bool    `json:"valid"`
}

// API is the interface the out-of-scope HTTP/JSON management surface and
// console UI consume; the core only commits to this boundary (spec §6).
type API interface {
	ChainInfo() (ChainInfo, error)
	CreateWallet() (*wallet.Wallet, error)
	RecoverWallet(privHex string) (*wallet.Wallet, error)
	Balance(address string) float64
	SubmitTransaction(tx types.Transaction, anonymous bool) error
	MinePending(minerAddress, manifest string) (types.Block, error)
}

var _ API = (*Engine)(nil)

// ChainInfo reports block count, total supply, pending tx count, and
// current chain validity.
func (e *Engine) ChainInfo() (ChainInfo, error) {
	valid, err := e.IsChainValid()
	if err != nil {
		return ChainInfo{}, err
	}
	return ChainInfo{
		BlockCount:   len(e.Chain()),
		TotalSupply:  e.TotalSupply(),
		PendingCount: e.PendingCount(),
		Valid:        valid,
	}, nil
}

// CreateWallet generates a fresh wallet and registers its public key in
// the engine's shared directory so it can participate as a ring member.
func (e *Engine) CreateWallet() (*wallet.Wallet, error) {
	w, err := wallet.New()
	if err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	if e.dir != nil {
		e.dir.Register(w.Address(), w.PublicKeyHex())
	}
	return w, nil
}

// RecoverWallet loads a wallet from a hex private key and registers it.
func (e *Engine) RecoverWallet(privHex string) (*wallet.Wallet, error) {
	w, err := wallet.FromPrivateKey(privHex)
	if err != nil {
		return nil, fmt.Errorf("recover wallet: %w", err)
	}
	if e.dir != nil {
		e.dir.Register(w.Address(), w.PublicKeyHex())
	}
	return w, nil
}

// SubmitTransaction admits a pre-built transaction through AddTransaction,
// stamping the current time if tx.Timestamp is zero. Anonymous
// transactions must already be fully assembled (for example via
// wallet.CreateAnonymousTransaction). When anonymous is true and tx is not
// of the anonymous type, the submission is rejected; otherwise the flag
// does not change how tx is validated (spec §6's "submit transaction
// (transparent or anonymous flag)").
func (e *Engine) SubmitTransaction(tx types.Transaction, anonymous bool) error {
	if anonymous && tx.TxType != types.TxAnonymous {
		return fmt.Errorf("anonymous submission flag set but transaction type is %q", tx.TxType)
	}
	if tx.Timestamp == 0 {
		tx.Timestamp = time.Now().Unix()
	}
	return e.AddTransaction(tx)
}
