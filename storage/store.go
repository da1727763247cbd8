package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/anoncoinproject/anoncoin/nodeerrors"
	"github.com/anoncoinproject/anoncoin/types"
)

// Store is the canonical, authoritative on-disk persistence for a node:
// two JSON files, blockchain.json and wallets.json, both tolerant of
// multiple historical shapes on load (spec §6). Writes are whole-file
// replacements via a temp file + rename, single-writer.
type Store struct {
	dir string
}

// NewStore roots a Store at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w: %v", nodeerrors.ErrStorageIO, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(name string) string { return filepath.Join(s.dir, name) }

// blockchainFile is the modern shape written by SaveChain.
type blockchainFile struct {
	Chain               types.Chain        `json:"chain"`
	PendingTransactions []types.Transaction `json:"pending_transactions"`
	Difficulty          int                `json:"difficulty"`
	Rewards             float64            `json:"rewards"`
}

// LoadChain reads blockchain.json, tolerating either the structured shape
// {chain, pending_transactions, difficulty, rewards} or a bare JSON array
// of blocks. A missing or empty file returns a nil chain and no error
// ("fresh state" per spec §6).
func (s *Store) LoadChain() (types.Chain, []types.Transaction, error) {
	data, err := os.ReadFile(s.path("blockchain.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("read blockchain.json: %w: %v", nodeerrors.ErrStorageIO, err)
	}
	if len(data) == 0 {
		return nil, nil, nil
	}

	var bare types.Chain
	if err := json.Unmarshal(data, &bare); err == nil {
		return bare, nil, nil
	}

	var full blockchainFile
	if err := json.Unmarshal(data, &full); err != nil {
		return nil, nil, fmt.Errorf("parse blockchain.json: %w: %v", nodeerrors.ErrStorageIO, err)
	}
	return full.Chain, full.PendingTransactions, nil
}

// SaveChain whole-file-replaces blockchain.json with the structured shape.
func (s *Store) SaveChain(chain types.Chain, pending []types.Transaction, difficulty int, rewards float64) error {
	payload := blockchainFile{
		Chain:               chain,
		PendingTransactions: pending,
		Difficulty:          difficulty,
		Rewards:             rewards,
	}
	return s.writeJSON("blockchain.json", payload)
}

// walletRecord is the modern per-wallet shape keyed by address.
type walletRecord struct {
	PrivateKeyHex string `json:"private_key_hex"`
	PublicKeyHex  string `json:"public_key_hex"`
}

// legacyWalletRecord is an older shape carrying a base64 AES key and a
// seed phrase instead of a raw private key.
type legacyWalletRecord struct {
	AESKey     string `json:"aes_key"`
	SeedPhrase string `json:"seed_phrase"`
	PublicKey  string `json:"public_key_hex"`
}

// WalletEntry is the normalized, in-memory form LoadWallets returns
// regardless of which on-disk shape produced it.
type WalletEntry struct {
	Address       string
	PrivateKeyHex string // empty if only a legacy seed phrase was stored
	PublicKeyHex  string
	SeedPhrase    string // empty unless loaded from a legacy record
}

// LoadWallets reads wallets.json, tolerating both the modern
// address->{private_key_hex, public_key_hex} shape and the legacy shape
// carrying aes_key/seed_phrase. Missing/empty file means no wallets yet.
func (s *Store) LoadWallets() ([]WalletEntry, error) {
	data, err := os.ReadFile(s.path("wallets.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read wallets.json: %w: %v", nodeerrors.ErrStorageIO, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var modern map[string]walletRecord
	if err := json.Unmarshal(data, &modern); err == nil {
		entries := make([]WalletEntry, 0, len(modern))
		allModern := true
		for addr, rec := range modern {
			if rec.PrivateKeyHex == "" {
				allModern = false
				break
			}
			entries = append(entries, WalletEntry{Address: addr, PrivateKeyHex: rec.PrivateKeyHex, PublicKeyHex: rec.PublicKeyHex})
		}
		if allModern {
			return entries, nil
		}
	}

	var legacy map[string]legacyWalletRecord
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("parse wallets.json: %w: %v", nodeerrors.ErrStorageIO, err)
	}
	entries := make([]WalletEntry, 0, len(legacy))
	for addr, rec := range legacy {
		entries = append(entries, WalletEntry{
			Address:      addr,
			PublicKeyHex: rec.PublicKey,
			SeedPhrase:   rec.SeedPhrase,
		})
	}
	return entries, nil
}

// SaveWallets whole-file-replaces wallets.json with the modern shape.
func (s *Store) SaveWallets(entries []WalletEntry) error {
	out := make(map[string]walletRecord, len(entries))
	for _, e := range entries {
		out[e.Address] = walletRecord{PrivateKeyHex: e.PrivateKeyHex, PublicKeyHex: e.PublicKeyHex}
	}
	return s.writeJSON("wallets.json", out)
}

func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w: %v", name, nodeerrors.ErrStorageIO, err)
	}
	tmp := s.path(name + ".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w: %v", name, nodeerrors.ErrStorageIO, err)
	}
	if err := os.Rename(tmp, s.path(name)); err != nil {
		return fmt.Errorf("replace %s: %w: %v", name, nodeerrors.ErrStorageIO, err)
	}
	return nil
}
