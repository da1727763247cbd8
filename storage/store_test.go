package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/anoncoinproject/anoncoin/types"
)

func TestStore_LoadChain_MissingFileReturnsEmpty(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	chain, pending, err := store.LoadChain()
	if err != nil {
		t.Fatalf("load chain: %v", err)
	}
	if chain != nil || pending != nil {
		t.Errorf("expected nil chain/pending for a fresh data dir, got %v / %v", chain, pending)
	}
}

func TestStore_SaveAndLoadChain_RoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	chain := types.Chain{
		{Index: 0, Hash: "genesis-hash", Transactions: []types.Transaction{
			{TxType: types.TxCoinbase, ReceiverAddress: "addr", Amount: 50, Outputs: []types.TxOutput{{Address: "addr", Amount: 50}}},
		}},
	}
	pending := []types.Transaction{
		{TxType: types.TxStandard, SenderPubKey: "x", ReceiverAddress: "y", Amount: 1},
	}

	if err := store.SaveChain(chain, pending, 3, 50); err != nil {
		t.Fatalf("save chain: %v", err)
	}

	gotChain, gotPending, err := store.LoadChain()
	if err != nil {
		t.Fatalf("load chain: %v", err)
	}
	if len(gotChain) != 1 || gotChain[0].Hash != "genesis-hash" {
		t.Errorf("loaded chain = %+v, want one block with hash genesis-hash", gotChain)
	}
	if len(gotPending) != 1 || gotPending[0].ReceiverAddress != "y" {
		t.Errorf("loaded pending = %+v, want one transaction to y", gotPending)
	}
}

func TestStore_LoadChain_ToleratesBareArrayShape(t *testing.T) {
	dir := t.TempDir()
	bare := `[{"index":0,"hash":"abc","previous_hash":"0","timestamp":1,"nonce":0,"transactions":[]}]`
	if err := os.WriteFile(filepath.Join(dir, "blockchain.json"), []byte(bare), 0o644); err != nil {
		t.Fatalf("write bare chain file: %v", err)
	}
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	chain, pending, err := store.LoadChain()
	if err != nil {
		t.Fatalf("load chain: %v", err)
	}
	if len(chain) != 1 || chain[0].Hash != "abc" {
		t.Errorf("loaded chain = %+v, want one block with hash abc", chain)
	}
	if pending != nil {
		t.Errorf("bare array shape carries no pending transactions, got %+v", pending)
	}
}

func TestStore_SaveAndLoadWallets_RoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	entries := []WalletEntry{
		{Address: "addr1", PrivateKeyHex: "priv1", PublicKeyHex: "pub1"},
		{Address: "addr2", PrivateKeyHex: "priv2", PublicKeyHex: "pub2"},
	}
	if err := store.SaveWallets(entries); err != nil {
		t.Fatalf("save wallets: %v", err)
	}

	got, err := store.LoadWallets()
	if err != nil {
		t.Fatalf("load wallets: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("loaded %d wallets, want 2", len(got))
	}
	byAddr := make(map[string]WalletEntry, len(got))
	for _, e := range got {
		byAddr[e.Address] = e
	}
	if byAddr["addr1"].PrivateKeyHex != "priv1" || byAddr["addr1"].PublicKeyHex != "pub1" {
		t.Errorf("addr1 entry = %+v, want priv1/pub1", byAddr["addr1"])
	}
}

func TestStore_LoadWallets_ToleratesLegacyShape(t *testing.T) {
	dir := t.TempDir()
	legacy := `{"addr1":{"aes_key":"base64key","seed_phrase":"a b c","public_key_hex":"pub1"}}`
	if err := os.WriteFile(filepath.Join(dir, "wallets.json"), []byte(legacy), 0o644); err != nil {
		t.Fatalf("write legacy wallets file: %v", err)
	}
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	got, err := store.LoadWallets()
	if err != nil {
		t.Fatalf("load wallets: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("loaded %d wallets, want 1", len(got))
	}
	if got[0].PublicKeyHex != "pub1" || got[0].SeedPhrase != "a b c" {
		t.Errorf("legacy entry = %+v, want public_key_hex pub1 and seed_phrase 'a b c'", got[0])
	}
}

func TestStore_LoadWallets_MissingFileReturnsEmpty(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	got, err := store.LoadWallets()
	if err != nil {
		t.Fatalf("load wallets: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil wallets for a fresh data dir, got %v", got)
	}
}
