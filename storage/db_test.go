package storage

import (
	"testing"

	"github.com/anoncoinproject/anoncoin/types"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := OpenIndex(t.TempDir())
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func sampleChain() types.Chain {
	return types.Chain{
		{
			Index: 0,
			Hash:  "hash0",
			Transactions: []types.Transaction{
				{TxType: types.TxCoinbase, ReceiverAddress: "a", Amount: 50, Outputs: []types.TxOutput{{Address: "a", Amount: 50}}},
			},
		},
		{
			Index: 1,
			Hash:  "hash1",
			Transactions: []types.Transaction{
				{TxType: types.TxCoinbase, ReceiverAddress: "b", Amount: 50, Outputs: []types.TxOutput{{Address: "b", Amount: 50}}},
			},
		},
	}
}

func TestIndex_IndexBlockAndLookup(t *testing.T) {
	idx := openTestIndex(t)
	chain := sampleChain()

	if err := idx.IndexBlock(&chain[0]); err != nil {
		t.Fatalf("index block: %v", err)
	}

	height, found, err := idx.HeightForBlockHash("hash0")
	if err != nil {
		t.Fatalf("height for block hash: %v", err)
	}
	if !found || height != 0 {
		t.Errorf("HeightForBlockHash(hash0) = (%d, %v), want (0, true)", height, found)
	}

	txID, err := chain[0].Transactions[0].ID()
	if err != nil {
		t.Fatalf("compute txid: %v", err)
	}
	height, found, err = idx.HeightForTxID(txID)
	if err != nil {
		t.Fatalf("height for txid: %v", err)
	}
	if !found || height != 0 {
		t.Errorf("HeightForTxID = (%d, %v), want (0, true)", height, found)
	}

	latest, found, err := idx.LatestHeight()
	if err != nil {
		t.Fatalf("latest height: %v", err)
	}
	if !found || latest != 0 {
		t.Errorf("LatestHeight = (%d, %v), want (0, true)", latest, found)
	}
}

func TestIndex_HeightForBlockHash_NotFound(t *testing.T) {
	idx := openTestIndex(t)
	_, found, err := idx.HeightForBlockHash("nonexistent")
	if err != nil {
		t.Fatalf("height for block hash: %v", err)
	}
	if found {
		t.Error("lookup of an unindexed hash should report not found")
	}
}

func TestIndex_Rebuild(t *testing.T) {
	idx := openTestIndex(t)
	chain := sampleChain()
	if err := idx.IndexBlock(&chain[0]); err != nil {
		t.Fatalf("index block 0: %v", err)
	}

	if err := idx.Rebuild(chain); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	latest, found, err := idx.LatestHeight()
	if err != nil {
		t.Fatalf("latest height: %v", err)
	}
	if !found || latest != 1 {
		t.Errorf("LatestHeight after rebuild = (%d, %v), want (1, true)", latest, found)
	}

	height, found, err := idx.HeightForBlockHash("hash1")
	if err != nil {
		t.Fatalf("height for hash1: %v", err)
	}
	if !found || height != 1 {
		t.Errorf("HeightForBlockHash(hash1) after rebuild = (%d, %v), want (1, true)", height, found)
	}
}
