package types

import (
	"testing"

	"github.com/anoncoinproject/anoncoin/crypto"
	"github.com/anoncoinproject/anoncoin/directory"
)

func signedStandardTx(t *testing.T) (*Transaction, *crypto.KeyPair) {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	tx := &Transaction{
		ReceiverAddress: "deadbeef",
		Amount:          10,
		TxType:          TxStandard,
		Timestamp:       1700000000,
	}
	if err := (&signer{kp}).sign(tx); err != nil {
		t.Fatalf("sign transaction: %v", err)
	}
	return tx, kp
}

// signer mirrors wallet.Wallet.SignTransaction's logic without importing
// the wallet package (which itself imports types), avoiding an import cycle.
type signer struct{ kp *crypto.KeyPair }

func (s *signer) sign(tx *Transaction) error {
	tx.SenderPubKey = s.kp.PublicKeyHex()
	msg, err := tx.SigningBytes()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(s.kp.PrivateKey, msg)
	if err != nil {
		return err
	}
	tx.Signature = sig
	return nil
}

func TestTransaction_ID_StableAcrossSigningFields(t *testing.T) {
	tx, _ := signedStandardTx(t)
	id1, err := tx.ID()
	if err != nil {
		t.Fatalf("id: %v", err)
	}

	tx.Signature = "" // mutating the signature must not change the id
	id2, err := tx.ID()
	if err != nil {
		t.Fatalf("id after clearing signature: %v", err)
	}
	if id1 != id2 {
		t.Error("transaction id should not depend on the signature field")
	}
}

func TestTransaction_ID_ChangesWithAmount(t *testing.T) {
	tx, _ := signedStandardTx(t)
	id1, err := tx.ID()
	if err != nil {
		t.Fatalf("id: %v", err)
	}
	tx.Amount = 11
	id2, err := tx.ID()
	if err != nil {
		t.Fatalf("id after amount change: %v", err)
	}
	if id1 == id2 {
		t.Error("changing amount should change the transaction id")
	}
}

func TestTransaction_VerifySignature_Standard(t *testing.T) {
	tx, _ := signedStandardTx(t)
	if !tx.VerifySignature(nil) {
		t.Error("validly signed standard transaction should verify")
	}

	tx.Amount = 999
	if tx.VerifySignature(nil) {
		t.Error("tampering with a signed field should break verification")
	}
}

func TestTransaction_VerifySignature_StandardMissingFields(t *testing.T) {
	tx := &Transaction{TxType: TxStandard, ReceiverAddress: "x", Amount: 1}
	if tx.VerifySignature(nil) {
		t.Error("standard transaction with no sender/signature should not verify")
	}
}

func TestTransaction_VerifySignature_Coinbase(t *testing.T) {
	tx := &Transaction{TxType: TxCoinbase, ReceiverAddress: "x", Amount: 1}
	if !tx.VerifySignature(nil) {
		t.Error("coinbase transactions are trusted by construction")
	}
}

func TestTransaction_VerifySignature_AnonymousWithoutRing(t *testing.T) {
	tx := &Transaction{
		TxType:          TxAnonymous,
		ReceiverAddress: "x",
		Amount:          1,
		Inputs:          []TxInput{{PrevTxID: "a", OutputIndex: 0}},
	}
	if !tx.VerifySignature(nil) {
		t.Error("anonymous transaction without a ring signature should still verify")
	}
}

func anonymousTxWithRing(t *testing.T, realKP *crypto.KeyPair, decoyCount int) *Transaction {
	t.Helper()
	tx := &Transaction{
		TxType:          TxAnonymous,
		ReceiverAddress: "receiver",
		Amount:          1,
		Timestamp:       1700000000,
		Inputs:          []TxInput{{PrevTxID: "a", OutputIndex: 0}},
	}
	msg, err := tx.SigningBytes()
	if err != nil {
		t.Fatalf("signing bytes: %v", err)
	}
	decoys := make([]string, decoyCount)
	sig, err := crypto.BuildRingSignature(realKP, msg, decoys)
	if err != nil {
		t.Fatalf("build ring signature: %v", err)
	}
	tx.RingSignature = &RingSignature{Sigs: sig.Sigs, PubKeys: sig.PubKeys}
	return tx
}

func TestTransaction_VerifySignature_AnonymousWithRing_RequiresRegisteredSigner(t *testing.T) {
	real, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate real key pair: %v", err)
	}
	tx := anonymousTxWithRing(t, real, 2)

	dir := directory.New()
	dir.Register("real-addr", real.PublicKeyHex())
	if !tx.VerifySignature(dir) {
		t.Error("ring signature should verify when the real signer is registered in the directory")
	}
}

func TestTransaction_VerifySignature_AnonymousWithRing_RejectsUnregisteredRing(t *testing.T) {
	real, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate real key pair: %v", err)
	}
	tx := anonymousTxWithRing(t, real, 2)

	if tx.VerifySignature(directory.New()) {
		t.Error("ring signature should not verify when no ring member is a known wallet")
	}
	if tx.VerifySignature(nil) {
		t.Error("ring signature should not verify with no directory at all")
	}
}

func TestTransaction_GetSenderAddress(t *testing.T) {
	tx, kp := signedStandardTx(t)
	if got, want := tx.GetSenderAddress(), kp.Address(); got != want {
		t.Errorf("GetSenderAddress = %s, want %s", got, want)
	}

	anon := &Transaction{TxType: TxAnonymous}
	if got := anon.GetSenderAddress(); got != "ANONYMOUS" {
		t.Errorf("anonymous sender address = %s, want ANONYMOUS", got)
	}

	coinbase := &Transaction{TxType: TxCoinbase}
	if got := coinbase.GetSenderAddress(); got != "" {
		t.Errorf("coinbase sender address = %s, want empty", got)
	}
}

func TestTransaction_Validate(t *testing.T) {
	cases := []struct {
		name    string
		tx      Transaction
		wantErr bool
	}{
		{
			name:    "valid coinbase",
			tx:      Transaction{TxType: TxCoinbase, Outputs: []TxOutput{{Address: "a", Amount: 1}}},
			wantErr: false,
		},
		{
			name:    "coinbase with sender is invalid",
			tx:      Transaction{TxType: TxCoinbase, SenderPubKey: "x", Outputs: []TxOutput{{Address: "a", Amount: 1}}},
			wantErr: true,
		},
		{
			name:    "coinbase with inputs is invalid",
			tx:      Transaction{TxType: TxCoinbase, Inputs: []TxInput{{PrevTxID: "x"}}, Outputs: []TxOutput{{Address: "a", Amount: 1}}},
			wantErr: true,
		},
		{
			name:    "coinbase without exactly one output is invalid",
			tx:      Transaction{TxType: TxCoinbase},
			wantErr: true,
		},
		{
			name:    "valid anonymous",
			tx:      Transaction{TxType: TxAnonymous, Inputs: []TxInput{{PrevTxID: "x"}}},
			wantErr: false,
		},
		{
			name:    "anonymous with sender pubkey is invalid",
			tx:      Transaction{TxType: TxAnonymous, SenderPubKey: "x", Inputs: []TxInput{{PrevTxID: "x"}}},
			wantErr: true,
		},
		{
			name:    "anonymous without inputs is invalid",
			tx:      Transaction{TxType: TxAnonymous},
			wantErr: true,
		},
		{
			name:    "valid standard",
			tx:      Transaction{TxType: TxStandard, SenderPubKey: "x"},
			wantErr: false,
		},
		{
			name:    "standard without sender is invalid",
			tx:      Transaction{TxType: TxStandard},
			wantErr: true,
		},
		{
			name:    "unknown type is invalid",
			tx:      Transaction{TxType: "bogus"},
			wantErr: true,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.tx.Validate()
			if (err != nil) != c.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, c.wantErr)
			}
		})
	}
}
