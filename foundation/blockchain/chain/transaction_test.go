package chain_test

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/tracechain/ledger/foundation/blockchain/chain"
)

func genKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("should be able to generate a private key: %s", err)
	}

	return pk
}

func validTx() chain.Transaction {
	return chain.Transaction{
		BatchID:   "BATCH-1",
		Action:    chain.ActionRegistered,
		Actor:     "Supplier_A",
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339Nano),
	}
}

func Test_ValidateShape(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(tx chain.Transaction) chain.Transaction
		wantErr bool
	}{
		{"valid", func(tx chain.Transaction) chain.Transaction { return tx }, false},
		{"missing batch_id", func(tx chain.Transaction) chain.Transaction { tx.BatchID = ""; return tx }, true},
		{"missing actor", func(tx chain.Transaction) chain.Transaction { tx.Actor = ""; return tx }, true},
		{"bad action", func(tx chain.Transaction) chain.Transaction { tx.Action = "bogus"; return tx }, true},
		{"missing timestamp", func(tx chain.Transaction) chain.Transaction { tx.Timestamp = ""; return tx }, true},
		{"bad timestamp", func(tx chain.Transaction) chain.Transaction { tx.Timestamp = "not-a-time"; return tx }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mutate(validTx()).ValidateShape()
			if tt.wantErr && err == nil {
				t.Fatalf("expected an error, got none")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("expected no error, got %s", err)
			}
			if err != nil && !chain.Is(err, chain.KindBadRequest) {
				t.Fatalf("expected KindBadRequest, got %v", err)
			}
		})
	}
}

func Test_SignAndVerify(t *testing.T) {
	pk := genKey(t)

	tx, err := validTx().Sign(pk)
	if err != nil {
		t.Fatalf("should be able to sign a transaction: %s", err)
	}

	if tx.Signature == "" || tx.PublicKey == "" {
		t.Fatalf("signing should populate signature and public_key")
	}

	if err := tx.Verify(&pk.PublicKey); err != nil {
		t.Fatalf("should verify against the signing key: %s", err)
	}

	other := genKey(t)
	if err := tx.Verify(&other.PublicKey); err == nil {
		t.Fatalf("should not verify against a different key")
	}
}

func Test_VerifyUnsigned(t *testing.T) {
	tx := validTx()

	if err := tx.Verify(&genKey(t).PublicKey); err == nil {
		t.Fatalf("expected an error verifying an unsigned transaction")
	}
}

func Test_DedupKey(t *testing.T) {
	a := validTx()
	b := validTx()

	if a.DedupKey() != b.DedupKey() {
		t.Fatalf("identical transactions should have identical dedup keys")
	}

	b.Timestamp = time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC).Format(time.RFC3339Nano)
	if a.DedupKey() == b.DedupKey() {
		t.Fatalf("transactions with different timestamps should have different dedup keys")
	}
}
