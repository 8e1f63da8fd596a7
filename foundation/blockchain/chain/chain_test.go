package chain_test

import (
	"context"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/tracechain/ledger/foundation/blockchain/chain"
)

func sealedBlock(t *testing.T, index uint64, prev chain.Block, txs []chain.Transaction) chain.Block {
	t.Helper()

	candidate := &chain.Block{
		Index:        index,
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
		Transactions: txs,
		PreviousHash: prev.Hash,
	}

	if err := chain.Mine(context.Background(), candidate, 0); err != nil {
		t.Fatalf("should be able to mine at difficulty 0: %s", err)
	}

	return *candidate
}

func signedTx(t *testing.T, pk *rsa.PrivateKey, batchID string, action chain.Action, actor string, metadata map[string]string) chain.Transaction {
	t.Helper()

	tx := chain.Transaction{
		BatchID:   batchID,
		Action:    action,
		Actor:     actor,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Metadata:  metadata,
	}

	signed, err := tx.Sign(pk)
	if err != nil {
		t.Fatalf("should be able to sign a transaction: %s", err)
	}

	return signed
}

func Test_ValidateChainAcceptsGenesisOnly(t *testing.T) {
	genesis, err := chain.Genesis()
	if err != nil {
		t.Fatalf("should build genesis: %s", err)
	}

	if err := chain.ValidateChain([]chain.Block{genesis}, 0); err != nil {
		t.Fatalf("a chain of just the genesis block should validate: %s", err)
	}
}

func Test_ValidateChainRejectsEmpty(t *testing.T) {
	if err := chain.ValidateChain(nil, 0); err == nil {
		t.Fatalf("an empty chain should never validate")
	}
}

func Test_ValidateChainRejectsWrongGenesis(t *testing.T) {
	fake := chain.Block{Index: 0, PreviousHash: "0", Hash: "not-the-real-genesis-hash"}

	if err := chain.ValidateChain([]chain.Block{fake}, 0); err == nil {
		t.Fatalf("a forged genesis block should be rejected")
	}
}

func Test_ValidateChainDetectsBrokenLink(t *testing.T) {
	genesis, err := chain.Genesis()
	if err != nil {
		t.Fatalf("should build genesis: %s", err)
	}

	block1 := sealedBlock(t, 1, genesis, nil)
	block1.PreviousHash = "tampered"

	if err := chain.ValidateChain([]chain.Block{genesis, block1}, 0); err == nil {
		t.Fatalf("a tampered previous_hash should be rejected")
	}
}

func Test_ValidateChainDetectsBadSignature(t *testing.T) {
	genesis, err := chain.Genesis()
	if err != nil {
		t.Fatalf("should build genesis: %s", err)
	}

	supplierKey := genKey(t)
	tx := signedTx(t, supplierKey, "BATCH-1", chain.ActionRegistered, "Supplier_A", nil)
	tx.Signature = signedTx(t, genKey(t), "BATCH-1", chain.ActionRegistered, "Supplier_A", nil).Signature

	block1 := sealedBlock(t, 1, genesis, []chain.Transaction{tx})

	if err := chain.ValidateChain([]chain.Block{genesis, block1}, 0); err == nil {
		t.Fatalf("a transaction signed by a different key should fail verification")
	}
}

func Test_ValidateChainDetectsOrderViolation(t *testing.T) {
	genesis, err := chain.Genesis()
	if err != nil {
		t.Fatalf("should build genesis: %s", err)
	}

	supplierKey := genKey(t)
	shipped := signedTx(t, supplierKey, "BATCH-1", chain.ActionShipped, "Supplier_A", nil)

	block1 := sealedBlock(t, 1, genesis, []chain.Transaction{shipped})

	if err := chain.ValidateChain([]chain.Block{genesis, block1}, 0); err == nil {
		t.Fatalf("shipping before registration should be an order violation")
	}
}

func Test_ValidateChainAcceptsFullJourney(t *testing.T) {
	genesis, err := chain.Genesis()
	if err != nil {
		t.Fatalf("should build genesis: %s", err)
	}

	supplierKey := genKey(t)
	distributorKey := genKey(t)
	retailerKey := genKey(t)

	blocks := []chain.Block{genesis}
	prev := genesis

	steps := []struct {
		action chain.Action
		key    *rsa.PrivateKey
		actor  string
		meta   map[string]string
	}{
		{chain.ActionRegistered, supplierKey, "Supplier_A", nil},
		{chain.ActionQualityChecked, supplierKey, "Supplier_A", map[string]string{"result": "passed"}},
		{chain.ActionShipped, supplierKey, "Supplier_A", map[string]string{"to": "Distributor_B"}},
		{chain.ActionReceived, distributorKey, "Distributor_B", map[string]string{"from": "Supplier_A"}},
		{chain.ActionStored, distributorKey, "Distributor_B", nil},
		{chain.ActionDelivered, distributorKey, "Distributor_B", map[string]string{"to": "Retailer_C"}},
		{chain.ActionReceivedRetail, retailerKey, "Retailer_C", map[string]string{"from": "Distributor_B"}},
		{chain.ActionSold, retailerKey, "Retailer_C", nil},
	}

	for i, step := range steps {
		tx := signedTx(t, step.key, "BATCH-1", step.action, step.actor, step.meta)
		b := sealedBlock(t, uint64(i+1), prev, []chain.Transaction{tx})
		blocks = append(blocks, b)
		prev = b
	}

	if err := chain.ValidateChain(blocks, 0); err != nil {
		t.Fatalf("a full legal journey should validate: %s", err)
	}
}
