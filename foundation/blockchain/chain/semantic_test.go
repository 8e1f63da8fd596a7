package chain_test

import (
	"testing"
	"time"

	"github.com/tracechain/ledger/foundation/blockchain/chain"
)

func tx(batchID string, action chain.Action, actor string, meta map[string]string) chain.Transaction {
	return chain.Transaction{
		BatchID:   batchID,
		Action:    action,
		Actor:     actor,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Metadata:  meta,
	}
}

func Test_ValidateNextEnforcesOrder(t *testing.T) {
	registered := tx("BATCH-1", chain.ActionRegistered, "Supplier_A", nil)
	shipped := tx("BATCH-1", chain.ActionShipped, "Supplier_A", nil)

	if err := chain.ValidateNext(nil, shipped); err == nil {
		t.Fatalf("shipping before registration should be rejected")
	}

	if err := chain.ValidateNext([]chain.Transaction{registered}, shipped); err == nil {
		t.Fatalf("shipping before a quality check should be rejected")
	}
}

func Test_ValidateNextEnforcesRole(t *testing.T) {
	registeredByDistributor := tx("BATCH-1", chain.ActionRegistered, "Distributor_B", nil)

	if err := chain.ValidateNext(nil, registeredByDistributor); err == nil {
		t.Fatalf("only a supplier should be able to register a batch")
	}
}

func Test_ValidateNextBlocksShipmentAfterFailedQualityCheck(t *testing.T) {
	prior := []chain.Transaction{
		tx("BATCH-1", chain.ActionRegistered, "Supplier_A", nil),
		tx("BATCH-1", chain.ActionQualityChecked, "Supplier_A", map[string]string{"result": "failed"}),
	}
	shipped := tx("BATCH-1", chain.ActionShipped, "Supplier_A", nil)

	if err := chain.ValidateNext(prior, shipped); err == nil {
		t.Fatalf("shipping a batch that failed its quality check should be rejected")
	}
}

func Test_ValidateNextEnforcesOwnershipContinuity(t *testing.T) {
	prior := []chain.Transaction{
		tx("BATCH-1", chain.ActionRegistered, "Supplier_A", nil),
	}
	byImposter := tx("BATCH-1", chain.ActionQualityChecked, "Supplier_B", nil)

	if err := chain.ValidateNext(prior, byImposter); err == nil {
		t.Fatalf("a different supplier should not be able to continue another supplier's batch")
	}
}

func Test_ValidateNextEnforcesHandoffMatch(t *testing.T) {
	prior := []chain.Transaction{
		tx("BATCH-1", chain.ActionRegistered, "Supplier_A", nil),
		tx("BATCH-1", chain.ActionQualityChecked, "Supplier_A", map[string]string{"result": "passed"}),
		tx("BATCH-1", chain.ActionShipped, "Supplier_A", map[string]string{"to": "Distributor_B"}),
	}

	wrongReceiver := tx("BATCH-1", chain.ActionReceived, "Distributor_X", nil)
	if err := chain.ValidateNext(prior, wrongReceiver); err == nil {
		t.Fatalf("a shipment should only be receivable by its named recipient")
	}

	rightReceiver := tx("BATCH-1", chain.ActionReceived, "Distributor_B", nil)
	if err := chain.ValidateNext(prior, rightReceiver); err != nil {
		t.Fatalf("the named recipient should be able to receive the shipment: %s", err)
	}
}

func Test_ValidateSemanticsReplaysWholeChain(t *testing.T) {
	genesis, err := chain.Genesis()
	if err != nil {
		t.Fatalf("should build genesis: %s", err)
	}

	block1 := chain.Block{
		Index:        1,
		PreviousHash: genesis.Hash,
		Transactions: []chain.Transaction{tx("BATCH-1", chain.ActionRegistered, "Supplier_A", nil)},
	}
	block2 := chain.Block{
		Index:        2,
		PreviousHash: genesis.Hash,
		Transactions: []chain.Transaction{tx("BATCH-1", chain.ActionShipped, "Supplier_A", nil)},
	}

	if err := chain.ValidateSemantics([]chain.Block{genesis, block1, block2}); err == nil {
		t.Fatalf("shipping before a quality check should be caught by a full chain replay")
	}
}

func Test_BatchHistory(t *testing.T) {
	genesis, err := chain.Genesis()
	if err != nil {
		t.Fatalf("should build genesis: %s", err)
	}

	block1 := chain.Block{
		Index: 1,
		Transactions: []chain.Transaction{
			tx("BATCH-1", chain.ActionRegistered, "Supplier_A", nil),
			tx("BATCH-2", chain.ActionRegistered, "Supplier_A", nil),
		},
	}

	history := chain.BatchHistory([]chain.Block{genesis, block1}, "BATCH-1")
	if len(history) != 1 {
		t.Fatalf("expected exactly one transaction for BATCH-1, got %d", len(history))
	}
}
