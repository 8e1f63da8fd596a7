package chain_test

import (
	"testing"

	"github.com/tracechain/ledger/foundation/blockchain/chain"
)

func Test_GenesisDeterministic(t *testing.T) {
	a, err := chain.Genesis()
	if err != nil {
		t.Fatalf("should be able to build the genesis block: %s", err)
	}

	b, err := chain.Genesis()
	if err != nil {
		t.Fatalf("should be able to build the genesis block: %s", err)
	}

	if a.Hash != b.Hash {
		t.Fatalf("every node should compute the same genesis hash, got %q and %q", a.Hash, b.Hash)
	}

	if a.Index != 0 || a.PreviousHash != "0" {
		t.Fatalf("genesis block should have index 0 and previous_hash \"0\"")
	}
}
