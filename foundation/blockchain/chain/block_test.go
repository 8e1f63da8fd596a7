package chain_test

import (
	"context"
	"testing"
	"time"

	"github.com/tracechain/ledger/foundation/blockchain/chain"
)

func Test_MineMeetsDifficulty(t *testing.T) {
	genesis, err := chain.Genesis()
	if err != nil {
		t.Fatalf("should build genesis: %s", err)
	}

	candidate := &chain.Block{
		Index:        1,
		Timestamp:    "2026-01-01T00:00:00.000000Z",
		PreviousHash: genesis.Hash,
	}

	const difficulty = 1
	if err := chain.Mine(context.Background(), candidate, difficulty); err != nil {
		t.Fatalf("should be able to mine at low difficulty: %s", err)
	}

	if err := chain.ValidateBlock(genesis, *candidate, difficulty); err != nil {
		t.Fatalf("mined block should validate against its parent: %s", err)
	}
}

func Test_MineCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	candidate := &chain.Block{Index: 1, PreviousHash: "0"}

	err := chain.Mine(ctx, candidate, 8)
	if _, ok := err.(*chain.MiningCancelledError); !ok {
		t.Fatalf("expected a *MiningCancelledError, got %v", err)
	}
}

func Test_ValidateBlockRejectsBrokenLink(t *testing.T) {
	genesis, err := chain.Genesis()
	if err != nil {
		t.Fatalf("should build genesis: %s", err)
	}

	bad := genesis
	bad.Index = 5
	bad.PreviousHash = "not-the-real-hash"

	if err := chain.ValidateBlock(genesis, bad, 0); err == nil {
		t.Fatalf("expected a link-break validation failure")
	}
}

func Test_MeetsDifficultyViaMine(t *testing.T) {
	candidate := &chain.Block{Index: 1, Timestamp: time.Now().UTC().Format(time.RFC3339Nano), PreviousHash: "0"}

	if err := chain.Mine(context.Background(), candidate, 0); err != nil {
		t.Fatalf("difficulty 0 should always succeed immediately: %s", err)
	}
}
