package state

import (
	"context"
	"time"

	"github.com/tracechain/ledger/foundation/blockchain/chain"
)

// MineOnce attempts a single mining round: snapshot the mempool, search for
// a satisfying nonce, and append the sealed block, gossiping it to every
// known healthy peer before returning (§4.4). Only one attempt runs at a
// time per node; a concurrent call returns ErrMiningBusy immediately rather
// than blocking.
func (s *State) MineOnce(ctx context.Context) (*chain.Block, error) {
	if !s.miningMu.TryLock() {
		return nil, ErrMiningBusy
	}
	defer s.miningMu.Unlock()

	if valid, _ := s.Valid(); !valid {
		return nil, ErrChainInvalid
	}

	txs := s.mempool.Snapshot(s.maxBlockTxs)
	if len(txs) == 0 {
		return nil, ErrNoTransactions
	}

	head, ok := s.Head()
	if !ok {
		return nil, ErrChainInvalid
	}

	candidate := chain.Block{
		Index:        head.Index + 1,
		Timestamp:    time.Now().UTC().Format("2006-01-02T15:04:05.000000Z"),
		Transactions: txs,
		PreviousHash: head.Hash,
	}

	mineCtx, cancel := context.WithCancel(ctx)
	s.setMiningCancel(cancel)
	defer func() {
		s.setMiningCancel(nil)
		cancel()
	}()

	s.evHandler("state: MineOnce: MINING: started: index[%d] txs[%d]", candidate.Index, len(txs))

	if err := chain.Mine(mineCtx, &candidate, s.difficulty); err != nil {
		s.evHandler("state: MineOnce: MINING: abandoned: %s", err)
		return nil, err
	}

	s.evHandler("state: MineOnce: MINING: solved: index[%d] nonce[%d] hash[%s]", candidate.Index, candidate.Nonce, candidate.Hash)

	sealed, err := s.appendMinedBlock(head, candidate, txs)
	if err != nil {
		return nil, err
	}

	s.broadcastBlock(sealed)

	return &sealed, nil
}

// appendMinedBlock persists and adopts a freshly-mined block, but only if
// the head has not moved since mining began — a peer block may have
// extended it while the nonce search was running. A stale candidate is
// discarded and its transactions remain in the mempool for the next round.
func (s *State) appendMinedBlock(headAtStart chain.Block, candidate chain.Block, txs []chain.Transaction) (chain.Block, error) {
	s.mu.Lock()

	currentHead := s.chain[len(s.chain)-1]
	if currentHead.Hash != headAtStart.Hash {
		s.mu.Unlock()
		s.evHandler("state: appendMinedBlock: MINING: stale candidate, head moved to index[%d]", currentHead.Index)
		return chain.Block{}, &chain.MiningCancelledError{}
	}

	if err := s.storage.WriteBlock(candidate); err != nil {
		s.mu.Unlock()
		return chain.Block{}, err
	}

	s.chain = append(s.chain, candidate)
	s.mu.Unlock()

	for _, tx := range txs {
		s.mempool.Remove(tx)
	}

	s.evHandler("state: appendMinedBlock: MINING: appended index[%d]", candidate.Index)

	return candidate, nil
}
