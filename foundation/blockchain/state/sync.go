package state

import (
	"context"

	"github.com/tracechain/ledger/foundation/blockchain/chain"
)

// TriggerSync asks the background worker to run a longest-valid-chain
// resolution as soon as possible, e.g. because a received block forked from
// the local head or an explicit POST /sync arrived. It is a no-op before
// the worker has registered itself.
func (s *State) TriggerSync() {
	if s.Worker != nil {
		s.Worker.SignalSync()
	}
}

// Sync runs the longest-valid-chain resolution rule (§4.6): ask every
// healthy peer for its chain, validate each candidate in full, and adopt
// the longest one that is both strictly longer than the local chain and
// fully valid. Ties on length keep the local chain. It reports whether a
// replacement happened and the resulting chain length.
func (s *State) Sync(ctx context.Context) (synced bool, length int) {
	localLen := s.ChainLength()

	var best []chain.Block

	for _, p := range s.peers.Healthy() {
		candidate, err := s.fetchChain(ctx, p)
		if err != nil {
			s.evHandler("state: Sync: peer[%s]: WARNING: %s", p, err)
			continue
		}

		if err := chain.ValidateChain(candidate, s.difficulty); err != nil {
			s.evHandler("state: Sync: peer[%s]: candidate chain invalid: %s", p, err)
			continue
		}

		if len(candidate) > localLen && len(candidate) > len(best) {
			best = candidate
		}
	}

	if best == nil {
		return false, localLen
	}

	s.adoptChain(best)

	s.evHandler("state: Sync: adopted longer valid chain: length[%d]->[%d]", localLen, len(best))

	return true, len(best)
}

// Revalidate re-checks the local chain against every invariant, updating
// the recorded valid flag/message. It is what the background validator
// calls on its own schedule and what triggers auto-heal on failure (§4.6).
func (s *State) Revalidate() (valid bool, message string) {
	blocks := s.RetrieveChain()

	err := chain.ValidateChain(blocks, s.difficulty)

	s.mu.Lock()
	if err != nil {
		s.valid = false
		s.validMsg = err.Error()
	} else {
		s.valid = true
		s.validMsg = ""
	}
	valid, message = s.valid, s.validMsg
	s.mu.Unlock()

	return valid, message
}

// AutoHeal replaces local state wholesale with the longest strictly-valid
// chain any healthy peer offers, regardless of whether it is longer than
// the (invalid) local chain — an invalid local chain has no valid length to
// compare against. If no peer has a valid chain, the node remains invalid
// and Revalidate's message stands.
func (s *State) AutoHeal(ctx context.Context) (healed bool) {
	var best []chain.Block

	for _, p := range s.peers.Healthy() {
		candidate, err := s.fetchChain(ctx, p)
		if err != nil {
			s.evHandler("state: AutoHeal: peer[%s]: WARNING: %s", p, err)
			continue
		}

		if err := chain.ValidateChain(candidate, s.difficulty); err != nil {
			s.evHandler("state: AutoHeal: peer[%s]: candidate chain invalid: %s", p, err)
			continue
		}

		if len(candidate) > len(best) {
			best = candidate
		}
	}

	if best == nil {
		s.evHandler("state: AutoHeal: no peer offered a valid chain, remaining invalid")
		return false
	}

	s.adoptChain(best)

	s.evHandler("state: AutoHeal: healed from peer chain: length[%d]", len(best))

	return true
}

// adoptChain replaces the in-memory and on-disk chain with blocks, which
// the caller has already validated in full, and prunes any mempool entries
// the adopted chain now includes.
func (s *State) adoptChain(blocks []chain.Block) {
	s.mu.Lock()
	s.chain = blocks
	s.valid = true
	s.validMsg = ""
	s.mu.Unlock()

	if err := s.storage.Reset(); err != nil {
		s.evHandler("state: adoptChain: WARNING: resetting storage: %s", err)
	}
	for _, b := range blocks {
		if err := s.storage.WriteBlock(b); err != nil {
			s.evHandler("state: adoptChain: WARNING: persisting block[%d]: %s", b.Index, err)
		}
	}

	for _, b := range blocks {
		for _, tx := range b.Transactions {
			s.mempool.Remove(tx)
		}
	}
}
