package state

import (
	"github.com/tracechain/ledger/foundation/blockchain/chain"
)

// ErrForkDetected is returned by ReceiveBlock when the block does not
// extend the local head, signalling the caller to trigger a full
// longest-valid-chain resolution instead (§4.6).
type ErrForkDetected struct {
	Message string
}

func (e *ErrForkDetected) Error() string { return e.Message }

// ReceiveBlock accepts a block gossiped by a peer. It is appended iff it
// extends the local head exactly and the resulting chain still validates in
// full (hash linkage, PoW, signatures, semantics); any successful append
// cancels an in-flight local mining attempt on the same head, per §4.6.
func (s *State) ReceiveBlock(b chain.Block) error {
	if valid, msg := s.Valid(); !valid {
		return &chain.Error{Kind: chain.KindChainInvalid, Message: "local chain is invalid: " + msg}
	}

	head, ok := s.Head()
	if !ok {
		return &chain.Error{Kind: chain.KindChainInvalid, Message: "local chain has no blocks"}
	}

	if b.PreviousHash != head.Hash || b.Index != head.Index+1 {
		return &ErrForkDetected{Message: "received block does not extend local head"}
	}

	candidateChain := append(s.RetrieveChain(), b)
	if err := chain.ValidateChain(candidateChain, s.difficulty); err != nil {
		return err
	}

	s.mu.Lock()
	currentHead := s.chain[len(s.chain)-1]
	if currentHead.Hash != head.Hash {
		s.mu.Unlock()
		return &ErrForkDetected{Message: "local head advanced while validating received block"}
	}

	if err := s.storage.WriteBlock(b); err != nil {
		s.mu.Unlock()
		return err
	}

	s.chain = append(s.chain, b)
	s.valid = true
	s.validMsg = ""
	s.mu.Unlock()

	for _, tx := range b.Transactions {
		s.mempool.Remove(tx)
	}

	s.evHandler("state: ReceiveBlock: appended index[%d] hash[%s]", b.Index, b.Hash)

	s.callMiningCancel()

	return nil
}
