package state

import (
	"github.com/tracechain/ledger/foundation/blockchain/chain"
	"github.com/tracechain/ledger/foundation/blockchain/signature"
)

// AddTransaction runs the full admission pipeline from §4.3 against tx and,
// if it passes every check, admits it to the mempool: shape, signature,
// identity, duplicate, and semantic order, in that order. It returns a
// *chain.Error whose Kind the HTTP layer maps to a status code.
func (s *State) AddTransaction(tx chain.Transaction) error {
	if valid, msg := s.Valid(); !valid {
		return &chain.Error{Kind: chain.KindChainInvalid, Message: "local chain is invalid: " + msg}
	}

	if err := tx.ValidateShape(); err != nil {
		return err
	}

	if err := s.checkSignature(tx); err != nil {
		return err
	}

	if s.isDuplicate(tx) {
		return &chain.Error{Kind: chain.KindDuplicateTransaction, Message: "transaction already pending or recorded for this batch"}
	}

	prior := s.priorTransactions(tx.BatchID)
	if err := chain.ValidateNext(prior, tx); err != nil {
		return err
	}

	count, added := s.mempool.Add(tx)
	if !added {
		return &chain.Error{Kind: chain.KindDuplicateTransaction, Message: "transaction already pending or recorded for this batch"}
	}

	s.evHandler("state: AddTransaction: admitted batch[%s] action[%s] actor[%s] mempool[%d]", tx.BatchID, tx.Action, tx.Actor, count)

	if count >= s.mempool.Threshold() && s.Worker != nil {
		s.evHandler("state: AddTransaction: mempool threshold reached, signalling mining")
		s.Worker.SignalStartMining()
	}

	return nil
}

// checkSignature enforces step 2 (signature) and step 3 (identity) of §4.3.
// When RequireSignatures is false, an unsigned transaction is admitted as
// long as no signature was attached; a transaction that does carry a
// signature is always verified regardless of the flag.
func (s *State) checkSignature(tx chain.Transaction) error {
	if tx.Signature == "" {
		if s.requireSignatures {
			return &chain.Error{Kind: chain.KindInvalidSignature, Message: "unsigned transactions are not accepted by this node"}
		}
		return nil
	}

	pub, err := signature.ParsePublicKeyPEM(tx.PublicKey)
	if err != nil {
		return &chain.Error{Kind: chain.KindInvalidSignature, Message: err.Error()}
	}

	if err := tx.Verify(pub); err != nil {
		return &chain.Error{Kind: chain.KindInvalidSignature, Message: err.Error()}
	}

	if err := s.keystore.Bind(tx.Actor, pub); err != nil {
		return &chain.Error{Kind: chain.KindUnknownActor, Message: err.Error()}
	}

	return nil
}

// isDuplicate checks mempool membership and sealed-chain membership by
// dedup key (invariant 5).
func (s *State) isDuplicate(tx chain.Transaction) bool {
	if s.mempool.Contains(tx) {
		return true
	}

	key := tx.DedupKey()
	for _, b := range s.RetrieveChain() {
		for _, sealed := range b.Transactions {
			if sealed.DedupKey() == key {
				return true
			}
		}
	}

	return false
}

// priorTransactions gathers every transaction recorded for batchID across
// the sealed chain followed by the current mempool, in that order — the
// projection §4.3 step 5 replays against.
func (s *State) priorTransactions(batchID string) []chain.Transaction {
	var prior []chain.Transaction

	for _, tx := range s.History(batchID) {
		prior = append(prior, tx)
	}

	for _, tx := range s.mempool.Txs() {
		if tx.BatchID == batchID {
			prior = append(prior, tx)
		}
	}

	return prior
}
