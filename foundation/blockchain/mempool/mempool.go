// Package mempool maintains the node-local pool of admitted but unmined
// transactions. It is grounded on the teacher's foundation/blockchain/mempool
// package: a locked map plus an insertion-order index, adapted from the
// teacher's account:nonce keying to the ledger's (batch_id, action, actor,
// timestamp) dedup key, and without a tip-based selection strategy since
// this ledger has no fee market — the only ordering the spec promises is
// insertion order (§5).
package mempool

import (
	"sync"

	"github.com/tracechain/ledger/foundation/blockchain/chain"
)

// Config bounds the pool's behavior: Threshold is the size at which the
// miner should be triggered immediately (§4.3); HardCap is the point past
// which the oldest unsigned entries get dropped to bound memory, never
// signed ones. Duplicates never enter the pool, since Add rejects them.
type Config struct {
	Threshold int
	HardCap   int
}

// DefaultConfig matches the spec's stated defaults.
func DefaultConfig() Config {
	return Config{Threshold: 10, HardCap: 500}
}

// Mempool is a locked, order-preserving set of pending transactions,
// deduplicated by Transaction.DedupKey.
type Mempool struct {
	mu     sync.RWMutex
	pool   map[string]chain.Transaction
	order  []string
	config Config
}

// New constructs an empty mempool with the given bounds.
func New(cfg Config) *Mempool {
	return &Mempool{
		pool:   make(map[string]chain.Transaction),
		config: cfg,
	}
}

// Count returns the number of pending transactions.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.order)
}

// Threshold reports the configured auto-mine trigger size.
func (mp *Mempool) Threshold() int {
	return mp.config.Threshold
}

// Contains reports whether a transaction with the same dedup key is
// already pending.
func (mp *Mempool) Contains(tx chain.Transaction) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	_, exists := mp.pool[tx.DedupKey()]
	return exists
}

// Add inserts tx into the pool. It reports false without modifying the
// pool if an identical transaction (by dedup key) is already pending —
// this is the mempool half of invariant 5, de-dup.
func (mp *Mempool) Add(tx chain.Transaction) (count int, added bool) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	key := tx.DedupKey()
	if _, exists := mp.pool[key]; exists {
		return len(mp.order), false
	}

	mp.pool[key] = tx
	mp.order = append(mp.order, key)

	mp.evictOverCapLocked()

	return len(mp.order), true
}

// Remove deletes tx from the pool, if present. It is used when a sealed
// block (mined locally, received, or adopted during sync) absorbs a
// transaction.
func (mp *Mempool) Remove(tx chain.Transaction) {
	mp.removeKey(tx.DedupKey())
}

func (mp *Mempool) removeKey(key string) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if _, exists := mp.pool[key]; !exists {
		return
	}

	delete(mp.pool, key)
	for i, k := range mp.order {
		if k == key {
			mp.order = append(mp.order[:i], mp.order[i+1:]...)
			break
		}
	}
}

// Snapshot returns up to max pending transactions in insertion order. A
// non-positive max returns every pending transaction.
func (mp *Mempool) Snapshot(max int) []chain.Transaction {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	n := len(mp.order)
	if max > 0 && max < n {
		n = max
	}

	txs := make([]chain.Transaction, 0, n)
	for _, key := range mp.order[:n] {
		txs = append(txs, mp.pool[key])
	}

	return txs
}

// Txs returns every pending transaction in insertion order, the view the
// semantic validator replays against when admitting a new one.
func (mp *Mempool) Txs() []chain.Transaction {
	return mp.Snapshot(-1)
}

// Truncate removes every pending transaction from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]chain.Transaction)
	mp.order = nil
}

// evictOverCapLocked drops the oldest unsigned entries once the pool grows
// past HardCap. Signed transactions are never dropped here — they remain
// pending until mined, matching the spec's "never dropped silently" rule
// for valid signed entries. The caller must hold mp.mu.
func (mp *Mempool) evictOverCapLocked() {
	if mp.config.HardCap <= 0 {
		return
	}

	for len(mp.order) > mp.config.HardCap {
		evicted := false

		for i, key := range mp.order {
			if mp.pool[key].Signature == "" {
				delete(mp.pool, key)
				mp.order = append(mp.order[:i], mp.order[i+1:]...)
				evicted = true
				break
			}
		}

		if !evicted {
			// Every remaining entry is signed; stop rather than drop a
			// valid signed transaction silently.
			return
		}
	}
}
