package chain

import (
	"context"
	"strings"
	"time"

	"github.com/tracechain/ledger/foundation/blockchain/signature"
)

// Block represents a sealed, append-only unit of the chain: a batch of
// transactions plus the proof-of-work linking it to its predecessor.
type Block struct {
	Index        uint64        `json:"index"`
	Timestamp    string        `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	PreviousHash string        `json:"previous_hash"`
	Nonce        uint64        `json:"nonce"`
	Hash         string        `json:"hash"`
}

// hashedFields is the subset of a block that is hashed: everything except
// Hash itself, mirroring the signed/unsigned split on Transaction.
type hashedFields struct {
	Index        uint64        `json:"index"`
	Timestamp    string        `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	PreviousHash string        `json:"previous_hash"`
	Nonce        uint64        `json:"nonce"`
}

func (b Block) hashedFields() hashedFields {
	return hashedFields{
		Index:        b.Index,
		Timestamp:    b.Timestamp,
		Transactions: b.Transactions,
		PreviousHash: b.PreviousHash,
		Nonce:        b.Nonce,
	}
}

// ComputeHash returns the hex SHA-256 hash of the block's canonical JSON
// encoding, excluding the Hash field itself.
func (b Block) ComputeHash() (string, error) {
	return signature.Hash(b.hashedFields())
}

// meetsDifficulty reports whether hash satisfies the proof-of-work
// requirement for the given difficulty: the hex string must begin with
// that many '0' characters.
func meetsDifficulty(hash string, difficulty int) bool {
	if difficulty <= 0 {
		return true
	}
	if len(hash) < difficulty {
		return false
	}
	return strings.Count(hash[:difficulty], "0") == difficulty
}

// MiningCancelledError is returned by Mine when the supplied context is
// cancelled before a solution is found.
type MiningCancelledError struct{}

func (e *MiningCancelledError) Error() string { return "mining cancelled" }

// mineCheckInterval is how often, in nonce attempts, the mining loop checks
// for cancellation — the spec requires at least every 10^4 attempts.
const mineCheckInterval = 10_000

// Mine searches for a nonce that makes candidate's hash satisfy difficulty,
// mutating candidate.Nonce and candidate.Hash in place as it goes. The
// search is single-threaded and checks ctx for cancellation at least every
// mineCheckInterval attempts, returning a *MiningCancelledError if the
// context is done before a solution is found.
func Mine(ctx context.Context, candidate *Block, difficulty int) error {
	var attempts uint64

	for {
		attempts++
		if attempts%mineCheckInterval == 0 {
			if ctx.Err() != nil {
				return &MiningCancelledError{}
			}
		}

		hash, err := candidate.ComputeHash()
		if err != nil {
			return err
		}

		if meetsDifficulty(hash, difficulty) {
			candidate.Hash = hash
			return nil
		}

		candidate.Nonce++
	}
}

// ValidationFailure describes the first invariant a block failed, as
// defined by chain validation (§3/§4.2): a hash mismatch, a broken link to
// the previous block, a proof-of-work that doesn't meet difficulty, an
// unverifiable signature, or a semantic ordering violation.
type ValidationFailure struct {
	Index   uint64
	Kind    string
	Message string
}

func (f *ValidationFailure) Error() string {
	return f.Message
}

func failure(index uint64, kind, format string, args ...any) *ValidationFailure {
	return &ValidationFailure{Index: index, Kind: kind, Message: newError(KindChainInvalid, format, args...).Message}
}

// ValidateBlock checks index continuity, hash linkage, proof-of-work, and
// recomputes the block's own hash against prev. It does not check
// signatures or semantic ordering — those span the whole chain and are
// handled by ValidateChain.
func ValidateBlock(prev, b Block, difficulty int) error {
	if b.Index != prev.Index+1 {
		return failure(b.Index, "link-break", "block %d: expected index %d, got %d", b.Index, prev.Index+1, b.Index)
	}

	if b.PreviousHash != prev.Hash {
		return failure(b.Index, "link-break", "block %d: previous_hash %q does not match prior block hash %q", b.Index, b.PreviousHash, prev.Hash)
	}

	wantHash, err := b.ComputeHash()
	if err != nil {
		return failure(b.Index, "hash-mismatch", "block %d: computing hash: %s", b.Index, err)
	}
	if wantHash != b.Hash {
		return failure(b.Index, "hash-mismatch", "block %d: recorded hash %q does not match computed hash %q", b.Index, b.Hash, wantHash)
	}

	if !meetsDifficulty(b.Hash, difficulty) {
		return failure(b.Index, "bad-pow", "block %d: hash %q does not meet difficulty %d", b.Index, b.Hash, difficulty)
	}

	return nil
}

// nowISO returns the current UTC time formatted to microsecond precision,
// the timestamp resolution the spec requires for submitted transactions
// and sealed blocks alike.
func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000Z")
}
