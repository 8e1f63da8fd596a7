package chain

import (
	"crypto/rsa"

	"github.com/tracechain/ledger/foundation/blockchain/signature"
)

func parsePublicKey(tx Transaction) (*rsa.PublicKey, error) {
	if tx.PublicKey == "" {
		return nil, newError(KindInvalidSignature, "transaction carries no public key")
	}

	return signature.ParsePublicKeyPEM(tx.PublicKey)
}

// ValidateChain walks blocks in index order and checks every chain-level
// invariant from §3: genesis identity, hash linkage, proof-of-work,
// transaction signatures, and per-batch action ordering. The checks run in
// passes over the whole chain (linkage, hash and proof-of-work first, then
// signatures, then ordering), and the first failure of the earliest failing
// pass is returned with its block index and kind; a block that fails an
// earlier pass is reported ahead of a lower-indexed block that fails only a
// later one.
func ValidateChain(blocks []Block, difficulty int) error {
	if len(blocks) == 0 {
		return newError(KindChainInvalid, "chain is empty, missing genesis block")
	}

	genesis, err := Genesis()
	if err != nil {
		return err
	}
	if blocks[0].Hash != genesis.Hash || blocks[0].Index != 0 {
		return &ValidationFailure{Index: 0, Kind: "hash-mismatch", Message: "block 0 is not the agreed genesis block"}
	}

	for i := 1; i < len(blocks); i++ {
		if err := ValidateBlock(blocks[i-1], blocks[i], difficulty); err != nil {
			return err
		}
	}

	for _, b := range blocks {
		for _, tx := range b.Transactions {
			if err := validateSignature(tx); err != nil {
				return &ValidationFailure{Index: b.Index, Kind: "bad-signature", Message: err.Error()}
			}
		}
	}

	if err := ValidateSemantics(blocks); err != nil {
		return err
	}

	return nil
}

// validateSignature verifies a sealed transaction against its own embedded
// public key, per invariant 3. Identity binding (does this key actually
// belong to the claimed actor) is an admission-time check, not a chain
// replay check — a chain that was valid when admitted stays valid on replay
// even if a keystore elsewhere later disputes the binding.
func validateSignature(tx Transaction) error {
	if tx.Signature == "" {
		// Unsigned transactions can only have reached a block if the node
		// that mined it ran with RequireSignatures disabled; that is a
		// configuration decision, not a chain-validity failure.
		return nil
	}

	pub, err := parsePublicKey(tx)
	if err != nil {
		return err
	}

	return tx.Verify(pub)
}
