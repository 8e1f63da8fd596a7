package chain

// genesisTimestamp is fixed so every node in the network computes the exact
// same genesis hash without needing to exchange a genesis file.
const genesisTimestamp = "2024-01-01T00:00:00.000000Z"

// Genesis returns the fixed genesis block every node starts its chain
// from: index 0, no transactions, and the zero hash as its previous hash.
func Genesis() (Block, error) {
	b := Block{
		Index:        0,
		Timestamp:    genesisTimestamp,
		Transactions: nil,
		PreviousHash: "0",
		Nonce:        0,
	}

	hash, err := b.ComputeHash()
	if err != nil {
		return Block{}, err
	}
	b.Hash = hash

	return b, nil
}
