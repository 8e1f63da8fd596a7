package chain

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/tracechain/ledger/foundation/blockchain/signature"
)

// Action identifies one step of a batch's journey through the supply
// chain.
type Action string

// The allowed actions, in the order the state machine expects them.
const (
	ActionRegistered     Action = "registered"
	ActionQualityChecked Action = "quality_checked"
	ActionShipped        Action = "shipped"
	ActionReceived       Action = "received"
	ActionStored         Action = "stored"
	ActionDelivered      Action = "delivered"
	ActionReceivedRetail Action = "received_retail"
	ActionSold           Action = "sold"
)

// validActions is used to check shape admission: the action must be one of
// these.
var validActions = map[Action]bool{
	ActionRegistered:     true,
	ActionQualityChecked: true,
	ActionShipped:        true,
	ActionReceived:       true,
	ActionStored:         true,
	ActionDelivered:      true,
	ActionReceivedRetail: true,
	ActionSold:           true,
}

// Transaction represents a signed business event submitted against a batch.
type Transaction struct {
	BatchID   string            `json:"batch_id"`
	Action    Action            `json:"action"`
	Actor     string            `json:"actor"`
	Timestamp string            `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Signature string            `json:"signature,omitempty"`
	PublicKey string            `json:"public_key,omitempty"`
}

// signedFields is the subset of a transaction that is signed and hashed:
// every field except Signature and PublicKey. Keeping it a distinct type
// (rather than zeroing those two fields on Transaction) makes it impossible
// to accidentally include them in the canonical encoding.
type signedFields struct {
	BatchID   string            `json:"batch_id"`
	Action    Action            `json:"action"`
	Actor     string            `json:"actor"`
	Timestamp string            `json:"timestamp"`
	Metadata  map[string]string `json:"metadata"`
}

// SignedFields returns the portion of the transaction that is signed. A nil
// Metadata is normalized to an empty map so the canonical encoding always
// carries a "metadata" object, matching the original signer's behavior of
// always including the key even when there is nothing in it.
func (tx Transaction) SignedFields() signedFields {
	metadata := tx.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	return signedFields{
		BatchID:   tx.BatchID,
		Action:    tx.Action,
		Actor:     tx.Actor,
		Timestamp: tx.Timestamp,
		Metadata:  metadata,
	}
}

// ValidateShape checks that every required field is present, the action is
// one of the allowed values, and the timestamp parses as RFC3339/ISO-8601.
func (tx Transaction) ValidateShape() error {
	if tx.BatchID == "" {
		return newError(KindBadRequest, "batch_id is required")
	}
	if tx.Actor == "" {
		return newError(KindBadRequest, "actor is required")
	}
	if !validActions[tx.Action] {
		return newError(KindBadRequest, "action %q is not a recognized action", tx.Action)
	}
	if tx.Timestamp == "" {
		return newError(KindBadRequest, "timestamp is required")
	}
	if _, err := time.Parse(time.RFC3339Nano, tx.Timestamp); err != nil {
		if _, err2 := time.Parse(time.RFC3339, tx.Timestamp); err2 != nil {
			return newError(KindBadRequest, "timestamp %q is not a valid ISO-8601 timestamp", tx.Timestamp)
		}
	}

	return nil
}

// Verify checks the transaction's signature over its signed fields against
// the supplied public key.
func (tx Transaction) Verify(pub *rsa.PublicKey) error {
	if tx.Signature == "" {
		return newError(KindInvalidSignature, "transaction carries no signature")
	}

	if err := signature.Verify(tx.SignedFields(), tx.Signature, pub); err != nil {
		return newError(KindInvalidSignature, "signature verification failed for actor %q", tx.Actor)
	}

	return nil
}

// Sign produces a signature over the transaction's signed fields, setting
// Signature and PublicKey. It exists for tests and tooling that need to
// mint valid transactions without going through an external façade.
func (tx Transaction) Sign(privateKey *rsa.PrivateKey) (Transaction, error) {
	sig, err := signature.Sign(tx.SignedFields(), privateKey)
	if err != nil {
		return Transaction{}, err
	}

	pubPEM, err := signature.EncodePublicKeyPEM(&privateKey.PublicKey)
	if err != nil {
		return Transaction{}, err
	}

	tx.Signature = sig
	tx.PublicKey = pubPEM

	return tx, nil
}

// DedupKey returns the identity used to detect admitting the same signed
// transaction twice: (batch_id, action, actor, timestamp).
func (tx Transaction) DedupKey() string {
	return fmt.Sprintf("%s|%s|%s|%s", tx.BatchID, tx.Action, tx.Actor, tx.Timestamp)
}

// SignatureFingerprint returns a short, stable fingerprint of the
// transaction's signature for use in log lines, so full base64 signatures
// never get spammed into logs.
func (tx Transaction) SignatureFingerprint() string {
	if tx.Signature == "" {
		return "unsigned"
	}

	sum := sha256.Sum256([]byte(tx.Signature))
	return base64.RawStdEncoding.EncodeToString(sum[:])[:16]
}
