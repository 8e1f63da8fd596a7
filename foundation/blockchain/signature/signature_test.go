package signature_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"testing"

	"github.com/tracechain/ledger/foundation/blockchain/signature"
)

func genKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("should be able to generate a private key: %s", err)
	}

	return pk
}

func Test_SignAndVerify(t *testing.T) {
	pk := genKey(t)

	value := map[string]any{
		"batch_id": "BATCH-1",
		"action":   "registered",
		"actor":    "Supplier_A",
	}

	sig, err := signature.Sign(value, pk)
	if err != nil {
		t.Fatalf("should be able to sign data: %s", err)
	}

	if err := signature.Verify(value, sig, &pk.PublicKey); err != nil {
		t.Fatalf("should be able to verify the signature: %s", err)
	}
}

func Test_VerifyTamperedPayload(t *testing.T) {
	pk := genKey(t)

	value := map[string]any{"batch_id": "BATCH-1", "action": "registered"}
	sig, err := signature.Sign(value, pk)
	if err != nil {
		t.Fatalf("should be able to sign data: %s", err)
	}

	tampered := map[string]any{"batch_id": "BATCH-1", "action": "shipped"}
	if err := signature.Verify(tampered, sig, &pk.PublicKey); err == nil {
		t.Fatal("should not verify a tampered payload")
	}
}

func Test_VerifyWrongKey(t *testing.T) {
	pk := genKey(t)
	other := genKey(t)

	value := map[string]any{"batch_id": "BATCH-1"}
	sig, err := signature.Sign(value, pk)
	if err != nil {
		t.Fatalf("should be able to sign data: %s", err)
	}

	if err := signature.Verify(value, sig, &other.PublicKey); err == nil {
		t.Fatal("should not verify against the wrong public key")
	}
}

func Test_PublicKeyPEMRoundTrip(t *testing.T) {
	pk := genKey(t)

	enc, err := signature.EncodePublicKeyPEM(&pk.PublicKey)
	if err != nil {
		t.Fatalf("should be able to encode public key: %s", err)
	}

	dec, err := signature.ParsePublicKeyPEM(enc)
	if err != nil {
		t.Fatalf("should be able to decode public key: %s", err)
	}

	if dec.N.Cmp(pk.PublicKey.N) != 0 {
		t.Fatal("decoded modulus does not match original")
	}
}

func Test_CanonicalIdempotence(t *testing.T) {
	value := map[string]any{
		"b": 1,
		"a": []any{"x", "y", true, nil},
		"c": map[string]any{"z": 1, "y": 2},
	}

	first, err := signature.Canonical(value)
	if err != nil {
		t.Fatalf("should canonicalize: %s", err)
	}

	var parsed any
	if err := json.Unmarshal(first, &parsed); err != nil {
		t.Fatalf("should unmarshal canonical output: %s", err)
	}

	second, err := signature.Canonical(parsed)
	if err != nil {
		t.Fatalf("should canonicalize the round trip: %s", err)
	}

	if string(first) != string(second) {
		t.Fatalf("canonicalization is not idempotent:\nfirst:  %s\nsecond: %s", first, second)
	}
}
