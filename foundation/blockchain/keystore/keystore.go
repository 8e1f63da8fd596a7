// Package keystore binds actor names to RSA public keys and to the supply
// chain role (supplier, distributor, retailer) derived from that name, so
// admission checks don't have to trust the public key a transaction carries
// on its own. It is grounded on the teacher's foundation/nameservice
// package, which performs the analogous account-name-to-key walk over a
// directory of PEM files, adapted here to actor identities instead of
// wallet accounts and to RSA instead of ECDSA.
package keystore

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tracechain/ledger/foundation/blockchain/signature"
)

// Role identifies the supply-chain party an actor is registered as.
type Role string

// The three supply-chain roles recognized by the ledger.
const (
	RoleSupplier    Role = "supplier"
	RoleDistributor Role = "distributor"
	RoleRetailer    Role = "retailer"
)

// KeyNotFoundError is returned when a requested actor has no registered key.
type KeyNotFoundError struct {
	Actor string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("keystore: actor %q has no registered key", e.Actor)
}

// IdentityMismatchError is returned when a transaction's embedded public key
// does not match the key already bound to its claimed actor.
type IdentityMismatchError struct {
	Actor string
}

func (e *IdentityMismatchError) Error() string {
	return fmt.Sprintf("keystore: public key does not match the key registered for actor %q", e.Actor)
}

// UnknownRoleError is returned when an actor's name does not begin with any
// recognized role prefix.
type UnknownRoleError struct {
	Actor string
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("keystore: actor %q does not declare a recognized role (supplier/distributor/retailer)", e.Actor)
}

// =============================================================================

// Keystore maintains the actor -> public key binding used for identity
// checks at transaction admission time. Keys are seeded from PEM files in a
// directory (the `<actor>_public.pem` convention the rest of the corpus
// uses) and, absent a file, bound on first use (trust-on-first-use),
// closing the gap the spec's design notes call out: a forged actor field
// paired with a signature over different bytes no longer slips through
// just because the attacker also supplied a matching key.
type Keystore struct {
	mu   sync.RWMutex
	keys map[string]*rsa.PublicKey
}

// New constructs an empty keystore.
func New() *Keystore {
	return &Keystore{keys: make(map[string]*rsa.PublicKey)}
}

// Load walks dir for `<actor>_public.pem` files and registers each one. A
// missing directory is not an error; nodes may run with no pre-registered
// actors and bind them all on first use instead.
func Load(dir string) (*Keystore, error) {
	ks := New()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return ks, nil
		}
		return nil, fmt.Errorf("reading keys directory: %w", err)
	}

	const suffix = "_public.pem"
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}

		actor := strings.TrimSuffix(entry.Name(), suffix)

		pub, err := loadPublicKeyFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("loading key for actor %q: %w", actor, err)
		}

		ks.keys[actor] = pub
	}

	return ks, nil
}

func loadPublicKeyFile(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("invalid PEM block in %s", path)
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%s does not contain an RSA public key", path)
	}

	return rsaPub, nil
}

// Bind checks the supplied public key against the one on record for actor,
// registering it as the key of record if none exists yet. It returns
// IdentityMismatchError if actor is already bound to a different key.
func (ks *Keystore) Bind(actor string, pub *rsa.PublicKey) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	existing, exists := ks.keys[actor]
	if !exists {
		ks.keys[actor] = pub
		return nil
	}

	if existing.N.Cmp(pub.N) != 0 || existing.E != pub.E {
		return &IdentityMismatchError{Actor: actor}
	}

	return nil
}

// Lookup returns the public key registered for actor.
func (ks *Keystore) Lookup(actor string) (*rsa.PublicKey, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	pub, exists := ks.keys[actor]
	if !exists {
		return nil, &KeyNotFoundError{Actor: actor}
	}

	return pub, nil
}

// Copy returns the set of actor names currently bound in the keystore.
func (ks *Keystore) Copy() []string {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	actors := make([]string, 0, len(ks.keys))
	for actor := range ks.keys {
		actors = append(actors, actor)
	}

	return actors
}

// RoleOf derives the supply-chain role an actor name declares. The
// convention, carried over from the original implementation, is a
// case-insensitive prefix match against the role name itself (e.g.
// "Supplier_A" is a supplier).
func RoleOf(actor string) (Role, error) {
	lower := strings.ToLower(actor)

	switch {
	case strings.HasPrefix(lower, string(RoleSupplier)):
		return RoleSupplier, nil
	case strings.HasPrefix(lower, string(RoleDistributor)):
		return RoleDistributor, nil
	case strings.HasPrefix(lower, string(RoleRetailer)):
		return RoleRetailer, nil
	default:
		return "", &UnknownRoleError{Actor: actor}
	}
}

// VerifyAndBind parses the base64 PEM public key a transaction carries,
// checks it against the keystore's record for actor (binding it if this is
// the first time actor is seen), and returns the resolved key for
// signature verification.
func (ks *Keystore) VerifyAndBind(actor, publicKeyB64 string) (*rsa.PublicKey, error) {
	pub, err := signature.ParsePublicKeyPEM(publicKeyB64)
	if err != nil {
		return nil, err
	}

	if err := ks.Bind(actor, pub); err != nil {
		return nil, err
	}

	return pub, nil
}
