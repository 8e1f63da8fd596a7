package chain

import (
	"errors"
	"fmt"
)

// Kind identifies one of the stable error categories that flow from the
// ledger's domain logic up through the HTTP layer, where the nodegrp
// handlers map each one to a status code.
type Kind string

// The error kinds named by the spec, stable across every layer.
const (
	KindBadRequest           Kind = "BadRequest"
	KindInvalidSignature     Kind = "InvalidSignature"
	KindUnknownActor         Kind = "UnknownActor"
	KindInvalidOrder         Kind = "InvalidOrder"
	KindDuplicateTransaction Kind = "DuplicateTransaction"
	KindChainInvalid         Kind = "ChainInvalid"
	KindNoHealthyPeers       Kind = "NoHealthyPeers"
	KindPersistenceError     Kind = "PersistenceError"
	KindMiningCancelled      Kind = "MiningCancelled"
	KindTimeout              Kind = "Timeout"
)

// Error wraps a human-readable message with a stable Kind so callers can
// branch on the kind without string matching.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// newError constructs an *Error with a formatted message.
func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Is reports whether err is a chain.Error of the given kind, unwrapping
// through standard error wrapping.
func Is(err error, kind Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == kind
}
