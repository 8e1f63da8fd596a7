package chain

import (
	"strings"

	"github.com/tracechain/ledger/foundation/blockchain/keystore"
)

// BatchStatus is the projected state of a batch_id after replaying every
// transaction recorded for it, per the state machine in §4.3.
type BatchStatus string

// The states a batch passes through, in order.
const (
	StatusNone           BatchStatus = ""
	StatusRegistered     BatchStatus = "registered"
	StatusQualityChecked BatchStatus = "quality_checked"
	StatusShipped        BatchStatus = "shipped"
	StatusReceived       BatchStatus = "received"
	StatusStored         BatchStatus = "stored"
	StatusDelivered      BatchStatus = "delivered"
	StatusReceivedRetail BatchStatus = "received_retail"
	StatusSold           BatchStatus = "sold"
)

// batchState is the running projection for one batch_id.
type batchState struct {
	Status        BatchStatus
	LastActor     string
	QualityFailed bool
	ShippedBy     string
	ShippedTo     string
	DeliveredBy   string
	DeliveredTo   string
}

// requiredPredecessor maps each action to the batch status it expects to
// find the batch already in.
var requiredPredecessor = map[Action]BatchStatus{
	ActionRegistered:     StatusNone,
	ActionQualityChecked: StatusRegistered,
	ActionShipped:        StatusQualityChecked,
	ActionReceived:       StatusShipped,
	ActionStored:         StatusReceived,
	ActionDelivered:      StatusStored,
	ActionReceivedRetail: StatusDelivered,
	ActionSold:           StatusReceivedRetail,
}

// actionRole maps each action to the role required to perform it.
var actionRole = map[Action]keystore.Role{
	ActionRegistered:     keystore.RoleSupplier,
	ActionQualityChecked: keystore.RoleSupplier,
	ActionShipped:        keystore.RoleSupplier,
	ActionReceived:       keystore.RoleDistributor,
	ActionStored:         keystore.RoleDistributor,
	ActionDelivered:      keystore.RoleDistributor,
	ActionReceivedRetail: keystore.RoleRetailer,
	ActionSold:           keystore.RoleRetailer,
}

// groupFirstAction identifies the action that hands a batch to a new
// owner. Every other action requires the same actor as the last recorded
// one (ownership continuity within a role's group of actions).
var groupFirstAction = map[Action]bool{
	ActionRegistered:     true,
	ActionReceived:       true,
	ActionReceivedRetail: true,
}

var actionVerb = map[Action]string{
	ActionRegistered:     "register",
	ActionQualityChecked: "quality-check",
	ActionShipped:        "ship",
	ActionReceived:       "receive",
	ActionStored:         "store",
	ActionDelivered:      "deliver",
	ActionReceivedRetail: "receive at retail",
	ActionSold:           "sell",
}

var predecessorPhrase = map[Action]string{
	ActionQualityChecked: "registration",
	ActionShipped:        "the quality check",
	ActionReceived:       "shipment",
	ActionStored:         "receipt",
	ActionDelivered:      "storage",
	ActionReceivedRetail: "delivery",
	ActionSold:           "the retail receipt",
}

// applyTransition folds tx into a batch's running projection. It assumes
// tx has already been validated by validateNext; it does not re-check
// anything.
func applyTransition(st batchState, tx Transaction) batchState {
	switch tx.Action {
	case ActionRegistered:
		st.Status = StatusRegistered
	case ActionQualityChecked:
		st.Status = StatusQualityChecked
		if strings.EqualFold(tx.Metadata["result"], "failed") {
			st.QualityFailed = true
		}
	case ActionShipped:
		st.Status = StatusShipped
		st.ShippedBy = tx.Actor
		st.ShippedTo = tx.Metadata["to"]
	case ActionReceived:
		st.Status = StatusReceived
	case ActionStored:
		st.Status = StatusStored
	case ActionDelivered:
		st.Status = StatusDelivered
		st.DeliveredBy = tx.Actor
		st.DeliveredTo = tx.Metadata["to"]
	case ActionReceivedRetail:
		st.Status = StatusReceivedRetail
	case ActionSold:
		st.Status = StatusSold
	}

	st.LastActor = tx.Actor
	return st
}

// validateNext checks that tx is a legal next transaction given the batch's
// current projection: order, role, ownership continuity, and hand-off
// matching, per §4.3 enriched by SPEC_FULL §3.
func validateNext(st batchState, tx Transaction) error {
	want, recognized := requiredPredecessor[tx.Action]
	if !recognized {
		return newError(KindInvalidOrder, "action %q is not a recognized action", tx.Action)
	}

	if tx.Action == ActionRegistered && st.Status != StatusNone {
		return newError(KindInvalidOrder, "Cannot register batch %q: it has already been registered", tx.BatchID)
	}

	if st.Status != want {
		return newError(KindInvalidOrder, "Cannot %s batch %q before %s (current status: %q)",
			actionVerb[tx.Action], tx.BatchID, predecessorPhrase[tx.Action], orDash(st.Status))
	}

	if tx.Action == ActionShipped && st.QualityFailed {
		return newError(KindInvalidOrder, "Cannot ship batch %q: it failed quality check", tx.BatchID)
	}

	role, err := keystore.RoleOf(tx.Actor)
	if err != nil {
		return newError(KindInvalidOrder, "%s", err.Error())
	}
	if expected := actionRole[tx.Action]; role != expected {
		return newError(KindInvalidOrder, "%q is not a valid %s for action %q", tx.Actor, expected, tx.Action)
	}

	if !groupFirstAction[tx.Action] && st.LastActor != "" && tx.Actor != st.LastActor {
		return newError(KindInvalidOrder, "Ownership violation: %q cannot perform %q, current owner is %q", tx.Actor, tx.Action, st.LastActor)
	}

	switch tx.Action {
	case ActionReceived:
		if st.ShippedTo != "" && tx.Actor != st.ShippedTo {
			return newError(KindInvalidOrder, "Cannot receive batch %q: shipment was sent to %q, not %q", tx.BatchID, st.ShippedTo, tx.Actor)
		}
		if from := tx.Metadata["from"]; from != "" && from != st.ShippedBy {
			return newError(KindInvalidOrder, "Cannot receive batch %q: shipment came from %q, not %q", tx.BatchID, st.ShippedBy, from)
		}

	case ActionReceivedRetail:
		if st.DeliveredTo != "" && tx.Actor != st.DeliveredTo {
			return newError(KindInvalidOrder, "Cannot receive batch %q: delivery was made to %q, not %q", tx.BatchID, st.DeliveredTo, tx.Actor)
		}
		if from := tx.Metadata["from"]; from != "" && from != st.DeliveredBy {
			return newError(KindInvalidOrder, "Cannot receive batch %q: delivery came from %q, not %q", tx.BatchID, st.DeliveredBy, from)
		}
	}

	return nil
}

func orDash(s BatchStatus) string {
	if s == StatusNone {
		return "unregistered"
	}
	return string(s)
}

// ValidateNext checks that tx legally follows priorTxs, the ordered
// transactions already recorded for the same batch_id (sealed-chain order
// followed by mempool insertion order). It returns an *Error of kind
// KindInvalidOrder with a human-readable message on violation.
func ValidateNext(priorTxs []Transaction, tx Transaction) error {
	var st batchState
	for _, prior := range priorTxs {
		st = applyTransition(st, prior)
	}

	return validateNext(st, tx)
}

// ValidateSemantics replays every batch's transactions across the whole
// sealed chain in block order and checks each transition is legal,
// reporting the first violation found. This realizes chain invariant 4.
func ValidateSemantics(blocks []Block) error {
	states := make(map[string]batchState)

	for _, b := range blocks {
		for _, tx := range b.Transactions {
			st := states[tx.BatchID]
			if err := validateNext(st, tx); err != nil {
				return &ValidationFailure{Index: b.Index, Kind: "semantic-violation", Message: err.Error()}
			}
			states[tx.BatchID] = applyTransition(st, tx)
		}
	}

	return nil
}

// ValidateHistory replays an ordered sequence of transactions for a single
// batch from scratch, checking each transition in turn. It is used by
// /verify to confirm a batch's full provenance trail is internally
// consistent, independent of chain-wide validation.
func ValidateHistory(history []Transaction) error {
	var st batchState
	for _, tx := range history {
		if err := validateNext(st, tx); err != nil {
			return err
		}
		st = applyTransition(st, tx)
	}

	return nil
}

// BatchHistory extracts every transaction touching batchID from blocks, in
// chain order, the shape /history and /verify both need.
func BatchHistory(blocks []Block, batchID string) []Transaction {
	var history []Transaction

	for _, b := range blocks {
		for _, tx := range b.Transactions {
			if tx.BatchID == batchID {
				history = append(history, tx)
			}
		}
	}

	return history
}
