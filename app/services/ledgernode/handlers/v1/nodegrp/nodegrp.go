// Package nodegrp maintains the group of handlers implementing the ledger
// node's HTTP API: transaction admission, mining, chain/mempool/peer
// queries, gossip, consensus, and batch provenance. It is grounded on the
// teacher's app/services/*/handlers/v1/*grp packages: one Handlers struct
// per resource group, methods matching web.Handler's signature.
package nodegrp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tracechain/ledger/business/web/errs"
	"github.com/tracechain/ledger/foundation/blockchain/chain"
	"github.com/tracechain/ledger/foundation/blockchain/state"
	"github.com/tracechain/ledger/foundation/events"
	"github.com/tracechain/ledger/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of ledger node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// statusFor maps a domain error kind (§7) to the HTTP status the admission
// policy requires.
func statusFor(err error) int {
	var vf *chain.ValidationFailure
	if errors.As(err, &vf) {
		return http.StatusBadRequest
	}

	var ce *chain.Error
	if !errors.As(err, &ce) {
		return http.StatusInternalServerError
	}

	switch ce.Kind {
	case chain.KindBadRequest, chain.KindInvalidOrder, chain.KindDuplicateTransaction:
		return http.StatusBadRequest
	case chain.KindInvalidSignature, chain.KindUnknownActor:
		return http.StatusUnauthorized
	case chain.KindChainInvalid, chain.KindNoHealthyPeers, chain.KindPersistenceError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AddTransaction admits a signed transaction to the mempool (§4.3).
func (h Handlers) AddTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var tx chain.Transaction
	if err := web.Decode(r, &tx); err != nil {
		return err
	}

	if err := h.State.AddTransaction(tx); err != nil {
		h.Log.Infow("add-transaction rejected", "traceid", v.TraceID, "batch_id", tx.BatchID, "action", tx.Action, "ERROR", err)
		return errs.NewTrusted(err, statusFor(err))
	}

	h.Log.Infow("add-transaction accepted", "traceid", v.TraceID, "batch_id", tx.BatchID, "action", tx.Action, "actor", tx.Actor)

	return web.Respond(ctx, w, map[string]bool{"accepted": true}, http.StatusOK)
}

// Mine forces one mining attempt (§4.4).
func (h Handlers) Mine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	block, err := h.State.MineOnce(ctx)

	var cancelled *chain.MiningCancelledError

	switch {
	case err == nil:
		resp := struct {
			Mined bool   `json:"mined"`
			Index uint64 `json:"index"`
		}{true, block.Index}
		return web.Respond(ctx, w, resp, http.StatusOK)

	case errors.Is(err, state.ErrNoTransactions):
		return web.Respond(ctx, w, nil, http.StatusNoContent)

	case errors.As(err, &cancelled):
		return web.Respond(ctx, w, nil, http.StatusNoContent)

	case errors.Is(err, state.ErrMiningBusy):
		return errs.NewTrusted(err, http.StatusServiceUnavailable)

	case errors.Is(err, state.ErrChainInvalid):
		return errs.NewTrusted(err, http.StatusServiceUnavailable)

	default:
		return errs.NewTrusted(err, http.StatusInternalServerError)
	}
}

// GetChain returns the full chain and its validity (§6).
func (h Handlers) GetChain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	valid, message := h.State.Valid()

	resp := state.ChainResponse{
		Chain:   h.State.RetrieveChain(),
		Length:  h.State.ChainLength(),
		Valid:   valid,
		Message: message,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// GetMempool returns the pending transactions.
func (h Handlers) GetMempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	txs := h.State.Mempool().Txs()

	resp := struct {
		Mempool []chain.Transaction `json:"mempool"`
		Count   int                 `json:"count"`
	}{Mempool: txs, Count: len(txs)}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// GetStatus returns node health and metrics.
func (h Handlers) GetStatus(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Status(), http.StatusOK)
}

// GetNodes returns the set of known peer URLs.
func (h Handlers) GetNodes(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	peers := h.State.Peers().Copy("")

	hosts := make([]string, len(peers))
	for i, p := range peers {
		hosts[i] = p.Host
	}

	resp := state.NodesResponse{Nodes: hosts, Count: len(hosts)}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

type registerNodeRequest struct {
	URL string `json:"url"`
}

// RegisterNode adds a peer to this node's registry (§4.5).
func (h Handlers) RegisterNode(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req registerNodeRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	if req.URL == "" {
		return errs.NewTrusted(errors.New("url is required"), http.StatusBadRequest)
	}

	if err := h.State.RegisterPeer(req.URL); err != nil {
		return errs.NewTrusted(err, http.StatusInternalServerError)
	}

	return web.Respond(ctx, w, map[string]bool{"registered": true}, http.StatusOK)
}

// ReceiveBlock accepts a block gossiped by a peer (§4.6).
func (h Handlers) ReceiveBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var b chain.Block
	if err := web.Decode(r, &b); err != nil {
		return err
	}

	if err := h.State.ReceiveBlock(b); err != nil {
		var forkErr *state.ErrForkDetected
		if errors.As(err, &forkErr) {
			h.State.TriggerSync()
			return errs.NewTrusted(err, http.StatusConflict)
		}
		return errs.NewTrusted(err, statusFor(err))
	}

	return web.Respond(ctx, w, map[string]bool{"accepted": true}, http.StatusOK)
}

// Sync forces a longest-valid-chain resolution against every healthy peer.
func (h Handlers) Sync(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	synced, length := h.State.Sync(ctx)

	resp := struct {
		Synced    bool `json:"synced"`
		NewLength int  `json:"new_length"`
	}{Synced: synced, NewLength: length}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// History returns the ordered events recorded for a batch.
func (h Handlers) History(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	batchID := web.Param(r, "batch_id")
	history := h.State.History(batchID)

	resp := struct {
		BatchID          string              `json:"batch_id"`
		History          []chain.Transaction `json:"history"`
		TransactionCount int                 `json:"transaction_count"`
	}{BatchID: batchID, History: history, TransactionCount: len(history)}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Verify checks a batch's full provenance trail.
func (h Handlers) Verify(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	batchID := web.Param(r, "batch_id")

	verified, message := h.State.Verify(batchID)

	resp := struct {
		BatchID  string              `json:"batch_id"`
		Verified bool                `json:"verified"`
		Events   []chain.Transaction `json:"events"`
		Message  string              `json:"message"`
	}{BatchID: batchID, Verified: verified, Events: h.State.History(batchID), Message: message}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Events streams the node's structured log lines to a connected operator
// over a websocket, the raw operational log tap named in SPEC_FULL §2.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	conn, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, open := <-ch:
			if !open {
				return nil
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}
