// Package v1 contains the full set of handler functions and routes
// supported by the ledger node's HTTP API.
package v1

import (
	"net/http"

	"github.com/tracechain/ledger/app/services/ledgernode/handlers/v1/nodegrp"
	"github.com/tracechain/ledger/foundation/blockchain/state"
	"github.com/tracechain/ledger/foundation/events"
	"github.com/tracechain/ledger/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	Evts  *events.Events
}

// Routes binds every route the ledger node's HTTP API exposes (§6). The
// core façade-facing endpoints are unversioned, matching the literal paths
// role services and peers already depend on; the diagnostics websocket is
// the one ambient addition, grouped under /v1.
func Routes(app *web.App, cfg Config) {
	h := nodegrp.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		WS:    websocket.Upgrader{},
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodPost, "", "/add-transaction", h.AddTransaction)
	app.Handle(http.MethodPost, "", "/mine", h.Mine)
	app.Handle(http.MethodGet, "", "/chain", h.GetChain)
	app.Handle(http.MethodGet, "", "/mempool", h.GetMempool)
	app.Handle(http.MethodGet, "", "/status", h.GetStatus)
	app.Handle(http.MethodGet, "", "/nodes", h.GetNodes)
	app.Handle(http.MethodPost, "", "/register-node", h.RegisterNode)
	app.Handle(http.MethodPost, "", "/receive-block", h.ReceiveBlock)
	app.Handle(http.MethodPost, "", "/sync", h.Sync)
	app.Handle(http.MethodGet, "", "/history/:batch_id", h.History)
	app.Handle(http.MethodGet, "", "/verify/:batch_id", h.Verify)

	app.Handle(http.MethodGet, "v1", "/events", h.Events)
}
