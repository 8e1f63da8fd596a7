// Package checkgrp maintains the group of handlers for health checking the
// service, mirroring the debug/checkgrp shape the rest of the teacher's
// service tree references from its DebugMux.
package checkgrp

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/tracechain/ledger/foundation/blockchain/state"
	"go.uber.org/zap"
)

// Handlers manages the set of debug endpoints.
type Handlers struct {
	Build string
	Log   *zap.SugaredLogger
	State *state.State
}

// Readiness reports 200 when the node's local chain is valid and able to
// serve writes, 500 otherwise (auto-heal has not yet caught the node up).
func (h Handlers) Readiness(w http.ResponseWriter, r *http.Request) {
	valid, message := h.State.Valid()

	statusCode := http.StatusOK
	status := "ok"
	if !valid {
		statusCode = http.StatusInternalServerError
		status = "not ready"
	}

	data := struct {
		Status  string `json:"status"`
		Message string `json:"message,omitempty"`
	}{Status: status, Message: message}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Log.Errorw("readiness", "ERROR", err)
	}
}

// Liveness always reports 200 while the process is up; it never checks
// downstream dependencies, only that the HTTP server itself is alive.
func (h Handlers) Liveness(w http.ResponseWriter, r *http.Request) {
	host, err := os.Hostname()
	if err != nil {
		host = "unavailable"
	}

	data := struct {
		Status    string `json:"status"`
		Build     string `json:"build"`
		Host      string `json:"host"`
		Pod       string `json:"pod"`
		PodIP     string `json:"podIP"`
		Namespace string `json:"namespace"`
	}{
		Status:    "up",
		Build:     h.Build,
		Host:      host,
		Pod:       os.Getenv("KUBERNETES_PODNAME"),
		PodIP:     os.Getenv("KUBERNETES_NAMESPACE_POD_IP"),
		Namespace: os.Getenv("KUBERNETES_NAMESPACE"),
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Log.Errorw("liveness", "ERROR", err)
	}
}
