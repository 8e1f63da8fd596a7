package state

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tracechain/ledger/foundation/blockchain/chain"
	"github.com/tracechain/ledger/foundation/blockchain/peer"
)

// callTimeout bounds every outbound peer call (§5): 5-10s for probes and
// gossip, 10s for chain fetches during sync.
const callTimeout = 10 * time.Second

// httpClient is shared across every outbound peer call.
var httpClient = &http.Client{Timeout: callTimeout}

// ChainResponse is the wire shape of GET /chain.
type ChainResponse struct {
	Chain   []chain.Block `json:"chain"`
	Length  int           `json:"length"`
	Valid   bool          `json:"valid"`
	Message string        `json:"message"`
}

// NodesResponse is the wire shape of GET /nodes.
type NodesResponse struct {
	Nodes []string `json:"nodes"`
	Count int      `json:"count"`
}

// registerNodeRequest is the wire shape of POST /register-node.
type registerNodeRequest struct {
	URL string `json:"url"`
}

// send performs one bounded HTTP round trip, marshaling dataSend as the
// request body (if any) and unmarshaling the response into dataRecv (if
// any). It is grounded on the teacher's foundation/blockchain/state.send
// helper, generalized with an explicit per-call context deadline.
func send(ctx context.Context, method, url string, dataSend, dataRecv any) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	var body io.Reader
	if dataSend != nil {
		data, err := json.Marshal(dataSend)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if dataSend != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("peer responded %d: %s", resp.StatusCode, string(msg))
	}

	if dataRecv != nil {
		return json.NewDecoder(resp.Body).Decode(dataRecv)
	}

	return nil
}

// fetchChain retrieves p's full chain via GET /chain.
func (s *State) fetchChain(ctx context.Context, p peer.Peer) ([]chain.Block, error) {
	var resp ChainResponse
	if err := send(ctx, http.MethodGet, "http://"+p.Host+"/chain", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Chain, nil
}

// fetchNodes retrieves p's known peer URLs via GET /nodes.
func (s *State) fetchNodes(ctx context.Context, p peer.Peer) ([]string, error) {
	var resp NodesResponse
	if err := send(ctx, http.MethodGet, "http://"+p.Host+"/nodes", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Nodes, nil
}

// probeStatus checks a peer's liveness via GET /status, used for the
// periodic health probe (§4.5).
func (s *State) probeStatus(ctx context.Context, p peer.Peer) error {
	return send(ctx, http.MethodGet, "http://"+p.Host+"/status", nil, &StatusReport{})
}

// registerSelfWith POSTs this node's own host to a peer's /register-node.
func (s *State) registerSelfWith(ctx context.Context, p peer.Peer) error {
	req := registerNodeRequest{URL: s.host}
	return send(ctx, http.MethodPost, "http://"+p.Host+"/register-node", req, nil)
}

// broadcastBlock gossips a newly-sealed block to every known healthy peer.
// Broadcast is attempted before MineOnce returns (per the spec's resolution
// of open question (a)), but each peer send is fire-and-forget: a failed
// gossip is logged, not retried, and never fails the mining call itself.
func (s *State) broadcastBlock(b chain.Block) {
	for _, p := range s.peers.Healthy() {
		go func(p peer.Peer) {
			ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
			defer cancel()

			if err := send(ctx, http.MethodPost, "http://"+p.Host+"/receive-block", b, nil); err != nil {
				s.evHandler("state: broadcastBlock: peer[%s]: WARNING: %s", p, err)
				return
			}

			s.evHandler("state: broadcastBlock: peer[%s]: sent block index[%d]", p, b.Index)
		}(p)
	}
}
