package state

import (
	"context"

	"github.com/tracechain/ledger/foundation/blockchain/peer"
)

// maxBootstrapDepth bounds the recursive peer-discovery walk performed at
// startup (§4.5) so a misbehaving or cyclic peer graph cannot hang the
// join sequence.
const maxBootstrapDepth = 3

// RegisterPeer adds host to the peer set (idempotent) and persists it to
// disk so it survives a restart.
func (s *State) RegisterPeer(host string) error {
	p := peer.New(host)
	if p.Match(s.host) {
		return nil
	}

	if !s.peers.Add(p) {
		return nil
	}

	s.evHandler("state: RegisterPeer: added peer[%s]", p)

	return s.storage.WritePeer(p)
}

// ProbePeers checks every known peer's health via GET /status (§4.5),
// updating each one's health flag. Failing peers are marked unhealthy but
// never removed from the set; a later successful probe marks them healthy
// again.
func (s *State) ProbePeers(ctx context.Context) {
	for _, p := range s.peers.Copy("") {
		err := s.probeStatus(ctx, p)
		s.peers.SetHealthy(p, err == nil)

		if err != nil {
			s.evHandler("state: ProbePeers: peer[%s]: unhealthy: %s", p, err)
		}
	}
}

// Bootstrap joins the network via a known bootstrap node: it registers
// itself with the bootstrap, then recursively walks each newly-discovered
// peer's own /nodes list up to maxBootstrapDepth, registering everyone it
// finds along the way (§4.5).
func (s *State) Bootstrap(ctx context.Context, bootstrapHost string) error {
	if bootstrapHost == "" {
		return nil
	}

	bootstrap := peer.New(bootstrapHost)

	if err := s.registerSelfWith(ctx, bootstrap); err != nil {
		s.evHandler("state: Bootstrap: WARNING: registering with %s: %s", bootstrap, err)
	}

	if err := s.RegisterPeer(bootstrap.Host); err != nil {
		s.evHandler("state: Bootstrap: WARNING: persisting bootstrap peer: %s", err)
	}

	visited := map[string]bool{s.host: true}
	s.discoverFrom(ctx, bootstrap, visited, maxBootstrapDepth)

	return nil
}

// discoverFrom walks p's known-peers list, registering each new one and
// recursing into it, until depth is exhausted.
func (s *State) discoverFrom(ctx context.Context, p peer.Peer, visited map[string]bool, depth int) {
	if depth <= 0 {
		return
	}

	hosts, err := s.fetchNodes(ctx, p)
	if err != nil {
		s.evHandler("state: discoverFrom: WARNING: fetching nodes from %s: %s", p, err)
		return
	}

	for _, host := range hosts {
		candidate := peer.New(host)
		if visited[candidate.Host] {
			continue
		}
		visited[candidate.Host] = true

		if err := s.RegisterPeer(candidate.Host); err != nil {
			s.evHandler("state: discoverFrom: WARNING: registering %s: %s", candidate, err)
		}

		s.discoverFrom(ctx, candidate, visited, depth-1)
	}
}
