// Package peer maintains the set of known peers for a node, along with
// their health status as determined by periodic probing.
package peer

import (
	"strings"
	"sync"
)

// Peer represents information about a Node in the network.
type Peer struct {
	Host string
}

// New contructs a new info value, normalizing the host so peers added with
// or without a trailing slash dedupe to the same entry.
func New(host string) Peer {
	return Peer{Host: normalize(host)}
}

// Match validates if the specified host matches this node.
func (p Peer) Match(host string) bool {
	return p.Host == normalize(host)
}

// String implements fmt.Stringer so peers print naturally in log lines.
func (p Peer) String() string {
	return p.Host
}

func normalize(host string) string {
	return strings.TrimSuffix(strings.TrimSpace(host), "/")
}

// =============================================================================

// PeerStatus represents information about the status
// of any given peer.
type PeerStatus struct {
	LatestBlockHash   string `json:"latest_block_hash"`
	LatestBlockNumber uint64 `json:"latest_block_number"`
	KnownPeers        []Peer `json:"known_peers"`
}

// =============================================================================

// entry tracks a peer alongside its last known health state.
type entry struct {
	peer    Peer
	healthy bool
}

// PeerSet represents the data representation to maintain a set of known
// peers, each carrying a health flag updated by periodic probing.
type PeerSet struct {
	mu  sync.RWMutex
	set map[string]*entry
}

// NewPeerSet constructs a new info set to manage node peer information.
func NewPeerSet() *PeerSet {
	return &PeerSet{
		set: make(map[string]*entry),
	}
}

// Add adds a new node to the set, assumed healthy until proven otherwise. It
// reports true if the peer was not already known.
func (ps *PeerSet) Add(peer Peer) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if _, exists := ps.set[peer.Host]; exists {
		return false
	}

	ps.set[peer.Host] = &entry{peer: peer, healthy: true}
	return true
}

// Remove removes a node from the set.
func (ps *PeerSet) Remove(peer Peer) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	delete(ps.set, peer.Host)
}

// SetHealthy atomically updates the health flag for a known peer. It is a
// no-op if the peer is not registered.
func (ps *PeerSet) SetHealthy(peer Peer, healthy bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if e, exists := ps.set[peer.Host]; exists {
		e.healthy = healthy
	}
}

// Copy returns a list of the known peers, excluding the one matching host
// when host is non-empty.
func (ps *PeerSet) Copy(host string) []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	var peers []Peer
	for _, e := range ps.set {
		if host == "" || !e.peer.Match(host) {
			peers = append(peers, e.peer)
		}
	}

	return peers
}

// Healthy returns the subset of known peers currently flagged healthy.
func (ps *PeerSet) Healthy() []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	var peers []Peer
	for _, e := range ps.set {
		if e.healthy {
			peers = append(peers, e.peer)
		}
	}

	return peers
}

// Status reports every known peer paired with its current health flag, the
// shape served by the /status endpoint.
func (ps *PeerSet) Status() map[string]bool {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	status := make(map[string]bool, len(ps.set))
	for host, e := range ps.set {
		status[host] = e.healthy
	}

	return status
}
