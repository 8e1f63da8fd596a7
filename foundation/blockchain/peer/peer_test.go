package peer_test

import (
	"testing"

	"github.com/tracechain/ledger/foundation/blockchain/peer"
)

func Test_CRUD(t *testing.T) {
	type table struct {
		name  string
		peers []peer.Peer
	}

	tt := []table{
		{
			name:  "basic",
			peers: []peer.Peer{{Host: "host1"}, {Host: "host2"}, {Host: "host3"}},
		},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			ps := peer.NewPeerSet()

			for _, peer := range tst.peers {
				ps.Add(peer)
			}

			peers := ps.Copy("")
			if len(peers) != len(tst.peers) {
				t.Logf("Test %s:\tgot: %d", tst.name, len(peers))
				t.Logf("Test %s:\texp: %d", tst.name, len(tst.peers))
				t.Fatalf("Test %s:\tShould get back the right peers.", tst.name)
			}

			peers = ps.Copy("host2")
			if len(peers) != len(tst.peers)-1 {
				t.Logf("Test %s:\tgot: %d", tst.name, len(peers))
				t.Logf("Test %s:\texp: %d", tst.name, len(tst.peers)-1)
				t.Fatalf("Test %s:\tShould get back the right peers.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_Health(t *testing.T) {
	ps := peer.NewPeerSet()

	p := peer.New("host1:9080")
	ps.Add(p)

	status := ps.Status()
	if !status["host1:9080"] {
		t.Fatal("a newly added peer should start healthy")
	}

	ps.SetHealthy(p, false)

	status = ps.Status()
	if status["host1:9080"] {
		t.Fatal("SetHealthy(false) should flip the peer unhealthy")
	}

	if len(ps.Healthy()) != 0 {
		t.Fatal("Healthy() should exclude peers flagged unhealthy")
	}
}

func Test_Normalize(t *testing.T) {
	ps := peer.NewPeerSet()

	ps.Add(peer.New("http://host1:9080/"))
	if added := ps.Add(peer.New("http://host1:9080")); added {
		t.Fatal("a peer registered with and without a trailing slash should dedupe")
	}
}
