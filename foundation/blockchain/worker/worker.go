// Package worker implements the ledger node's background concurrency:
// periodic peer health probing, auto-mining, and chain re-validation with
// auto-heal. It is grounded on the teacher's foundation/blockchain/worker
// package: one goroutine per concern, each selecting on its own ticker
// (mining and sync also on a signal channel) plus a shared shutdown
// channel, registered against state.State
// through the state.Worker interface so state can drive background work
// without importing this package.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/tracechain/ledger/foundation/blockchain/state"
)

// Config bounds the background loops' timing, per §4.4/§4.5/§4.6.
type Config struct {
	MineInterval     time.Duration // periodic auto-mine check, default 60s
	HealthInterval   time.Duration // peer health probe, default 30s
	SyncInterval     time.Duration // periodic longest-chain resolution, default 45s
	ValidateInterval time.Duration // periodic local chain re-validation, default 20s
}

// DefaultConfig matches the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		MineInterval:     60 * time.Second,
		HealthInterval:   30 * time.Second,
		SyncInterval:     45 * time.Second,
		ValidateInterval: 20 * time.Second,
	}
}

// EventHandler mirrors state.EventHandler so this package doesn't need to
// import it just for the function type.
type EventHandler func(v string, args ...any)

// Worker manages the background goroutines for one node.
type Worker struct {
	state *state.State
	cfg   Config
	ev    EventHandler

	wg   sync.WaitGroup
	shut chan struct{}

	mineTicker     *time.Ticker
	healthTicker   *time.Ticker
	syncTicker     *time.Ticker
	validateTicker *time.Ticker

	startMining chan struct{}
	syncNow     chan struct{}
}

// Run constructs a Worker, registers it with state so state.AddTransaction
// can signal mining, and starts every background goroutine. It blocks until
// all goroutines have confirmed they are running.
func Run(s *state.State, cfg Config, ev EventHandler) *Worker {
	if ev == nil {
		ev = func(string, ...any) {}
	}

	w := &Worker{
		state:          s,
		cfg:            cfg,
		ev:             ev,
		shut:           make(chan struct{}),
		mineTicker:     time.NewTicker(cfg.MineInterval),
		healthTicker:   time.NewTicker(cfg.HealthInterval),
		syncTicker:     time.NewTicker(cfg.SyncInterval),
		validateTicker: time.NewTicker(cfg.ValidateInterval),
		startMining:    make(chan struct{}, 1),
		syncNow:        make(chan struct{}, 1),
	}

	s.Worker = w

	operations := []func(){
		w.peerOperations,
		w.miningOperations,
		w.syncOperations,
	}

	w.wg.Add(len(operations))

	started := make(chan struct{})
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			started <- struct{}{}
			op()
		}(op)
	}
	for range operations {
		<-started
	}

	return w
}

// Shutdown stops every ticker and background goroutine, and waits until
// every goroutine has returned. The wait has no timeout.
func (w *Worker) Shutdown() {
	w.ev("worker: shutdown: started")
	defer w.ev("worker: shutdown: completed")

	w.mineTicker.Stop()
	w.healthTicker.Stop()
	w.syncTicker.Stop()
	w.validateTicker.Stop()

	close(w.shut)
	w.wg.Wait()
}

// SignalStartMining implements state.Worker: it asks the mining goroutine
// to attempt a round as soon as it is free, coalescing repeated signals.
func (w *Worker) SignalStartMining() {
	select {
	case w.startMining <- struct{}{}:
	default:
	}
}

// SignalSync implements state.Worker: it asks the sync goroutine to run a
// longest-valid-chain resolution immediately, e.g. in response to POST
// /sync or a received block that forked from the local head.
func (w *Worker) SignalSync() {
	select {
	case w.syncNow <- struct{}{}:
	default:
	}
}

func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}

// backgroundCtx returns a context cancelled when the worker shuts down, for
// use by outbound peer calls issued from a background loop.
func (w *Worker) backgroundCtx() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-w.shut:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
