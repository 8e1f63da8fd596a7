package worker

import (
	"errors"

	"github.com/tracechain/ledger/foundation/blockchain/state"
)

// miningOperations runs a mining attempt whenever explicitly signalled or
// the periodic timer fires with a non-empty mempool (§4.4 triggers a/c;
// trigger b is signalled directly by state.AddTransaction via
// SignalStartMining once the mempool threshold is reached).
func (w *Worker) miningOperations() {
	w.ev("worker: miningOperations: started")
	defer w.ev("worker: miningOperations: completed")

	for {
		select {
		case <-w.startMining:
			if !w.isShutdown() {
				w.runMiningOperation()
			}

		case <-w.mineTicker.C:
			if !w.isShutdown() && w.state.Mempool().Count() > 0 {
				w.runMiningOperation()
			}

		case <-w.shut:
			return
		}
	}
}

func (w *Worker) runMiningOperation() {
	ctx, cancel := w.backgroundCtx()
	defer cancel()

	block, err := w.state.MineOnce(ctx)
	switch {
	case err == nil:
		w.ev("worker: runMiningOperation: mined block index[%d] hash[%s]", block.Index, block.Hash)

	case errors.Is(err, state.ErrNoTransactions):
		// Nothing to do; the periodic timer or the next admitted
		// transaction will retry.

	case errors.Is(err, state.ErrMiningBusy):
		// Another attempt already owns the head lock.

	case errors.Is(err, state.ErrChainInvalid):
		w.ev("worker: runMiningOperation: WARNING: chain invalid, skipping")

	default:
		w.ev("worker: runMiningOperation: WARNING: %s", err)
	}
}
