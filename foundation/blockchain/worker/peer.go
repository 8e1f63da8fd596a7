package worker

// peerOperations probes every known peer's health on a fixed interval
// (§4.5). Probing never stops, even once every peer is unhealthy.
func (w *Worker) peerOperations() {
	w.ev("worker: peerOperations: started")
	defer w.ev("worker: peerOperations: completed")

	for {
		select {
		case <-w.healthTicker.C:
			if !w.isShutdown() {
				w.runPeerHealthCheck()
			}

		case <-w.shut:
			return
		}
	}
}

func (w *Worker) runPeerHealthCheck() {
	ctx, cancel := w.backgroundCtx()
	defer cancel()

	w.state.ProbePeers(ctx)
}
