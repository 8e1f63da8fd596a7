package worker

// syncOperations drives both halves of §4.6 on their own schedule: periodic
// (or explicitly signalled) longest-valid-chain resolution, and periodic
// local chain re-validation that triggers auto-heal on failure.
func (w *Worker) syncOperations() {
	w.ev("worker: syncOperations: started")
	defer w.ev("worker: syncOperations: completed")

	for {
		select {
		case <-w.syncNow:
			if !w.isShutdown() {
				w.runSync()
			}

		case <-w.syncTicker.C:
			if !w.isShutdown() {
				w.runSync()
			}

		case <-w.validateTicker.C:
			if !w.isShutdown() {
				w.runValidate()
			}

		case <-w.shut:
			return
		}
	}
}

func (w *Worker) runSync() {
	ctx, cancel := w.backgroundCtx()
	defer cancel()

	synced, length := w.state.Sync(ctx)
	if synced {
		w.ev("worker: runSync: adopted longer chain: length[%d]", length)
	}
}

func (w *Worker) runValidate() {
	valid, message := w.state.Revalidate()
	if valid {
		return
	}

	w.ev("worker: runValidate: WARNING: local chain invalid: %s", message)

	ctx, cancel := w.backgroundCtx()
	defer cancel()

	if w.state.AutoHeal(ctx) {
		w.ev("worker: runValidate: auto-heal succeeded")
		return
	}

	w.ev("worker: runValidate: WARNING: auto-heal found no valid peer chain, remaining invalid")
}
