package app

import (
	"context"

	"chatsync/pkg/logger"
)

// Shutdown stops the components in dependency order: the debug server and
// schedulers first, then the ingest worker (which drains queued frames) and
// finally the replica.
func (a *App) Shutdown(ctx context.Context) error {
	a.state.Store("shutting_down")
	logger.Info("shutdown_requested")

	if a.srvFast != nil {
		if err := a.srvFast.Shutdown(); err != nil {
			logger.Error("debug_server_shutdown_failed", "error", err)
		}
	}
	if a.retentionCancel != nil {
		a.retentionCancel()
	}
	a.disk.Stop()
	a.proc.Stop(ctx)

	processed, failed := a.proc.Stats()
	attempts, frames := a.rt.Stats()
	logger.Info("sync_stats", "frames", frames, "dial_attempts", attempts, "processed", processed, "failed", failed)

	err := a.db.Close()
	if err != nil {
		logger.Error("store_close_failed", "error", err)
	} else {
		a.state.Store("stopped")
		logger.Info("shutdown_complete")
	}
	return err
}
