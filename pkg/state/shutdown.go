package state

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chatsync/pkg/logger"
)

// SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		if parent.Err() == nil {
			logger.Info("signal_received", "msg", "shutdown requested")
		}
	}()
	return ctx, stop
}

// Abort logs and prints msg with err and exits with status 1.
func Abort(msg string, err error) {
	logger.Error("fatal", "msg", msg, "error", err)
	logger.Sync()
	fmt.Fprintf(os.Stderr, "chatsync: %s: %v\n", msg, err)
	os.Exit(1)
}
