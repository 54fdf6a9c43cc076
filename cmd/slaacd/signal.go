package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/osutil"
)

// defaultTimeoutShutdown is the timeout of the context that shutdown passes
// to every engine's Shutdown method.
const defaultTimeoutShutdown = 5 * time.Second

// signalHandler processes incoming OS signals and shuts every engine down.
type signalHandler struct {
	logger *slog.Logger

	signal chan os.Signal

	services container.KeyValues[string, *engineService]

	shutdownTimeout time.Duration
}

// handle blocks until a shutdown signal arrives, then shuts every engine
// down. status is [osutil.ExitCodeSuccess] on a clean shutdown and
// [osutil.ExitCodeFailure] if any engine reported an error.
func (h *signalHandler) handle(ctx context.Context) (status osutil.ExitCode) {
	defer slogutil.RecoverAndLog(ctx, h.logger)

	for sig := range h.signal {
		h.logger.InfoContext(ctx, "received", "signal", sig)

		if osutil.IsShutdownSignal(sig) {
			return h.shutdown(ctx)
		}
	}

	panic("unexpected close of h.signal")
}

// shutdown disposes of every engine, passing each a context bounded by
// h.shutdownTimeout. [engineService.Shutdown] does not use that context, and
// [slaacsvc.Engine.Dispose] returns without waiting for the transport to stop.
func (h *signalHandler) shutdown(ctx context.Context) (status osutil.ExitCode) {
	ctx, cancel := context.WithTimeout(ctx, h.shutdownTimeout)
	defer cancel()

	status = osutil.ExitCodeSuccess

	h.logger.InfoContext(ctx, "shutting down")
	for _, kv := range h.services {
		if err := kv.Value.Shutdown(ctx); err != nil {
			h.logger.ErrorContext(ctx, "shutting down engine", "iface", kv.Key, slogutil.KeyError, err)
			status = osutil.ExitCodeFailure
		}
	}

	return status
}

// newSignalHandler returns a signalHandler that shuts engines down on
// receipt of a shutdown signal.
func newSignalHandler(
	logger *slog.Logger,
	engines container.KeyValues[string, *engineService],
) (h *signalHandler) {
	h = &signalHandler{
		logger:          logger,
		signal:          make(chan os.Signal, 1),
		services:        engines,
		shutdownTimeout: defaultTimeoutShutdown,
	}

	notifier := osutil.DefaultSignalNotifier{}
	osutil.NotifyShutdownSignal(notifier, h.signal)

	return h
}
