package daemon

import (
	"os"
	"os/signal"
	"syscall"
)

// SignalHandler delivers stop and reload signals to the daemon loop.
type SignalHandler struct {
	signals chan os.Signal
}

// NewSignalHandler creates a new signal handler.
func NewSignalHandler() *SignalHandler {
	return &SignalHandler{
		signals: make(chan os.Signal, 1),
	}
}

// Setup registers signal handlers.
func (h *SignalHandler) Setup() {
	signal.Notify(h.signals,
		syscall.SIGINT,  // Ctrl+C
		syscall.SIGTERM, // Termination request
		syscall.SIGHUP,  // Reload from storage
	)
}

// C returns the channel signals arrive on.
func (h *SignalHandler) C() <-chan os.Signal {
	return h.signals
}

// Cleanup stops signal delivery.
func (h *SignalHandler) Cleanup() {
	signal.Stop(h.signals)
}

// IsReload reports whether sig asks the daemon to reload instead of exit.
func IsReload(sig os.Signal) bool {
	return sig == reloadSignal
}

var reloadSignal os.Signal = syscall.SIGHUP
