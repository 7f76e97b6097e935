// Package eventloop implements the secinit process-1 loop: every signal is
// received synchronously on one channel and dispatched through a fixed
// routing table.
package eventloop

import (
	"fmt"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// sigRTMax is the highest signal number on Linux.
const sigRTMax = 64

// Mockable for testing.
var notifyFunc = signal.Notify

// SetupSignals diverts every catchable signal into the returned channel so
// that none of them takes its default action. The runtime's preemption
// signal (SIGURG) is left alone: it carries no meaning for the supervisor
// and would otherwise keep resetting the watchdog.
func SetupSignals() chan os.Signal {
	sigCh := make(chan os.Signal, 32)
	sigs := make([]os.Signal, 0, sigRTMax)
	for s := unix.Signal(1); s <= sigRTMax; s++ {
		switch s {
		case unix.SIGKILL, unix.SIGSTOP, unix.SIGURG:
			continue
		}
		sigs = append(sigs, s)
	}
	notifyFunc(sigCh, sigs...)
	return sigCh
}

// StopSignals restores default signal handling.
func StopSignals(sigCh chan os.Signal) {
	signal.Stop(sigCh)
}

// Handler reacts to one delivered signal.
type Handler func(sig unix.Signal)

// Binding maps a signal to its handler.
type Binding struct {
	Signal  unix.Signal
	Name    string
	Handler Handler
}

// Router is an immutable signal routing table.
type Router struct {
	bindings []Binding
}

// NewRouter builds a routing table. Each signal may be bound only once.
func NewRouter(bindings ...Binding) (*Router, error) {
	seen := make(map[unix.Signal]string, len(bindings))
	for _, b := range bindings {
		if b.Handler == nil {
			return nil, fmt.Errorf("binding %q for %s has no handler", b.Name, unix.SignalName(b.Signal))
		}
		if prev, ok := seen[b.Signal]; ok {
			return nil, fmt.Errorf("%s bound to both %q and %q", unix.SignalName(b.Signal), prev, b.Name)
		}
		seen[b.Signal] = b.Name
	}
	return &Router{bindings: append([]Binding(nil), bindings...)}, nil
}

// Lookup returns the binding for sig.
func (r *Router) Lookup(sig unix.Signal) (Binding, bool) {
	for _, b := range r.bindings {
		if b.Signal == sig {
			return b, true
		}
	}
	return Binding{}, false
}

// Dispatch runs the handler bound to sig and reports whether one ran.
// Unbound signals are ignored.
func (r *Router) Dispatch(sig unix.Signal) bool {
	b, ok := r.Lookup(sig)
	if !ok {
		return false
	}
	b.Handler(sig)
	return true
}
