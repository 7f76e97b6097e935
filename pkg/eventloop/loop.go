package eventloop

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sunlightlinux/secinit/pkg/logging"
	"github.com/sunlightlinux/secinit/pkg/metrics"
	"github.com/sunlightlinux/secinit/pkg/process"
	"github.com/sunlightlinux/secinit/pkg/service"
	"github.com/sunlightlinux/secinit/pkg/shutdown"
)

// DefaultWatchdog is the alarm period used when none is configured.
const DefaultWatchdog = 30 * time.Second

// Mockable collaborators for testing.
var (
	checkPreconditions = shutdown.CheckPreconditions
	setupPID1          = shutdown.InitPID1
	reapAllFunc        = process.ReapAll
	executeFunc        = shutdown.Execute
)

// State is the phase the supervisor loop is in.
type State uint32

const (
	StateStarting    State = iota // Preconditions, signal set-up, initial unit
	StateWaiting                  // Blocked until a signal or the watchdog
	StateDispatching              // Running the handler for one signal
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateWaiting:
		return "waiting"
	case StateDispatching:
		return "dispatching"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// Options configures a Loop.
type Options struct {
	// InitUnit names the unit loaded once start-up checks pass.
	InitUnit string

	// Watchdog is the alarm period. Zero means DefaultWatchdog.
	Watchdog time.Duration

	// PoweroffSignal and RebootSignal trigger the system actions.
	// Zero disables the binding.
	PoweroffSignal unix.Signal
	RebootSignal   unix.Signal

	// MetricsTextfile is rewritten after every reap when set.
	MetricsTextfile string
}

// Loop is the process-1 supervisor. All of its work happens on the
// goroutine that calls Run; handlers never run concurrently.
type Loop struct {
	units    *service.Set
	opts     Options
	logger   *logging.Logger
	router   *Router
	watchdog *Watchdog
	sigCh    chan os.Signal
	state    atomic.Uint32
}

// New creates a Loop supervising units.
func New(units *service.Set, opts Options, logger *logging.Logger) (*Loop, error) {
	if opts.Watchdog <= 0 {
		opts.Watchdog = DefaultWatchdog
	}
	l := &Loop{
		units:    units,
		opts:     opts,
		logger:   logger,
		watchdog: NewWatchdog(),
	}

	bindings := []Binding{
		{Signal: unix.SIGCHLD, Name: "reap", Handler: l.reap},
		{Signal: unix.SIGALRM, Name: "reap", Handler: l.reap},
	}
	if opts.PoweroffSignal != 0 {
		bindings = append(bindings, Binding{
			Signal: opts.PoweroffSignal, Name: "poweroff", Handler: l.systemAction(shutdown.ActionPoweroff),
		})
	}
	if opts.RebootSignal != 0 {
		bindings = append(bindings, Binding{
			Signal: opts.RebootSignal, Name: "reboot", Handler: l.systemAction(shutdown.ActionReboot),
		})
	}

	router, err := NewRouter(bindings...)
	if err != nil {
		return nil, err
	}
	l.router = router
	return l, nil
}

// State returns the loop's current phase.
func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) setState(s State) {
	l.state.Store(uint32(s))
}

// start runs the Starting phase. A failed precondition panics: there is
// no way for process 1 to recover from it. Everything after that only
// logs.
func (l *Loop) start() {
	l.setState(StateStarting)

	if err := checkPreconditions(); err != nil {
		l.logger.Error("%v", err)
		panic(err)
	}

	setupPID1(l.logger)
	l.sigCh = SetupSignals()

	if err := l.units.Load(l.opts.InitUnit); err != nil {
		l.logger.Error("Initial unit '%s' failed: %v; continuing without it", l.opts.InitUnit, err)
	}
}

// Run starts the supervisor and processes signals forever. It returns only
// when ctx is cancelled; process 1 must pass a context that never is.
func (l *Loop) Run(ctx context.Context) error {
	l.start()
	defer StopSignals(l.sigCh)

	l.logger.Info("secinit supervisor started (PID %d, watchdog %v)", os.Getpid(), l.opts.Watchdog)

	for {
		l.setState(StateWaiting)
		l.watchdog.Arm(l.opts.Watchdog)

		var sig unix.Signal
		select {
		case <-ctx.Done():
			l.watchdog.Stop()
			return ctx.Err()

		case s := <-l.sigCh:
			sysSig, ok := s.(syscall.Signal)
			if !ok {
				continue
			}
			sig = sysSig

		case <-l.watchdog.Chan():
			l.watchdog.expired()
			sig = unix.SIGALRM
		}

		l.setState(StateDispatching)
		l.dispatch(sig)
	}
}

func (l *Loop) dispatch(sig unix.Signal) {
	handled := l.router.Dispatch(sig)
	metrics.SignalReceived(unix.SignalName(sig), handled)
	if !handled {
		l.logger.Debug("Ignoring signal %d (%s)", int(sig), unix.SignalName(sig))
	}
}

// reap collects every terminated child, hands each one to its owning unit
// and re-arms the watchdog. It is bound to both SIGCHLD and SIGALRM, so a
// coalesced or missed SIGCHLD is picked up at the next alarm.
func (l *Loop) reap(sig unix.Signal) {
	exits, err := reapAllFunc()
	if err != nil {
		l.logger.Error("Reaping children: %v", err)
	}
	for _, e := range exits {
		l.units.ChildExited(e)
	}
	if len(exits) > 0 {
		metrics.AddReaped(len(exits))
		l.logger.Debug("Reaped %d children on %s", len(exits), unix.SignalName(sig))
	} else if sig == unix.SIGALRM {
		l.logger.Debug("Watchdog: nothing to reap (%s)", l.units.Summary())
	}

	if l.opts.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(l.opts.MetricsTextfile); err != nil {
			l.logger.Warn("Writing metrics to %s: %v", l.opts.MetricsTextfile, err)
		}
	}

	l.watchdog.Arm(l.opts.Watchdog)
}

func (l *Loop) systemAction(action shutdown.Action) Handler {
	return func(sig unix.Signal) {
		l.logger.Notice("Received %s, initiating %s", unix.SignalName(sig), action)
		if err := executeFunc(action, l.units, l.logger); err != nil {
			l.logger.Error("System %v; continuing to supervise", err)
		}
	}
}
