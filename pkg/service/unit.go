package service

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sunlightlinux/secinit/pkg/metrics"
	"github.com/sunlightlinux/secinit/pkg/process"
)

// Unit is a named set of commands and the processes spawned from them.
//
// Only one mutator (Load, Unload, Forget) may run at a time. A second
// mutator, whether from another goroutine or re-entered from a signal
// handler further up the stack, fails immediately with a BusyError
// instead of waiting.
type Unit struct {
	name     string
	commands [][]string
	kind     Kind

	env    []string
	spawn  SpawnFunc
	logger Logger

	// busy is held for the whole duration of a mutation.
	busy atomic.Bool

	// mu guards the fields below for readers; writers also hold busy.
	mu      sync.Mutex
	running []Proc
	active  bool
	enabled bool
}

// NewUnit creates a unit. The name, commands and kind are fixed for the
// lifetime of the unit.
func NewUnit(name string, kind Kind, commands [][]string, logger Logger) *Unit {
	return &Unit{
		name:     name,
		commands: commands,
		kind:     kind,
		logger:   logger,
	}
}

// SetEnv sets extra KEY=VALUE variables for every command the unit starts.
// It must be called before the first Load.
func (u *Unit) SetEnv(env []string) { u.env = env }

// SetSpawner replaces the function used to start commands.
func (u *Unit) SetSpawner(f SpawnFunc) { u.spawn = f }

// start runs one command on the console with the unit's environment,
// unless a spawner was set.
func (u *Unit) start(command []string) (Proc, error) {
	if u.spawn != nil {
		return u.spawn(command)
	}
	h, err := process.Spawn(process.ExecParams{Command: command, Env: u.env, OnConsole: true})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Name returns the unit name.
func (u *Unit) Name() string { return u.name }

// Kind returns the unit kind.
func (u *Unit) Kind() Kind { return u.kind }

// IsRunning reports whether the last Load completed and no Unload followed.
func (u *Unit) IsRunning() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.active
}

// IsEnabled reports whether the unit was enabled.
func (u *Unit) IsEnabled() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.enabled
}

// Processes returns a snapshot of the processes the unit tracks.
func (u *Unit) Processes() []Proc {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]Proc(nil), u.running...)
}

// Owns reports whether pid belongs to one of the unit's processes.
func (u *Unit) Owns(pid int) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return indexOf(u.running, pid) >= 0
}

func (u *Unit) acquire(op string) error {
	if !u.busy.CompareAndSwap(false, true) {
		metrics.BusyRejected(u.name)
		return &BusyError{Unit: u.name, Op: op}
	}
	return nil
}

func (u *Unit) release() {
	u.busy.Store(false)
}

// Load spawns every command of the unit. A command that fails to start is
// logged and skipped, so the unit may end up running fewer processes than
// it has commands; Load still succeeds in that case.
func (u *Unit) Load() error {
	if err := u.acquire("load"); err != nil {
		return err
	}
	defer u.release()

	var spawned []Proc
	for _, cmd := range u.commands {
		p, err := u.start(cmd)
		if err != nil {
			u.logger.Error("Unit '%s': error starting '%s': %v", u.name, strings.Join(cmd, " "), err)
			metrics.SpawnFailed(u.name)
			continue
		}
		u.logger.Debug("Unit '%s': started '%s' as process %d", u.name, cmd[0], p.PID())
		spawned = append(spawned, p)
	}

	u.mu.Lock()
	u.running = append(u.running, spawned...)
	u.active = true
	n := len(u.running)
	u.mu.Unlock()

	metrics.SetRunning(u.name, n)
	u.logger.UnitLoaded(u.name, len(spawned), len(u.commands))
	return nil
}

// Unload terminates a daemon unit's processes. Blocking units have nothing
// to terminate and return immediately. A process that cannot be killed is
// logged; the remaining processes are still terminated and the unit ends
// up with an empty process list either way.
func (u *Unit) Unload() error {
	if u.kind == KindBlocking {
		return nil
	}
	if err := u.acquire("unload"); err != nil {
		return err
	}
	defer u.release()

	u.mu.Lock()
	procs := u.running
	u.mu.Unlock()

	for _, p := range procs {
		if err := p.Kill(); err != nil {
			u.logger.Error("Unit '%s': %v", u.name, err)
			metrics.KillFailed(u.name)
		}
		p.Release()
	}

	u.mu.Lock()
	u.running = nil
	u.active = false
	u.mu.Unlock()

	metrics.SetRunning(u.name, 0)
	u.logger.UnitUnloaded(u.name)
	return nil
}

// Enable marks the unit as enabled and, if now is set, loads it. Only the
// in-memory flag is recorded.
func (u *Unit) Enable(now bool) error {
	if now {
		if err := u.Load(); err != nil {
			return err
		}
	}
	u.mu.Lock()
	u.enabled = true
	u.mu.Unlock()
	return nil
}

// Disable clears the enabled flag and, if now is set, unloads the unit.
func (u *Unit) Disable(now bool) error {
	if now {
		if err := u.Unload(); err != nil {
			return err
		}
	}
	u.mu.Lock()
	u.enabled = false
	u.mu.Unlock()
	return nil
}

// Forget drops the process with the given pid after it has been reaped and
// returns it. It returns nil if the unit does not own pid.
func (u *Unit) Forget(pid int) (Proc, error) {
	if err := u.acquire("forget"); err != nil {
		return nil, err
	}
	defer u.release()

	u.mu.Lock()
	i := indexOf(u.running, pid)
	if i < 0 {
		u.mu.Unlock()
		return nil, nil
	}
	p := u.running[i]
	u.running = append(u.running[:i:i], u.running[i+1:]...)
	n := len(u.running)
	u.mu.Unlock()

	p.Release()
	metrics.SetRunning(u.name, n)
	return p, nil
}

func indexOf(procs []Proc, pid int) int {
	for i, p := range procs {
		if p.PID() == pid {
			return i
		}
	}
	return -1
}
