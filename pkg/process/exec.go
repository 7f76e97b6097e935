package process

import (
	"errors"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// Mockable syscall functions for testing.
var (
	wait4Func  = unix.Wait4
	signalFunc = func(p *os.Process, sig os.Signal) error { return p.Signal(sig) }
)

// Handle refers to one spawned child process. The supervisor never calls
// exec.Cmd.Wait on it: the child is collected either through the handle's
// own Poll/Wait or by ReapAll, so a handle may outlive its process.
type Handle struct {
	proc    *os.Process
	command []string
	exit    *Exit
}

// Spawn starts a child process described by params. It does not wait for
// the child; the child's exit status is collected by the reaper.
func Spawn(params ExecParams) (*Handle, error) {
	if len(params.Command) == 0 {
		return nil, &ExecError{Stage: StageDoExec, Err: os.ErrInvalid}
	}

	cmd := exec.Command(params.Command[0], params.Command[1:]...)
	if cmd.Err != nil {
		return nil, &ExecError{Command: params.Command, Stage: StageLookPath, Err: cmd.Err}
	}

	if len(params.Env) > 0 {
		cmd.Env = append(os.Environ(), params.Env...)
	}

	if params.OnConsole {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, &ExecError{Command: params.Command, Stage: StageDoExec, Err: err}
	}

	return &Handle{proc: cmd.Process, command: params.Command}, nil
}

// PID returns the operating-system process ID of the child.
func (h *Handle) PID() int { return h.proc.Pid }

// Command returns the argument vector the child was started with.
func (h *Handle) Command() []string { return h.command }

// Kill forcibly terminates the child with SIGKILL. A child that has
// already been reaped is not an error.
func (h *Handle) Kill() error {
	err := signalFunc(h.proc, unix.SIGKILL)
	if err == nil || errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return &KillError{PID: h.proc.Pid, Err: err}
}

// Poll collects the child's status if it has terminated, without blocking.
// The boolean result reports whether the child has exited.
func (h *Handle) Poll() (Exit, bool, error) {
	return h.wait(unix.WNOHANG)
}

// Wait blocks until the child terminates and returns its status.
func (h *Handle) Wait() (Exit, error) {
	e, _, err := h.wait(0)
	return e, err
}

func (h *Handle) wait(options int) (Exit, bool, error) {
	if h.exit != nil {
		return *h.exit, true, nil
	}
	var ws unix.WaitStatus
	for {
		pid, err := wait4Func(h.proc.Pid, &ws, options, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return Exit{}, false, err
		}
		if pid == 0 {
			return Exit{}, false, nil
		}
		h.exit = &Exit{PID: pid, Status: ws}
		return *h.exit, true, nil
	}
}

// Release frees the resources held for the child. The handle must not be
// used afterwards.
func (h *Handle) Release() error {
	return h.proc.Release()
}
