// Package process implements process spawning and reaping for secinit.
package process

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ExecStage identifies the stage at which process setup failed.
type ExecStage uint8

const (
	StageLookPath ExecStage = iota
	StageDoExec
)

func (s ExecStage) String() string {
	switch s {
	case StageLookPath:
		return "locating executable"
	case StageDoExec:
		return "executing command"
	default:
		return fmt.Sprintf("ExecStage(%d)", s)
	}
}

// ExecError represents a failure to start a child process.
type ExecError struct {
	Command []string
	Stage   ExecStage
	Err     error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("failed while %s: %v", e.Stage, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// KillError represents a failure to terminate a running process.
type KillError struct {
	PID int
	Err error
}

func (e *KillError) Error() string {
	return fmt.Sprintf("killing process %d: %v", e.PID, e.Err)
}

func (e *KillError) Unwrap() error { return e.Err }

// ExecParams holds the parameters for starting a child process.
type ExecParams struct {
	// Command is the program and arguments to execute.
	Command []string

	// Env holds environment variables (key=value) added to the
	// supervisor's own environment.
	Env []string

	// OnConsole connects the child's stdio to the supervisor's (the console).
	OnConsole bool
}

// Exit is the collected status of one reaped child.
type Exit struct {
	PID    int
	Status unix.WaitStatus
}

// Exited returns true if the child exited normally.
func (e Exit) Exited() bool {
	return e.Status.Exited()
}

// ExitedClean returns true if the child exited with code 0.
func (e Exit) ExitedClean() bool {
	return e.Exited() && e.Status.ExitStatus() == 0
}

// Signaled returns true if the child was killed by a signal.
func (e Exit) Signaled() bool {
	return e.Status.Signaled()
}

// Describe renders the status the way it is reported on the console.
func (e Exit) Describe() string {
	switch {
	case e.Exited():
		return fmt.Sprintf("exit status: %d", e.Status.ExitStatus())
	case e.Signaled():
		return fmt.Sprintf("signal: %d (%s)", int(e.Status.Signal()), unix.SignalName(e.Status.Signal()))
	default:
		return fmt.Sprintf("wait status: %#x", uint32(e.Status))
	}
}
