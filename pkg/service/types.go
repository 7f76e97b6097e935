// Package service implements secinit's units: named sets of spawned
// processes that can be loaded, unloaded, enabled and disabled.
package service

import (
	"errors"
	"fmt"
)

// Kind identifies how a unit's processes behave.
type Kind uint8

const (
	KindBlocking Kind = iota // One-shot commands; nothing to terminate on unload
	KindDaemon               // Long-running processes, killed on unload
)

func (k Kind) String() string {
	switch k {
	case KindBlocking:
		return "blocking"
	case KindDaemon:
		return "daemon"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// ErrBusy is returned when a unit is already being mutated by another caller.
var ErrBusy = errors.New("unit is busy")

// BusyError reports a rejected mutation of a unit's process list.
type BusyError struct {
	Unit string
	Op   string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("%s unit '%s': %v", e.Op, e.Unit, ErrBusy)
}

func (e *BusyError) Unwrap() error { return ErrBusy }

// UnitNotFound is returned when a requested unit is not registered.
type UnitNotFound struct {
	Name string
}

func (e *UnitNotFound) Error() string {
	return fmt.Sprintf("unit not found: %s", e.Name)
}

// Logger is the interface for logging unit events.
type Logger interface {
	UnitLoaded(name string, running, total int)
	UnitUnloaded(name string)
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Proc is a running process owned by a unit.
type Proc interface {
	PID() int
	Command() []string
	Kill() error
	Release() error
}

// SpawnFunc starts one command and returns its process.
type SpawnFunc func(command []string) (Proc, error)
