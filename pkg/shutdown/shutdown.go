package shutdown

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sunlightlinux/secinit/pkg/logging"
)

// Action is a system-level action taken after all units are stopped.
type Action uint8

const (
	ActionHalt     Action = iota // Halt without powering down
	ActionPoweroff               // Power the machine off
	ActionReboot                 // Reboot the machine
)

func (a Action) String() string {
	switch a {
	case ActionHalt:
		return "halt"
	case ActionPoweroff:
		return "poweroff"
	case ActionReboot:
		return "reboot"
	default:
		return fmt.Sprintf("Action(%d)", a)
	}
}

// Mockable syscall functions for testing.
var (
	killFunc   = unix.Kill
	syncFunc   = unix.Sync
	rebootFunc = unix.Reboot

	// killGracePeriod is the time to wait between SIGTERM and SIGKILL
	// when killing all remaining processes.
	killGracePeriod = 1 * time.Second
)

// Unloader stops every unit the supervisor knows about.
type Unloader interface {
	UnloadAll()
}

// Execute stops every unit, kills every remaining process, syncs
// filesystems and issues the reboot syscall for action. It only returns
// if the syscall fails; the caller keeps supervising in that case.
func Execute(action Action, units Unloader, logger *logging.Logger) error {
	logger.Notice("Executing %s", action)

	units.UnloadAll()

	KillAllProcesses(logger)

	logger.Info("Syncing filesystems...")
	syncFunc()

	if err := rebootSystem(action); err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	return nil
}

// KillAllProcesses sends SIGTERM to all processes, waits for a grace period,
// then sends SIGKILL. kill(-1, sig) reaches every process except PID 1.
func KillAllProcesses(logger *logging.Logger) {
	logger.Info("Sending SIGTERM to all processes...")
	if err := killFunc(-1, unix.SIGTERM); err != nil {
		// ESRCH means no processes to signal - that's fine
		if err != unix.ESRCH {
			logger.Debug("kill(-1, SIGTERM): %v", err)
		}
	}

	time.Sleep(killGracePeriod)

	logger.Info("Sending SIGKILL to remaining processes...")
	if err := killFunc(-1, unix.SIGKILL); err != nil {
		if err != unix.ESRCH {
			logger.Debug("kill(-1, SIGKILL): %v", err)
		}
	}
}

func rebootSystem(action Action) error {
	var cmd int
	switch action {
	case ActionPoweroff:
		cmd = unix.LINUX_REBOOT_CMD_POWER_OFF
	case ActionReboot:
		cmd = unix.LINUX_REBOOT_CMD_RESTART
	default:
		cmd = unix.LINUX_REBOOT_CMD_HALT
	}
	return rebootFunc(cmd)
}

// InfiniteHold blocks the calling goroutine forever. PID 1 must never
// exit; this is the last resort when the supervisor loop returns.
func InfiniteHold() {
	select {}
}
