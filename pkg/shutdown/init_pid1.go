// Package shutdown implements process-1 start-up checks and the system
// poweroff and reboot sequence for secinit.
package shutdown

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/sunlightlinux/secinit/pkg/logging"
)

// Mockable start-up functions for testing.
var (
	getpidFunc = os.Getpid
	chdirFunc  = os.Chdir
)

// PreconditionError is a start-up condition process 1 cannot recover from.
type PreconditionError struct {
	Check string
	Err   error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition %q failed: %v", e.Check, e.Err)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// CheckPreconditions verifies that secinit runs as process 1 and moves the
// working directory to the filesystem root.
func CheckPreconditions() error {
	if pid := getpidFunc(); pid != 1 {
		return &PreconditionError{
			Check: "pid",
			Err:   fmt.Errorf("must be running as the first process (PID 1), running as %d", pid),
		}
	}
	if err := chdirFunc("/"); err != nil {
		return &PreconditionError{Check: "chdir /", Err: err}
	}
	return nil
}

// InitPID1 performs early, non-fatal set-up when running as PID 1: the
// console becomes stdin/stdout/stderr and Ctrl+Alt+Del is turned into a
// SIGINT delivered to us instead of an immediate kernel reboot.
func InitPID1(logger *logging.Logger) {
	if err := setupConsole(); err != nil {
		logger.Debug("Console setup: %v (non-fatal)", err)
	} else {
		logger.Debug("Console redirected to /dev/console")
	}

	if err := disableCAD(); err != nil {
		logger.Debug("Disable CAD: %v (non-fatal)", err)
	} else {
		logger.Debug("Ctrl+Alt+Del disabled")
	}
}

// setupConsole opens /dev/console and redirects stdin, stdout, and stderr to it.
func setupConsole() error {
	if err := redirect("/dev/console", unix.O_RDONLY, 0); err != nil {
		return err
	}
	return redirect("/dev/console", unix.O_RDWR, 1, 2)
}

func redirect(path string, mode int, fds ...int) error {
	src, err := unix.Open(path, mode, 0)
	if err != nil {
		return err
	}
	for _, fd := range fds {
		if src == fd {
			continue
		}
		if err := unix.Dup3(src, fd, 0); err != nil {
			if src > 2 {
				unix.Close(src)
			}
			return err
		}
	}
	if src > 2 {
		unix.Close(src)
	}
	return nil
}

// disableCAD disables the Ctrl+Alt+Del reboot key combination.
func disableCAD() error {
	return rebootFunc(unix.LINUX_REBOOT_CMD_CAD_OFF)
}
