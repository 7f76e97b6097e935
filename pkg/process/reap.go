package process

import "golang.org/x/sys/unix"

// ReapAll collects every child that has already terminated, without
// blocking, and returns their exits in the order they were collected. It
// stops as soon as no further child is immediately reapable. Ownership of
// the returned PIDs is the caller's business.
func ReapAll() ([]Exit, error) {
	var exits []Exit
	for {
		var ws unix.WaitStatus
		pid, err := wait4Func(-1, &ws, unix.WNOHANG, nil)
		if err == unix.EINTR {
			continue
		}
		if err == unix.ECHILD {
			return exits, nil
		}
		if err != nil {
			return exits, err
		}
		if pid <= 0 {
			return exits, nil
		}
		exits = append(exits, Exit{PID: pid, Status: ws})
	}
}
