package runstate

import (
	"errors"

	"golang.org/x/sys/unix"
)

// processAlive is swappable in tests.
var processAlive = func(pid int) bool {
	// Signal 0 performs the permission and existence checks without
	// delivering anything. EPERM means the process exists but belongs to
	// another user, which still counts as alive.
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, unix.EPERM)
}

// ProcessAlive reports whether a process with the given pid exists.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return processAlive(pid)
}
