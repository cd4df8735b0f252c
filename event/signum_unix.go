//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package event

import (
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"
)

// validSignal reports whether n names a signal known to the platform. Linux
// real-time signals have no name but are valid up to 64.
func validSignal(n int) bool {
	if n <= 0 || n >= 65 {
		return false
	}
	return runtime.GOOS == "linux" || unix.SignalName(syscall.Signal(n)) != ""
}

// catchable reports whether a handler may be installed for n.
func catchable(n int) bool {
	return n != int(unix.SIGKILL) && n != int(unix.SIGSTOP)
}
