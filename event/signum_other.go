//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package event

func validSignal(n int) bool { return n > 0 && n < 65 }

// catchable rejects SIGKILL.
func catchable(n int) bool { return n != 9 }
