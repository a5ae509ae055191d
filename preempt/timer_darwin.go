//go:build darwin

// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: timer_darwin.go — Darwin/BSD virtual-time interval timer (setitimer)
//
// Same setitimer(ITIMER_VIRTUAL, ...) contract as timer_linux.go. Kept as a
// separate file per the platform-split convention this package inherited
// from the historic main_linux.go/main_darwin.go pair.
// ─────────────────────────────────────────────────────────────────────────────

package preempt

import (
	"syscall"

	"golang.org/x/sys/unix"
)

const preemptSignal = syscall.SIGVTALRM

func armTimer(quantumUsecs int64) error {
	iv := unix.Itimerval{
		Interval: unix.Timeval{Sec: quantumUsecs / 1_000_000, Usec: int32(quantumUsecs % 1_000_000)},
		Value:    unix.Timeval{Sec: quantumUsecs / 1_000_000, Usec: int32(quantumUsecs % 1_000_000)},
	}
	return unix.Setitimer(unix.ITIMER_VIRTUAL, &iv, nil)
}

func disarmTimer() {
	var zero unix.Itimerval
	_ = unix.Setitimer(unix.ITIMER_VIRTUAL, &zero, nil)
}
