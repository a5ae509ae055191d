//go:build linux

// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: timer_linux.go — Linux virtual-time interval timer (setitimer)
//
// Mirrors timer_darwin.go; the syscall is identical on both, but this repo
// keeps the platform split its main_linux.go/main_darwin.go predecessor used
// for its epoll/kqueue event loops, so future per-OS divergence (e.g. a
// clock_nanosleep-based fallback) has an obvious home.
// ─────────────────────────────────────────────────────────────────────────────

package preempt

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// preemptSignal is delivered once per elapsed quantum of process-CPU
// (virtual) time, as opposed to wall-clock time.
const preemptSignal = syscall.SIGVTALRM

func armTimer(quantumUsecs int64) error {
	iv := unix.Itimerval{
		Interval: unix.Timeval{Sec: quantumUsecs / 1_000_000, Usec: quantumUsecs % 1_000_000},
		Value:    unix.Timeval{Sec: quantumUsecs / 1_000_000, Usec: quantumUsecs % 1_000_000},
	}
	_, err := unix.Setitimer(unix.ITIMER_VIRTUAL, iv)
	return err
}

func disarmTimer() {
	var zero unix.Itimerval
	_, _ = unix.Setitimer(unix.ITIMER_VIRTUAL, zero)
}
