//go:build !linux && !darwin

// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: timer_other.go — fallback for platforms without a
//             setitimer(ITIMER_VIRTUAL, ...) binding in golang.org/x/sys/unix.
//
// There is no virtual-time interval timer available here, so involuntary
// preemption cannot be armed; Start reports this as an unrecoverable
// error and exits the process instead of silently never preempting, so
// the scheduler cannot be initialized on these platforms.
// ─────────────────────────────────────────────────────────────────────────────

package preempt

import (
	"fmt"
	"runtime"
	"syscall"
)

const preemptSignal = syscall.Signal(0)

func armTimer(quantumUsecs int64) error {
	return fmt.Errorf("preempt: virtual-time interval timer not supported on %s", runtime.GOOS)
}

func disarmTimer() {}
