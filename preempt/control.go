// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: control.go — preemption controller: virtual-time interval timer
//             plus the mask/unmask discipline the rest of the scheduler relies on.
//
// Purpose:
//   - Arms a periodic virtual-time interval timer (SIGVTALRM) that drives
//     involuntary context switches.
//   - Exposes Mask/Unmask as a non-reference-counted ignore/restore toggle
//     on the timer signal's disposition: masking installs an ignore
//     disposition, unmasking reinstalls the real handler. Nested critical
//     sections are a caller bug, not something this package guards
//     against (the façade's own discipline prevents it).
//
// Notes:
//   - The interval timer itself (setitimer) has no portable stdlib path in
//     Go; golang.org/x/sys/unix exposes it on the unix family. Arming is
//     split per-OS (timer_linux.go / timer_darwin.go), with timer_other.go
//     covering every other GOOS with an error instead of a silent no-op,
//     in the same spirit as this repo's historic main_linux.go/main_darwin.go
//     platform split.
//   - Failure to install the handler or arm the timer is unrecoverable:
//     the process aborts via debug.SystemError + os.Exit(1).
// ─────────────────────────────────────────────────────────────────────────────

package preempt

import (
	"os"
	"os/signal"

	"coopsched/debug"
)

// Controller owns the signal channel and the callback invoked on every
// timer tick. There is exactly one Controller per process (owned by the
// scheduler façade); it is not safe for concurrent Start/Stop calls.
type Controller struct {
	sigCh   chan os.Signal
	onTick  func()
	started bool
	stopCh  chan struct{}
}

// New constructs a Controller that will invoke onTick once per quantum,
// once Start is called.
func New(onTick func()) *Controller {
	return &Controller{
		sigCh:  make(chan os.Signal, 1),
		onTick: onTick,
		stopCh: make(chan struct{}),
	}
}

// Start arms the virtual-time interval timer for quantumUsecs and begins
// forwarding ticks to onTick on a dedicated goroutine. System-level
// failure (timer arm, signal registration) is unrecoverable.
func (c *Controller) Start(quantumUsecs int64) {
	signal.Notify(c.sigCh, preemptSignal)

	if err := armTimer(quantumUsecs); err != nil {
		debug.SystemError("arm preemption timer", err)
		os.Exit(1)
	}

	c.started = true
	go c.loop()
}

func (c *Controller) loop() {
	for {
		select {
		case <-c.sigCh:
			c.onTick()
		case <-c.stopCh:
			return
		}
	}
}

// Mask installs an ignore disposition for the preemption signal. Not
// reference-counted: a second Mask without an intervening Unmask is a
// caller bug, not a no-op-safe nested section.
func (c *Controller) Mask() {
	signal.Ignore(preemptSignal)
}

// Unmask reinstalls the real handler, resuming delivery to onTick.
func (c *Controller) Unmask() {
	signal.Notify(c.sigCh, preemptSignal)
}

// Stop disarms the timer and releases the signal registration. Used by
// bootstrap termination before process exit.
func (c *Controller) Stop() {
	if !c.started {
		return
	}
	disarmTimer()
	signal.Stop(c.sigCh)
	close(c.stopCh)
	c.started = false
}
