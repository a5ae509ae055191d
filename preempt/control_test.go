// ════════════════════════════════════════════════════════════════════════════════════════════════
// TEST SUITE: PREEMPTION CONTROLLER
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Component: Preemption Controller Test Suite
//
// Description:
//   Validates the virtual-time interval timer and the mask/unmask signal
//   discipline the rest of the scheduler relies on to define its critical
//   sections.
// ════════════════════════════════════════════════════════════════════════════════════════════════

package preempt

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestController_TicksArriveWhileUnmasked(t *testing.T) {
	var ticks int32
	c := New(func() { atomic.AddInt32(&ticks, 1) })
	c.Start(2000)
	defer c.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&ticks) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if atomic.LoadInt32(&ticks) == 0 {
		t.Fatalf("no ticks observed within deadline")
	}
}

func TestController_MaskSuppressesTicks(t *testing.T) {
	var ticks int32
	c := New(func() { atomic.AddInt32(&ticks, 1) })
	c.Start(1500)
	defer c.Stop()
	c.Mask()

	time.Sleep(50 * time.Millisecond)
	frozen := atomic.LoadInt32(&ticks)

	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&ticks) != frozen {
		t.Fatalf("ticks advanced while masked: %d -> %d", frozen, atomic.LoadInt32(&ticks))
	}

	c.Unmask()
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&ticks) == frozen && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if atomic.LoadInt32(&ticks) == frozen {
		t.Fatalf("ticks never resumed after Unmask")
	}
}

func TestController_StopHaltsTicksAndIsIdempotent(t *testing.T) {
	var ticks int32
	c := New(func() { atomic.AddInt32(&ticks, 1) })
	c.Start(1500)

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&ticks) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if atomic.LoadInt32(&ticks) == 0 {
		t.Fatalf("no ticks observed before Stop")
	}

	c.Stop()
	frozen := atomic.LoadInt32(&ticks)
	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&ticks) != frozen {
		t.Fatalf("ticks advanced after Stop: %d -> %d", frozen, atomic.LoadInt32(&ticks))
	}

	// A Controller that was never started tolerates Stop as a no-op.
	fresh := New(func() {})
	fresh.Stop()
}
