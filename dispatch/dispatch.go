// dispatch.go — the context switcher: picks the next runnable thread and
// hands control to it.
//
// Go offers no register-save/long-jump primitive, so each logical thread
// is a real goroutine and "saving" a context is the goroutine blocking on
// its own Resume channel; "restoring" a context is sending on the
// successor's Resume channel, which is the only thing that can unblock
// the receive inside that goroutine's own call to Dispatch. Because every
// Dispatch call executes on the currently-RUNNING goroutine's own stack —
// voluntarily, or because a checkpoint observed a pending preemption tick
// — prev is always that calling goroutine's own descriptor; there is no
// "prev absent" case to model separately the way a register-based
// scheduler has one. The one case that needs separate handling is
// self-termination, where the descriptor has already been torn down by
// the caller before Dispatch runs: ModeTerminate skips the steps that
// would touch a descriptor that no longer exists and never returns.

package dispatch

import (
	"os"

	"coopsched/debug"
	"coopsched/preempt"
	"coopsched/readyqueue"
	"coopsched/slottable"
	"coopsched/stackguard"
	"coopsched/syncgraph"
)

// Mode distinguishes a normal voluntary/involuntary switch from the
// self-termination path, which must not touch the outgoing descriptor
// (it no longer exists) and must never return to its caller.
type Mode int

const (
	Continue Mode = iota
	Terminate
)

// Switcher owns no state of its own beyond the running pointer and the
// quantum counters; everything else is the slot table, ready queue and
// sync graph it's handed at construction, which the façade also owns.
type Switcher struct {
	Table   *slottable.Table
	Ready   *readyqueue.Queue
	Sync    *syncgraph.Graph
	Preempt *preempt.Controller
	Guards  map[int]*stackguard.Guard

	running       *slottable.Descriptor
	totalQuantums int

	// OnDispatch, if set, is called synchronously every time a descriptor
	// transitions to RUNNING (including the bootstrap dispatch), before
	// the baton is handed off. Used by the façade to feed the audit log
	// without the dispatch package needing to know sqlite3 exists.
	OnDispatch func(id, nQuantum, total int)
}

// New wires a Switcher over the given bookkeeping structures.
func New(table *slottable.Table, ready *readyqueue.Queue, graph *syncgraph.Graph, ctrl *preempt.Controller) *Switcher {
	return &Switcher{
		Table:   table,
		Ready:   ready,
		Sync:    graph,
		Preempt: ctrl,
		Guards:  make(map[int]*stackguard.Guard),
	}
}

// Running returns the currently RUNNING descriptor, or nil before the
// first dispatch.
func (s *Switcher) Running() *slottable.Descriptor {
	return s.running
}

// TotalQuantums returns the process-wide dispatch counter.
func (s *Switcher) TotalQuantums() int {
	return s.totalQuantums
}

// Bootstrap performs the degenerate first dispatch at initialization:
// there is no predecessor and no ready-queue pop — the bootstrap
// descriptor is simply marked RUNNING on the calling goroutine, which is
// itself the "thread" being dispatched. No baton changes hands because
// there is no other goroutine yet to hand it to.
func (s *Switcher) Bootstrap(boot *slottable.Descriptor) {
	boot.State = slottable.Running
	boot.NQuantum++
	s.totalQuantums++
	s.running = boot
	if s.OnDispatch != nil {
		s.OnDispatch(boot.ID, boot.NQuantum, s.totalQuantums)
	}
}

// Dispatch clears prev's sync dependents, picks the next runnable
// thread, and hands control to it. Most façade callers have already
// masked preemption (Checkpoint has not); Dispatch masks on entry in
// either case, since masking is not reference-counted and a redundant
// Ignore is a no-op. On Continue, Dispatch blocks until prev is
// redispatched and then returns normally. On Terminate, Dispatch never
// returns: prev has already been removed from every bookkeeping
// structure by the caller, and the goroutine that was running it is
// finished.
func (s *Switcher) Dispatch(prev *slottable.Descriptor, mode Mode) {
	s.Preempt.Mask()

	if mode == Continue {
		s.clearTargetAndRequeue(prev.ID)
	}

	next := s.popNextRunnable()

	if mode == Continue {
		if prev.State != slottable.Blocked && s.Sync.Count(prev.ID) == 0 {
			if !s.Ready.Contains(prev.ID) {
				s.Ready.PushBack(prev.ID)
			}
		}
		if prev.State == slottable.Running {
			prev.State = slottable.Ready
		}
	}

	s.running = next
	next.State = slottable.Running
	next.NQuantum++
	s.totalQuantums++
	if s.OnDispatch != nil {
		s.OnDispatch(next.ID, next.NQuantum, s.totalQuantums)
	}

	if guard, ok := s.Guards[next.ID]; ok {
		if err := guard.Check(next.Stack); err != nil {
			debug.SystemError("stack guard", err)
			os.Exit(1)
		}
	}

	if next == prev {
		// Only reachable if a single-thread program re-dispatches itself
		// (e.g. resume of the sole ready thread after a self-sync), in
		// which case there is nothing to hand off.
		s.Preempt.Unmask()
		return
	}

	s.Preempt.Unmask()
	next.Resume <- struct{}{}

	if mode == Terminate {
		select {} // terminate(self) never returns to its caller
	}

	<-prev.Resume
}

// popNextRunnable pops descriptors from the ready queue front until one
// whose state is not BLOCKED is found. A well-formed program never
// drains the queue empty here because the bootstrap thread is always
// eligible unless explicitly blocked, which is forbidden.
func (s *Switcher) popNextRunnable() *slottable.Descriptor {
	for {
		id, ok := s.Ready.PopFront()
		if !ok {
			panic("dispatch: ready queue drained with no runnable thread")
		}
		d, ok := s.Table.Get(id)
		if !ok || d.State == slottable.Blocked {
			continue
		}
		return d
	}
}

// clearTargetAndRequeue satisfies every thread waiting on target:
// dispatching a thread clears it as a sync target, and every waiter
// whose dependency counter reaches zero is pushed back onto the ready
// queue if it is READY and not already present.
func (s *Switcher) clearTargetAndRequeue(target int) {
	unblocked := s.Sync.ClearTarget(target)
	for _, waiter := range unblocked {
		d, ok := s.Table.Get(waiter)
		if !ok || d.State != slottable.Ready {
			continue
		}
		if !s.Ready.Contains(waiter) {
			s.Ready.PushBack(waiter)
		}
	}
}
