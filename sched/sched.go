// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: sched.go — scheduler façade: the single process-wide
//             coordinator owning the slot table, ready queue, sync graph,
//             preemption controller and context switcher.
//
// Purpose:
//   - Implements every externally visible scheduling operation: init,
//     spawn, terminate, block, resume, sync, quantums, running_id,
//     total_quantums.
//   - Masks preemption on entry and unmasks on return, except where
//     control transfers into the switcher (which takes over the unmask
//     duty before handing off the baton). The read-only accessors
//     (Quantums, RunningID, TotalQuantums, History) do not mask, and
//     Checkpoint leaves masking to the switcher.
//
// Notes:
//   - There is exactly one Scheduler per process, built by Init and
//     reached by every other operation through the package-level
//     instance, since the preemption tick has to reach it without
//     parameters.
//   - Stack-canary checks (stackguard, through the switcher's Guards map)
//     and dispatch-history recording (auditlog, through the switcher's
//     OnDispatch hook) are instrumentation; neither changes any
//     operation's externally observable contract.
// ─────────────────────────────────────────────────────────────────────────────

package sched

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/sugawarayuuta/sonnet"

	"coopsched/auditlog"
	"coopsched/constants"
	"coopsched/debug"
	"coopsched/dispatch"
	"coopsched/preempt"
	"coopsched/readyqueue"
	"coopsched/slottable"
	"coopsched/stackguard"
	"coopsched/syncgraph"
)

// Scheduler is the single process-wide scheduling façade. It is not safe
// for concurrent use by more than one logical thread at a time — by
// construction, only the currently RUNNING thread ever calls into it.
type Scheduler struct {
	table    *slottable.Table
	ready    *readyqueue.Queue
	graph    *syncgraph.Graph
	preempt  *preempt.Controller
	switcher *dispatch.Switcher
	audit    *auditlog.Log

	pendingTick int32 // set by the preemption tick, observed by Checkpoint
}

var instance *Scheduler

// Init validates quantumUsecs, allocates the bootstrap descriptor (id
// 0, state RUNNING), starts the interval timer, and performs the
// degenerate first dispatch. It must be called exactly once before any
// other operation.
func Init(quantumUsecs int64) error {
	if quantumUsecs <= 0 {
		err := fmt.Errorf("quantum_usecs must be > 0, got %d", quantumUsecs)
		debug.LibraryError("init", err)
		return err
	}
	if instance != nil {
		err := fmt.Errorf("already initialized")
		debug.LibraryError("init", err)
		return err
	}

	s := &Scheduler{
		table: slottable.New(constants.MaxThreads),
		ready: readyqueue.New(constants.MaxThreads),
		graph: syncgraph.New(constants.MaxThreads),
	}
	s.preempt = preempt.New(s.onTick)
	s.switcher = dispatch.New(s.table, s.ready, s.graph, s.preempt)

	if audit, err := auditlog.Open(); err == nil {
		s.audit = audit
		s.switcher.OnDispatch = s.recordDispatch
	}
	// A failed audit log open is not treated as an unrecoverable error:
	// the scheduler runs correctly without its optional history, so
	// instrumentation degrades silently rather than aborting the process.

	boot := &slottable.Descriptor{State: slottable.Running, Resume: make(chan struct{}), Stack: stackguard.NewStack()}
	s.table.Bootstrap(boot)
	s.switcher.Guards[boot.ID] = stackguard.Stamp(boot.Stack)

	instance = s
	instance.preempt.Start(quantumUsecs)
	instance.switcher.Bootstrap(boot)
	return nil
}

func (s *Scheduler) onTick() {
	atomic.StoreInt32(&s.pendingTick, 1)
}

func (s *Scheduler) recordDispatch(id, nQuantum, total int) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(id, nQuantum, total); err != nil {
		debug.SystemError("audit log record", err)
	}
}

func requireInit() (*Scheduler, error) {
	if instance == nil {
		err := fmt.Errorf("scheduler not initialized")
		debug.LibraryError("operation before init", err)
		return nil, err
	}
	return instance, nil
}

// Checkpoint is the "observe a pending involuntary preemption" call the
// running thread's own busy loop is expected to make periodically, since
// Go cannot interrupt an arbitrary goroutine from the outside. No other
// façade operation consults the pending-tick flag; they switch threads
// only on voluntary suspension (terminate or block of the running
// thread, sync). If a tick is pending, it clears the flag and dispatches, requeuing the
// still-READY running thread exactly as an involuntary preemption would.
func Checkpoint() {
	s, err := requireInit()
	if err != nil {
		return
	}
	if !atomic.CompareAndSwapInt32(&s.pendingTick, 1, 0) {
		return
	}
	prev := s.switcher.Running()
	if prev == nil {
		return
	}
	s.switcher.Dispatch(prev, dispatch.Continue)
}

// Spawn allocates the smallest free id, builds a READY descriptor whose
// goroutine will run entry once it receives its first baton, and
// enqueues it at the back of the ready queue.
func Spawn(entry func()) (int, error) {
	s, err := requireInit()
	if err != nil {
		return -1, err
	}
	s.preempt.Mask()
	defer s.preempt.Unmask()

	d := &slottable.Descriptor{State: slottable.Ready, Entry: entry, Resume: make(chan struct{}), Stack: stackguard.NewStack()}
	id, err := s.table.Allocate(d)
	if err != nil {
		debug.LibraryError("spawn", err)
		return -1, err
	}
	s.switcher.Guards[id] = stackguard.Stamp(d.Stack)
	s.ready.PushBack(id)

	go func() {
		<-d.Resume
		entry()
		// entry returning on its own is not a defined way for a thread to
		// end; terminate it defensively rather than leak the goroutine or
		// hang the rotation.
		Terminate(d.ID)
	}()

	return id, nil
}

// Terminate frees tid's descriptor. tid == 0 is the special bootstrap
// case: every descriptor is abandoned and the process exits with status
// 0. Terminating the running thread itself never returns to the caller.
func Terminate(tid int) error {
	s, err := requireInit()
	if err != nil {
		return err
	}
	s.preempt.Mask()

	d, ok := s.table.Get(tid)
	if !ok {
		s.preempt.Unmask()
		err := fmt.Errorf("terminate: tid %d out of range or unoccupied", tid)
		debug.LibraryError("terminate", err)
		return err
	}

	if tid == 0 {
		s.preempt.Stop()
		os.Exit(0)
	}

	wasRunning := s.switcher.Running() == d

	unblocked := s.graph.Purge(tid)
	for _, waiter := range unblocked {
		if wd, ok := s.table.Get(waiter); ok && wd.State == slottable.Ready && !s.ready.Contains(waiter) {
			s.ready.PushBack(waiter)
		}
	}
	s.ready.Remove(tid)
	s.table.Release(tid)
	delete(s.switcher.Guards, tid)

	if wasRunning {
		s.switcher.Dispatch(d, dispatch.Terminate) // never returns
	}

	s.preempt.Unmask()
	return nil
}

// Block sets tid's state to BLOCKED and removes it from the ready
// queue. Idempotent on an already-blocked thread. Blocking the running
// thread dispatches the switcher; this call returns only once tid is
// later resumed and redispatched.
func Block(tid int) error {
	s, err := requireInit()
	if err != nil {
		return err
	}
	s.preempt.Mask()

	if tid == 0 {
		s.preempt.Unmask()
		err := fmt.Errorf("block: bootstrap thread cannot be blocked")
		debug.LibraryError("block", err)
		return err
	}
	d, ok := s.table.Get(tid)
	if !ok {
		s.preempt.Unmask()
		err := fmt.Errorf("block: tid %d out of range or unoccupied", tid)
		debug.LibraryError("block", err)
		return err
	}
	if d.State == slottable.Blocked {
		s.preempt.Unmask()
		return nil
	}

	wasRunning := s.switcher.Running() == d
	d.State = slottable.Blocked
	s.ready.Remove(tid)

	if wasRunning {
		s.switcher.Dispatch(d, dispatch.Continue) // returns once resumed+redispatched
		return nil
	}
	s.preempt.Unmask()
	return nil
}

// Resume sets tid's state to READY. If it still has outstanding sync
// dependencies (C[tid] > 0) it stays off the ready queue; otherwise it
// is enqueued at the back. Idempotent on an already-ready, unsynced
// thread.
func Resume(tid int) error {
	s, err := requireInit()
	if err != nil {
		return err
	}
	s.preempt.Mask()
	defer s.preempt.Unmask()

	d, ok := s.table.Get(tid)
	if !ok {
		err := fmt.Errorf("resume: tid %d out of range or unoccupied", tid)
		debug.LibraryError("resume", err)
		return err
	}

	d.State = slottable.Ready
	if s.graph.Count(tid) == 0 && !s.ready.Contains(tid) {
		s.ready.PushBack(tid)
	}
	return nil
}

// Sync records that the running thread will not be redispatched until
// tid is next dispatched, then yields. Forbidden from the bootstrap
// thread, which never has anything meaningful to wait on and must stay
// always-ready.
func Sync(tid int) error {
	s, err := requireInit()
	if err != nil {
		return err
	}
	s.preempt.Mask()

	running := s.switcher.Running()
	if running == nil || running.ID == 0 {
		s.preempt.Unmask()
		err := fmt.Errorf("sync: forbidden from the bootstrap thread")
		debug.LibraryError("sync", err)
		return err
	}
	if _, ok := s.table.Get(tid); !ok {
		s.preempt.Unmask()
		err := fmt.Errorf("sync: tid %d out of range or unoccupied", tid)
		debug.LibraryError("sync", err)
		return err
	}

	s.graph.AddDependency(running.ID, tid)
	s.switcher.Dispatch(running, dispatch.Continue) // returns once tid's next dispatch clears it
	return nil
}

// Quantums returns tid's dispatch count, or -1 if tid is unoccupied.
func Quantums(tid int) int {
	s, err := requireInit()
	if err != nil {
		return -1
	}
	d, ok := s.table.Get(tid)
	if !ok {
		err := fmt.Errorf("quantums: tid %d out of range or unoccupied", tid)
		debug.LibraryError("quantums", err)
		return -1
	}
	return d.NQuantum
}

// RunningID returns the currently RUNNING thread's id.
func RunningID() int {
	s, err := requireInit()
	if err != nil {
		return -1
	}
	d := s.switcher.Running()
	if d == nil {
		return -1
	}
	return d.ID
}

// TotalQuantums returns the process-wide dispatch counter.
func TotalQuantums() int {
	s, err := requireInit()
	if err != nil {
		return -1
	}
	return s.switcher.TotalQuantums()
}

// History returns tid's recorded dispatch history, or an error if the
// audit log could not be opened at Init time.
func History(tid int) ([]auditlog.Record, error) {
	s, err := requireInit()
	if err != nil {
		return nil, err
	}
	if s.audit == nil {
		return nil, fmt.Errorf("history: audit log unavailable")
	}
	return s.audit.History(tid)
}

// ThreadSnapshot is one descriptor's diagnostic view, as returned by
// Snapshot and SnapshotJSON.
type ThreadSnapshot struct {
	ID         int    `json:"id"`
	State      string `json:"state"`
	NQuantum   int    `json:"n_quantum"`
	Dependents int    `json:"dependents"` // count of sync() targets this thread still awaits
}

// Snapshot returns a diagnostic view of every occupied slot, in
// ascending id order. It does not mutate scheduler state and is safe to call
// from the running thread itself (e.g. for logging).
func Snapshot() []ThreadSnapshot {
	s, err := requireInit()
	if err != nil {
		return nil
	}
	s.preempt.Mask()
	defer s.preempt.Unmask()

	out := make([]ThreadSnapshot, 0, constants.MaxThreads)
	for id := 0; id < s.table.Capacity(); id++ {
		d, ok := s.table.Get(id)
		if !ok {
			continue
		}
		out = append(out, ThreadSnapshot{
			ID:         d.ID,
			State:      d.State.String(),
			NQuantum:   d.NQuantum,
			Dependents: s.graph.Count(d.ID),
		})
	}
	return out
}

// SnapshotJSON renders Snapshot's result as JSON, encoded with sonnet
// rather than encoding/json.
func SnapshotJSON() ([]byte, error) {
	return sonnet.Marshal(Snapshot())
}

// ForceReset tears down the package-level singleton so a fresh Init can
// run again. Exported so other packages' tests (threadlib's, notably)
// can get a clean scheduler between cases; production callers never
// need a second Init in the same process.
func ForceReset() {
	reset()
}

// reset tears down the package-level singleton. Test-only: production
// callers never need a second Init in the same process.
func reset() {
	if instance != nil && instance.preempt != nil {
		instance.preempt.Stop()
	}
	if instance != nil && instance.audit != nil {
		instance.audit.Close()
	}
	instance = nil
}
