// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: threadlib.go — thin external API wrapper
//
// Purpose:
//   - Exposes the scheduler's operations with a C-style return-value
//     convention: 0/-1 for most operations, the new tid for spawn, no
//     return for terminate(self)/terminate(0). Every other piece of
//     behavior lives in sched; this package only adapts error returns to
//     integer sentinels.
// ─────────────────────────────────────────────────────────────────────────────

package threadlib

import "coopsched/sched"

// Init starts the scheduler with the given quantum length in
// microseconds. Returns 0 on success, -1 on failure.
func Init(quantumUsecs int64) int {
	if err := sched.Init(quantumUsecs); err != nil {
		return -1
	}
	return 0
}

// Spawn creates a new thread running entry. Returns the new tid, or -1
// when the thread table is full or the scheduler is uninitialized.
func Spawn(entry func()) int {
	id, err := sched.Spawn(entry)
	if err != nil {
		return -1
	}
	return id
}

// Terminate frees tid. Returns 0 on success, -1 on failure. Never
// returns at all when tid is 0 or the calling thread itself.
func Terminate(tid int) int {
	if err := sched.Terminate(tid); err != nil {
		return -1
	}
	return 0
}

// Block suspends tid until a matching Resume. Returns 0 on success
// (including the already-blocked idempotent case), -1 on failure.
func Block(tid int) int {
	if err := sched.Block(tid); err != nil {
		return -1
	}
	return 0
}

// Resume makes tid eligible for dispatch again. Returns 0 on success
// (including the already-ready idempotent case), -1 on failure.
func Resume(tid int) int {
	if err := sched.Resume(tid); err != nil {
		return -1
	}
	return 0
}

// Sync suspends the calling thread until tid is next dispatched.
// Returns 0 on success, -1 on failure (including the bootstrap-caller
// case).
func Sync(tid int) int {
	if err := sched.Sync(tid); err != nil {
		return -1
	}
	return 0
}

// GetTID returns the currently running thread's id.
func GetTID() int {
	return sched.RunningID()
}

// GetTotalQuantums returns the process-wide dispatch count.
func GetTotalQuantums() int {
	return sched.TotalQuantums()
}

// GetQuantums returns tid's dispatch count, or -1 if tid is unoccupied.
func GetQuantums(tid int) int {
	return sched.Quantums(tid)
}
