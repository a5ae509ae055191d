// ════════════════════════════════════════════════════════════════════════════════════════════════
// Cooperative/Preemptive Round-Robin Thread Scheduler - Demo Entry Point
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Component: Main Entry Point & System Orchestration
//
// Architecture:
//   - Phase 0: Scheduler bootstrap with a fixed quantum length
//   - Phase 1: Spawn a small pool of always-ready worker threads
//   - Phase 2: Drive the rotation forward from the bootstrap thread
//   - Phase 3: Bootstrap termination, process exit
// ════════════════════════════════════════════════════════════════════════════════════════════════

package main

import (
	"fmt"
	"time"

	"coopsched/constants"
	"coopsched/sched"
)

func logPhase(tag, msg string) {
	fmt.Printf("[%s] %s\n", tag, msg)
}

func main() {
	// PHASE 0: scheduler bootstrap
	logPhase("INIT", "starting scheduler")
	if err := sched.Init(constants.DefaultQuantumUsecs); err != nil {
		panic(err)
	}
	logPhase("READY", fmt.Sprintf("bootstrap thread %d running, total_quantums=%d", sched.RunningID(), sched.TotalQuantums()))

	// PHASE 1: spawn a small worker pool. Each worker is a busy loop that
	// checkpoints every iteration, yielding to the rotation whenever a
	// preemption tick is pending.
	const workerCount = 3
	ids := make([]int, 0, workerCount)
	for i := 0; i < workerCount; i++ {
		id, err := sched.Spawn(func() {
			for {
				sched.Checkpoint()
			}
		})
		if err != nil {
			panic(err)
		}
		ids = append(ids, id)
		logPhase("SPAWN", fmt.Sprintf("thread %d ready", id))
	}

	// PHASE 2: let the rotation run for a bounded number of ticks,
	// reporting each worker's share of the dispatches.
	for i := 0; i < 200; i++ {
		sched.Checkpoint()
		time.Sleep(time.Millisecond)
	}
	for _, id := range ids {
		logPhase("REPORT", fmt.Sprintf("thread %d ran %d quanta", id, sched.Quantums(id)))
	}
	logPhase("REPORT", fmt.Sprintf("total_quantums=%d", sched.TotalQuantums()))

	// PHASE 3: bootstrap termination frees every descriptor and exits
	// the process with status 0 — this call does not return.
	logPhase("SHUTDOWN", "bootstrap terminating all threads")
	sched.Terminate(0)
}
