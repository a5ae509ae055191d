// syncgraph.go — sync-dependency tracker
//
// S[target][waiter] = 1 means "waiter is suspended until target is next
// dispatched." Rows are bitsets (one word per 64 thread ids) rather than
// pointer-chasing bucket queues: the thread count is small and fixed, so
// a dense bit-per-waiter row gives O(words) clear/iterate with no
// allocation, no pointers, no aliasing — an arena-plus-integer-ids model
// in preference to a pointer graph.

package syncgraph

import "math/bits"

const wordBits = 64

// Graph is a square S[target][waiter] adjacency relation plus the
// per-waiter counters C derived from it.
type Graph struct {
	n     int
	rows  [][]uint64 // rows[target] is a bitset over waiter ids
	count []int      // count[waiter] = number of targets waiter depends on
	words int
}

// New allocates a Graph over thread ids in [0, n).
func New(n int) *Graph {
	words := (n + wordBits - 1) / wordBits
	rows := make([][]uint64, n)
	for i := range rows {
		rows[i] = make([]uint64, words)
	}
	return &Graph{n: n, rows: rows, count: make([]int, n), words: words}
}

func bit(id int) (word int, mask uint64) {
	return id / wordBits, uint64(1) << uint(id%wordBits)
}

// AddDependency records that waiter will not be redispatched until
// target is next dispatched. Idempotent per (waiter, target) pair until
// cleared by ClearTarget or Purge.
func (g *Graph) AddDependency(waiter, target int) {
	w, m := bit(waiter)
	if g.rows[target][w]&m != 0 {
		return
	}
	g.rows[target][w] |= m
	g.count[waiter]++
}

// ClearTarget clears every S[target][*] entry, decrementing the
// corresponding waiters' counters, and returns the waiter ids whose
// counter reached zero (callers re-enqueue those that are READY).
func (g *Graph) ClearTarget(target int) []int {
	var unblocked []int
	row := g.rows[target]
	for w := 0; w < g.words; w++ {
		bits_ := row[w]
		for bits_ != 0 {
			b := bits.TrailingZeros64(bits_)
			bits_ &^= uint64(1) << uint(b)
			waiter := w*wordBits + b
			if waiter >= g.n {
				continue
			}
			g.count[waiter]--
			if g.count[waiter] == 0 {
				unblocked = append(unblocked, waiter)
			}
		}
		row[w] = 0
	}
	return unblocked
}

// Purge is called when thread id terminates: in addition to clearing
// everything id was a target of (ClearTarget), it removes id's own
// waiter bit from every other row (no one can be waiting-as-id anymore
// once id no longer exists) and resets its counter.
func (g *Graph) Purge(id int) []int {
	unblocked := g.ClearTarget(id)
	w, m := bit(id)
	for target := 0; target < g.n; target++ {
		g.rows[target][w] &^= m
	}
	g.count[id] = 0
	return unblocked
}

// Count returns C[id]: the number of targets id is still waiting on.
func (g *Graph) Count(id int) int {
	return g.count[id]
}
