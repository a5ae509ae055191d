// stackguard.go — stack-region corruption detection.
//
// Each descriptor's Stack ([]byte, see slottable.Descriptor) carries a
// fixed guard pattern at both ends. Stamp writes the pattern once at
// thread creation; Check is called by the dispatcher on every dispatch
// of that thread and recomputes a BLAKE2b-256 digest of the two guard
// regions, comparing against the digest taken at stamp time. A mismatch
// means something wrote past the bookkeeping region into the canary —
// the dispatcher reports this as a system error and aborts, since
// corruption of this kind is not safe to continue past.

package stackguard

import (
	"bytes"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"coopsched/constants"
)

// patternByte is the byte repeated through both guard bands.
// 0xA5 toggling was chosen for the same reason glibc-style allocators
// pick a recognizable poison byte: a stray zero or 0xFF write is common
// enough that a less distinctive pattern would miss it.
const patternByte = 0xA5

// Guard holds the digest taken when the stack region was stamped, so
// Check can detect drift without keeping a second copy of the region.
type Guard struct {
	digest [blake2b.Size256]byte
}

// NewStack allocates a zeroed stack region of constants.StackSize bytes.
// It does not write the guard bands; Stamp does that.
func NewStack() []byte {
	return make([]byte, constants.StackSize)
}

// Stamp writes the guard pattern into the leading and trailing
// constants.CanarySize bytes of stack and records their digest.
func Stamp(stack []byte) *Guard {
	writeBands(stack)
	return &Guard{digest: bandDigest(stack)}
}

// Check recomputes the guard bands' digest and reports whether it still
// matches the digest taken at Stamp time.
func (g *Guard) Check(stack []byte) error {
	got := bandDigest(stack)
	if !bytes.Equal(got[:], g.digest[:]) {
		return fmt.Errorf("stackguard: canary mismatch, stack region corrupted")
	}
	return nil
}

func writeBands(stack []byte) {
	n := constants.CanarySize
	if len(stack) < 2*n {
		n = len(stack) / 2
	}
	for i := 0; i < n; i++ {
		stack[i] = patternByte
		stack[len(stack)-1-i] = patternByte
	}
}

func bandDigest(stack []byte) [blake2b.Size256]byte {
	n := constants.CanarySize
	if len(stack) < 2*n {
		n = len(stack) / 2
	}
	buf := make([]byte, 0, 2*n)
	buf = append(buf, stack[:n]...)
	buf = append(buf, stack[len(stack)-n:]...)
	return blake2b.Sum256(buf)
}
