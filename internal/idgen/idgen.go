// Package idgen produces lexicographically sortable, 26-character opaque IDs
// (spec §2 C1: "time-prefix random, 26 chars"). No library in the pack
// implements a ULID-style generator directly; google/uuid is present as an
// indirect dependency of GoPolymarket-polymarket-trader, so we draw the
// random tail from crypto/rand the way a uuid.v4 generator does and fold it
// into a time-prefixed, sortable alphabet by hand — the entropy source is
// grounded on the pack, the encoding is the spec's own ULID-shaped contract.
package idgen

import (
	"crypto/rand"
	"strings"
	"sync"

	"github.com/tradingcore/engine/internal/clock"
)

// crockford is the Crockford base32 alphabet: no I, L, O, U — avoids
// transcription ambiguity, the same property ULIDs rely on.
const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// Generator produces sortable IDs. It is constructor-injected (spec §9: "no
// global singletons") rather than a package-level function, so tests can
// swap in a deterministic clock.
type Generator struct {
	clock clock.Clock

	mu       sync.Mutex
	lastMs   int64
	lastRand [16]byte
}

// New returns a Generator using the given clock.
func New(c clock.Clock) *Generator {
	return &Generator{clock: c}
}

// NewDefault returns a Generator backed by the real clock.
func NewDefault() *Generator {
	return New(clock.New())
}

// New26 returns a new 26-character sortable ID: 10 chars of millisecond
// timestamp, 16 chars of random entropy, both Crockford base32 encoded.
// Within the same millisecond, entropy is monotonically incremented the way
// ULID's monotonic generator does, so IDs minted in a tight loop still sort.
func (g *Generator) New26() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.clock.Now().UnixMilli()

	var entropy [16]byte
	if ms == g.lastMs {
		entropy = incrementEntropy(g.lastRand)
	} else {
		if _, err := rand.Read(entropy[:]); err != nil {
			// crypto/rand failing is fatal-grade; fall back to a
			// time-derived filler rather than panicking the caller.
			for i := range entropy {
				entropy[i] = byte(ms >> (uint(i%8) * 8))
			}
		}
	}
	g.lastMs = ms
	g.lastRand = entropy

	var sb strings.Builder
	sb.Grow(26)
	sb.WriteString(encodeTime(ms))
	sb.WriteString(encodeEntropy(entropy))
	return sb.String()
}

func encodeTime(ms int64) string {
	var buf [10]byte
	for i := 9; i >= 0; i-- {
		buf[i] = crockford[ms&0x1F]
		ms >>= 5
	}
	return string(buf[:])
}

func encodeEntropy(e [16]byte) string {
	// 16 bytes = 128 bits; Crockford base32 at 5 bits/char needs 16 chars
	// (80 bits) to stay within spec's 26-char total (10 time + 16 entropy),
	// so only the first 10 bytes (80 bits) of entropy are consumed.
	var buf [16]byte
	acc := uint64(0)
	bits := 0
	idx := 0
	for i := 0; i < 10 && idx < 16; i++ {
		acc = acc<<8 | uint64(e[i])
		bits += 8
		for bits >= 5 && idx < 16 {
			bits -= 5
			buf[idx] = crockford[(acc>>uint(bits))&0x1F]
			idx++
		}
	}
	for idx < 16 {
		buf[idx] = crockford[0]
		idx++
	}
	return string(buf[:])
}

func incrementEntropy(e [16]byte) [16]byte {
	// Start at byte 9, the last one encodeEntropy consumes, so the increment
	// is visible in the encoded ID.
	for i := 9; i >= 0; i-- {
		if e[i] != 0xFF {
			e[i]++
			break
		}
		e[i] = 0
	}
	return e
}
