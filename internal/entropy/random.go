// Package entropy supplies the engine's random sources. Every stochastic
// decision in a session flows through one seeded PCG so that a seed replays
// the same turn sequence.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	mrand "math/rand/v2"
)

// seedStream is the fixed PCG stream selector. Only the seed varies between
// sessions.
const seedStream = 0x9e3779b97f4a7c15

// Source is a seeded PCG whose state can be saved and restored.
type Source = mrand.PCG

// NewSource returns a PCG seeded from seed. A zero seed draws one from
// crypto/rand.
func NewSource(seed uint64) *Source {
	if seed == 0 {
		seed = RandomSeed()
	}
	return mrand.NewPCG(seed, seedStream)
}

// NewRand wraps a source in a generator. The generator keeps no state of its
// own, so saving the source is enough to resume it.
func NewRand(src *Source) *mrand.Rand {
	return mrand.New(src)
}

// RandomSeed returns a non-zero seed from crypto/rand.
func RandomSeed() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand does not fail on supported platforms.
		return 42
	}
	if seed := binary.LittleEndian.Uint64(buf[:]); seed != 0 {
		return seed
	}
	return 1
}

// SaveState encodes the source's position.
func SaveState(src *Source) ([]byte, error) {
	state, err := src.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal rng state: %w", err)
	}
	return state, nil
}

// RestoreState rewinds src to a position previously returned by SaveState.
func RestoreState(src *Source, state []byte) error {
	if err := src.UnmarshalBinary(state); err != nil {
		return fmt.Errorf("unmarshal rng state: %w", err)
	}
	return nil
}

// Substream returns a generator keyed by seed and two coordinates, such as a
// sector and a turn. Draws from it never move the session source, and the
// same key always yields the same sequence.
func Substream(seed, a, b uint64) *mrand.Rand {
	return mrand.New(mrand.NewPCG(mix(seed^mix(a)), mix(b)))
}

// mix is the splitmix64 finalizer.
func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
