package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// Subsystem names for the RNG streams the engine itself consumes. Model code
// may derive additional streams with any other name.
const (
	// SubsystemEvents feeds the event queue's tie-break weights.
	SubsystemEvents = "events"

	// SubsystemTiming is the conventional stream for user-supplied sampling
	// functions (cycle jitter, time to failure, time to repair).
	SubsystemTiming = "timing"
)

// SubsystemNode returns the subsystem name for per-node RNG isolation.
func SubsystemNode(id NodeID) string {
	return fmt.Sprintf("node_%d", id)
}

// PartitionedRNG provides deterministic, isolated RNG instances per
// subsystem, all derived from one master seed. Two simulations with the same
// seed and configuration draw identical streams regardless of the order in
// which subsystems are first touched.
//
// Thread-safety: NOT thread-safe; one PartitionedRNG per simulation run.
type PartitionedRNG struct {
	seed       int64
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a master seed.
func NewPartitionedRNG(seed int64) *PartitionedRNG {
	return &PartitionedRNG{
		seed:       seed,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named
// subsystem. The same name always returns the same *rand.Rand instance.
// Derivation: masterSeed XOR fnv1a64(name), so derivation is independent of
// first-use order.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(p.seed ^ fnv1a64(name)))
	p.subsystems[name] = rng
	return rng
}

// Seed returns the master seed this PartitionedRNG was created with.
func (p *PartitionedRNG) Seed() int64 {
	return p.seed
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
