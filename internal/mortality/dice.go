package mortality

import (
	"math/rand"
	"sync"
)

// DeathSaveSides is the die used for every death save.
const DeathSaveSides = 20

// RollSource produces die rolls for death saves. The entropy client
// satisfies this in production; a seeded source makes outcomes replayable
// in tests.
type RollSource interface {
	Die(sides int) int
}

// SeededSource is a deterministic roll source.
type SeededSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeededSource creates a roll source producing the same sequence for the
// same seed.
func NewSeededSource(seed int64) *SeededSource {
	return &SeededSource{rng: rand.New(rand.NewSource(seed))}
}

// Die rolls one die, returning 1..sides.
func (s *SeededSource) Die(sides int) int {
	if sides < 1 {
		return 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(sides) + 1
}

// FixedSource always returns the same roll. Test helper for forcing a
// specific death-save outcome.
type FixedSource int

// Die returns the fixed value regardless of sides.
func (f FixedSource) Die(sides int) int {
	return int(f)
}
