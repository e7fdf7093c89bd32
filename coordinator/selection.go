package coordinator

import (
	"math"
	"math/rand/v2"
	"slices"
	"sync"
)

// selector draws the drones dispatched in a round.
type selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newSelector(src rand.Source) *selector {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}

	return &selector{rng: rand.New(src)}
}

// SampleSize is the number of drones dispatched out of available for the
// given fraction: ceil(fraction × available), at least minimum and at most
// available.
func SampleSize(available int, fraction float64, minimum int) int {
	n := int(math.Ceil(fraction * float64(available)))
	n = max(n, minimum)

	return min(n, available)
}

// sample returns n drones drawn uniformly without replacement, sorted by id.
func (s *selector) sample(ids []string, n int) []string {
	pool := slices.Clone(ids)
	slices.Sort(pool)
	if n >= len(pool) {
		return pool
	}

	s.mu.Lock()
	s.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	s.mu.Unlock()

	selected := pool[:n]
	slices.Sort(selected)

	return selected
}
