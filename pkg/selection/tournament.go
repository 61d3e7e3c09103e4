package selection

import (
	"errors"
	"fmt"
	"math/rand"
)

// ErrInvalidTournament is returned for tournament sizes that cannot be drawn
var ErrInvalidTournament = errors.New("invalid tournament")

// Tournament draws k distinct indices of fitness uniformly without
// replacement and returns the sampled index with the highest fitness.
// Ties go to the index drawn first.
func Tournament(rng *rand.Rand, fitness []float64, k int) (int, error) {
	if rng == nil {
		return 0, fmt.Errorf("%w: random source is required", ErrInvalidTournament)
	}
	n := len(fitness)
	if n == 0 {
		return 0, fmt.Errorf("%w: empty population", ErrInvalidTournament)
	}
	if k < 1 || k > n {
		return 0, fmt.Errorf("%w: size %d outside [1, %d]", ErrInvalidTournament, k, n)
	}

	sample := Sample(rng, n, k)
	winner := sample[0]
	for _, idx := range sample[1:] {
		if fitness[idx] > fitness[winner] {
			winner = idx
		}
	}
	return winner, nil
}

// Sample returns k distinct indices from [0, n) in draw order using a
// partial Fisher-Yates shuffle. It panics if k > n.
func Sample(rng *rand.Rand, n, k int) []int {
	if k > n {
		panic(fmt.Sprintf("selection: cannot sample %d of %d", k, n))
	}
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + rng.Intn(n-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm[:k]
}

// Best returns the first index holding the maximum fitness, or -1 when empty
func Best(fitness []float64) int {
	if len(fitness) == 0 {
		return -1
	}
	best := 0
	for i, f := range fitness {
		if f > fitness[best] {
			best = i
		}
	}
	return best
}
