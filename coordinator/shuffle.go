package coordinator

// intN is the subset of *rand.Rand the shuffles draw from
type intN interface {
	IntN(n int) int
}

// ShuffleMode selects the candidate ordering used by AllocateTarget
type ShuffleMode string

const (
	// ShuffleNaive swaps every position with an index drawn from the whole slice
	// Biased toward some permutations; kept for parity with the original scene script
	ShuffleNaive ShuffleMode = "naive"
	// ShuffleUniform is Fisher–Yates drawing from the unshuffled tail
	ShuffleUniform ShuffleMode = "uniform"
)

// Valid reports whether m names a known mode
func (m ShuffleMode) Valid() bool {
	return m == ShuffleNaive || m == ShuffleUniform
}

// shuffleNaive permutes s in place, drawing j from [0, n) at every step
func shuffleNaive[T any](rng intN, s []T) {
	n := len(s)
	for i := 0; i < n; i++ {
		j := rng.IntN(n)
		s[i], s[j] = s[j], s[i]
	}
}

// shuffleUniform permutes s in place, drawing j from [i, n)
func shuffleUniform[T any](rng intN, s []T) {
	n := len(s)
	for i := 0; i < n-1; i++ {
		j := i + rng.IntN(n-i)
		s[i], s[j] = s[j], s[i]
	}
}

func shuffle[T any](mode ShuffleMode, rng intN, s []T) {
	if mode == ShuffleUniform {
		shuffleUniform(rng, s)
		return
	}
	shuffleNaive(rng, s)
}
