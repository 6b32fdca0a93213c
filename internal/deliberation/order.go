package deliberation

import "math/rand/v2"

// OrderSource produces the speaking order for each round.
//
// The default mode shuffles agent ids with a PCG generator. With a non-zero
// seed the whole session's order sequence is reproducible; with seed 0 the
// generator is seeded from the process entropy source. Fixed mode preserves
// configuration order every round.
type OrderSource struct {
	rnd   *rand.Rand
	fixed bool
}

// NewOrderSource creates an OrderSource. seed 0 means non-deterministic.
func NewOrderSource(seed uint64, fixed bool) *OrderSource {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &OrderSource{
		rnd:   rand.New(rand.NewPCG(seed, seed)),
		fixed: fixed,
	}
}

// Next returns the speaking order for the next round: always a permutation
// of ids with no repeats and no omissions. The input slice is not modified.
func (o *OrderSource) Next(ids []string) []string {
	order := make([]string, len(ids))
	copy(order, ids)
	if !o.fixed {
		o.rnd.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}
	return order
}
