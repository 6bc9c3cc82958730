package conquest

import "math/rand/v2"

// Selector draws questions for challenges, avoiding repeats until the pool
// is exhausted. It is stateless: the used set is per-game session state
// owned by the caller.
type Selector struct {
	intn func(n int) int
}

func NewSelector() *Selector {
	return &Selector{intn: rand.IntN}
}

// NewSelectorWithSource uses r instead of the shared generator. Tests use
// this for deterministic draws.
func NewSelectorWithSource(r *rand.Rand) *Selector {
	return &Selector{intn: r.IntN}
}

// Pick draws uniformly at random from pool, excluding question IDs present
// in used. Once every question has been used, the exclusion resets and
// questions may repeat. An empty pool is ErrQuestionBankExhausted.
func (s *Selector) Pick(pool []Question, used map[string]bool) (Question, error) {
	if len(pool) == 0 {
		return Question{}, ErrQuestionBankExhausted
	}

	fresh := make([]Question, 0, len(pool))
	for _, q := range pool {
		if !used[q.ID] {
			fresh = append(fresh, q)
		}
	}
	if len(fresh) == 0 {
		fresh = pool
	}
	return fresh[s.intn(len(fresh))], nil
}
