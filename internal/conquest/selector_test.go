package conquest

import (
	"errors"
	"math/rand/v2"
	"testing"
)

func pool(n int) []Question {
	qs := make([]Question, n)
	for i := range qs {
		qs[i] = Question{ID: string(rune('a' + i)), Type: TrueFalse}
	}
	return qs
}

func TestSelectorAvoidsRepeatsUntilExhausted(t *testing.T) {
	s := NewSelectorWithSource(rand.New(rand.NewPCG(1, 2)))
	qs := pool(5)
	used := make(map[string]bool)

	for i := 0; i < 5; i++ {
		q, err := s.Pick(qs, used)
		if err != nil {
			t.Fatalf("pick %d: %v", i, err)
		}
		if used[q.ID] {
			t.Fatalf("pick %d returned already-used question %s", i, q.ID)
		}
		used[q.ID] = true
	}

	// Pool exhausted: the sixth draw must still succeed, repeating a question.
	q, err := s.Pick(qs, used)
	if err != nil {
		t.Fatalf("pick after exhaustion: %v", err)
	}
	if !used[q.ID] {
		t.Errorf("expected a repeat from the exhausted pool, got fresh %s", q.ID)
	}
}

func TestSelectorEmptyPool(t *testing.T) {
	s := NewSelector()
	if _, err := s.Pick(nil, nil); !errors.Is(err, ErrQuestionBankExhausted) {
		t.Fatalf("err = %v, want ErrQuestionBankExhausted", err)
	}
}

func TestSelectorUniform(t *testing.T) {
	s := NewSelectorWithSource(rand.New(rand.NewPCG(7, 7)))
	qs := pool(4)

	counts := make(map[string]int)
	for i := 0; i < 4000; i++ {
		q, err := s.Pick(qs, nil)
		if err != nil {
			t.Fatal(err)
		}
		counts[q.ID]++
	}

	for _, q := range qs {
		if counts[q.ID] < 800 || counts[q.ID] > 1200 {
			t.Errorf("question %s drawn %d times out of 4000, expected ~1000", q.ID, counts[q.ID])
		}
	}
}
