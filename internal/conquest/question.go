package conquest

import (
	"encoding/json"
	"fmt"
)

type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	Matching       QuestionType = "matching"
)

// MatchPair is one left/right association of a matching question.
type MatchPair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Question is a closed tagged union over the supported question types.
// Which fields are meaningful depends on Type:
//
//	single_choice    Options + Correct (option index)
//	multiple_choice  Options + Correct (set of option indexes)
//	true_false       Correct (boolean)
//	matching         Pairs (the pairs are the answer key)
type Question struct {
	ID         string          `json:"id"`
	Type       QuestionType    `json:"type"`
	Text       string          `json:"text"`
	Options    []string        `json:"options,omitempty"`
	Pairs      []MatchPair     `json:"pairs,omitempty"`
	Correct    json.RawMessage `json:"correctAnswer,omitempty"`
	Difficulty string          `json:"difficulty,omitempty"`
	ImageURL   string          `json:"imageUrl,omitempty"`
}

// Public strips the answer key so the question can be shown to players.
func (q Question) Public() Question {
	q.Correct = nil
	if q.Type == Matching {
		// Matching answers live in the pair ordering; shuffle responsibility
		// is the client's, but the key itself must not leak.
		rights := make([]MatchPair, len(q.Pairs))
		for i, p := range q.Pairs {
			rights[i] = MatchPair{Left: p.Left}
		}
		q.Pairs = rights
	}
	return q
}

// CheckAnswer grades a submitted answer against the question's key.
// The submitted encoding is type-specific and mirrors the key encoding.
// A malformed submission is an error, not a wrong answer.
func CheckAnswer(q Question, submitted json.RawMessage) (bool, error) {
	switch q.Type {
	case SingleChoice:
		var want, got int
		if err := json.Unmarshal(q.Correct, &want); err != nil {
			return false, fmt.Errorf("question %s: bad answer key: %w", q.ID, err)
		}
		if err := json.Unmarshal(submitted, &got); err != nil {
			return false, fmt.Errorf("decoding answer: %w", err)
		}
		return got == want, nil

	case MultipleChoice:
		var want, got []int
		if err := json.Unmarshal(q.Correct, &want); err != nil {
			return false, fmt.Errorf("question %s: bad answer key: %w", q.ID, err)
		}
		if err := json.Unmarshal(submitted, &got); err != nil {
			return false, fmt.Errorf("decoding answer: %w", err)
		}
		return sameIndexSet(want, got), nil

	case TrueFalse:
		var want, got bool
		if err := json.Unmarshal(q.Correct, &want); err != nil {
			return false, fmt.Errorf("question %s: bad answer key: %w", q.ID, err)
		}
		if err := json.Unmarshal(submitted, &got); err != nil {
			return false, fmt.Errorf("decoding answer: %w", err)
		}
		return got == want, nil

	case Matching:
		var got map[string]string
		if err := json.Unmarshal(submitted, &got); err != nil {
			return false, fmt.Errorf("decoding answer: %w", err)
		}
		if len(got) != len(q.Pairs) {
			return false, nil
		}
		for _, p := range q.Pairs {
			if got[p.Left] != p.Right {
				return false, nil
			}
		}
		return true, nil

	default:
		return false, fmt.Errorf("unknown question type %q", q.Type)
	}
}

// sameIndexSet compares two index lists as sets.
func sameIndexSet(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[int]int, len(a))
	for _, v := range a {
		seen[v]++
	}
	for _, v := range b {
		seen[v]--
		if seen[v] < 0 {
			return false
		}
	}
	return true
}
