package conquest

import (
	"encoding/json"
	"testing"
)

func TestCheckAnswerSingleChoice(t *testing.T) {
	q := Question{
		ID:      "q1",
		Type:    SingleChoice,
		Text:    "Capital of Peru?",
		Options: []string{"Cusco", "Lima", "Arequipa"},
		Correct: json.RawMessage(`1`),
	}

	tests := []struct {
		name      string
		submitted string
		want      bool
		wantErr   bool
	}{
		{"correct index", `1`, true, false},
		{"wrong index", `0`, false, false},
		{"malformed", `"lima"`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckAnswer(q, json.RawMessage(tt.submitted))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckAnswerMultipleChoice(t *testing.T) {
	q := Question{
		ID:      "q2",
		Type:    MultipleChoice,
		Options: []string{"2", "3", "4", "5"},
		Correct: json.RawMessage(`[1, 3]`),
	}

	tests := []struct {
		name      string
		submitted string
		want      bool
	}{
		{"exact", `[1,3]`, true},
		{"order independent", `[3,1]`, true},
		{"subset", `[1]`, false},
		{"superset", `[1,3,0]`, false},
		{"duplicate padding", `[1,1]`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckAnswer(q, json.RawMessage(tt.submitted))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckAnswerTrueFalse(t *testing.T) {
	q := Question{ID: "q3", Type: TrueFalse, Correct: json.RawMessage(`true`)}

	if ok, err := CheckAnswer(q, json.RawMessage(`true`)); err != nil || !ok {
		t.Errorf("true: got %v, %v", ok, err)
	}
	if ok, err := CheckAnswer(q, json.RawMessage(`false`)); err != nil || ok {
		t.Errorf("false: got %v, %v", ok, err)
	}
}

func TestCheckAnswerMatching(t *testing.T) {
	q := Question{
		ID:   "q4",
		Type: Matching,
		Pairs: []MatchPair{
			{Left: "Perro", Right: "Dog"},
			{Left: "Gato", Right: "Cat"},
		},
	}

	tests := []struct {
		name      string
		submitted string
		want      bool
	}{
		{"all pairs", `{"Perro":"Dog","Gato":"Cat"}`, true},
		{"swapped", `{"Perro":"Cat","Gato":"Dog"}`, false},
		{"missing pair", `{"Perro":"Dog"}`, false},
		{"extra pair", `{"Perro":"Dog","Gato":"Cat","Pez":"Fish"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckAnswer(q, json.RawMessage(tt.submitted))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckAnswerUnknownType(t *testing.T) {
	q := Question{ID: "q5", Type: "essay"}
	if _, err := CheckAnswer(q, json.RawMessage(`"x"`)); err == nil {
		t.Fatal("expected error for unknown question type")
	}
}

func TestQuestionPublicStripsKey(t *testing.T) {
	q := Question{
		ID:      "q6",
		Type:    Matching,
		Correct: json.RawMessage(`1`),
		Pairs:   []MatchPair{{Left: "Sol", Right: "Sun"}},
	}

	pub := q.Public()
	if pub.Correct != nil {
		t.Error("Public() kept the answer key")
	}
	if pub.Pairs[0].Right != "" {
		t.Error("Public() kept matching right-hand sides")
	}
	if q.Pairs[0].Right != "Sun" {
		t.Error("Public() mutated the original question")
	}
}
