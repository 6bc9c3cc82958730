package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aulaboard/conquista/internal/conquest"
)

func TestClassroomNotFound(t *testing.T) {
	h, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/classrooms/nope/games", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGameLifecycleRequiresAdmin(t *testing.T) {
	h, _ := newTestServer(t)

	body, _ := json.Marshal(GameRequest{
		MapID: "map-1", Name: "Batalla",
		ClanIDs: []string{"clan-a", "clan-b"}, BankIDs: []string{"bank-1"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/classrooms/demo/games", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("create without cookie: expected 401, got %d", w.Code)
	}
}

// TestBattleFlow drives a whole session over HTTP: create, start, conquer a
// territory with a graded answer, flip it with a defense challenge, finish.
func TestBattleFlow(t *testing.T) {
	h, _ := newTestServer(t)
	cookie := loginAdmin(t, h)

	do := func(method, path string, payload any, admin bool) *httptest.ResponseRecorder {
		t.Helper()
		var req *http.Request
		if payload != nil {
			body, _ := json.Marshal(payload)
			req = httptest.NewRequest(method, path, bytes.NewReader(body))
		} else {
			req = httptest.NewRequest(method, path, nil)
		}
		if admin {
			req.AddCookie(cookie)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	// Create and start.
	w := do(http.MethodPost, "/api/classrooms/demo/games", GameRequest{
		MapID: "map-1", Name: "Batalla del Aula",
		ClanIDs: []string{"clan-a", "clan-b"}, BankIDs: []string{"bank-1"},
	}, true)
	if w.Code != http.StatusCreated {
		t.Fatalf("create game: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var g conquest.Game
	json.NewDecoder(w.Body).Decode(&g)
	if g.Status != conquest.StatusDraft {
		t.Fatalf("status = %q, want draft", g.Status)
	}
	base := "/api/classrooms/demo/games/" + g.ID

	if w = do(http.MethodPost, base+"/start", nil, true); w.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Conquest with a graded answer. Fixture questions key on option 0.
	w = do(http.MethodPost, base+"/challenges/conquest", ChallengeRequest{TerritoryID: "t1", ClanID: "clan-a"}, false)
	if w.Code != http.StatusCreated {
		t.Fatalf("initiate: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var ch conquest.Challenge
	json.NewDecoder(w.Body).Decode(&ch)
	if len(ch.Question.Correct) == 0 {
		t.Fatal("initiate response is the host's view and must carry the answer key")
	}

	// The polled state hides the key.
	w = do(http.MethodGet, base+"/state", nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("state: expected 200, got %d", w.Code)
	}
	var state GameState
	json.NewDecoder(w.Body).Decode(&state)
	if len(state.PendingChallenges) != 1 {
		t.Fatalf("pending = %d, want 1", len(state.PendingChallenges))
	}
	if len(state.PendingChallenges[0].Question.Correct) != 0 {
		t.Error("state leaked the answer key")
	}

	// Both verdict and answer at once is rejected.
	yes := true
	w = do(http.MethodPost, base+"/challenges/"+ch.ID+"/resolve", ResolveRequest{
		IsCorrect: &yes, Answer: json.RawMessage(`0`),
	}, false)
	if w.Code != http.StatusBadRequest {
		t.Errorf("verdict+answer: expected 400, got %d", w.Code)
	}
	if w = do(http.MethodPost, base+"/challenges/"+ch.ID+"/resolve", ResolveRequest{}, false); w.Code != http.StatusBadRequest {
		t.Errorf("empty resolve: expected 400, got %d", w.Code)
	}

	w = do(http.MethodPost, base+"/challenges/"+ch.ID+"/resolve", ResolveRequest{Answer: json.RawMessage(`0`)}, false)
	if w.Code != http.StatusOK {
		t.Fatalf("resolve: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res ResolveResult
	json.NewDecoder(w.Body).Decode(&res)
	if res.Challenge.Outcome != conquest.OutcomeWon {
		t.Fatalf("outcome = %q, want won", res.Challenge.Outcome)
	}
	if res.PointsAwarded != 100 {
		t.Errorf("points = %d, want 100", res.PointsAwarded)
	}

	// A defense challenge with a wrong answer leaves the defender standing.
	w = do(http.MethodPost, base+"/challenges/defense", ChallengeRequest{TerritoryID: "t1", ClanID: "clan-b"}, false)
	if w.Code != http.StatusCreated {
		t.Fatalf("initiate defense: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	json.NewDecoder(w.Body).Decode(&ch)
	w = do(http.MethodPost, base+"/challenges/"+ch.ID+"/resolve", ResolveRequest{Answer: json.RawMessage(`1`)}, false)
	if w.Code != http.StatusOK {
		t.Fatalf("resolve defense: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	json.NewDecoder(w.Body).Decode(&res)
	if res.Challenge.Outcome != conquest.OutcomeLost {
		t.Fatalf("defense outcome = %q, want lost", res.Challenge.Outcome)
	}
	if res.WinnerClanID == nil || *res.WinnerClanID != "clan-a" {
		t.Errorf("defense winner = %v, want clan-a", res.WinnerClanID)
	}

	// Results are only served after finish.
	if w = do(http.MethodGet, base+"/results", nil, false); w.Code != http.StatusConflict {
		t.Errorf("results before finish: expected 409, got %d", w.Code)
	}

	if w = do(http.MethodPost, base+"/finish", nil, true); w.Code != http.StatusOK {
		t.Fatalf("finish: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = do(http.MethodGet, base+"/results", nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("results: expected 200, got %d", w.Code)
	}
	var results GameResults
	json.NewDecoder(w.Body).Decode(&results)
	if len(results.Ranking) != 2 || results.Ranking[0].ClanID != "clan-a" {
		t.Errorf("ranking = %+v, want clan-a on top of 2", results.Ranking)
	}

	// Finished games accept no further challenges.
	w = do(http.MethodPost, base+"/challenges/conquest", ChallengeRequest{TerritoryID: "t2", ClanID: "clan-b"}, false)
	if w.Code != http.StatusConflict {
		t.Errorf("challenge after finish: expected 409, got %d", w.Code)
	}

	// The game shows up in the classroom listing.
	w = do(http.MethodGet, "/api/classrooms/demo/games", nil, false)
	var games []conquest.Game
	json.NewDecoder(w.Body).Decode(&games)
	if len(games) != 1 || games[0].Status != conquest.StatusFinished {
		t.Errorf("listing = %+v, want one finished game", games)
	}
}

func TestCreateGameValidation(t *testing.T) {
	h, _ := newTestServer(t)
	cookie := loginAdmin(t, h)

	post := func(payload GameRequest) *httptest.ResponseRecorder {
		t.Helper()
		body, _ := json.Marshal(payload)
		req := httptest.NewRequest(http.MethodPost, "/api/classrooms/demo/games", bytes.NewReader(body))
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	if w := post(GameRequest{MapID: "map-1", Name: "X", ClanIDs: []string{"clan-a"}, BankIDs: []string{"bank-1"}}); w.Code != http.StatusBadRequest {
		t.Errorf("one clan: expected 400, got %d", w.Code)
	}
	if w := post(GameRequest{MapID: "map-1", Name: "X", ClanIDs: []string{"clan-a", "clan-b"}}); w.Code != http.StatusBadRequest {
		t.Errorf("no banks: expected 400, got %d", w.Code)
	}
	if w := post(GameRequest{MapID: "nope", Name: "X", ClanIDs: []string{"clan-a", "clan-b"}, BankIDs: []string{"bank-1"}}); w.Code != http.StatusNotFound {
		t.Errorf("unknown map: expected 404, got %d", w.Code)
	}
	if w := post(GameRequest{MapID: "map-1", Name: "X", ClanIDs: []string{"clan-a", "clan-z"}, BankIDs: []string{"bank-1"}}); w.Code != http.StatusBadRequest {
		t.Errorf("unknown clan: expected 400, got %d", w.Code)
	}
	if w := post(GameRequest{MapID: "map-1", Name: "X", ClanIDs: []string{"clan-a", "clan-b"}, BankIDs: []string{"bank-z"}}); w.Code != http.StatusNotFound {
		t.Errorf("unknown bank: expected 404, got %d", w.Code)
	}
}
