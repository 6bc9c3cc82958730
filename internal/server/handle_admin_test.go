package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/aulaboard/conquista/internal/conquest"
)

const (
	testAdminEmail    = "profe@demo.edu"
	testAdminPassword = "secreto"
)

// newTestServer wires the full router against a fixture store with one
// seeded admin account.
func newTestServer(t *testing.T) (http.Handler, *SQLiteStore) {
	t.Helper()
	s, db := newTestStore(t)

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	if _, err := db.Exec(`
		INSERT INTO admins (email, password_hash) VALUES (?, ?)
	`, testAdminEmail, string(hash)); err != nil {
		t.Fatalf("seeding admin: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	addRoutes(r, logger, db, s, NewBroker(), "")
	return r, s
}

func loginAdmin(t *testing.T, h http.Handler) *http.Cookie {
	t.Helper()

	body, _ := json.Marshal(AdminLoginRequest{Email: testAdminEmail, Password: testAdminPassword})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == adminCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("login: no session cookie in response")
	return nil
}

func TestAdminLogin(t *testing.T) {
	h, _ := newTestServer(t)

	// Wrong password.
	body, _ := json.Marshal(AdminLoginRequest{Email: testAdminEmail, Password: "nope"})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: expected 401, got %d", w.Code)
	}

	// Unknown email reads the same as a wrong password.
	body, _ = json.Marshal(AdminLoginRequest{Email: "nadie@demo.edu", Password: "nope"})
	req = httptest.NewRequest(http.MethodPost, "/api/admin/login", bytes.NewReader(body))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unknown email: expected 401, got %d", w.Code)
	}

	cookie := loginAdmin(t, h)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/me", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", w.Code)
	}
	var me AdminMeResponse
	json.NewDecoder(w.Body).Decode(&me)
	if me.Email != testAdminEmail {
		t.Errorf("me: email = %q, want %q", me.Email, testAdminEmail)
	}

	// Logout invalidates the session.
	req = httptest.NewRequest(http.MethodPost, "/api/admin/logout", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/admin/me", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("me after logout: expected 401, got %d", w.Code)
	}
}

func TestAdminEndpointsRequireSession(t *testing.T) {
	h, _ := newTestServer(t)

	for _, path := range []string{"/api/admin/me", "/api/admin/maps"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s without cookie: expected 401, got %d", path, w.Code)
		}
	}
}

func TestCreateMapAndTerritories(t *testing.T) {
	h, _ := newTestServer(t)
	cookie := loginAdmin(t, h)

	body, _ := json.Marshal(MapRequest{Name: "Mapa Nuevo", GridCols: 2, GridRows: 2, BonusStreakPoints: 25})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/maps", bytes.NewReader(body))
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create map: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var m conquest.Map
	json.NewDecoder(w.Body).Decode(&m)
	if m.ID == "" {
		t.Fatal("create map: no id in response")
	}
	if m.BaseConquestPoints != 100 || m.BaseDefensePoints != 80 {
		t.Errorf("defaults = %d/%d, want 100/80", m.BaseConquestPoints, m.BaseDefensePoints)
	}

	// A position outside the grid is rejected.
	badBatch, _ := json.Marshal(TerritoriesBatchRequest{Territories: []TerritoryRequest{
		{Name: "Fuera", GridX: 5, GridY: 0},
	}})
	req = httptest.NewRequest(http.MethodPost, "/api/admin/maps/"+m.ID+"/territories", bytes.NewReader(badBatch))
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("out-of-grid territory: expected 400, got %d", w.Code)
	}

	// Duplicate positions within the batch are rejected.
	dupBatch, _ := json.Marshal(TerritoriesBatchRequest{Territories: []TerritoryRequest{
		{Name: "Uno", GridX: 0, GridY: 0},
		{Name: "Dos", GridX: 0, GridY: 0},
	}})
	req = httptest.NewRequest(http.MethodPost, "/api/admin/maps/"+m.ID+"/territories", bytes.NewReader(dupBatch))
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("duplicate position: expected 400, got %d", w.Code)
	}

	goodBatch, _ := json.Marshal(TerritoriesBatchRequest{Territories: []TerritoryRequest{
		{Name: "Uno", GridX: 0, GridY: 0},
		{Name: "Dos", GridX: 1, GridY: 0, PointMultiplier: 2, IsStrategic: true},
	}})
	req = httptest.NewRequest(http.MethodPost, "/api/admin/maps/"+m.ID+"/territories", bytes.NewReader(goodBatch))
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create territories: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/admin/maps/"+m.ID, nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get map: expected 200, got %d", w.Code)
	}
	json.NewDecoder(w.Body).Decode(&m)
	if len(m.Territories) != 2 {
		t.Errorf("territories = %d, want 2", len(m.Territories))
	}

	// The fixture map plus the new one show up in the listing.
	req = httptest.NewRequest(http.MethodGet, "/api/admin/maps", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var maps []MapSummary
	json.NewDecoder(w.Body).Decode(&maps)
	if len(maps) != 2 {
		t.Errorf("maps = %d, want 2", len(maps))
	}
}

func TestAddTerritoriesToMapInUse(t *testing.T) {
	h, s := newTestServer(t)
	cookie := loginAdmin(t, h)

	// An active game references the fixture map.
	newActiveGame(t, s, gameOpts{})

	batch, _ := json.Marshal(TerritoriesBatchRequest{Territories: []TerritoryRequest{
		{Name: "Tarde", GridX: 0, GridY: 2},
	}})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/maps/map-1/territories", bytes.NewReader(batch))
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("map in use: expected 409, got %d: %s", w.Code, w.Body.String())
	}
}
