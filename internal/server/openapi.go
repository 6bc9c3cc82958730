package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi31"

	"github.com/aulaboard/conquista/internal/conquest"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse maps each backend dependency to its check result.
type HealthResponse map[string]struct {
	Status string `json:"status"`
}

// Path parameter declarations: the reflector rejects operations whose path
// placeholders are not declared on a request structure.
type mapPathParams struct {
	MapID string `path:"mapID"`
}

type classroomPathParams struct {
	Classroom string `path:"classroom"`
}

type gamePathParams struct {
	Classroom string `path:"classroom"`
	GameID    string `path:"gameID"`
}

type challengePathParams struct {
	Classroom   string `path:"classroom"`
	GameID      string `path:"gameID"`
	ChallengeID string `path:"challengeID"`
}

func newOpenAPISpec() *openapi31.Spec {
	r := openapi31.NewReflector()
	r.Spec.Info.Title = "Conquista API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the Conquista territory battle engine.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /ws/echo
	getWSEcho, _ := r.NewOperationContext(http.MethodGet, "/ws/echo")
	getWSEcho.SetSummary("WebSocket echo")
	getWSEcho.SetDescription("Upgrades to a WebSocket connection that echoes messages back.")
	getWSEcho.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getWSEcho)

	// POST /api/admin/login
	postLogin, _ := r.NewOperationContext(http.MethodPost, "/api/admin/login")
	postLogin.SetSummary("Admin login")
	postLogin.SetDescription("Authenticate with email and password. Sets admin_session cookie.")
	postLogin.AddReqStructure(AdminLoginRequest{})
	postLogin.AddRespStructure(AdminMeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postLogin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postLogin)

	// POST /api/admin/logout
	postLogout, _ := r.NewOperationContext(http.MethodPost, "/api/admin/logout")
	postLogout.SetSummary("Admin logout")
	postLogout.SetDescription("Clears admin session and cookie.")
	postLogout.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(postLogout)

	// GET /api/admin/me
	getMe, _ := r.NewOperationContext(http.MethodGet, "/api/admin/me")
	getMe.SetSummary("Current admin")
	getMe.SetDescription("Returns the currently authenticated admin. Requires admin_session cookie.")
	getMe.AddRespStructure(AdminMeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getMe.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getMe)

	// GET /api/admin/maps
	listMaps, _ := r.NewOperationContext(http.MethodGet, "/api/admin/maps")
	listMaps.SetSummary("List maps")
	listMaps.SetDescription("Returns all maps with territory counts. Requires admin_session cookie.")
	listMaps.AddRespStructure([]MapSummary{}, openapi.WithHTTPStatus(http.StatusOK))
	listMaps.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(listMaps)

	// POST /api/admin/maps
	createMap, _ := r.NewOperationContext(http.MethodPost, "/api/admin/maps")
	createMap.SetSummary("Create map")
	createMap.SetDescription("Creates a new map with an empty grid. Requires admin_session cookie.")
	createMap.AddReqStructure(MapRequest{})
	createMap.AddRespStructure(conquest.Map{}, openapi.WithHTTPStatus(http.StatusCreated))
	createMap.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	createMap.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(createMap)

	// GET /api/admin/maps/{mapID}
	getMap, _ := r.NewOperationContext(http.MethodGet, "/api/admin/maps/{mapID}")
	getMap.SetSummary("Get map")
	getMap.AddReqStructure(mapPathParams{})
	getMap.SetDescription("Returns a map with its territories. Requires admin_session cookie.")
	getMap.AddRespStructure(conquest.Map{}, openapi.WithHTTPStatus(http.StatusOK))
	getMap.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	getMap.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getMap)

	// POST /api/admin/maps/{mapID}/territories
	createTerritories, _ := r.NewOperationContext(http.MethodPost, "/api/admin/maps/{mapID}/territories")
	createTerritories.SetSummary("Add territories")
	createTerritories.AddReqStructure(mapPathParams{})
	createTerritories.SetDescription("Adds a batch of territories to a map. Positions must fit the grid and be unique. Requires admin_session cookie.")
	createTerritories.AddReqStructure(TerritoriesBatchRequest{})
	createTerritories.AddRespStructure([]conquest.Territory{}, openapi.WithHTTPStatus(http.StatusCreated))
	createTerritories.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	createTerritories.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	createTerritories.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(createTerritories)

	// GET /api/classrooms/{classroom}/games
	listGames, _ := r.NewOperationContext(http.MethodGet, "/api/classrooms/{classroom}/games")
	listGames.SetSummary("List games")
	listGames.AddReqStructure(classroomPathParams{})
	listGames.SetDescription("Returns all games in the classroom, newest first.")
	listGames.AddRespStructure([]conquest.Game{}, openapi.WithHTTPStatus(http.StatusOK))
	listGames.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(listGames)

	// POST /api/classrooms/{classroom}/games
	createGame, _ := r.NewOperationContext(http.MethodPost, "/api/classrooms/{classroom}/games")
	createGame.SetSummary("Create game")
	createGame.AddReqStructure(classroomPathParams{})
	createGame.SetDescription("Creates a draft game binding a map, clans and question banks. Requires admin_session cookie.")
	createGame.AddReqStructure(GameRequest{})
	createGame.AddRespStructure(conquest.Game{}, openapi.WithHTTPStatus(http.StatusCreated))
	createGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	createGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(createGame)

	// POST /api/classrooms/{classroom}/games/{gameID}/start
	startGame, _ := r.NewOperationContext(http.MethodPost, "/api/classrooms/{classroom}/games/{gameID}/start")
	startGame.SetSummary("Start game")
	startGame.AddReqStructure(gamePathParams{})
	startGame.SetDescription("Moves a draft game to active and opens round 1. Requires admin_session cookie.")
	startGame.AddRespStructure(conquest.Game{}, openapi.WithHTTPStatus(http.StatusOK))
	startGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	startGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	startGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(startGame)

	// POST /api/classrooms/{classroom}/games/{gameID}/pause
	pauseGame, _ := r.NewOperationContext(http.MethodPost, "/api/classrooms/{classroom}/games/{gameID}/pause")
	pauseGame.SetSummary("Pause game")
	pauseGame.AddReqStructure(gamePathParams{})
	pauseGame.SetDescription("Pauses an active game. Pending challenges stay open. Requires admin_session cookie.")
	pauseGame.AddRespStructure(conquest.Game{}, openapi.WithHTTPStatus(http.StatusOK))
	pauseGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	pauseGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	pauseGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(pauseGame)

	// POST /api/classrooms/{classroom}/games/{gameID}/resume
	resumeGame, _ := r.NewOperationContext(http.MethodPost, "/api/classrooms/{classroom}/games/{gameID}/resume")
	resumeGame.SetSummary("Resume game")
	resumeGame.AddReqStructure(gamePathParams{})
	resumeGame.SetDescription("Resumes a paused game. Requires admin_session cookie.")
	resumeGame.AddRespStructure(conquest.Game{}, openapi.WithHTTPStatus(http.StatusOK))
	resumeGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	resumeGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	resumeGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(resumeGame)

	// POST /api/classrooms/{classroom}/games/{gameID}/finish
	finishGame, _ := r.NewOperationContext(http.MethodPost, "/api/classrooms/{classroom}/games/{gameID}/finish")
	finishGame.SetSummary("Finish game")
	finishGame.AddReqStructure(gamePathParams{})
	finishGame.SetDescription("Ends the game, voids pending challenges and freezes the final ranking. Requires admin_session cookie.")
	finishGame.AddRespStructure(GameResults{}, openapi.WithHTTPStatus(http.StatusOK))
	finishGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	finishGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	finishGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(finishGame)

	// GET /api/classrooms/{classroom}/games/{gameID}/state
	getState, _ := r.NewOperationContext(http.MethodGet, "/api/classrooms/{classroom}/games/{gameID}/state")
	getState.SetSummary("Get game state")
	getState.AddReqStructure(gamePathParams{})
	getState.SetDescription("Returns the full board: territories, scores, ranking and pending challenges. Safe to poll.")
	getState.AddRespStructure(GameState{}, openapi.WithHTTPStatus(http.StatusOK))
	getState.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getState)

	// GET /api/classrooms/{classroom}/games/{gameID}/results
	getResults, _ := r.NewOperationContext(http.MethodGet, "/api/classrooms/{classroom}/games/{gameID}/results")
	getResults.SetSummary("Get game results")
	getResults.AddReqStructure(gamePathParams{})
	getResults.SetDescription("Returns the frozen final ranking of a finished game.")
	getResults.AddRespStructure(GameResults{}, openapi.WithHTTPStatus(http.StatusOK))
	getResults.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	getResults.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getResults)

	// GET /api/classrooms/{classroom}/games/{gameID}/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/classrooms/{classroom}/games/{gameID}/events")
	getEvents.SetSummary("SSE event stream")
	getEvents.AddReqStructure(gamePathParams{})
	getEvents.SetDescription("Server-Sent Events stream for real-time board updates.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	getEvents.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getEvents)

	// POST /api/classrooms/{classroom}/games/{gameID}/challenges/conquest
	postConquest, _ := r.NewOperationContext(http.MethodPost, "/api/classrooms/{classroom}/games/{gameID}/challenges/conquest")
	postConquest.SetSummary("Initiate conquest")
	postConquest.AddReqStructure(gamePathParams{})
	postConquest.SetDescription("Locks a neutral territory for the clan and draws a question. The response includes the answer key for teacher-side grading.")
	postConquest.AddReqStructure(ChallengeRequest{})
	postConquest.AddRespStructure(conquest.Challenge{}, openapi.WithHTTPStatus(http.StatusCreated))
	postConquest.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postConquest.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postConquest.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postConquest)

	// POST /api/classrooms/{classroom}/games/{gameID}/challenges/defense
	postDefense, _ := r.NewOperationContext(http.MethodPost, "/api/classrooms/{classroom}/games/{gameID}/challenges/defense")
	postDefense.SetSummary("Initiate defense challenge")
	postDefense.AddReqStructure(gamePathParams{})
	postDefense.SetDescription("Locks an owned territory held by another clan and draws a question. The owner becomes the defender.")
	postDefense.AddReqStructure(ChallengeRequest{})
	postDefense.AddRespStructure(conquest.Challenge{}, openapi.WithHTTPStatus(http.StatusCreated))
	postDefense.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postDefense.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postDefense.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postDefense)

	// POST /api/classrooms/{classroom}/games/{gameID}/challenges/{challengeID}/resolve
	resolve, _ := r.NewOperationContext(http.MethodPost, "/api/classrooms/{classroom}/games/{gameID}/challenges/{challengeID}/resolve")
	resolve.SetSummary("Resolve challenge")
	resolve.AddReqStructure(challengePathParams{})
	resolve.SetDescription("Settles a pending challenge with either a teacher verdict or a submitted answer. Idempotent: retries return the stored outcome.")
	resolve.AddReqStructure(ResolveRequest{})
	resolve.AddRespStructure(ResolveResult{}, openapi.WithHTTPStatus(http.StatusOK))
	resolve.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	resolve.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	resolve.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(resolve)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
