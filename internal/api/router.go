package api

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ernie/arena/internal/auth"
	"github.com/ernie/arena/internal/domain"
	"github.com/ernie/arena/internal/storage"
	"github.com/rs/zerolog"
)

// MatchControl is the orchestrator surface the API drives. Its methods
// only run inside Runner.Do.
type MatchControl interface {
	Status() domain.MatchStatus
	InitializeMatch(ctx context.Context) error
	Action(name string) error
	ForceStateTransition(target domain.Phase) error
}

// Runner executes closures on the tick goroutine
type Runner interface {
	Do(ctx context.Context, fn func()) error
}

// Deps are the router's collaborators
type Deps struct {
	Store     *storage.Store
	Match     MatchControl
	Runner    Runner
	Auth      *auth.Service
	ServerID  string
	StaticDir string
	Logger    zerolog.Logger
}

// Router holds the HTTP routes and dependencies
type Router struct {
	mux        *http.ServeMux
	store      *storage.Store
	match      MatchControl
	runner     Runner
	spectators *SpectatorHub
	auth       *auth.Service
	serverID   string
	staticDir  string
	log        zerolog.Logger
}

// NewRouter creates a new HTTP router
func NewRouter(deps Deps) *Router {
	log := deps.Logger.With().Str("component", "api").Logger()
	r := &Router{
		mux:        http.NewServeMux(),
		store:      deps.Store,
		match:      deps.Match,
		runner:     deps.Runner,
		spectators: NewSpectatorHub(log),
		auth:       deps.Auth,
		serverID:   deps.ServerID,
		staticDir:  deps.StaticDir,
		log:        log,
	}

	// Match routes
	r.mux.HandleFunc("GET /api/match", r.handleGetMatchStatus)
	r.mux.HandleFunc("GET /api/match/players", r.handleGetMatchPlayers)
	r.mux.HandleFunc("GET /api/matches", r.handleGetMatches)
	r.mux.HandleFunc("GET /api/matches/{id}", r.handleGetMatch)
	r.mux.HandleFunc("GET /api/players/{id}/credits", r.handleGetPlayerCredits)

	// Auth routes
	r.mux.HandleFunc("POST /api/auth/login", r.handleLogin)
	r.mux.HandleFunc("POST /api/auth/logout", r.handleLogout)
	r.mux.HandleFunc("GET /api/auth/check", r.handleAuthCheck)
	r.mux.HandleFunc("POST /api/auth/change-password", r.requireAuth(r.handleChangePassword))

	// User management routes (admin only)
	r.mux.HandleFunc("GET /api/users", r.requireAdmin(r.handleListUsers))
	r.mux.HandleFunc("POST /api/users", r.requireAdmin(r.handleCreateUser))
	r.mux.HandleFunc("DELETE /api/users/{username}", r.requireAdmin(r.handleDeleteUser))

	// Operator overrides (admin only)
	r.mux.HandleFunc("POST /api/admin/match/state", r.requireAdmin(r.handleForceState))
	r.mux.HandleFunc("POST /api/admin/match/{action}", r.requireAdmin(r.handleMatchAction))

	r.mux.HandleFunc("GET /ws", r.handleWebSocket)
	r.mux.HandleFunc("GET /health", r.handleHealth)

	if deps.StaticDir != "" {
		r.mux.HandleFunc("GET /", r.handleStatic)
	}

	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if req.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.mux.ServeHTTP(w, req)
}

// Spectators returns the websocket hub, a sink for match events
func (r *Router) Spectators() *SpectatorHub {
	return r.spectators
}

// StartSpectators runs the websocket hub until ctx is cancelled
func (r *Router) StartSpectators(ctx context.Context) {
	go r.spectators.Run(ctx)
}

// handleStatic serves the spectator UI, falling back to index.html
func (r *Router) handleStatic(w http.ResponseWriter, req *http.Request) {
	path := filepath.Clean(req.URL.Path)
	if path == "/" {
		path = "/index.html"
	}
	fullPath := filepath.Join(r.staticDir, path)

	absStaticDir, _ := filepath.Abs(r.staticDir)
	absPath, _ := filepath.Abs(fullPath)
	if !strings.HasPrefix(absPath, absStaticDir) {
		http.NotFound(w, req)
		return
	}

	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		fullPath = filepath.Join(r.staticDir, "index.html")
		if _, err := os.Stat(fullPath); err != nil {
			http.NotFound(w, req)
			return
		}
	}
	http.ServeFile(w, req, fullPath)
}
