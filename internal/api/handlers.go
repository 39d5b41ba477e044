package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ernie/arena/internal/domain"
	"github.com/ernie/arena/internal/storage"
	"github.com/google/uuid"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// status reads a snapshot on the tick goroutine
func (r *Router) status(req *http.Request) (domain.MatchStatus, error) {
	var st domain.MatchStatus
	err := r.runner.Do(req.Context(), func() { st = r.match.Status() })
	return st, err
}

// handleGetMatchStatus returns the running match
func (r *Router) handleGetMatchStatus(w http.ResponseWriter, req *http.Request) {
	st, err := r.status(req)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// MatchPlayersResponse lists the players of the running match
type MatchPlayersResponse struct {
	Phase   domain.Phase   `json:"phase"`
	Alive   []uuid.UUID    `json:"alive"`
	Dead    []uuid.UUID    `json:"dead"`
	Parties []domain.Party `json:"parties"`
}

// handleGetMatchPlayers returns alive and eliminated players
func (r *Router) handleGetMatchPlayers(w http.ResponseWriter, req *http.Request) {
	st, err := r.status(req)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if !st.Running {
		writeError(w, http.StatusNotFound, "no match is running")
		return
	}
	resp := MatchPlayersResponse{Phase: st.Phase, Alive: st.Alive, Dead: st.Dead, Parties: st.Parties}
	if resp.Alive == nil {
		resp.Alive = []uuid.UUID{}
	}
	if resp.Dead == nil {
		resp.Dead = []uuid.UUID{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetMatches returns recent matches on this server
func (r *Router) handleGetMatches(w http.ResponseWriter, req *http.Request) {
	limit := parseLimit(req, 20, 100)
	serverID := req.URL.Query().Get("server")
	if serverID == "" {
		serverID = r.serverID
	}

	matches, err := r.store.RecentMatches(req.Context(), serverID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if matches == nil {
		matches = []domain.MatchRecord{}
	}
	writeJSON(w, http.StatusOK, matches)
}

// MatchDetailResponse is a stored match with its parties and eliminations
type MatchDetailResponse struct {
	domain.MatchRecord
	PartyList       []domain.Party       `json:"party_list"`
	EliminationList []domain.Elimination `json:"elimination_list"`
}

// handleGetMatch returns one stored match
func (r *Router) handleGetMatch(w http.ResponseWriter, req *http.Request) {
	id, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid match id")
		return
	}

	m, err := r.store.GetMatch(req.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "match not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := MatchDetailResponse{MatchRecord: *m}
	if resp.PartyList, err = r.store.MatchParties(req.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if resp.EliminationList, err = r.store.MatchEliminations(req.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreditsResponse is a player's balance with recent changes
type CreditsResponse struct {
	Player  uuid.UUID                   `json:"player"`
	Balance int64                       `json:"balance"`
	History []storage.CreditTransaction `json:"history"`
}

// handleGetPlayerCredits returns a player's balance and history
func (r *Router) handleGetPlayerCredits(w http.ResponseWriter, req *http.Request) {
	player, err := parsePlayerID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid player id")
		return
	}

	balance, err := r.store.Balance(req.Context(), player)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	history, err := r.store.CreditHistory(req.Context(), player, parseLimit(req, 20, 200))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if history == nil {
		history = []storage.CreditTransaction{}
	}
	writeJSON(w, http.StatusOK, CreditsResponse{Player: player, Balance: balance, History: history})
}

// handleHealth reports database reachability
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	if err := r.store.Ping(req.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"server": r.serverID,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
