package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ernie/arena/internal/domain"
	"github.com/ernie/arena/internal/match"
)

// statusFor maps orchestrator errors to HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, match.ErrNoMatch):
		return http.StatusNotFound
	case errors.Is(err, match.ErrMatchRunning),
		errors.Is(err, match.ErrNotCancellable),
		errors.Is(err, match.ErrInvalidTransition),
		errors.Is(err, match.ErrInvalidPhase),
		errors.Is(err, match.ErrJoinClosed):
		return http.StatusConflict
	case errors.Is(err, match.ErrLoopStopped):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadRequest
}

// handleMatchAction runs a named override. "open" starts a new match.
func (r *Router) handleMatchAction(w http.ResponseWriter, req *http.Request) {
	action := req.PathValue("action")
	claims := claimsFrom(req.Context())

	var st domain.MatchStatus
	var actionErr error
	err := r.runner.Do(req.Context(), func() {
		if action == "open" {
			actionErr = r.match.InitializeMatch(req.Context())
		} else {
			actionErr = r.match.Action(action)
		}
		st = r.match.Status()
	})
	if err == nil {
		err = actionErr
	}
	if err != nil {
		r.log.Warn().Err(err).Str("action", action).Str("user", claims.Username).Msg("Operator action refused")
		writeError(w, statusFor(err), err.Error())
		return
	}

	r.log.Info().Str("action", action).Str("user", claims.Username).Str("phase", string(st.Phase)).Msg("Operator action applied")
	writeJSON(w, http.StatusOK, st)
}

// ForceStateRequest is the request body for a forced transition
type ForceStateRequest struct {
	Phase string `json:"phase"`
}

// handleForceState moves the match to a named phase
func (r *Router) handleForceState(w http.ResponseWriter, req *http.Request) {
	var body ForceStateRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	target, err := domain.ParsePhase(body.Phase)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var st domain.MatchStatus
	var transitionErr error
	err = r.runner.Do(req.Context(), func() {
		transitionErr = r.match.ForceStateTransition(target)
		st = r.match.Status()
	})
	if err == nil {
		err = transitionErr
	}
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	r.log.Info().Str("phase", string(target)).Str("user", claimsFrom(req.Context()).Username).Msg("Operator forced phase")
	writeJSON(w, http.StatusOK, st)
}
