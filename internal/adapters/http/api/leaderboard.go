package api

import "net/http"

// LeaderboardHandler serves local and server tallies.
type LeaderboardHandler struct {
	deps    Dependencies
	notices notices
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps Dependencies, n notices) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps, notices: n}
}

// HandleLeaderboard handles GET /leaderboard[?precinct=NAME]. The leaderboard
// counts mined votes only.
func (h *LeaderboardHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	if !h.notices.allow(w, r, op, http.MethodGet) {
		return
	}
	if precinct := r.URL.Query().Get("precinct"); precinct != "" {
		_, lb, err := h.deps.PrecinctBoard(precinct)
		if err != nil {
			h.notices.fail(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, lb)
		return
	}
	v, err := loaded(h.deps)
	if err != nil {
		h.notices.fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, v.Leaderboard)
}

// HandleResults handles GET /results[?by=precinct]: the service's own tally,
// which also counts pending votes.
func (h *LeaderboardHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_results"
	if !h.notices.allow(w, r, op, http.MethodGet) {
		return
	}
	switch r.URL.Query().Get("by") {
	case "":
		lb, err := h.deps.ServerResults(r.Context())
		if err != nil {
			h.notices.fail(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, lb)
	case "precinct":
		results, err := h.deps.ServerResultsByPrecinct(r.Context())
		if err != nil {
			h.notices.fail(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, results)
	default:
		h.notices.fail(w, op, NewKind(op, ErrBadRequest))
	}
}

// HandleVerify handles GET /verify: local recount versus the service's results.
func (h *LeaderboardHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_verify"
	if !h.notices.allow(w, r, op, http.MethodGet) {
		return
	}
	ver, err := h.deps.Verify(r.Context())
	if err != nil {
		h.notices.fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ver)
}
