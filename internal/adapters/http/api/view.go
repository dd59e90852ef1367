package api

import (
	"net/http"
	"net/url"
	"strings"

	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/domain/grouping"
	"github.com/okian/tally/internal/domain/model"
)

// ViewHandler serves the roster and the per-precinct view.
type ViewHandler struct {
	deps    Dependencies
	notices notices
}

// NewViewHandler creates a new view handler.
func NewViewHandler(deps Dependencies, n notices) *ViewHandler {
	return &ViewHandler{deps: deps, notices: n}
}

type rosterRole struct {
	Role       model.Role `json:"role"`
	Policy     string     `json:"policy"`
	Candidates []string   `json:"candidates"`
}

// HandleRoster handles GET /roster. Roles are listed in display order.
func (h *ViewHandler) HandleRoster(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_roster"
	if !h.notices.allow(w, r, op, http.MethodGet) {
		return
	}
	roster, err := h.deps.Roster()
	if err != nil {
		h.notices.fail(w, op, err)
		return
	}
	out := make([]rosterRole, 0, len(model.Roles))
	for _, role := range roster.Roles() {
		policy := "single"
		if role.Policy() == model.MultiSelect {
			policy = "multi"
		}
		out = append(out, rosterRole{Role: role, Policy: policy, Candidates: roster.Candidates(role)})
	}
	writeJSON(w, http.StatusOK, out)
}

type precinctsResponse struct {
	Empty     bool               `json:"empty"`
	Precincts []grouping.Summary `json:"precincts"`
	Mined     int                `json:"mined_votes"`
	Pending   int                `json:"pending_votes"`
}

// HandlePrecincts handles GET /precincts: one summary card per precinct. An
// empty view is reported with empty=true, distinct from "not loaded" (503).
func (h *ViewHandler) HandlePrecincts(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_precincts"
	if !h.notices.allow(w, r, op, http.MethodGet) {
		return
	}
	v, err := loaded(h.deps)
	if err != nil {
		h.notices.fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, precinctsOf(v))
}

func precinctsOf(v *service.View) precinctsResponse {
	summaries := v.Summaries
	if summaries == nil {
		summaries = []grouping.Summary{}
	}
	return precinctsResponse{
		Empty:     v.Empty,
		Precincts: summaries,
		Mined:     v.MinedVotes,
		Pending:   v.PendingVotes,
	}
}

type precinctResponse struct {
	model.PrecinctGroup
	Leaderboard model.Leaderboard `json:"leaderboard"`
}

// HandlePrecinct handles GET /precincts/{name}: the precinct's mined and
// pending votes and the tally of its mined votes.
func (h *ViewHandler) HandlePrecinct(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_precinct"
	if !h.notices.allow(w, r, op, http.MethodGet) {
		return
	}
	name, err := url.PathUnescape(strings.TrimPrefix(r.URL.EscapedPath(), "/precincts/"))
	if err != nil || name == "" {
		h.notices.fail(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	g, lb, err := h.deps.PrecinctBoard(name)
	if err != nil {
		h.notices.fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, precinctResponse{PrecinctGroup: g, Leaderboard: lb})
}

// loaded returns the current view or service.ErrNotLoaded.
func loaded(deps Dependencies) (*service.View, error) {
	v, ok := deps.View()
	if !ok {
		return nil, service.ErrNotLoaded
	}
	return v, nil
}
