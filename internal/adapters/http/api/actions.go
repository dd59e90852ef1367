package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/okian/tally/internal/domain/model"
)

const maxBodyBytes = 1 << 20

// ActionsHandler handles the state-changing routes.
type ActionsHandler struct {
	deps    Dependencies
	notices notices
}

// NewActionsHandler creates a new actions handler.
func NewActionsHandler(deps Dependencies, n notices) *ActionsHandler {
	return &ActionsHandler{deps: deps, notices: n}
}

type messageResponse struct {
	Message string `json:"message"`
}

// HandleRefresh handles POST /refresh and returns the new precinct summaries.
func (h *ActionsHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_refresh"
	if !h.notices.allow(w, r, op, http.MethodPost) {
		return
	}
	v, err := h.deps.Refresh(r.Context())
	if err != nil {
		h.notices.fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, precinctsOf(v))
}

// HandleVote handles POST /vote. The body has the service's vote shape:
// {"voter_id", "barangay", "candidates": {role: name | [names]}}.
func (h *ActionsHandler) HandleVote(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_vote"
	if !h.notices.allow(w, r, op, http.MethodPost) {
		return
	}
	var v model.Vote
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&v); err != nil {
		h.notices.fail(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	msg, err := h.deps.SubmitVote(r.Context(), v)
	if err != nil {
		h.notices.fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: msg})
}

type mineRequest struct {
	Precinct string `json:"barangay"`
}

// HandleMine handles POST /mine with an optional {"barangay"} body.
func (h *ActionsHandler) HandleMine(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_mine"
	if !h.notices.allow(w, r, op, http.MethodPost) {
		return
	}
	var req mineRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.notices.fail(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	msg, err := h.deps.Mine(r.Context(), req.Precinct)
	if err != nil {
		h.notices.fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}
