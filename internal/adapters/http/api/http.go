// Package api exposes the current tally view over HTTP/JSON. It is the
// boundary to the rendering layer: everything it returns was computed by the
// application service, and errors come back as dismissible notices.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/okian/tally/internal/adapters/tallyclient"
	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/domain/ballot"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/export"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	StatsProvider

	Roster() (model.Roster, error)
	View() (*service.View, bool)
	PrecinctBoard(name string) (model.PrecinctGroup, model.Leaderboard, error)

	Refresh(ctx context.Context) (*service.View, error)
	SubmitVote(ctx context.Context, v model.Vote) (string, error)
	Mine(ctx context.Context, precinct string) (string, error)
	ServerResults(ctx context.Context) (model.Leaderboard, error)
	ServerResultsByPrecinct(ctx context.Context) (map[string]map[string]int, error)
	Verify(ctx context.Context) (service.Verification, error)

	Pages(precinct string) ([]export.Page, error)
	PrintDocument() (export.PrintDocument, error)
	Archive(w io.Writer, source string) (export.Digest, int, error)
}

// DefaultNoticeTTL is how long a notice stays on screen unless configured.
const DefaultNoticeTTL = 5 * time.Second

// Server wires HTTP routes for the view API.
type Server struct {
	notices notices

	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	viewHandler        *ViewHandler
	leaderboardHandler *LeaderboardHandler
	actionsHandler     *ActionsHandler
	exportHandler      *ExportHandler
}

// Option configures a Server.
type Option func(*Server)

// WithNoticeTTL sets dismiss_after_ms on error notices.
func WithNoticeTTL(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.notices.ttl = d
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{notices: notices{ttl: DefaultNoticeTTL}}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps)
	s.viewHandler = NewViewHandler(deps, s.notices)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.notices)
	s.actionsHandler = NewActionsHandler(deps, s.notices)
	s.exportHandler = NewExportHandler(deps, s.notices)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/roster", MetricsMiddleware(s.viewHandler.HandleRoster, "roster"))
	mux.HandleFunc("/precincts", MetricsMiddleware(s.viewHandler.HandlePrecincts, "precincts"))
	mux.HandleFunc("/precincts/", MetricsMiddleware(s.viewHandler.HandlePrecinct, "precinct"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleLeaderboard, "leaderboard"))
	mux.HandleFunc("/results", MetricsMiddleware(s.leaderboardHandler.HandleResults, "results"))
	mux.HandleFunc("/verify", MetricsMiddleware(s.leaderboardHandler.HandleVerify, "verify"))
	mux.HandleFunc("/refresh", MetricsMiddleware(s.actionsHandler.HandleRefresh, "refresh"))
	mux.HandleFunc("/vote", MetricsMiddleware(s.actionsHandler.HandleVote, "vote"))
	mux.HandleFunc("/mine", MetricsMiddleware(s.actionsHandler.HandleMine, "mine"))
	mux.HandleFunc("/export/pages", MetricsMiddleware(s.exportHandler.HandlePages, "export_pages"))
	mux.HandleFunc("/export/print", MetricsMiddleware(s.exportHandler.HandlePrint, "export_print"))
	mux.HandleFunc("/export/archive", MetricsMiddleware(s.exportHandler.HandleArchive, "export_archive"))
}

// Notice is the error shape shown by the rendering layer as a temporary message.
type Notice struct {
	Code           string `json:"code"`
	Message        string `json:"message"`
	DismissAfterMs int64  `json:"dismiss_after_ms"`
}

type notices struct {
	ttl time.Duration
}

func (n notices) write(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, Notice{Code: code, Message: msg, DismissAfterMs: n.ttl.Milliseconds()})
}

// fail maps a service or client error onto a status and notice code.
func (n notices) fail(w http.ResponseWriter, op string, err error) {
	status, code := classify(err)
	n.write(w, status, code, Wrap(op, err))
}

func classify(err error) (int, string) {
	var te *tallyclient.TransportError
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ballot.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, service.ErrUnknownPrecinct), errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrNotLoaded):
		return http.StatusServiceUnavailable, "not_loaded"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "not_started"
	case errors.As(err, &te) && te.Status >= 400 && te.Status < 500:
		return http.StatusUnprocessableEntity, "rejected"
	case errors.Is(err, tallyclient.ErrMalformedResponse):
		return http.StatusBadGateway, "upstream_malformed"
	case errors.Is(err, tallyclient.ErrApplication):
		return http.StatusBadGateway, "upstream_error"
	case errors.Is(err, tallyclient.ErrTransport):
		return http.StatusBadGateway, "upstream_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// allow answers 405 with a notice unless r uses method.
func (n notices) allow(w http.ResponseWriter, r *http.Request, op, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	n.write(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(op, ErrMethodNotAllowed))
	return false
}
