// Package service orchestrates the refresh cycle: it owns the roster snapshot,
// fetches votes from the tally service, groups and tallies them, and publishes
// the resulting view for the API, the CLI and the exporters.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/tally/internal/adapters/rosterfile"
	"github.com/okian/tally/internal/domain/ballot"
	"github.com/okian/tally/internal/domain/grouping"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/tally"
	"github.com/okian/tally/internal/export"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// Source is the remote tally service as seen by the Service.
type Source interface {
	FetchRoster(ctx context.Context) (model.Roster, error)
	FetchFinalized(ctx context.Context) ([]model.Vote, error)
	FetchPending(ctx context.Context) (model.PendingSet, error)
	FetchResults(ctx context.Context) (map[string]int, error)
	FetchResultsByPrecinct(ctx context.Context) (map[string]map[string]int, error)
	SubmitVote(ctx context.Context, v model.Vote) (string, error)
	Mine(ctx context.Context, precinct string) (string, error)
}

// Roster sources reported by RosterSource.
const (
	RosterFromService = "service"
	RosterFromFile    = "file"
	RosterFromBuiltin = "builtin"
)

// View is one published refresh result. Empty is set when neither source had
// any precinct; Groups is then empty rather than missing.
type View struct {
	Groups       []model.PrecinctGroup `json:"groups"`
	Summaries    []grouping.Summary    `json:"summaries"`
	Empty        bool                  `json:"empty"`
	Leaderboard  model.Leaderboard     `json:"leaderboard"`
	MinedVotes   int                   `json:"mined_votes"`
	PendingVotes int                   `json:"pending_votes"`
	FetchedAt    time.Time             `json:"fetched_at"`
}

// Verification compares the local tally with the service's results.
type Verification struct {
	Local         model.Leaderboard   `json:"local"`
	Server        model.Leaderboard   `json:"server"`
	Discrepancies []tally.Discrepancy `json:"discrepancies"`
	Consistent    bool                `json:"consistent"`
	CheckedAt     time.Time           `json:"checked_at"`
}

// Service holds the roster and the last published view.
type Service struct {
	mu sync.RWMutex

	source Source
	logger logger.Logger
	now    func() time.Time

	// Configuration
	rosterFile string
	fallback   model.Roster
	layout     export.Layout
	marker     string

	// State
	started      bool
	roster       model.Roster
	rosterSource string
	view         *View
	refreshes    int
	failures     int
	lastError    string
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRosterFile sets a roster file tried before the built-in roster.
func WithRosterFile(path string) Option {
	return func(s *Service) { s.rosterFile = path }
}

// WithFallbackRoster replaces the built-in roster.
func WithFallbackRoster(r model.Roster) Option {
	return func(s *Service) {
		if !r.IsEmpty() {
			s.fallback = r
		}
	}
}

// WithLayout sets the page layout of the paginated export.
func WithLayout(l export.Layout) Option {
	return func(s *Service) {
		if l.LineHeight > 0 && l.MaxOffset > l.TopOffset {
			s.layout = l
		}
	}
}

// WithRedactionMarker sets the voter id replacement of the print export.
func WithRedactionMarker(marker string) Option {
	return func(s *Service) {
		if marker != "" {
			s.marker = marker
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service reading from source.
func New(source Source, opts ...Option) *Service {
	s := &Service{
		source:   source,
		now:      time.Now,
		fallback: model.DefaultRoster(),
		layout:   export.DefaultLayout(),
		marker:   export.DefaultMarker,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadRoster fetches the roster from the service. Failures and empty rosters
// are reported as ErrEmptyRoster.
func (s *Service) LoadRoster(ctx context.Context) (model.Roster, error) {
	roster, err := s.source.FetchRoster(ctx)
	if err != nil {
		return model.Roster{}, fmt.Errorf("%w: %w", ErrEmptyRoster, err)
	}
	if roster.IsEmpty() {
		return model.Roster{}, ErrEmptyRoster
	}
	return roster, nil
}

// Start loads the roster once. When the service roster is unavailable the
// configured roster file is used, then the built-in roster. The roster does
// not change afterwards.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	roster, err := s.LoadRoster(ctx)
	source := RosterFromService
	if err != nil {
		roster, source = s.fallbackRoster(ctx)
		s.logger.Warn(ctx, "using fallback roster",
			logger.String("source", source),
			logger.Error(err),
		)
		metrics.RecordRosterFallback(source)
	}

	s.roster = roster
	s.rosterSource = source
	s.started = true
	s.logger.Info(ctx, "tally service started",
		logger.String("roster", source),
		logger.Int("roles", len(roster.Roles())),
	)
	return nil
}

func (s *Service) fallbackRoster(ctx context.Context) (model.Roster, string) {
	if s.rosterFile != "" {
		r, err := rosterfile.Load(s.rosterFile)
		if err == nil {
			return r, RosterFromFile
		}
		s.logger.Warn(ctx, "roster file unusable",
			logger.String("path", s.rosterFile),
			logger.Error(err),
		)
	}
	return s.fallback, RosterFromBuiltin
}

// Stop marks the service stopped. The published view is kept.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	s.logger.Info(context.Background(), "tally service stopped")
}

// Roster returns the roster snapshot.
func (s *Service) Roster() (model.Roster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return model.Roster{}, ErrNotStarted
	}
	return s.roster, nil
}

// RosterSource reports where the roster came from.
func (s *Service) RosterSource() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rosterSource
}

// Refresh fetches finalized and pending votes concurrently and publishes a
// new view when both succeed. On failure the previous view is kept.
// Overlapping refreshes are not cancelled; the last to finish wins.
func (s *Service) Refresh(ctx context.Context) (*View, error) {
	roster, err := s.Roster()
	if err != nil {
		return nil, err
	}

	start := s.now()
	var (
		finalized []model.Vote
		pending   model.PendingSet
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		finalized, err = s.source.FetchFinalized(gctx)
		if err != nil {
			return fmt.Errorf("fetch finalized: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		pending, err = s.source.FetchPending(gctx)
		if err != nil {
			return fmt.Errorf("fetch pending: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.recordFailure(ctx, err)
		metrics.RecordRefresh(metrics.OutcomeError, elapsedMs(start, s.now()))
		return nil, err
	}

	v := &View{FetchedAt: s.now()}
	groups, err := grouping.ByPrecinct(finalized, pending)
	switch {
	case errors.Is(err, grouping.ErrNoData):
		v.Empty = true
	case err != nil:
		s.recordFailure(ctx, err)
		metrics.RecordRefresh(metrics.OutcomeError, elapsedMs(start, s.now()))
		return nil, err
	}
	v.Groups = groups
	v.Summaries = grouping.Summarize(groups)
	v.Leaderboard = tally.Count(finalized, roster)
	v.MinedVotes = len(finalized)
	v.PendingVotes = pending.Len()

	s.mu.Lock()
	s.view = v
	s.refreshes++
	s.lastError = ""
	s.mu.Unlock()

	metrics.RecordRefresh(metrics.OutcomeOK, elapsedMs(start, s.now()))
	metrics.UpdateView(len(groups), v.MinedVotes, v.PendingVotes)
	s.logger.Debug(ctx, "view refreshed",
		logger.Int("precincts", len(groups)),
		logger.Int("mined", v.MinedVotes),
		logger.Int("pending", v.PendingVotes),
	)
	return v, nil
}

func (s *Service) recordFailure(ctx context.Context, err error) {
	s.mu.Lock()
	s.failures++
	s.lastError = err.Error()
	s.mu.Unlock()
	s.logger.Warn(ctx, "refresh failed", logger.Error(err))
}

func elapsedMs(start, end time.Time) float64 {
	return float64(end.Sub(start).Microseconds()) / 1000
}

// View returns the last published view, if any.
func (s *Service) View() (*View, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view, s.view != nil
}

func (s *Service) currentView() (*View, error) {
	v, ok := s.View()
	if !ok {
		return nil, ErrNotLoaded
	}
	return v, nil
}

// Precinct returns one group of the current view.
func (s *Service) Precinct(name string) (model.PrecinctGroup, error) {
	v, err := s.currentView()
	if err != nil {
		return model.PrecinctGroup{}, err
	}
	g, ok := grouping.Find(v.Groups, name)
	if !ok {
		return model.PrecinctGroup{}, fmt.Errorf("%w: %s", ErrUnknownPrecinct, name)
	}
	return g, nil
}

// PrecinctBoard returns one group of the current view and the tally of its
// mined votes, both taken from the same snapshot.
func (s *Service) PrecinctBoard(name string) (model.PrecinctGroup, model.Leaderboard, error) {
	v, err := s.currentView()
	if err != nil {
		return model.PrecinctGroup{}, model.Leaderboard{}, err
	}
	g, ok := grouping.Find(v.Groups, name)
	if !ok {
		return model.PrecinctGroup{}, model.Leaderboard{}, fmt.Errorf("%w: %s", ErrUnknownPrecinct, name)
	}
	roster, err := s.Roster()
	if err != nil {
		return model.PrecinctGroup{}, model.Leaderboard{}, err
	}
	return g, tally.Count(g.Mined, roster), nil
}

// PrecinctLeaderboards tallies the mined votes of each precinct in the current view.
func (s *Service) PrecinctLeaderboards() ([]tally.PrecinctLeaderboard, error) {
	v, err := s.currentView()
	if err != nil {
		return nil, err
	}
	roster, err := s.Roster()
	if err != nil {
		return nil, err
	}
	return tally.ByPrecinct(v.Groups, roster), nil
}

// SubmitVote validates a ballot, sends it and refreshes the view. A refresh
// failure after a successful submission is logged, not returned.
func (s *Service) SubmitVote(ctx context.Context, v model.Vote) (string, error) {
	roster, err := s.Roster()
	if err != nil {
		return "", err
	}
	v = ballot.Normalize(v)
	if err := ballot.Validate(v, roster); err != nil {
		metrics.RecordSubmission(metrics.OutcomeInvalid)
		return "", err
	}

	msg, err := s.source.SubmitVote(ctx, v)
	if err != nil {
		metrics.RecordSubmission(metrics.OutcomeRejected)
		s.logger.Warn(ctx, "vote rejected",
			logger.String("barangay", v.Precinct),
			logger.Error(err),
		)
		return "", err
	}
	metrics.RecordSubmission(metrics.OutcomeOK)
	s.logger.Info(ctx, "vote submitted", logger.String("barangay", v.Precinct))

	_, _ = s.Refresh(ctx)
	return msg, nil
}

// Mine finalizes pending votes (one precinct, or all when precinct is empty)
// and refreshes the view.
func (s *Service) Mine(ctx context.Context, precinct string) (string, error) {
	if _, err := s.Roster(); err != nil {
		return "", err
	}
	msg, err := s.source.Mine(ctx, precinct)
	if err != nil {
		metrics.RecordMine(metrics.OutcomeRejected)
		return "", err
	}
	metrics.RecordMine(metrics.OutcomeOK)
	s.logger.Info(ctx, "mined", logger.String("barangay", precinct), logger.String("message", msg))

	_, _ = s.Refresh(ctx)
	return msg, nil
}

// ServerResults returns the service's own tally as a leaderboard.
func (s *Service) ServerResults(ctx context.Context) (model.Leaderboard, error) {
	roster, err := s.Roster()
	if err != nil {
		return model.Leaderboard{}, err
	}
	results, err := s.source.FetchResults(ctx)
	if err != nil {
		return model.Leaderboard{}, err
	}
	return tally.FromResults(results, roster), nil
}

// ServerResultsByPrecinct returns the service's per-precinct tally.
func (s *Service) ServerResultsByPrecinct(ctx context.Context) (map[string]map[string]int, error) {
	if _, err := s.Roster(); err != nil {
		return nil, err
	}
	return s.source.FetchResultsByPrecinct(ctx)
}

// Verify recounts finalized and pending votes locally and compares the totals
// with the service's results, which include pending votes.
func (s *Service) Verify(ctx context.Context) (Verification, error) {
	roster, err := s.Roster()
	if err != nil {
		return Verification{}, err
	}

	var (
		finalized []model.Vote
		pending   model.PendingSet
		results   map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		finalized, err = s.source.FetchFinalized(gctx)
		return err
	})
	g.Go(func() (err error) {
		pending, err = s.source.FetchPending(gctx)
		return err
	})
	g.Go(func() (err error) {
		results, err = s.source.FetchResults(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Verification{}, fmt.Errorf("verify: %w", err)
	}

	all := make([]model.Vote, 0, len(finalized)+pending.Len())
	all = append(all, finalized...)
	all = append(all, pending.All()...)
	local := tally.Count(all, roster)
	diff := tally.CrossCheck(local, results)
	return Verification{
		Local:         local,
		Server:        tally.FromResults(results, roster),
		Discrepancies: diff,
		Consistent:    len(diff) == 0,
		CheckedAt:     s.now(),
	}, nil
}

// Pages lays out the current view for the paginated export, or only precinct
// when it is not empty.
func (s *Service) Pages(precinct string) ([]export.Page, error) {
	v, err := s.currentView()
	if err != nil {
		return nil, err
	}
	groups := v.Groups
	if precinct != "" {
		g, err := s.Precinct(precinct)
		if err != nil {
			return nil, err
		}
		groups = []model.PrecinctGroup{g}
	}
	metrics.RecordExport("pages")
	return export.Pages(s.layout, groups), nil
}

// PrintDocument builds the print export from the current view.
func (s *Service) PrintDocument() (export.PrintDocument, error) {
	v, err := s.currentView()
	if err != nil {
		return export.PrintDocument{}, err
	}
	metrics.RecordExport("print")
	return export.NewPrintDocument(v.Groups, v.Leaderboard, s.marker), nil
}

// Archive writes the current view as a compressed snapshot.
func (s *Service) Archive(w io.Writer, source string) (export.Digest, int, error) {
	v, err := s.currentView()
	if err != nil {
		return export.Digest{}, 0, err
	}
	roster, err := s.Roster()
	if err != nil {
		return export.Digest{}, 0, err
	}
	metrics.RecordExport("archive")
	return export.WriteArchive(w, export.Archive{
		GeneratedAt: v.FetchedAt,
		Source:      source,
		Roster:      roster,
		Groups:      v.Groups,
		Leaderboard: v.Leaderboard,
	})
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":      s.started,
		"rosterSource": s.rosterSource,
		"refreshes":    s.refreshes,
		"failures":     s.failures,
		"loaded":       s.view != nil,
	}
	if s.lastError != "" {
		stats["lastError"] = s.lastError
	}
	if s.view != nil {
		stats["precincts"] = len(s.view.Groups)
		stats["minedVotes"] = s.view.MinedVotes
		stats["pendingVotes"] = s.view.PendingVotes
		stats["fetchedAt"] = s.view.FetchedAt
	}
	return stats
}
