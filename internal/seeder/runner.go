package seeder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/tally/internal/adapters/tallyclient"
	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// ErrInconsistent is returned when the local recount disagrees with the
// service after seeding.
var ErrInconsistent = errors.New("local tally does not match service results")

// Runner seeds a voting service and checks the tally afterwards.
type Runner struct {
	cfg    *Config
	source service.Source
	log    logger.Logger
}

// NewRunner returns a Runner submitting to source.
func NewRunner(cfg *Config, source service.Source, log logger.Logger) *Runner {
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{cfg: cfg, source: source, log: log}
}

// Run executes the complete seeding run.
func (r *Runner) Run(ctx context.Context) (*Stats, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}
	stats := &Stats{StartTime: time.Now()}

	r.log.Info(ctx, "starting seeding run",
		logger.Int("votes", r.cfg.Votes),
		logger.Int("workers", r.cfg.Workers),
		logger.Strings("precincts", r.cfg.Precincts),
		logger.Bool("mine", r.cfg.Mine))

	// Step 1: Load the roster ballots are generated from
	svc := service.New(r.source, service.WithLogger(r.log))
	if err := svc.Start(ctx); err != nil {
		return stats, fmt.Errorf("roster load failed: %w", err)
	}
	defer svc.Stop()
	roster, err := svc.Roster()
	if err != nil {
		return stats, err
	}

	// Step 2: Generate ballots
	seed := r.cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano()) //nolint:gosec // clock value is never negative
	}
	votes := NewGenerator(roster, r.cfg.Precincts, seed).Generate(r.cfg.Votes)
	stats.Generated = len(votes)
	r.log.Info(ctx, "generated ballots", logger.Int("count", len(votes)), logger.String("rosterSource", svc.RosterSource()))

	// Step 3: Submit concurrently
	if err := r.submit(ctx, votes, stats); err != nil {
		return stats, fmt.Errorf("submission failed: %w", err)
	}

	// Step 4: Optionally finalize everything
	if r.cfg.Mine {
		msg, err := svc.Mine(ctx, "")
		if err != nil {
			return stats, fmt.Errorf("mine failed: %w", err)
		}
		stats.Mined = true
		r.log.Info(ctx, "mined pending votes", logger.String("message", msg))
	}

	// Step 5: Compare the local recount with the service's tally
	ver, err := svc.Verify(ctx)
	if err != nil {
		return stats, fmt.Errorf("verification failed: %w", err)
	}
	stats.Consistent = ver.Consistent
	for _, d := range ver.Discrepancies {
		r.log.Warn(ctx, "tally mismatch",
			logger.String("candidate", d.Candidate),
			logger.Int("local", d.Local),
			logger.Int("server", d.Server))
	}

	// Step 6: Save ballots
	if r.cfg.OutputFile != "" {
		if err := SaveVotes(r.cfg.OutputFile, votes); err != nil {
			r.log.Warn(ctx, "failed to save ballots", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	r.logStats(ctx, stats)

	if !ver.Consistent {
		return stats, fmt.Errorf("%w: %d discrepancies", ErrInconsistent, len(ver.Discrepancies))
	}
	return stats, nil
}

// submit sends votes with at most cfg.Workers requests in flight. Rejected
// and failed ballots are counted, not returned; only cancellation stops the
// run.
func (r *Runner) submit(ctx context.Context, votes []model.Vote, stats *Stats) error {
	var accepted, rejected, failed int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for _, v := range votes {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			_, err := r.source.SubmitVote(gctx, v)
			switch {
			case err == nil:
				atomic.AddInt64(&accepted, 1)
			case gctx.Err() != nil:
				return gctx.Err()
			case isRejection(err):
				atomic.AddInt64(&rejected, 1)
				if r.cfg.Verbose {
					r.log.Warn(gctx, "ballot rejected", logger.String("voterId", v.VoterID), logger.Error(err))
				}
			default:
				atomic.AddInt64(&failed, 1)
				if r.cfg.Verbose {
					r.log.Warn(gctx, "ballot failed", logger.String("voterId", v.VoterID), logger.Error(err))
				}
			}
			return nil
		})
	}
	err := g.Wait()

	stats.Accepted = int(accepted)
	stats.Rejected = int(rejected)
	stats.Failed = int(failed)
	stats.Submitted = stats.Accepted + stats.Rejected + stats.Failed
	if err == nil {
		err = ctx.Err()
	}
	return err
}

// isRejection reports whether the service refused the ballot itself, as
// opposed to being unreachable or answering garbage.
func isRejection(err error) bool {
	var te *tallyclient.TransportError
	if errors.As(err, &te) && te.Status >= 400 && te.Status < 500 {
		return true
	}
	return errors.Is(err, tallyclient.ErrApplication)
}

// SaveVotes writes votes as a JSON array in the POST /vote shape.
func SaveVotes(path string, votes []model.Vote) error {
	if len(votes) == 0 {
		return errors.New("no ballots to save")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(votes, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ballots: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), filePermission); err != nil {
		return fmt.Errorf("failed to write ballots: %w", err)
	}
	return nil
}

func (r *Runner) logStats(ctx context.Context, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	r.log.Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
		logger.Bool("mined", stats.Mined),
		logger.Bool("consistent", stats.Consistent),
		logger.Duration("duration", stats.Duration),
		logger.Float64("votesPerSecond", perSecond))
}
