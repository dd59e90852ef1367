package seeder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tally/internal/adapters/tallyclient"
	"github.com/okian/tally/internal/domain/ballot"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
)

// memoryService behaves like the voting service: one ballot per voter,
// pending until mined, results over mined and pending.
type memoryService struct {
	mu        sync.Mutex
	roster    model.Roster
	voters    map[string]bool
	finalized []model.Vote
	pending   model.PendingSet
	skew      int
	failEvery int
	calls     int
}

func newMemoryService() *memoryService {
	return &memoryService{roster: model.DefaultRoster(), voters: map[string]bool{}}
}

func (m *memoryService) FetchRoster(context.Context) (model.Roster, error) { return m.roster, nil }

func (m *memoryService) FetchFinalized(context.Context) ([]model.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Vote(nil), m.finalized...), nil
}

func (m *memoryService) FetchPending(context.Context) (model.PendingSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var p model.PendingSet
	for _, name := range m.pending.Precincts() {
		p.Add(name, m.pending.Votes(name)...)
	}
	return p, nil
}

func (m *memoryService) FetchResults(context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int{}
	for _, v := range append(append([]model.Vote(nil), m.finalized...), m.pending.All()...) {
		for _, role := range model.Roles {
			for _, name := range v.Choices(role) {
				out[name]++
			}
		}
	}
	for name := range out {
		out[name] += m.skew
		break
	}
	return out, nil
}

func (m *memoryService) FetchResultsByPrecinct(context.Context) (map[string]map[string]int, error) {
	return map[string]map[string]int{}, nil
}

func (m *memoryService) SubmitVote(_ context.Context, v model.Vote) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failEvery > 0 && m.calls%m.failEvery == 0 {
		return "", &tallyclient.TransportError{Endpoint: tallyclient.PathVote, Message: "connection reset"}
	}
	if m.voters[v.VoterID] {
		return "", &tallyclient.TransportError{Endpoint: tallyclient.PathVote, Status: http.StatusBadRequest, Message: "Voter has already voted"}
	}
	m.voters[v.VoterID] = true
	m.pending.Add(v.Precinct, v)
	return "Vote recorded", nil
}

func (m *memoryService) Mine(_ context.Context, precinct string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rest model.PendingSet
	for _, name := range m.pending.Precincts() {
		if precinct == "" || precinct == name {
			m.finalized = append(m.finalized, m.pending.Votes(name)...)
			continue
		}
		rest.Add(name, m.pending.Votes(name)...)
	}
	m.pending = rest
	return "Mined", nil
}

func TestConfig_Validate(t *testing.T) {
	Convey("Given seeder configs", t, func() {
		valid := Config{Votes: 1, Workers: 1, Precincts: []string{"A"}}
		So(valid.Validate(), ShouldBeNil)

		for _, cfg := range []Config{
			{Votes: 0, Workers: 1, Precincts: []string{"A"}},
			{Votes: 1, Workers: 0, Precincts: []string{"A"}},
			{Votes: 1, Workers: 1},
			{Votes: 1, Workers: 1, Precincts: []string{""}},
		} {
			So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)
		}
	})
}

func TestGenerator(t *testing.T) {
	Convey("Given a generator over the built-in roster", t, func() {
		roster := model.DefaultRoster()
		precincts := []string{"A", "B", "C"}
		votes := NewGenerator(roster, precincts, 42).Generate(200)

		Convey("Then every ballot is valid and uniquely identified", func() {
			So(len(votes), ShouldEqual, 200)
			seen := map[string]bool{}
			for _, v := range votes {
				So(ballot.Validate(v, roster), ShouldBeNil)
				So(precincts, ShouldContain, v.Precinct)
				So(seen[v.VoterID], ShouldBeFalse)
				seen[v.VoterID] = true
			}
		})

		Convey("Then the same seed repeats the selections", func() {
			again := NewGenerator(roster, precincts, 42).Generate(200)
			for i := range votes {
				So(again[i].Precinct, ShouldEqual, votes[i].Precinct)
				for _, role := range model.Roles {
					So(again[i].Choices(role), ShouldResemble, votes[i].Choices(role))
				}
			}
		})
	})
}

func TestRunner_Run(t *testing.T) {
	Convey("Given an in-memory voting service", t, func() {
		svc := newMemoryService()
		cfg := &Config{Votes: 60, Workers: 4, Precincts: []string{"A", "B"}, Seed: 7}
		ctx := context.Background()

		Convey("When seeding and mining", func() {
			cfg.Mine = true
			cfg.OutputFile = filepath.Join(t.TempDir(), "out", "ballots.json")
			stats, err := NewRunner(cfg, svc, logger.Discard()).Run(ctx)

			Convey("Then every ballot is accepted, finalized and consistent", func() {
				So(err, ShouldBeNil)
				So(stats.Accepted, ShouldEqual, 60)
				So(stats.Submitted, ShouldEqual, 60)
				So(stats.Mined, ShouldBeTrue)
				So(stats.Consistent, ShouldBeTrue)
				So(len(svc.finalized), ShouldEqual, 60)
				So(svc.pending.Len(), ShouldEqual, 0)
			})

			Convey("Then the ballots are saved", func() {
				data, err := os.ReadFile(cfg.OutputFile)
				So(err, ShouldBeNil)
				var saved []model.Vote
				So(json.Unmarshal(data, &saved), ShouldBeNil)
				So(len(saved), ShouldEqual, 60)
			})
		})

		Convey("When some requests fail in transit", func() {
			svc.failEvery = 10
			stats, err := NewRunner(cfg, svc, logger.Discard()).Run(ctx)

			Convey("Then failures are counted and the tally still agrees", func() {
				So(err, ShouldBeNil)
				So(stats.Failed, ShouldEqual, 6)
				So(stats.Accepted, ShouldEqual, 54)
				So(stats.Consistent, ShouldBeTrue)
			})
		})

		Convey("When the service miscounts", func() {
			svc.skew = 1
			stats, err := NewRunner(cfg, svc, logger.Discard()).Run(ctx)

			Convey("Then the run reports the inconsistency", func() {
				So(errors.Is(err, ErrInconsistent), ShouldBeTrue)
				So(stats.Consistent, ShouldBeFalse)
			})
		})

		Convey("When a ballot was already cast", func() {
			So(isRejection(&tallyclient.TransportError{Status: http.StatusBadRequest}), ShouldBeTrue)
			So(isRejection(&tallyclient.ApplicationError{Message: "closed"}), ShouldBeTrue)
			So(isRejection(&tallyclient.TransportError{Message: "reset"}), ShouldBeFalse)
		})
	})
}
