// Package tally counts votes into deterministic, roster-complete leaderboards.
package tally

import (
	"sort"

	"github.com/okian/tally/internal/domain/model"
)

// Count tallies votes against roster.
//
// Every roster candidate appears in its role's standings, including those with
// zero votes. Standings are ordered by votes descending with ties broken by
// roster position. Names absent from the roster are still counted and reported
// in Unrostered so a roster/version skew stays visible. Each role of
// model.Roles gets an entry, empty when the roster does not define it.
func Count(votes []model.Vote, roster model.Roster) model.Leaderboard {
	counters := make(map[model.Role]*counter, len(model.Roles))
	for _, role := range model.Roles {
		counters[role] = newCounter()
	}

	for _, v := range votes {
		for _, role := range model.Roles {
			for _, name := range v.Choices(role) {
				counters[role].add(name)
			}
		}
	}

	lb := model.Leaderboard{Roles: make([]model.RoleStandings, 0, len(model.Roles))}
	for _, role := range model.Roles {
		lb.Roles = append(lb.Roles, counters[role].standings(role, roster))
	}
	return lb
}

// FromResults builds a leaderboard from the service's name -> count results.
// Candidates missing from results count as zero; result names not on any
// roster are reported in Unassigned.
func FromResults(results map[string]int, roster model.Roster) model.Leaderboard {
	lb := model.Leaderboard{Roles: make([]model.RoleStandings, 0, len(model.Roles))}
	for _, role := range model.Roles {
		c := newCounter()
		for _, name := range roster.Candidates(role) {
			c.counts[name] = results[name]
		}
		lb.Roles = append(lb.Roles, c.standings(role, roster))
	}

	for name, n := range results {
		if _, ok := roster.RoleOf(name); ok {
			continue
		}
		lb.Unassigned = append(lb.Unassigned, model.Standing{Candidate: name, Votes: n})
	}
	sort.Slice(lb.Unassigned, func(i, j int) bool {
		a, b := lb.Unassigned[i], lb.Unassigned[j]
		if a.Votes != b.Votes {
			return a.Votes > b.Votes
		}
		return a.Candidate < b.Candidate
	})
	return lb
}

// PrecinctLeaderboard pairs a precinct with the tally of its mined votes.
type PrecinctLeaderboard struct {
	Precinct    string            `json:"precinct"`
	Leaderboard model.Leaderboard `json:"leaderboard"`
}

// ByPrecinct tallies the mined votes of each group separately, keeping group
// order. Pending votes are never counted.
func ByPrecinct(groups []model.PrecinctGroup, roster model.Roster) []PrecinctLeaderboard {
	out := make([]PrecinctLeaderboard, len(groups))
	for i, g := range groups {
		out[i] = PrecinctLeaderboard{Precinct: g.Precinct, Leaderboard: Count(g.Mined, roster)}
	}
	return out
}

// counter accumulates counts and remembers first-seen order of names.
type counter struct {
	counts map[string]int
	seen   []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(name string) {
	if _, ok := c.counts[name]; !ok {
		c.seen = append(c.seen, name)
	}
	c.counts[name]++
}

func (c *counter) standings(role model.Role, roster model.Roster) model.RoleStandings {
	names := roster.Candidates(role)
	rs := model.RoleStandings{Role: role, Standings: make([]model.Standing, 0, len(names))}
	for _, name := range names {
		rs.Standings = append(rs.Standings, model.Standing{Candidate: name, Votes: c.counts[name]})
	}
	sort.SliceStable(rs.Standings, func(i, j int) bool {
		return rs.Standings[i].Votes > rs.Standings[j].Votes
	})

	for _, name := range c.seen {
		if _, ok := roster.Index(role, name); ok {
			continue
		}
		rs.Unrostered = append(rs.Unrostered, model.Standing{Candidate: name, Votes: c.counts[name]})
	}
	sort.SliceStable(rs.Unrostered, func(i, j int) bool {
		return rs.Unrostered[i].Votes > rs.Unrostered[j].Votes
	})
	return rs
}
