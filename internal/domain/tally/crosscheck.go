package tally

import (
	"sort"

	"github.com/okian/tally/internal/domain/model"
)

// Discrepancy is a candidate whose locally computed count differs from the
// service's.
type Discrepancy struct {
	Candidate string `json:"candidate"`
	Local     int    `json:"local"`
	Server    int    `json:"server"`
}

// Totals flattens a leaderboard into candidate -> count, summing across roles.
func Totals(lb model.Leaderboard) map[string]int {
	out := make(map[string]int)
	for _, rs := range lb.Roles {
		for _, s := range rs.Standings {
			out[s.Candidate] += s.Votes
		}
		for _, s := range rs.Unrostered {
			out[s.Candidate] += s.Votes
		}
	}
	for _, s := range lb.Unassigned {
		out[s.Candidate] += s.Votes
	}
	return out
}

// CrossCheck compares a local leaderboard with the service's raw results.
// The service counts finalized and pending votes alike, so local should be
// computed over both to match. The result is sorted by candidate name and is
// empty when the two agree.
func CrossCheck(local model.Leaderboard, server map[string]int) []Discrepancy {
	totals := Totals(local)
	names := make(map[string]struct{}, len(totals)+len(server))
	for n := range totals {
		names[n] = struct{}{}
	}
	for n := range server {
		names[n] = struct{}{}
	}

	var out []Discrepancy
	for n := range names {
		if totals[n] != server[n] {
			out = append(out, Discrepancy{Candidate: n, Local: totals[n], Server: server[n]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Candidate < out[j].Candidate })
	return out
}
