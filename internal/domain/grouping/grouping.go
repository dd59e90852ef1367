// Package grouping merges finalized and pending votes into per-precinct groups.
package grouping

import (
	"errors"

	"github.com/okian/tally/internal/domain/model"
)

// ErrNoData reports that neither source had a single precinct. Callers render
// it as an explicit empty state, distinct from "not loaded yet".
var ErrNoData = errors.New("no precincts with votes")

// ByPrecinct groups finalized votes by their precinct (missing precincts fall
// under model.UnknownPrecinct) and joins them with the pending set. Every
// precinct present in either input appears exactly once. Order is first-seen
// across the finalized list, followed by pending-only precincts in pending
// order.
func ByPrecinct(finalized []model.Vote, pending model.PendingSet) ([]model.PrecinctGroup, error) {
	order := make([]string, 0)
	mined := make(map[string][]model.Vote)

	for _, v := range finalized {
		key := v.PrecinctOrUnknown()
		if _, ok := mined[key]; !ok {
			order = append(order, key)
			mined[key] = []model.Vote{}
		}
		mined[key] = append(mined[key], v)
	}

	seen := make(map[string]struct{}, len(order))
	for _, k := range order {
		seen[k] = struct{}{}
	}
	for _, k := range pending.Precincts() {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		order = append(order, k)
	}

	if len(order) == 0 {
		return nil, ErrNoData
	}

	groups := make([]model.PrecinctGroup, 0, len(order))
	for _, k := range order {
		g := model.PrecinctGroup{
			Precinct: k,
			Mined:    mined[k],
			Pending:  pending.Votes(k),
		}
		if g.Mined == nil {
			g.Mined = []model.Vote{}
		}
		if g.Pending == nil {
			g.Pending = []model.Vote{}
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// Find returns the group for precinct.
func Find(groups []model.PrecinctGroup, precinct string) (model.PrecinctGroup, bool) {
	for _, g := range groups {
		if g.Precinct == precinct {
			return g, true
		}
	}
	return model.PrecinctGroup{}, false
}

// Summary is the one-line card shown per precinct.
type Summary struct {
	Precinct string `json:"precinct"`
	Mined    int    `json:"mined"`
	Pending  int    `json:"pending"`
}

// Summarize reduces groups to their mined and pending counts.
func Summarize(groups []model.PrecinctGroup) []Summary {
	out := make([]Summary, len(groups))
	for i, g := range groups {
		out[i] = Summary{Precinct: g.Precinct, Mined: len(g.Mined), Pending: len(g.Pending)}
	}
	return out
}
