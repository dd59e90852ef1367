package seeder

import (
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/okian/tally/internal/domain/ballot"
	"github.com/okian/tally/internal/domain/model"
)

// Generator produces random valid ballots for a roster.
type Generator struct {
	roster    model.Roster
	precincts []string
	rng       *rand.Rand
}

// NewGenerator returns a Generator. The same seed yields the same
// selections; voter ids are always fresh.
func NewGenerator(roster model.Roster, precincts []string, seed uint64) *Generator {
	return &Generator{
		roster:    roster,
		precincts: precincts,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), //nolint:gosec // not security sensitive
	}
}

// Generate returns n ballots. Every single-select role offered by the
// roster gets one candidate; multi-select roles get a random subset,
// possibly empty.
func (g *Generator) Generate(n int) []model.Vote {
	votes := make([]model.Vote, n)
	for i := range votes {
		votes[i] = g.next()
	}
	return votes
}

func (g *Generator) next() model.Vote {
	single := make(map[model.Role]string)
	multi := make(map[model.Role][]string)
	for _, role := range g.roster.Roles() {
		names := g.roster.Candidates(role)
		if len(names) == 0 {
			continue
		}
		if role.Policy() == model.SingleSelect {
			single[role] = names[g.rng.IntN(len(names))]
			continue
		}
		var picked []string
		for _, name := range names {
			if g.rng.IntN(2) == 0 {
				picked = append(picked, name)
			}
		}
		multi[role] = picked
	}
	precinct := g.precincts[g.rng.IntN(len(g.precincts))]
	return ballot.Build(uuid.NewString(), precinct, single, multi)
}
