// Package ballot checks a vote on the client before it is sent to the service.
package ballot

import (
	"strings"

	"github.com/okian/tally/internal/domain/model"
)

// Validate returns a *ValidationError when the voter id or precinct is blank
// or a single-select role offered by the roster has no choice. Multi-select
// roles may be left empty. It does not check names against the roster; the
// service owns that rule.
func Validate(v model.Vote, roster model.Roster) error {
	if strings.TrimSpace(v.VoterID) == "" {
		return &ValidationError{Field: "voter_id", Reason: "required"}
	}
	if strings.TrimSpace(v.Precinct) == "" {
		return &ValidationError{Field: "barangay", Reason: "required"}
	}
	for _, role := range roster.Roles() {
		if role.Policy() != model.SingleSelect {
			continue
		}
		sel := v.Selection(role)
		if sel == nil || sel.Empty() {
			return &ValidationError{Field: role.String(), Reason: "a candidate must be selected"}
		}
		if _, multi := sel.(model.MultiChoice); multi {
			return &ValidationError{Field: role.String(), Reason: "only one candidate may be selected"}
		}
	}
	return nil
}

// Normalize trims identifiers so what is validated is what gets sent.
func Normalize(v model.Vote) model.Vote {
	v.VoterID = strings.TrimSpace(v.VoterID)
	v.Precinct = strings.TrimSpace(v.Precinct)
	return v
}

// Build assembles a vote from form-style inputs: one name per single-select
// role and a list for multi-select roles. Blank names are treated as unset.
func Build(voterID, precinct string, single map[model.Role]string, multi map[model.Role][]string) model.Vote {
	v := model.Vote{
		VoterID:    voterID,
		Precinct:   precinct,
		Selections: make(map[model.Role]model.Selection, len(model.Roles)),
	}
	for _, role := range model.Roles {
		switch role.Policy() {
		case model.SingleSelect:
			if name := strings.TrimSpace(single[role]); name != "" {
				v.Selections[role] = model.SingleChoice{Candidate: name}
			}
		case model.MultiSelect:
			v.Selections[role] = model.NewMultiChoice(multi[role]...)
		}
	}
	return Normalize(v)
}
