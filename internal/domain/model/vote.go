package model

import (
	"encoding/json"
	"strings"
)

// UnknownPrecinct labels votes that arrive without a precinct.
const UnknownPrecinct = "Unknown"

// Vote is one ballot: who cast it, where, and what they chose per role.
type Vote struct {
	VoterID    string
	Precinct   string
	Selections map[Role]Selection
}

// Selection returns the choice for role, or nil when the ballot has none.
func (v Vote) Selection(role Role) Selection {
	if v.Selections == nil {
		return nil
	}
	return v.Selections[role]
}

// Choices returns the candidates chosen for role.
func (v Vote) Choices(role Role) []string {
	s := v.Selection(role)
	if s == nil {
		return nil
	}
	return s.Candidates()
}

// PrecinctOrUnknown returns the precinct label used for grouping.
func (v Vote) PrecinctOrUnknown() string {
	if p := strings.TrimSpace(v.Precinct); p != "" {
		return p
	}
	return UnknownPrecinct
}

type voteWire struct {
	VoterID    string                     `json:"voter_id"`
	Barangay   string                     `json:"barangay,omitempty"`
	Candidates map[string]json.RawMessage `json:"candidates"`
}

// UnmarshalJSON decodes the service's vote shape. Roles the client does not
// know are skipped.
func (v *Vote) UnmarshalJSON(data []byte) error {
	var w voteWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := Vote{VoterID: w.VoterID, Precinct: w.Barangay}
	for name, raw := range w.Candidates {
		role, ok := ParseRole(name)
		if !ok {
			continue
		}
		sel, err := decodeSelection(raw)
		if err != nil {
			return err
		}
		if sel == nil {
			continue
		}
		if out.Selections == nil {
			out.Selections = make(map[Role]Selection, len(Roles))
		}
		out.Selections[role] = sel
	}
	*v = out
	return nil
}

// MarshalJSON encodes the vote in the shape POST /vote expects. Multi-select
// roles are always present as arrays.
func (v Vote) MarshalJSON() ([]byte, error) {
	candidates := make(map[string]any, len(Roles))
	for _, role := range Roles {
		sel := v.Selection(role)
		if role.Policy() == SingleSelect && (sel == nil || sel.Empty()) {
			continue
		}
		candidates[role.String()] = encodeSelection(role, sel)
	}
	return json.Marshal(struct {
		VoterID    string         `json:"voter_id"`
		Barangay   string         `json:"barangay,omitempty"`
		Candidates map[string]any `json:"candidates"`
	}{VoterID: v.VoterID, Barangay: v.Precinct, Candidates: candidates})
}
