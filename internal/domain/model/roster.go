package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Roster is the canonical, ordered candidate list per role. The order defines
// both display order and leaderboard tie-breaks. A Roster is immutable once
// built; accessors return copies.
type Roster struct {
	byRole  map[Role][]string
	index   map[Role]map[string]int
	ignored []string
}

// NewRoster builds a roster from role -> names. Repeated names within a role
// keep their first position.
func NewRoster(entries map[Role][]string) Roster {
	r := Roster{
		byRole: make(map[Role][]string, len(entries)),
		index:  make(map[Role]map[string]int, len(entries)),
	}
	for _, role := range Roles {
		names, ok := entries[role]
		if !ok {
			continue
		}
		r.set(role, names)
	}
	return r
}

func (r *Roster) set(role Role, names []string) {
	idx := make(map[string]int, len(names))
	list := make([]string, 0, len(names))
	for _, n := range names {
		if _, dup := idx[n]; dup {
			continue
		}
		idx[n] = len(list)
		list = append(list, n)
	}
	r.byRole[role] = list
	r.index[role] = idx
}

// Has reports whether the roster defines role (possibly with no candidates).
func (r Roster) Has(role Role) bool {
	_, ok := r.byRole[role]
	return ok
}

// Roles returns the roles defined by the roster in display order.
func (r Roster) Roles() []Role {
	out := make([]Role, 0, len(r.byRole))
	for _, role := range Roles {
		if r.Has(role) {
			out = append(out, role)
		}
	}
	return out
}

// Candidates returns the roster for role in canonical order.
func (r Roster) Candidates(role Role) []string {
	names := r.byRole[role]
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Index returns the roster position of name within role.
func (r Roster) Index(role Role, name string) (int, bool) {
	i, ok := r.index[role][name]
	return i, ok
}

// RoleOf returns the first role (in display order) whose roster lists name.
func (r Roster) RoleOf(name string) (Role, bool) {
	for _, role := range Roles {
		if _, ok := r.index[role][name]; ok {
			return role, true
		}
	}
	return 0, false
}

// IsEmpty reports whether the roster defines no roles at all.
func (r Roster) IsEmpty() bool { return len(r.byRole) == 0 }

// IgnoredRoles lists role names seen while decoding that are not part of the
// Role enumeration.
func (r Roster) IgnoredRoles() []string {
	out := make([]string, len(r.ignored))
	copy(out, r.ignored)
	return out
}

// UnmarshalJSON decodes {"Mayor": [...], ...}. Unknown role names are kept in
// IgnoredRoles rather than failing the decode.
func (r *Roster) UnmarshalJSON(data []byte) error {
	*r = Roster{byRole: map[Role][]string{}, index: map[Role]map[string]int{}}
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("roster: %w", err)
	}
	for name, names := range raw {
		role, ok := ParseRole(name)
		if !ok {
			r.ignored = append(r.ignored, name)
			continue
		}
		r.set(role, names)
	}
	sort.Strings(r.ignored)
	return nil
}

// MarshalJSON encodes the roster as role name -> candidate list.
func (r Roster) MarshalJSON() ([]byte, error) {
	out := make(map[string][]string, len(r.byRole))
	for role, names := range r.byRole {
		out[role.String()] = names
	}
	return json.Marshal(out)
}

// DefaultRoster is the built-in roster used when neither the service nor a
// configured roster file provides one.
func DefaultRoster() Roster {
	return NewRoster(map[Role][]string{
		RoleMayor:     {"AGDA, DAYAN (PFP)", "PICARDAL, DINDO (IND)"},
		RoleViceMayor: {"TIU SONCO, EMMANUEL (LAKAS)", "FRANCO, KUYA VIC OHOYY (NPC)"},
		RoleCouncilor: {
			"DAZA, ZEN (PFP)", "ANACTA, KATRINA (PFP)", "LIMBAUAN, LYRA GEL (PFP)", "TIU, GLAIZA (PFP)",
			"BAGACAY, TOTOY ENAT (IND)", "UY, FRICH BAYLON (PFP)", "CAINDAY, KATHLYN JANE (PFP)",
			"GALO, IAN ERVIN (IND)", "ARAGO, MELCHO (IND)", "ESCOTO, BOTOY (LAKAS)", "ANG, JAY ANTHONY (PFP)",
			"CAPITO, ANNABELLE (PDPLBN)", "APELADO, JESSIE (IND)", "BAGRO, CELERINO JR. (IND)",
			"ABOBO, WILFRED (IND)", "AFABLE, CRIS (IND)", "CAMPOMANES, ONINS (IND)",
		},
	})
}
