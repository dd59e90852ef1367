package model

// PrecinctGroup is the per-precinct view of finalized and pending votes.
type PrecinctGroup struct {
	Precinct string `json:"precinct"`
	Mined    []Vote `json:"mined"`
	Pending  []Vote `json:"pending"`
}

// Standing is one candidate's count within a role.
type Standing struct {
	Candidate string `json:"candidate"`
	Votes     int    `json:"votes"`
}

// RoleStandings is the ordered leaderboard of one role. Standings lists every
// roster candidate; Unrostered holds counted names missing from the roster.
type RoleStandings struct {
	Role       Role       `json:"role"`
	Standings  []Standing `json:"standings"`
	Unrostered []Standing `json:"unrostered,omitempty"`
}

// Leaderboard holds role standings in display order. Unassigned collects
// counts that could not be attributed to any role.
type Leaderboard struct {
	Roles      []RoleStandings `json:"roles"`
	Unassigned []Standing      `json:"unassigned,omitempty"`
}

// For returns the standings of role.
func (l Leaderboard) For(role Role) (RoleStandings, bool) {
	for _, rs := range l.Roles {
		if rs.Role == role {
			return rs, true
		}
	}
	return RoleStandings{}, false
}

// Total returns the number of selections counted for role, rostered or not.
func (rs RoleStandings) Total() int {
	n := 0
	for _, s := range rs.Standings {
		n += s.Votes
	}
	for _, s := range rs.Unrostered {
		n += s.Votes
	}
	return n
}
