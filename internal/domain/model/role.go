// Package model contains domain models passed between layers.
package model

// Policy describes how many candidates a role accepts on one ballot.
type Policy int

const (
	// SingleSelect roles take exactly one candidate per ballot.
	SingleSelect Policy = iota
	// MultiSelect roles take zero or more candidates per ballot.
	MultiSelect
)

// Role is an elected office on the ballot.
type Role int

// Roles in ballot order.
const (
	RoleMayor Role = iota
	RoleViceMayor
	RoleCouncilor
)

// Roles lists every role in display order. Anything that enumerates roles
// iterates this slice.
var Roles = []Role{RoleMayor, RoleViceMayor, RoleCouncilor} //nolint:gochecknoglobals // fixed enumeration

var roleNames = map[Role]string{ //nolint:gochecknoglobals // fixed enumeration
	RoleMayor:     "Mayor",
	RoleViceMayor: "Vice Mayor",
	RoleCouncilor: "Councilor",
}

// String returns the wire and display name of the role.
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "Unknown Role"
}

// Policy returns the cardinality policy of the role.
func (r Role) Policy() Policy {
	if r == RoleCouncilor {
		return MultiSelect
	}
	return SingleSelect
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// ParseRole maps a wire name such as "Vice Mayor" to its Role.
func ParseRole(name string) (Role, bool) {
	for role, n := range roleNames {
		if n == name {
			return role, true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler so roles can key JSON objects.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, ErrUnknownRole
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	role, ok := ParseRole(string(text))
	if !ok {
		return ErrUnknownRole
	}
	*r = role
	return nil
}
