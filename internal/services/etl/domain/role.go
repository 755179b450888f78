package domain

import "strings"

// Role is a person's part in a film
type Role uint8

// roles the index knows about
const (
	RoleUnknown Role = iota
	RoleActor
	RoleWriter
	RoleDirector
)

// ClassifyRole maps a source role name to a Role, ignoring case and padding
func ClassifyRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "actor":
		return RoleActor
	case "writer":
		return RoleWriter
	case "director":
		return RoleDirector
	default:
		return RoleUnknown
	}
}

func (r Role) String() string {
	switch r {
	case RoleActor:
		return "actor"
	case RoleWriter:
		return "writer"
	case RoleDirector:
		return "director"
	default:
		return "unknown"
	}
}
