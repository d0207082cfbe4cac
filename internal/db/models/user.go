package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DiscordID *string   `db:"discord_id" json:"discord_id,omitempty"`
	Username  string    `db:"username" json:"username"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Role string

const (
	RoleAdmin          Role = "Admin"
	RoleDirector       Role = "Director"
	RoleAccountManager Role = "Account Manager"
	RoleProjectManager Role = "Project Manager"
	RoleTeamLead       Role = "Team Lead"
	RoleDeveloper      Role = "Developer"
)

// IsElevated reports whether the role may operate timers on tasks assigned to
// someone else.
func (r Role) IsElevated() bool {
	switch r {
	case RoleAdmin, RoleDirector, RoleAccountManager, RoleProjectManager, RoleTeamLead:
		return true
	}
	return false
}

// ParseRole maps a stored role name to a Role. Unknown names map to Developer.
func ParseRole(s string) Role {
	switch r := Role(s); r {
	case RoleAdmin, RoleDirector, RoleAccountManager, RoleProjectManager, RoleTeamLead, RoleDeveloper:
		return r
	}
	return RoleDeveloper
}
