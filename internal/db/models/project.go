package models

import (
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	IsBillable bool      `db:"is_billable" json:"is_billable"`
	// GuildID is set for projects created on behalf of a Discord server.
	GuildID   *string   `db:"guild_id" json:"guild_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
