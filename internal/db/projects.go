package db

import (
	"context"
	"fmt"

	"tasktimer/internal/db/models"

	"github.com/google/uuid"
)

// GetOrCreateGuildProject returns the project owned by a Discord guild,
// creating a billable one on first use.
func (db *DB) GetOrCreateGuildProject(ctx context.Context, guildID, name string) (*models.Project, error) {
	project := &models.Project{}
	err := db.QueryRow(ctx, `
		INSERT INTO projects (id, name, is_billable, guild_id, created_at)
		VALUES ($1, $2, TRUE, $3, $4)
		ON CONFLICT (guild_id) DO UPDATE SET guild_id = EXCLUDED.guild_id
		RETURNING id, name, is_billable, guild_id, created_at`,
		uuid.New(), name, guildID, now(),
	).Scan(&project.ID, &project.Name, &project.IsBillable, &project.GuildID, &project.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get or create guild project: %w", mapErr(err))
	}
	return project, nil
}

func (t *Tx) IsProjectBillable(ctx context.Context, projectID uuid.UUID) (bool, error) {
	var billable bool
	err := t.tx.QueryRow(ctx, `SELECT is_billable FROM projects WHERE id = $1`, projectID).Scan(&billable)
	if err != nil {
		return false, fmt.Errorf("is project billable: %w", mapErr(err))
	}
	return billable, nil
}
