package db

import (
	"context"
	"fmt"

	"tasktimer/internal/db/models"

	"github.com/google/uuid"
)

const userColumns = `id, discord_id, username, role, created_at`

func scanUser(row scanner) (*models.User, error) {
	user := &models.User{}
	var role string
	if err := row.Scan(&user.ID, &user.DiscordID, &user.Username, &role, &user.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	user.Role = models.ParseRole(role)
	return user, nil
}

// GetUser retrieves a user by ID
func (db *DB) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := scanUser(db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return user, nil
}

// GetOrCreateUser gets a user by Discord ID or creates one as a Developer.
// The stored username is refreshed when it changed on Discord.
func (db *DB) GetOrCreateUser(ctx context.Context, discordID, username string) (*models.User, error) {
	user, err := scanUser(db.QueryRow(ctx, `
		INSERT INTO users (id, discord_id, username, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (discord_id) DO UPDATE SET username = EXCLUDED.username
		RETURNING `+userColumns,
		uuid.New(), discordID, username, string(models.RoleDeveloper), now(),
	))
	if err != nil {
		return nil, fmt.Errorf("get or create user: %w", err)
	}
	return user, nil
}
