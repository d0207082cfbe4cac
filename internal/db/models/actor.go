package models

import "github.com/google/uuid"

// Actor is the authenticated user on whose behalf an operation runs.
type Actor struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
	Name   string    `json:"name,omitempty"`
}
