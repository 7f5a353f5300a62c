// Package models contains domain types for peroxia-engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is a named container of tasks with one owner and a set of members.
type Project struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	OwnerID     uuid.UUID `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectMember links a user to a project.
type ProjectMember struct {
	ProjectID uuid.UUID `json:"project_id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ProjectWithMembers is a project together with the users that belong to it.
type ProjectWithMembers struct {
	Project
	Members []*User `json:"members"`
}
