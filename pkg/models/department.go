package models

import (
	"time"

	"github.com/google/uuid"
)

// Department is an organizational unit employees can be assigned to.
// Stored in departments table.
type Department struct {
	ID          uuid.UUID  `json:"id"`
	ProjectID   uuid.UUID  `json:"project_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Location is an office or region employees can be assigned to.
// Stored in locations table.
type Location struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ReferenceData feeds the selection inputs of information completion.
type ReferenceData struct {
	Departments []string `json:"departments"`
	Locations   []string `json:"locations"`
}
