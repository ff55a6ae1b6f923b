package models

import (
	"time"

	"github.com/google/uuid"
)

type Category struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Name      string
	Color     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Category) OwnerID() uuid.UUID { return c.UserID }
