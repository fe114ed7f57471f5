package entity

import (
	"time"

	"github.com/google/uuid"
)

// Note is the durable document record. Version starts at 1 and increases by
// exactly 1 on every accepted patch; it is never mutated outside the versioned
// write path.
type Note struct {
	Id        uuid.UUID
	OrgId     uuid.UUID
	UserId    uuid.UUID
	Title     string
	Content   string
	Version   int64
	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
	IsDeleted bool
}
