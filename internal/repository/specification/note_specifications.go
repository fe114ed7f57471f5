package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrgOwnedBy scopes a query to one tenant.
type OrgOwnedBy struct {
	OrgID uuid.UUID
}

func (s OrgOwnedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("org_id = ?", s.OrgID)
}

// UserOwnedBy filters by the creating user.
type UserOwnedBy struct {
	UserID uuid.UUID
}

func (s UserOwnedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

// ByEmail filters users by email.
type ByEmail struct {
	Email string
}

func (s ByEmail) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("email = ?", s.Email)
}
