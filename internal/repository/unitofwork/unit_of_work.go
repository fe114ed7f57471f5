package unitofwork

import (
	"context"

	"collab-notes-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() contract.UserRepository
	OrganizationRepository() contract.OrganizationRepository
	NoteRepository() contract.NoteRepository
}
