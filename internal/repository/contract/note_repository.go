package contract

import (
	"context"
	"errors"

	"collab-notes-be/internal/entity"
	"collab-notes-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ErrStaleVersion is returned by UpdateVersioned when the row's version no
// longer matches the expected one. The caller re-reads to learn the current
// version.
var ErrStaleVersion = errors.New("note version is stale")

// NoteRepository is the document store adapter. UpdateVersioned is the only
// write path for title/content: it bumps the version by exactly 1 in the same
// statement that checks the expected version, so a stale writer can never win.
type NoteRepository interface {
	Create(ctx context.Context, note *entity.Note) error
	UpdateVersioned(ctx context.Context, note *entity.Note, expectedVersion int64) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Note, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Note, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
