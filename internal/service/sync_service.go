package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"collab-notes-be/internal/dto"
	"collab-notes-be/internal/model"
	"collab-notes-be/internal/pkg/logger"
	"collab-notes-be/internal/repository/contract"
	"collab-notes-be/internal/repository/memory"
	"collab-notes-be/internal/repository/specification"
	"collab-notes-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// UpdateBroadcaster publishes accepted updates on the cross-replica relay.
// Implemented by the WebSocket hub.
type UpdateBroadcaster interface {
	Publish(ctx context.Context, env *model.RelayEnvelope) error
}

type ISyncService interface {
	// CheckAccess is consulted once per connection attempt, before upgrade.
	CheckAccess(ctx context.Context, userId, noteId uuid.UUID) error

	// Snapshot returns the init payload for a session (cache-first read).
	Snapshot(ctx context.Context, noteId uuid.UUID) (*model.InitMessage, error)

	// ApplyPatch runs the version gate and, on acceptance, commits the field
	// changes with a version bump of exactly 1 in a single versioned write.
	// The returned update has already been handed to the relay.
	ApplyPatch(ctx context.Context, noteId, userId uuid.UUID, msg *model.PatchMessage) (*model.UpdateMessage, error)
}

type syncService struct {
	uowFactory       unitofwork.RepositoryFactory
	snapshots        *memory.SnapshotCache
	broadcaster      UpdateBroadcaster
	publisherService IPublisherService
	logger           logger.ILogger
}

func NewSyncService(
	uowFactory unitofwork.RepositoryFactory,
	snapshots *memory.SnapshotCache,
	broadcaster UpdateBroadcaster,
	publisherService IPublisherService,
	log logger.ILogger,
) ISyncService {
	return &syncService{
		uowFactory:       uowFactory,
		snapshots:        snapshots,
		broadcaster:      broadcaster,
		publisherService: publisherService,
		logger:           log,
	}
}

func (s *syncService) CheckAccess(ctx context.Context, userId, noteId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return err
	}
	if user == nil {
		return ErrAccessDenied
	}

	note, err := uow.NoteRepository().FindOne(ctx, specification.ByID{ID: noteId})
	if err != nil {
		return err
	}
	if note == nil {
		return ErrNoteNotFound
	}
	if note.OrgId != user.OrgId {
		return ErrAccessDenied
	}

	return nil
}

func (s *syncService) Snapshot(ctx context.Context, noteId uuid.UUID) (*model.InitMessage, error) {
	if note, ok := s.snapshots.Get(noteId); ok {
		return &model.InitMessage{
			Type:    model.MessageTypeInit,
			NoteId:  note.Id,
			Title:   note.Title,
			Content: note.Content,
			Version: note.Version,
		}, nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	note, err := uow.NoteRepository().FindOne(ctx, specification.ByID{ID: noteId})
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, ErrNoteNotFound
	}

	s.snapshots.Save(note)

	return &model.InitMessage{
		Type:    model.MessageTypeInit,
		NoteId:  note.Id,
		Title:   note.Title,
		Content: note.Content,
		Version: note.Version,
	}, nil
}

func (s *syncService) ApplyPatch(ctx context.Context, noteId, userId uuid.UUID, msg *model.PatchMessage) (*model.UpdateMessage, error) {
	if msg.Patch == nil || msg.Version == nil {
		return nil, &InvalidPatchError{Reason: "patch and version are required"}
	}

	patch, err := DecodePatch(*msg.Patch)
	if err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	repo := uow.NoteRepository()

	note, err := repo.FindOne(ctx, specification.ByID{ID: noteId})
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, ErrNoteNotFound
	}

	if !AcceptVersion(*msg.Version, note.Version) {
		return nil, &VersionConflictError{CurrentVersion: note.Version}
	}

	if patch.Title != nil {
		note.Title = *patch.Title
	}
	if patch.Content != nil {
		note.Content = *patch.Content
	}

	// Field changes and the version bump commit as one statement. A race that
	// slipped past the gate loses here and surfaces as a regular conflict.
	err = repo.UpdateVersioned(ctx, note, *msg.Version)
	if errors.Is(err, contract.ErrStaleVersion) {
		current, readErr := repo.FindOne(ctx, specification.ByID{ID: noteId})
		if readErr != nil {
			return nil, readErr
		}
		if current == nil {
			return nil, ErrNoteNotFound
		}
		return nil, &VersionConflictError{CurrentVersion: current.Version}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to commit patch: %w", err)
	}

	s.snapshots.Save(note)

	update := &model.UpdateMessage{
		Type:      model.MessageTypeUpdate,
		Title:     note.Title,
		Content:   note.Content,
		Version:   note.Version,
		UserId:    userId,
		Timestamp: time.Now().UTC(),
	}

	env := &model.RelayEnvelope{
		NoteId: noteId,
		Kind:   model.EnvelopeUpdate,
		Update: update,
	}
	// Relay failure degrades to local-only visibility; the write stands.
	if err := s.broadcaster.Publish(ctx, env); err != nil {
		s.logger.Warn("SyncService", "Relay publish failed, update visible locally only", map[string]interface{}{
			"note_id": noteId, "version": update.Version, "error": err.Error(),
		})
	}

	s.publishBusEvent(ctx, "NOTE_PATCHED", noteId, userId, note.Version)

	return update, nil
}

func (s *syncService) publishBusEvent(ctx context.Context, eventType string, noteId, userId uuid.UUID, version int64) {
	if s.publisherService == nil {
		return
	}
	payload, err := json.Marshal(dto.NoteEventMessage{
		Type:    eventType,
		NoteId:  noteId,
		UserId:  userId,
		Version: version,
	})
	if err != nil {
		return
	}
	if err := s.publisherService.Publish(ctx, payload); err != nil {
		s.logger.Warn("SyncService", "Failed to publish bus event", map[string]interface{}{
			"type": eventType, "note_id": noteId, "error": err.Error(),
		})
	}
}
