package service

import (
	"context"
	"encoding/json"
	"time"

	"collab-notes-be/internal/dto"
	"collab-notes-be/internal/entity"
	"collab-notes-be/internal/model"
	"collab-notes-be/internal/pkg/logger"
	"collab-notes-be/internal/repository/specification"
	"collab-notes-be/internal/repository/unitofwork"
	"collab-notes-be/pkg/events"
	pktNats "collab-notes-be/pkg/nats"

	"github.com/google/uuid"
)

type INoteService interface {
	Create(ctx context.Context, userId uuid.UUID, req *dto.CreateNoteRequest) (*dto.CreateNoteResponse, error)
	Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.ShowNoteResponse, error)
	List(ctx context.Context, userId uuid.UUID) ([]*dto.ListNoteItem, error)
	Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error
}

type noteService struct {
	uowFactory       unitofwork.RepositoryFactory
	publisherService IPublisherService
	broadcaster      UpdateBroadcaster
	eventPublisher   *pktNats.Publisher
	logger           logger.ILogger
}

func NewNoteService(
	uowFactory unitofwork.RepositoryFactory,
	publisherService IPublisherService,
	broadcaster UpdateBroadcaster,
	eventPublisher *pktNats.Publisher,
	log logger.ILogger,
) INoteService {
	return &noteService{
		uowFactory:       uowFactory,
		publisherService: publisherService,
		broadcaster:      broadcaster,
		eventPublisher:   eventPublisher,
		logger:           log,
	}
}

func (c *noteService) orgOf(ctx context.Context, uow unitofwork.UnitOfWork, userId uuid.UUID) (uuid.UUID, error) {
	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return uuid.Nil, err
	}
	if user == nil {
		return uuid.Nil, ErrAccessDenied
	}
	return user.OrgId, nil
}

func (c *noteService) Create(ctx context.Context, userId uuid.UUID, req *dto.CreateNoteRequest) (*dto.CreateNoteResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	orgId, err := c.orgOf(ctx, uow, userId)
	if err != nil {
		return nil, err
	}

	note := entity.Note{
		Id:        uuid.New(),
		OrgId:     orgId,
		UserId:    userId,
		Title:     req.Title,
		Content:   req.Content,
		Version:   1,
		CreatedAt: time.Now(),
	}

	if err := uow.NoteRepository().Create(ctx, &note); err != nil {
		return nil, err
	}

	c.publishEvents(ctx, "NOTE_CREATED", &note, userId)

	return &dto.CreateNoteResponse{
		Id:      note.Id,
		Version: note.Version,
	}, nil
}

func (c *noteService) Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.ShowNoteResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	orgId, err := c.orgOf(ctx, uow, userId)
	if err != nil {
		return nil, err
	}

	note, err := uow.NoteRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.OrgOwnedBy{OrgID: orgId},
	)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, ErrNoteNotFound
	}

	return &dto.ShowNoteResponse{
		Id:        note.Id,
		Title:     note.Title,
		Content:   note.Content,
		Version:   note.Version,
		CreatedAt: note.CreatedAt,
		UpdatedAt: note.UpdatedAt,
	}, nil
}

func (c *noteService) List(ctx context.Context, userId uuid.UUID) ([]*dto.ListNoteItem, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	orgId, err := c.orgOf(ctx, uow, userId)
	if err != nil {
		return nil, err
	}

	notes, err := uow.NoteRepository().FindAll(ctx,
		specification.OrgOwnedBy{OrgID: orgId},
		specification.OrderBy{Field: "updated_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.ListNoteItem, len(notes))
	for i, note := range notes {
		items[i] = &dto.ListNoteItem{
			Id:        note.Id,
			Title:     note.Title,
			Version:   note.Version,
			CreatedAt: note.CreatedAt,
			UpdatedAt: note.UpdatedAt,
		}
	}
	return items, nil
}

func (c *noteService) Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	orgId, err := c.orgOf(ctx, uow, userId)
	if err != nil {
		return err
	}

	note, err := uow.NoteRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.OrgOwnedBy{OrgID: orgId},
	)
	if err != nil {
		return err
	}
	if note == nil {
		return ErrNoteNotFound
	}

	if err := uow.NoteRepository().Delete(ctx, id); err != nil {
		return err
	}

	// Every replica force-closes this note's live sessions on receipt.
	if c.broadcaster != nil {
		env := &model.RelayEnvelope{
			NoteId: id,
			Kind:   model.EnvelopeDeleted,
		}
		if err := c.broadcaster.Publish(ctx, env); err != nil {
			c.logger.Warn("NoteService", "Failed to relay deletion", map[string]interface{}{
				"note_id": id, "error": err.Error(),
			})
		}
	}

	c.publishEvents(ctx, "NOTE_DELETED", note, userId)

	return nil
}

func (c *noteService) publishEvents(ctx context.Context, eventType string, note *entity.Note, userId uuid.UUID) {
	if c.publisherService != nil {
		payload, err := json.Marshal(dto.NoteEventMessage{
			Type:    eventType,
			NoteId:  note.Id,
			UserId:  userId,
			Version: note.Version,
		})
		if err == nil {
			if err := c.publisherService.Publish(ctx, payload); err != nil {
				c.logger.Warn("NoteService", "Failed to publish bus event", map[string]interface{}{
					"type": eventType, "note_id": note.Id, "error": err.Error(),
				})
			}
		}
	}

	// External integrations listen on NATS; losing an event here never fails
	// the request.
	if c.eventPublisher != nil {
		evt := events.BaseEvent{
			Type: eventType,
			Data: map[string]interface{}{
				"note_id": note.Id,
				"user_id": userId,
				"title":   note.Title,
				"version": note.Version,
			},
			OccurredAt: time.Now(),
		}
		if err := c.eventPublisher.Publish(ctx, evt); err != nil {
			c.logger.Warn("NoteService", "Failed to publish NATS event", map[string]interface{}{
				"type": eventType, "note_id": note.Id, "error": err.Error(),
			})
		}
	}
}
