package service

import (
	"context"
	"testing"

	"collab-notes-be/internal/dto"
	"collab-notes-be/internal/model"
	"collab-notes-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newNoteServiceFixture() (*syncFixture, INoteService) {
	f := newSyncFixture()
	factory := &fakeFactory{uow: &fakeUow{notes: f.notes, users: f.users}}
	svc := NewNoteService(factory, nil, f.broadcaster, nil, logger.NewNopLogger())
	return f, svc
}

func TestCreateNoteStartsAtVersionOne(t *testing.T) {
	f, svc := newNoteServiceFixture()

	res, err := svc.Create(context.Background(), f.userId, &dto.CreateNoteRequest{
		Title:   "Fresh",
		Content: "first draft",
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(1), res.Version)

	stored := f.notes.notes[res.Id]
	assert.Equal(t, f.orgId, stored.OrgId)
	assert.Equal(t, int64(1), stored.Version)
}

func TestShowNoteCrossTenantIsNotFound(t *testing.T) {
	f, svc := newNoteServiceFixture()

	outsider := uuid.New()
	outsiderUser := *f.users.users[f.userId]
	outsiderUser.Id = outsider
	outsiderUser.OrgId = uuid.New()
	f.users.users[outsider] = &outsiderUser

	_, err := svc.Show(context.Background(), outsider, f.noteId)
	assert.ErrorIs(t, err, ErrNoteNotFound)
}

func TestDeleteNoteRelaysForcedClose(t *testing.T) {
	f, svc := newNoteServiceFixture()

	err := svc.Delete(context.Background(), f.userId, f.noteId)
	assert.NoError(t, err)

	_, found := f.notes.notes[f.noteId]
	assert.False(t, found)

	assert.Len(t, f.broadcaster.envelopes, 1)
	env := f.broadcaster.envelopes[0]
	assert.Equal(t, model.EnvelopeDeleted, env.Kind)
	assert.Equal(t, f.noteId, env.NoteId)
	assert.Nil(t, env.Update)
}

func TestDeleteUnknownNote(t *testing.T) {
	f, svc := newNoteServiceFixture()

	err := svc.Delete(context.Background(), f.userId, uuid.New())
	assert.ErrorIs(t, err, ErrNoteNotFound)
	assert.Empty(t, f.broadcaster.envelopes)
}

func TestListScopedToTenant(t *testing.T) {
	f, svc := newNoteServiceFixture()

	items, err := svc.List(context.Background(), f.userId)
	assert.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, f.noteId, items[0].Id)
}
