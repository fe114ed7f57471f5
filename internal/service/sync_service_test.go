package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"collab-notes-be/internal/entity"
	"collab-notes-be/internal/model"
	"collab-notes-be/internal/pkg/logger"
	"collab-notes-be/internal/repository/contract"
	"collab-notes-be/internal/repository/memory"
	"collab-notes-be/internal/repository/specification"
	"collab-notes-be/internal/repository/unitofwork"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// In-memory repository fakes. FindOne honors the ByID specification; the
// versioned update mimics the store's compare-and-set semantics.

type fakeNoteRepo struct {
	notes     map[uuid.UUID]*entity.Note
	updateErr error
}

func (r *fakeNoteRepo) Create(_ context.Context, note *entity.Note) error {
	cp := *note
	r.notes[note.Id] = &cp
	return nil
}

func (r *fakeNoteRepo) UpdateVersioned(_ context.Context, note *entity.Note, expectedVersion int64) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	stored, ok := r.notes[note.Id]
	if !ok || stored.Version != expectedVersion {
		return contract.ErrStaleVersion
	}
	now := time.Now()
	stored.Title = note.Title
	stored.Content = note.Content
	stored.Version = expectedVersion + 1
	stored.UpdatedAt = &now
	note.Version = stored.Version
	return nil
}

func (r *fakeNoteRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.notes, id)
	return nil
}

func (r *fakeNoteRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.Note, error) {
	var id *uuid.UUID
	var orgId *uuid.UUID
	for _, s := range specs {
		switch spec := s.(type) {
		case specification.ByID:
			v := spec.ID
			id = &v
		case specification.OrgOwnedBy:
			v := spec.OrgID
			orgId = &v
		}
	}
	if id == nil {
		return nil, nil
	}
	n, found := r.notes[*id]
	if !found {
		return nil, nil
	}
	if orgId != nil && n.OrgId != *orgId {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (r *fakeNoteRepo) FindAll(_ context.Context, _ ...specification.Specification) ([]*entity.Note, error) {
	out := make([]*entity.Note, 0, len(r.notes))
	for _, n := range r.notes {
		cp := *n
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeNoteRepo) Count(_ context.Context, _ ...specification.Specification) (int64, error) {
	return int64(len(r.notes)), nil
}

type fakeUserRepo struct {
	users map[uuid.UUID]*entity.User
}

func (r *fakeUserRepo) Create(_ context.Context, user *entity.User) error {
	cp := *user
	r.users[user.Id] = &cp
	return nil
}

func (r *fakeUserRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.User, error) {
	for _, s := range specs {
		if byID, ok := s.(specification.ByID); ok {
			if u, found := r.users[byID.ID]; found {
				cp := *u
				return &cp, nil
			}
			return nil, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) Count(_ context.Context, _ ...specification.Specification) (int64, error) {
	return int64(len(r.users)), nil
}

type fakeOrgRepo struct{}

func (r *fakeOrgRepo) Create(_ context.Context, _ *entity.Organization) error { return nil }
func (r *fakeOrgRepo) FindOne(_ context.Context, _ ...specification.Specification) (*entity.Organization, error) {
	return nil, nil
}

type fakeUow struct {
	notes *fakeNoteRepo
	users *fakeUserRepo
}

func (u *fakeUow) Begin(_ context.Context) error { return nil }
func (u *fakeUow) Commit() error                 { return nil }
func (u *fakeUow) Rollback() error               { return nil }

func (u *fakeUow) UserRepository() contract.UserRepository                 { return u.users }
func (u *fakeUow) OrganizationRepository() contract.OrganizationRepository { return &fakeOrgRepo{} }
func (u *fakeUow) NoteRepository() contract.NoteRepository                 { return u.notes }

type fakeFactory struct {
	uow *fakeUow
}

func (f *fakeFactory) NewUnitOfWork(_ context.Context) unitofwork.UnitOfWork { return f.uow }

type recordingBroadcaster struct {
	envelopes []*model.RelayEnvelope
	err       error
}

func (b *recordingBroadcaster) Publish(_ context.Context, env *model.RelayEnvelope) error {
	if b.err != nil {
		return b.err
	}
	b.envelopes = append(b.envelopes, env)
	return nil
}

type syncFixture struct {
	svc         ISyncService
	notes       *fakeNoteRepo
	users       *fakeUserRepo
	snapshots   *memory.SnapshotCache
	broadcaster *recordingBroadcaster

	noteId uuid.UUID
	userId uuid.UUID
	orgId  uuid.UUID
}

func newSyncFixture() *syncFixture {
	f := &syncFixture{
		notes:       &fakeNoteRepo{notes: make(map[uuid.UUID]*entity.Note)},
		users:       &fakeUserRepo{users: make(map[uuid.UUID]*entity.User)},
		snapshots:   memory.NewSnapshotCache(time.Minute),
		broadcaster: &recordingBroadcaster{},
		noteId:      uuid.New(),
		userId:      uuid.New(),
		orgId:       uuid.New(),
	}

	f.notes.notes[f.noteId] = &entity.Note{
		Id:        f.noteId,
		OrgId:     f.orgId,
		UserId:    f.userId,
		Title:     "Draft",
		Content:   "original body",
		Version:   3,
		CreatedAt: time.Now(),
	}
	f.users.users[f.userId] = &entity.User{
		Id:    f.userId,
		OrgId: f.orgId,
		Email: "author@example.com",
	}

	factory := &fakeFactory{uow: &fakeUow{notes: f.notes, users: f.users}}
	f.svc = NewSyncService(factory, f.snapshots, f.broadcaster, nil, logger.NewNopLogger())
	return f
}

func patchMessage(raw string, version int64) *model.PatchMessage {
	encoded := encodePatch(raw)
	return &model.PatchMessage{Patch: &encoded, Version: &version}
}

func TestApplyPatchAcceptsMatchingVersion(t *testing.T) {
	f := newSyncFixture()

	update, err := f.svc.ApplyPatch(context.Background(), f.noteId, f.userId,
		patchMessage(`{"title":"Final","content":"new body"}`, 3))

	assert.NoError(t, err)
	assert.Equal(t, int64(4), update.Version)
	assert.Equal(t, "Final", update.Title)
	assert.Equal(t, "new body", update.Content)
	assert.Equal(t, f.userId, update.UserId)

	// Store committed the bump
	assert.Equal(t, int64(4), f.notes.notes[f.noteId].Version)

	// The accepted update went to the relay exactly once
	assert.Len(t, f.broadcaster.envelopes, 1)
	env := f.broadcaster.envelopes[0]
	assert.Equal(t, model.EnvelopeUpdate, env.Kind)
	assert.Equal(t, f.noteId, env.NoteId)
	assert.Equal(t, int64(4), env.Update.Version)
}

func TestApplyPatchVersionBumpsByExactlyOne(t *testing.T) {
	f := newSyncFixture()

	for i := 0; i < 5; i++ {
		version := f.notes.notes[f.noteId].Version
		update, err := f.svc.ApplyPatch(context.Background(), f.noteId, f.userId,
			patchMessage(`{"content":"rev"}`, version))
		assert.NoError(t, err)
		assert.Equal(t, version+1, update.Version)
	}
}

func TestApplyPatchStaleVersionConflict(t *testing.T) {
	f := newSyncFixture()

	_, err := f.svc.ApplyPatch(context.Background(), f.noteId, f.userId,
		patchMessage(`{"title":"late edit"}`, 2))

	var conflict *VersionConflictError
	assert.True(t, errors.As(err, &conflict))
	assert.Equal(t, int64(3), conflict.CurrentVersion)

	// Rejected patch leaves the note untouched and publishes nothing
	assert.Equal(t, "Draft", f.notes.notes[f.noteId].Title)
	assert.Empty(t, f.broadcaster.envelopes)
}

func TestApplyPatchFutureVersionConflict(t *testing.T) {
	f := newSyncFixture()

	_, err := f.svc.ApplyPatch(context.Background(), f.noteId, f.userId,
		patchMessage(`{"title":"time traveler"}`, 9))

	var conflict *VersionConflictError
	assert.True(t, errors.As(err, &conflict))
	assert.Equal(t, int64(3), conflict.CurrentVersion)
}

func TestApplyPatchRaceLosesAsConflict(t *testing.T) {
	f := newSyncFixture()

	// The gate passed but the CAS write finds a newer row, as when a rival
	// writer commits between the read and the update.
	f.notes.updateErr = contract.ErrStaleVersion

	_, err := f.svc.ApplyPatch(context.Background(), f.noteId, f.userId,
		patchMessage(`{"title":"racer"}`, 3))

	var conflict *VersionConflictError
	assert.True(t, errors.As(err, &conflict))
	assert.Empty(t, f.broadcaster.envelopes)
}

func TestApplyPatchMissingFields(t *testing.T) {
	f := newSyncFixture()

	_, err := f.svc.ApplyPatch(context.Background(), f.noteId, f.userId, &model.PatchMessage{})

	var invalid *InvalidPatchError
	assert.True(t, errors.As(err, &invalid))
}

func TestApplyPatchUnknownNote(t *testing.T) {
	f := newSyncFixture()

	_, err := f.svc.ApplyPatch(context.Background(), uuid.New(), f.userId,
		patchMessage(`{"title":"ghost"}`, 1))

	assert.ErrorIs(t, err, ErrNoteNotFound)
}

func TestApplyPatchSurvivesRelayOutage(t *testing.T) {
	f := newSyncFixture()
	f.broadcaster.err = errors.New("relay unreachable")

	update, err := f.svc.ApplyPatch(context.Background(), f.noteId, f.userId,
		patchMessage(`{"content":"still saved"}`, 3))

	// The write stands even though nothing was relayed
	assert.NoError(t, err)
	assert.Equal(t, int64(4), update.Version)
	assert.Equal(t, int64(4), f.notes.notes[f.noteId].Version)
}

func TestSnapshotReadsThroughToStore(t *testing.T) {
	f := newSyncFixture()

	init, err := f.svc.Snapshot(context.Background(), f.noteId)
	assert.NoError(t, err)
	assert.Equal(t, model.MessageTypeInit, init.Type)
	assert.Equal(t, "Draft", init.Title)
	assert.Equal(t, int64(3), init.Version)

	// Second read is served from cache
	cached, ok := f.snapshots.Get(f.noteId)
	assert.True(t, ok)
	assert.Equal(t, int64(3), cached.Version)
}

func TestSnapshotUnknownNote(t *testing.T) {
	f := newSyncFixture()

	_, err := f.svc.Snapshot(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNoteNotFound)
}

func TestCheckAccess(t *testing.T) {
	f := newSyncFixture()

	assert.NoError(t, f.svc.CheckAccess(context.Background(), f.userId, f.noteId))

	// Unknown user
	assert.ErrorIs(t, f.svc.CheckAccess(context.Background(), uuid.New(), f.noteId), ErrAccessDenied)

	// Unknown note
	assert.ErrorIs(t, f.svc.CheckAccess(context.Background(), f.userId, uuid.New()), ErrNoteNotFound)

	// User from another tenant
	outsider := uuid.New()
	f.users.users[outsider] = &entity.User{Id: outsider, OrgId: uuid.New()}
	assert.ErrorIs(t, f.svc.CheckAccess(context.Background(), outsider, f.noteId), ErrAccessDenied)
}
