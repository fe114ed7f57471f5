package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"collab-notes-be/internal/model"
	"collab-notes-be/internal/pkg/logger"
	"collab-notes-be/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func newTestHub() *Hub {
	return NewHub(nil, memory.NewSnapshotCache(time.Minute), logger.NewNopLogger())
}

func newTestSession(noteId uuid.UUID, lastVersion int64, sendBuffer int) *Session {
	return &Session{
		noteId:      noteId,
		userId:      uuid.New(),
		logger:      logger.NewNopLogger(),
		send:        make(chan []byte, sendBuffer),
		resync:      make(chan struct{}, 1),
		done:        make(chan struct{}),
		lastVersion: lastVersion,
	}
}

func updateEnvelope(noteId uuid.UUID, version int64) *model.RelayEnvelope {
	return &model.RelayEnvelope{
		NoteId: noteId,
		Kind:   model.EnvelopeUpdate,
		Update: &model.UpdateMessage{
			Type:      model.MessageTypeUpdate,
			Title:     "t",
			Content:   "c",
			Version:   version,
			UserId:    uuid.New(),
			Timestamp: time.Now().UTC(),
		},
	}
}

func receivedFrames(s *Session) [][]byte {
	var frames [][]byte
	for {
		select {
		case f := <-s.send:
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func TestRegisterAndUnregister(t *testing.T) {
	hub := newTestHub()
	noteId := uuid.New()

	a := newTestSession(noteId, 1, 8)
	b := newTestSession(noteId, 1, 8)

	hub.Register(a)
	hub.Register(b)
	assert.Equal(t, 2, hub.LocalSessions(noteId))

	hub.Unregister(a)
	assert.Equal(t, 1, hub.LocalSessions(noteId))

	// Second unregister of the same session is a no-op
	hub.Unregister(a)
	assert.Equal(t, 1, hub.LocalSessions(noteId))

	hub.Unregister(b)
	assert.Equal(t, 0, hub.LocalSessions(noteId))
}

func TestUnregisterUnknownSession(t *testing.T) {
	hub := newTestHub()

	// Never registered; must not panic or disturb the registry
	hub.Unregister(newTestSession(uuid.New(), 1, 8))
}

func TestFanOutNoSessions(t *testing.T) {
	hub := newTestHub()
	hub.FanOut(updateEnvelope(uuid.New(), 2))
}

func TestFanOutDeliversToEverySessionOnce(t *testing.T) {
	hub := newTestHub()
	noteId := uuid.New()
	otherId := uuid.New()

	a := newTestSession(noteId, 1, 8)
	b := newTestSession(noteId, 1, 8)
	other := newTestSession(otherId, 1, 8)

	hub.Register(a)
	hub.Register(b)
	hub.Register(other)

	hub.FanOut(updateEnvelope(noteId, 2))

	for _, s := range []*Session{a, b} {
		frames := receivedFrames(s)
		assert.Len(t, frames, 1)

		var update model.UpdateMessage
		assert.NoError(t, json.Unmarshal(frames[0], &update))
		assert.Equal(t, model.MessageTypeUpdate, update.Type)
		assert.Equal(t, int64(2), update.Version)
	}

	// Sessions on other notes see nothing
	assert.Empty(t, receivedFrames(other))
}

func TestFanOutDropsSlowSession(t *testing.T) {
	hub := newTestHub()
	noteId := uuid.New()

	healthy := newTestSession(noteId, 1, 8)
	slow := newTestSession(noteId, 1, 1)
	slow.send <- []byte("stuck") // queue already full

	hub.Register(healthy)
	hub.Register(slow)

	hub.FanOut(updateEnvelope(noteId, 2))

	assert.Equal(t, 1, hub.LocalSessions(noteId))
	assert.Len(t, receivedFrames(healthy), 1)

	// The dropped session was shut down
	select {
	case <-slow.done:
	default:
		t.Fatal("slow session was not shut down")
	}
}

func TestRelaySubscriptionLifecycle(t *testing.T) {
	// Subscribe is lazy in go-redis, so the lifecycle is observable without a
	// live server.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer rdb.Close()

	hub := NewHub(rdb, memory.NewSnapshotCache(time.Minute), logger.NewNopLogger())
	noteId := uuid.New()

	a := newTestSession(noteId, 1, 8)
	b := newTestSession(noteId, 1, 8)

	// First session on the note opens the relay subscription
	hub.Register(a)
	assert.True(t, hub.subscribed(noteId))

	// Second session reuses it
	hub.Register(b)
	assert.True(t, hub.subscribed(noteId))

	// Not the last one out: subscription stays
	hub.Unregister(a)
	assert.True(t, hub.subscribed(noteId))

	// Last one out closes it
	hub.Unregister(b)
	assert.False(t, hub.subscribed(noteId))
}

func TestPublishWithoutRelayFansOutLocally(t *testing.T) {
	hub := newTestHub()
	noteId := uuid.New()

	s := newTestSession(noteId, 1, 8)
	hub.Register(s)

	err := hub.Publish(context.Background(), updateEnvelope(noteId, 2))
	assert.NoError(t, err)
	assert.Len(t, receivedFrames(s), 1)
}

func TestDeletedEnvelopeClosesSessions(t *testing.T) {
	hub := newTestHub()
	noteId := uuid.New()

	s := newTestSession(noteId, 1, 8)
	hub.Register(s)

	hub.FanOut(&model.RelayEnvelope{NoteId: noteId, Kind: model.EnvelopeDeleted})

	frames := receivedFrames(s)
	assert.Len(t, frames, 1)

	var errMsg model.ErrorMessage
	assert.NoError(t, json.Unmarshal(frames[0], &errMsg))
	assert.Equal(t, model.MessageTypeError, errMsg.Type)
	assert.Equal(t, model.ErrCodeNoteNotFound, errMsg.Code)

	select {
	case <-s.done:
	default:
		t.Fatal("session was not shut down on deletion")
	}
}
