package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"collab-notes-be/internal/model"
	"collab-notes-be/internal/pkg/logger"
	"collab-notes-be/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// noteChannel is the per-note relay channel name.
func noteChannel(noteId uuid.UUID) string {
	return "note:" + noteId.String()
}

// Hub tracks which sessions on this replica are attached to which note and
// bridges them to the cross-replica relay. The first session on a note opens
// the note's relay subscription; the last one out closes it.
//
// All deliveries, including to the session that originated an update, flow
// through the relay and FanOut. There is no local shortcut, so every client
// observes the same ordering.
type Hub struct {
	rdb       *redis.Client
	snapshots *memory.SnapshotCache
	logger    logger.ILogger

	mu       sync.RWMutex
	sessions map[uuid.UUID]map[*Session]struct{}
	subs     map[uuid.UUID]*redis.PubSub
}

// NewHub builds the registry. rdb may be nil, in which case updates stay
// local to this replica.
func NewHub(rdb *redis.Client, snapshots *memory.SnapshotCache, log logger.ILogger) *Hub {
	return &Hub{
		rdb:       rdb,
		snapshots: snapshots,
		logger:    log,
		sessions:  make(map[uuid.UUID]map[*Session]struct{}),
		subs:      make(map[uuid.UUID]*redis.PubSub),
	}
}

// Register attaches a session to its note and opens the relay subscription if
// this is the note's first local session.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.sessions[s.noteId]
	if !ok {
		set = make(map[*Session]struct{})
		h.sessions[s.noteId] = set
	}
	set[s] = struct{}{}

	if !ok && h.rdb != nil {
		sub := h.rdb.Subscribe(context.Background(), noteChannel(s.noteId))
		h.subs[s.noteId] = sub
		go h.relayLoop(s.noteId, sub)
	}

	h.logger.Info("Hub", "Session registered", map[string]interface{}{
		"note_id": s.noteId, "user_id": s.userId, "local_sessions": len(set),
	})
}

// Unregister detaches a session. Safe to call more than once and for
// sessions that were never registered.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(s)
}

func (h *Hub) removeLocked(s *Session) {
	set, ok := h.sessions[s.noteId]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	s.shutdown()

	if len(set) == 0 {
		delete(h.sessions, s.noteId)
		if sub, ok := h.subs[s.noteId]; ok {
			delete(h.subs, s.noteId)
			sub.Close()
		}
	}

	h.logger.Info("Hub", "Session unregistered", map[string]interface{}{
		"note_id": s.noteId, "user_id": s.userId, "local_sessions": len(set),
	})
}

// Publish puts an envelope on the note's relay channel. When the relay is
// unavailable the envelope is fanned out to local sessions directly, so
// clients on this replica keep seeing updates during an outage.
func (h *Hub) Publish(ctx context.Context, env *model.RelayEnvelope) error {
	if h.rdb == nil {
		h.FanOut(env)
		return nil
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}

	if err := h.rdb.Publish(ctx, noteChannel(env.NoteId), payload).Err(); err != nil {
		h.logger.Warn("Hub", "Relay publish failed, falling back to local fan-out", map[string]interface{}{
			"note_id": env.NoteId, "error": err.Error(),
		})
		h.FanOut(env)
		return nil
	}

	return nil
}

// FanOut delivers an envelope to every local session on the note. Sessions
// whose queues are full are dropped from the registry; a client that cannot
// drain its queue reconnects and resyncs instead of stalling everyone else.
func (h *Hub) FanOut(env *model.RelayEnvelope) {
	h.mu.RLock()
	set := h.sessions[env.NoteId]
	targets := make([]*Session, 0, len(set))
	for s := range set {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	var stalled []*Session
	for _, s := range targets {
		if !s.deliver(env) {
			stalled = append(stalled, s)
		}
	}

	if len(stalled) > 0 {
		h.mu.Lock()
		for _, s := range stalled {
			h.logger.Warn("Hub", "Dropping slow session", map[string]interface{}{
				"note_id": s.noteId, "user_id": s.userId,
			})
			h.removeLocked(s)
		}
		h.mu.Unlock()
	}
}

// LocalSessions reports how many sessions this replica holds for a note.
func (h *Hub) LocalSessions(noteId uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[noteId])
}

// subscribed reports whether the note's relay subscription is open.
func (h *Hub) subscribed(noteId uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.subs[noteId]
	return ok
}

// relayLoop drains one note's relay subscription until it is closed. Relayed
// updates also refresh the local snapshot cache so resyncs on this replica
// read current data without a store round trip.
func (h *Hub) relayLoop(noteId uuid.UUID, sub *redis.PubSub) {
	for msg := range sub.Channel() {
		var env model.RelayEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			h.logger.Error("Hub", "Malformed relay payload", map[string]interface{}{
				"note_id": noteId, "error": err.Error(),
			})
			continue
		}

		switch env.Kind {
		case model.EnvelopeUpdate:
			if env.Update != nil {
				h.snapshots.ApplyUpdate(noteId, env.Update.Title, env.Update.Content, env.Update.Version, env.Update.Timestamp)
			}
		case model.EnvelopeDeleted:
			h.snapshots.Delete(noteId)
		}

		h.FanOut(&env)
	}
}
