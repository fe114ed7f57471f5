package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"collab-notes-be/internal/model"
	"collab-notes-be/internal/pkg/logger"
	"collab-notes-be/internal/service"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Patches carry full field replacements, so frames can be document-sized.
	maxMessageSize = 1 << 20

	applyTimeout = 10 * time.Second
)

// Session is one client's live connection to one note. The read pump drives
// the patch loop, the write pump drains the bounded send queue; neither ever
// blocks the other. lastVersion orders deliveries: duplicates are dropped,
// gaps trigger a snapshot resync.
type Session struct {
	hub    *Hub
	conn   *websocket.Conn
	noteId uuid.UUID
	userId uuid.UUID
	svc    service.ISyncService
	logger logger.ILogger

	send   chan []byte
	resync chan struct{}
	done   chan struct{}

	closeOnce sync.Once

	mu          sync.Mutex
	lastVersion int64
}

// ServeSession runs the session protocol: snapshot init, then the patch /
// fan-out loop until the connection dies. Registry cleanup runs on every exit
// path.
func ServeSession(hub *Hub, conn *websocket.Conn, noteId, userId uuid.UUID, syncService service.ISyncService, log logger.ILogger, sendBuffer int) {
	s := &Session{
		hub:    hub,
		conn:   conn,
		noteId: noteId,
		userId: userId,
		svc:    syncService,
		logger: log,
		send:   make(chan []byte, sendBuffer),
		resync: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	hub.Register(s)
	defer func() {
		hub.Unregister(s)
		s.shutdown()
		s.conn.Close()
	}()

	// Syncing: the session starts from the current snapshot. Updates racing
	// this read arrive with version snapshot+1 and chain cleanly.
	ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
	init, err := s.svc.Snapshot(ctx, noteId)
	cancel()
	if err != nil {
		s.logger.Error("Session", "Snapshot failed on connect", map[string]interface{}{
			"note_id": noteId, "error": err.Error(),
		})
		frame, _ := json.Marshal(errorFor(err))
		s.conn.WriteMessage(websocket.TextMessage, frame)
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, ""))
		return
	}

	s.setLastVersion(init.Version)
	frame, _ := json.Marshal(init)
	if !s.trySend(frame) {
		return
	}

	go s.writePump()
	s.readPump()
}

func (s *Session) setLastVersion(v int64) {
	s.mu.Lock()
	s.lastVersion = v
	s.mu.Unlock()
}

func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// trySend enqueues without blocking. A full queue means the client cannot
// keep up and is treated as disconnected by the caller.
func (s *Session) trySend(frame []byte) bool {
	select {
	case <-s.done:
		return true
	case s.send <- frame:
		return true
	default:
		return false
	}
}

func (s *Session) sendError(msg *model.ErrorMessage) {
	frame, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if !s.trySend(frame) {
		s.shutdown()
	}
}

// deliver hands a relay envelope to this session. Returns false when the
// session's queue overflowed and it should be torn down.
func (s *Session) deliver(env *model.RelayEnvelope) bool {
	if env.Kind == model.EnvelopeDeleted {
		frame, _ := json.Marshal(model.NewErrorMessage(model.ErrCodeNoteNotFound, "note was deleted"))
		s.trySend(frame)
		s.shutdown()
		return true
	}
	if env.Update == nil {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case env.Update.Version <= s.lastVersion:
		// Duplicate delivery; the relay is at-least-once.
		return true
	case env.Update.Version == s.lastVersion+1:
		frame, err := json.Marshal(env.Update)
		if err != nil {
			return true
		}
		if !s.trySend(frame) {
			return false
		}
		s.lastVersion = env.Update.Version
		return true
	default:
		// Versions skipped: don't trust a reordered relay, re-read the
		// snapshot instead.
		select {
		case s.resync <- struct{}{}:
		default:
		}
		return true
	}
}

// readPump pumps patch messages from the client into the sync service.
func (s *Session) readPump() {
	defer func() {
		s.shutdown()
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn("Session", "Read error", map[string]interface{}{
					"note_id": s.noteId, "user_id": s.userId, "error": err.Error(),
				})
			}
			return
		}

		var msg model.PatchMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendError(model.NewErrorMessage(model.ErrCodeInvalidPatch, "payload must be a JSON patch message"))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
		_, err = s.svc.ApplyPatch(ctx, s.noteId, s.userId, &msg)
		cancel()
		if err != nil {
			// The session survives everything but transport failure; the
			// confirmation for accepted patches arrives via fan-out, same as
			// for every other client.
			s.sendError(errorFor(err))
			continue
		}
	}
}

// writePump pumps queued frames to the client and serves resync requests.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := s.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(frame)
			if err := w.Close(); err != nil {
				return
			}

		case <-s.resync:
			if !s.doResync() {
				return
			}

		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) doResync() bool {
	ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
	init, err := s.svc.Snapshot(ctx, s.noteId)
	cancel()
	if err != nil {
		if errors.Is(err, service.ErrNoteNotFound) {
			frame, _ := json.Marshal(model.NewErrorMessage(model.ErrCodeNoteNotFound, "note no longer exists"))
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.TextMessage, frame)
			return false
		}
		s.logger.Warn("Session", "Resync failed", map[string]interface{}{
			"note_id": s.noteId, "error": err.Error(),
		})
		return true
	}

	s.setLastVersion(init.Version)
	frame, err := json.Marshal(init)
	if err != nil {
		return true
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return false
	}
	return true
}

// errorFor maps service errors onto wire error frames.
func errorFor(err error) *model.ErrorMessage {
	var conflict *service.VersionConflictError
	if errors.As(err, &conflict) {
		msg := model.NewErrorMessage(model.ErrCodeVersionConflict, "note version mismatch")
		current := conflict.CurrentVersion
		msg.CurrentVersion = &current
		return msg
	}

	var invalid *service.InvalidPatchError
	if errors.As(err, &invalid) {
		return model.NewErrorMessage(model.ErrCodeInvalidPatch, invalid.Reason)
	}

	switch {
	case errors.Is(err, service.ErrNoteNotFound):
		return model.NewErrorMessage(model.ErrCodeNoteNotFound, "note not found")
	case errors.Is(err, service.ErrAccessDenied):
		return model.NewErrorMessage(model.ErrCodeAccessDenied, "access denied")
	default:
		return model.NewErrorMessage(model.ErrCodeInternalError, "internal error")
	}
}
