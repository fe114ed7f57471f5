package dto

import "github.com/google/uuid"

// NoteEventMessage travels on the in-process bus after a note mutation
// commits. Consumers forward it to NATS and maintain the snapshot cache.
type NoteEventMessage struct {
	Type    string    `json:"type"` // NOTE_CREATED | NOTE_PATCHED | NOTE_DELETED
	NoteId  uuid.UUID `json:"note_id"`
	UserId  uuid.UUID `json:"user_id"`
	Version int64     `json:"version"`
}
