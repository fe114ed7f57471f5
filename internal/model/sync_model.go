package model

import (
	"time"

	"github.com/google/uuid"
)

// Wire message types for the note sync protocol. Every server frame carries a
// "type" tag; client frames carry only the patch payload. These are decoded
// once at the transport boundary and handled as a closed set.

const (
	MessageTypeInit   = "init"
	MessageTypeUpdate = "update"
	MessageTypeError  = "error"
)

// Error codes sent to clients.
const (
	ErrCodeVersionConflict = "version_conflict"
	ErrCodeInvalidPatch    = "invalid_patch"
	ErrCodeAccessDenied    = "access_denied"
	ErrCodeNoteNotFound    = "note_not_found"
	ErrCodeInternalError   = "internal_error"
)

// InitMessage is sent once per session, right after the upgrade.
type InitMessage struct {
	Type    string    `json:"type"`
	NoteId  uuid.UUID `json:"note_id"`
	Title   string    `json:"title"`
	Content string    `json:"content"`
	Version int64     `json:"version"`
}

// PatchMessage is the only client-to-server frame. Patch is a base64-encoded
// JSON object whose keys replace note fields wholesale.
type PatchMessage struct {
	Patch   *string `json:"patch"`
	Version *int64  `json:"version"`
}

// UpdateMessage is broadcast to every session of a note after an accepted
// patch, including the session that submitted it.
type UpdateMessage struct {
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Version   int64     `json:"version"`
	UserId    uuid.UUID `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorMessage reports protocol, conflict and internal errors to one session.
type ErrorMessage struct {
	Type           string `json:"type"`
	Code           string `json:"code"`
	Message        string `json:"message"`
	CurrentVersion *int64 `json:"current_version,omitempty"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{Type: MessageTypeError, Code: code, Message: message}
}

// Relay envelope kinds.
const (
	EnvelopeUpdate  = "update"
	EnvelopeDeleted = "deleted"
)

// RelayEnvelope is the payload published on the per-note relay channel.
// Delivery is at-least-once; sessions deduplicate on Update.Version.
type RelayEnvelope struct {
	NoteId uuid.UUID      `json:"note_id"`
	Kind   string         `json:"kind"`
	Update *UpdateMessage `json:"update,omitempty"`
}
