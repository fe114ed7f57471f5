package service

import (
	"errors"
	"fmt"
)

var (
	ErrNoteNotFound = errors.New("note not found")
	ErrAccessDenied = errors.New("access denied")
)

// InvalidPatchError covers undecodable or malformed patch payloads. The
// session reports it and stays open.
type InvalidPatchError struct {
	Reason string
}

func (e *InvalidPatchError) Error() string {
	return fmt.Sprintf("invalid patch: %s", e.Reason)
}

// VersionConflictError rejects a patch whose claimed version does not match
// the note's current one. CurrentVersion lets the client resync without a
// reconnect.
type VersionConflictError struct {
	CurrentVersion int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict: current version is %d", e.CurrentVersion)
}
