package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Organization struct {
	Id        uuid.UUID
	Name      string
	Quota     json.RawMessage
	CreatedAt time.Time
}
