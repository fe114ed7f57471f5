package memory

import (
	"testing"
	"time"

	"collab-notes-be/internal/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func seededCache(version int64) (*SnapshotCache, uuid.UUID) {
	c := NewSnapshotCache(time.Minute)
	id := uuid.New()
	c.Save(&entity.Note{
		Id:      id,
		Title:   "cached",
		Content: "body",
		Version: version,
	})
	return c, id
}

func TestSaveAndGet(t *testing.T) {
	c, id := seededCache(2)

	note, ok := c.Get(id)
	assert.True(t, ok)
	assert.Equal(t, int64(2), note.Version)

	_, ok = c.Get(uuid.New())
	assert.False(t, ok)
}

func TestDeleteEvicts(t *testing.T) {
	c, id := seededCache(2)
	c.Delete(id)

	_, ok := c.Get(id)
	assert.False(t, ok)
}

func TestApplyUpdateRefreshesNewerVersion(t *testing.T) {
	c, id := seededCache(2)

	c.ApplyUpdate(id, "edited", "new body", 3, time.Now())

	note, _ := c.Get(id)
	assert.Equal(t, int64(3), note.Version)
	assert.Equal(t, "edited", note.Title)
}

func TestApplyUpdateIgnoresOlderVersion(t *testing.T) {
	c, id := seededCache(5)

	c.ApplyUpdate(id, "stale", "stale body", 3, time.Now())

	note, _ := c.Get(id)
	assert.Equal(t, int64(5), note.Version)
	assert.Equal(t, "cached", note.Title)
}

func TestSaveNeverRegressesVersion(t *testing.T) {
	c, id := seededCache(2)

	// A relayed commit from another replica lands first
	c.ApplyUpdate(id, "newer", "newer body", 6, time.Now())

	// The local writer's own save for an older commit arrives late
	c.Save(&entity.Note{
		Id:      id,
		Title:   "older",
		Content: "older body",
		Version: 5,
	})

	note, _ := c.Get(id)
	assert.Equal(t, int64(6), note.Version)
	assert.Equal(t, "newer", note.Title)
}

func TestSaveAcceptsNewerVersion(t *testing.T) {
	c, id := seededCache(2)

	c.Save(&entity.Note{Id: id, Title: "v3", Content: "b", Version: 3})

	note, _ := c.Get(id)
	assert.Equal(t, int64(3), note.Version)
}

func TestApplyUpdateSkipsUncachedNotes(t *testing.T) {
	c := NewSnapshotCache(time.Minute)
	id := uuid.New()

	// A miss stays a miss; the next reader faults in from the store
	c.ApplyUpdate(id, "t", "c", 3, time.Now())

	_, ok := c.Get(id)
	assert.False(t, ok)
}
