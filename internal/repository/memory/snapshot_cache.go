package memory

import (
	"time"

	"collab-notes-be/internal/entity"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// SnapshotCache holds per-process note snapshots for the session init path.
// It is advisory only: the versioned write in the note repository is the
// authority, so a stale snapshot can never corrupt a commit.
type SnapshotCache struct {
	cache *cache.Cache
}

func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	c := cache.New(ttl, 10*time.Minute)
	return &SnapshotCache{
		cache: c,
	}
}

// Save caches a snapshot unless an equal-or-newer version is already cached.
// Writers race the relay loop here, so a commit's own Save can arrive after a
// later version was already applied; the version check keeps the cache
// monotonic.
func (r *SnapshotCache) Save(note *entity.Note) {
	if existing, ok := r.Get(note.Id); ok && existing.Version >= note.Version {
		return
	}
	r.cache.Set(note.Id.String(), note, cache.DefaultExpiration)
}

func (r *SnapshotCache) Get(noteID uuid.UUID) (*entity.Note, bool) {
	if x, found := r.cache.Get(noteID.String()); found {
		return x.(*entity.Note), true
	}
	return nil, false
}

func (r *SnapshotCache) Delete(noteID uuid.UUID) {
	r.cache.Delete(noteID.String())
}

// ApplyUpdate refreshes a cached snapshot from a relayed update. Entries not
// in the cache are left alone; the next reader will fault them in from the
// store. Older versions never overwrite newer ones.
func (r *SnapshotCache) ApplyUpdate(noteID uuid.UUID, title, content string, version int64, ts time.Time) {
	existing, ok := r.Get(noteID)
	if !ok || existing.Version >= version {
		return
	}
	updated := *existing
	updated.Title = title
	updated.Content = content
	updated.Version = version
	updated.UpdatedAt = &ts
	r.Save(&updated)
}
