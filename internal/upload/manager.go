package upload

import (
	"sort"
	"sync"
	"time"

	"github.com/attachdrop/backend/internal/models"
	"github.com/google/uuid"
)

// Tracker owns the progress table for in-flight reads.
// Entries are keyed by a per-read ID, so two files sharing a name never
// clobber each other.
type Tracker struct {
	entries map[string]*models.ProgressEntry
	mu      sync.RWMutex
}

// NewTracker creates an empty progress table.
func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[string]*models.ProgressEntry),
	}
}

// Start registers a new read at 0% and returns its ID.
func (t *Tracker) Start(fileName string) string {
	entry := &models.ProgressEntry{
		ID:        uuid.New().String(),
		FileName:  fileName,
		Percent:   0,
		StartedAt: time.Now(),
	}

	t.mu.Lock()
	t.entries[entry.ID] = entry
	t.mu.Unlock()

	return entry.ID
}

// Update records loaded/total for a read. Notifications without a known
// total are ignored. Returns the new percentage and whether it was applied.
func (t *Tracker) Update(id string, loaded, total int64) (float64, bool) {
	if total <= 0 {
		return 0, false
	}

	progress := float64(loaded) / float64(total) * 100
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[id]
	if !ok {
		return 0, false
	}
	entry.Percent = progress
	return progress, true
}

// Complete removes a finished read.
func (t *Tracker) Complete(id string) {
	t.remove(id)
}

// Fail removes a read that ended in error.
func (t *Tracker) Fail(id string) {
	t.remove(id)
}

func (t *Tracker) remove(id string) {
	t.mu.Lock()
	delete(t.entries, id)
	t.mu.Unlock()
}

// Get returns a copy of one entry.
func (t *Tracker) Get(id string) (models.ProgressEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.entries[id]
	if !ok {
		return models.ProgressEntry{}, false
	}
	return *entry, true
}

// Snapshot returns copies of all entries ordered by start time.
func (t *Tracker) Snapshot() []models.ProgressEntry {
	t.mu.RLock()
	out := make([]models.ProgressEntry, 0, len(t.entries))
	for _, entry := range t.entries {
		out = append(out, *entry)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Len returns the number of in-flight reads.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
