package storage

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/attachdrop/backend/internal/models"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
)

// ErrNotFound is returned when an attachment ID is unknown.
var ErrNotFound = errors.New("attachment not found")

// Attachment is a descriptor held by the host for display.
type Attachment struct {
	ID      string    `json:"id" msgpack:"id"`
	AddedAt time.Time `json:"addedAt" msgpack:"added_at"`
	models.FileDescriptor
}

// Store defines the interface for the host-side attachment list.
type Store interface {
	Add(d models.FileDescriptor) (*Attachment, error)
	Get(id string) (*Attachment, error)
	List(limit int) ([]*Attachment, error)
	Delete(id string) error
	Len() int
}

// MemoryStore implements Store in process memory. Nothing survives a
// restart.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Attachment
	seq   map[string]int
	next  int
	limit int
}

// NewMemoryStore creates an empty, unbounded MemoryStore.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithLimit(0)
}

// NewMemoryStoreWithLimit creates a MemoryStore holding at most limit
// attachments. Adding past the limit evicts the oldest. limit <= 0 means no limit.
func NewMemoryStoreWithLimit(limit int) *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*Attachment),
		seq:   make(map[string]int),
		limit: limit,
	}
}

// Add stores a descriptor and returns the stored record.
func (s *MemoryStore) Add(d models.FileDescriptor) (*Attachment, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("adding %s: %w", d.Name, err)
	}

	a := &Attachment{
		ID:             uuid.New().String(),
		AddedAt:        time.Now(),
		FileDescriptor: d,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for s.limit > 0 && len(s.items) >= s.limit {
		s.evictOldestLocked()
	}
	s.items[a.ID] = a
	s.seq[a.ID] = s.next
	s.next++

	return a, nil
}

func (s *MemoryStore) evictOldestLocked() {
	oldest, oldestSeq := "", -1
	for id, n := range s.seq {
		if oldestSeq < 0 || n < oldestSeq {
			oldest, oldestSeq = id, n
		}
	}
	if oldest == "" {
		return
	}
	log.Infof("[Storage] Evicting attachment %s (%s), limit %d reached", oldest, s.items[oldest].Name, s.limit)
	delete(s.items, oldest)
	delete(s.seq, oldest)
}

// Get retrieves an attachment by ID.
func (s *MemoryStore) Get(id string) (*Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return a, nil
}

// List returns the most recently added attachments first. A limit of 0 or
// less returns everything.
func (s *MemoryStore) List(limit int) ([]*Attachment, error) {
	s.mu.RLock()
	list := make([]*Attachment, 0, len(s.items))
	for _, a := range s.items {
		list = append(list, a)
	}
	seq := make(map[string]int, len(s.seq))
	for id, n := range s.seq {
		seq[id] = n
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return seq[list[i].ID] > seq[list[j].ID]
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// Delete removes an attachment.
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.items, id)
	delete(s.seq, id)
	return nil
}

// Len returns the number of stored attachments.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Descriptors strips store metadata from a list.
func Descriptors(list []*Attachment) []models.FileDescriptor {
	out := make([]models.FileDescriptor, len(list))
	for i, a := range list {
		out[i] = a.FileDescriptor
	}
	return out
}
