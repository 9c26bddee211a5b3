package upload

import (
	"sync"

	"github.com/attachdrop/backend/internal/models"
)

// EventType names an ingestion event pushed to listeners.
type EventType string

const (
	EventStarted  EventType = "started"
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is a single ingestion notification. Complete events carry the
// descriptor metadata but never the encoded content.
type Event struct {
	Type         EventType           `json:"type"`
	ReadID       string              `json:"readId,omitempty"`
	FileName     string              `json:"fileName"`
	Percent      float64             `json:"percent"`
	SemanticType models.SemanticType `json:"fileType,omitempty"`
	SizeBytes    int64               `json:"fileSize,omitempty"`
	Error        *models.IngestError `json:"error,omitempty"`
	Timestamp    int64               `json:"timestamp"`
}

// Publisher receives ingestion events.
type Publisher interface {
	Publish(ev Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// Broker fans events out to subscribers. Slow subscribers lose events
// instead of stalling reads.
type Broker struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	buffer int
}

// NewBroker creates a broker whose subscriber channels hold buffer events.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 64
	}
	return &Broker{
		subs:   make(map[int]chan Event),
		buffer: buffer,
	}
}

// Subscribe returns an event channel and a cancel func that closes it.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish implements Publisher.
func (b *Broker) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the current subscriber count.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
