// Package bus is the in-process publish/subscribe channel that keeps
// independently running views consistent after a store write. Subscribers
// register explicitly and must release their subscription when done;
// delivery is best-effort and carries no sequence numbers, so listeners are
// expected to be idempotent.
package bus

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Topic names an event kind. Values match the record they announce.
type Topic string

const (
	TopicConfirmationUpdated Topic = "confirmacionActualizada"
	TopicSendStatusChanged   Topic = "estadoEnvioActualizado"
	TopicContactEdited       Topic = "contactoEditado"
	TopicBackupRestored      Topic = "backupRestaurado"
)

// Event carries enough payload for a listener to patch its in-memory state
// without re-reading the whole store. GuestID is zero and Key empty when the
// event is not about a single guest.
type Event struct {
	Topic   Topic     `json:"evento"`
	GuestID int       `json:"invitadoId,omitempty"`
	Key     string    `json:"clave,omitempty"`
	At      time.Time `json:"fecha"`
}

type subscriber struct {
	ch chan Event
}

// Bus fans events out to all current subscribers. Publishing never blocks:
// a subscriber whose buffer is full misses the event, which listeners must
// tolerate by re-reading the store on their next turn.
type Bus struct {
	log zerolog.Logger

	mu   sync.RWMutex
	subs map[int]*subscriber
	next int
}

// New constructs a Bus instance.
func New(log zerolog.Logger) *Bus {
	return &Bus{
		log:  log.With().Str("component", "bus").Logger(),
		subs: make(map[int]*subscriber),
	}
}

// Subscribe registers a listener with the given channel buffer and returns
// the event channel plus a release function. The release function must be
// called when the listener goes away; it closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}

	b.mu.Lock()
	id := b.next
	b.next++
	sub := &subscriber{ch: make(chan Event, buffer)}
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, release
}

// Publish delivers evt to every current subscriber without blocking.
func (b *Bus) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, sub := range b.subs {
		select {
		case sub.ch <- evt:
		default:
			b.log.Debug().Int("subscriber", id).Str("topic", string(evt.Topic)).Msg("dropping event, buffer full")
		}
	}
}

// Subscribers returns the current listener count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
