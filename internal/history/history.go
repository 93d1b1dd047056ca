// Package history keeps the append-only log of send attempts. The original
// tool never pruned this list; here retention is explicit, with a
// configurable cap that drops the oldest entries on append.
package history

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"wedding-invites/internal/models"
	"wedding-invites/internal/store"
)

// Log appends and reads send records under the shared history key.
type Log struct {
	store store.Store
	limit int
	log   zerolog.Logger
}

// New creates a history log. A limit of zero keeps the list unbounded.
func New(st store.Store, limit int, log zerolog.Logger) *Log {
	return &Log{
		store: st,
		limit: limit,
		log:   log.With().Str("component", "history").Logger(),
	}
}

// Append records one send attempt. The entry id is time-ordered and the
// timestamp is filled in when absent.
func (l *Log) Append(ctx context.Context, rec models.SendRecord) (models.SendRecord, error) {
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}
	if rec.SentAt == "" {
		rec.SentAt = time.Now().UTC().Format(time.RFC3339)
	}

	err := store.Update(ctx, l.store, store.KeySendHistory, []models.SendRecord{},
		func(entries []models.SendRecord) ([]models.SendRecord, error) {
			entries = append(entries, rec)
			if l.limit > 0 && len(entries) > l.limit {
				dropped := len(entries) - l.limit
				entries = append([]models.SendRecord{}, entries[dropped:]...)
				l.log.Debug().Int("dropped", dropped).Msg("pruned send history")
			}
			return entries, nil
		})
	if err != nil {
		return models.SendRecord{}, err
	}
	return rec, nil
}

// All returns every retained entry, oldest first.
func (l *Log) All(ctx context.Context) ([]models.SendRecord, error) {
	entries, err := store.Get(ctx, l.store, store.KeySendHistory, []models.SendRecord{})
	if err != nil {
		l.log.Warn().Err(err).Msg("send history unreadable, returning empty")
		return []models.SendRecord{}, nil
	}
	return entries, nil
}

// ForGuest returns the retained entries for one guest, oldest first.
func (l *Log) ForGuest(ctx context.Context, guestID int) ([]models.SendRecord, error) {
	entries, err := l.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.SendRecord
	for _, e := range entries {
		if e.GuestID == guestID {
			out = append(out, e)
		}
	}
	return out, nil
}
