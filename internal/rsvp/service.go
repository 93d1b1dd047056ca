// Package rsvp handles attendance confirmations: per-guest submissions,
// manual submissions for respondents who could not be matched against the
// catalog, and the lazily minted per-guest confirmation links.
package rsvp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"wedding-invites/internal/bus"
	"wedding-invites/internal/models"
	"wedding-invites/internal/store"
)

// DefaultCompanionLimit bounds companion counts for manual submissions,
// where no guest record provides a limit.
const DefaultCompanionLimit = 5

// ErrNameRequired is returned when a manual submission has no name.
var ErrNameRequired = errors.New("rsvp: a name is required for manual confirmations")

// Service reads and writes confirmation records and notifies the bus after
// every write.
type Service struct {
	store   store.Store
	bus     *bus.Bus
	siteURL string
	log     zerolog.Logger
}

// NewService creates a confirmation service. siteURL is the public origin
// used when minting confirmation links.
func NewService(st store.Store, b *bus.Bus, siteURL string, log zerolog.Logger) *Service {
	return &Service{
		store:   st,
		bus:     b,
		siteURL: siteURL,
		log:     log.With().Str("component", "rsvp").Logger(),
	}
}

// Prefill returns the existing record for a guest so the form can be
// re-edited idempotently. The second return is false when no record exists;
// the default then carries the guest's companion limit as a starting value.
func (s *Service) Prefill(ctx context.Context, g models.Guest) (models.Confirmation, bool, error) {
	records, err := s.Confirmations(ctx)
	if err != nil {
		return models.Confirmation{}, false, err
	}
	if rec, ok := records[strconv.Itoa(g.ID)]; ok {
		return rec, true, nil
	}
	return models.Confirmation{
		Attending:  true,
		Companions: g.Companions,
		Name:       g.Name,
	}, false, nil
}

// Submit writes or overwrites the confirmation for a guest. Companion counts
// are clamped to [0, guest limit]. Returns the confirmation key and the
// stored record.
func (s *Service) Submit(ctx context.Context, g models.Guest, in models.Confirmation) (string, models.Confirmation, error) {
	key := strconv.Itoa(g.ID)
	in.Name = g.Name
	in.Manual = false
	return s.write(ctx, key, g.ID, in, g.Companions)
}

// SubmitManual writes a confirmation for a respondent who could not be
// matched against the catalog. A time-based key is synthesized and the record
// is flagged as manual. The submitter name is required.
func (s *Service) SubmitManual(ctx context.Context, name string, in models.Confirmation) (string, models.Confirmation, error) {
	if name == "" {
		return "", models.Confirmation{}, ErrNameRequired
	}
	key := "manual-" + ulid.Make().String()
	in.Name = name
	in.Manual = true
	return s.write(ctx, key, 0, in, DefaultCompanionLimit)
}

func (s *Service) write(ctx context.Context, key string, guestID int, in models.Confirmation, limit int) (string, models.Confirmation, error) {
	in.Companions = Clamp(in.Companions, limit)
	in.ConfirmedAt = time.Now().UTC().Format(time.RFC3339)

	err := store.Update(ctx, s.store, store.KeyConfirmations, map[string]models.Confirmation{},
		func(records map[string]models.Confirmation) (map[string]models.Confirmation, error) {
			records[key] = in
			return records, nil
		})
	if err != nil {
		return "", models.Confirmation{}, fmt.Errorf("rsvp: store confirmation: %w", err)
	}

	s.log.Info().Str("key", key).Bool("attending", in.Attending).Int("companions", in.Companions).Msg("confirmation stored")
	s.bus.Publish(bus.Event{Topic: bus.TopicConfirmationUpdated, GuestID: guestID, Key: key})
	return key, in, nil
}

// Clamp bounds a companion count to [0, limit].
func Clamp(n, limit int) int {
	if n < 0 {
		return 0
	}
	if n > limit {
		return limit
	}
	return n
}

// Confirmations returns every stored record keyed by confirmation key.
func (s *Service) Confirmations(ctx context.Context) (map[string]models.Confirmation, error) {
	records, err := store.Get(ctx, s.store, store.KeyConfirmations, map[string]models.Confirmation{})
	if err != nil {
		s.log.Warn().Err(err).Msg("confirmations unreadable, returning empty")
		return map[string]models.Confirmation{}, nil
	}
	return records, nil
}

// Summary aggregates the confirmed-guests list view: attending records plus
// the headcount including companions.
type Summary struct {
	Records    map[string]models.Confirmation `json:"confirmaciones"`
	Attending  int                            `json:"asistentes"`
	Companions int                            `json:"acompanantes"`
	Total      int                            `json:"total"`
}

// Confirmed returns the attending subset with totals.
func (s *Service) Confirmed(ctx context.Context) (Summary, error) {
	records, err := s.Confirmations(ctx)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{Records: make(map[string]models.Confirmation)}
	for key, rec := range records {
		if !rec.Attending {
			continue
		}
		sum.Records[key] = rec
		sum.Attending++
		sum.Companions += rec.Companions
	}
	sum.Total = sum.Attending + sum.Companions
	return sum, nil
}

// PendingCount reports how many confirmations exist, for the notifications
// indicator.
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	records, err := s.Confirmations(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}
