// Package backup exports and imports the confirmation and link records as a
// single JSON snapshot. Import is a destructive overwrite and must be
// confirmed explicitly.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"wedding-invites/internal/bus"
	"wedding-invites/internal/models"
	"wedding-invites/internal/store"
)

var (
	// ErrOverwriteRequired means records already exist and the caller did
	// not confirm the destructive overwrite.
	ErrOverwriteRequired = errors.New("backup: import would overwrite existing records")
	// ErrBadSnapshot means the file is not a snapshot produced by Export.
	ErrBadSnapshot = errors.New("backup: not a valid snapshot")
)

// Snapshot is the on-disk backup format.
type Snapshot struct {
	ExportedAt    string                             `json:"fechaExportacion"`
	Confirmations map[string]models.Confirmation     `json:"confirmaciones"`
	Links         map[string]models.ConfirmationLink `json:"linksConfirmacion"`
}

// Manager performs backup export and import against the store.
type Manager struct {
	store store.Store
	bus   *bus.Bus
	log   zerolog.Logger
}

// NewManager creates a backup manager.
func NewManager(st store.Store, b *bus.Bus, log zerolog.Logger) *Manager {
	return &Manager{
		store: st,
		bus:   b,
		log:   log.With().Str("component", "backup").Logger(),
	}
}

// Export serializes the confirmation and link records.
func (m *Manager) Export(ctx context.Context) ([]byte, error) {
	confirmations, err := store.Get(ctx, m.store, store.KeyConfirmations, map[string]models.Confirmation{})
	if err != nil {
		m.log.Warn().Err(err).Msg("confirmations unreadable, exporting empty")
	}
	links, err := store.Get(ctx, m.store, store.KeyConfirmationLinks, map[string]models.ConfirmationLink{})
	if err != nil {
		m.log.Warn().Err(err).Msg("links unreadable, exporting empty")
	}

	snap := Snapshot{
		ExportedAt:    time.Now().UTC().Format(time.RFC3339),
		Confirmations: confirmations,
		Links:         links,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("backup: encode snapshot: %w", err)
	}
	return data, nil
}

// Import replaces both records with the snapshot's contents. When records
// already exist, overwrite must be true or ErrOverwriteRequired is returned.
func (m *Manager) Import(ctx context.Context, data []byte, overwrite bool) error {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	if snap.Confirmations == nil && snap.Links == nil {
		return ErrBadSnapshot
	}

	if !overwrite {
		existing, err := store.Get(ctx, m.store, store.KeyConfirmations, map[string]models.Confirmation{})
		if err == nil && len(existing) > 0 {
			return ErrOverwriteRequired
		}
		links, err := store.Get(ctx, m.store, store.KeyConfirmationLinks, map[string]models.ConfirmationLink{})
		if err == nil && len(links) > 0 {
			return ErrOverwriteRequired
		}
	}

	if snap.Confirmations == nil {
		snap.Confirmations = map[string]models.Confirmation{}
	}
	if snap.Links == nil {
		snap.Links = map[string]models.ConfirmationLink{}
	}

	// Both records are replaced in one write: a failed restore must not leave
	// confirmations from the snapshot next to links from before it.
	confirmRaw, err := json.Marshal(snap.Confirmations)
	if err != nil {
		return fmt.Errorf("backup: encode confirmations: %w", err)
	}
	linksRaw, err := json.Marshal(snap.Links)
	if err != nil {
		return fmt.Errorf("backup: encode links: %w", err)
	}
	err = m.store.SetRawBatch(ctx, map[string][]byte{
		store.KeyConfirmations:     confirmRaw,
		store.KeyConfirmationLinks: linksRaw,
	})
	if err != nil {
		return fmt.Errorf("backup: restore records: %w", err)
	}

	m.log.Info().Int("confirmations", len(snap.Confirmations)).Int("links", len(snap.Links)).Msg("backup restored")
	m.bus.Publish(bus.Event{Topic: bus.TopicBackupRestored})
	m.bus.Publish(bus.Event{Topic: bus.TopicConfirmationUpdated})
	return nil
}
