// Package catalog loads the static guest source, flattens its group
// structure and layers locally stored state (contact overrides, send status,
// confirmations) on top. The source file is the only stable identity: it is
// never mutated, only shadowed.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"wedding-invites/internal/models"
	"wedding-invites/internal/store"
)

var (
	// ErrBadShape means the source document does not contain the expected
	// grupos array. Fatal to the caller's view, not to the process.
	ErrBadShape = errors.New("catalog: source is missing the grupos array")
	// ErrGuestNotFound is returned when an id has no catalog entry.
	ErrGuestNotFound = errors.New("catalog: guest not found")
)

// Loader fetches and flattens the guest source on every call. There is no
// caching across calls; each consumer re-reads independently.
type Loader struct {
	source string
	client *http.Client
	store  store.Store
	log    zerolog.Logger
}

// NewLoader creates a loader for the given source, which is either an HTTP
// URL or a local file path.
func NewLoader(source string, st store.Store, log zerolog.Logger) *Loader {
	return &Loader{
		source: source,
		client: &http.Client{},
		store:  st,
		log:    log.With().Str("component", "catalog").Logger(),
	}
}

// Load fetches the source, validates its shape and returns the flattened
// guest list with local state merged in.
func (l *Loader) Load(ctx context.Context) ([]models.Guest, error) {
	raw, err := l.fetch(ctx)
	if err != nil {
		return nil, err
	}

	var cat models.Catalog
	if err := json.Unmarshal(raw, &cat); err != nil {
		return nil, fmt.Errorf("catalog: decode source: %w", err)
	}
	if cat.Groups == nil {
		return nil, ErrBadShape
	}

	guests := Flatten(cat)

	overrides, err := store.Get(ctx, l.store, store.KeyContactOverrides, map[string]models.ContactOverride{})
	if err != nil {
		l.log.Warn().Err(err).Msg("contact overrides unreadable, using source values")
	}
	sent, err := store.Get(ctx, l.store, store.KeySendStatus, map[string]bool{})
	if err != nil {
		l.log.Warn().Err(err).Msg("send status unreadable, defaulting to not sent")
	}
	confirmations, err := store.Get(ctx, l.store, store.KeyConfirmations, map[string]models.Confirmation{})
	if err != nil {
		l.log.Warn().Err(err).Msg("confirmations unreadable, defaulting to unconfirmed")
	}

	for i := range guests {
		key := strconv.Itoa(guests[i].ID)
		guests[i] = Resolve(guests[i], overrides[key])
		guests[i].Sent = sent[key]
		guests[i].Confirmed = confirmations[key].Attending
	}
	return guests, nil
}

// Get returns a single guest by id.
func (l *Loader) Get(ctx context.Context, id int) (models.Guest, error) {
	guests, err := l.Load(ctx)
	if err != nil {
		return models.Guest{}, err
	}
	for _, g := range guests {
		if g.ID == id {
			return g, nil
		}
	}
	return models.Guest{}, fmt.Errorf("%w: %d", ErrGuestNotFound, id)
}

func (l *Loader) fetch(ctx context.Context) ([]byte, error) {
	if strings.HasPrefix(l.source, "http://") || strings.HasPrefix(l.source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.source, nil)
		if err != nil {
			return nil, fmt.Errorf("catalog: build request: %w", err)
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("catalog: fetch source: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("catalog: fetch source: unexpected status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}

	raw, err := os.ReadFile(l.source)
	if err != nil {
		return nil, fmt.Errorf("catalog: read source: %w", err)
	}
	return raw, nil
}

// Flatten turns the nested group structure into a flat guest list, tagging
// each guest with its originating group.
func Flatten(cat models.Catalog) []models.Guest {
	var guests []models.Guest
	for _, grp := range cat.Groups {
		for _, src := range grp.Guests {
			phone := src.Contact.Phone
			if phone == "" {
				phone = src.Contact.WhatsApp
			}
			guests = append(guests, models.Guest{
				ID:         src.ID,
				Name:       src.Name,
				Phone:      phone,
				Email:      src.Contact.Email,
				Companions: src.Companions,
				GroupID:    grp.ID,
				GroupName:  grp.Name,
			})
		}
	}
	return guests
}

// Resolve layers a contact override over a source guest. It is total and
// side-effect-free: a nil override field leaves the source value untouched.
func Resolve(g models.Guest, o models.ContactOverride) models.Guest {
	if o.Phone != nil {
		g.Phone = *o.Phone
	}
	if o.Email != nil {
		g.Email = *o.Email
	}
	return g
}
