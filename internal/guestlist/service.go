// Package guestlist implements the list views over the guest catalog:
// filtering, stable sorting, pagination, inline contact editing with restore,
// the per-guest sent toggle and the CSV/TXT exports.
package guestlist

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"wedding-invites/internal/bus"
	"wedding-invites/internal/catalog"
	"wedding-invites/internal/models"
	"wedding-invites/internal/store"
)

// Filter narrows the guest list. Zero values match everything.
type Filter struct {
	Group     string // group name, exact match
	Sent      *bool
	Confirmed *bool
	Query     string // case-insensitive match on name, phone or email
}

// Sort orders the list by one field, with a stable tie-break: equal keys
// preserve their prior relative order.
type Sort struct {
	Field string // nombre, grupo, telefono, email, acompanantes
	Desc  bool
}

// Page selects a 1-indexed slice of fixed size.
type Page struct {
	Number int
	Size   int
}

// Result is one rendered page plus the totals the view needs for its pager.
type Result struct {
	Guests []models.Guest `json:"invitados"`
	Total  int            `json:"total"`
	Page   int            `json:"pagina"`
	Pages  int            `json:"paginas"`
}

// Service renders list views. Every call re-loads the catalog; there is no
// caching between calls.
type Service struct {
	loader *catalog.Loader
	store  store.Store
	bus    *bus.Bus
	log    zerolog.Logger
}

// NewService creates a list view service.
func NewService(loader *catalog.Loader, st store.Store, b *bus.Bus, log zerolog.Logger) *Service {
	return &Service{
		loader: loader,
		store:  st,
		bus:    b,
		log:    log.With().Str("component", "guestlist").Logger(),
	}
}

// List loads the catalog and applies filter, sort and pagination.
func (s *Service) List(ctx context.Context, f Filter, srt Sort, page Page) (Result, error) {
	guests, err := s.loader.Load(ctx)
	if err != nil {
		return Result{}, err
	}
	guests = Apply(guests, f, srt)
	return paginate(guests, page), nil
}

// Filtered loads the catalog and applies filter and sort without paging,
// for the exports.
func (s *Service) Filtered(ctx context.Context, f Filter, srt Sort) ([]models.Guest, error) {
	guests, err := s.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	return Apply(guests, f, srt), nil
}

// Apply filters and sorts a guest slice in a pure fashion.
func Apply(guests []models.Guest, f Filter, srt Sort) []models.Guest {
	out := make([]models.Guest, 0, len(guests))
	query := strings.ToLower(strings.TrimSpace(f.Query))
	for _, g := range guests {
		if f.Group != "" && g.GroupName != f.Group {
			continue
		}
		if f.Sent != nil && g.Sent != *f.Sent {
			continue
		}
		if f.Confirmed != nil && g.Confirmed != *f.Confirmed {
			continue
		}
		if query != "" && !matches(g, query) {
			continue
		}
		out = append(out, g)
	}

	if srt.Field != "" {
		sort.SliceStable(out, func(i, j int) bool {
			less := compare(out[i], out[j], srt.Field)
			if srt.Desc {
				return !less && compare(out[j], out[i], srt.Field)
			}
			return less
		})
	}
	return out
}

func matches(g models.Guest, query string) bool {
	return strings.Contains(strings.ToLower(g.Name), query) ||
		strings.Contains(strings.ToLower(g.Phone), query) ||
		strings.Contains(strings.ToLower(g.Email), query)
}

func compare(a, b models.Guest, field string) bool {
	switch field {
	case "grupo":
		return a.GroupName < b.GroupName
	case "telefono":
		return a.Phone < b.Phone
	case "email":
		return a.Email < b.Email
	case "acompanantes":
		return a.Companions < b.Companions
	default:
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	}
}

func paginate(guests []models.Guest, page Page) Result {
	if page.Size <= 0 {
		page.Size = 10
	}
	if page.Number <= 0 {
		page.Number = 1
	}

	total := len(guests)
	pages := (total + page.Size - 1) / page.Size
	if pages == 0 {
		pages = 1
	}
	if page.Number > pages {
		page.Number = pages
	}

	start := (page.Number - 1) * page.Size
	end := start + page.Size
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return Result{
		Guests: guests[start:end],
		Total:  total,
		Page:   page.Number,
		Pages:  pages,
	}
}

// ToggleSent flips the guest's sent flag and returns the new value.
func (s *Service) ToggleSent(ctx context.Context, guestID int) (bool, error) {
	key := strconv.Itoa(guestID)
	var now bool
	err := store.Update(ctx, s.store, store.KeySendStatus, map[string]bool{},
		func(status map[string]bool) (map[string]bool, error) {
			now = !status[key]
			status[key] = now
			return status, nil
		})
	if err != nil {
		return false, fmt.Errorf("guestlist: toggle sent: %w", err)
	}
	s.bus.Publish(bus.Event{Topic: bus.TopicSendStatusChanged, GuestID: guestID, Key: key})
	return now, nil
}

// MarkSent forces the guest's sent flag on, for the wizard completions.
func (s *Service) MarkSent(ctx context.Context, guestID int) error {
	key := strconv.Itoa(guestID)
	err := store.Update(ctx, s.store, store.KeySendStatus, map[string]bool{},
		func(status map[string]bool) (map[string]bool, error) {
			status[key] = true
			return status, nil
		})
	if err != nil {
		return fmt.Errorf("guestlist: mark sent: %w", err)
	}
	s.bus.Publish(bus.Event{Topic: bus.TopicSendStatusChanged, GuestID: guestID, Key: key})
	return nil
}

// EditContact shadows the guest's phone and/or email with new values. A nil
// argument leaves that field's current state untouched.
func (s *Service) EditContact(ctx context.Context, guestID int, phone, email *string) error {
	if phone == nil && email == nil {
		return nil
	}
	key := strconv.Itoa(guestID)
	err := store.Update(ctx, s.store, store.KeyContactOverrides, map[string]models.ContactOverride{},
		func(overrides map[string]models.ContactOverride) (map[string]models.ContactOverride, error) {
			o := overrides[key]
			if phone != nil {
				o.Phone = phone
			}
			if email != nil {
				o.Email = email
			}
			overrides[key] = o
			return overrides, nil
		})
	if err != nil {
		return fmt.Errorf("guestlist: edit contact: %w", err)
	}
	s.bus.Publish(bus.Event{Topic: bus.TopicContactEdited, GuestID: guestID, Key: key})
	return nil
}

// RestoreContact deletes the override for one field ("telefono" or "email")
// so the source value is inherited again; it does not copy the source value
// back. When nothing remains shadowed the whole record is dropped.
func (s *Service) RestoreContact(ctx context.Context, guestID int, field string) error {
	key := strconv.Itoa(guestID)
	err := store.Update(ctx, s.store, store.KeyContactOverrides, map[string]models.ContactOverride{},
		func(overrides map[string]models.ContactOverride) (map[string]models.ContactOverride, error) {
			o, ok := overrides[key]
			if !ok {
				return overrides, nil
			}
			switch field {
			case "telefono":
				o.Phone = nil
			case "email":
				o.Email = nil
			default:
				return nil, fmt.Errorf("guestlist: unknown contact field %q", field)
			}
			if o.Empty() {
				delete(overrides, key)
			} else {
				overrides[key] = o
			}
			return overrides, nil
		})
	if err != nil {
		return err
	}
	s.bus.Publish(bus.Event{Topic: bus.TopicContactEdited, GuestID: guestID, Key: key})
	return nil
}
