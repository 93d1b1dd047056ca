package wizard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wedding-invites/internal/card"
	"wedding-invites/internal/guestlist"
	"wedding-invites/internal/history"
	"wedding-invites/internal/message"
	"wedding-invites/internal/models"
	"wedding-invites/internal/store"
)

// BulkState names a step of the bulk-invitation flow.
type BulkState int

const (
	BulkSelect BulkState = iota + 1
	BulkTemplate
	BulkCards
	BulkPreview
	BulkChannel
	BulkSend
)

func (s BulkState) String() string {
	switch s {
	case BulkSelect:
		return "seleccion"
	case BulkTemplate:
		return "diseno"
	case BulkCards:
		return "tarjetas"
	case BulkPreview:
		return "previsualizacion"
	case BulkChannel:
		return "canal"
	case BulkSend:
		return "envio"
	default:
		return "desconocido"
	}
}

// Channel is the outbound medium of the send loop.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
)

// Progress is the manual checklist kept per selected guest. Mark-as-sent is
// gated on the two copy sub-steps.
type Progress struct {
	TextCopied bool `json:"textoCopiado"`
	CardCopied bool `json:"tarjetaCopiada"`
	Sent       bool `json:"enviado"`
	Skipped    bool `json:"omitido"`
}

// bulkGuards maps each state to its advance condition.
var bulkGuards = map[BulkState]func(*Bulk) error{
	BulkSelect: func(w *Bulk) error {
		if len(w.order) == 0 {
			return ErrNoSelection
		}
		return nil
	},
	BulkTemplate: func(w *Bulk) error {
		if w.design.Template == "" {
			return ErrTemplateRequired
		}
		return nil
	},
	// Card rasterization is optional; preview has no gate either.
	BulkCards:   func(w *Bulk) error { return nil },
	BulkPreview: func(w *Bulk) error { return nil },
	BulkChannel: func(w *Bulk) error {
		if w.channel == "" {
			return ErrChannelRequired
		}
		return nil
	},
}

// Bulk drives the multi-guest flow: a manual per-guest checklist, not an
// automated sender. The app only prepares links and text; the operator does
// the actual send.
type Bulk struct {
	ID uuid.UUID

	store     store.Store
	history   *history.Log
	cards     *card.Renderer
	lists     *guestlist.Service
	cardDelay time.Duration
	log       zerolog.Logger

	mu         sync.Mutex
	state      BulkState
	guests     map[int]models.Guest
	order      []int
	design     models.BulkDesign
	channel    Channel
	previewIdx int
	progress   map[int]*Progress
}

// NewBulk creates a bulk-flow wizard, restoring the persisted selection,
// template and channel. An empty template is seeded with the default.
func NewBulk(ctx context.Context, st store.Store, hist *history.Log, cards *card.Renderer,
	lists *guestlist.Service, cardDelay time.Duration, log zerolog.Logger) *Bulk {

	w := &Bulk{
		ID:        uuid.New(),
		store:     st,
		history:   hist,
		cards:     cards,
		lists:     lists,
		cardDelay: cardDelay,
		state:     BulkSelect,
		guests:    make(map[int]models.Guest),
		progress:  make(map[int]*Progress),
		log:       log.With().Str("component", "wizard-masivo").Logger(),
	}

	if saved, err := store.Get(ctx, st, store.KeyBulkSelection, []models.Guest{}); err == nil {
		for _, g := range saved {
			w.guests[g.ID] = g
			w.order = append(w.order, g.ID)
			w.progress[g.ID] = &Progress{}
		}
	}
	if d, err := store.Get(ctx, st, store.KeyBulkDesign, models.BulkDesign{}); err == nil {
		w.design = d
	}
	if w.design.Template == "" {
		w.design.Template = message.DefaultBulkTemplate
	}
	if ch, err := store.Get(ctx, st, store.KeyBulkSendMethod, Channel("")); err == nil {
		w.channel = ch
	}
	return w
}

// State returns the current step.
func (w *Bulk) State() BulkState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Advance moves to the next step if the current step's guard passes.
func (w *Bulk) Advance() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	guard, ok := bulkGuards[w.state]
	if !ok {
		return fmt.Errorf("%w: %s is the final step", ErrTransition, w.state)
	}
	if err := guard(w); err != nil {
		return fmt.Errorf("%w: %w", ErrTransition, err)
	}
	w.state++
	return nil
}

// Retreat moves one step back without losing entered data.
func (w *Bulk) Retreat() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state <= BulkSelect {
		return fmt.Errorf("%w: already at the first step", ErrTransition)
	}
	w.state--
	return nil
}

// Select adds a guest to the batch. Selecting an already selected guest is a
// no-op.
func (w *Bulk) Select(ctx context.Context, g models.Guest) error {
	w.mu.Lock()
	if _, ok := w.guests[g.ID]; !ok {
		w.guests[g.ID] = g
		w.order = append(w.order, g.ID)
		w.progress[g.ID] = &Progress{}
	}
	w.mu.Unlock()
	return w.persistSelection(ctx)
}

// Deselect removes a guest from the batch along with its checklist.
func (w *Bulk) Deselect(ctx context.Context, guestID int) error {
	w.mu.Lock()
	if _, ok := w.guests[guestID]; ok {
		delete(w.guests, guestID)
		delete(w.progress, guestID)
		for i, id := range w.order {
			if id == guestID {
				w.order = append(w.order[:i], w.order[i+1:]...)
				break
			}
		}
		w.clampCursorLocked()
	}
	w.mu.Unlock()
	return w.persistSelection(ctx)
}

// SelectGroup adds or removes every guest of a group at once.
func (w *Bulk) SelectGroup(ctx context.Context, groupGuests []models.Guest, selected bool) error {
	w.mu.Lock()
	for _, g := range groupGuests {
		if selected {
			if _, ok := w.guests[g.ID]; !ok {
				w.guests[g.ID] = g
				w.order = append(w.order, g.ID)
				w.progress[g.ID] = &Progress{}
			}
		} else if _, ok := w.guests[g.ID]; ok {
			delete(w.guests, g.ID)
			delete(w.progress, g.ID)
			for i, id := range w.order {
				if id == g.ID {
					w.order = append(w.order[:i], w.order[i+1:]...)
					break
				}
			}
		}
	}
	w.clampCursorLocked()
	w.mu.Unlock()
	return w.persistSelection(ctx)
}

// clampCursorLocked keeps the preview cursor inside the selection bounds
// after the selection shrinks. Callers hold w.mu.
func (w *Bulk) clampCursorLocked() {
	if w.previewIdx >= len(w.order) {
		w.previewIdx = len(w.order) - 1
	}
	if w.previewIdx < 0 {
		w.previewIdx = 0
	}
}

// GroupState reports the tri-state selection indicator for a group.
func (w *Bulk) GroupState(groupGuests []models.Guest) TriState {
	w.mu.Lock()
	defer w.mu.Unlock()

	selected := 0
	for _, g := range groupGuests {
		if _, ok := w.guests[g.ID]; ok {
			selected++
		}
	}
	switch {
	case selected == 0:
		return SelectedNone
	case selected == len(groupGuests):
		return SelectedAll
	default:
		return SelectedSome
	}
}

// Selection returns the selected guests in selection order.
func (w *Bulk) Selection() []models.Guest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selectionLocked()
}

func (w *Bulk) selectionLocked() []models.Guest {
	out := make([]models.Guest, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.guests[id])
	}
	return out
}

func (w *Bulk) persistSelection(ctx context.Context) error {
	w.mu.Lock()
	sel := w.selectionLocked()
	w.mu.Unlock()
	return store.Set(ctx, w.store, store.KeyBulkSelection, sel)
}

// SaveTemplate stores the shared message template.
func (w *Bulk) SaveTemplate(ctx context.Context, tpl string) error {
	if tpl == "" {
		return ErrTemplateRequired
	}
	w.mu.Lock()
	w.design.Template = tpl
	d := w.design
	w.mu.Unlock()
	return store.Set(ctx, w.store, store.KeyBulkDesign, d)
}

// Template returns the current template string.
func (w *Bulk) Template() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.design.Template
}

// PreviewExample substitutes the template with the first selected guest, for
// the live preview of the template step.
func (w *Bulk) PreviewExample() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.order) == 0 {
		return "", ErrNoSelection
	}
	return message.Substitute(w.design.Template, w.guests[w.order[0]]), nil
}

// RenderCards rasterizes one card per selected guest, invoking fn for each
// in selection order with a short pause between cards so downstream download
// handling is not overwhelmed.
func (w *Bulk) RenderCards(ctx context.Context, design models.InvitationDesign, fn func(g models.Guest, png []byte, filename string) error) error {
	guests := w.Selection()
	for i, g := range guests {
		if i > 0 && w.cardDelay > 0 {
			select {
			case <-time.After(w.cardDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		png, err := w.cards.PNG(g, design)
		if err != nil {
			return err
		}
		if err := fn(g, png, card.FileName(g.Name)); err != nil {
			return err
		}
		w.mu.Lock()
		if p := w.progress[g.ID]; p != nil {
			p.CardCopied = true
		}
		w.mu.Unlock()
	}
	return nil
}

// Preview returns the guest at the preview cursor and their rendered
// message.
func (w *Bulk) Preview() (models.Guest, string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.order) == 0 {
		return models.Guest{}, "", ErrNoSelection
	}
	g := w.guests[w.order[w.previewIdx]]
	return g, message.Substitute(w.design.Template, g), nil
}

// PreviewNext and PreviewPrev move the preview cursor, clamped to the
// selection bounds.
func (w *Bulk) PreviewNext() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.previewIdx < len(w.order)-1 {
		w.previewIdx++
	}
}

func (w *Bulk) PreviewPrev() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.previewIdx > 0 {
		w.previewIdx--
	}
}

// SetChannel chooses the outbound medium and persists the choice.
func (w *Bulk) SetChannel(ctx context.Context, ch Channel) error {
	if ch != ChannelWhatsApp && ch != ChannelEmail {
		return fmt.Errorf("wizard: unknown channel %q", ch)
	}
	w.mu.Lock()
	w.channel = ch
	w.mu.Unlock()
	return store.Set(ctx, w.store, store.KeyBulkSendMethod, ch)
}

// Channel returns the chosen medium, empty when not chosen yet.
func (w *Bulk) Channel() Channel {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.channel
}

// SendLink builds the deep link for one selected guest on the chosen
// channel. A guest without a usable phone or email yields a typed error; the
// rest of the batch is unaffected.
func (w *Bulk) SendLink(guestID int) (string, error) {
	w.mu.Lock()
	g, ok := w.guests[guestID]
	ch := w.channel
	tpl := w.design.Template
	w.mu.Unlock()
	if !ok {
		return "", ErrNotSelected
	}
	if ch == "" {
		return "", ErrChannelRequired
	}

	text := message.Substitute(tpl, g)
	if ch == ChannelEmail {
		return message.MailtoLink(g.Email, "Invitación a nuestra boda", text)
	}
	return message.WhatsAppLink(g.Phone, text)
}

// MarkTextCopied records the copy-text sub-step for a guest.
func (w *Bulk) MarkTextCopied(guestID int) error {
	return w.markProgress(guestID, func(p *Progress) { p.TextCopied = true })
}

// MarkCardCopied records the copy-card sub-step for a guest.
func (w *Bulk) MarkCardCopied(guestID int) error {
	return w.markProgress(guestID, func(p *Progress) { p.CardCopied = true })
}

func (w *Bulk) markProgress(guestID int, apply func(*Progress)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.progress[guestID]
	if !ok {
		return ErrNotSelected
	}
	apply(p)
	return nil
}

// MarkSent completes the checklist for one guest: it requires both copy
// sub-steps, validates the channel address, appends the history entry and
// flips the guest's sent flag. A guest without a usable address is recorded
// as failed and skipped without blocking the batch.
func (w *Bulk) MarkSent(ctx context.Context, guestID int) error {
	w.mu.Lock()
	if w.state != BulkSend {
		w.mu.Unlock()
		return fmt.Errorf("%w: marking sent requires step %d", ErrTransition, BulkSend)
	}
	g, ok := w.guests[guestID]
	if !ok {
		w.mu.Unlock()
		return ErrNotSelected
	}
	p := w.progress[guestID]
	if p.Sent {
		w.mu.Unlock()
		return ErrAlreadySent
	}
	if !p.TextCopied || !p.CardCopied {
		w.mu.Unlock()
		return ErrChecklistIncomplete
	}
	tpl := w.design.Template
	w.mu.Unlock()

	text := message.Substitute(tpl, g)
	rec := models.SendRecord{
		GuestID:   g.ID,
		GuestName: g.Name,
		Phone:     g.Phone,
		Group:     g.GroupName,
		Message:   text,
		Type:      models.SendBulk,
	}

	if _, err := w.SendLink(guestID); err != nil {
		if errors.Is(err, message.ErrInvalidPhone) || errors.Is(err, message.ErrInvalidEmail) {
			rec.Outcome = models.SendFailed
			if _, histErr := w.history.Append(ctx, rec); histErr != nil {
				w.log.Warn().Err(histErr).Int("guest", g.ID).Msg("failed to record failed send")
			}
			w.markProgress(guestID, func(p *Progress) { p.Skipped = true })
			w.log.Warn().Int("guest", g.ID).Msg("guest skipped, no usable address")
		}
		return err
	}

	rec.Outcome = models.SendOK
	if _, err := w.history.Append(ctx, rec); err != nil {
		return err
	}
	if err := w.lists.MarkSent(ctx, g.ID); err != nil {
		return err
	}
	return w.markProgress(guestID, func(p *Progress) { p.Sent = true })
}

// ProgressFor returns the checklist of one selected guest.
func (w *Bulk) ProgressFor(guestID int) (Progress, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.progress[guestID]
	if !ok {
		return Progress{}, ErrNotSelected
	}
	return *p, nil
}

// Summary reports the batch totals of the send loop.
type Summary struct {
	Selected int `json:"seleccionados"`
	Sent     int `json:"exitosos"`
	Skipped  int `json:"fallidos"`
	Pending  int `json:"pendientes"`
}

// Summarize tallies the batch.
func (w *Bulk) Summarize() Summary {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Summary{Selected: len(w.order)}
	for _, id := range w.order {
		switch p := w.progress[id]; {
		case p.Sent:
			s.Sent++
		case p.Skipped:
			s.Skipped++
		default:
			s.Pending++
		}
	}
	return s
}

// SkippedGuests returns the flagged guests, in id order.
func (w *Bulk) SkippedGuests() []models.Guest {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []models.Guest
	for id, p := range w.progress {
		if p.Skipped {
			out = append(out, w.guests[id])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Reset returns the wizard to the first step and clears the persisted
// selection. The template and channel are kept for the next batch.
func (w *Bulk) Reset(ctx context.Context) error {
	w.mu.Lock()
	w.state = BulkSelect
	w.guests = make(map[int]models.Guest)
	w.order = nil
	w.progress = make(map[int]*Progress)
	w.previewIdx = 0
	w.mu.Unlock()
	return w.store.Delete(ctx, store.KeyBulkSelection)
}
