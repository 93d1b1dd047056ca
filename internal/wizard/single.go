package wizard

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wedding-invites/internal/card"
	"wedding-invites/internal/guestlist"
	"wedding-invites/internal/history"
	"wedding-invites/internal/message"
	"wedding-invites/internal/models"
	"wedding-invites/internal/rsvp"
	"wedding-invites/internal/store"
)

// SingleState names a step of the single-invitation flow.
type SingleState int

const (
	SingleSelectGuest SingleState = iota + 1
	SingleDesignCard
	SingleDownloadCard
	SingleComposeMessage
	SingleOpenChannel
)

func (s SingleState) String() string {
	switch s {
	case SingleSelectGuest:
		return "seleccionar-invitado"
	case SingleDesignCard:
		return "disenar-tarjeta"
	case SingleDownloadCard:
		return "descargar-tarjeta"
	case SingleComposeMessage:
		return "copiar-mensaje"
	case SingleOpenChannel:
		return "enviar-whatsapp"
	default:
		return "desconocido"
	}
}

// singleGuards maps each state to the condition required to advance out of
// it. Absence means the state is terminal.
var singleGuards = map[SingleState]func(*Single) error{
	SingleSelectGuest: func(w *Single) error {
		if w.guest == nil {
			return ErrGuestRequired
		}
		return nil
	},
	SingleDesignCard: func(w *Single) error {
		d := w.design
		if d.CoupleNames == "" || d.Date == "" || d.Time == "" || d.Venue == "" {
			return ErrDesignIncomplete
		}
		return nil
	},
	SingleDownloadCard: func(w *Single) error {
		if !w.downloaded {
			return ErrCardNotDownloaded
		}
		return nil
	},
	SingleComposeMessage: func(w *Single) error {
		if !w.copied {
			return ErrMessageNotCopied
		}
		return nil
	},
}

// Single drives one invitation through the five-step flow. Session state is
// mirrored to the store so a restart resumes where the operator left off.
type Single struct {
	ID uuid.UUID

	store     store.Store
	history   *history.Log
	cards     *card.Renderer
	lists     *guestlist.Service
	rsvp      *rsvp.Service
	eventDate string
	log       zerolog.Logger

	mu         sync.Mutex
	state      SingleState
	guest      *models.Guest
	design     models.InvitationDesign
	override   string // free-text replacement of the whole message
	downloaded bool
	copied     bool
}

// NewSingle creates a single-flow wizard, restoring any persisted session.
// eventDate is the fixed, non-editable card date.
func NewSingle(ctx context.Context, st store.Store, hist *history.Log, cards *card.Renderer,
	lists *guestlist.Service, rs *rsvp.Service, eventDate string, log zerolog.Logger) *Single {

	w := &Single{
		ID:        uuid.New(),
		store:     st,
		history:   hist,
		cards:     cards,
		lists:     lists,
		rsvp:      rs,
		eventDate: eventDate,
		state:     SingleSelectGuest,
		log:       log.With().Str("component", "wizard-individual").Logger(),
	}

	if g, err := store.Get(ctx, st, store.KeySelectedGuest, (*models.Guest)(nil)); err == nil && g != nil {
		w.guest = g
		w.state = SingleDesignCard
	}
	if d, err := store.Get(ctx, st, store.KeyInvitationDesign, models.InvitationDesign{}); err == nil {
		w.design = d
	}
	w.design.Date = eventDate
	return w
}

// State returns the current step.
func (w *Single) State() SingleState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Guest returns the selected guest, or nil.
func (w *Single) Guest() *models.Guest {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.guest == nil {
		return nil
	}
	g := *w.guest
	return &g
}

// Design returns the current card design.
func (w *Single) Design() models.InvitationDesign {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.design
}

// SelectGuest records the chosen guest and persists it for resume.
func (w *Single) SelectGuest(ctx context.Context, g models.Guest) error {
	w.mu.Lock()
	w.guest = &g
	w.mu.Unlock()
	return store.Set(ctx, w.store, store.KeySelectedGuest, g)
}

// SaveDesign stores the shared card fields. The date is derived from the
// event date and cannot be edited.
func (w *Single) SaveDesign(ctx context.Context, d models.InvitationDesign) error {
	d.Date = w.eventDate
	w.mu.Lock()
	w.design = d
	w.mu.Unlock()
	return store.Set(ctx, w.store, store.KeyInvitationDesign, d)
}

// Advance moves to the next step if the current step's guard passes.
func (w *Single) Advance() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	guard, ok := singleGuards[w.state]
	if !ok {
		return fmt.Errorf("%w: %s is the final step", ErrTransition, w.state)
	}
	if err := guard(w); err != nil {
		return fmt.Errorf("%w: %w", ErrTransition, err)
	}
	w.state++
	return nil
}

// Retreat moves one step back. Data entered in later steps is kept.
func (w *Single) Retreat() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state <= SingleSelectGuest {
		return fmt.Errorf("%w: already at the first step", ErrTransition)
	}
	w.state--
	return nil
}

// RenderCard rasterizes the card for the selected guest and satisfies the
// download gate. Returns the PNG and its download file name.
func (w *Single) RenderCard(ctx context.Context) ([]byte, string, error) {
	w.mu.Lock()
	if w.guest == nil {
		w.mu.Unlock()
		return nil, "", ErrGuestRequired
	}
	g, d := *w.guest, w.design
	w.mu.Unlock()

	png, err := w.cards.PNG(g, d)
	if err != nil {
		return nil, "", err
	}

	w.mu.Lock()
	w.downloaded = true
	w.mu.Unlock()
	return png, card.FileName(g.Name), nil
}

// Message renders the composed text for the selected guest, or returns the
// operator's free-text override when one was set.
func (w *Single) Message(ctx context.Context) (string, error) {
	w.mu.Lock()
	if w.guest == nil {
		w.mu.Unlock()
		return "", ErrGuestRequired
	}
	g, d, override := *w.guest, w.design, w.override
	w.mu.Unlock()

	if override != "" {
		return override, nil
	}
	link, err := w.rsvp.Link(ctx, g)
	if err != nil {
		return "", err
	}
	return message.Invitation(g, d, link.URL), nil
}

// OverrideMessage replaces the whole composed message with free text. An
// empty override restores the rendered message.
func (w *Single) OverrideMessage(text string) {
	w.mu.Lock()
	w.override = text
	w.mu.Unlock()
}

// MarkCopied satisfies the copy gate of the compose step.
func (w *Single) MarkCopied() {
	w.mu.Lock()
	w.copied = true
	w.mu.Unlock()
}

// Send builds the WhatsApp deep link for the selected guest, appends the
// history entry, flips the guest's sent flag and resets the wizard. A
// missing or short phone is a recoverable error: nothing is recorded and
// the sent flag is left untouched.
func (w *Single) Send(ctx context.Context) (string, error) {
	w.mu.Lock()
	if w.state != SingleOpenChannel {
		w.mu.Unlock()
		return "", fmt.Errorf("%w: sending requires step %d", ErrTransition, SingleOpenChannel)
	}
	if w.guest == nil {
		w.mu.Unlock()
		return "", ErrGuestRequired
	}
	g := *w.guest
	w.mu.Unlock()

	text, err := w.Message(ctx)
	if err != nil {
		return "", err
	}
	link, err := message.WhatsAppLink(g.Phone, text)
	if err != nil {
		return "", err
	}

	if _, err := w.history.Append(ctx, models.SendRecord{
		GuestID:   g.ID,
		GuestName: g.Name,
		Phone:     g.Phone,
		Group:     g.GroupName,
		Message:   text,
		Type:      models.SendIndividual,
		Outcome:   models.SendOK,
	}); err != nil {
		return "", err
	}
	if err := w.lists.MarkSent(ctx, g.ID); err != nil {
		return "", err
	}

	w.log.Info().Int("guest", g.ID).Msg("invitation handed to WhatsApp")
	if err := w.Reset(ctx); err != nil {
		w.log.Warn().Err(err).Msg("failed to clear wizard session")
	}
	return link, nil
}

// Reset returns the wizard to the first step and clears the persisted
// session. The saved card design is kept for the next guest.
func (w *Single) Reset(ctx context.Context) error {
	w.mu.Lock()
	w.state = SingleSelectGuest
	w.guest = nil
	w.override = ""
	w.downloaded = false
	w.copied = false
	w.mu.Unlock()
	return w.store.Delete(ctx, store.KeySelectedGuest)
}
