// Package wizard models the invitation flows as explicit finite state
// machines. Each state names a step, transitions consult a guard table, and
// an illegal advance is a typed error instead of a disabled button.
package wizard

import "errors"

var (
	// ErrTransition is wrapped by every rejected state change.
	ErrTransition = errors.New("wizard: transition not allowed")

	ErrGuestRequired       = errors.New("wizard: a guest must be selected first")
	ErrDesignIncomplete    = errors.New("wizard: the card design is incomplete")
	ErrCardNotDownloaded   = errors.New("wizard: the card must be downloaded at least once")
	ErrMessageNotCopied    = errors.New("wizard: the message must be copied at least once")
	ErrNoSelection         = errors.New("wizard: no guests selected")
	ErrTemplateRequired    = errors.New("wizard: the message template is empty")
	ErrChannelRequired     = errors.New("wizard: a send channel must be chosen")
	ErrNotSelected         = errors.New("wizard: guest is not part of the selection")
	ErrChecklistIncomplete = errors.New("wizard: copy the text and the card before marking as sent")
	ErrAlreadySent         = errors.New("wizard: guest already marked as sent")
)

// TriState is the group-selection indicator of the bulk flow.
type TriState int

const (
	SelectedNone TriState = iota
	SelectedSome
	SelectedAll
)
