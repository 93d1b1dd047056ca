// Package store is the local persistence layer: a set of independent
// JSON-encoded records, each under its own well-known key. Readers fall back
// to a caller-supplied default when a key is absent or its value does not
// parse, so a corrupt record degrades to "no data" instead of propagating.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Well-known record keys. Each feature owns its own key; there is no schema
// version field.
const (
	KeySendStatus        = "estadosEnvio"
	KeyContactOverrides  = "contactosEditados"
	KeyConfirmations     = "confirmaciones"
	KeyConfirmationLinks = "linksConfirmacion"
	KeySendHistory       = "historialWhatsApp"
	KeyInvitationDesign  = "disenoInvitacion"
	KeyBulkDesign        = "disenoMasivo"
	KeySelectedGuest     = "invitadoSeleccionado"
	KeyBulkSelection     = "invitadosMasivosSeleccionados"
	KeyBulkSendMethod    = "metodoEnvioMasivo"
	KeyAccessGranted     = "accesoPermitido"
)

var (
	// ErrNotFound is returned by GetRaw when a key has never been written.
	ErrNotFound = errors.New("store: key not found")
	// ErrCorrupt marks a value that exists but does not decode. Typed Get
	// still returns the default alongside it.
	ErrCorrupt = errors.New("store: corrupt value")
)

// Store persists whole records keyed by name. UpdateRaw serializes
// read-modify-write cycles against concurrent writers in the same process;
// across processes the last write wins, which is accepted and documented.
// SetRawBatch writes every entry or none of them.
type Store interface {
	GetRaw(ctx context.Context, key string) ([]byte, error)
	SetRaw(ctx context.Context, key string, value []byte) error
	SetRawBatch(ctx context.Context, entries map[string][]byte) error
	UpdateRaw(ctx context.Context, key string, fn func(value []byte, found bool) ([]byte, error)) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Get decodes the record under key into T. An absent key yields def with a
// nil error; a present but undecodable value yields def with ErrCorrupt so
// callers may log it while still proceeding with the default.
func Get[T any](ctx context.Context, s Store, key string, def T) (T, error) {
	raw, err := s.GetRaw(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return def, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return v, nil
}

// Set encodes value and stores it whole under key.
func Set[T any](ctx context.Context, s Store, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	return s.SetRaw(ctx, key, raw)
}

// Update runs a serialized read-modify-write of the record under key. The
// callback receives the current value (or def when absent or corrupt) and
// returns the replacement.
func Update[T any](ctx context.Context, s Store, key string, def T, fn func(T) (T, error)) error {
	return s.UpdateRaw(ctx, key, func(raw []byte, found bool) ([]byte, error) {
		v := def
		if found {
			if err := json.Unmarshal(raw, &v); err != nil {
				v = def
			}
		}
		next, err := fn(v)
		if err != nil {
			return nil, err
		}
		out, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("store: encode %s: %w", key, err)
		}
		return out, nil
	})
}
