package backup

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"wedding-invites/internal/bus"
	"wedding-invites/internal/models"
	"wedding-invites/internal/store"
)

func newTestManager(t *testing.T) (*Manager, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewManager(st, bus.New(zerolog.Nop()), zerolog.Nop()), st
}

func seed(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()
	err := store.Set(ctx, st, store.KeyConfirmations, map[string]models.Confirmation{
		"7":        {Attending: true, Companions: 2, Name: "Juan Pérez", ConfirmedAt: "2025-10-01T12:00:00Z"},
		"manual-x": {Attending: false, Name: "María Díaz", Manual: true},
	})
	if err != nil {
		t.Fatalf("seed confirmations: %v", err)
	}
	err = store.Set(ctx, st, store.KeyConfirmationLinks, map[string]models.ConfirmationLink{
		"7": {URL: "https://example.com/confirmar/7", Message: "hola"},
	})
	if err != nil {
		t.Fatalf("seed links: %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()
	seed(t, st)

	data, err := m.Export(ctx)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	// Wipe everything and restore from the snapshot.
	if err := st.Delete(ctx, store.KeyConfirmations); err != nil {
		t.Fatalf("wipe confirmations: %v", err)
	}
	if err := st.Delete(ctx, store.KeyConfirmationLinks); err != nil {
		t.Fatalf("wipe links: %v", err)
	}
	if err := m.Import(ctx, data, false); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	confirmations, err := store.Get(ctx, st, store.KeyConfirmations, map[string]models.Confirmation{})
	if err != nil {
		t.Fatalf("read confirmations: %v", err)
	}
	if len(confirmations) != 2 {
		t.Fatalf("expected 2 restored confirmations, got %d", len(confirmations))
	}
	juan := confirmations["7"]
	if !juan.Attending || juan.Companions != 2 || juan.ConfirmedAt != "2025-10-01T12:00:00Z" {
		t.Errorf("record not restored byte for byte: %+v", juan)
	}
	if !confirmations["manual-x"].Manual {
		t.Error("manual flag lost in the round trip")
	}

	links, err := store.Get(ctx, st, store.KeyConfirmationLinks, map[string]models.ConfirmationLink{})
	if err != nil {
		t.Fatalf("read links: %v", err)
	}
	if links["7"].URL != "https://example.com/confirmar/7" {
		t.Errorf("link not restored: %+v", links["7"])
	}
}

func TestImportRequiresOverwriteConfirmation(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()
	seed(t, st)

	data, err := m.Export(ctx)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if err := m.Import(ctx, data, false); !errors.Is(err, ErrOverwriteRequired) {
		t.Errorf("expected ErrOverwriteRequired, got %v", err)
	}
	if err := m.Import(ctx, data, true); err != nil {
		t.Errorf("confirmed import failed: %v", err)
	}
}

func TestImportReplacesInsteadOfMerging(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	snapshot := []byte(`{"confirmaciones": {"9": {"asistencia": true, "nombre": "Nuevo"}}, "linksConfirmacion": {}}`)

	seed(t, st)
	if err := m.Import(ctx, snapshot, true); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	confirmations, err := store.Get(ctx, st, store.KeyConfirmations, map[string]models.Confirmation{})
	if err != nil {
		t.Fatalf("read confirmations: %v", err)
	}
	if len(confirmations) != 1 {
		t.Errorf("import must replace, not merge: %v", confirmations)
	}
	if _, ok := confirmations["9"]; !ok {
		t.Error("imported record missing")
	}
}

// brokenStore refuses batch writes, standing in for a store whose disk gave
// out mid-restore.
type brokenStore struct {
	store.Store
}

func (b *brokenStore) SetRawBatch(ctx context.Context, entries map[string][]byte) error {
	return errors.New("write failed")
}

func TestImportFailureLeavesRecordsUntouched(t *testing.T) {
	_, st := newTestManager(t)
	ctx := context.Background()
	seed(t, st)

	broken := NewManager(&brokenStore{Store: st}, bus.New(zerolog.Nop()), zerolog.Nop())
	snapshot := []byte(`{"confirmaciones": {"9": {"asistencia": true}}, "linksConfirmacion": {}}`)
	if err := broken.Import(ctx, snapshot, true); err == nil {
		t.Fatal("expected the import to fail")
	}

	// Neither record was replaced: the restore is all or nothing.
	confirmations, err := store.Get(ctx, st, store.KeyConfirmations, map[string]models.Confirmation{})
	if err != nil {
		t.Fatalf("read confirmations: %v", err)
	}
	if len(confirmations) != 2 || !confirmations["7"].Attending {
		t.Errorf("confirmations changed by a failed import: %v", confirmations)
	}
	links, err := store.Get(ctx, st, store.KeyConfirmationLinks, map[string]models.ConfirmationLink{})
	if err != nil {
		t.Fatalf("read links: %v", err)
	}
	if links["7"].URL != "https://example.com/confirmar/7" {
		t.Errorf("links changed by a failed import: %v", links)
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	for _, data := range []string{"{not json", `{"otracosa": 1}`, `[]`} {
		if err := m.Import(ctx, []byte(data), true); !errors.Is(err, ErrBadSnapshot) {
			t.Errorf("expected ErrBadSnapshot for %q, got %v", data, err)
		}
	}
}
