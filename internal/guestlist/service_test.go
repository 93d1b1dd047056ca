package guestlist

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"wedding-invites/internal/bus"
	"wedding-invites/internal/catalog"
	"wedding-invites/internal/models"
	"wedding-invites/internal/store"
)

const sourceJSON = `{
  "grupos": [
    {
      "id": 1,
      "nombre": "Familia Pérez",
      "invitados": [
        {"id": 7, "nombre": "Juan Pérez", "contacto": {"telefono": "+54 11 5555-1234", "email": "juan@example.com"}, "acompanantes": 2},
        {"id": 8, "nombre": "Ana Gómez", "contacto": {"telefono": "5491155556789", "email": "ana@example.com"}, "acompanantes": 1}
      ]
    },
    {
      "id": 2,
      "nombre": "Amigos",
      "invitados": [
        {"id": 20, "nombre": "Pedro López", "contacto": {"telefono": "N/A", "email": ""}, "acompanantes": 0}
      ]
    }
  ]
}`

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	dir := t.TempDir()

	srcPath := filepath.Join(dir, "invitados.json")
	if err := os.WriteFile(srcPath, []byte(sourceJSON), 0644); err != nil {
		t.Fatalf("failed to write source: %v", err)
	}
	st, err := store.NewSQLite(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	loader := catalog.NewLoader(srcPath, st, zerolog.Nop())
	return NewService(loader, st, bus.New(zerolog.Nop()), zerolog.Nop()), st
}

func boolPtr(v bool) *bool { return &v }

func TestFilterConfirmedAndQuery(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	// Juan and Ana confirmed, Pedro pending.
	err := store.Set(ctx, st, store.KeyConfirmations, map[string]models.Confirmation{
		"7": {Attending: true, Name: "Juan Pérez"},
		"8": {Attending: true, Name: "Ana Gómez"},
	})
	if err != nil {
		t.Fatalf("seed confirmations: %v", err)
	}

	res, err := svc.List(ctx, Filter{Confirmed: boolPtr(true), Query: "juan"}, Sort{}, Page{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(res.Guests) != 1 || res.Guests[0].Name != "Juan Pérez" {
		t.Fatalf("expected exactly Juan Pérez, got %+v", res.Guests)
	}
	if res.Total != 1 {
		t.Errorf("expected total 1, got %d", res.Total)
	}
}

func TestFilterByGroupAndSent(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	if err := store.Set(ctx, st, store.KeySendStatus, map[string]bool{"7": true}); err != nil {
		t.Fatalf("seed status: %v", err)
	}

	res, err := svc.List(ctx, Filter{Group: "Familia Pérez", Sent: boolPtr(false)}, Sort{}, Page{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(res.Guests) != 1 || res.Guests[0].ID != 8 {
		t.Errorf("expected only Ana, got %+v", res.Guests)
	}
}

func TestQueryMatchesPhoneAndEmail(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.List(context.Background(), Filter{Query: "5555-1234"}, Sort{}, Page{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(res.Guests) != 1 || res.Guests[0].ID != 7 {
		t.Errorf("phone query missed: %+v", res.Guests)
	}

	res, err = svc.List(context.Background(), Filter{Query: "ANA@"}, Sort{}, Page{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(res.Guests) != 1 || res.Guests[0].ID != 8 {
		t.Errorf("email query missed: %+v", res.Guests)
	}
}

func TestSortIsStable(t *testing.T) {
	guests := []models.Guest{
		{ID: 1, Name: "b", Companions: 1},
		{ID: 2, Name: "a", Companions: 1},
		{ID: 3, Name: "c", Companions: 0},
	}

	got := Apply(guests, Filter{}, Sort{Field: "acompanantes"})
	// Equal keys keep their prior relative order: 1 before 2.
	if got[0].ID != 3 || got[1].ID != 1 || got[2].ID != 2 {
		t.Errorf("unexpected order: %+v", got)
	}

	desc := Apply(guests, Filter{}, Sort{Field: "acompanantes", Desc: true})
	if desc[0].ID != 1 || desc[1].ID != 2 || desc[2].ID != 3 {
		t.Errorf("descending sort broke the tie order: %+v", desc)
	}
}

func TestSortByName(t *testing.T) {
	guests := []models.Guest{
		{ID: 1, Name: "zeta"},
		{ID: 2, Name: "Alfa"},
	}
	got := Apply(guests, Filter{}, Sort{Field: "nombre"})
	if got[0].ID != 2 {
		t.Errorf("case-insensitive name sort failed: %+v", got)
	}
}

func TestPagination(t *testing.T) {
	guests := make([]models.Guest, 25)
	for i := range guests {
		guests[i] = models.Guest{ID: i + 1}
	}

	res := paginate(guests, Page{Number: 3, Size: 10})
	if res.Pages != 3 || res.Page != 3 || res.Total != 25 {
		t.Errorf("unexpected pager: %+v", res)
	}
	if len(res.Guests) != 5 || res.Guests[0].ID != 21 {
		t.Errorf("unexpected page contents: %+v", res.Guests)
	}

	// Out-of-range pages clamp to the last page.
	res = paginate(guests, Page{Number: 99, Size: 10})
	if res.Page != 3 || len(res.Guests) != 5 {
		t.Errorf("page number not clamped: %+v", res)
	}

	res = paginate(nil, Page{Number: 1, Size: 10})
	if res.Pages != 1 || len(res.Guests) != 0 {
		t.Errorf("empty list should still report one page: %+v", res)
	}
}

func TestToggleSentIsLogicalNegation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	now, err := svc.ToggleSent(ctx, 7)
	if err != nil {
		t.Fatalf("ToggleSent failed: %v", err)
	}
	if !now {
		t.Error("first toggle should turn the flag on")
	}
	now, err = svc.ToggleSent(ctx, 7)
	if err != nil {
		t.Fatalf("second ToggleSent failed: %v", err)
	}
	if now {
		t.Error("second toggle should turn the flag off")
	}
}

func TestEditAndRestoreContact(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	phone := "5491100001111"
	email := "nuevo@example.com"
	if err := svc.EditContact(ctx, 7, &phone, &email); err != nil {
		t.Fatalf("EditContact failed: %v", err)
	}

	guests, err := svc.Filtered(ctx, Filter{Query: "juan"}, Sort{})
	if err != nil {
		t.Fatalf("Filtered failed: %v", err)
	}
	if guests[0].Phone != phone || guests[0].Email != email {
		t.Errorf("override not applied: %+v", guests[0])
	}

	// Restoring the phone brings the source value back; the email stays edited.
	if err := svc.RestoreContact(ctx, 7, "telefono"); err != nil {
		t.Fatalf("RestoreContact failed: %v", err)
	}
	guests, err = svc.Filtered(ctx, Filter{Query: "juan"}, Sort{})
	if err != nil {
		t.Fatalf("Filtered failed: %v", err)
	}
	if guests[0].Phone != "+54 11 5555-1234" {
		t.Errorf("source phone not restored: %q", guests[0].Phone)
	}
	if guests[0].Email != email {
		t.Errorf("email override lost: %q", guests[0].Email)
	}

	// Restoring the last shadowed field drops the whole record.
	if err := svc.RestoreContact(ctx, 7, "email"); err != nil {
		t.Fatalf("RestoreContact failed: %v", err)
	}
	overrides, err := store.Get(ctx, st, store.KeyContactOverrides, map[string]models.ContactOverride{})
	if err != nil {
		t.Fatalf("read overrides: %v", err)
	}
	if _, ok := overrides["7"]; ok {
		t.Error("empty override record should have been dropped")
	}
}

func TestRestoreUnknownField(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.RestoreContact(context.Background(), 7, "direccion"); err != nil {
		t.Fatalf("restore with no record must be a no-op, got %v", err)
	}

	phone := "111"
	if err := svc.EditContact(context.Background(), 7, &phone, nil); err != nil {
		t.Fatalf("EditContact failed: %v", err)
	}
	if err := svc.RestoreContact(context.Background(), 7, "direccion"); err == nil {
		t.Error("expected an error for an unknown field")
	}
}

func TestCSVExport(t *testing.T) {
	guests := []models.Guest{
		{ID: 7, Name: "Juan Pérez", GroupName: "Familia Pérez", Phone: "111", Email: "j@e.c", Companions: 2, Sent: true},
	}
	out, err := CSV(guests)
	if err != nil {
		t.Fatalf("CSV failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus one row, got %d lines", len(lines))
	}
	if lines[0] != "id,nombre,grupo,telefono,email,acompanantes,enviado,confirmado" {
		t.Errorf("unexpected header: %q", lines[0])
	}
	if lines[1] != "7,Juan Pérez,Familia Pérez,111,j@e.c,2,si,no" {
		t.Errorf("unexpected row: %q", lines[1])
	}
}

func TestTXTExport(t *testing.T) {
	out := string(TXT([]models.Guest{{Name: "Juan", GroupName: "Amigos"}}))
	for _, want := range []string{"Lista de invitados (1)", "Nombre: Juan", "Grupo: Amigos"} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %q", want)
		}
	}
}
