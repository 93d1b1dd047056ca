package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"wedding-invites/internal/bus"
	"wedding-invites/internal/config"
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

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
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

	cfg := &config.Config{
		GuestSource:    srcPath,
		SiteURL:        "https://example.com",
		AccessPassword: "boda2025",
		EventDate:      time.Date(2025, time.November, 23, 0, 0, 0, 0, time.UTC),
		PageSize:       10,
		HistoryLimit:   100,
		CardDelay:      time.Millisecond,
	}
	srv, err := New(context.Background(), cfg, st, bus.New(zerolog.Nop()), zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, st
}

func getJSON(t *testing.T, ts *httptest.Server, path string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp
}

func postJSON(t *testing.T, ts *httptest.Server, path, body string, out any) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp
}

func TestAccessPassword(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts, "/api/acceso", `{"password":"incorrecta"}`, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}

	var out map[string]bool
	resp = postJSON(t, ts, "/api/acceso", `{"password":"boda2025"}`, &out)
	if resp.StatusCode != http.StatusOK || !out["accesoPermitido"] {
		t.Errorf("expected access granted, got %d %v", resp.StatusCode, out)
	}
}

func TestListGuestsWithFilter(t *testing.T) {
	ts, st := newTestServer(t)
	ctx := context.Background()

	err := store.Set(ctx, st, store.KeyConfirmations, map[string]models.Confirmation{
		"7": {Attending: true, Name: "Juan Pérez"},
		"8": {Attending: true, Name: "Ana Gómez"},
	})
	if err != nil {
		t.Fatalf("seed confirmations: %v", err)
	}

	var out struct {
		Guests []models.Guest `json:"invitados"`
		Total  int            `json:"total"`
		Page   int            `json:"pagina"`
		Pages  int            `json:"paginas"`
	}
	resp := getJSON(t, ts, "/api/invitados?confirmacion=confirmados&buscar=juan", &out)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if out.Total != 1 || len(out.Guests) != 1 || out.Guests[0].Name != "Juan Pérez" {
		t.Errorf("expected exactly Juan Pérez, got %+v", out)
	}
	if out.Page != 1 || out.Pages != 1 {
		t.Errorf("unexpected pager: %+v", out)
	}
}

func TestGetGuestAndNotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	var g models.Guest
	resp := getJSON(t, ts, "/api/invitados/7", &g)
	if resp.StatusCode != http.StatusOK || g.ID != 7 || g.GroupName != "Familia Pérez" {
		t.Errorf("unexpected guest: %d %+v", resp.StatusCode, g)
	}

	resp = getJSON(t, ts, "/api/invitados/999", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}

	resp = getJSON(t, ts, "/api/invitados/abc", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for a non-numeric id, got %d", resp.StatusCode)
	}
}

func TestToggleSentEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	var out map[string]bool
	resp := postJSON(t, ts, "/api/invitados/7/envio", "", &out)
	if resp.StatusCode != http.StatusOK || !out["enviado"] {
		t.Errorf("first toggle should enable: %d %v", resp.StatusCode, out)
	}
	resp = postJSON(t, ts, "/api/invitados/7/envio", "", &out)
	if resp.StatusCode != http.StatusOK || out["enviado"] {
		t.Errorf("second toggle should disable: %d %v", resp.StatusCode, out)
	}
}

func TestConfirmClampsCompanions(t *testing.T) {
	ts, _ := newTestServer(t)

	var out struct {
		Key string              `json:"clave"`
		Rec models.Confirmation `json:"confirmacion"`
	}
	resp := postJSON(t, ts, "/api/confirmar/7", `{"asistencia":true,"acompanantes":5,"alergias":"maní"}`, &out)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if out.Key != "7" || out.Rec.Companions != 2 {
		t.Errorf("companions not clamped to the guest allowance: %+v", out)
	}
	if out.Rec.Manual {
		t.Error("guest confirmation must not be manual")
	}
	if out.Rec.Allergies != "maní" {
		t.Errorf("allergies lost: %+v", out.Rec)
	}
}

func TestConfirmManualRequiresName(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts, "/api/confirmar", `{"asistencia":true}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 without a name, got %d", resp.StatusCode)
	}

	var out struct {
		Key string              `json:"clave"`
		Rec models.Confirmation `json:"confirmacion"`
	}
	resp = postJSON(t, ts, "/api/confirmar", `{"asistencia":true,"nombre":"María Díaz"}`, &out)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.HasPrefix(out.Key, "manual-") || !out.Rec.Manual {
		t.Errorf("manual confirmation not synthesized: %+v", out)
	}
}

func TestPrefillEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	var out struct {
		Guest    models.Guest        `json:"invitado"`
		Rec      models.Confirmation `json:"confirmacion"`
		Existing bool                `json:"existente"`
	}
	resp := getJSON(t, ts, "/api/confirmar/7", &out)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if out.Guest.ID != 7 || out.Existing {
		t.Errorf("unexpected prefill: %+v", out)
	}
	if out.Rec.Companions != 2 {
		t.Errorf("prefill should default to the guest allowance: %+v", out.Rec)
	}
}

func TestEditAndRestoreContactEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodPatch, ts.URL+"/api/invitados/7/contacto", strings.NewReader(`{"telefono":"5491100001111"}`))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PATCH failed: %v", err)
	}
	defer resp.Body.Close()
	var g models.Guest
	if err := json.NewDecoder(resp.Body).Decode(&g); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if g.Phone != "5491100001111" || g.Email != "juan@example.com" {
		t.Errorf("override not reflected: %+v", g)
	}

	req, err = http.NewRequest(http.MethodDelete, ts.URL+"/api/invitados/7/contacto?campo=telefono", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE failed: %v", err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&g); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if g.Phone != "+54 11 5555-1234" {
		t.Errorf("source phone not restored: %q", g.Phone)
	}
}

func TestExportEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := getJSON(t, ts, "/api/invitados/export?formato=csv", nil)
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("unexpected content type: %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "invitados.csv") {
		t.Errorf("unexpected disposition: %q", cd)
	}

	resp = getJSON(t, ts, "/api/invitados/export?formato=txt", nil)
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected content type: %q", ct)
	}
}

func TestLinkAndQREndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	var link models.ConfirmationLink
	resp := getJSON(t, ts, "/api/invitados/7/link", &link)
	if resp.StatusCode != http.StatusOK || link.URL != "https://example.com/confirmar/7" {
		t.Errorf("unexpected link: %d %+v", resp.StatusCode, link)
	}

	resp = getJSON(t, ts, "/api/invitados/7/link/qr", nil)
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("unexpected content type: %q", ct)
	}
}

func TestBackupRoundTripOverHTTP(t *testing.T) {
	ts, _ := newTestServer(t)

	postJSON(t, ts, "/api/confirmar/7", `{"asistencia":true,"acompanantes":1}`, nil)

	r, err := http.Get(ts.URL + "/api/backup")
	if err != nil {
		t.Fatalf("GET backup: %v", err)
	}
	defer r.Body.Close()
	if r.StatusCode != http.StatusOK {
		t.Fatalf("export failed: %d", r.StatusCode)
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}

	// Existing records gate the import behind explicit confirmation.
	resp := postJSON(t, ts, "/api/backup", string(data), nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 without sobrescribir, got %d", resp.StatusCode)
	}
	resp = postJSON(t, ts, "/api/backup?sobrescribir=true", string(data), nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("confirmed import failed: %d", resp.StatusCode)
	}
}

func TestNotificationsCount(t *testing.T) {
	ts, _ := newTestServer(t)

	var out map[string]int
	getJSON(t, ts, "/api/notificaciones", &out)
	if out["confirmaciones"] != 0 {
		t.Errorf("expected 0 pending notifications, got %d", out["confirmaciones"])
	}

	postJSON(t, ts, "/api/confirmar/7", `{"asistencia":true}`, nil)
	getJSON(t, ts, "/api/notificaciones", &out)
	if out["confirmaciones"] != 1 {
		t.Errorf("expected 1 pending notification, got %d", out["confirmaciones"])
	}
}

func TestSingleWizardFlowOverHTTP(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts, "/api/asistente/individual/avanzar", "", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("advancing without a guest should 409, got %d", resp.StatusCode)
	}

	resp = postJSON(t, ts, "/api/asistente/individual/invitado", `{"id":7}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("select failed: %d", resp.StatusCode)
	}
	resp = postJSON(t, ts, "/api/asistente/individual/avanzar", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("advance after selection failed: %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	postJSON(t, ts, "/api/confirmar/7", `{"asistencia":true}`, nil)

	r, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(body), "invites_confirmations_total 1") {
		t.Errorf("confirmation counter missing: %s", body)
	}
}
