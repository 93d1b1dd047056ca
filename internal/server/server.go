// Package server exposes the application over HTTP: the list views, the two
// invitation wizards, the RSVP page, backup, the event stream and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"wedding-invites/internal/backup"
	"wedding-invites/internal/bus"
	"wedding-invites/internal/card"
	"wedding-invites/internal/catalog"
	"wedding-invites/internal/config"
	"wedding-invites/internal/guestlist"
	"wedding-invites/internal/history"
	"wedding-invites/internal/message"
	"wedding-invites/internal/rsvp"
	"wedding-invites/internal/store"
	"wedding-invites/internal/wizard"
)

// Server wires every component behind the HTTP surface. One single-flow and
// one bulk-flow wizard session exist at a time; this is a single-operator
// tool.
type Server struct {
	cfg     *config.Config
	store   store.Store
	bus     *bus.Bus
	loader  *catalog.Loader
	lists   *guestlist.Service
	rsvp    *rsvp.Service
	history *history.Log
	backup  *backup.Manager
	cards   *card.Renderer
	single  *wizard.Single
	bulk    *wizard.Bulk
	log     zerolog.Logger
	metrics *metrics
	reg     *prometheus.Registry
}

// New assembles the server and its wizard sessions.
func New(ctx context.Context, cfg *config.Config, st store.Store, b *bus.Bus, log zerolog.Logger) (*Server, error) {
	cards, err := card.NewRenderer()
	if err != nil {
		return nil, err
	}

	loader := catalog.NewLoader(cfg.GuestSource, st, log)
	lists := guestlist.NewService(loader, st, b, log)
	rsvpSvc := rsvp.NewService(st, b, cfg.SiteURL, log)
	hist := history.New(st, cfg.HistoryLimit, log)

	eventDate := cfg.EventDate.Format("Monday, 02 January 2006")
	reg := prometheus.NewRegistry()

	return &Server{
		cfg:     cfg,
		store:   st,
		bus:     b,
		loader:  loader,
		lists:   lists,
		rsvp:    rsvpSvc,
		history: hist,
		backup:  backup.NewManager(st, b, log),
		cards:   cards,
		single:  wizard.NewSingle(ctx, st, hist, cards, lists, rsvpSvc, eventDate, log),
		bulk:    wizard.NewBulk(ctx, st, hist, cards, lists, cfg.CardDelay, log),
		log:     log.With().Str("component", "server").Logger(),
		metrics: newMetrics(reg),
		reg:     reg,
	}, nil
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/acceso", s.handleAccess)

	mux.HandleFunc("GET /api/invitados", s.handleListGuests)
	mux.HandleFunc("GET /api/invitados/export", s.handleExportGuests)
	mux.HandleFunc("GET /api/invitados/{id}", s.handleGetGuest)
	mux.HandleFunc("PATCH /api/invitados/{id}/contacto", s.handleEditContact)
	mux.HandleFunc("DELETE /api/invitados/{id}/contacto", s.handleRestoreContact)
	mux.HandleFunc("POST /api/invitados/{id}/envio", s.handleToggleSent)
	mux.HandleFunc("GET /api/invitados/{id}/link", s.handleLink)
	mux.HandleFunc("GET /api/invitados/{id}/link/qr", s.handleLinkQR)
	mux.HandleFunc("GET /api/invitados/{id}/tarjeta", s.handleCard)

	mux.HandleFunc("GET /api/confirmar/{id}", s.handlePrefill)
	mux.HandleFunc("POST /api/confirmar/{id}", s.handleConfirm)
	mux.HandleFunc("POST /api/confirmar", s.handleConfirmManual)
	mux.HandleFunc("GET /api/confirmados", s.handleConfirmed)
	mux.HandleFunc("GET /api/notificaciones", s.handleNotifications)

	mux.HandleFunc("GET /api/historial", s.handleHistory)

	mux.HandleFunc("GET /api/backup", s.handleBackupExport)
	mux.HandleFunc("POST /api/backup", s.handleBackupImport)

	s.routeSingleWizard(mux)
	s.routeBulkWizard(mux)

	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))

	return s.withLogging(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.RequestTimeout,
		WriteTimeout: s.cfg.RequestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.ListenAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Password != s.cfg.AccessPassword {
		s.writeError(w, http.StatusUnauthorized, errors.New("contraseña incorrecta"))
		return
	}
	if err := store.Set(r.Context(), s.store, store.KeyAccessGranted, true); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"accesoPermitido": true})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps domain errors onto HTTP statuses. Everything recoverable
// stays in the 4xx range so the operator can correct and retry.
func (s *Server) statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrGuestNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrBadShape):
		return http.StatusBadGateway
	case errors.Is(err, wizard.ErrTransition),
		errors.Is(err, backup.ErrOverwriteRequired),
		errors.Is(err, wizard.ErrAlreadySent):
		return http.StatusConflict
	case errors.Is(err, message.ErrInvalidPhone),
		errors.Is(err, message.ErrInvalidEmail),
		errors.Is(err, wizard.ErrChecklistIncomplete):
		return http.StatusUnprocessableEntity
	case errors.Is(err, rsvp.ErrNameRequired),
		errors.Is(err, backup.ErrBadSnapshot),
		errors.Is(err, wizard.ErrNotSelected):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
