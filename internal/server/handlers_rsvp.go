package server

import (
	"io"
	"net/http"

	"wedding-invites/internal/models"
)

func (s *Server) handlePrefill(w http.ResponseWriter, r *http.Request) {
	id, err := s.guestID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	g, err := s.loader.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	rec, exists, err := s.rsvp.Prefill(r.Context(), g)
	if err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"invitado":     g,
		"confirmacion": rec,
		"existente":    exists,
	})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id, err := s.guestID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	g, err := s.loader.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}

	var in models.Confirmation
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	key, rec, err := s.rsvp.Submit(r.Context(), g, in)
	if err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	s.metrics.confirmations.Inc()
	s.writeJSON(w, http.StatusOK, map[string]any{"clave": key, "confirmacion": rec})
}

// handleConfirmManual covers respondents that could not be matched against
// the catalog: the submitter's name is required and a time-based key is
// synthesized.
func (s *Server) handleConfirmManual(w http.ResponseWriter, r *http.Request) {
	var in models.Confirmation
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	key, rec, err := s.rsvp.SubmitManual(r.Context(), in.Name, in)
	if err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	s.metrics.confirmations.Inc()
	s.writeJSON(w, http.StatusOK, map[string]any{"clave": key, "confirmacion": rec})
}

func (s *Server) handleConfirmed(w http.ResponseWriter, r *http.Request) {
	summary, err := s.rsvp.Confirmed(r.Context())
	if err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	count, err := s.rsvp.PendingCount(r.Context())
	if err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"confirmaciones": count})
}

func (s *Server) handleBackupExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.backup.Export(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="backup-confirmaciones.json"`)
	w.Write(data)
}

func (s *Server) handleBackupImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	overwrite := r.URL.Query().Get("sobrescribir") == "true"
	if err := s.backup.Import(r.Context(), data, overwrite); err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"restaurado": true})
}
