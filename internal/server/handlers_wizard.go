package server

import (
	"errors"
	"net/http"
	"strconv"

	"wedding-invites/internal/models"
	"wedding-invites/internal/wizard"
)

var errIDOrGroupRequired = errors.New("either id or grupoId is required")

func (s *Server) routeSingleWizard(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/asistente/individual", s.handleSingleStatus)
	mux.HandleFunc("POST /api/asistente/individual/invitado", s.handleSingleSelect)
	mux.HandleFunc("PUT /api/asistente/individual/diseno", s.handleSingleDesign)
	mux.HandleFunc("GET /api/asistente/individual/tarjeta", s.handleSingleCard)
	mux.HandleFunc("GET /api/asistente/individual/mensaje", s.handleSingleMessage)
	mux.HandleFunc("PUT /api/asistente/individual/mensaje", s.handleSingleOverride)
	mux.HandleFunc("POST /api/asistente/individual/mensaje/copiado", s.handleSingleCopied)
	mux.HandleFunc("POST /api/asistente/individual/avanzar", s.handleSingleAdvance)
	mux.HandleFunc("POST /api/asistente/individual/retroceder", s.handleSingleRetreat)
	mux.HandleFunc("POST /api/asistente/individual/enviar", s.handleSingleSend)
	mux.HandleFunc("POST /api/asistente/individual/reiniciar", s.handleSingleReset)
}

func (s *Server) singleStatus() map[string]any {
	return map[string]any{
		"paso":     int(s.single.State()),
		"nombre":   s.single.State().String(),
		"invitado": s.single.Guest(),
		"diseno":   s.single.Design(),
	}
}

func (s *Server) handleSingleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.singleStatus())
}

func (s *Server) handleSingleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID int `json:"id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	g, err := s.loader.Get(r.Context(), req.ID)
	if err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	if err := s.single.SelectGuest(r.Context(), g); err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.singleStatus())
}

func (s *Server) handleSingleDesign(w http.ResponseWriter, r *http.Request) {
	var d models.InvitationDesign
	if err := decodeJSON(r, &d); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.single.SaveDesign(r.Context(), d); err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.singleStatus())
}

func (s *Server) handleSingleCard(w http.ResponseWriter, r *http.Request) {
	png, filename, err := s.single.RenderCard(r.Context())
	if err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Write(png)
}

func (s *Server) handleSingleMessage(w http.ResponseWriter, r *http.Request) {
	text, err := s.single.Message(r.Context())
	if err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"mensaje": text})
}

func (s *Server) handleSingleOverride(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"mensaje"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.single.OverrideMessage(req.Message)
	s.writeJSON(w, http.StatusOK, s.singleStatus())
}

func (s *Server) handleSingleCopied(w http.ResponseWriter, r *http.Request) {
	s.single.MarkCopied()
	s.writeJSON(w, http.StatusOK, s.singleStatus())
}

func (s *Server) handleSingleAdvance(w http.ResponseWriter, r *http.Request) {
	if err := s.single.Advance(); err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.singleStatus())
}

func (s *Server) handleSingleRetreat(w http.ResponseWriter, r *http.Request) {
	if err := s.single.Retreat(); err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.singleStatus())
}

func (s *Server) handleSingleSend(w http.ResponseWriter, r *http.Request) {
	link, err := s.single.Send(r.Context())
	if err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	s.metrics.sends.WithLabelValues(string(models.SendIndividual)).Inc()
	s.writeJSON(w, http.StatusOK, map[string]string{"url": link})
}

func (s *Server) handleSingleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.single.Reset(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.singleStatus())
}

func (s *Server) routeBulkWizard(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/asistente/masivo", s.handleBulkStatus)
	mux.HandleFunc("POST /api/asistente/masivo/seleccion", s.handleBulkSelect)
	mux.HandleFunc("PUT /api/asistente/masivo/plantilla", s.handleBulkTemplate)
	mux.HandleFunc("GET /api/asistente/masivo/plantilla/ejemplo", s.handleBulkExample)
	mux.HandleFunc("POST /api/asistente/masivo/tarjetas", s.handleBulkCards)
	mux.HandleFunc("GET /api/asistente/masivo/previsualizacion", s.handleBulkPreview)
	mux.HandleFunc("POST /api/asistente/masivo/previsualizacion/siguiente", s.handleBulkPreviewNext)
	mux.HandleFunc("POST /api/asistente/masivo/previsualizacion/anterior", s.handleBulkPreviewPrev)
	mux.HandleFunc("PUT /api/asistente/masivo/canal", s.handleBulkChannel)
	mux.HandleFunc("POST /api/asistente/masivo/progreso/{id}/texto", s.handleBulkTextCopied)
	mux.HandleFunc("POST /api/asistente/masivo/progreso/{id}/tarjeta", s.handleBulkCardCopied)
	mux.HandleFunc("POST /api/asistente/masivo/progreso/{id}/enviado", s.handleBulkMarkSent)
	mux.HandleFunc("GET /api/asistente/masivo/progreso/{id}/enlace", s.handleBulkSendLink)
	mux.HandleFunc("POST /api/asistente/masivo/avanzar", s.handleBulkAdvance)
	mux.HandleFunc("POST /api/asistente/masivo/retroceder", s.handleBulkRetreat)
	mux.HandleFunc("GET /api/asistente/masivo/resumen", s.handleBulkSummary)
	mux.HandleFunc("POST /api/asistente/masivo/reiniciar", s.handleBulkReset)
}

func (s *Server) bulkStatus() map[string]any {
	return map[string]any{
		"paso":      int(s.bulk.State()),
		"nombre":    s.bulk.State().String(),
		"seleccion": s.bulk.Selection(),
		"plantilla": s.bulk.Template(),
		"canal":     s.bulk.Channel(),
		"resumen":   s.bulk.Summarize(),
	}
}

func (s *Server) handleBulkStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.bulkStatus())
}

// handleBulkSelect toggles one guest or a whole group. The group form uses
// grupoId plus seleccionado; the single form uses id plus seleccionado.
func (s *Server) handleBulkSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       *int `json:"id"`
		GroupID  *int `json:"grupoId"`
		Selected bool `json:"seleccionado"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	switch {
	case req.ID != nil:
		g, err := s.loader.Get(r.Context(), *req.ID)
		if err != nil {
			s.writeError(w, s.statusFor(err), err)
			return
		}
		if req.Selected {
			err = s.bulk.Select(r.Context(), g)
		} else {
			err = s.bulk.Deselect(r.Context(), g.ID)
		}
		if err != nil {
			s.writeError(w, s.statusFor(err), err)
			return
		}
	case req.GroupID != nil:
		guests, err := s.loader.Load(r.Context())
		if err != nil {
			s.writeError(w, s.statusFor(err), err)
			return
		}
		var group []models.Guest
		for _, g := range guests {
			if g.GroupID == *req.GroupID {
				group = append(group, g)
			}
		}
		if err := s.bulk.SelectGroup(r.Context(), group, req.Selected); err != nil {
			s.writeError(w, s.statusFor(err), err)
			return
		}
	default:
		s.writeError(w, http.StatusBadRequest, errIDOrGroupRequired)
		return
	}
	s.writeJSON(w, http.StatusOK, s.bulkStatus())
}

func (s *Server) handleBulkTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Template string `json:"mensajePersonalizado"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.bulk.SaveTemplate(r.Context(), req.Template); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.bulkStatus())
}

func (s *Server) handleBulkExample(w http.ResponseWriter, r *http.Request) {
	example, err := s.bulk.PreviewExample()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"ejemplo": example})
}

// handleBulkCards rasterizes one card per selected guest sequentially and
// reports the produced file names. The bytes are fetched per guest through
// the card endpoint; this call only runs the batch and its pacing.
func (s *Server) handleBulkCards(w http.ResponseWriter, r *http.Request) {
	design := s.single.Design()
	var files []string
	err := s.bulk.RenderCards(r.Context(), design, func(g models.Guest, png []byte, filename string) error {
		files = append(files, filename)
		return nil
	})
	if err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tarjetas": files})
}

func (s *Server) handleBulkPreview(w http.ResponseWriter, r *http.Request) {
	g, text, err := s.bulk.Preview()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"invitado": g, "mensaje": text})
}

func (s *Server) handleBulkPreviewNext(w http.ResponseWriter, r *http.Request) {
	s.bulk.PreviewNext()
	s.handleBulkPreview(w, r)
}

func (s *Server) handleBulkPreviewPrev(w http.ResponseWriter, r *http.Request) {
	s.bulk.PreviewPrev()
	s.handleBulkPreview(w, r)
}

func (s *Server) handleBulkChannel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Channel wizard.Channel `json:"metodoEnvio"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.bulk.SetChannel(r.Context(), req.Channel); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.bulkStatus())
}

func (s *Server) handleBulkTextCopied(w http.ResponseWriter, r *http.Request) {
	s.bulkProgressMark(w, r, s.bulk.MarkTextCopied)
}

func (s *Server) handleBulkCardCopied(w http.ResponseWriter, r *http.Request) {
	s.bulkProgressMark(w, r, s.bulk.MarkCardCopied)
}

func (s *Server) bulkProgressMark(w http.ResponseWriter, r *http.Request, mark func(int) error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := mark(id); err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	p, err := s.bulk.ProgressFor(id)
	if err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleBulkMarkSent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.bulk.MarkSent(r.Context(), id); err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	s.metrics.sends.WithLabelValues(string(models.SendBulk)).Inc()
	p, err := s.bulk.ProgressFor(id)
	if err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleBulkSendLink(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	link, err := s.bulk.SendLink(id)
	if err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"url": link})
}

func (s *Server) handleBulkAdvance(w http.ResponseWriter, r *http.Request) {
	if err := s.bulk.Advance(); err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.bulkStatus())
}

func (s *Server) handleBulkRetreat(w http.ResponseWriter, r *http.Request) {
	if err := s.bulk.Retreat(); err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.bulkStatus())
}

func (s *Server) handleBulkSummary(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"resumen":  s.bulk.Summarize(),
		"omitidos": s.bulk.SkippedGuests(),
	})
}

func (s *Server) handleBulkReset(w http.ResponseWriter, r *http.Request) {
	if err := s.bulk.Reset(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.bulkStatus())
}
