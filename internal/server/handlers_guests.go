package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"wedding-invites/internal/guestlist"
)

func parseBoolParam(r *http.Request, name string) *bool {
	switch r.URL.Query().Get(name) {
	case "true", "si", "1":
		v := true
		return &v
	case "false", "no", "0":
		v := false
		return &v
	default:
		return nil
	}
}

func (s *Server) listParams(r *http.Request) (guestlist.Filter, guestlist.Sort, guestlist.Page) {
	q := r.URL.Query()

	f := guestlist.Filter{
		Group: q.Get("grupo"),
		Sent:  parseBoolParam(r, "enviado"),
		Query: q.Get("buscar"),
	}
	switch q.Get("confirmacion") {
	case "confirmados":
		v := true
		f.Confirmed = &v
	case "pendientes":
		v := false
		f.Confirmed = &v
	}

	srt := guestlist.Sort{
		Field: q.Get("orden"),
		Desc:  q.Get("dir") == "desc",
	}

	page := guestlist.Page{Size: s.cfg.PageSize}
	if n, err := strconv.Atoi(q.Get("pagina")); err == nil {
		page.Number = n
	}
	return f, srt, page
}

func (s *Server) handleListGuests(w http.ResponseWriter, r *http.Request) {
	f, srt, page := s.listParams(r)
	result, err := s.lists.List(r.Context(), f, srt, page)
	if err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleExportGuests(w http.ResponseWriter, r *http.Request) {
	f, srt, _ := s.listParams(r)
	guests, err := s.lists.Filtered(r.Context(), f, srt)
	if err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}

	switch r.URL.Query().Get("formato") {
	case "txt":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="invitados.txt"`)
		w.Write(guestlist.TXT(guests))
	default:
		data, err := guestlist.CSV(guests)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="invitados.csv"`)
		w.Write(data)
	}
}

func (s *Server) guestID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		return 0, fmt.Errorf("invalid guest id %q", r.PathValue("id"))
	}
	return id, nil
}

func (s *Server) handleGetGuest(w http.ResponseWriter, r *http.Request) {
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
	s.writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleEditContact(w http.ResponseWriter, r *http.Request) {
	id, err := s.guestID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Phone *string `json:"telefono"`
		Email *string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.lists.EditContact(r.Context(), id, req.Phone, req.Email); err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	g, err := s.loader.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleRestoreContact(w http.ResponseWriter, r *http.Request) {
	id, err := s.guestID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	field := r.URL.Query().Get("campo")
	if field == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("query parameter campo is required"))
		return
	}
	if err := s.lists.RestoreContact(r.Context(), id, field); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	g, err := s.loader.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleToggleSent(w http.ResponseWriter, r *http.Request) {
	id, err := s.guestID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	now, err := s.lists.ToggleSent(r.Context(), id)
	if err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"enviado": now})
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
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
	link, err := s.rsvp.Link(r.Context(), g)
	if err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, link)
}

func (s *Server) handleLinkQR(w http.ResponseWriter, r *http.Request) {
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
	size, _ := strconv.Atoi(r.URL.Query().Get("tamano"))
	png, err := s.rsvp.LinkQR(r.Context(), g, size)
	if err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
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
	design := s.single.Design()
	png, err := s.cards.PNG(g, design)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.history.All(r.Context())
	if err != nil {
		s.writeError(w, s.statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}
