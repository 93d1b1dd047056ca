package guestlist

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"wedding-invites/internal/models"
)

// CSV renders the given (already filtered and sorted) guest set as CSV.
func CSV(guests []models.Guest) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"id", "nombre", "grupo", "telefono", "email", "acompanantes", "enviado", "confirmado"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("guestlist: write csv header: %w", err)
	}
	for _, g := range guests {
		row := []string{
			strconv.Itoa(g.ID),
			g.Name,
			g.GroupName,
			g.Phone,
			g.Email,
			strconv.Itoa(g.Companions),
			marcar(g.Sent),
			marcar(g.Confirmed),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("guestlist: write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("guestlist: flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// TXT renders the guest set as a readable plain-text listing.
func TXT(guests []models.Guest) []byte {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Lista de invitados (%d)\n", len(guests)))
	b.WriteString(strings.Repeat("-", 60) + "\n")
	for _, g := range guests {
		b.WriteString(fmt.Sprintf("Nombre: %s\n", g.Name))
		b.WriteString(fmt.Sprintf("Grupo: %s\n", g.GroupName))
		b.WriteString(fmt.Sprintf("Teléfono: %s\n", g.Phone))
		b.WriteString(fmt.Sprintf("Email: %s\n", g.Email))
		b.WriteString(fmt.Sprintf("Acompañantes: %d\n", g.Companions))
		b.WriteString(fmt.Sprintf("Enviado: %s | Confirmado: %s\n", marcar(g.Sent), marcar(g.Confirmed)))
		b.WriteString(strings.Repeat("-", 60) + "\n")
	}
	return []byte(b.String())
}

func marcar(v bool) string {
	if v {
		return "si"
	}
	return "no"
}
