// Package message renders invitation texts and builds the outbound deep
// links that hand a composed message to WhatsApp or a mail client.
package message

import (
	"fmt"
	"strings"

	"wedding-invites/internal/models"
)

// Placeholder tokens accepted in bulk templates.
const (
	TokenName  = "{nombre}"
	TokenGroup = "{grupo}"
	TokenPhone = "{telefono}"
	TokenEmail = "{email}"
)

// DefaultBulkTemplate seeds the bulk design when no template has been saved.
const DefaultBulkTemplate = "¡Hola {nombre}! 🎉\n\n" +
	"Nos casamos y queremos compartir este día con vos.\n\n" +
	"Pronto te va a llegar la invitación con todos los detalles.\n\n" +
	"¡Te esperamos!\n\n" +
	"Con amor, los novios 💕"

// Substitute replaces every placeholder token in template with the guest's
// values. Substitution is total and order-independent: the result contains no
// tokens regardless of how many times or in what order they appear.
func Substitute(template string, g models.Guest) string {
	r := strings.NewReplacer(
		TokenName, g.Name,
		TokenGroup, g.GroupName,
		TokenPhone, g.Phone,
		TokenEmail, g.Email,
	)
	return r.Replace(template)
}

// Invitation renders the single-flow message for one guest: greeting, fixed
// event fields, location and confirmation links, gift text.
func Invitation(g models.Guest, d models.InvitationDesign, confirmURL string) string {
	signature := d.CoupleNames
	if _, after, ok := strings.Cut(d.CoupleNames, "de "); ok && after != "" {
		signature = after
	}
	venue, _, _ := strings.Cut(d.Venue, "\n")

	return fmt.Sprintf("¡Hola %s! 🎉\n\n"+
		"Te invitamos a celebrar nuestro amor:\n"+
		"💍 %s\n"+
		"📅 %s\n"+
		"🕒 %s\n"+
		"📍 %s\n\n"+
		"---- ADJUNTA AQUÍ LA IMAGEN DE LA INVITACIÓN ----\n\n"+
		"*Información importante:*\n"+
		"🔹 Cómo llegar: %s\n"+
		"🔹 Vestimenta: %s\n\n"+
		"*Tu presencia es nuestro mejor regalo*\n"+
		"Si deseas contribuir a nuestra luna de miel:\n"+
		"💌 %s\n\n"+
		"*Confirmá tu asistencia aquí:*\n"+
		"👉 %s\n\n"+
		"Con amor,\n%s",
		g.Name, d.CoupleNames, d.Date, d.Time, venue,
		d.LocationURL, d.DressCode, d.GiftDetails, confirmURL, signature)
}

// ConfirmationRequest renders the WhatsApp-ready text that accompanies a
// guest's personal confirmation link.
func ConfirmationRequest(g models.Guest, link string) string {
	return fmt.Sprintf("¡Hola %s! 🎉\n\n"+
		"Por favor confirmá tu asistencia a nuestra boda acá:\n"+
		"👉 %s\n\n"+
		"¡Gracias! 💕", g.Name, link)
}
