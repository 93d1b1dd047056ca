package models

// Catalog is the top-level shape of the static guest source. The grouping
// array is the only part of the document the application relies on.
type Catalog struct {
	Groups []Group `json:"grupos"`
}

// Group is a family or party of guests as provided by the source file.
type Group struct {
	ID     int           `json:"id"`
	Name   string        `json:"nombre"`
	Guests []SourceGuest `json:"invitados"`
}

// Contact holds the free-text contact fields of a source guest.
type Contact struct {
	Phone    string `json:"telefono"`
	WhatsApp string `json:"whatsapp,omitempty"`
	Email    string `json:"email"`
}

// SourceGuest is a guest exactly as it appears in the source file, before
// flattening and before any local override is layered on top.
type SourceGuest struct {
	ID         int     `json:"id"`
	Name       string  `json:"nombre"`
	Contact    Contact `json:"contacto"`
	Companions int     `json:"acompanantes"`
}

// Guest is a flattened catalog entry tagged with its originating group and
// merged with locally stored state. The source id is the only stable identity;
// overrides for ids that disappear from the source are orphaned silently.
type Guest struct {
	ID         int    `json:"id"`
	Name       string `json:"nombre"`
	Phone      string `json:"telefono"`
	Email      string `json:"email"`
	Companions int    `json:"acompanantes"`
	GroupID    int    `json:"grupoId"`
	GroupName  string `json:"grupoNombre"`
	Sent       bool   `json:"enviado"`
	Confirmed  bool   `json:"confirmado"`
}

// ContactOverride shadows the source contact fields of one guest. A nil field
// means "inherit from the source"; restoring a field deletes it here instead
// of copying the source value back, so later source edits are picked up again.
type ContactOverride struct {
	Phone *string `json:"telefono,omitempty"`
	Email *string `json:"email,omitempty"`
}

// Empty reports whether the override shadows nothing and can be dropped.
func (o ContactOverride) Empty() bool {
	return o.Phone == nil && o.Email == nil
}
