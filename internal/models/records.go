package models

// Confirmation is a guest's (or manual respondent's) attendance answer.
// One record per confirmation key; resubmission overwrites in place.
type Confirmation struct {
	Attending   bool   `json:"asistencia"`
	Companions  int    `json:"acompanantes"`
	Allergies   string `json:"alergias,omitempty"`
	Message     string `json:"mensaje,omitempty"`
	Name        string `json:"nombre"`
	ConfirmedAt string `json:"fechaConfirmacion"`
	Manual      bool   `json:"confirmacionManual"`
}

// ConfirmationLink is a lazily minted shareable RSVP URL for one guest,
// cached so the link text is stable once first generated.
type ConfirmationLink struct {
	URL     string `json:"url"`
	Message string `json:"mensaje"`
}

// SendType tags a history entry with the flow that produced it.
type SendType string

const (
	SendIndividual SendType = "individual"
	SendBulk       SendType = "masivo"
)

// SendOutcome records whether a send attempt could be handed to a channel.
type SendOutcome string

const (
	SendOK     SendOutcome = "exitoso"
	SendFailed SendOutcome = "fallido"
)

// SendRecord is one append-only entry of the send history.
type SendRecord struct {
	ID        string      `json:"id"`
	GuestID   int         `json:"invitadoId"`
	GuestName string      `json:"invitadoNombre"`
	Phone     string      `json:"telefono"`
	Group     string      `json:"grupo"`
	SentAt    string      `json:"fechaEnvio"`
	Message   string      `json:"mensaje"`
	Type      SendType    `json:"tipo,omitempty"`
	Outcome   SendOutcome `json:"estado,omitempty"`
}

// InvitationDesign holds the shared card fields of the single-invitation
// flow. One instance is shared by all guests in a wizard session; only the
// greeting line is guest-specific.
type InvitationDesign struct {
	CoupleNames string `json:"nombresNovios"`
	Date        string `json:"fecha"`
	Time        string `json:"hora"`
	Venue       string `json:"lugar"`
	DressCode   string `json:"codigoVestimenta"`
	LocationURL string `json:"linkUbicacion"`
	GiftDetails string `json:"detallesRegalo"`
}

// BulkDesign holds the one message template shared by a whole bulk batch.
type BulkDesign struct {
	Template string `json:"mensajePersonalizado"`
}
