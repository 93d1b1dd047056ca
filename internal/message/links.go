package message

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrInvalidPhone means the guest's phone has too few digits to build a
	// WhatsApp link. Recoverable: fix the contact and retry.
	ErrInvalidPhone = errors.New("message: phone number is not usable")
	// ErrInvalidEmail means the address cannot be used for a mailto link.
	ErrInvalidEmail = errors.New("message: email address is not usable")
)

// minPhoneDigits is the shortest digit string accepted for a deep link.
const minPhoneDigits = 8

// DigitsOnly strips everything but decimal digits from a free-text phone.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhone reduces a free-text phone to its digits and validates the
// result is long enough to address a WhatsApp account.
func NormalizePhone(phone string) (string, error) {
	digits := DigitsOnly(phone)
	if len(digits) < minPhoneDigits {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, phone)
	}
	return digits, nil
}

// WhatsAppLink builds a wa.me deep link carrying text to the given phone.
func WhatsAppLink(phone, text string) (string, error) {
	digits, err := NormalizePhone(phone)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://wa.me/%s?text=%s", digits, url.QueryEscape(text)), nil
}

// MailtoLink builds a mailto deep link with subject and body pre-filled.
func MailtoLink(addr, subject, body string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" || !strings.Contains(addr, "@") {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, addr)
	}
	q := url.Values{}
	q.Set("subject", subject)
	q.Set("body", body)
	return fmt.Sprintf("mailto:%s?%s", addr, q.Encode()), nil
}

// ConfirmationURL builds the per-key RSVP page URL on the public site.
func ConfirmationURL(origin, key string) string {
	return strings.TrimRight(origin, "/") + "/confirmar/" + key
}
