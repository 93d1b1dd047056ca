package rsvp

import (
	"context"
	"fmt"
	"strconv"

	qrcode "github.com/skip2/go-qrcode"

	"wedding-invites/internal/message"
	"wedding-invites/internal/models"
	"wedding-invites/internal/store"
)

// Link returns the guest's confirmation link, minting and caching it on
// first use. Later readers reuse the cached value, so the link text is
// stable once first generated.
func (s *Service) Link(ctx context.Context, g models.Guest) (models.ConfirmationLink, error) {
	key := strconv.Itoa(g.ID)
	var link models.ConfirmationLink

	err := store.Update(ctx, s.store, store.KeyConfirmationLinks, map[string]models.ConfirmationLink{},
		func(links map[string]models.ConfirmationLink) (map[string]models.ConfirmationLink, error) {
			if cached, ok := links[key]; ok && cached.URL != "" {
				link = cached
				return links, nil
			}
			url := message.ConfirmationURL(s.siteURL, key)
			link = models.ConfirmationLink{
				URL:     url,
				Message: message.ConfirmationRequest(g, url),
			}
			links[key] = link
			return links, nil
		})
	if err != nil {
		return models.ConfirmationLink{}, fmt.Errorf("rsvp: mint link: %w", err)
	}
	return link, nil
}

// Links returns every cached confirmation link keyed by guest id.
func (s *Service) Links(ctx context.Context) (map[string]models.ConfirmationLink, error) {
	links, err := store.Get(ctx, s.store, store.KeyConfirmationLinks, map[string]models.ConfirmationLink{})
	if err != nil {
		s.log.Warn().Err(err).Msg("confirmation links unreadable, returning empty")
		return map[string]models.ConfirmationLink{}, nil
	}
	return links, nil
}

// LinkQR returns a PNG QR code for the guest's confirmation link.
func (s *Service) LinkQR(ctx context.Context, g models.Guest, size int) ([]byte, error) {
	link, err := s.Link(ctx, g)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(link.URL, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("rsvp: encode qr: %w", err)
	}
	return png, nil
}
