// Package card rasterizes the invitation design into a downloadable bitmap.
// The card is drawn at half scale and resampled up to the fixed target
// dimensions, matching the export size of the original tool.
package card

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"wedding-invites/internal/models"
)

// Target card dimensions in pixels.
const (
	Width  = 1080
	Height = 1920
)

const (
	baseWidth  = Width / 2
	baseHeight = Height / 2
)

var (
	background = color.RGBA{R: 0xfd, G: 0xf6, B: 0xec, A: 0xff}
	ink        = color.RGBA{R: 0x4a, G: 0x3f, B: 0x35, A: 0xff}
	accent     = color.RGBA{R: 0xb0, G: 0x7d, B: 0x62, A: 0xff}
)

// Renderer draws invitation cards. It is safe for concurrent use: the faces
// are read-only after construction.
type Renderer struct {
	title   font.Face
	heading font.Face
	body    font.Face
}

// NewRenderer parses the embedded fonts and prepares the type faces.
func NewRenderer() (*Renderer, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("card: parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("card: parse bold font: %w", err)
	}

	title, err := opentype.NewFace(bold, &opentype.FaceOptions{Size: 34, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("card: build title face: %w", err)
	}
	heading, err := opentype.NewFace(bold, &opentype.FaceOptions{Size: 22, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("card: build heading face: %w", err)
	}
	body, err := opentype.NewFace(regular, &opentype.FaceOptions{Size: 16, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("card: build body face: %w", err)
	}

	return &Renderer{title: title, heading: heading, body: body}, nil
}

// Render draws the card for one guest and returns it at the target size.
func (r *Renderer) Render(g models.Guest, d models.InvitationDesign) image.Image {
	base := image.NewRGBA(image.Rect(0, 0, baseWidth, baseHeight))
	draw.Draw(base, base.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	y := 120
	y = r.drawCentered(base, r.heading, accent, fmt.Sprintf("¡Hola %s!", g.Name), y)
	y += 30
	y = r.drawCentered(base, r.body, ink, "Te invitamos a celebrar nuestro amor", y)
	y += 40
	y = r.drawCentered(base, r.title, ink, d.CoupleNames, y)
	y += 60
	y = r.drawCentered(base, r.heading, ink, d.Date, y)
	y += 30
	y = r.drawCentered(base, r.body, ink, d.Time, y)
	y += 40
	venue, _, _ := strings.Cut(d.Venue, "\n")
	y = r.drawCentered(base, r.body, ink, venue, y)
	if d.DressCode != "" {
		y += 40
		y = r.drawCentered(base, r.body, accent, "Vestimenta: "+d.DressCode, y)
	}
	if d.GiftDetails != "" {
		y += 40
		r.drawCentered(base, r.body, ink, d.GiftDetails, y)
	}

	return imaging.Resize(base, Width, Height, imaging.Lanczos)
}

// PNG renders the card and encodes it.
func (r *Renderer) PNG(g models.Guest, d models.InvitationDesign) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, r.Render(g, d)); err != nil {
		return nil, fmt.Errorf("card: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawCentered(dst *image.RGBA, face font.Face, col color.Color, text string, y int) int {
	if text == "" {
		return y
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
	}
	width := d.MeasureString(text)
	d.Dot = fixed.Point26_6{
		X: (fixed.I(baseWidth) - width) / 2,
		Y: fixed.I(y),
	}
	d.DrawString(text)
	metrics := face.Metrics()
	return y + (metrics.Height.Ceil() * 5 / 4)
}

// FileName derives the download file name from the guest's name.
func FileName(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '-' || r == '_':
			return '-'
		default:
			return -1
		}
	}, slug)
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "invitado"
	}
	return "invitacion-" + slug + ".png"
}
