// Placeholder card generation for articles whose image resolution came
// back empty. Produces a deterministic geometric pattern seeded from the
// article's hostname, with the brand token overlaid as text, so a given
// source always renders the same card.
package main

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	cardWidth  = 600
	cardHeight = 400
)

// renderPlaceholder creates a PNG card for a hostname. An empty host
// yields a generic unlabeled card.
func renderPlaceholder(host string) ([]byte, error) {
	img := image.NewGray(image.Rect(0, 0, cardWidth, cardHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{0xF2}), image.Point{}, draw.Src)

	hash := sha256.Sum256([]byte(host))
	drawCardPattern(img, hash)

	label := brandToken(host)
	if label != "" {
		face, err := loadFace(gobold.TTF, 40)
		if err != nil {
			return nil, fmt.Errorf("loading font: %w", err)
		}
		drawLabelBand(img, label, face)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding placeholder PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// drawCardPattern fills the card with a grid of circles whose size and
// shade are derived from the hash bytes, leaving a central band clear
// for the label.
func drawCardPattern(img *image.Gray, hash [32]byte) {
	const (
		cols  = 10
		rows  = 8
		cellW = cardWidth / cols
		cellH = cardHeight / rows
		// Rows reserved for the label band
		bandRowStart = 3
		bandRowEnd   = 4
	)

	for row := 0; row < rows; row++ {
		if row >= bandRowStart && row <= bandRowEnd {
			continue
		}
		for col := 0; col < cols; col++ {
			idx := (row*cols + col) % len(hash)
			b := hash[idx] ^ byte(row*17+col*31)

			// Light shades so the card reads as a background, not content
			shade := uint8(0xA0 + int(b)*(0xE8-0xA0)/255)

			idx2 := (idx + 7) % len(hash)
			b2 := hash[idx2] ^ byte(row*13+col*41)
			maxR := float64(cellW) / 2.4
			minR := maxR * 0.3
			radius := minR + (maxR-minR)*float64(b2)/255.0

			cx := col*cellW + cellW/2
			cy := row*cellH + cellH/2
			fillCircle(img, cx, cy, radius, color.Gray{shade})
		}
	}
}

func fillCircle(img *image.Gray, cx, cy int, radius float64, c color.Gray) {
	r := int(math.Ceil(radius))
	r2 := radius * radius
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if float64(dx*dx+dy*dy) <= r2 {
				x, y := cx+dx, cy+dy
				if x >= 0 && x < cardWidth && y >= 0 && y < cardHeight {
					img.SetGray(x, y, c)
				}
			}
		}
	}
}

// drawLabelBand renders the brand label centred in a clear band across
// the middle of the card.
func drawLabelBand(img *image.Gray, label string, face font.Face) {
	const (
		bandTop    = cardHeight/2 - 50
		bandBottom = cardHeight/2 + 50
	)

	draw.Draw(img,
		image.Rect(0, bandTop, cardWidth, bandBottom),
		image.NewUniform(color.Gray{0xF2}),
		image.Point{},
		draw.Src,
	)

	w := font.MeasureString(face, label).Ceil()
	if w > cardWidth-40 {
		// Truncate rather than overflow; hostnames can be long
		for len(label) > 1 && font.MeasureString(face, label+"…").Ceil() > cardWidth-40 {
			label = label[:len(label)-1]
		}
		label += "…"
		w = font.MeasureString(face, label).Ceil()
	}
	x := (cardWidth - w) / 2
	y := (bandTop+bandBottom)/2 + face.Metrics().Ascent.Ceil()/2 - 4

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Gray{0x44}),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(label)
}

// loadFace parses an OpenType font and returns a Face at the given size in points.
func loadFace(ttf []byte, sizePt float64) (font.Face, error) {
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    sizePt,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
