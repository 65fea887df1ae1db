// Package render draws ticket images delivered alongside allocation notices.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"

	"github.com/disintegration/imaging"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	defaultWidth  = 800
	defaultHeight = 450
	jpegQuality   = 85
	minFontSize   = 48
)

var (
	backgroundColor = color.NRGBA{R: 245, G: 245, B: 245, A: 255}
	numberColor     = color.NRGBA{R: 20, G: 20, B: 20, A: 255}
	shadowColor     = color.NRGBA{A: 255}
)

// Renderer produces JPEG ticket images. It is safe for concurrent use.
type Renderer struct {
	template image.Image
	title    string
	font     *opentype.Font
	log      *slog.Logger
}

// NewRenderer loads templatePath as the ticket background. An empty or unreadable
// template falls back to a plain background.
func NewRenderer(templatePath, title string, log *slog.Logger) (*Renderer, error) {
	if log == nil {
		log = slog.Default()
	}

	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse ticket font: %w", err)
	}

	r := &Renderer{
		title: title,
		font:  f,
		log:   log.With(slog.String("component", "ticket_renderer")),
	}

	if templatePath != "" {
		tmpl, err := imaging.Open(templatePath)
		if err != nil {
			r.log.Error("failed to open ticket template, using plain background",
				slog.String("path", templatePath),
				slog.Any("error", err),
			)
		} else {
			r.template = tmpl
		}
	}

	return r, nil
}

// Render draws ticket number centered on the background and encodes it as JPEG.
func (r *Renderer) Render(number int) ([]byte, error) {
	canvas := r.background()
	bounds := canvas.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	size := float64(min(width, height)) * 0.28
	if size < minFontSize {
		size = minFontSize
	}

	face, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	defer face.Close()

	text := Label(number)
	drawer := &font.Drawer{Dst: canvas, Face: face}
	textWidth := drawer.MeasureString(text).Ceil()
	metrics := face.Metrics()
	textHeight := (metrics.Ascent + metrics.Descent).Ceil()

	x := (width - textWidth) / 2
	baseline := (height-textHeight)/2 + metrics.Ascent.Ceil()
	shadow := max(1, int(size)/40)

	drawer.Src = image.NewUniform(shadowColor)
	drawer.Dot = fixed.P(x+shadow, baseline+shadow)
	drawer.DrawString(text)

	drawer.Src = image.NewUniform(numberColor)
	drawer.Dot = fixed.P(x, baseline)
	drawer.DrawString(text)

	r.stampQR(canvas, number)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("encode ticket image: %w", err)
	}
	return buf.Bytes(), nil
}

// Label is the caption used for ticket number n.
func Label(n int) string {
	return fmt.Sprintf("#%d", n)
}

func (r *Renderer) background() *image.NRGBA {
	if r.template != nil {
		return imaging.Clone(r.template)
	}
	return imaging.New(defaultWidth, defaultHeight, backgroundColor)
}

// stampQR places a small QR code with the ticket label in the bottom right corner.
// Images too small to hold it are left unstamped.
func (r *Renderer) stampQR(canvas draw.Image, number int) {
	bounds := canvas.Bounds()
	side := min(bounds.Dx(), bounds.Dy()) / 4
	if side < 64 {
		return
	}

	content := Label(number)
	if r.title != "" {
		content = r.title + " " + content
	}

	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		r.log.Warn("failed to encode ticket qr code", slog.Any("error", err))
		return
	}
	qr.DisableBorder = true

	margin := side / 8
	origin := image.Pt(bounds.Max.X-side-margin, bounds.Max.Y-side-margin)
	draw.Draw(canvas, image.Rectangle{Min: origin, Max: origin.Add(image.Pt(side, side))}, qr.Image(side), image.Point{}, draw.Over)
}
