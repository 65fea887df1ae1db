package render

import (
	"bytes"
	"image"
	"image/color"
	_ "image/jpeg"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	return img
}

func TestRender_PlainBackground(t *testing.T) {
	r, err := NewRenderer("", "Friends Raffle Draw", testLogger())
	require.NoError(t, err)

	data, err := r.Render(42)
	require.NoError(t, err)

	img := decode(t, data)
	assert.Equal(t, defaultWidth, img.Bounds().Dx())
	assert.Equal(t, defaultHeight, img.Bounds().Dy())
}

func TestRender_UsesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticket.png")
	require.NoError(t, imaging.Save(imaging.New(640, 320, color.NRGBA{R: 200, G: 180, B: 40, A: 255}), path))

	r, err := NewRenderer(path, "", testLogger())
	require.NoError(t, err)

	data, err := r.Render(7)
	require.NoError(t, err)

	img := decode(t, data)
	assert.Equal(t, 640, img.Bounds().Dx())
	assert.Equal(t, 320, img.Bounds().Dy())
}

func TestRender_MissingTemplateFallsBack(t *testing.T) {
	r, err := NewRenderer(filepath.Join(t.TempDir(), "missing.png"), "", testLogger())
	require.NoError(t, err)

	data, err := r.Render(1000)
	require.NoError(t, err)
	assert.Equal(t, defaultWidth, decode(t, data).Bounds().Dx())
}

func TestRender_DiffersPerNumber(t *testing.T) {
	r, err := NewRenderer("", "", testLogger())
	require.NoError(t, err)

	a, err := r.Render(1)
	require.NoError(t, err)
	b, err := r.Render(2)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "#17", Label(17))
}
