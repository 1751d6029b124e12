package testsupport

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// EncodePNG renders a solid RGBA image of the given dimensions.
func EncodePNG(t testing.TB, width, height int, r, g, b, a uint8) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	fill := color.NRGBA{R: r, G: g, B: b, A: a}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// WritePNG writes a solid RGBA PNG to path.
func WritePNG(t testing.TB, path string, width, height int, r, g, b, a uint8) {
	t.Helper()
	WriteFile(t, path, EncodePNG(t, width, height, r, g, b, a))
}
