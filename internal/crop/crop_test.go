package crop

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/snapq/capture-coordinator/pkg/schema"
)

func TestCropInBounds(t *testing.T) {
	frame := encodeTestFrame(t, 200, 100)

	out, err := Crop(frame, schema.Rect{X: 10, Y: 20, W: 50, H: 40})
	if err != nil {
		t.Fatalf("Crop returned error: %v", err)
	}

	w, h := decodeSize(t, out)
	if w != 50 || h != 40 {
		t.Fatalf("unexpected crop size: got %dx%d, want 50x40", w, h)
	}
}

func TestCropClampsToFrame(t *testing.T) {
	frame := encodeTestFrame(t, 100, 100)

	// Extends past the right and bottom edges; should clamp, not fail.
	out, err := Crop(frame, schema.Rect{X: 80, Y: 90, W: 500, H: 500})
	if err != nil {
		t.Fatalf("Crop returned error: %v", err)
	}

	w, h := decodeSize(t, out)
	if w != 20 || h != 10 {
		t.Fatalf("unexpected clamped size: got %dx%d, want 20x10", w, h)
	}
}

func TestCropNegativeOriginClamps(t *testing.T) {
	frame := encodeTestFrame(t, 100, 100)

	out, err := Crop(frame, schema.Rect{X: -30, Y: -30, W: 40, H: 40})
	if err != nil {
		t.Fatalf("Crop returned error: %v", err)
	}

	w, h := decodeSize(t, out)
	if w != 40 || h != 40 {
		t.Fatalf("unexpected size: got %dx%d, want 40x40", w, h)
	}
}

func TestCropFullyOutsideFails(t *testing.T) {
	frame := encodeTestFrame(t, 100, 100)

	_, err := Crop(frame, schema.Rect{X: 500, Y: 500, W: 50, H: 50})
	if !errors.Is(err, ErrCropTooSmall) {
		t.Fatalf("expected ErrCropTooSmall, got %v", err)
	}
}

func TestCropTinySelectionFails(t *testing.T) {
	frame := encodeTestFrame(t, 100, 100)

	_, err := Crop(frame, schema.Rect{X: 10, Y: 10, W: 3, H: 40})
	if !errors.Is(err, ErrCropTooSmall) {
		t.Fatalf("expected ErrCropTooSmall, got %v", err)
	}
}

func TestDecodeFrameBase64DataURL(t *testing.T) {
	raw := encodeTestFrame(t, 30, 20)
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)

	img, err := DecodeFrame([]byte(dataURL))
	if err != nil {
		t.Fatalf("DecodeFrame returned error: %v", err)
	}
	if img.Bounds().Dx() != 30 || img.Bounds().Dy() != 20 {
		t.Fatalf("unexpected decoded size: %v", img.Bounds())
	}
}

func TestDecodeFrameLiteralDataURL(t *testing.T) {
	raw := encodeTestFrame(t, 12, 8)

	var escaped bytes.Buffer
	escaped.WriteString("data:image/png,")
	for _, b := range raw {
		fmt.Fprintf(&escaped, "%%%02X", b)
	}

	img, err := DecodeFrame(escaped.Bytes())
	if err != nil {
		t.Fatalf("DecodeFrame returned error: %v", err)
	}
	if img.Bounds().Dx() != 12 || img.Bounds().Dy() != 8 {
		t.Fatalf("unexpected decoded size: %v", img.Bounds())
	}
}

func TestDecodeFrameMalformedDataURL(t *testing.T) {
	if _, err := DecodeFrame([]byte("data:image/png;base64")); err == nil {
		t.Fatal("expected error for data url without payload")
	}
}

func encodeTestFrame(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 40, G: 120, B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode crop output: %v", err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}
