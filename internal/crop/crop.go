// internal/crop/crop.go
package crop

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"net/url"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/snapq/capture-coordinator/pkg/schema"
)

// MinDimension is the smallest usable crop edge after clamping. Selections
// smaller than this are degenerate (stray clicks) and are rejected.
const MinDimension = 5

// ErrCropTooSmall is returned when the clamped selection is below MinDimension
// in either direction.
var ErrCropTooSmall = errors.New("selection too small after clamping")

// Crop decodes a captured frame, clamps rect into the frame bounds, and
// returns the crop re-encoded as PNG. The frame may be raw encoded image
// bytes or a data URL as produced by tab capture.
func Crop(frame []byte, rect schema.Rect) ([]byte, error) {
	src, err := DecodeFrame(frame)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	bounds := src.Bounds()
	region, err := clamp(rect, bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}

	out := imaging.Crop(src, region)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	return buf.Bytes(), nil
}

// clamp forces rect into a frameW x frameH frame: the origin lands in
// [0, dim-1], the extent in [1, dim-origin]. A region below MinDimension on
// either axis fails rather than producing a sliver.
func clamp(rect schema.Rect, frameW, frameH int) (image.Rectangle, error) {
	x := clampInt(rect.X, 0, frameW-1)
	y := clampInt(rect.Y, 0, frameH-1)
	w := clampInt(rect.W, 1, frameW-x)
	h := clampInt(rect.H, 1, frameH-y)

	if w < MinDimension || h < MinDimension {
		return image.Rectangle{}, fmt.Errorf("%w: %dx%d", ErrCropTooSmall, w, h)
	}
	return image.Rect(x, y, x+w, y+h), nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DecodeFrame decodes raw image bytes or an inline data URL. Data URLs carry
// either base64 payloads or percent-encoded literal text; the variant is
// declared in the metadata header before the first comma.
func DecodeFrame(frame []byte) (image.Image, error) {
	if bytes.HasPrefix(frame, []byte("data:")) {
		raw, err := decodeDataURL(string(frame))
		if err != nil {
			return nil, err
		}
		frame = raw
	}
	img, err := imaging.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func decodeDataURL(s string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return nil, errors.New("data url missing payload separator")
	}

	if strings.HasSuffix(meta, ";base64") {
		raw, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decode base64 payload: %w", err)
		}
		return raw, nil
	}

	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("decode literal payload: %w", err)
	}
	return []byte(text), nil
}
