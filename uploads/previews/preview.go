// Package previews renders the preview and thumbnail images kept for each file.
package previews

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"

	_ "golang.org/x/image/webp"
)

var (
	ErrDecode = errors.New("image cannot be decoded")
	ErrBounds = errors.New("thumbnail bounds must be positive")
)

// Result is an encoded thumbnail together with its rendered size.
type Result struct {
	Width  int
	Height int
	Data   string
}

// Fit scales srcW x srcH to fit within maxW x maxH, keeping the aspect ratio.
// Images already inside the box keep their size. Dimensions are rounded to
// the nearest pixel and never drop below 1 or exceed the box.
func Fit(srcW, srcH, maxW, maxH int) (int, int) {
	scale := math.Min(float64(maxW)/float64(srcW), float64(maxH)/float64(srcH))
	if scale >= 1 {
		return srcW, srcH
	}
	w := clamp(int(math.Round(float64(srcW)*scale)), 1, maxW)
	h := clamp(int(math.Round(float64(srcH)*scale)), 1, maxH)
	return w, h
}

// Generate decodes imageData (a data URL), fits it into maxW x maxH and
// re-encodes it as JPEG at the given quality (0.0-1.0).
func Generate(ctx context.Context, imageData string, maxW, maxH int, quality float64) (Result, error) {
	if maxW <= 0 || maxH <= 0 {
		return Result{}, fmt.Errorf("%w: %dx%d", ErrBounds, maxW, maxH)
	}

	raw, _, err := ParseDataURL(imageData)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	bounds := img.Bounds()
	w, h := Fit(bounds.Dx(), bounds.Dy(), maxW, maxH)
	thumb := imaging.Resize(img, w, h, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(jpegQuality(quality))); err != nil {
		return Result{}, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return Result{
		Width:  w,
		Height: h,
		Data:   "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// DataURL encodes raw file bytes as a base64 data URL with a sniffed media type.
func DataURL(data []byte) string {
	mediaType := mimetype.Detect(data).String()
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURL splits a base64 data URL into its payload and media type.
func ParseDataURL(s string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, "", errors.New("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", errors.New("data URL has no payload")
	}
	mediaType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return nil, "", errors.New("data URL is not base64 encoded")
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("invalid base64 payload: %w", err)
	}
	return raw, mediaType, nil
}

func jpegQuality(q float64) int {
	return clamp(int(math.Round(q*100)), 1, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
