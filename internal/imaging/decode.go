package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/yungbote/hatchmark-backend/internal/pkg/errors"
)

// Decode parses image bytes into an image plus its format name
// ("jpeg", "png", "webp", "bmp", "tiff", "gif").
func Decode(b []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", errors.ErrInvalidImage)
	}
	return img, format, nil
}

// NormalizeRGBA redraws any decoded image into a plain RGBA raster so
// hashing and embedding see the same pixel layout regardless of the
// source encoding (paletted PNG, YCbCr JPEG, grayscale, ...).
func NormalizeRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// EncodePNG serializes an image losslessly. Watermarked output is always
// PNG: LSB payloads do not survive lossy re-encoding.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
