package imaging

import (
	"encoding/binary"
	"fmt"
	"image"

	"github.com/yungbote/hatchmark-backend/internal/pkg/errors"
)

// LSB steganography over the R, G, B channels of an RGBA raster. The
// payload is framed by a 32-bit big-endian byte-length header, bits
// written MSB-first. Alpha is never touched. Deterministic: embedding the
// same payload into the same pixels yields identical output.

// EmbedCapacity returns the payload capacity in bytes for an image of the
// given dimensions, after the length header.
func EmbedCapacity(width, height int) int {
	bits := width * height * 3
	if bits <= 32 {
		return 0
	}
	return (bits - 32) / 8
}

// Embed hides payload inside img and returns the watermarked raster.
func Embed(img image.Image, payload string) (*image.RGBA, error) {
	if payload == "" {
		return nil, fmt.Errorf("embed: empty payload: %w", errors.ErrEmbedFailure)
	}
	src := NormalizeRGBA(img)
	b := src.Bounds()
	capacity := EmbedCapacity(b.Dx(), b.Dy())
	if len(payload) > capacity {
		return nil, fmt.Errorf("embed: payload %d bytes exceeds capacity %d: %w", len(payload), capacity, errors.ErrEmbedFailure)
	}

	dst := image.NewRGBA(b)
	copy(dst.Pix, src.Pix)

	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(payload)))
	copy(frame[4:], payload)

	bitIdx := 0
	for i := 0; i < len(dst.Pix) && bitIdx < len(frame)*8; i++ {
		if i%4 == 3 { // alpha
			continue
		}
		bit := (frame[bitIdx/8] >> (7 - uint(bitIdx%8))) & 1
		dst.Pix[i] = dst.Pix[i]&0xFE | bit
		bitIdx++
	}
	return dst, nil
}

// Extract recovers a payload embedded by Embed. Fails when the header is
// implausible for the image size, which is the usual signal that the
// image carries no watermark.
func Extract(img image.Image) (string, error) {
	src := NormalizeRGBA(img)
	b := src.Bounds()

	header, err := readBits(src.Pix, 0, 32)
	if err != nil {
		return "", fmt.Errorf("extract: %w", err)
	}
	length := int(binary.BigEndian.Uint32(header))
	if length <= 0 || length > EmbedCapacity(b.Dx(), b.Dy()) {
		return "", fmt.Errorf("extract: implausible payload length %d", length)
	}
	payload, err := readBits(src.Pix, 32, length*8)
	if err != nil {
		return "", fmt.Errorf("extract: %w", err)
	}
	return string(payload), nil
}

// readBits collects n LSBs starting at bit offset skip, packing them
// MSB-first into bytes.
func readBits(pix []byte, skip, n int) ([]byte, error) {
	out := make([]byte, (n+7)/8)
	bitIdx := 0
	seen := 0
	for i := 0; i < len(pix); i++ {
		if i%4 == 3 {
			continue
		}
		if seen < skip {
			seen++
			continue
		}
		if bitIdx >= n {
			break
		}
		if pix[i]&1 == 1 {
			out[bitIdx/8] |= 1 << (7 - uint(bitIdx%8))
		}
		bitIdx++
		seen++
	}
	if bitIdx < n {
		return nil, fmt.Errorf("image too small for %d payload bits", n)
	}
	return out, nil
}
