package imaging

import (
	"fmt"
	"image"
	"math/bits"
	"strconv"

	"github.com/corona10/goimagehash"
)

// FingerprintBits is the width of the perceptual fingerprint: a 16x16
// DCT hash, stored as 64 lowercase hex characters.
const FingerprintBits = 256

const fingerprintHexLen = FingerprintBits / 4

// Perceptual computes the 256-bit perceptual hash of an image.
func Perceptual(img image.Image) (string, error) {
	h, err := goimagehash.ExtPerceptionHash(img, 16, 16)
	if err != nil {
		return "", fmt.Errorf("perceptual hash: %w", err)
	}
	var out []byte
	for _, word := range h.GetHash() {
		out = append(out, []byte(fmt.Sprintf("%016x", word))...)
	}
	return string(out), nil
}

// Average computes the 64-bit average hash, kept as registration metadata.
func Average(img image.Image) (string, error) {
	h, err := goimagehash.AverageHash(img)
	if err != nil {
		return "", fmt.Errorf("average hash: %w", err)
	}
	return fmt.Sprintf("%016x", h.GetHash()), nil
}

// Difference computes the 64-bit difference hash, kept as registration
// metadata.
func Difference(img image.Image) (string, error) {
	h, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return "", fmt.Errorf("difference hash: %w", err)
	}
	return fmt.Sprintf("%016x", h.GetHash()), nil
}

// ValidFingerprint reports whether s is a well-formed stored fingerprint.
func ValidFingerprint(s string) bool {
	if len(s) != fingerprintHexLen {
		return false
	}
	for i := 0; i < len(s); i += 16 {
		if _, err := strconv.ParseUint(s[i:i+16], 16, 64); err != nil {
			return false
		}
	}
	return true
}

// Distance returns the Hamming distance between two stored fingerprints.
func Distance(a, b string) (int, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("fingerprint length mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 || len(a)%16 != 0 {
		return 0, fmt.Errorf("malformed fingerprint length %d", len(a))
	}
	total := 0
	for i := 0; i < len(a); i += 16 {
		wa, err := strconv.ParseUint(a[i:i+16], 16, 64)
		if err != nil {
			return 0, fmt.Errorf("malformed fingerprint %q: %w", a, err)
		}
		wb, err := strconv.ParseUint(b[i:i+16], 16, 64)
		if err != nil {
			return 0, fmt.Errorf("malformed fingerprint %q: %w", b, err)
		}
		total += bits.OnesCount64(wa ^ wb)
	}
	return total, nil
}

// Similarity maps a Hamming distance to a [0,1] confidence score.
func Similarity(distance, width int) float64 {
	if width <= 0 {
		return 0
	}
	s := 1 - float64(distance)/float64(width)
	if s < 0 {
		return 0
	}
	return s
}
