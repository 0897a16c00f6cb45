// Dev tool: fingerprint local images the way the service does.
//
//	go run scripts/fingerprint_compare.go img.png
//	go run scripts/fingerprint_compare.go -extract watermarked.png
//	go run scripts/fingerprint_compare.go a.png b.png
//
// With two images it also prints the Hamming distance and similarity,
// which is handy when tuning HAMMING_THRESHOLD against real uploads.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/yungbote/hatchmark-backend/internal/imaging"
)

func main() {
	var extract bool
	flag.BoolVar(&extract, "extract", false, "attempt to read an embedded watermark payload")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 || len(args) > 2 {
		fmt.Println("usage: fingerprint_compare [-extract] <image> [image]")
		os.Exit(2)
	}

	prints := make([]string, 0, 2)
	for _, path := range args {
		fp, err := describe(path, extract)
		if err != nil {
			fmt.Printf("%s: %v\n", path, err)
			os.Exit(1)
		}
		prints = append(prints, fp)
	}

	if len(prints) == 2 {
		d, err := imaging.Distance(prints[0], prints[1])
		if err != nil {
			fmt.Printf("distance: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("hamming distance: %d\n", d)
		fmt.Printf("similarity: %.4f\n", imaging.Similarity(d, imaging.FingerprintBits))
	}
}

func describe(path string, extract bool) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	img, format, err := imaging.Decode(raw)
	if err != nil {
		return "", err
	}
	rgba := imaging.NormalizeRGBA(img)

	fp, err := imaging.Perceptual(rgba)
	if err != nil {
		return "", err
	}
	avg, err := imaging.Average(rgba)
	if err != nil {
		return "", err
	}
	diff, err := imaging.Difference(rgba)
	if err != nil {
		return "", err
	}

	bounds := img.Bounds()
	fmt.Printf("%s (%s %dx%d)\n", path, format, bounds.Dx(), bounds.Dy())
	fmt.Printf("  perceptual: %s\n", fp)
	fmt.Printf("  average:    %s\n", avg)
	fmt.Printf("  difference: %s\n", diff)

	if extract {
		payload, err := imaging.Extract(img)
		if err != nil {
			fmt.Printf("  watermark:  none (%v)\n", err)
		} else {
			fmt.Printf("  watermark:  %s\n", payload)
		}
	}
	return fp, nil
}
