// Package imagediff compares a screenshot against a baseline image.
package imagediff

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"

	"github.com/orisano/pixelmatch"
)

// ErrSizeMismatch is returned when the two images have different bounds.
var ErrSizeMismatch = errors.New("image dimensions differ")

// Result is the outcome of a comparison.
type Result struct {
	// DiffPixels is the number of pixels whose color distance exceeds the
	// threshold.
	DiffPixels int

	// TotalPixels is the number of compared pixels.
	TotalPixels int

	// BaselineBounds and CurrentBounds are the decoded image bounds.
	BaselineBounds image.Rectangle
	CurrentBounds  image.Rectangle
}

// Compare decodes two PNG or JPEG images and counts the pixels that differ
// by more than threshold (0 = exact, 1 = anything matches).
// Images with different dimensions are not compared; Compare then returns
// a Result with both bounds set and ErrSizeMismatch.
func Compare(baseline, current []byte, threshold float64) (Result, error) {
	base, _, err := image.Decode(bytes.NewReader(baseline))
	if err != nil {
		return Result{}, fmt.Errorf("decode baseline: %w", err)
	}
	cur, _, err := image.Decode(bytes.NewReader(current))
	if err != nil {
		return Result{}, fmt.Errorf("decode screenshot: %w", err)
	}

	res := Result{BaselineBounds: base.Bounds(), CurrentBounds: cur.Bounds()}
	if base.Bounds().Dx() != cur.Bounds().Dx() || base.Bounds().Dy() != cur.Bounds().Dy() {
		return res, fmt.Errorf("%w: baseline %v, screenshot %v", ErrSizeMismatch, base.Bounds().Size(), cur.Bounds().Size())
	}

	diff, err := pixelmatch.MatchPixel(base, cur, pixelmatch.Threshold(threshold))
	if err != nil {
		return res, fmt.Errorf("match pixels: %w", err)
	}
	res.DiffPixels = diff
	res.TotalPixels = base.Bounds().Dx() * base.Bounds().Dy()
	return res, nil
}

// CompareFile reads the baseline from path and compares it with current.
func CompareFile(path string, current []byte, threshold float64) (Result, error) {
	baseline, err := os.ReadFile(path) //nolint:gosec // baseline path is user supplied on purpose
	if err != nil {
		return Result{}, fmt.Errorf("read baseline: %w", err)
	}
	return Compare(baseline, current, threshold)
}
