package imagediff

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestCompare(t *testing.T) {
	t.Parallel()

	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	black := color.RGBA{A: 255}

	t.Run("identical images have no diff", func(t *testing.T) {
		t.Parallel()

		data := encodePNG(t, solid(10, 10, white))
		res, err := Compare(data, data, 0.1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.DiffPixels != 0 || res.TotalPixels != 100 {
			t.Errorf("got %d/%d", res.DiffPixels, res.TotalPixels)
		}
	})

	t.Run("changed pixels are counted", func(t *testing.T) {
		t.Parallel()

		changed := solid(10, 10, white)
		changed.Set(2, 2, black)
		changed.Set(7, 7, black)

		res, err := Compare(encodePNG(t, solid(10, 10, white)), encodePNG(t, changed), 0.1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.DiffPixels == 0 {
			t.Error("expected differing pixels")
		}
	})

	t.Run("different sizes return ErrSizeMismatch", func(t *testing.T) {
		t.Parallel()

		res, err := Compare(encodePNG(t, solid(10, 10, white)), encodePNG(t, solid(12, 10, white)), 0.1)
		if !errors.Is(err, ErrSizeMismatch) {
			t.Fatalf("expected ErrSizeMismatch, got %v", err)
		}
		if res.CurrentBounds.Dx() != 12 {
			t.Errorf("expected current bounds to be reported, got %v", res.CurrentBounds)
		}
	})

	t.Run("undecodable baseline is an error", func(t *testing.T) {
		t.Parallel()

		if _, err := Compare([]byte("nope"), encodePNG(t, solid(1, 1, white)), 0.1); err == nil {
			t.Error("expected decode error")
		}
	})
}

func TestCompareFile(t *testing.T) {
	t.Parallel()

	data := encodePNG(t, solid(4, 4, color.RGBA{G: 128, A: 255}))
	path := filepath.Join(t.TempDir(), "baseline.png")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	res, err := CompareFile(path, data, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.DiffPixels != 0 {
		t.Errorf("expected no diff, got %d", res.DiffPixels)
	}

	if _, err := CompareFile(filepath.Join(t.TempDir(), "missing.png"), data, 0); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}
