package artifact

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG for DecodeConfig
	_ "image/png"  // register PNG for DecodeConfig
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ledongthuc/pdf"
	"golang.org/x/crypto/sha3"
)

// Screenshot formats.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

// timestampLayout matches screenshot_YYYYmmdd_HHMMSS.
const timestampLayout = "20060102_150405"

var (
	// ErrEmptyFile is returned when a written file has zero bytes.
	ErrEmptyFile = errors.New("file is empty")

	// ErrNotAFile is returned when the path exists but is a directory.
	ErrNotAFile = errors.New("not a regular file")
)

// FormatForQuality returns FormatPNG for quality 100 and FormatJPEG otherwise.
func FormatForQuality(quality int) string {
	if quality >= 100 {
		return FormatPNG
	}
	return FormatJPEG
}

// Extension returns the file extension (without dot) for a format.
func Extension(format string) string {
	if format == FormatJPEG {
		return "jpg"
	}
	return "png"
}

// ScreenshotName returns the absolute screenshot path in dir.
// With timestamped set the name is screenshot_YYYYmmdd_HHMMSS.<ext>,
// otherwise screenshot.<ext>. An empty dir means the working directory.
func ScreenshotName(dir string, timestamped bool, now time.Time, format string) (string, error) {
	name := "screenshot." + Extension(format)
	if timestamped {
		name = fmt.Sprintf("screenshot_%s.%s", now.Format(timestampLayout), Extension(format))
	}
	return AbsPath(filepath.Join(dir, name))
}

// DeviceScreenshotName prefixes the screenshot name with the device name,
// e.g. iPhone13-screenshot.png.
func DeviceScreenshotName(path, device string) string {
	if device == "" {
		return path
	}
	dir, base := filepath.Split(path)
	return filepath.Join(dir, device+"-"+base)
}

// TargetDir returns a subdirectory of dir named after target, so that
// probes of several URLs do not overwrite each other's artifacts.
// "https://example.com/a/b?q=1" becomes "example.com_a_b_q_1".
func TargetDir(dir, target string) string {
	name := target
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		name = u.Host + u.Path
		if u.RawQuery != "" {
			name += "_" + u.RawQuery
		}
	}

	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return '_'
		}
	}, name)
	name = strings.Trim(name, "_")
	if name == "" {
		name = "page"
	}
	return filepath.Join(dir, name)
}

// AbsPath resolves path against the working directory.
func AbsPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return abs, nil
}

// WriteFile writes data to path, creating parent directories, and returns
// the size of the file as stored on disk.
func WriteFile(path string, data []byte) (int64, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return 0, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // artifacts are meant to be opened by other tools
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return Verify(path)
}

// Verify checks that path is a regular, non-empty file and returns its size.
func Verify(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("verify %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("verify %s: %w", path, ErrNotAFile)
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("verify %s: %w", path, ErrEmptyFile)
	}
	return info.Size(), nil
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Digest returns the hex encoded SHA3-256 digest of data.
func Digest(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HumanSize formats a byte count, e.g. "24 kB".
func HumanSize(size int64) string {
	if size < 0 {
		size = 0
	}
	return humanize.Bytes(uint64(size))
}

// ImageDimensions decodes only the header of a PNG or JPEG image.
func ImageDimensions(data []byte) (width, height int, format string, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", fmt.Errorf("decode image header: %w", err)
	}
	return cfg.Width, cfg.Height, format, nil
}

// PDFPages returns the number of pages in a PDF document.
func PDFPages(data []byte) (int, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}
	return r.NumPage(), nil
}
