package model

// Screenshot describes the screenshot written to disk.
type Screenshot struct {
	// Path is the absolute path of the file.
	Path string `json:"path"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// Format is "png" or "jpeg".
	Format string `json:"format"`

	// Width and Height are the decoded image dimensions in pixels.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	// FullPage is true when the capture extended beyond the viewport.
	FullPage bool `json:"full_page,omitempty"`

	// SHA3 is the hex encoded SHA3-256 digest of the file contents.
	// It lets the history command tell whether the rendering changed.
	SHA3 string `json:"sha3"`
}

// PDFInfo describes the printed PDF.
type PDFInfo struct {
	Path  string `json:"path"`
	Size  int64  `json:"size"`
	Pages int    `json:"pages"`
}

// BaselineDiff is the result of comparing the screenshot to a baseline.
type BaselineDiff struct {
	// Path is the baseline image path.
	Path string `json:"path"`

	// DiffPixels is the number of pixels that differ beyond Threshold.
	DiffPixels int `json:"diff_pixels"`

	// TotalPixels is width*height of the compared images.
	TotalPixels int `json:"total_pixels"`

	// Threshold is the per-pixel color distance used for matching.
	Threshold float64 `json:"threshold"`

	// SizeMismatch is true when the images had different dimensions and
	// no pixel comparison was made.
	SizeMismatch bool `json:"size_mismatch,omitempty"`
}

// Match reports whether the screenshot is identical to the baseline
// within the threshold.
func (b *BaselineDiff) Match() bool {
	return !b.SizeMismatch && b.DiffPixels == 0
}

// DiffRatio is DiffPixels / TotalPixels, or 1 for a size mismatch.
func (b *BaselineDiff) DiffRatio() float64 {
	if b.SizeMismatch {
		return 1
	}
	if b.TotalPixels == 0 {
		return 0
	}
	return float64(b.DiffPixels) / float64(b.TotalPixels)
}

// Interception summarizes response interception.
type Interception struct {
	// Paused is the number of responses the browser paused for inspection.
	Paused int `json:"paused"`

	// Modified is the number of documents rewritten with the banner.
	Modified int `json:"modified"`

	// DumpPath is where the last rewritten document was saved.
	DumpPath string `json:"dump_path,omitempty"`
}
