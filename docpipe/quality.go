package docpipe

import "unicode"

// ExtractionQuality describes how usable a PDF text layer is. Scanned is
// set by the pipeline from its configured thresholds.
type ExtractionQuality struct {
	PageCount       int     `json:"page_count"`
	CharsPerPage    float64 `json:"chars_per_page"`
	PrintableRatio  float64 `json:"printable_ratio"`
	HasImageStreams bool    `json:"has_image_streams"`
	Scanned         bool    `json:"scanned"`
}

// NeedsOCR reports whether the document is a scan or its text is garbled.
// Text is never recovered from images.
func (q *ExtractionQuality) NeedsOCR() bool {
	return q != nil && q.Scanned
}

// assess marks q as scanned when it falls under the thresholds of cfg.
func (c *Config) assess(q *ExtractionQuality) {
	if q == nil {
		return
	}
	q.Scanned = (q.CharsPerPage < c.ScanCharsPerPage && q.HasImageStreams) ||
		q.PrintableRatio < c.MinPrintableRatio
}

// printableRatio is the share of runes that are printable text. Private use
// glyphs, U+FFFD and control characters other than line breaks and tabs
// count against it. Empty text scores 1.
func printableRatio(text string) float64 {
	var total, good int
	for _, r := range text {
		total++
		if r >= 0xE000 && r <= 0xF8FF || r == unicode.ReplacementChar {
			continue
		}
		if r == '\n' || r == '\r' || r == '\t' || (r >= 0x20 && unicode.IsPrint(r)) {
			good++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(good) / float64(total)
}
