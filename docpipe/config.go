package docpipe

import "log/slog"

// Config configures the document pipeline.
type Config struct {
	// MaxFileSize rejects larger files before decoding. Default: 50 MB.
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// ScanCharsPerPage is the text density under which a PDF carrying
	// images is treated as a scan. Default: 50.
	ScanCharsPerPage float64 `json:"scan_chars_per_page" yaml:"scan_chars_per_page"`

	// MinPrintableRatio is the printable share under which extracted text
	// is treated as garbled. Default: 0.85.
	MinPrintableRatio float64 `json:"min_printable_ratio" yaml:"min_printable_ratio"`

	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 50 * 1024 * 1024
	}
	if c.ScanCharsPerPage <= 0 {
		c.ScanCharsPerPage = 50
	}
	if c.MinPrintableRatio <= 0 {
		c.MinPrintableRatio = 0.85
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
