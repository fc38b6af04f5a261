// Package docpipe extracts per-page raw text and raw tables from report-card
// documents.
//
// Supported formats:
//   - .pdf:  pdfcpu validation + ledongthuc/pdf positioned rows, rebuilt
//     into lines and tables
//   - .json: page dump written by an external table extractor
//   - .txt:  plain text, pages separated by form feed
//
// Usage:
//
//	pipe := docpipe.New(docpipe.Config{})
//	doc, err := pipe.Extract(ctx, "/path/to/bulletin.pdf")
//	fmt.Println(len(doc.Pages), "pages")
package docpipe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Pipeline is the document extraction engine.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Pipeline with the given configuration.
func New(cfg Config) *Pipeline {
	cfg.defaults()
	return &Pipeline{
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Detect returns the document format based on file extension.
func (p *Pipeline) Detect(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return FormatPDF, nil
	case ".json":
		return FormatJSON, nil
	case ".txt", ".text":
		return FormatTXT, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Extract decodes a document into pages. Apart from ctx.Err(), any error means
// the file could not be opened or decoded at all.
func (p *Pipeline) Extract(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > p.cfg.MaxFileSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), p.cfg.MaxFileSize)
	}

	format, err := p.Detect(path)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("extracting document", "path", path, "format", format)

	var pages []Page
	var quality *ExtractionQuality

	switch format {
	case FormatPDF:
		pages, quality, err = extractPDF(path, p.logger)
	case FormatJSON:
		pages, err = extractJSON(path)
	case FormatTXT:
		pages, err = extractText(path)
	default:
		return nil, fmt.Errorf("no parser for format: %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("extract %s (%s): %w", path, format, err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("extract %s (%s): %w", path, format, ErrNoPages)
	}

	p.cfg.assess(quality)

	tables := 0
	for _, pg := range pages {
		tables += len(pg.Tables)
	}
	p.logger.Debug("document extracted", "path", path, "pages", len(pages), "tables", tables,
		"scanned", quality.NeedsOCR())

	return &Document{
		Path:    path,
		Format:  format,
		Pages:   pages,
		Quality: quality,
	}, nil
}

// SupportedFormats returns all supported format extensions.
func SupportedFormats() []string {
	return []string{"pdf", "json", "txt"}
}
