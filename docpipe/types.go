package docpipe

import "errors"

// Format identifies a document type.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatJSON Format = "json" // page dump produced by an external table extractor
	FormatTXT  Format = "txt"
)

var (
	// ErrUnsupportedFormat is returned by Detect for unknown extensions.
	ErrUnsupportedFormat = errors.New("docpipe: unsupported format")
	// ErrNoPages is returned when a document decodes to zero pages.
	ErrNoPages = errors.New("docpipe: document has no pages")
)

// Table is a raw extracted table: rows of cells. A missing cell is "".
type Table [][]string

// Page is the raw content of one document page.
type Page struct {
	Number int     `json:"number"` // 1-based
	Text   string  `json:"text"`   // lines separated by "\n"
	Tables []Table `json:"tables,omitempty"`
}

// Document is the result of extracting a file.
type Document struct {
	Path    string             `json:"path"`
	Format  Format             `json:"format"`
	Pages   []Page             `json:"pages"`
	Quality *ExtractionQuality `json:"quality,omitempty"` // PDF only
}

// FirstPageText returns the text of the first page, or "".
func (d *Document) FirstPageText() string {
	if d == nil || len(d.Pages) == 0 {
		return ""
	}
	return d.Pages[0].Text
}

// Text returns every page's text joined by newlines.
func (d *Document) Text() string {
	if d == nil {
		return ""
	}
	var n int
	for _, p := range d.Pages {
		n += len(p.Text) + 1
	}
	buf := make([]byte, 0, n)
	for i, p := range d.Pages {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, p.Text...)
	}
	return string(buf)
}
