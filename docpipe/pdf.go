package docpipe

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// extractPDF validates the file with pdfcpu, then rebuilds every page's
// lines and tables from ledongthuc/pdf positioned rows. Pages where no
// positioned text is found fall back to pdfcpu content-stream text.
func extractPDF(path string, logger *slog.Logger) ([]Page, *ExtractionQuality, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	if ctx.PageCount == 0 {
		return nil, nil, ErrNoPages
	}

	rowsByPage := positionedRows(path, ctx.PageCount, logger)

	pages := make([]Page, 0, ctx.PageCount)
	var allText strings.Builder
	totalChars := 0
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		page := layoutPage(pageNr, rowsByPage[pageNr])
		if strings.TrimSpace(page.Text) == "" {
			page.Text = extractPageText(ctx, pageNr)
		}
		totalChars += len([]rune(page.Text))
		if allText.Len() > 0 {
			allText.WriteByte('\n')
		}
		allText.WriteString(page.Text)
		pages = append(pages, page)
	}

	quality := &ExtractionQuality{
		PageCount:       ctx.PageCount,
		CharsPerPage:    float64(totalChars) / float64(ctx.PageCount),
		PrintableRatio:  printableRatio(allText.String()),
		HasImageStreams: detectImageStreams(ctx),
	}
	return pages, quality, nil
}

// positionedRows reads glyph rows for every page. A failure here is not
// fatal: pdfcpu already accepted the file, so pages degrade to stream text.
func positionedRows(path string, pageCount int, logger *slog.Logger) map[int][]line {
	out := make(map[int][]line, pageCount)
	f, r, err := pdf.Open(path)
	if err != nil {
		logger.Warn("positioned text unavailable, using content streams", "path", path, "error", err)
		return out
	}
	defer f.Close()

	n := r.NumPage()
	if n > pageCount {
		n = pageCount
	}
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			logger.Warn("page rows unreadable", "path", path, "page", i, "error", err)
			continue
		}
		// PDF y grows upwards: the highest row is the top of the page.
		sort.SliceStable(rows, func(a, b int) bool { return rows[a].Position > rows[b].Position })
		lines := make([]line, 0, len(rows))
		for _, row := range rows {
			glyphs := make([]glyph, 0, len(row.Content))
			for _, t := range row.Content {
				glyphs = append(glyphs, glyph{X: t.X, W: t.W, FontSize: t.FontSize, S: t.S})
			}
			if l := mergeGlyphs(glyphs); len(l) > 0 {
				lines = append(lines, l)
			}
		}
		out[i] = lines
	}
	return out
}

// extractPageText extracts text from a single PDF page via pdfcpu content stream.
func extractPageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return extractTextFromStream(data)
}

// detectImageStreams checks if the PDF contains image XObjects.
func detectImageStreams(ctx *model.Context) bool {
	if ctx.Optimize != nil {
		for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
			if len(pdfcpu.ImageObjNrs(ctx, pageNr)) > 0 {
				return true
			}
		}
	}
	for _, entry := range ctx.Table {
		if entry == nil || entry.Free || entry.Compressed {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if subtype, found := sd.Find("Subtype"); found {
			if name, isName := subtype.(types.Name); isName && name == "Image" {
				return true
			}
		}
	}
	return false
}

// pdfStringRe matches PDF string literals in parentheses: (text here)
var pdfStringRe = regexp.MustCompile(`\(([^)]*)\)`)

// extractTextFromStream parses content stream text operators. Line moves
// (T*, ', Td with a vertical offset) become newlines so that "Class:" style
// lines survive.
func extractTextFromStream(data []byte) string {
	var sb strings.Builder

	for _, ln := range bytes.Split(data, []byte{'\n'}) {
		ln = bytes.TrimSpace(ln)
		if len(ln) == 0 {
			continue
		}

		switch {
		case bytes.HasSuffix(ln, []byte("Tj")), bytes.HasSuffix(ln, []byte("TJ")):
			for _, m := range pdfStringRe.FindAllSubmatch(ln, -1) {
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(ln, []byte("'")) && bytes.Contains(ln, []byte("(")):
			for _, m := range pdfStringRe.FindAllSubmatch(ln, -1) {
				sb.WriteByte('\n')
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(ln, []byte("Td")), bytes.HasSuffix(ln, []byte("TD")):
			fields := bytes.Fields(ln)
			if len(fields) >= 3 && !bytes.Equal(fields[len(fields)-2], []byte("0")) {
				sb.WriteByte('\n')
			} else if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.Equal(ln, []byte("T*")):
			sb.WriteByte('\n')
		}
	}

	return cleanPDFText(sb.String())
}

// decodePDFString handles basic PDF escape sequences.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			// Octal escape (e.g. \040 for space).
			if raw[i] < '0' || raw[i] > '7' {
				sb.WriteByte(raw[i])
				continue
			}
			val := int(raw[i] - '0')
			for k := 0; k < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; k++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			sb.WriteByte(byte(val))
		}
	}
	return sb.String()
}

// cleanPDFText collapses whitespace inside each line and drops blank lines.
func cleanPDFText(text string) string {
	var out []string
	for _, ln := range strings.Split(text, "\n") {
		var sb strings.Builder
		prevSpace := false
		for _, r := range ln {
			if unicode.IsSpace(r) {
				if !prevSpace && sb.Len() > 0 {
					sb.WriteByte(' ')
					prevSpace = true
				}
			} else if unicode.IsPrint(r) {
				sb.WriteRune(r)
				prevSpace = false
			}
		}
		if s := strings.TrimSpace(sb.String()); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n")
}
