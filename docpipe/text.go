package docpipe

import (
	"os"
	"strings"
)

// extractText reads a plain-text export. Form feeds separate pages.
func extractText(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw := strings.Split(normalizeNewlines(string(data)), "\f")
	pages := make([]Page, 0, len(raw))
	for i, chunk := range raw {
		if i == len(raw)-1 && strings.TrimSpace(chunk) == "" && i > 0 {
			break // trailing form feed
		}
		pages = append(pages, Page{Number: i + 1, Text: trimLines(chunk)})
	}
	return pages, nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// trimLines strips trailing blanks from every line and surrounding blank lines.
func trimLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
}
