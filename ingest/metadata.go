package ingest

import (
	"regexp"
	"strings"
)

// MetadataBlock is the header of one student inside a bulletin page.
type MetadataBlock struct {
	Name       string
	Enrollment string
	ClassLabel string
	Shift      string
}

var (
	// studentAnchor matches "Student: <name> Enrollment: <digits>" across
	// line breaks.
	studentAnchor = regexp.MustCompile(`(?is)(?:student|aluno\(a\)|aluno)\s*:\s*(.+?)\s+(?:enrollment|matr[ií]cula)\s*:\s*(\d+)`)
	// classLine matches a line starting with "Class:".
	classLine = regexp.MustCompile(`(?im)^[ \t]*(?:class|turma)[ \t]*:(.*)$`)
)

// classSeparator ends the class/shift part of a class line.
const classSeparator = "- -"

// ParseMetadataBlocks splits a page's text into per-student blocks. Block i
// runs from anchor i to anchor i+1. When no anchor matches, the text is
// retried once with all whitespace collapsed; that fallback yields at most
// one block. No match at all returns nil.
func ParseMetadataBlocks(text string) []MetadataBlock {
	locs := studentAnchor.FindAllStringSubmatchIndex(text, -1)
	if len(locs) > 0 {
		blocks := make([]MetadataBlock, 0, len(locs))
		for i, loc := range locs {
			end := len(text)
			if i+1 < len(locs) {
				end = locs[i+1][0]
			}
			b := MetadataBlock{
				Name:       CleanText(text[loc[2]:loc[3]]),
				Enrollment: text[loc[4]:loc[5]],
			}
			b.ClassLabel, b.Shift = parseClassLine(text[loc[0]:end])
			blocks = append(blocks, b)
		}
		return blocks
	}

	collapsed := CleanText(text)
	m := studentAnchor.FindStringSubmatch(collapsed)
	if m == nil {
		return nil
	}
	b := MetadataBlock{Name: CleanText(m[1]), Enrollment: m[2]}
	// The class line is still looked up line by line in the original text.
	b.ClassLabel, b.Shift = parseClassLine(text)
	return []MetadataBlock{b}
}

// parseClassLine reads the first "Class:" line of block. Its content up to
// the separator holds the class label and an optional trailing shift word.
func parseClassLine(block string) (class, shift string) {
	m := classLine.FindStringSubmatch(block)
	if m == nil {
		return "", ""
	}
	content := m[1]
	if i := strings.Index(content, classSeparator); i >= 0 {
		content = content[:i]
	}
	return SplitClassShift(content)
}
