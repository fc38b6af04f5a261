package docpipe

import (
	"sort"
	"strings"
)

const (
	// cellGapFactor: a horizontal gap wider than this many font sizes
	// starts a new cell.
	cellGapFactor = 1.2
	// wordGapFactor: a gap wider than this inserts a space inside a cell.
	wordGapFactor = 0.15
	// defaultFontSize is used when the PDF reports none.
	defaultFontSize = 10.0
	// minTableColumns is the number of cells a line needs to count as a table row.
	minTableColumns = 3
	// columnTolerance is how far left of a column anchor a cell may start.
	columnTolerance = 4.0
)

// glyph is one positioned text run of a PDF row.
type glyph struct {
	X, W     float64
	FontSize float64
	S        string
}

// cell is a horizontally contiguous run of glyphs.
type cell struct {
	X    float64
	Text string
}

// line is one visual row of a page, split into cells.
type line []cell

func (l line) text() string {
	parts := make([]string, len(l))
	for i, c := range l {
		parts[i] = c.Text
	}
	return strings.Join(parts, " ")
}

// mergeGlyphs orders glyphs left to right and groups them into cells.
func mergeGlyphs(glyphs []glyph) line {
	if len(glyphs) == 0 {
		return nil
	}
	sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].X < glyphs[j].X })

	var out line
	var cur strings.Builder
	var curX, prevEnd float64
	flush := func() {
		if s := strings.Join(strings.Fields(cur.String()), " "); s != "" {
			out = append(out, cell{X: curX, Text: s})
		}
		cur.Reset()
	}

	for i, g := range glyphs {
		fs := g.FontSize
		if fs <= 0 {
			fs = defaultFontSize
		}
		gap := g.X - prevEnd
		switch {
		case i == 0:
			curX = g.X
		case gap > fs*cellGapFactor:
			flush()
			curX = g.X
		case gap > fs*wordGapFactor:
			cur.WriteByte(' ')
		}
		cur.WriteString(g.S)
		if end := g.X + g.W; end > prevEnd || i == 0 {
			prevEnd = end
		}
	}
	flush()
	return out
}

// layoutPage turns the page's lines into text and tables.
//
// A table is a run of at least two lines with minTableColumns cells or more.
// A single narrow line (section header, totals) between two wide lines is
// kept inside the run. Columns are anchored on the widest line of the run.
func layoutPage(number int, lines []line) Page {
	page := Page{Number: number}

	texts := make([]string, 0, len(lines))
	for _, l := range lines {
		if t := l.text(); t != "" {
			texts = append(texts, t)
		}
	}
	page.Text = strings.Join(texts, "\n")

	wide := func(i int) bool { return i < len(lines) && len(lines[i]) >= minTableColumns }

	for i := 0; i < len(lines); {
		if !wide(i) {
			i++
			continue
		}
		start := i
		for i < len(lines) {
			if wide(i) {
				i++
				continue
			}
			if wide(i + 1) {
				i++
				continue
			}
			break
		}
		if run := lines[start:i]; len(run) >= 2 {
			page.Tables = append(page.Tables, buildTable(run))
		}
	}
	return page
}

func buildTable(run []line) Table {
	anchors := run[0]
	for _, l := range run[1:] {
		if len(l) > len(anchors) {
			anchors = l
		}
	}

	table := make(Table, 0, len(run))
	for _, l := range run {
		row := make([]string, len(anchors))
		for _, c := range l {
			col := 0
			for k, a := range anchors {
				if a.X <= c.X+columnTolerance {
					col = k
				}
			}
			if row[col] == "" {
				row[col] = c.Text
			} else {
				row[col] += " " + c.Text
			}
		}
		table = append(table, row)
	}
	return table
}
