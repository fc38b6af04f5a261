package docpipe

import (
	"reflect"
	"testing"
)

// glyphsAt spreads single-character glyphs of width 5 starting at x.
func glyphsAt(x float64, s string) []glyph {
	out := make([]glyph, 0, len(s))
	for _, r := range s {
		out = append(out, glyph{X: x, W: 5, FontSize: 10, S: string(r)})
		x += 5
	}
	return out
}

func cells(l line) []string {
	out := make([]string, len(l))
	for i, c := range l {
		out[i] = c.Text
	}
	return out
}

func TestMergeGlyphs_CellsAndWords(t *testing.T) {
	var g []glyph
	g = append(g, glyphsAt(10, "Ana")...)
	g = append(g, glyphsAt(27, "Lima")...) // 2pt gap: same cell, new word
	g = append(g, glyphsAt(100, "8,5")...) // wide gap: new cell

	got := cells(mergeGlyphs(g))
	want := []string{"Ana Lima", "8,5"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("cells = %q, want %q", got, want)
	}
}

func TestMergeGlyphs_Unordered(t *testing.T) {
	g := append(glyphsAt(100, "B"), glyphsAt(10, "A")...)
	got := cells(mergeGlyphs(g))
	if !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("cells = %q", got)
	}
}

func mkLine(xs []float64, texts ...string) line {
	l := make(line, len(texts))
	for i, s := range texts {
		l[i] = cell{X: xs[i], Text: s}
	}
	return l
}

func TestLayoutPage_TableDetection(t *testing.T) {
	// WHAT: wide lines form a table; prose lines stay text-only.
	// WHY: the grade parser pairs tables with student blocks by index.
	xs := []float64{10, 120, 180, 240}
	lines := []line{
		mkLine([]float64{10}, "Student: ANA Enrollment: 1"),
		mkLine(xs, "Subject", "T1", "T2", "Total"),
		mkLine(xs, "Math", "8,5", "7", "15,5"),
		mkLine([]float64{10, 120, 240}, "Art", "9", "9"),
		mkLine([]float64{10}, "Signature"),
	}
	page := layoutPage(3, lines)

	if page.Number != 3 {
		t.Errorf("number = %d", page.Number)
	}
	if len(page.Tables) != 1 {
		t.Fatalf("tables = %d, want 1", len(page.Tables))
	}
	tbl := page.Tables[0]
	if len(tbl) != 3 {
		t.Fatalf("rows = %d, want 3", len(tbl))
	}
	if !reflect.DeepEqual(tbl[2], []string{"Art", "9", "", "9"}) {
		t.Errorf("row 3 = %q, missing column not aligned", tbl[2])
	}
	if want := "Student: ANA Enrollment: 1\nSubject T1 T2 Total\nMath 8,5 7 15,5\nArt 9 9\nSignature"; page.Text != want {
		t.Errorf("text = %q", page.Text)
	}
}

func TestLayoutPage_SectionRowInsideTable(t *testing.T) {
	xs := []float64{10, 40, 200}
	lines := []line{
		mkLine(xs, "Nº", "Name", "Sex"),
		mkLine([]float64{40}, "6th Grade A"),
		mkLine(xs, "1", "ANA", "F"),
	}
	page := layoutPage(1, lines)
	if len(page.Tables) != 1 || len(page.Tables[0]) != 3 {
		t.Fatalf("tables = %+v, want one table of 3 rows", page.Tables)
	}
	if page.Tables[0][1][1] != "6th Grade A" {
		t.Errorf("section row = %q", page.Tables[0][1])
	}
}

func TestLayoutPage_TwoTables(t *testing.T) {
	xs := []float64{10, 100, 200}
	lines := []line{
		mkLine(xs, "Subject", "T1", "Total"),
		mkLine(xs, "Math", "8", "8"),
		mkLine([]float64{10}, "Student: BIA Enrollment: 2"),
		mkLine([]float64{10}, "Class: 6A"),
		mkLine(xs, "Subject", "T1", "Total"),
		mkLine(xs, "Art", "9", "9"),
	}
	if got := len(layoutPage(1, lines).Tables); got != 2 {
		t.Fatalf("tables = %d, want 2", got)
	}
}
