package ingest

import "testing"

func TestParseMetadataBlocks_TwoAnchors(t *testing.T) {
	text := "GRADE BULLETIN - 2025\n" +
		"Student: ANA KELLY Enrollment: 47270\n" +
		"Class: 6th Grade A Morning - - Elementary School\n" +
		"Subject T1 T2 T3 Total\n" +
		"Student: BRUNO LIMA Enrollment: 47271\n" +
		"Class: 7th Grade B AFTERNOON - - Elementary School\n"

	blocks := ParseMetadataBlocks(text)
	if len(blocks) != 2 {
		t.Fatalf("blocks = %d, want 2", len(blocks))
	}
	want := []MetadataBlock{
		{Name: "ANA KELLY", Enrollment: "47270", ClassLabel: "6th Grade A", Shift: "Morning"},
		{Name: "BRUNO LIMA", Enrollment: "47271", ClassLabel: "7th Grade B", Shift: "Afternoon"},
	}
	for i := range want {
		if blocks[i] != want[i] {
			t.Errorf("block %d = %+v, want %+v", i, blocks[i], want[i])
		}
	}
}

func TestParseMetadataBlocks_BackToBackSameLine(t *testing.T) {
	blocks := ParseMetadataBlocks("Student: X Enrollment: 1 Student: Y Enrollment: 2")
	if len(blocks) != 2 || blocks[0].Enrollment != "1" || blocks[1].Name != "Y" {
		t.Fatalf("blocks = %+v", blocks)
	}
}

func TestParseMetadataBlocks_Portuguese(t *testing.T) {
	text := "BOLETIM ESCOLAR - 2024\nAluno(a): ANA KELLY DA SILVA\nMatrícula: 47270\n" +
		"Turma: 6º ANO A MATUTINO - - Ensino Fundamental Anos Finais\n"

	blocks := ParseMetadataBlocks(text)
	if len(blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(blocks))
	}
	b := blocks[0]
	if b.Name != "ANA KELLY DA SILVA" || b.Enrollment != "47270" {
		t.Errorf("identity = %q / %q", b.Name, b.Enrollment)
	}
	if b.ClassLabel != "6º ANO A" || b.Shift != "Matutino" {
		t.Errorf("class = %q, shift = %q", b.ClassLabel, b.Shift)
	}
}

func TestParseMetadataBlocks_NameAcrossLines(t *testing.T) {
	// WHAT: the anchor spans line breaks inside the name.
	// WHY: table extractors wrap long names onto a second line.
	blocks := ParseMetadataBlocks("Student: ANA\nKELLY\nEnrollment:\n47270")
	if len(blocks) != 1 || blocks[0].Name != "ANA KELLY" || blocks[0].Enrollment != "47270" {
		t.Fatalf("blocks = %+v", blocks)
	}
}

func TestParseMetadataBlocks_CollapsedFallback(t *testing.T) {
	// WHAT: no-break spaces around the anchor only match once whitespace is
	// collapsed; the class line is still read from the original lines.
	// WHY: some PDF producers emit U+00A0 between words, which \s does not match.
	text := "Student:\u00a0ANA\u00a0KELLY\u00a0Enrollment:\u00a047270\n" +
		"Class: 6th Grade A Morning - - Elementary"

	blocks := ParseMetadataBlocks(text)
	if len(blocks) != 1 {
		t.Fatalf("blocks = %+v, want 1", blocks)
	}
	want := MetadataBlock{Name: "ANA KELLY", Enrollment: "47270", ClassLabel: "6th Grade A", Shift: "Morning"}
	if blocks[0] != want {
		t.Errorf("block = %+v, want %+v", blocks[0], want)
	}

	// The fallback yields a single block even when several anchors collapse.
	two := "Student:\u00a0ANA Enrollment:\u00a01\nStudent:\u00a0BIA Enrollment:\u00a02"
	if blocks := ParseMetadataBlocks(two); len(blocks) != 1 || blocks[0].Enrollment != "1" {
		t.Errorf("blocks = %+v, want only the first", blocks)
	}
}

func TestParseMetadataBlocks_NoClassLine(t *testing.T) {
	blocks := ParseMetadataBlocks("Student: ANA Enrollment: 1\nnothing else")
	if len(blocks) != 1 || blocks[0].ClassLabel != "" || blocks[0].Shift != "" {
		t.Fatalf("blocks = %+v", blocks)
	}
}

func TestParseMetadataBlocks_ClassWithoutShift(t *testing.T) {
	blocks := ParseMetadataBlocks("Student: ANA Enrollment: 1\nCLASS: 9A")
	if len(blocks) != 1 || blocks[0].ClassLabel != "9A" || blocks[0].Shift != "" {
		t.Fatalf("blocks = %+v", blocks)
	}
}

func TestParseMetadataBlocks_None(t *testing.T) {
	if blocks := ParseMetadataBlocks("Signature of the principal\nClass: 6A"); blocks != nil {
		t.Fatalf("blocks = %+v, want nil", blocks)
	}
	if blocks := ParseMetadataBlocks(""); blocks != nil {
		t.Fatalf("blocks = %+v, want nil", blocks)
	}
}
