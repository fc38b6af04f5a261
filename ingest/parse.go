package ingest

import (
	"github.com/hazyhaar/gradebook/docpipe"
)

// ParseResult is everything read from one document before storage.
type ParseResult struct {
	Family      Family
	YearLabel   string
	Records     []ParsedStudent
	Diagnostics Diagnostics
}

// Parse reads every page of doc in order. It never touches storage.
func Parse(doc *docpipe.Document, hints Hints) *ParseResult {
	res := &ParseResult{Family: Classify(doc.FirstPageText())}
	if doc.Quality.NeedsOCR() {
		res.Diagnostics.At(0, "").Addf("document has little or unreadable text; OCR is not performed")
	}

	set := newRecordSet()
	switch res.Family {
	case FamilyEnrollmentRoster:
		parseRoster(doc.Pages, hints, set, &res.Diagnostics)
	default:
		parseBulletin(doc.Pages, hints, set, &res.Diagnostics)
	}

	res.YearLabel = YearLabel(res.Family, doc.Pages)
	res.Records = set.list()
	if set.len() == 0 {
		res.Diagnostics.At(0, "").Addf("no students found in document")
	}
	return res
}

// parseBulletin pairs the i-th metadata block of a page with its i-th table.
func parseBulletin(pages []docpipe.Page, hints Hints, set *recordSet, diags *Diagnostics) {
	for _, page := range pages {
		blocks := ParseMetadataBlocks(page.Text)
		if len(blocks) == 0 {
			diags.At(page.Number, "").Addf("no student header found; page skipped")
			continue
		}

		for i, b := range blocks {
			r := diags.At(page.Number, b.Enrollment)
			if b.Name == "" {
				r.Addf("student header without a name skipped")
				continue
			}
			rec := ParsedStudent{
				Enrollment: b.Enrollment,
				Name:       b.Name,
				ClassLabel: firstNonEmpty(b.ClassLabel, hints.ClassLabel),
				Shift:      firstNonEmpty(b.Shift, hints.Shift),
			}
			if i < len(page.Tables) {
				rec.Grades = ParseGrades(page.Tables[i], r)
			} else {
				r.Addf("no grade table for %s", b.Name)
			}
			set.merge(rec, r)
		}

		if extra := len(page.Tables) - len(blocks); extra > 0 {
			diags.At(page.Number, "").Addf("%d table(s) without a student header ignored", extra)
		}
	}
}

// parseRoster reads every table of every page with document-level hints.
func parseRoster(pages []docpipe.Page, hints Hints, set *recordSet, diags *Diagnostics) {
	rh := documentRosterHints(pages)
	rh.ClassLabel = firstNonEmpty(rh.ClassLabel, hints.ClassLabel)
	rh.Shift = firstNonEmpty(rh.Shift, hints.Shift)

	for _, page := range pages {
		if len(page.Tables) == 0 {
			diags.At(page.Number, "").Addf("no roster table found; page skipped")
			continue
		}
		r := diags.At(page.Number, "")
		for _, table := range page.Tables {
			for _, rec := range ParseRosterTable(table, rh, r) {
				set.merge(rec, diags.At(page.Number, rec.Enrollment))
			}
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
