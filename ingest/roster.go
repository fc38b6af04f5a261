package ingest

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hazyhaar/gradebook/docpipe"
)

// RosterHints are read once per roster document.
type RosterHints struct {
	Year       string
	ClassLabel string
	Shift      string
}

func (h RosterHints) complete() bool {
	return h.Year != "" && h.ClassLabel != "" && h.Shift != ""
}

var (
	rosterYear  = regexp.MustCompile(`(?i)\b(?:school\s+year|year|ano\s+letivo|ano)\b[^0-9\n]{0,20}?(\d{4})\b`)
	rosterClass = regexp.MustCompile(`(?i)(?:class\s+level|n[ií]vel\s+de\s+ensino|s[ée]rie\s*/\s*turma)\s*:\s*([^\n]*)`)
	rosterShift = regexp.MustCompile(`(?i)\b(?:shift|turno)\s*:\s*([^\s]+)`)
	// rosterClassStop ends the class text of a "Class Level:" line.
	rosterClassStop = regexp.MustCompile(`(?i)\s(?:shift|turno|year|ano\s+letivo|teacher|professor)\s*:|\s-\s-|\s{3,}`)
)

// ExtractRosterHints reads year, class and shift hints from one page's text.
// Fields not found are left empty.
func ExtractRosterHints(text string) RosterHints {
	var h RosterHints
	if m := rosterYear.FindStringSubmatch(text); m != nil {
		h.Year = m[1]
	}
	if m := rosterClass.FindStringSubmatch(text); m != nil {
		raw := m[1]
		if loc := rosterClassStop.FindStringIndex(raw); loc != nil {
			raw = raw[:loc[0]]
		}
		h.ClassLabel, h.Shift = SplitClassShift(raw)
	}
	if h.Shift == "" {
		if m := rosterShift.FindStringSubmatch(text); m != nil {
			if sh, ok := NormalizeShift(m[1]); ok {
				h.Shift = sh
			} else {
				h.Shift = CleanText(m[1])
			}
		}
	}
	return h
}

// documentRosterHints merges page hints, keeping the first page where each
// field is found.
func documentRosterHints(pages []docpipe.Page) RosterHints {
	var h RosterHints
	for _, p := range pages {
		if h.complete() {
			break
		}
		ph := ExtractRosterHints(p.Text)
		if h.Year == "" {
			h.Year = ph.Year
		}
		if h.ClassLabel == "" {
			h.ClassLabel = ph.ClassLabel
		}
		if h.Shift == "" {
			h.Shift = ph.Shift
		}
	}
	return h
}

// Roster column positions. Column 0 is the row index.
const (
	colName = iota + 1
	colSex
	colBirthDate
	colBirthplace
	colZone
	colAddress
	colGuardians
	colPhones
	colTaxID
	colSocialID
	colNationalID
	colPriorStatus
)

var rosterHeaderNames = []string{"name of student", "nome do aluno"}

const minIdentifierLen = 5

// ParseRosterTable reads one roster table. A row is accepted only when its
// first cell is a pure-digit index; header and section rows are skipped
// silently. The class and shift of every student come from hints.
func ParseRosterTable(table docpipe.Table, hints RosterHints, r Reporter) []ParsedStudent {
	var out []ParsedStudent
	for _, row := range table {
		if len(row) == 0 || !isDigits(strings.TrimSpace(row[0])) {
			continue
		}
		cell := func(i int) string {
			if i < len(row) {
				return CleanText(row[i])
			}
			return ""
		}

		name := cell(colName)
		if name == "" {
			r.Addf("roster row %s skipped: empty name", strings.TrimSpace(row[0]))
			continue
		}
		if isRosterHeaderName(name) {
			continue
		}

		p := ParsedStudent{
			Name:        name,
			ClassLabel:  hints.ClassLabel,
			Shift:       hints.Shift,
			Sex:         cell(colSex),
			BirthDate:   cell(colBirthDate),
			Birthplace:  cell(colBirthplace),
			Zone:        cell(colZone),
			Address:     cell(colAddress),
			Guardians:   cell(colGuardians),
			Phones:      cell(colPhones),
			TaxID:       DigitsOnly(cell(colTaxID)),
			SocialID:    cell(colSocialID),
			NationalID:  cell(colNationalID),
			PriorStatus: cell(colPriorStatus),
		}
		p.Enrollment = rosterIdentifier(p)
		if IsPlaceholder(p.Enrollment) {
			r.Addf("%s has no national or tax id; using %s", name, p.Enrollment)
		}
		out = append(out, p)
	}
	return out
}

// rosterIdentifier picks the national student id, then the tax id, then a
// name placeholder.
func rosterIdentifier(p ParsedStudent) string {
	if utf8.RuneCountInString(p.NationalID) >= minIdentifierLen {
		return p.NationalID
	}
	if len(p.TaxID) >= minIdentifierLen {
		return p.TaxID
	}
	return Placeholder(p.Name)
}

func isRosterHeaderName(name string) bool {
	folded := Fold(name)
	for _, h := range rosterHeaderNames {
		if strings.Contains(folded, h) {
			return true
		}
	}
	return false
}
