package ingest

import (
	"strings"

	"github.com/hazyhaar/gradebook/docpipe"
)

// MapHeader resolves every header cell to a field. Unmapped cells map to "".
func MapHeader(header []string) []Field {
	out := make([]Field, len(header))
	for i, cell := range header {
		if f, ok := HeaderField(cell); ok {
			out[i] = f
		}
	}
	return out
}

// TableRows converts every row after the header into a field/value map,
// keeping only mapped columns with non-empty trimmed values. Rows that keep
// nothing are dropped.
func TableRows(table docpipe.Table) []map[Field]string {
	if len(table) == 0 {
		return nil
	}
	header := MapHeader(table[0])
	var rows []map[Field]string
	for _, raw := range table[1:] {
		row := make(map[Field]string)
		for i, cell := range raw {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if v := strings.TrimSpace(cell); v != "" {
				row[header[i]] = v
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}

// ParseGrades reads one grade table. Rows without a subject are dropped and
// reported; unparsable values become nil and are reported.
func ParseGrades(table docpipe.Table, r Reporter) []ParsedGrade {
	if len(table) == 0 {
		return nil
	}
	for _, cell := range table[0] {
		if c := CleanText(cell); c != "" {
			if _, ok := HeaderField(c); !ok {
				r.Addf("grade table header %q ignored", c)
			}
		}
	}

	var grades []ParsedGrade
	for i, row := range TableRows(table) {
		subject := CleanText(row[FieldSubject])
		key := CanonicalSubject(subject)
		if key == "" {
			r.Addf("grade row %d dropped: no subject", i+1)
			continue
		}
		g := ParsedGrade{
			Subject:    subject,
			SubjectKey: key,
			Period1:    decimalField(row, FieldPeriod1, subject, r),
			Period2:    decimalField(row, FieldPeriod2, subject, r),
			Period3:    decimalField(row, FieldPeriod3, subject, r),
			Total:      decimalField(row, FieldTotal, subject, r),
			Recovery:   decimalField(row, FieldRecovery, subject, r),
			Status:     CleanText(row[FieldStatus]),
		}
		if raw := row[FieldAbsences]; raw != "" {
			g.Absences = ParseInt(raw)
			if g.Absences == nil && !isBlankValue(raw) {
				r.Addf("%s: absences %q unreadable, stored as null", subject, raw)
			}
		}
		grades = append(grades, g)
	}
	return grades
}

func decimalField(row map[Field]string, f Field, subject string, r Reporter) *float64 {
	raw := row[f]
	if raw == "" {
		return nil
	}
	v := ParseDecimal(raw)
	if v == nil && !isBlankValue(raw) {
		r.Addf("%s: %s %q unreadable, stored as null", subject, f, raw)
	}
	return v
}
