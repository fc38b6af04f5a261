package ingest

import (
	"regexp"

	"github.com/hazyhaar/gradebook/docpipe"
)

// bulletinYear matches the title line of a grade bulletin.
var bulletinYear = regexp.MustCompile(`(?i)(?:grade\s+bulletin|report\s+card|boletim\s+escolar)\s*-\s*(\d{4})`)

// YearLabel returns the academic year label printed on the document, or ""
// when none of the family's markers is found.
func YearLabel(family Family, pages []docpipe.Page) string {
	if family == FamilyEnrollmentRoster {
		return documentRosterHints(pages).Year
	}
	for _, p := range pages {
		if m := bulletinYear.FindStringSubmatch(p.Text); m != nil {
			return m[1]
		}
	}
	return ""
}
