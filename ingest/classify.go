package ingest

import "strings"

// Family is a document layout family. It selects the parser pair used for
// every page of a document.
type Family string

const (
	// FamilyGradeBulletin lists subject scores in a grid per student.
	FamilyGradeBulletin Family = "grade_bulletin"
	// FamilyEnrollmentRoster lists one row of registration data per student.
	FamilyEnrollmentRoster Family = "enrollment_roster"
)

var rosterSignals = []string{
	"initial enrollment",
	"final enrollment",
	"matricula inicial",
	"matricula final",
}

// Classify picks the family from the first page's text. Absence of a roster
// signal means GradeBulletin.
func Classify(firstPage string) Family {
	text := CleanText(Fold(firstPage))
	for _, sig := range rosterSignals {
		if strings.Contains(text, sig) {
			return FamilyEnrollmentRoster
		}
	}
	return FamilyGradeBulletin
}
