package ingest

import "strings"

// PlaceholderPrefix marks an enrollment generated from a student's name.
const PlaceholderPrefix = "placeholder-"

// placeholderSlugLen is how much of the name slug a placeholder keeps.
const placeholderSlugLen = 10

// IsPlaceholder reports whether enrollment was generated from a name.
func IsPlaceholder(enrollment string) bool {
	return strings.HasPrefix(enrollment, PlaceholderPrefix)
}

// Placeholder builds the generated enrollment for name. It never ends in a
// hyphen.
func Placeholder(name string) string {
	slug := Slugify(name)
	if len(slug) > placeholderSlugLen {
		slug = strings.TrimRight(slug[:placeholderSlugLen], "-")
	}
	return PlaceholderPrefix + slug
}

// ParsedGrade is one subject row read from a document.
type ParsedGrade struct {
	Subject    string   `json:"subject"`
	SubjectKey string   `json:"subject_key"`
	Period1    *float64 `json:"period1"`
	Period2    *float64 `json:"period2"`
	Period3    *float64 `json:"period3"`
	Total      *float64 `json:"total"`
	Recovery   *float64 `json:"recovery"`
	Absences   *int     `json:"absences"`
	Status     string   `json:"status,omitempty"`
}

// ParsedStudent is one student read from a document. Enrollment is never
// empty. Optional fields use "" for unknown.
type ParsedStudent struct {
	Enrollment  string        `json:"enrollment"`
	Name        string        `json:"name"`
	ClassLabel  string        `json:"class_label,omitempty"`
	Shift       string        `json:"shift,omitempty"`
	Sex         string        `json:"sex,omitempty"`
	BirthDate   string        `json:"birth_date,omitempty"`
	Birthplace  string        `json:"birthplace,omitempty"`
	Zone        string        `json:"zone,omitempty"`
	Address     string        `json:"address,omitempty"`
	Guardians   string        `json:"guardians,omitempty"`
	Phones      string        `json:"phones,omitempty"`
	TaxID       string        `json:"tax_id,omitempty"`
	SocialID    string        `json:"social_id,omitempty"`
	NationalID  string        `json:"national_id,omitempty"`
	PriorStatus string        `json:"prior_status,omitempty"`
	Grades      []ParsedGrade `json:"grades,omitempty"`
}

// optionalFields lists the fields that only overwrite when non-empty.
func (p *ParsedStudent) optionalFields() []*string {
	return []*string{
		&p.ClassLabel, &p.Shift, &p.Sex, &p.BirthDate, &p.Birthplace, &p.Zone,
		&p.Address, &p.Guardians, &p.Phones, &p.TaxID, &p.SocialID,
		&p.NationalID, &p.PriorStatus,
	}
}

// recordSet buffers the students of one run, keyed by enrollment, in first
// sighting order.
type recordSet struct {
	order []string
	byKey map[string]*ParsedStudent
}

func newRecordSet() *recordSet {
	return &recordSet{byKey: make(map[string]*ParsedStudent)}
}

// merge folds rec into the set. A later sighting of the same enrollment
// overwrites every non-empty field and appends its grades.
func (s *recordSet) merge(rec ParsedStudent, r Reporter) {
	cur, ok := s.byKey[rec.Enrollment]
	if !ok {
		c := rec
		c.Grades = append([]ParsedGrade(nil), rec.Grades...)
		s.byKey[rec.Enrollment] = &c
		s.order = append(s.order, rec.Enrollment)
		return
	}
	if IsPlaceholder(rec.Enrollment) && rec.Name != "" && cur.Name != rec.Name {
		r.Addf("placeholder %s shared by %q and %q; rows merged", rec.Enrollment, cur.Name, rec.Name)
	}
	if rec.Name != "" {
		cur.Name = rec.Name
	}
	dst := cur.optionalFields()
	for i, v := range rec.optionalFields() {
		if *v != "" {
			*dst[i] = *v
		}
	}
	cur.Grades = append(cur.Grades, rec.Grades...)
}

func (s *recordSet) len() int { return len(s.order) }

// list returns the buffered students in first sighting order.
func (s *recordSet) list() []ParsedStudent {
	out := make([]ParsedStudent, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, *s.byKey[k])
	}
	return out
}
