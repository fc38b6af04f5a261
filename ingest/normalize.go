package ingest

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Field is a canonical grade-table column.
type Field string

const (
	FieldEnrollment Field = "enrollment"
	FieldName       Field = "name"
	FieldSubject    Field = "subject"
	FieldClass      Field = "class"
	FieldShift      Field = "shift"
	FieldPeriod1    Field = "period1"
	FieldPeriod2    Field = "period2"
	FieldPeriod3    Field = "period3"
	FieldTotal      Field = "total"
	FieldRecovery   Field = "recovery"
	FieldAbsences   Field = "absences"
	FieldStatus     Field = "status"
)

// Fold lower-cases s and strips accents. Compatibility decomposition also
// turns ordinal indicators ("1º") into plain letters.
func Fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Slugify folds s and collapses every run of characters outside [a-z0-9]
// into a single hyphen.
func Slugify(s string) string {
	folded := Fold(s)
	var b strings.Builder
	b.Grow(len(folded))
	dash := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// headerAliases maps slugged header cells to fields.
var headerAliases = buildAliases(map[Field][]string{
	FieldEnrollment: {"matr", "matricula", "n-matricula", "enrollment", "enrollment-no", "enrollment-number", "registration"},
	FieldName:       {"aluno", "alunoa", "aluno-a", "estudante", "nome", "nome-do-aluno", "student", "student-name", "name"},
	FieldSubject:    {"disciplina", "disciplinas", "componente-curricular", "componentes-curriculares", "subject", "subjects", "course"},
	FieldClass:      {"turma", "class"},
	FieldShift:      {"turno", "shift"},
	FieldPeriod1:    {"t1", "trimestre1", "1-trimestre", "1o-trimestre", "primeiro-trimestre", "term1", "term-1", "1st-term", "first-term", "period-1"},
	FieldPeriod2:    {"t2", "trimestre2", "2-trimestre", "2o-trimestre", "segundo-trimestre", "term2", "term-2", "2nd-term", "second-term", "period-2"},
	FieldPeriod3:    {"t3", "trimestre3", "3-trimestre", "3o-trimestre", "terceiro-trimestre", "term3", "term-3", "3rd-term", "third-term", "period-3"},
	FieldTotal:      {"total", "total-de-pontos", "total-points"},
	FieldRecovery:   {"recuperacao", "rec", "recovery"},
	FieldAbsences:   {"t-faltas", "faltas", "total-de-faltas", "absences", "total-absences"},
	FieldStatus:     {"situacao", "status", "result"},
})

// subjectAliases maps noisy subject slugs to canonical subject keys.
var subjectAliases = buildAliases(map[string][]string{
	"lingua-portuguesa":  {"portugues", "l-portuguesa", "lingua-portugues", "lingua-portuguesa-e-literatura"},
	"matematica":         {"mat"},
	"educacao-fisica":    {"ed-fisica", "ed-fis", "educ-fisica"},
	"lingua-inglesa":     {"ingles", "l-inglesa", "lingua-estrangeira-ingles"},
	"ciencias":           {"ciencias-naturais", "ciencias-da-natureza"},
	"arte":               {"artes", "arte-educacao"},
	"ensino-religioso":   {"religiao", "ens-religioso"},
	"mathematics":        {"math", "maths"},
	"physical-education": {"pe", "phys-ed"},
	"english":            {"english-language"},
})

func buildAliases[K ~string](groups map[K][]string) map[string]K {
	out := make(map[string]K)
	for canonical, forms := range groups {
		out[string(canonical)] = canonical
		for _, f := range forms {
			out[f] = canonical
		}
	}
	return out
}

// HeaderField resolves a raw header cell. ok is false for unknown headers.
func HeaderField(cell string) (f Field, ok bool) {
	f, ok = headerAliases[Slugify(cell)]
	return f, ok
}

// CanonicalSubject returns the dedup key of a raw subject name.
func CanonicalSubject(raw string) string {
	slug := Slugify(raw)
	if key, ok := subjectAliases[slug]; ok {
		return key
	}
	return slug
}

// shiftTokens maps folded shift words to their stored spelling.
var shiftTokens = map[string]string{
	"morning":    "Morning",
	"afternoon":  "Afternoon",
	"evening":    "Evening",
	"fulltime":   "FullTime",
	"full-time":  "FullTime",
	"matutino":   "Matutino",
	"vespertino": "Vespertino",
	"noturno":    "Noturno",
	"integral":   "Integral",
}

// NormalizeShift returns the stored spelling of a shift word.
func NormalizeShift(token string) (string, bool) {
	s, ok := shiftTokens[Fold(strings.TrimSpace(token))]
	return s, ok
}

// SplitClassShift applies the trailing-token rule: when the last word of s
// is a shift word it becomes the shift and is removed from the class label.
func SplitClassShift(s string) (class, shift string) {
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return "", ""
	}
	if sh, ok := NormalizeShift(tokens[len(tokens)-1]); ok {
		shift = sh
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " "), shift
}
