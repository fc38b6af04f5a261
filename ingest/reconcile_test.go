package ingest

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/hazyhaar/gradebook/dbopen"
	"github.com/hazyhaar/gradebook/store"

	_ "modernc.org/sqlite"
)

func memStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(dbopen.OpenMemory(t), dbopen.DriverSQLite)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func apply(t *testing.T, s *store.Store, tenant, yearID string, recs ...ParsedStudent) Outcome {
	t.Helper()
	var out Outcome
	err := SQLStore(s).InTx(context.Background(), func(tx Tx) error {
		var err error
		out, err = Reconciler{}.Apply(context.Background(), tx, tenant, yearID, recs)
		return err
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return out
}

// snapshot returns every student and grade without timestamps.
func snapshot(t *testing.T, s *store.Store, tenant string) ([]store.Student, []store.GradeRecord) {
	t.Helper()
	ctx := context.Background()
	students, err := s.ListStudents(ctx, tenant, 0)
	if err != nil {
		t.Fatal(err)
	}
	var grades []store.GradeRecord
	for i := range students {
		gs, err := s.GradesByStudent(ctx, students[i].ID)
		if err != nil {
			t.Fatal(err)
		}
		for j := range gs {
			gs[j].CreatedAt, gs[j].UpdatedAt = "", ""
		}
		grades = append(grades, gs...)
		students[i].CreatedAt, students[i].UpdatedAt = "", ""
	}
	return students, grades
}

func bulletinRecord() ParsedStudent {
	abs := 2
	return ParsedStudent{
		Enrollment: "47270",
		Name:       "ANA KELLY",
		ClassLabel: "6th Grade A",
		Shift:      "Morning",
		Grades: []ParsedGrade{
			{Subject: "Math", SubjectKey: "mathematics", Period1: f64(8.5), Total: f64(8.5), Absences: &abs, Status: "PASS"},
			{Subject: "Art", SubjectKey: "art", Period1: f64(9)},
		},
	}
}

func TestApply_Idempotent(t *testing.T) {
	s := memStore(t)
	recs := []ParsedStudent{bulletinRecord(), {Enrollment: "47271", Name: "BRUNO LIMA"}}

	first := apply(t, s, "t1", "ay_1", recs...)
	students1, grades1 := snapshot(t, s, "t1")

	second := apply(t, s, "t1", "ay_1", recs...)
	students2, grades2 := snapshot(t, s, "t1")

	if first.Affected != 2 || second.Affected != first.Affected {
		t.Errorf("affected = %d then %d, want 2 both times", first.Affected, second.Affected)
	}
	if len(first.Created) != 2 || len(second.Created) != 0 {
		t.Errorf("created = %d then %d", len(first.Created), len(second.Created))
	}
	if !reflect.DeepEqual(students1, students2) {
		t.Errorf("students changed:\n%+v\n%+v", students1, students2)
	}
	if !reflect.DeepEqual(grades1, grades2) {
		t.Errorf("grades changed:\n%+v\n%+v", grades1, grades2)
	}
	if len(grades2) != 2 {
		t.Errorf("grades = %d, want 2", len(grades2))
	}
}

func TestApply_IdentifierPromotion(t *testing.T) {
	// WHAT: roster placeholder first, bulletin enrollment second.
	// WHY: the same child must never fork into two rows.
	s := memStore(t)
	ctx := context.Background()

	roster := ParsedStudent{Enrollment: Placeholder("ANA KELLY"), Name: "ANA KELLY", Sex: "F", Address: "Rua A"}
	apply(t, s, "t1", "", roster)

	out := apply(t, s, "t1", "ay_1", bulletinRecord())
	if len(out.Promoted) != 1 || len(out.Created) != 0 {
		t.Fatalf("promoted=%d created=%d, want 1/0", len(out.Promoted), len(out.Created))
	}

	if n, _ := s.CountStudents(ctx, "t1"); n != 1 {
		t.Fatalf("students = %d, want 1", n)
	}
	st, err := s.StudentByEnrollment(ctx, "t1", "47270")
	if err != nil || st == nil {
		t.Fatalf("promoted student not found: %v", err)
	}
	if st.Sex != "F" || st.Address != "Rua A" || st.ClassLabel != "6th Grade A" || st.AcademicYearID != "ay_1" {
		t.Errorf("merged student = %+v", st)
	}
	if old, _ := s.StudentByEnrollment(ctx, "t1", roster.Enrollment); old != nil {
		t.Error("placeholder enrollment must be gone")
	}
}

func TestApply_NameMatchKeepsRealEnrollment(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	apply(t, s, "t1", "", ParsedStudent{Enrollment: "47270", Name: "ANA KELLY"})
	out := apply(t, s, "t1", "", ParsedStudent{Enrollment: "110012345", Name: "ANA KELLY", Zone: "Urbana"})

	if len(out.Created) != 0 || len(out.Promoted) != 0 {
		t.Fatalf("created=%d promoted=%d", len(out.Created), len(out.Promoted))
	}
	st, _ := s.StudentByEnrollment(ctx, "t1", "47270")
	if st == nil || st.Zone != "Urbana" {
		t.Fatalf("student = %+v", st)
	}
}

func TestApply_PlaceholderDoesNotMatchByName(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	apply(t, s, "t1", "", ParsedStudent{Enrollment: "47270", Name: "ANA KELLY"})
	apply(t, s, "t1", "", ParsedStudent{Enrollment: Placeholder("ANA KELLY"), Name: "ANA KELLY"})

	if n, _ := s.CountStudents(ctx, "t1"); n != 2 {
		t.Errorf("students = %d, want 2", n)
	}
}

func TestApply_PlaceholderAfterPromotionFlagged(t *testing.T) {
	// WHAT: roster, then bulletin promotion, then the same roster again.
	// WHY: the second roster cannot know the enrollment, so the split must be visible.
	s := memStore(t)
	ctx := context.Background()
	roster := ParsedStudent{Enrollment: Placeholder("ANA KELLY"), Name: "ANA KELLY"}

	if out := apply(t, s, "t1", "", roster); len(out.Diagnostics.Strings()) != 0 {
		t.Errorf("first roster diagnostics = %q", out.Diagnostics.Strings())
	}
	apply(t, s, "t1", "ay_1", bulletinRecord())
	out := apply(t, s, "t1", "", roster)

	if len(out.Created) != 1 {
		t.Fatalf("created = %d, want 1", len(out.Created))
	}
	diags := out.Diagnostics.Strings()
	if len(diags) != 1 || !strings.Contains(diags[0], "possible duplicate") || !strings.Contains(diags[0], "47270") {
		t.Errorf("diagnostics = %q, want one possible-duplicate note naming 47270", diags)
	}
	if n, _ := s.CountStudents(ctx, "t1"); n != 2 {
		t.Errorf("students = %d, want 2", n)
	}
}

func TestApply_TenantScoped(t *testing.T) {
	s := memStore(t)
	apply(t, s, "t1", "", ParsedStudent{Enrollment: "1", Name: "ANA"})
	out := apply(t, s, "t2", "", ParsedStudent{Enrollment: "1", Name: "ANA"})
	if len(out.Created) != 1 {
		t.Errorf("second tenant created = %d, want 1", len(out.Created))
	}
}

func TestApply_NoBlankOverwrite(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	apply(t, s, "", "ay_1", ParsedStudent{
		Enrollment: "1", Name: "ANA", ClassLabel: "6A", Shift: "Morning",
		Zone: "Urbana", Phones: "9999", NationalID: "110012345",
	})
	apply(t, s, "", "", ParsedStudent{Enrollment: "1", Name: "ANA KELLY", Shift: "Evening"})

	st, _ := s.StudentByEnrollment(ctx, "", "1")
	if st.Name != "ANA KELLY" {
		t.Errorf("name = %q, want unconditional overwrite", st.Name)
	}
	if st.ClassLabel != "6A" || st.Zone != "Urbana" || st.Phones != "9999" || st.NationalID != "110012345" {
		t.Errorf("blank values erased data: %+v", st)
	}
	if st.Shift != "Evening" {
		t.Errorf("shift = %q, want Evening", st.Shift)
	}
	if st.AcademicYearID != "" {
		t.Errorf("year pointer = %q, want the run's (empty) year", st.AcademicYearID)
	}
}

func TestApply_GradeDedup(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	apply(t, s, "t1", "ay_1", ParsedStudent{Enrollment: "1", Name: "ANA"})
	st, _ := s.StudentByEnrollment(ctx, "t1", "1")

	var firstID string
	for i, total := range []float64{5, 6} {
		g := &store.GradeRecord{StudentID: st.ID, TenantID: "t1", AcademicYearID: "ay_1", Subject: "Math", SubjectKey: "mathematics", Total: f64(total)}
		if err := s.InsertGrade(ctx, g); err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			firstID = g.ID
		}
	}

	apply(t, s, "t1", "ay_1", ParsedStudent{
		Enrollment: "1", Name: "ANA",
		Grades: []ParsedGrade{{Subject: "Mathematics", SubjectKey: "mathematics", Total: f64(9.25)}},
	})

	rows, err := s.GradesFor(ctx, st.ID, "mathematics", "t1", "ay_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].ID != firstID || *rows[0].Total != 9.25 || rows[0].Subject != "Mathematics" {
		t.Errorf("kept row = %+v, want first row with newest values", rows[0])
	}
}

func TestApply_GradeNullsOverwrite(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	apply(t, s, "", "", bulletinRecord())
	rec := bulletinRecord()
	rec.Grades[0].Total = nil
	rec.Grades[0].Absences = nil
	apply(t, s, "", "", rec)

	st, _ := s.StudentByEnrollment(ctx, "", "47270")
	rows, _ := s.GradesFor(ctx, st.ID, "mathematics", "", "")
	if len(rows) != 1 || rows[0].Total != nil || rows[0].Absences != nil || *rows[0].Period1 != 8.5 {
		t.Errorf("row = %+v, want blank total and absences", rows)
	}
}

func TestApply_GradesScopedByYear(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	apply(t, s, "", "ay_2024", bulletinRecord())
	apply(t, s, "", "ay_2025", bulletinRecord())

	if n, _ := s.CountGrades(ctx, ""); n != 4 {
		t.Errorf("grades = %d, want 2 per year", n)
	}
}
