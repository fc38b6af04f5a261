package ingest

import (
	"context"
	"fmt"

	"github.com/hazyhaar/gradebook/store"
)

// Tx is the storage port the reconciler writes through. Every operation is
// scoped by tenant; "" is the empty tenant or year. *store.Tx implements it.
type Tx interface {
	FindOrCreateYear(ctx context.Context, tenant, label string) (*store.AcademicYear, bool, error)
	YearByID(ctx context.Context, id string) (*store.AcademicYear, error)

	StudentByEnrollment(ctx context.Context, tenant, enrollment string) (*store.Student, error)
	StudentsByName(ctx context.Context, tenant, name string) ([]store.Student, error)
	InsertStudent(ctx context.Context, s *store.Student) error
	UpdateStudent(ctx context.Context, s *store.Student) error

	GradesFor(ctx context.Context, studentID, subjectKey, tenant, yearID string) ([]store.GradeRecord, error)
	InsertGrade(ctx context.Context, g *store.GradeRecord) error
	UpdateGrade(ctx context.Context, g *store.GradeRecord) error
	DeleteGrades(ctx context.Context, ids ...string) error
}

// Store opens the single transaction of an ingestion call.
type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error
}

type sqlStore struct{ s *store.Store }

// SQLStore adapts *store.Store to the Store port.
func SQLStore(s *store.Store) Store { return sqlStore{s} }

func (a sqlStore) InTx(ctx context.Context, fn func(Tx) error) error {
	return a.s.InTx(ctx, func(tx *store.Tx) error { return fn(tx) })
}

// Outcome summarises one reconciliation.
type Outcome struct {
	Affected    int
	Created     []store.Student
	Promoted    []store.Student
	Diagnostics Diagnostics
}

// Reconciler resolves identities and upserts parsed records.
type Reconciler struct{}

// Apply writes records through tx. Matching tries the enrollment first, then
// the exact name for records with a real enrollment. The first error aborts
// and is returned unchanged so the caller's transaction rolls back.
func (Reconciler) Apply(ctx context.Context, tx Tx, tenant, yearID string, records []ParsedStudent) (Outcome, error) {
	var out Outcome
	for _, rec := range records {
		st, err := matchStudent(ctx, tx, tenant, rec, out.Diagnostics.At(0, rec.Enrollment))
		if err != nil {
			return out, err
		}
		if st == nil {
			st = newStudent(rec, tenant, yearID)
			if err := tx.InsertStudent(ctx, st); err != nil {
				return out, err
			}
			out.Created = append(out.Created, *st)
		} else {
			promoted := mergeStudent(st, rec, yearID)
			if err := tx.UpdateStudent(ctx, st); err != nil {
				return out, err
			}
			if promoted {
				out.Promoted = append(out.Promoted, *st)
			}
		}

		for _, g := range rec.Grades {
			if err := upsertGrade(ctx, tx, st.ID, tenant, yearID, g); err != nil {
				return out, err
			}
		}
		out.Affected++
	}
	return out, nil
}

func matchStudent(ctx context.Context, tx Tx, tenant string, rec ParsedStudent, r Reporter) (*store.Student, error) {
	st, err := tx.StudentByEnrollment(ctx, tenant, rec.Enrollment)
	if err != nil || st != nil {
		return st, err
	}
	if rec.Name == "" {
		return nil, nil
	}
	byName, err := tx.StudentsByName(ctx, tenant, rec.Name)
	if err != nil || len(byName) == 0 {
		return nil, err
	}
	if IsPlaceholder(rec.Enrollment) {
		// Placeholders never merge by name; flag the likely duplicate.
		for _, o := range byName {
			if !IsPlaceholder(o.Enrollment) {
				r.Addf("%q matches enrolled student %s by name; stored separately as a possible duplicate", rec.Name, o.Enrollment)
				break
			}
		}
		return nil, nil
	}
	if len(byName) > 1 {
		r.Addf("%d students named %q; merged into %s", len(byName), rec.Name, byName[0].Enrollment)
	}
	return &byName[0], nil
}

func newStudent(rec ParsedStudent, tenant, yearID string) *store.Student {
	return &store.Student{
		TenantID:       tenant,
		Enrollment:     rec.Enrollment,
		Name:           rec.Name,
		ClassLabel:     rec.ClassLabel,
		Shift:          rec.Shift,
		Sex:            rec.Sex,
		BirthDate:      rec.BirthDate,
		Birthplace:     rec.Birthplace,
		Zone:           rec.Zone,
		Address:        rec.Address,
		Guardians:      rec.Guardians,
		Phones:         rec.Phones,
		TaxID:          rec.TaxID,
		SocialID:       rec.SocialID,
		NationalID:     rec.NationalID,
		PriorStatus:    rec.PriorStatus,
		AcademicYearID: yearID,
	}
}

// mergeStudent applies rec onto st. The name and year pointer always take
// the incoming value; optional fields only when non-empty. It reports
// whether a placeholder enrollment was replaced by a real one.
func mergeStudent(st *store.Student, rec ParsedStudent, yearID string) (promoted bool) {
	st.Name = rec.Name
	st.AcademicYearID = yearID

	dst := []*string{
		&st.ClassLabel, &st.Shift, &st.Sex, &st.BirthDate, &st.Birthplace, &st.Zone,
		&st.Address, &st.Guardians, &st.Phones, &st.TaxID, &st.SocialID,
		&st.NationalID, &st.PriorStatus,
	}
	for i, v := range rec.optionalFields() {
		if *v != "" {
			*dst[i] = *v
		}
	}

	if IsPlaceholder(st.Enrollment) && !IsPlaceholder(rec.Enrollment) {
		st.Enrollment = rec.Enrollment
		return true
	}
	return false
}

// upsertGrade keeps exactly one row per (student, subject key, tenant, year)
// and overwrites it with g, nulls included.
func upsertGrade(ctx context.Context, tx Tx, studentID, tenant, yearID string, g ParsedGrade) error {
	rows, err := tx.GradesFor(ctx, studentID, g.SubjectKey, tenant, yearID)
	if err != nil {
		return err
	}
	if len(rows) > 1 {
		ids := make([]string, 0, len(rows)-1)
		for _, d := range rows[1:] {
			ids = append(ids, d.ID)
		}
		if err := tx.DeleteGrades(ctx, ids...); err != nil {
			return fmt.Errorf("dedup %s: %w", g.SubjectKey, err)
		}
	}

	if len(rows) == 0 {
		rec := &store.GradeRecord{
			StudentID:      studentID,
			TenantID:       tenant,
			AcademicYearID: yearID,
			SubjectKey:     g.SubjectKey,
		}
		applyGrade(rec, g)
		return tx.InsertGrade(ctx, rec)
	}
	rec := rows[0]
	applyGrade(&rec, g)
	return tx.UpdateGrade(ctx, &rec)
}

func applyGrade(dst *store.GradeRecord, g ParsedGrade) {
	dst.Subject = g.Subject
	dst.Period1 = g.Period1
	dst.Period2 = g.Period2
	dst.Period3 = g.Period3
	dst.Total = g.Total
	dst.Recovery = g.Recovery
	dst.Absences = g.Absences
	dst.Status = g.Status
}
