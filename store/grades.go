package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const gradeColumns = `id, student_id, tenant_id, academic_year_id, subject, subject_key,
    period1, period2, period3, total, recovery, absences, status,
    created_at, updated_at`

func scanGrade(row interface{ Scan(...any) error }) (*GradeRecord, error) {
	var g GradeRecord
	var p1, p2, p3, total, rec sql.NullFloat64
	var abs sql.NullInt64
	var status sql.NullString
	err := row.Scan(&g.ID, &g.StudentID, &g.TenantID, &g.AcademicYearID, &g.Subject, &g.SubjectKey,
		&p1, &p2, &p3, &total, &rec, &abs, &status, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	g.Period1 = floatPtr(p1)
	g.Period2 = floatPtr(p2)
	g.Period3 = floatPtr(p3)
	g.Total = floatPtr(total)
	g.Recovery = floatPtr(rec)
	if abs.Valid {
		n := int(abs.Int64)
		g.Absences = &n
	}
	g.Status = status.String
	return &g, nil
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// nullable maps a nil pointer to SQL NULL.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (c *conn) scanGrades(ctx context.Context, query string, args ...any) ([]GradeRecord, error) {
	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GradeRecord
	for rows.Next() {
		g, err := scanGrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// GradesFor returns every row for (student, subject key, tenant, year),
// oldest first. More than one row means earlier runs left duplicates.
func (c *conn) GradesFor(ctx context.Context, studentID, subjectKey, tenant, yearID string) ([]GradeRecord, error) {
	out, err := c.scanGrades(ctx, `SELECT `+gradeColumns+` FROM grade_records
        WHERE student_id = ? AND subject_key = ? AND tenant_id = ? AND academic_year_id = ?
        ORDER BY created_at, id`,
		studentID, subjectKey, tenant, yearID)
	if err != nil {
		return nil, fmt.Errorf("grades for %s/%s: %w", studentID, subjectKey, err)
	}
	return out, nil
}

// GradesByStudent returns all of a student's grade rows.
func (c *conn) GradesByStudent(ctx context.Context, studentID string) ([]GradeRecord, error) {
	return c.scanGrades(ctx, `SELECT `+gradeColumns+` FROM grade_records
        WHERE student_id = ? ORDER BY academic_year_id, subject_key, created_at, id`, studentID)
}

// CountGrades returns the number of grade rows for the tenant.
func (c *conn) CountGrades(ctx context.Context, tenant string) (int, error) {
	var n int
	err := c.queryRow(ctx, `SELECT COUNT(*) FROM grade_records WHERE tenant_id = ?`, tenant).Scan(&n)
	return n, err
}

// InsertGrade inserts g, assigning ID and timestamps.
func (c *conn) InsertGrade(ctx context.Context, g *GradeRecord) error {
	g.ID = c.newID("grd_")
	g.CreatedAt = c.stamp()
	g.UpdatedAt = g.CreatedAt
	_, err := c.exec(ctx, `INSERT INTO grade_records (`+gradeColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.StudentID, g.TenantID, g.AcademicYearID, g.Subject, g.SubjectKey,
		nullable(g.Period1), nullable(g.Period2), nullable(g.Period3),
		nullable(g.Total), nullable(g.Recovery), nullable(g.Absences), nullString(g.Status),
		g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert grade %s/%s: %w", g.StudentID, g.SubjectKey, err)
	}
	return nil
}

// UpdateGrade overwrites the subject spelling, scores and status of g,
// including nulls.
func (c *conn) UpdateGrade(ctx context.Context, g *GradeRecord) error {
	g.UpdatedAt = c.stamp()
	res, err := c.exec(ctx, `UPDATE grade_records SET
        subject = ?, period1 = ?, period2 = ?, period3 = ?, total = ?, recovery = ?,
        absences = ?, status = ?, updated_at = ?
        WHERE id = ?`,
		g.Subject, nullable(g.Period1), nullable(g.Period2), nullable(g.Period3),
		nullable(g.Total), nullable(g.Recovery), nullable(g.Absences), nullString(g.Status),
		g.UpdatedAt, g.ID)
	if err != nil {
		return fmt.Errorf("update grade %s: %w", g.ID, err)
	}
	return mustAffect(res, "grade", g.ID)
}

// DeleteGrades removes the rows with the given ids.
func (c *conn) DeleteGrades(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := `DELETE FROM grade_records WHERE id IN (?` + strings.Repeat(", ?", len(ids)-1) + `)`
	if _, err := c.exec(ctx, q, args...); err != nil {
		return fmt.Errorf("delete grades: %w", err)
	}
	return nil
}
