package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const studentColumns = `id, tenant_id, enrollment, name, class_label, shift,
    sex, birth_date, birthplace, zone, address, guardians, phones,
    tax_id, social_id, national_id, prior_status, academic_year_id,
    created_at, updated_at`

func scanStudent(row interface{ Scan(...any) error }) (*Student, error) {
	var s Student
	err := row.Scan(&s.ID, &s.TenantID, &s.Enrollment, &s.Name, &s.ClassLabel, &s.Shift,
		&s.Sex, &s.BirthDate, &s.Birthplace, &s.Zone, &s.Address, &s.Guardians, &s.Phones,
		&s.TaxID, &s.SocialID, &s.NationalID, &s.PriorStatus, &s.AcademicYearID,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *conn) scanStudents(ctx context.Context, query string, args ...any) ([]Student, error) {
	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// StudentByID returns the student with id, or nil if none.
func (c *conn) StudentByID(ctx context.Context, id string) (*Student, error) {
	s, err := scanStudent(c.queryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("student %s: %w", id, err)
	}
	return s, nil
}

// StudentByEnrollment returns the tenant's student with enrollment, or nil.
func (c *conn) StudentByEnrollment(ctx context.Context, tenant, enrollment string) (*Student, error) {
	s, err := scanStudent(c.queryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE tenant_id = ? AND enrollment = ?`,
		tenant, enrollment))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("student by enrollment %q: %w", enrollment, err)
	}
	return s, nil
}

// StudentsByName returns the tenant's students whose name equals name
// exactly, oldest first.
func (c *conn) StudentsByName(ctx context.Context, tenant, name string) ([]Student, error) {
	out, err := c.scanStudents(ctx,
		`SELECT `+studentColumns+` FROM students WHERE tenant_id = ? AND name = ? ORDER BY created_at, id`,
		tenant, name)
	if err != nil {
		return nil, fmt.Errorf("students by name %q: %w", name, err)
	}
	return out, nil
}

// ListStudents returns the tenant's students ordered by class and name.
// limit <= 0 means no limit.
func (c *conn) ListStudents(ctx context.Context, tenant string, limit int) ([]Student, error) {
	q := `SELECT ` + studentColumns + ` FROM students WHERE tenant_id = ? ORDER BY class_label, name, id`
	args := []any{tenant}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	return c.scanStudents(ctx, q, args...)
}

// CountStudents returns the number of the tenant's students.
func (c *conn) CountStudents(ctx context.Context, tenant string) (int, error) {
	var n int
	err := c.queryRow(ctx, `SELECT COUNT(*) FROM students WHERE tenant_id = ?`, tenant).Scan(&n)
	return n, err
}

// InsertStudent inserts s, assigning ID and timestamps.
func (c *conn) InsertStudent(ctx context.Context, s *Student) error {
	s.ID = c.newID("stu_")
	s.CreatedAt = c.stamp()
	s.UpdatedAt = s.CreatedAt
	_, err := c.exec(ctx, `INSERT INTO students (`+studentColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.TenantID, s.Enrollment, s.Name, s.ClassLabel, s.Shift,
		s.Sex, s.BirthDate, s.Birthplace, s.Zone, s.Address, s.Guardians, s.Phones,
		s.TaxID, s.SocialID, s.NationalID, s.PriorStatus, s.AcademicYearID,
		s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert student %q: %w", s.Enrollment, err)
	}
	return nil
}

// UpdateStudent writes every mutable column of s and refreshes UpdatedAt.
func (c *conn) UpdateStudent(ctx context.Context, s *Student) error {
	s.UpdatedAt = c.stamp()
	res, err := c.exec(ctx, `UPDATE students SET
        enrollment = ?, name = ?, class_label = ?, shift = ?,
        sex = ?, birth_date = ?, birthplace = ?, zone = ?, address = ?,
        guardians = ?, phones = ?, tax_id = ?, social_id = ?, national_id = ?,
        prior_status = ?, academic_year_id = ?, updated_at = ?
        WHERE id = ?`,
		s.Enrollment, s.Name, s.ClassLabel, s.Shift,
		s.Sex, s.BirthDate, s.Birthplace, s.Zone, s.Address,
		s.Guardians, s.Phones, s.TaxID, s.SocialID, s.NationalID,
		s.PriorStatus, s.AcademicYearID, s.UpdatedAt, s.ID)
	if err != nil {
		return fmt.Errorf("update student %s: %w", s.ID, err)
	}
	return mustAffect(res, "student", s.ID)
}
