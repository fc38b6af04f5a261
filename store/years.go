package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const yearColumns = `id, tenant_id, label, is_current, created_at`

func scanYear(row interface{ Scan(...any) error }) (*AcademicYear, error) {
	var y AcademicYear
	var current int
	if err := row.Scan(&y.ID, &y.TenantID, &y.Label, &current, &y.CreatedAt); err != nil {
		return nil, err
	}
	y.IsCurrent = current != 0
	return &y, nil
}

// YearByID returns the academic year with id, or nil if none.
func (c *conn) YearByID(ctx context.Context, id string) (*AcademicYear, error) {
	y, err := scanYear(c.queryRow(ctx, `SELECT `+yearColumns+` FROM academic_years WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("year %s: %w", id, err)
	}
	return y, nil
}

// FindYear returns the tenant's year with label, or nil if none.
func (c *conn) FindYear(ctx context.Context, tenant, label string) (*AcademicYear, error) {
	y, err := scanYear(c.queryRow(ctx,
		`SELECT `+yearColumns+` FROM academic_years WHERE tenant_id = ? AND label = ?`, tenant, label))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find year %q: %w", label, err)
	}
	return y, nil
}

// CreateYear inserts a year. New years are never current.
func (c *conn) CreateYear(ctx context.Context, tenant, label string) (*AcademicYear, error) {
	y := &AcademicYear{
		ID:        c.newID("ay_"),
		TenantID:  tenant,
		Label:     label,
		CreatedAt: c.stamp(),
	}
	_, err := c.exec(ctx,
		`INSERT INTO academic_years (id, tenant_id, label, is_current, created_at) VALUES (?, ?, ?, 0, ?)`,
		y.ID, y.TenantID, y.Label, y.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create year %q: %w", label, err)
	}
	return y, nil
}

// FindOrCreateYear returns the tenant's year with label, creating it (not
// current) when absent. created reports whether a row was inserted.
func (c *conn) FindOrCreateYear(ctx context.Context, tenant, label string) (y *AcademicYear, created bool, err error) {
	y, err = c.FindYear(ctx, tenant, label)
	if err != nil || y != nil {
		return y, false, err
	}
	y, err = c.CreateYear(ctx, tenant, label)
	return y, err == nil, err
}

// SetCurrentYear marks id as the tenant's only current year.
func (c *conn) SetCurrentYear(ctx context.Context, tenant, id string) error {
	if _, err := c.exec(ctx, `UPDATE academic_years SET is_current = 0 WHERE tenant_id = ?`, tenant); err != nil {
		return err
	}
	res, err := c.exec(ctx, `UPDATE academic_years SET is_current = 1 WHERE id = ? AND tenant_id = ?`, id, tenant)
	if err != nil {
		return err
	}
	return mustAffect(res, "year", id)
}

// ListYears returns the tenant's years ordered by label.
func (c *conn) ListYears(ctx context.Context, tenant string) ([]AcademicYear, error) {
	rows, err := c.query(ctx,
		`SELECT `+yearColumns+` FROM academic_years WHERE tenant_id = ? ORDER BY label`, tenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AcademicYear
	for rows.Next() {
		y, err := scanYear(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *y)
	}
	return out, rows.Err()
}
