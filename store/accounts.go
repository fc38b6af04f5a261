package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const accountColumns = `id, tenant_id, username, password_hash, role, student_id,
    must_change_password, created_at`

func scanAccount(row interface{ Scan(...any) error }) (*Account, error) {
	var a Account
	var must int
	err := row.Scan(&a.ID, &a.TenantID, &a.Username, &a.PasswordHash, &a.Role, &a.StudentID,
		&must, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.MustChangePassword = must != 0
	return &a, nil
}

// AccountByUsername returns the account with username, or nil.
func (c *conn) AccountByUsername(ctx context.Context, username string) (*Account, error) {
	a, err := scanAccount(c.queryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = ?`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("account %q: %w", username, err)
	}
	return a, nil
}

// AccountByStudent returns the first account linked to studentID, or nil.
func (c *conn) AccountByStudent(ctx context.Context, studentID string) (*Account, error) {
	a, err := scanAccount(c.queryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE student_id = ? ORDER BY created_at, id LIMIT 1`, studentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("account for student %s: %w", studentID, err)
	}
	return a, nil
}

// InsertAccount inserts a, assigning ID and CreatedAt.
func (c *conn) InsertAccount(ctx context.Context, a *Account) error {
	a.ID = c.newID("usr_")
	a.CreatedAt = c.stamp()
	_, err := c.exec(ctx, `INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TenantID, a.Username, a.PasswordHash, a.Role, a.StudentID,
		boolInt(a.MustChangePassword), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert account %q: %w", a.Username, err)
	}
	return nil
}

// LinkAccount points the account at studentID.
func (c *conn) LinkAccount(ctx context.Context, accountID, studentID string) error {
	res, err := c.exec(ctx, `UPDATE accounts SET student_id = ? WHERE id = ?`, studentID, accountID)
	if err != nil {
		return fmt.Errorf("link account %s: %w", accountID, err)
	}
	return mustAffect(res, "account", accountID)
}

// StudentsWithoutAccount returns the tenant's students no account links to.
func (c *conn) StudentsWithoutAccount(ctx context.Context, tenant string) ([]Student, error) {
	return c.scanStudents(ctx, `SELECT `+studentColumns+` FROM students s
        WHERE s.tenant_id = ?
          AND NOT EXISTS (SELECT 1 FROM accounts a WHERE a.student_id = s.id)
        ORDER BY s.created_at, s.id`, tenant)
}
