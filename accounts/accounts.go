// Package accounts provisions a login for every student written by
// ingestion.
//
// The username is the student's first name folded to [a-z0-9] followed by
// the enrollment number. The initial password is the enrollment number,
// hashed with bcrypt, and must be changed at first login.
package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/gradebook/ingest"
	"github.com/hazyhaar/gradebook/store"
)

// fallbackName is used when a student's first name folds to nothing.
const fallbackName = "student"

// Store is the account persistence the provisioner needs. *store.Store
// implements it.
type Store interface {
	AccountByUsername(ctx context.Context, username string) (*store.Account, error)
	AccountByStudent(ctx context.Context, studentID string) (*store.Account, error)
	InsertAccount(ctx context.Context, a *store.Account) error
	LinkAccount(ctx context.Context, accountID, studentID string) error
	YearByID(ctx context.Context, id string) (*store.AcademicYear, error)
	StudentsWithoutAccount(ctx context.Context, tenant string) ([]store.Student, error)
}

// Provisioner creates student accounts.
type Provisioner struct {
	store  Store
	cost   int
	logger *slog.Logger
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithBcryptCost sets the bcrypt cost. Default: bcrypt.DefaultCost.
func WithBcryptCost(cost int) Option { return func(p *Provisioner) { p.cost = cost } }

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(p *Provisioner) { p.logger = l } }

// New creates a Provisioner.
func New(st Store, opts ...Option) *Provisioner {
	p := &Provisioner{store: st, cost: bcrypt.DefaultCost, logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Username builds the login name of s.
func Username(s store.Student) string {
	first := ""
	if f := strings.Fields(s.Name); len(f) > 0 {
		first = f[0]
	}
	prefix := strings.ReplaceAll(ingest.Slugify(first), "-", "")
	if prefix == "" {
		prefix = fallbackName
	}
	return strings.ToLower(prefix + s.Enrollment)
}

// Provision makes sure s has an account. An account with the same username
// is reused, and relinked to s when s belongs to the current year. An
// account already linked to s is reused. Otherwise a new one is created.
// Students with a generated enrollment get no account.
func (p *Provisioner) Provision(ctx context.Context, s store.Student) error {
	if ingest.IsPlaceholder(s.Enrollment) {
		return nil
	}
	username := Username(s)

	acc, err := p.store.AccountByUsername(ctx, username)
	if err != nil {
		return err
	}
	if acc != nil {
		if acc.StudentID != s.ID && p.inCurrentYear(ctx, s) {
			if err := p.store.LinkAccount(ctx, acc.ID, s.ID); err != nil {
				return err
			}
			p.logger.Info("student account relinked", "username", username, "student", s.ID)
		}
		return nil
	}

	acc, err = p.store.AccountByStudent(ctx, s.ID)
	if err != nil || acc != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.Enrollment), p.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	acc = &store.Account{
		TenantID:           s.TenantID,
		Username:           username,
		PasswordHash:       string(hash),
		Role:               store.RoleStudent,
		StudentID:          s.ID,
		MustChangePassword: true,
	}
	if err := p.store.InsertAccount(ctx, acc); err != nil {
		return err
	}
	p.logger.Info("student account created", "username", username, "tenant", s.TenantID)
	return nil
}

// ProvisionMissing provisions every student of tenant that has no account
// yet and returns how many were handled. It stops at the first error.
func (p *Provisioner) ProvisionMissing(ctx context.Context, tenant string) (int, error) {
	students, err := p.store.StudentsWithoutAccount(ctx, tenant)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, s := range students {
		if ingest.IsPlaceholder(s.Enrollment) {
			continue
		}
		if err := p.Provision(ctx, s); err != nil {
			return n, fmt.Errorf("provision %s: %w", s.Enrollment, err)
		}
		n++
	}
	if n > 0 {
		p.logger.Info("pending student accounts provisioned", "tenant", tenant, "count", n)
	}
	return n, nil
}

func (p *Provisioner) inCurrentYear(ctx context.Context, s store.Student) bool {
	if s.AcademicYearID == "" {
		return false
	}
	y, err := p.store.YearByID(ctx, s.AcademicYearID)
	return err == nil && y != nil && y.IsCurrent
}
