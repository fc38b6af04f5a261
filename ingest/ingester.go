// Package ingest turns report-card documents into student and grade records
// and reconciles them with the store.
//
// A call extracts pages, classifies the document, parses every page in
// order into an in-memory record set, then applies the whole set inside one
// transaction. Only an unreadable document fails the call; page, row and
// value anomalies are returned as diagnostics.
//
// Usage:
//
//	in := ingest.New(docpipe.New(docpipe.Config{}), ingest.SQLStore(st),
//		ingest.WithProvisioner(accounts.New(st).Provision))
//	res, err := in.Ingest(ctx, "bulletin.pdf", ingest.Hints{TenantID: "school-1"})
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hazyhaar/gradebook/docpipe"
	"github.com/hazyhaar/gradebook/store"
)

// Hints are optional caller-supplied context for one document.
type Hints struct {
	Shift          string `json:"shift,omitempty" validate:"omitempty,max=32"`
	ClassLabel     string `json:"class_label,omitempty" validate:"omitempty,max=64"`
	TenantID       string `json:"tenant_id,omitempty" validate:"omitempty,max=64"`
	AcademicYearID string `json:"academic_year_id,omitempty" validate:"omitempty,max=64"`
}

// Result is returned by a successful ingestion.
type Result struct {
	StudentsAffected  int      `json:"students_affected"`
	Diagnostics       []string `json:"diagnostics"`
	ResolvedYearLabel string   `json:"resolved_year_label"`
	Family            Family   `json:"family"`
	Pages             int      `json:"pages"`
}

// DocumentError reports a file that could not be opened or decoded. No
// transaction is opened when it is returned.
type DocumentError struct {
	Path string
	Err  error
}

func (e *DocumentError) Error() string { return fmt.Sprintf("document %s: %v", e.Path, e.Err) }
func (e *DocumentError) Unwrap() error { return e.Err }

// IsDocumentError reports whether err is document-fatal.
func IsDocumentError(err error) bool {
	var de *DocumentError
	return errors.As(err, &de)
}

// Extractor decodes a file into pages.
type Extractor interface {
	Extract(ctx context.Context, path string) (*docpipe.Document, error)
}

// ProvisionFunc is called after commit for every created or promoted
// student. Its failure never undoes the ingestion.
type ProvisionFunc func(ctx context.Context, s store.Student) error

// Ingester runs the full pipeline for one document per call. It is safe for
// concurrent use.
type Ingester struct {
	extractor Extractor
	store     Store
	provision ProvisionFunc
	logger    *slog.Logger
	validate  *validator.Validate
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithProvisioner sets the account provisioning callback.
func WithProvisioner(fn ProvisionFunc) Option {
	return func(in *Ingester) { in.provision = fn }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(in *Ingester) { in.logger = l }
}

// New creates an Ingester.
func New(ext Extractor, st Store, opts ...Option) *Ingester {
	in := &Ingester{
		extractor: ext,
		store:     st,
		logger:    slog.Default(),
		validate:  validator.New(),
	}
	for _, o := range opts {
		o(in)
	}
	return in
}

// Ingest extracts path and applies it. The returned error is a
// *DocumentError when the file is unreadable, a context error when ctx ended
// before extraction finished, or a storage error when the transaction failed
// and was rolled back.
func (in *Ingester) Ingest(ctx context.Context, path string, hints Hints) (*Result, error) {
	if err := in.validate.Struct(hints); err != nil {
		return nil, fmt.Errorf("invalid hints: %w", err)
	}
	doc, err := in.extractor.Extract(ctx, path)
	if err != nil {
		// A cancelled call says nothing about the file.
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("extract %s: %w", path, err)
		}
		return nil, &DocumentError{Path: path, Err: err}
	}
	return in.IngestDocument(ctx, doc, hints)
}

// IngestDocument applies an already extracted document.
func (in *Ingester) IngestDocument(ctx context.Context, doc *docpipe.Document, hints Hints) (*Result, error) {
	start := time.Now()
	if err := in.validate.Struct(hints); err != nil {
		return nil, fmt.Errorf("invalid hints: %w", err)
	}

	parsed := Parse(doc, hints)
	diags := parsed.Diagnostics

	var out Outcome
	var yearLabel string
	var yearDiags Diagnostics
	err := in.store.InTx(ctx, func(tx Tx) error {
		// InTx may retry on lock contention: start from scratch each time.
		yearDiags = nil
		yearID, label, err := resolveYear(ctx, tx, hints, parsed.YearLabel, yearDiags.At(0, ""))
		if err != nil {
			return err
		}
		yearLabel = label
		out, err = Reconciler{}.Apply(ctx, tx, hints.TenantID, yearID, parsed.Records)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile %s: %w", doc.Path, err)
	}
	diags = append(diags, yearDiags...)
	diags = append(diags, out.Diagnostics...)

	if in.provision != nil {
		r := diags.At(0, "")
		for _, group := range [][]store.Student{out.Created, out.Promoted} {
			for _, s := range group {
				if IsPlaceholder(s.Enrollment) {
					continue
				}
				if err := in.provision(ctx, s); err != nil {
					r.Addf("account for %s not provisioned: %v", s.Enrollment, err)
				}
			}
		}
	}

	diags.Log(in.logger)
	in.logger.Info("document ingested",
		"path", doc.Path,
		"family", parsed.Family,
		"pages", len(doc.Pages),
		"students", out.Affected,
		"created", len(out.Created),
		"promoted", len(out.Promoted),
		"year", yearLabel,
		"diagnostics", len(diags),
		"elapsed", time.Since(start),
	)

	return &Result{
		StudentsAffected:  out.Affected,
		Diagnostics:       diags.Strings(),
		ResolvedYearLabel: yearLabel,
		Family:            parsed.Family,
		Pages:             len(doc.Pages),
	}, nil
}

// resolveYear picks the year context: the label printed on the document
// (created when missing), else the caller's year id, else none.
func resolveYear(ctx context.Context, tx Tx, hints Hints, label string, r Reporter) (id, resolved string, err error) {
	if label != "" {
		y, _, err := tx.FindOrCreateYear(ctx, hints.TenantID, label)
		if err != nil {
			return "", "", fmt.Errorf("academic year %s: %w", label, err)
		}
		return y.ID, y.Label, nil
	}
	if hints.AcademicYearID != "" {
		y, err := tx.YearByID(ctx, hints.AcademicYearID)
		if err != nil {
			return "", "", err
		}
		if y == nil {
			r.Addf("academic year %s not found; used as given", hints.AcademicYearID)
			return hints.AcademicYearID, "", nil
		}
		if y.TenantID != hints.TenantID {
			r.Addf("academic year %s belongs to another tenant; grades recorded without a year", hints.AcademicYearID)
			return "", "", nil
		}
		return y.ID, y.Label, nil
	}
	r.Addf("no academic year found; grades recorded without a year")
	return "", "", nil
}
