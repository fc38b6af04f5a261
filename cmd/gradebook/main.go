// Command gradebook ingests report-card documents into the gradebook
// database.
//
// Usage:
//
//	gradebook ingest   [-config F] [-tenant T] [-year ID] [-class C] [-shift S] FILE...
//	gradebook enqueue  [-config F] [-tenant T] [-year ID] [-class C] [-shift S] FILE...
//	gradebook worker   [-config F] [-workers N]
//	gradebook status   [-config F] [JOB]
//	gradebook students [-config F] [-tenant T] [-limit N] [-id STUDENT]
//	gradebook years    [-config F] [-tenant T] [-current YEAR]
//	gradebook accounts [-config F] [-tenant T]
//
// Configuration comes from the optional YAML file, then .env, then
// GRADEBOOK_* environment variables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/gradebook/accounts"
	"github.com/hazyhaar/gradebook/config"
	"github.com/hazyhaar/gradebook/docpipe"
	"github.com/hazyhaar/gradebook/idgen"
	"github.com/hazyhaar/gradebook/ingest"
	"github.com/hazyhaar/gradebook/jobs"
	"github.com/hazyhaar/gradebook/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("gradebook", "error", err)
		os.Exit(1)
	}
}

const usage = `usage: gradebook <ingest|enqueue|worker|status|students|years|accounts> [flags] [args]`

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	cmd, args := args[0], args[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	cfgPath := fs.String("config", "", "YAML configuration file")
	tenant := fs.String("tenant", "", "tenant id")
	var hints ingest.Hints
	workers := 1
	limit := 50
	var studentID, currentYear string
	switch cmd {
	case "ingest", "enqueue":
		fs.StringVar(&hints.AcademicYearID, "year", "", "academic year id used when the document names none")
		fs.StringVar(&hints.ClassLabel, "class", "", "class label used when a record has none")
		fs.StringVar(&hints.Shift, "shift", "", "shift used when a record has none")
	case "worker":
		fs.IntVar(&workers, "workers", workers, "concurrent ingestions")
	case "students":
		fs.IntVar(&limit, "limit", limit, "maximum rows")
		fs.StringVar(&studentID, "id", "", "show one student with grades")
	case "years":
		fs.StringVar(&currentYear, "current", "", "mark this year id as the tenant's current year")
	case "status", "accounts":
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	hints.TenantID = *tenant

	cfg, err := config.Load(*cfgPath, ".env")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	app, err := open(ctx, cfg, logger, workers)
	if err != nil {
		return err
	}
	defer app.close()

	switch cmd {
	case "ingest":
		return app.ingest(ctx, stdout, fs.Args(), hints)
	case "enqueue":
		return app.enqueue(ctx, stdout, fs.Args(), hints)
	case "worker":
		app.queue.Run(ctx, app.ingester.Ingest)
		return nil
	case "status":
		return app.status(ctx, stdout, fs.Args())
	case "students":
		if studentID != "" {
			return app.student(ctx, stdout, studentID)
		}
		return app.students(ctx, stdout, *tenant, limit)
	case "years":
		return app.years(ctx, stdout, *tenant, currentYear)
	case "accounts":
		return app.accounts(ctx, stdout, *tenant)
	}
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

type app struct {
	cfg         *config.Config
	store       *store.Store
	queue       *jobs.Queue
	ingester    *ingest.Ingester
	provisioner *accounts.Provisioner
	uploadIDs   idgen.Generator
}

func open(ctx context.Context, cfg *config.Config, logger *slog.Logger, workers int) (*app, error) {
	st, err := store.Open(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	q := jobs.New(st.DB(), st.Driver(), jobs.Options{
		Visibility:   cfg.Queue.Visibility,
		PollInterval: cfg.Queue.PollInterval,
		MaxAttempts:  cfg.Queue.MaxAttempts,
		Workers:      workers,
		Logger:       logger,
	})
	if err := q.EnsureTable(ctx); err != nil {
		st.Close()
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		store:     st,
		queue:     q,
		uploadIDs: idgen.Prefixed("upl_", idgen.Default),
	}
	opts := []ingest.Option{ingest.WithLogger(logger)}
	if cfg.Accounts.Enabled {
		a.provisioner = accounts.New(st,
			accounts.WithBcryptCost(cfg.Accounts.BcryptCost),
			accounts.WithLogger(logger),
		)
		opts = append(opts, ingest.WithProvisioner(a.provisioner.Provision))
	}
	pipe := docpipe.New(docpipe.Config{MaxFileSize: cfg.MaxFileBytes(), Logger: logger})
	a.ingester = ingest.New(pipe, ingest.SQLStore(st), opts...)
	return a, nil
}

func (a *app) close() { a.store.Close() }

func (a *app) ingest(ctx context.Context, w io.Writer, files []string, hints ingest.Hints) error {
	if len(files) == 0 {
		return errors.New("ingest: no files")
	}
	failed := 0
	for _, f := range files {
		res, err := a.ingester.Ingest(ctx, f, hints)
		if err != nil {
			failed++
			printFailure(w, f, err)
			continue
		}
		printResult(w, f, res)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(files))
	}
	return nil
}

// enqueue copies each file into the uploads directory so the worker reads a
// stable path, then queues it.
func (a *app) enqueue(ctx context.Context, w io.Writer, files []string, hints ingest.Hints) error {
	if len(files) == 0 {
		return errors.New("enqueue: no files")
	}
	if err := os.MkdirAll(a.cfg.UploadsDir, 0o755); err != nil {
		return fmt.Errorf("uploads dir: %w", err)
	}
	for _, f := range files {
		dst := filepath.Join(a.cfg.UploadsDir, a.uploadIDs()+filepath.Ext(f))
		if err := copyFile(f, dst); err != nil {
			return err
		}
		id, err := a.queue.Enqueue(ctx, dst, hints)
		if err != nil {
			os.Remove(dst)
			return err
		}
		fmt.Fprintf(w, "%s\t%s\n", id, f)
	}
	return nil
}

func (a *app) status(ctx context.Context, w io.Writer, ids []string) error {
	if len(ids) == 0 {
		counts, err := a.queue.Counts(ctx)
		if err != nil {
			return err
		}
		recent, err := a.queue.List(ctx, "", 20)
		if err != nil {
			return err
		}
		printQueue(w, counts, recent)
		return nil
	}
	for _, id := range ids {
		j, err := a.queue.Get(ctx, id)
		if err != nil {
			return err
		}
		printJob(w, j)
	}
	return nil
}

func (a *app) students(ctx context.Context, w io.Writer, tenant string, limit int) error {
	list, err := a.store.ListStudents(ctx, tenant, limit)
	if err != nil {
		return err
	}
	total, err := a.store.CountStudents(ctx, tenant)
	if err != nil {
		return err
	}
	printStudents(w, list, total)
	return nil
}

func (a *app) student(ctx context.Context, w io.Writer, id string) error {
	st, err := a.store.StudentByID(ctx, id)
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("student %s not found", id)
	}
	grades, err := a.store.GradesByStudent(ctx, st.ID)
	if err != nil {
		return err
	}
	printStudent(w, st, grades)
	return nil
}

// years lists the tenant's academic years, after switching the current one
// when current is set.
func (a *app) years(ctx context.Context, w io.Writer, tenant, current string) error {
	if current != "" {
		if err := a.store.SetCurrentYear(ctx, tenant, current); err != nil {
			return err
		}
	}
	list, err := a.store.ListYears(ctx, tenant)
	if err != nil {
		return err
	}
	printYears(w, list)
	return nil
}

func (a *app) accounts(ctx context.Context, w io.Writer, tenant string) error {
	if a.provisioner == nil {
		return errors.New("accounts: provisioning disabled in configuration")
	}
	n, err := a.provisioner.ProvisionMissing(ctx, tenant)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d accounts provisioned\n", n)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
