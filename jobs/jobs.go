// Package jobs runs document ingestions asynchronously from a database-backed
// queue with visibility timeouts.
//
// A claimed job is invisible to other workers for Options.Visibility. If the
// worker crashes the row reappears and another worker claims it. Finished and
// failed jobs stay in the table so callers can poll their outcome with Get.
//
// Schema (created by EnsureTable, same DDL on SQLite and Postgres):
//
//	CREATE TABLE IF NOT EXISTS ingest_jobs (
//	    id          TEXT PRIMARY KEY,
//	    path        TEXT NOT NULL,
//	    hints       TEXT NOT NULL,            -- JSON ingest.Hints
//	    status      TEXT NOT NULL,            -- queued|running|finished|failed
//	    attempts    INTEGER NOT NULL DEFAULT 0,
//	    visible_at  BIGINT NOT NULL,          -- milliseconds since epoch
//	    result      TEXT,                     -- JSON ingest.Result
//	    diagnostics TEXT NOT NULL DEFAULT '[]',
//	    error       TEXT NOT NULL DEFAULT '',
//	    created_at  BIGINT NOT NULL,
//	    updated_at  BIGINT NOT NULL
//	);
package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/gradebook/dbopen"
	"github.com/hazyhaar/gradebook/idgen"
	"github.com/hazyhaar/gradebook/ingest"
)

// ErrJobNotFound is returned by Get for an unknown id.
var ErrJobNotFound = errors.New("jobs: job not found")

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

// Job is one queued ingestion.
type Job struct {
	ID          string
	Path        string
	Hints       ingest.Hints
	Status      Status
	Attempts    int
	VisibleAt   time.Time
	Result      *ingest.Result
	Diagnostics []string
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IngestFunc processes one document. (*ingest.Ingester).Ingest satisfies it.
type IngestFunc func(ctx context.Context, path string, hints ingest.Hints) (*ingest.Result, error)

// Options configures queue behaviour.
type Options struct {
	// Visibility is how long a claimed job stays invisible. Default: 5m.
	Visibility time.Duration
	// PollInterval is the delay between claim rounds in Run. Default: 1s.
	PollInterval time.Duration
	// MaxAttempts bounds retries of non-document errors. Default: 3.
	MaxAttempts int
	// RetryDelay hides a job after a retryable failure. Default: PollInterval.
	RetryDelay time.Duration
	// Workers is the number of ingestions run concurrently by Run. Default: 1.
	Workers int
	// IDs generates job ids. Default: "job_" + UUIDv7.
	IDs idgen.Generator
	// Logger for queue events. Default: slog.Default().
	Logger *slog.Logger
	// Now replaces time.Now.
	Now func() time.Time
}

func (o *Options) defaults() {
	if o.Visibility <= 0 {
		o.Visibility = 5 * time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = o.PollInterval
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.IDs == nil {
		o.IDs = idgen.Prefixed("job_", idgen.Default)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Queue is the ingestion job queue.
type Queue struct {
	db     *sql.DB
	driver string
	opts   Options
}

// New creates a Queue on db. Call EnsureTable before use.
func New(db *sql.DB, driver string, opts Options) *Queue {
	opts.defaults()
	return &Queue{db: db, driver: driver, opts: opts}
}

// EnsureTable creates the ingest_jobs table and its index.
func (q *Queue) EnsureTable(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ingest_jobs (
			id          TEXT PRIMARY KEY,
			path        TEXT NOT NULL,
			hints       TEXT NOT NULL,
			status      TEXT NOT NULL,
			attempts    INTEGER NOT NULL DEFAULT 0,
			visible_at  BIGINT NOT NULL,
			result      TEXT,
			diagnostics TEXT NOT NULL DEFAULT '[]',
			error       TEXT NOT NULL DEFAULT '',
			created_at  BIGINT NOT NULL,
			updated_at  BIGINT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("jobs: create table: %w", err)
	}
	_, err = q.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_ingest_jobs_claim ON ingest_jobs (status, visible_at)`)
	if err != nil {
		return fmt.Errorf("jobs: create index: %w", err)
	}
	return nil
}

func (q *Queue) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return dbopen.Exec(ctx, q.db, dbopen.Rebind(q.driver, query), args...)
}

func (q *Queue) now() int64 { return q.opts.Now().UnixMilli() }

// Enqueue records a queued job for path and returns its id.
func (q *Queue) Enqueue(ctx context.Context, path string, hints ingest.Hints) (string, error) {
	if path == "" {
		return "", errors.New("jobs: empty path")
	}
	h, err := json.Marshal(hints)
	if err != nil {
		return "", fmt.Errorf("jobs: encode hints: %w", err)
	}
	id := q.opts.IDs()
	now := q.now()
	_, err = q.exec(ctx, `
		INSERT INTO ingest_jobs (id, path, hints, status, attempts, visible_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?)`,
		id, path, string(h), StatusQueued, now, now, now)
	if err != nil {
		return "", fmt.Errorf("jobs: enqueue: %w", err)
	}
	q.opts.Logger.Info("jobs: enqueued", "id", id, "path", path)
	return id, nil
}

const jobColumns = `id, path, hints, status, attempts, visible_at, result, diagnostics, error, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(sc scanner) (*Job, error) {
	var (
		j                    Job
		hints, diags         string
		result               sql.NullString
		visible, created, up int64
	)
	if err := sc.Scan(&j.ID, &j.Path, &hints, &j.Status, &j.Attempts, &visible,
		&result, &diags, &j.Error, &created, &up); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(hints), &j.Hints); err != nil {
		return nil, fmt.Errorf("jobs: decode hints of %s: %w", j.ID, err)
	}
	if err := json.Unmarshal([]byte(diags), &j.Diagnostics); err != nil {
		return nil, fmt.Errorf("jobs: decode diagnostics of %s: %w", j.ID, err)
	}
	if result.Valid {
		j.Result = new(ingest.Result)
		if err := json.Unmarshal([]byte(result.String), j.Result); err != nil {
			return nil, fmt.Errorf("jobs: decode result of %s: %w", j.ID, err)
		}
		j.Result.Diagnostics = j.Diagnostics
	}
	j.VisibleAt = time.UnixMilli(visible)
	j.CreatedAt = time.UnixMilli(created)
	j.UpdatedAt = time.UnixMilli(up)
	return &j, nil
}

// Get returns the job with id, or ErrJobNotFound.
func (q *Queue) Get(ctx context.Context, id string) (*Job, error) {
	row := q.db.QueryRowContext(ctx,
		dbopen.Rebind(q.driver, `SELECT `+jobColumns+` FROM ingest_jobs WHERE id = ?`), id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("jobs: get %s: %w", id, err)
	}
	return j, nil
}

// List returns the most recent jobs, newest first. An empty status lists
// every state.
func (q *Queue) List(ctx context.Context, status Status, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + jobColumns + ` FROM ingest_jobs`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := q.db.QueryContext(ctx, dbopen.Rebind(q.driver, query), args...)
	if err != nil {
		return nil, fmt.Errorf("jobs: list: %w", err)
	}
	defer rows.Close()
	var out []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// Counts returns the number of jobs per status.
func (q *Queue) Counts(ctx context.Context) (map[Status]int, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM ingest_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("jobs: counts: %w", err)
	}
	defer rows.Close()
	out := make(map[Status]int)
	for rows.Next() {
		var s Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[s] = n
	}
	return out, rows.Err()
}

// Claim atomically takes up to n visible jobs and hides them for the
// visibility timeout. Running jobs whose timeout expired are claimed again.
// It returns an empty slice when nothing is visible.
func (q *Queue) Claim(ctx context.Context, n int) ([]*Job, error) {
	if n <= 0 {
		n = 1
	}
	now := q.opts.Now()
	hideUntil := now.Add(q.opts.Visibility).UnixMilli()

	lock := ""
	if !dbopen.IsSQLite(q.driver) {
		lock = ` FOR UPDATE SKIP LOCKED`
	}
	query := `
		UPDATE ingest_jobs
		SET status = ?, visible_at = ?, attempts = attempts + 1, updated_at = ?
		WHERE id IN (
			SELECT id FROM ingest_jobs
			WHERE status IN (?, ?) AND visible_at <= ?
			ORDER BY visible_at ASC, id ASC
			LIMIT ?` + lock + `
		)
		RETURNING ` + jobColumns

	rows, err := q.db.QueryContext(ctx, dbopen.Rebind(q.driver, query),
		StatusRunning, hideUntil, now.UnixMilli(),
		StatusQueued, StatusRunning, now.UnixMilli(), n)
	if err != nil {
		return nil, fmt.Errorf("jobs: claim: %w", err)
	}
	defer rows.Close()

	out := []*Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// Finish stores a successful result.
func (q *Queue) Finish(ctx context.Context, id string, res *ingest.Result) error {
	diags := res.Diagnostics
	if diags == nil {
		diags = []string{}
	}
	d, err := json.Marshal(diags)
	if err != nil {
		return fmt.Errorf("jobs: encode diagnostics: %w", err)
	}
	stripped := *res
	stripped.Diagnostics = nil
	r, err := json.Marshal(stripped)
	if err != nil {
		return fmt.Errorf("jobs: encode result: %w", err)
	}
	return q.settle(ctx, id, `UPDATE ingest_jobs SET status = ?, result = ?, diagnostics = ?, error = '', updated_at = ? WHERE id = ?`,
		StatusFinished, string(r), string(d), q.now(), id)
}

// Fail marks a job failed for good.
func (q *Queue) Fail(ctx context.Context, id string, cause error) error {
	return q.settle(ctx, id, `UPDATE ingest_jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		StatusFailed, cause.Error(), q.now(), id)
}

// Retry requeues a job after a retryable failure. It becomes visible again
// after RetryDelay.
func (q *Queue) Retry(ctx context.Context, id string, cause error) error {
	now := q.opts.Now()
	return q.settle(ctx, id, `UPDATE ingest_jobs SET status = ?, error = ?, visible_at = ?, updated_at = ? WHERE id = ?`,
		StatusQueued, cause.Error(), now.Add(q.opts.RetryDelay).UnixMilli(), now.UnixMilli(), id)
}

func (q *Queue) settle(ctx context.Context, id, query string, args ...any) error {
	res, err := q.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("jobs: update %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// Process runs fn for one claimed job and records its outcome. A document
// error fails the job at once; other errors are retried until MaxAttempts.
func (q *Queue) Process(ctx context.Context, j *Job, fn IngestFunc) {
	log := q.opts.Logger.With("id", j.ID, "path", j.Path, "attempt", j.Attempts)

	// Settle with a fresh context so a cancelled worker still records state.
	settleCtx := context.WithoutCancel(ctx)

	if j.Attempts > q.opts.MaxAttempts {
		log.Warn("jobs: max attempts exceeded")
		_ = q.Fail(settleCtx, j.ID, fmt.Errorf("max attempts (%d) exceeded", q.opts.MaxAttempts))
		return
	}

	res, err := fn(ctx, j.Path, j.Hints)
	switch {
	case err == nil:
		if res == nil {
			res = &ingest.Result{}
		}
		if ferr := q.Finish(settleCtx, j.ID, res); ferr != nil {
			log.Error("jobs: record result", "error", ferr)
			return
		}
		log.Info("jobs: finished", "students", res.StudentsAffected, "diagnostics", len(res.Diagnostics))
	case ingest.IsDocumentError(err):
		log.Warn("jobs: document rejected", "error", err)
		_ = q.Fail(settleCtx, j.ID, err)
	case j.Attempts >= q.opts.MaxAttempts:
		log.Warn("jobs: failed, no attempts left", "error", err)
		_ = q.Fail(settleCtx, j.ID, err)
	default:
		log.Warn("jobs: failed, will retry", "error", err)
		_ = q.Retry(settleCtx, j.ID, err)
	}
}

// RunOnce claims and processes visible jobs until none remain, then returns
// the number processed.
func (q *Queue) RunOnce(ctx context.Context, fn IngestFunc) (int, error) {
	total := 0
	for {
		batch, err := q.Claim(ctx, q.opts.Workers)
		if err != nil {
			return total, err
		}
		if len(batch) == 0 {
			return total, nil
		}
		q.dispatch(ctx, batch, fn)
		total += len(batch)
	}
}

func (q *Queue) dispatch(ctx context.Context, batch []*Job, fn IngestFunc) {
	var wg sync.WaitGroup
	for _, j := range batch {
		wg.Add(1)
		go func(j *Job) {
			defer wg.Done()
			q.Process(ctx, j, fn)
		}(j)
	}
	wg.Wait()
}

// Run polls the queue until ctx is cancelled, processing up to
// Options.Workers jobs at a time. In-flight ingestions are drained before
// Run returns.
func (q *Queue) Run(ctx context.Context, fn IngestFunc) {
	log := q.opts.Logger
	log.Info("jobs: worker started",
		"workers", q.opts.Workers,
		"visibility", q.opts.Visibility,
		"poll", q.opts.PollInterval,
		"max_attempts", q.opts.MaxAttempts,
	)

	sem := make(chan struct{}, q.opts.Workers)
	var wg sync.WaitGroup

	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("jobs: worker stopping, draining in-flight ingestions")
			wg.Wait()
			log.Info("jobs: worker stopped")
			return
		case <-ticker.C:
			free := q.opts.Workers - len(sem)
			if free <= 0 {
				continue
			}
			batch, err := q.Claim(ctx, free)
			if err != nil {
				if ctx.Err() != nil {
					wg.Wait()
					return
				}
				log.Warn("jobs: claim failed", "error", err)
				continue
			}
			for _, j := range batch {
				sem <- struct{}{}
				wg.Add(1)
				go func(j *Job) {
					defer wg.Done()
					defer func() { <-sem }()
					q.Process(ctx, j, fn)
				}(j)
			}
		}
	}
}
