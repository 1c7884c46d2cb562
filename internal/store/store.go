// Package store keeps the history of forge jobs run through the web server
// in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for unknown job IDs
var ErrNotFound = errors.New("job not found")

// Status of a job
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Job is one forge run
type Job struct {
	ID             string        `json:"id"`
	Hueforge       string        `json:"hueforge"`
	HueforgeDigest string        `json:"hueforge_digest"`
	Base           string        `json:"base"`
	BaseDigest     string        `json:"base_digest"`
	Output         string        `json:"output"`
	Format         string        `json:"format"`
	Options        string        `json:"options,omitempty"`
	Status         Status        `json:"status"`
	Error          string        `json:"error,omitempty"`
	Log            []string      `json:"log,omitempty"`
	Duration       time.Duration `json:"duration"`
	CreatedAt      time.Time     `json:"created_at"`
	FinishedAt     time.Time     `json:"finished_at"`
}

// Store manages the job database
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	hueforge TEXT NOT NULL,
	hueforge_digest TEXT NOT NULL DEFAULT '',
	base TEXT NOT NULL,
	base_digest TEXT NOT NULL DEFAULT '',
	output TEXT NOT NULL DEFAULT '',
	format TEXT NOT NULL DEFAULT '',
	options TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	log_json TEXT NOT NULL DEFAULT '[]',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at);
`

// Open creates or opens the job database at path
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Create records a new running job and returns its ID
func (s *Store) Create(ctx context.Context, job Job) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.Status == "" {
		job.Status = StatusRunning
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, hueforge, hueforge_digest, base, base_digest, output, format, options, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Hueforge, job.HueforgeDigest, job.Base, job.BaseDigest,
		job.Output, job.Format, job.Options, string(job.Status), job.CreatedAt.UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}
	return job.ID, nil
}

// Finish stores the outcome of a job
func (s *Store) Finish(ctx context.Context, id string, status Status, output, errMsg string, log []string, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if log == nil {
		log = []string{}
	}
	logJSON, err := json.Marshal(log)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, output = ?, error = ?, log_json = ?, duration_ms = ?, finished_at = ?
		WHERE id = ?`,
		string(status), output, errMsg, string(logJSON), duration.Milliseconds(), time.Now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failed to finish job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

const selectJob = `
	SELECT id, hueforge, hueforge_digest, base, base_digest, output, format, options,
		status, error, log_json, duration_ms, created_at, finished_at
	FROM jobs`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*Job, error) {
	var (
		job                   Job
		status, logJSON       string
		durationMS            int64
		createdAt, finishedAt int64
	)
	err := row.Scan(&job.ID, &job.Hueforge, &job.HueforgeDigest, &job.Base, &job.BaseDigest,
		&job.Output, &job.Format, &job.Options, &status, &job.Error, &logJSON,
		&durationMS, &createdAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	job.Status = Status(status)
	job.Duration = time.Duration(durationMS) * time.Millisecond
	job.CreatedAt = time.Unix(0, createdAt)
	if finishedAt > 0 {
		job.FinishedAt = time.Unix(0, finishedAt)
	}
	if err := json.Unmarshal([]byte(logJSON), &job.Log); err != nil {
		return nil, fmt.Errorf("corrupt log of job %s: %w", job.ID, err)
	}
	return &job, nil
}

// Get returns one job
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, selectJob+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job: %w", err)
	}
	return job, nil
}

// List returns the newest jobs first, at most limit (all when limit <= 0)
func (s *Store) List(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, selectJob+` ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}
