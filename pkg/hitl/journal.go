package hitl

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Journal keeps track of calls that are waiting for a person
type Journal interface {
	Record(ctx context.Context, call DeferredToolCall, workflowRunID string) error
	Complete(ctx context.Context, toolCallID string) error
}

// JournalEntry is one pending call as stored
type JournalEntry struct {
	ToolCallID    string
	Method        string
	Args          map[string]interface{}
	WorkflowRunID string
	CreatedAt     time.Time
}

// SQLiteJournal stores pending calls in a SQLite database
type SQLiteJournal struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

const journalSchema = `
CREATE TABLE IF NOT EXISTS deferred_calls (
	tool_call_id    TEXT PRIMARY KEY,
	method          TEXT NOT NULL,
	args            TEXT NOT NULL,
	workflow_run_id TEXT NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_deferred_calls_created_at ON deferred_calls(created_at);
`

// OpenSQLiteJournal opens or creates a journal at path
func OpenSQLiteJournal(path string) (*SQLiteJournal, error) {
	if path == "" {
		return nil, errors.New("journal path is required")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// One connection keeps in-memory databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	return &SQLiteJournal{db: db, logger: log.Logger, now: time.Now}, nil
}

// Record stores a pending call, replacing any earlier entry with the same id
func (j *SQLiteJournal) Record(ctx context.Context, call DeferredToolCall, workflowRunID string) error {
	if call.Extra.ToolCallID == "" {
		return errors.New("tool call id is required")
	}

	args, err := json.Marshal(call.Args)
	if err != nil {
		return fmt.Errorf("failed to encode args: %w", err)
	}

	_, err = j.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO deferred_calls (tool_call_id, method, args, workflow_run_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		call.Extra.ToolCallID, call.Method, string(args), workflowRunID, j.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record deferred call: %w", err)
	}
	return nil
}

// Complete removes a call once it has been resumed
func (j *SQLiteJournal) Complete(ctx context.Context, toolCallID string) error {
	if _, err := j.db.ExecContext(ctx, `DELETE FROM deferred_calls WHERE tool_call_id = ?`, toolCallID); err != nil {
		return fmt.Errorf("failed to complete deferred call: %w", err)
	}
	return nil
}

// Pending lists calls still waiting, oldest first
func (j *SQLiteJournal) Pending(ctx context.Context) ([]JournalEntry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT tool_call_id, method, args, workflow_run_id, created_at FROM deferred_calls ORDER BY created_at, tool_call_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var (
			e       JournalEntry
			args    string
			created int64
		)
		if err := rows.Scan(&e.ToolCallID, &e.Method, &args, &e.WorkflowRunID, &created); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		if err := json.Unmarshal([]byte(args), &e.Args); err != nil {
			return nil, fmt.Errorf("failed to decode args for %s: %w", e.ToolCallID, err)
		}
		e.CreatedAt = time.UnixMilli(created)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Sweep deletes calls older than maxAge and returns how many were removed
func (j *SQLiteJournal) Sweep(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := j.now().Add(-maxAge).UnixMilli()
	res, err := j.db.ExecContext(ctx, `DELETE FROM deferred_calls WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep journal: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// Sweeper periodically removes abandoned calls from a journal
type Sweeper struct {
	cron    *cron.Cron
	journal *SQLiteJournal
	maxAge  time.Duration
	logger  zerolog.Logger
}

// NewSweeper schedules a sweep on a standard five field cron expression or descriptor
func NewSweeper(journal *SQLiteJournal, schedule string, maxAge time.Duration) (*Sweeper, error) {
	s := &Sweeper{
		cron:    cron.New(),
		journal: journal,
		maxAge:  maxAge,
		logger:  log.Logger,
	}

	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	return s, nil
}

// Start begins running scheduled sweeps
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) run() {
	removed, err := s.journal.Sweep(context.Background(), s.maxAge)
	if err != nil {
		s.logger.Error().Err(err).Msg("Journal sweep failed")
		return
	}
	if removed > 0 {
		s.logger.Info().
			Int64("removed", removed).
			Dur("max_age", s.maxAge).
			Msg("Swept abandoned deferred calls")
	}
}
