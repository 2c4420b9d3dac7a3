// Package persistence stores orchestrator sessions and sub-agent results in SQLite.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"ganesha/pkg/logx"
)

// ErrSessionNotFound is returned when a requested session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// StepRecord is one persisted plan step.
type StepRecord struct {
	ID          string
	Description string
	Status      string
	TaskID      string
}

// SessionRecord is the persisted form of a session plan. Payload holds the
// full serialized session; the other fields are queryable projections of it.
type SessionRecord struct {
	ID        string
	Goal      string
	StartedAt time.Time
	UpdatedAt time.Time
	Steps     []StepRecord
	Decisions []string
	Payload   []byte
}

// ResultRecord is one persisted sub-agent result.
type ResultRecord struct {
	TaskID     string
	Success    bool
	Outcome    string
	Summary    string
	Provider   string
	Model      string
	FellBack   bool
	TokensUsed int
	Cost       float64
	Turns      int
	Duration   time.Duration
	CreatedAt  time.Time
	Payload    []byte
}

// Store is a SQLite-backed session store. It is safe for concurrent use; the
// pool is limited to one connection.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
	now    func() time.Time
}

// Open opens or creates the database at path and migrates it.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		path,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := initializeSchemaWithMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger := logx.NewLogger("persistence")
	logger.Info("📦 Database initialized: %s", path)
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// SaveSession upserts a session and replaces its steps and decisions.
func (s *Store) SaveSession(ctx context.Context, rec SessionRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("session id is required")
	}
	payload := rec.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = s.now()
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, goal, started_at, updated_at, summary_json)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				goal = excluded.goal,
				updated_at = excluded.updated_at,
				summary_json = excluded.summary_json
		`, rec.ID, rec.Goal, formatTime(rec.StartedAt), formatTime(updated), string(payload))
		if err != nil {
			return fmt.Errorf("failed to upsert session: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM plan_steps WHERE session_id = ?`, rec.ID); err != nil {
			return fmt.Errorf("failed to clear plan steps: %w", err)
		}
		for i, st := range rec.Steps {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO plan_steps (session_id, step_id, position, description, status, task_id)
				VALUES (?, ?, ?, ?, ?, ?)
			`, rec.ID, st.ID, i, st.Description, st.Status, st.TaskID); err != nil {
				return fmt.Errorf("failed to insert plan step %s: %w", st.ID, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM decisions WHERE session_id = ?`, rec.ID); err != nil {
			return fmt.Errorf("failed to clear decisions: %w", err)
		}
		for i, d := range rec.Decisions {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO decisions (session_id, position, text) VALUES (?, ?, ?)
			`, rec.ID, i, d); err != nil {
				return fmt.Errorf("failed to insert decision: %w", err)
			}
		}
		return nil
	})
}

// LoadSession reads a session with its steps and decisions.
func (s *Store) LoadSession(ctx context.Context, id string) (SessionRecord, error) {
	rec := SessionRecord{ID: id}
	var started, updated, payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT goal, started_at, updated_at, summary_json FROM sessions WHERE id = ?
	`, id).Scan(&rec.Goal, &started, &updated, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("failed to load session: %w", err)
	}
	rec.StartedAt = parseTime(started)
	rec.UpdatedAt = parseTime(updated)
	rec.Payload = []byte(payload)

	rows, err := s.db.QueryContext(ctx, `
		SELECT step_id, description, status, task_id FROM plan_steps
		WHERE session_id = ? ORDER BY position
	`, id)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("failed to query plan steps: %w", err)
	}
	for rows.Next() {
		var st StepRecord
		if err := rows.Scan(&st.ID, &st.Description, &st.Status, &st.TaskID); err != nil {
			_ = rows.Close()
			return SessionRecord{}, fmt.Errorf("failed to scan plan step: %w", err)
		}
		rec.Steps = append(rec.Steps, st)
	}
	if err := closeRows(rows); err != nil {
		return SessionRecord{}, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT text FROM decisions WHERE session_id = ? ORDER BY position
	`, id)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("failed to query decisions: %w", err)
	}
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			_ = rows.Close()
			return SessionRecord{}, fmt.Errorf("failed to scan decision: %w", err)
		}
		rec.Decisions = append(rec.Decisions, d)
	}
	if err := closeRows(rows); err != nil {
		return SessionRecord{}, err
	}
	return rec, nil
}

// SaveResult stores a task result. Saving the same task again replaces it.
func (s *Store) SaveResult(ctx context.Context, sessionID string, rec ResultRecord) error {
	if rec.TaskID == "" {
		return fmt.Errorf("task id is required")
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	payload := rec.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO task_results
			(task_id, session_id, success, outcome, summary, provider, model, fell_back,
			 tokens_used, cost, turns, duration_ms, result_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.TaskID, sessionID, boolToInt(rec.Success), rec.Outcome, rec.Summary, rec.Provider, rec.Model,
		boolToInt(rec.FellBack), rec.TokensUsed, rec.Cost, rec.Turns, rec.Duration.Milliseconds(),
		string(payload), formatTime(created))
	if err != nil {
		return fmt.Errorf("failed to save result %s: %w", rec.TaskID, err)
	}
	return nil
}

// ListResults returns a session's results in the order they were saved.
func (s *Store) ListResults(ctx context.Context, sessionID string) ([]ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, success, outcome, summary, provider, model, fell_back,
		       tokens_used, cost, turns, duration_ms, result_json, created_at
		FROM task_results WHERE session_id = ? ORDER BY created_at, rowid
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}

	var out []ResultRecord
	for rows.Next() {
		var (
			rec               ResultRecord
			success, fellBack int
			durationMS        int64
			payload, created  string
		)
		if err := rows.Scan(&rec.TaskID, &success, &rec.Outcome, &rec.Summary, &rec.Provider, &rec.Model, &fellBack,
			&rec.TokensUsed, &rec.Cost, &rec.Turns, &durationMS, &payload, &created); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		rec.Success = success != 0
		rec.FellBack = fellBack != 0
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.Payload = []byte(payload)
		rec.CreatedAt = parseTime(created)
		out = append(out, rec)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return out, nil
}

// SessionTotals sums tokens and cost over a session's results.
func (s *Store) SessionTotals(ctx context.Context, sessionID string) (tokens int64, cost float64, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(tokens_used), 0), COALESCE(SUM(cost), 0) FROM task_results WHERE session_id = ?
	`, sessionID).Scan(&tokens, &cost)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum session totals: %w", err)
	}
	return tokens, cost, nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed: %v", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("row iteration error: %w", err)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("failed to close rows: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
