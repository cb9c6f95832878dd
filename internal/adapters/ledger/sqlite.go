package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteLedger persists sessions and activities to a SQLite database.
type SQLiteLedger struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteLedger opens (or creates) the database and runs migrations.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so history reads do not block activity writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	l := &SQLiteLedger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return l, nil
}

func (l *SQLiteLedger) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL,
			team_context TEXT NOT NULL,
			active       INTEGER NOT NULL,
			created_at   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, team_context)`,

		`CREATE TABLE IF NOT EXISTS activities (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id     TEXT NOT NULL,
			session_id  TEXT,
			fingerprint TEXT,
			kind        TEXT NOT NULL,
			sport       TEXT NOT NULL,
			score       REAL NOT NULL,
			recorded_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_user ON activities(user_id, recorded_at)`,
	}
	for _, s := range stmts {
		if _, err := l.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// StartSession implements Ledger.StartSession. Deactivation of the prior
// session and insertion of the new one happen in one transaction.
func (l *SQLiteLedger) StartSession(ctx context.Context, userID, teamContext string) (Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET active = 0 WHERE user_id = ? AND team_context = ? AND active = 1`,
		userID, teamContext); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s := Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		TeamContext: teamContext,
		Active:      true,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, team_context, active, created_at) VALUES (?,?,?,1,?)`,
		s.ID, s.UserID, s.TeamContext, s.CreatedAt.Unix()); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return s, nil
}

// ActiveSession implements Ledger.ActiveSession.
func (l *SQLiteLedger) ActiveSession(ctx context.Context, userID, teamContext string) (Session, bool, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, user_id, team_context, created_at FROM sessions
		 WHERE user_id = ? AND team_context = ? AND active = 1
		 ORDER BY created_at DESC LIMIT 1`,
		userID, teamContext)

	var s Session
	var createdAt int64
	if err := row.Scan(&s.ID, &s.UserID, &s.TeamContext, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return Session{}, false, nil
		}
		return Session{}, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.Active = true
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	return s, true, nil
}

// RecordActivity implements Ledger.RecordActivity.
func (l *SQLiteLedger) RecordActivity(ctx context.Context, a Activity) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := a.RecordedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	if _, err := l.db.ExecContext(ctx,
		`INSERT INTO activities (user_id, session_id, fingerprint, kind, sport, score, recorded_at)
		 VALUES (?,?,?,?,?,?,?)`,
		a.UserID, a.SessionID, a.Fingerprint, a.Kind, a.Sport, a.Score, ts.Unix()); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Activities implements Ledger.Activities.
func (l *SQLiteLedger) Activities(ctx context.Context, userID string, limit int) ([]Activity, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT user_id, session_id, fingerprint, kind, sport, score, recorded_at
		 FROM activities WHERE user_id = ? ORDER BY recorded_at DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		var ts int64
		if err := rows.Scan(&a.UserID, &a.SessionID, &a.Fingerprint, &a.Kind, &a.Sport, &a.Score, &ts); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		a.RecordedAt = time.Unix(ts, 0).UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return out, nil
}

// Clear implements Ledger.Clear.
func (l *SQLiteLedger) Clear(ctx context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.db.ExecContext(ctx, `DELETE FROM activities WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if _, err := l.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the database.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
