package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"vinscan/internal/config"
	"vinscan/internal/session"
	"vinscan/internal/vin"
)

// ErrDuplicate is returned when a session's decision is recorded twice.
var ErrDuplicate = errors.New("decision already recorded")

// Store manages decision persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

var _ session.DecisionSink = (*Store)(nil)

// Open connects to the history database named in cfg.
func Open(cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("history: config is nil")
	}
	return OpenPath(cfg.History.Path)
}

// OpenPath initializes or connects to the database at path and verifies its
// schema.
func OpenPath(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history: database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordDecision stores one decision. It implements session.DecisionSink.
func (s *Store) RecordDecision(ctx context.Context, record session.DecisionRecord) error {
	if record.SessionID == "" {
		return errors.New("record decision: session id is required")
	}
	tally, err := json.Marshal(record.Decision.Tally)
	if err != nil {
		return fmt.Errorf("marshal tally: %w", err)
	}
	decidedAt := record.DecidedAt
	if decidedAt.IsZero() {
		decidedAt = time.Now()
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO decisions (
            session_id, vin, evidence_count, mean_confidence,
            policy, capacity, started_at, decided_at, tally_json
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.SessionID,
		record.Decision.VIN,
		record.Decision.EvidenceCount,
		record.Decision.MeanConfidence,
		record.Policy.String(),
		record.Capacity,
		formatTime(record.StartedAt),
		formatTime(decidedAt),
		string(tally),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("session %s: %w", record.SessionID, ErrDuplicate)
		}
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

const entryColumns = `id, session_id, vin, evidence_count, mean_confidence, policy, capacity, started_at, decided_at, tally_json`

// List returns decisions, newest first.
func (s *Store) List(ctx context.Context, q Query) ([]Entry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	var (
		clauses []string
		args    []any
	)
	if v := strings.ToUpper(strings.TrimSpace(q.VIN)); v != "" {
		clauses = append(clauses, "vin = ?")
		args = append(args, v)
	}
	if !q.Since.IsZero() {
		clauses = append(clauses, "decided_at >= ?")
		args = append(args, formatTime(q.Since))
	}

	query := `SELECT ` + entryColumns + ` FROM decisions`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY decided_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return entries, nil
}

// GetBySession returns the decision recorded for a session, or nil.
func (s *Store) GetBySession(ctx context.Context, sessionID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM decisions WHERE session_id = ?`, sessionID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Count returns the number of recorded decisions.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM decisions").Scan(&n); err != nil {
		return 0, fmt.Errorf("count decisions: %w", err)
	}
	return n, nil
}

// Prune deletes decisions older than cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM decisions WHERE decided_at < ?", formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune decisions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		entry     Entry
		policy    string
		startedAt string
		decidedAt string
		tally     sql.NullString
	)
	if err := row.Scan(
		&entry.ID,
		&entry.SessionID,
		&entry.VIN,
		&entry.EvidenceCount,
		&entry.MeanConfidence,
		&policy,
		&entry.Capacity,
		&startedAt,
		&decidedAt,
		&tally,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan decision: %w", err)
	}
	entry.Policy = vin.Policy(policy)
	entry.StartedAt = parseTime(startedAt)
	entry.DecidedAt = parseTime(decidedAt)
	if tally.Valid && tally.String != "" && tally.String != "null" {
		if err := json.Unmarshal([]byte(tally.String), &entry.Tally); err != nil {
			return nil, fmt.Errorf("decode tally for %s: %w", entry.SessionID, err)
		}
	}
	return &entry, nil
}

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
