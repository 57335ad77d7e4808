package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pvoronin/claimroute/internal/assign"
	"github.com/pvoronin/claimroute/internal/model"
)

// SQLiteLedger is the durable assignment ledger. One row per committed
// assignment; the claim's current assignment is the row with the highest
// version. A UNIQUE(claim_id, version) constraint backs the
// compare-and-swap: two racing commits at the same expected version
// cannot both insert.
type SQLiteLedger struct {
	conn *sql.DB
	path string
}

var _ assign.Ledger = (*SQLiteLedger)(nil)

// Open opens or creates the ledger database at the given path.
func Open(path string) (*SQLiteLedger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	ledger := &SQLiteLedger{conn: conn, path: path}
	if err := ledger.initializeSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initialize ledger schema: %w", err)
	}

	return ledger, nil
}

func (l *SQLiteLedger) initializeSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS assignments (
			id TEXT PRIMARY KEY,
			claim_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			target_name TEXT NOT NULL,
			assignee TEXT NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			committed_at TEXT NOT NULL,
			version INTEGER NOT NULL,
			catalog_revision INTEGER NOT NULL DEFAULT 0,
			UNIQUE (claim_id, version)
		);
		CREATE INDEX IF NOT EXISTS idx_assignments_claim ON assignments(claim_id, version DESC);
		CREATE INDEX IF NOT EXISTS idx_assignments_target ON assignments(target_id);
	`
	_, err := l.conn.Exec(schema)
	return err
}

// Close closes the database connection
func (l *SQLiteLedger) Close() error {
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}

// Current returns the claim's current assignment
func (l *SQLiteLedger) Current(ctx context.Context, claimID string) (model.AssignmentRecord, bool, error) {
	query, args, err := sq.Select(recordColumns...).
		From("assignments").
		Where(sq.Eq{"claim_id": claimID}).
		OrderBy("version DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return model.AssignmentRecord{}, false, fmt.Errorf("build query: %w", err)
	}

	rec, err := scanRecord(l.conn.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return model.AssignmentRecord{}, false, nil
	}
	if err != nil {
		return model.AssignmentRecord{}, false, fmt.Errorf("query current assignment: %w", err)
	}
	return rec, true, nil
}

// Append commits rec iff the claim's stored version equals
// expectedVersion. The read and the insert run inside one database
// transaction, and the UNIQUE constraint rejects the loser of any race
// the read did not observe.
func (l *SQLiteLedger) Append(ctx context.Context, rec model.AssignmentRecord, expectedVersion int64) (model.AssignmentRecord, error) {
	tx, err := l.conn.BeginTx(ctx, nil)
	if err != nil {
		return model.AssignmentRecord{}, fmt.Errorf("begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current int64
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM assignments WHERE claim_id = ?`, rec.ClaimID)
	if err := row.Scan(&current); err != nil {
		return model.AssignmentRecord{}, fmt.Errorf("read current version: %w", err)
	}
	if current != expectedVersion {
		return model.AssignmentRecord{}, &model.ConflictError{ClaimID: rec.ClaimID, Expected: expectedVersion, Current: current}
	}

	rec.Version = expectedVersion + 1
	query, args, err := sq.Insert("assignments").
		Columns("id", "claim_id", "target_id", "target_name", "assignee", "note", "committed_at", "version", "catalog_revision").
		Values(uuid.NewString(), rec.ClaimID, rec.TargetID, rec.TargetName, rec.Assignee, rec.Note,
			rec.CommittedAt.UTC().Format(time.RFC3339Nano), rec.Version, rec.CatalogRevision).
		ToSql()
	if err != nil {
		return model.AssignmentRecord{}, fmt.Errorf("build insert: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return model.AssignmentRecord{}, &model.ConflictError{ClaimID: rec.ClaimID, Expected: expectedVersion, Current: expectedVersion + 1}
		}
		return model.AssignmentRecord{}, fmt.Errorf("insert assignment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.AssignmentRecord{}, fmt.Errorf("commit assignment: %w", err)
	}
	return rec, nil
}

// History returns the claim's audit trail, oldest first
func (l *SQLiteLedger) History(ctx context.Context, claimID string) ([]model.AssignmentRecord, error) {
	query, args, err := sq.Select(recordColumns...).
		From("assignments").
		Where(sq.Eq{"claim_id": claimID}).
		OrderBy("version ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := l.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var history []model.AssignmentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		history = append(history, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return history, nil
}

// Counts returns currently assigned claims per target id
func (l *SQLiteLedger) Counts(ctx context.Context) (map[string]int, error) {
	// Current assignment per claim is the max-version row.
	query := `
		SELECT a.target_id, COUNT(*) FROM assignments a
		JOIN (SELECT claim_id, MAX(version) AS v FROM assignments GROUP BY claim_id) cur
		  ON a.claim_id = cur.claim_id AND a.version = cur.v
		GROUP BY a.target_id`

	rows, err := l.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var targetID string
		var n int
		if err := rows.Scan(&targetID, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[targetID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

var recordColumns = []string{"claim_id", "target_id", "target_name", "assignee", "note", "committed_at", "version", "catalog_revision"}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (model.AssignmentRecord, error) {
	var rec model.AssignmentRecord
	var committedAt string
	if err := row.Scan(&rec.ClaimID, &rec.TargetID, &rec.TargetName, &rec.Assignee, &rec.Note, &committedAt, &rec.Version, &rec.CatalogRevision); err != nil {
		return model.AssignmentRecord{}, err
	}

	if t, err := time.Parse(time.RFC3339Nano, committedAt); err == nil {
		rec.CommittedAt = t
	}
	if target, err := model.ParseTargetID(rec.TargetID); err == nil {
		rec.Target = target
	}
	return rec, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
