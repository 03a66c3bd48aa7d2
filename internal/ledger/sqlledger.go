package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(ns sql.NullString) time.Time {
	if !ns.Valid || ns.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, ns.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nullFloat(nf sql.NullFloat64) float64 {
	if nf.Valid {
		return nf.Float64
	}
	return 0
}

// SqlLedger implements Ledger with SQLite.
type SqlLedger struct {
	db *sql.DB
}

// Open opens or creates a SQLite ledger at path and runs migrations.
// Creates the parent directory (e.g. .txshield) if it does not exist.
func Open(path string) (*SqlLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	l := &SqlLedger{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *SqlLedger) migrate() error {
	var tableCount int
	err := l.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableCount == 0 {
		return l.freshInstall()
	}

	var v int
	err = l.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return l.freshInstall()
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != currentSchemaVersion {
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

func (l *SqlLedger) freshInstall() error {
	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(schemaV1); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return tx.Commit()
}

func (l *SqlLedger) Close() error {
	return l.db.Close()
}

func (l *SqlLedger) StartRun(id string, startedAt time.Time) error {
	_, err := l.db.Exec("INSERT INTO runs(id, started_at) VALUES(?, ?)", id, formatTime(startedAt))
	if err != nil {
		return fmt.Errorf("start run %s: %w", id, err)
	}
	return nil
}

func (l *SqlLedger) RecordTransition(t Transition) error {
	_, err := l.db.Exec(
		"INSERT INTO transitions(run_id, seq, stage, outcome, detail, at) VALUES(?, ?, ?, ?, ?, ?)",
		t.RunID, t.Seq, t.Stage, t.Outcome, t.Detail, formatTime(t.At),
	)
	if err != nil {
		return fmt.Errorf("record transition %s#%d: %w", t.RunID, t.Seq, err)
	}
	return nil
}

func (l *SqlLedger) FinishRun(r *Run) error {
	res, err := l.db.Exec(`UPDATE runs SET finished_at = ?, outcome = ?, failed_stage = ?, error = ?,
		f2 = ?, recall = ?, precision_score = ?, threshold = ?, report_path = ?, artifact_dir = ?,
		promoted = ?, published_to = ? WHERE id = ?`,
		formatTime(r.FinishedAt), r.Outcome, r.FailedStage, r.Error,
		r.F2, r.Recall, r.Precision, r.Threshold, r.ReportPath, r.ArtifactDir,
		r.Promoted, r.PublishedTo, r.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", r.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", r.ID, ErrNotFound)
	}
	return nil
}

const runColumns = `id, started_at, finished_at, outcome, failed_stage, error, f2, recall,
	precision_score, threshold, report_path, artifact_dir, promoted, published_to`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		r                                              Run
		started, finished                              sql.NullString
		outcome, failed, errText, report, dir, publish sql.NullString
		f2, recall, precision, threshold               sql.NullFloat64
	)
	if err := row.Scan(&r.ID, &started, &finished, &outcome, &failed, &errText, &f2, &recall,
		&precision, &threshold, &report, &dir, &r.Promoted, &publish); err != nil {
		return nil, err
	}
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished)
	r.Outcome = nullStr(outcome)
	r.FailedStage = nullStr(failed)
	r.Error = nullStr(errText)
	r.F2 = nullFloat(f2)
	r.Recall = nullFloat(recall)
	r.Precision = nullFloat(precision)
	r.Threshold = nullFloat(threshold)
	r.ReportPath = nullStr(report)
	r.ArtifactDir = nullStr(dir)
	r.PublishedTo = nullStr(publish)
	return &r, nil
}

func (l *SqlLedger) GetRun(id string) (*Run, error) {
	r, err := scanRun(l.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

func (l *SqlLedger) ListRuns(limit int) ([]*Run, error) {
	q := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, id DESC"
	var args []any
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := l.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var out []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (l *SqlLedger) Transitions(runID string) ([]Transition, error) {
	rows, err := l.db.Query(
		"SELECT run_id, seq, stage, outcome, detail, at FROM transitions WHERE run_id = ? ORDER BY seq", runID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()
	var out []Transition
	for rows.Next() {
		var (
			t      Transition
			detail sql.NullString
			at     sql.NullString
		)
		if err := rows.Scan(&t.RunID, &t.Seq, &t.Stage, &t.Outcome, &detail, &at); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t.Detail = nullStr(detail)
		t.At = parseTime(at)
		out = append(out, t)
	}
	return out, rows.Err()
}
