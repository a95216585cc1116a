package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sitescore/internal/audit"

	_ "modernc.org/sqlite"
)

// timeFormat is how timestamps are persisted. RFC 3339 in UTC keeps string
// comparison chronological for the expiry index scan.
const timeFormat = time.RFC3339

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory (e.g. .sitescore) if it does not exist.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Concurrent writers from audit goroutines; serialize through one conn.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	if _, err := s.db.Exec(schemaV1); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	var v int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersion); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != schemaVersion {
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

func (s *SqlStore) Create(ctx context.Context, rec *audit.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, url, email, first_name, last_name, tier, status, error, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.URL, rec.Email, rec.FirstName, rec.LastName, string(rec.Tier),
		string(rec.Status), rec.Error,
		rec.CreatedAt.UTC().Format(timeFormat), rec.ExpiresAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *SqlStore) Get(ctx context.Context, id string) (*audit.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url, email, first_name, last_name, tier, status, score, bundle,
		       error, report_path, report_ready, created_at, completed_at, expires_at
		FROM reports WHERE id = ?`, id)

	var (
		rec         audit.Record
		tier        string
		status      string
		score       sql.NullInt64
		bundleJSON  sql.NullString
		ready       int
		createdAt   string
		completedAt sql.NullString
		expiresAt   string
	)
	err := row.Scan(&rec.ID, &rec.URL, &rec.Email, &rec.FirstName, &rec.LastName,
		&tier, &status, &score, &bundleJSON, &rec.Error, &rec.ReportPath, &ready,
		&createdAt, &completedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, audit.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select report: %w", err)
	}

	rec.Tier = audit.Tier(tier)
	rec.Status = audit.Status(status)
	rec.ReportReady = ready != 0
	if score.Valid {
		v := int(score.Int64)
		rec.Score = &v
	}
	if bundleJSON.Valid && bundleJSON.String != "" {
		var b audit.SignalBundle
		if err := json.Unmarshal([]byte(bundleJSON.String), &b); err != nil {
			return nil, fmt.Errorf("decode bundle: %w", err)
		}
		rec.Bundle = &b
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, err
		}
		rec.CompletedAt = &t
	}
	if rec.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SqlStore) UpdateStatus(ctx context.Context, id string, status audit.Status, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET status = ?, error = ? WHERE id = ?`,
		string(status), errMsg, id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return requireRow(res)
}

func (s *SqlStore) Transition(ctx context.Context, id string, from, to audit.Status, errMsg string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET status = ?, error = ? WHERE id = ? AND status = ?`,
		string(to), errMsg, id, string(from))
	if err != nil {
		return false, fmt.Errorf("transition report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition report: %w", err)
	}
	return n > 0, nil
}

func (s *SqlStore) Complete(ctx context.Context, id string, score int, bundle *audit.SignalBundle, completedAt time.Time) error {
	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE reports
		SET status = ?, score = ?, bundle = ?, error = '', completed_at = ?
		WHERE id = ?`,
		string(audit.StatusComplete), score, string(data),
		completedAt.UTC().Format(timeFormat), id)
	if err != nil {
		return fmt.Errorf("complete report: %w", err)
	}
	return requireRow(res)
}

func (s *SqlStore) SetReportArtifact(ctx context.Context, id, path string, ready bool) error {
	r := 0
	if ready {
		r = 1
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET report_path = ?, report_ready = ? WHERE id = ?`,
		path, r, id)
	if err != nil {
		return fmt.Errorf("set report artifact: %w", err)
	}
	return requireRow(res)
}

func (s *SqlStore) ListExpired(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM reports WHERE expires_at < ? AND status != ?`,
		before.UTC().Format(timeFormat), string(audit.StatusExpired))
	if err != nil {
		return nil, fmt.Errorf("list expired: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SqlStore) Expire(ctx context.Context, id string) (string, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("expire report: %w", err)
	}
	defer tx.Rollback()

	var path string
	err = tx.QueryRowContext(ctx,
		`SELECT report_path FROM reports WHERE id = ? AND status NOT IN (?, ?)`,
		id, string(audit.StatusProcessing), string(audit.StatusExpired)).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("expire report: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE reports
		SET status = ?, score = NULL, bundle = NULL, report_path = '', report_ready = 0
		WHERE id = ?`,
		string(audit.StatusExpired), id)
	if err != nil {
		return "", false, fmt.Errorf("expire report: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("expire report: %w", err)
	}
	return path, true, nil
}

func (s *SqlStore) LogEvent(ctx context.Context, id, event, message string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (record_id, type, message, at) VALUES (?, ?, ?, ?)`,
		id, event, message, time.Now().UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	return nil
}

func (s *SqlStore) Events(ctx context.Context, id string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_id, type, message, at FROM audit_events WHERE record_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	var out []audit.Event
	for rows.Next() {
		var ev audit.Event
		var at string
		if err := rows.Scan(&ev.RecordID, &ev.Type, &ev.Message, &at); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ev.At, err = parseTime(at); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SqlStore) Close() error { return s.db.Close() }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return audit.ErrNotFound
	}
	return nil
}
