package store

// schemaVersion is the current SQLite schema version.
const schemaVersion = 1

// schemaV1 creates the reports and audit_events tables. Timestamps are stored
// as RFC 3339 UTC strings; the bundle is a JSON document.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS reports (
	id           TEXT PRIMARY KEY,
	url          TEXT NOT NULL,
	email        TEXT NOT NULL,
	first_name   TEXT NOT NULL,
	last_name    TEXT NOT NULL,
	tier         TEXT NOT NULL DEFAULT 'free',
	status       TEXT NOT NULL DEFAULT 'pending',
	score        INTEGER,
	bundle       TEXT,
	error        TEXT NOT NULL DEFAULT '',
	report_path  TEXT NOT NULL DEFAULT '',
	report_ready INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL,
	completed_at TEXT,
	expires_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_expires_at ON reports(expires_at);

CREATE TABLE IF NOT EXISTS audit_events (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id TEXT NOT NULL,
	type      TEXT NOT NULL,
	message   TEXT NOT NULL DEFAULT '',
	at        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_events_record ON audit_events(record_id);
`
