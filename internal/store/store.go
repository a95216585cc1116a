package store

import (
	"context"
	"time"

	"sitescore/internal/audit"
)

// DefaultDBPath is the default relative path for the SQLite DB.
// Open() creates the parent dir (e.g. .sitescore).
const DefaultDBPath = ".sitescore/sitescore.db"

// Store is the lifecycle persistence facade. The orchestrator is the only
// writer of audit records; every update is applied atomically so readers of
// Get never observe partial field writes.
type Store interface {
	// Create inserts a new record (normally in pending).
	Create(ctx context.Context, rec *audit.Record) error
	// Get returns a snapshot of one record, or audit.ErrNotFound.
	Get(ctx context.Context, id string) (*audit.Record, error)
	// UpdateStatus transitions a record and sets or clears its error text.
	UpdateStatus(ctx context.Context, id string, status audit.Status, errMsg string) error
	// Transition updates status and error text only if the record is still
	// in the from status; returns whether the update was applied. A missing
	// record reports not-applied rather than an error. Concurrent writers
	// race through here without clobbering a settled record.
	Transition(ctx context.Context, id string, from, to audit.Status, errMsg string) (bool, error)
	// Complete atomically marks a record complete with its score and bundle.
	Complete(ctx context.Context, id string, score int, bundle *audit.SignalBundle, completedAt time.Time) error
	// SetReportArtifact records the rendered report path and readiness flag.
	SetReportArtifact(ctx context.Context, id, path string, ready bool) error
	// ListExpired returns ids of not-yet-expired records whose expiry is
	// before the given instant.
	ListExpired(ctx context.Context, before time.Time) ([]string, error)
	// Expire transitions a record to expired and purges its bundle payload
	// and artifact path. Records still in processing are skipped. Returns
	// the artifact path that was purged (so the caller can remove the file)
	// and whether the transition was applied.
	Expire(ctx context.Context, id string) (string, bool, error)
	// LogEvent appends to the record's audit trail.
	LogEvent(ctx context.Context, id, event, message string) error
	// Events returns the audit trail in insertion order.
	Events(ctx context.Context, id string) ([]audit.Event, error)
	Close() error
}
