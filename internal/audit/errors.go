package audit

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores and the orchestrator for unknown ids.
var ErrNotFound = errors.New("audit: record not found")

// Failure reasons persisted on failed records. GetStatus exposes these as a
// human-readable error string, never raw internal errors.
const (
	ReasonCancelled        = "cancelled"
	ReasonTimeout          = "timeout"
	ReasonCollectionFailed = "collection_failed"
	ReasonInvalidSignals   = "invalid_signals"
	ReasonPersistence      = "persistence_error"
)

// ValidationError rejects a malformed submission before any record is created.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("audit: invalid %s: %s", e.Field, e.Msg)
}

// Collection failure reasons.
const (
	CollectNavigation = "navigation"
	CollectDNS        = "dns"
	CollectTimeout    = "timeout"
	CollectCancelled  = "cancelled"
)

// CollectionError is a fatal collector failure for the primary URL.
type CollectionError struct {
	Reason string
	URL    string
	Err    error
}

func (e *CollectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("audit: collection failed (%s) for %s: %v", e.Reason, e.URL, e.Err)
	}
	return fmt.Sprintf("audit: collection failed (%s) for %s", e.Reason, e.URL)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// DiscoveryError marks a failed SERP lookup. Non-fatal: the collector degrades
// competitive signals instead of failing the audit.
type DiscoveryError struct {
	Keyword string
	Err     error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("audit: discovery failed for %q: %v", e.Keyword, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// ScoringError flags a malformed bundle reaching the scorer. Should be
// unreachable while collector contracts hold; kept distinct from user-facing
// failures so invariant violations stay visible.
type ScoringError struct {
	Msg string
}

func (e *ScoringError) Error() string { return "audit: scoring: " + e.Msg }

// PersistenceError wraps a failed store write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("audit: persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
