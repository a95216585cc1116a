package audit

import "time"

// Tier selects the report depth requested at submission.
type Tier string

const (
	TierFree Tier = "free"
	TierPaid Tier = "paid"
)

// Status is the lifecycle state of one audit record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
)

// Terminal reports whether s admits no further transitions (other than expiry).
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed || s == StatusExpired
}

// Request is one audit submission. Immutable once created; the orchestrator
// owns the derived record until it reaches a terminal state.
type Request struct {
	ID        string
	URL       string
	Email     string
	FirstName string
	LastName  string
	Tier      Tier
	CreatedAt time.Time
}

// Record is the mutable lifecycle entity for one Request, keyed by the same ID.
// Score and Bundle are non-nil iff Status is complete; Error is non-empty iff
// Status is failed. ExpiresAt is set at creation and is the sole trigger for
// garbage collection.
type Record struct {
	ID          string
	URL         string
	Email       string
	FirstName   string
	LastName    string
	Tier        Tier
	Status      Status
	Score       *int
	Bundle      *SignalBundle
	Error       string
	ReportPath  string
	ReportReady bool
	CreatedAt   time.Time
	CompletedAt *time.Time
	ExpiresAt   time.Time
}

// Clone returns a deep-enough copy for snapshot reads. The bundle is shared;
// it is immutable after collection.
func (r *Record) Clone() *Record {
	out := *r
	if r.Score != nil {
		v := *r.Score
		out.Score = &v
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// Event is one entry in a record's audit trail.
type Event struct {
	RecordID string
	Type     string
	Message  string
	At       time.Time
}
