// Package orchestrate owns the audit lifecycle: admission through a bounded
// permit pool, the collect-score-persist pipeline, cancellation, and the
// retention sweep.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"sitescore/internal/audit"
	"sitescore/internal/score"
	"sitescore/internal/store"
)

// Collector produces the signal bundle for one URL.
type Collector interface {
	Collect(ctx context.Context, url string) (*audit.SignalBundle, error)
}

// Scorer turns a bundle into a breakdown.
type Scorer interface {
	Score(b *audit.SignalBundle) (*audit.ScoreBreakdown, error)
}

// Renderer writes the report artifact for a completed audit and returns its
// path. Rendering is best-effort; a failure leaves the record complete with
// no downloadable report.
type Renderer interface {
	Render(ctx context.Context, rec *audit.Record, breakdown *audit.ScoreBreakdown) (string, error)
}

// Notifier delivers the captured lead. Called once per submission,
// fire-and-forget.
type Notifier interface {
	NotifyLead(ctx context.Context, lead Lead) error
}

// Lead is the contact captured at submission.
type Lead struct {
	Email       string
	FirstName   string
	LastName    string
	URL         string
	Tier        audit.Tier
	SubmittedAt time.Time
}

// SubmitParams is one audit submission.
type SubmitParams struct {
	URL       string
	Email     string
	FirstName string
	LastName  string
	Tier      audit.Tier
}

const (
	defaultPoolSize      = 10
	defaultAuditTimeout  = 5 * time.Minute
	defaultRetention     = 72 * time.Hour
	defaultSweepInterval = time.Hour
	defaultRetries       = 3
	retryBackoff         = 100 * time.Millisecond
)

// Orchestrator runs audits with bounded concurrency against a Store.
type Orchestrator struct {
	store     store.Store
	collector Collector
	scorer    Scorer
	renderer  Renderer
	notifier  Notifier

	sem           *semaphore.Weighted
	timeout       time.Duration
	retention     time.Duration
	sweepInterval time.Duration
	retries       int
	now           func() time.Time
	logger        *slog.Logger

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

// Option configures the Orchestrator during construction.
type Option func(*Orchestrator) error

// New creates an Orchestrator. The default scorer uses the embedded tier
// tables; renderer and notifier are optional.
func New(st store.Store, collector Collector, opts ...Option) (*Orchestrator, error) {
	if st == nil {
		return nil, fmt.Errorf("orchestrate: store is required")
	}
	if collector == nil {
		return nil, fmt.Errorf("orchestrate: collector is required")
	}

	baseCtx, stop := context.WithCancel(context.Background())
	o := &Orchestrator{
		store:         st,
		collector:     collector,
		scorer:        score.New(nil),
		timeout:       defaultAuditTimeout,
		retention:     defaultRetention,
		sweepInterval: defaultSweepInterval,
		retries:       defaultRetries,
		now:           time.Now,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		baseCtx:       baseCtx,
		stop:          stop,
		inflight:      make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			stop()
			return nil, err
		}
	}
	if o.sem == nil {
		o.sem = semaphore.NewWeighted(defaultPoolSize)
	}
	return o, nil
}

// WithScorer overrides the default scorer.
func WithScorer(s Scorer) Option {
	return func(o *Orchestrator) error {
		if s == nil {
			return fmt.Errorf("orchestrate: nil scorer")
		}
		o.scorer = s
		return nil
	}
}

// WithRenderer sets the report renderer.
func WithRenderer(r Renderer) Option {
	return func(o *Orchestrator) error {
		o.renderer = r
		return nil
	}
}

// WithNotifier sets the lead notifier.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) error {
		o.notifier = n
		return nil
	}
}

// WithPoolSize bounds the number of audits processing at once.
func WithPoolSize(n int) Option {
	return func(o *Orchestrator) error {
		if n < 1 {
			return fmt.Errorf("orchestrate: pool size must be positive, got %d", n)
		}
		o.sem = semaphore.NewWeighted(int64(n))
		return nil
	}
}

// WithTimeout sets the per-audit hard deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) error {
		if d <= 0 {
			return fmt.Errorf("orchestrate: timeout must be positive")
		}
		o.timeout = d
		return nil
	}
}

// WithRetention sets how long records live after submission.
func WithRetention(d time.Duration) Option {
	return func(o *Orchestrator) error {
		if d <= 0 {
			return fmt.Errorf("orchestrate: retention must be positive")
		}
		o.retention = d
		return nil
	}
}

// WithSweepInterval sets the cadence of the retention sweep loop.
func WithSweepInterval(d time.Duration) Option {
	return func(o *Orchestrator) error {
		if d <= 0 {
			return fmt.Errorf("orchestrate: sweep interval must be positive")
		}
		o.sweepInterval = d
		return nil
	}
}

// WithRetries sets the attempt count for persistence writes on the audit path.
func WithRetries(n int) Option {
	return func(o *Orchestrator) error {
		if n < 1 {
			return fmt.Errorf("orchestrate: retries must be positive")
		}
		o.retries = n
		return nil
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) error {
		o.now = now
		return nil
	}
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) error {
		o.logger = l
		return nil
	}
}

// Submit validates and records a new audit, fires the lead notification, and
// spawns the audit goroutine. Returns the record id immediately; progress is
// observed through GetStatus.
func (o *Orchestrator) Submit(ctx context.Context, p SubmitParams) (string, error) {
	normalized, err := NormalizeURL(p.URL)
	if err != nil {
		return "", err
	}
	tier := p.Tier
	if tier == "" {
		tier = audit.TierFree
	}
	if tier != audit.TierFree && tier != audit.TierPaid {
		return "", &audit.ValidationError{Field: "tier", Msg: fmt.Sprintf("unknown tier %q", tier)}
	}

	id := uuid.NewString()
	now := o.now().UTC()
	rec := &audit.Record{
		ID:        id,
		URL:       normalized,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Tier:      tier,
		Status:    audit.StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(o.retention),
	}
	if err := o.store.Create(ctx, rec); err != nil {
		return "", &audit.PersistenceError{Op: "create", Err: err}
	}
	o.logEvent(id, "submitted", normalized)

	if o.notifier != nil && p.Email != "" {
		lead := Lead{
			Email:       p.Email,
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			URL:         normalized,
			Tier:        tier,
			SubmittedAt: now,
		}
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if err := o.notifier.NotifyLead(o.baseCtx, lead); err != nil {
				o.logger.Warn("lead notification failed", "id", id, "error", err)
			}
		}()
	}

	o.wg.Add(1)
	go o.run(id, normalized)
	return id, nil
}

// GetStatus returns a snapshot of the record.
func (o *Orchestrator) GetStatus(ctx context.Context, id string) (*audit.Record, error) {
	return o.store.Get(ctx, id)
}

// Events returns the record's audit trail.
func (o *Orchestrator) Events(ctx context.Context, id string) ([]audit.Event, error) {
	return o.store.Events(ctx, id)
}

// Cancel aborts an audit. A pending record fails immediately; a processing
// one has its context cancelled and fails cooperatively. Terminal records are
// left alone.
func (o *Orchestrator) Cancel(ctx context.Context, id string) error {
	rec, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.Status.Terminal() {
		return nil
	}

	if rec.Status == audit.StatusPending {
		ok, err := o.store.Transition(ctx, id, audit.StatusPending, audit.StatusFailed, audit.ReasonCancelled)
		if err != nil {
			return &audit.PersistenceError{Op: "cancel", Err: err}
		}
		if ok {
			o.logEvent(id, "failed", audit.ReasonCancelled)
		}
	}

	// Cancel any in-flight context after the conditional write: the record
	// may have been admitted between the read above and the write.
	o.mu.Lock()
	cancel := o.inflight[id]
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// Close stops the orchestrator and waits for in-flight goroutines. Audits
// still waiting for a permit fail as cancelled.
func (o *Orchestrator) Close() {
	o.stop()
	o.wg.Wait()
}

// run is the audit goroutine: permit, deadline, collect, score, persist,
// render.
func (o *Orchestrator) run(id, target string) {
	defer o.wg.Done()

	if err := o.sem.Acquire(o.baseCtx, 1); err != nil {
		o.fail(id, audit.ReasonCancelled)
		return
	}
	defer o.sem.Release(1)

	ctx, cancel := context.WithTimeout(o.baseCtx, o.timeout)
	defer cancel()
	o.track(id, cancel)
	defer o.untrack(id)

	// Claim the record conditionally: a Cancel that landed while the audit
	// was waiting for a permit wins, and its failed status stays settled.
	var admitted bool
	if err := o.persist(func() error {
		ok, err := o.store.Transition(ctx, id, audit.StatusPending, audit.StatusProcessing, "")
		admitted = ok
		return err
	}); err != nil {
		if ctx.Err() != nil {
			// Cancelled in the window between admission and the first write.
			o.fail(id, audit.ReasonCancelled)
		} else {
			o.fail(id, audit.ReasonPersistence)
		}
		return
	}
	if !admitted {
		// Resolved while waiting for a permit.
		return
	}
	o.logEvent(id, "processing", "")
	o.logger.Info("audit started", "id", id, "url", target)

	bundle, err := o.collector.Collect(ctx, target)
	if err != nil {
		reason := collectionReason(ctx, err)
		o.logger.Warn("collection failed", "id", id, "reason", reason, "error", err)
		o.fail(id, reason)
		return
	}
	o.logEvent(id, "collected", bundle.Domain)

	breakdown, err := o.scorer.Score(bundle)
	if err != nil {
		o.logger.Error("scoring rejected bundle", "id", id, "error", err)
		o.fail(id, audit.ReasonInvalidSignals)
		return
	}
	o.logEvent(id, "scored", fmt.Sprintf("%d (%s)", breakdown.Total, breakdown.Grade))

	completedAt := o.now().UTC()
	if err := o.persist(func() error {
		return o.store.Complete(o.baseCtx, id, breakdown.Total, bundle, completedAt)
	}); err != nil {
		o.logger.Error("completion write failed", "id", id, "error", err)
		o.fail(id, audit.ReasonPersistence)
		return
	}

	o.render(id, breakdown)
	o.logEvent(id, "completed", "")
	o.logger.Info("audit complete", "id", id, "score", breakdown.Total, "grade", breakdown.Grade)
}

// render writes the report artifact. Failures leave the completed record
// without a download.
func (o *Orchestrator) render(id string, breakdown *audit.ScoreBreakdown) {
	if o.renderer == nil {
		return
	}
	rec, err := o.store.Get(o.baseCtx, id)
	if err != nil {
		o.logger.Warn("report skipped, record unreadable", "id", id, "error", err)
		return
	}
	path, err := o.renderer.Render(o.baseCtx, rec, breakdown)
	if err != nil {
		o.logger.Warn("report rendering failed", "id", id, "error", err)
		return
	}
	if err := o.store.SetReportArtifact(o.baseCtx, id, path, true); err != nil {
		o.logger.Warn("report path write failed", "id", id, "error", err)
		return
	}
	o.logEvent(id, "report_generated", path)
}

// fail marks the record failed with storable reason text. Uses the base
// context so the write survives an expired audit deadline.
func (o *Orchestrator) fail(id, reason string) {
	err := o.persist(func() error {
		return o.store.UpdateStatus(o.baseCtx, id, audit.StatusFailed, reason)
	})
	if err != nil {
		o.logger.Error("failure write lost", "id", id, "reason", reason, "error", err)
		return
	}
	o.logEvent(id, "failed", reason)
}

// persist runs a store write with bounded retries.
func (o *Orchestrator) persist(op func() error) error {
	var err error
	for attempt := 0; attempt < o.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(retryBackoff * time.Duration(attempt))
		}
		if err = op(); err == nil {
			return nil
		}
	}
	return err
}

func (o *Orchestrator) track(id string, cancel context.CancelFunc) {
	o.mu.Lock()
	o.inflight[id] = cancel
	o.mu.Unlock()
}

func (o *Orchestrator) untrack(id string) {
	o.mu.Lock()
	delete(o.inflight, id)
	o.mu.Unlock()
}

func (o *Orchestrator) logEvent(id, event, message string) {
	if err := o.store.LogEvent(o.baseCtx, id, event, message); err != nil {
		o.logger.Warn("event write failed", "id", id, "event", event, "error", err)
	}
}

// collectionReason maps a collector failure onto the persisted reason.
func collectionReason(ctx context.Context, err error) string {
	var ce *audit.CollectionError
	if errors.As(err, &ce) {
		switch ce.Reason {
		case audit.CollectTimeout:
			return audit.ReasonTimeout
		case audit.CollectCancelled:
			return audit.ReasonCancelled
		}
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return audit.ReasonTimeout
	case errors.Is(ctx.Err(), context.Canceled):
		return audit.ReasonCancelled
	default:
		return audit.ReasonCollectionFailed
	}
}

// NormalizeURL validates a submitted URL: trims whitespace, defaults a bare
// host to https, and requires an http(s) scheme with a non-empty host.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &audit.ValidationError{Field: "url", Msg: "empty"}
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", &audit.ValidationError{Field: "url", Msg: "unparseable"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &audit.ValidationError{Field: "url", Msg: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if u.Hostname() == "" {
		return "", &audit.ValidationError{Field: "url", Msg: "missing host"}
	}
	return u.String(), nil
}

// RunSweeper loops the retention sweep until ctx is done. Call from a
// dedicated goroutine.
func (o *Orchestrator) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(o.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := o.SweepOnce(ctx); err != nil {
				o.logger.Warn("retention sweep failed", "error", err)
			} else if n > 0 {
				o.logger.Info("retention sweep", "expired", n)
			}
		}
	}
}

// SweepOnce expires every overdue record and removes its report artifact.
// Records still processing are skipped by the store and picked up on a later
// pass. Returns the number of records expired.
func (o *Orchestrator) SweepOnce(ctx context.Context) (int, error) {
	ids, err := o.store.ListExpired(ctx, o.now().UTC())
	if err != nil {
		return 0, &audit.PersistenceError{Op: "list expired", Err: err}
	}
	expired := 0
	for _, id := range ids {
		// The store reports the path it purged, so an artifact rendered
		// after the expiry listing still gets removed.
		path, ok, err := o.store.Expire(ctx, id)
		if err != nil {
			o.logger.Warn("expire failed", "id", id, "error", err)
			continue
		}
		if !ok {
			continue
		}
		if path != "" {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				o.logger.Warn("report artifact removal failed", "id", id, "path", path, "error", err)
			}
		}
		o.logEvent(id, "expired", "")
		expired++
	}
	return expired, nil
}
