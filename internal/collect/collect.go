// Package collect gathers the raw SEO signals for one URL: a headless-browser
// pass over the primary page, cheap HTTP probes for crawlability files and
// broken links, and an organic-search discovery pass for competitive context.
package collect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"sitescore/internal/audit"
)

const (
	defaultSearchURL   = "https://html.duckduckgo.com/html/?q=%s"
	defaultProbeUA     = "Mozilla/5.0 (compatible; sitescore/1.0)"
	maxLinkChecks      = 20
	maxCompetitors     = 3
	maxResultsAnalyzed = 10
)

// Collector runs the full signal-gathering pass for an audit.
type Collector struct {
	rt         Runtime
	httpClient *http.Client
	searchURL  string
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures the Collector during construction.
type Option func(*collectorConfig) error

type collectorConfig struct {
	httpClient *http.Client
	searchURL  string
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a Collector backed by the given browser runtime.
func New(rt Runtime, opts ...Option) (*Collector, error) {
	if rt == nil {
		return nil, fmt.Errorf("collect: runtime is required")
	}
	cfg := &collectorConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	searchURL := cfg.searchURL
	if searchURL == "" {
		searchURL = defaultSearchURL
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := cfg.now
	if now == nil {
		now = time.Now
	}

	return &Collector{
		rt:         rt,
		httpClient: httpClient,
		searchURL:  searchURL,
		logger:     logger,
		now:        now,
	}, nil
}

// WithHTTPClient overrides the HTTP client used for probes and link checks.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *collectorConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithSearchURL overrides the organic-search URL template. The template must
// contain a single %s for the query.
func WithSearchURL(tmpl string) Option {
	return func(cfg *collectorConfig) error {
		if !strings.Contains(tmpl, "%s") {
			return fmt.Errorf("collect: search URL template needs a %%s placeholder")
		}
		cfg.searchURL = tmpl
		return nil
	}
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *collectorConfig) error {
		cfg.logger = l
		return nil
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(cfg *collectorConfig) error {
		cfg.now = now
		return nil
	}
}

// Collect fetches the primary URL in a fresh browser session, extracts page
// and performance signals, probes robots.txt/sitemap.xml and outbound links,
// then attempts search discovery. Only a primary-page failure is fatal;
// discovery failures degrade to a nil Competitive slice.
func (c *Collector) Collect(ctx context.Context, rawURL string) (*audit.SignalBundle, error) {
	target, err := url.Parse(rawURL)
	if err != nil || target.Host == "" {
		return nil, &audit.CollectionError{Reason: audit.CollectNavigation, URL: rawURL, Err: err}
	}

	sess, err := c.rt.NewSession(ctx)
	if err != nil {
		return nil, &audit.CollectionError{Reason: classify(err), URL: rawURL, Err: err}
	}
	defer sess.Close()

	if err := sess.Navigate(ctx, rawURL); err != nil {
		return nil, &audit.CollectionError{Reason: classify(err), URL: rawURL, Err: err}
	}

	var page pageExtract
	if err := sess.Evaluate(ctx, pageExtractJS, &page); err != nil {
		return nil, &audit.CollectionError{Reason: classify(err), URL: rawURL, Err: err}
	}

	var perf perfExtract
	if err := sess.Evaluate(ctx, perfExtractJS, &perf); err != nil {
		// Timings are worth degrading over, not failing over: some pages
		// block the performance API.
		c.logger.Warn("performance extraction failed", "url", rawURL, "error", err)
	}

	bundle := c.assemble(target, &page, &perf)

	if err := ctx.Err(); err != nil {
		return nil, &audit.CollectionError{Reason: classify(err), URL: rawURL, Err: err}
	}

	bundle.Technical.RobotsTxt = c.probeExists(ctx, target.Scheme+"://"+target.Host+"/robots.txt")
	bundle.Technical.Sitemap = c.probeExists(ctx, target.Scheme+"://"+target.Host+"/sitemap.xml")

	c.checkLinks(ctx, target, page.Hrefs, &bundle.Links)

	if comp, err := c.discover(ctx, sess, target, &page); err != nil {
		c.logger.Warn("search discovery failed", "url", rawURL, "error", err)
	} else {
		bundle.Competitive = comp
	}

	if err := ctx.Err(); err != nil {
		return nil, &audit.CollectionError{Reason: classify(err), URL: rawURL, Err: err}
	}
	return bundle, nil
}

// assemble folds the raw extraction into the signal bundle. URL-derived
// fields come from the parsed target, not the page.
func (c *Collector) assemble(target *url.URL, page *pageExtract, perf *perfExtract) *audit.SignalBundle {
	b := &audit.SignalBundle{
		URL:         target.String(),
		Domain:      target.Hostname(),
		CollectedAt: c.now().UTC(),
	}

	b.Technical = audit.TechnicalSignals{
		HTTPS:            target.Scheme == "https",
		MobileResponsive: page.Viewport,
		SchemaMarkup:     len(page.SchemaTypes) > 0,
		SchemaTypes:      page.SchemaTypes,
		Canonical:        page.Canonical != "",
		CanonicalURL:     page.Canonical,
		RobotsMeta:       page.RobotsMeta,
		Headings:         summarizeHeadings(page),
	}

	b.Performance = audit.Performance{
		LoadTime:         msDuration(perf.LoadTimeMs),
		DOMContentLoaded: msDuration(perf.DOMContentLoadedMs),
		FirstPaint:       msDuration(perf.FirstPaintMs),
		TransferSize:     perf.TransferSize,
		LCP:              msDuration(perf.LCPMs),
		CLS:              perf.CLS,
	}

	b.OnPage = audit.OnPageSignals{
		Title:           page.Title,
		TitleLength:     utf8.RuneCountInString(page.Title),
		MetaDescription: page.MetaDescription,
		MetaDescLength:  utf8.RuneCountInString(page.MetaDescription),
		WordCount:       page.WordCount,
		ImageCount:      page.ImageCount,
		ImagesWithAlt:   page.ImagesWithAlt,
	}
	fillURLSignals(&b.OnPage, target)

	internal, external := partitionLinks(target, page.Hrefs)
	b.Links.Internal = internal
	b.Links.External = external

	return b
}

func summarizeHeadings(page *pageExtract) audit.HeadingsSummary {
	var h audit.HeadingsSummary
	total := 0
	for i := 1; i <= 6; i++ {
		h.Counts[i] = page.HeadingCounts[i-1]
		total += h.Counts[i]
	}
	h.FirstH1 = page.FirstH1
	h.SingleH1 = h.Counts[1] == 1
	h.HasAnyHeadings = total > 0
	return h
}

// fillURLSignals derives the URL-structure metrics scored in the on-page
// category.
func fillURLSignals(o *audit.OnPageSignals, target *url.URL) {
	o.URLLength = len(target.String())
	o.HasQueryParams = target.RawQuery != ""

	path := strings.Trim(target.Path, "/")
	if path == "" {
		o.PathDepth = 0
		// A bare domain has nothing to hyphenate; treat it as conforming.
		o.UsesHyphens = true
		return
	}
	segments := strings.Split(path, "/")
	o.PathDepth = len(segments)
	o.UsesHyphens = strings.Contains(path, "-")
	o.UsesUnderscores = strings.Contains(path, "_")
}

// partitionLinks counts distinct internal vs external targets among the raw
// hrefs.
func partitionLinks(target *url.URL, hrefs []string) (internal, external int) {
	seen := make(map[string]bool, len(hrefs))
	for _, href := range hrefs {
		abs, ok := absolutize(target, href)
		if !ok || seen[abs.String()] {
			continue
		}
		seen[abs.String()] = true
		if abs.Hostname() == target.Hostname() {
			internal++
		} else {
			external++
		}
	}
	return internal, external
}

// absolutize resolves href against the page URL, dropping fragments and
// non-HTTP schemes.
func absolutize(base *url.URL, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil, false
	}
	u, err := base.Parse(href)
	if err != nil {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	u.Fragment = ""
	return u, true
}

func msDuration(ms float64) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// classify maps a collector step failure onto a persisted failure reason.
func classify(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return audit.CollectCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return audit.CollectTimeout
	case strings.Contains(err.Error(), "ERR_NAME_NOT_RESOLVED"),
		strings.Contains(err.Error(), "no such host"):
		return audit.CollectDNS
	default:
		return audit.CollectNavigation
	}
}
