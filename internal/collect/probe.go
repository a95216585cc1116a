package collect

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"sitescore/internal/audit"
)

const probeTimeout = 5 * time.Second

// probeExists reports whether the given URL answers with a success status.
// HEAD first; some servers reject HEAD outright, so 405 retries as GET.
func (c *Collector) probeExists(ctx context.Context, rawURL string) bool {
	status, err := c.headOrGet(ctx, rawURL, probeTimeout)
	if err != nil {
		return false
	}
	return status >= 200 && status < 300
}

func (c *Collector) headOrGet(ctx context.Context, rawURL string, timeout time.Duration) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	status, err := c.fetchStatus(reqCtx, http.MethodHead, rawURL)
	if err == nil && status == http.StatusMethodNotAllowed {
		status, err = c.fetchStatus(reqCtx, http.MethodGet, rawURL)
	}
	return status, err
}

func (c *Collector) fetchStatus(ctx context.Context, method, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", defaultProbeUA)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<14))
	resp.Body.Close()
	return resp.StatusCode, nil
}

// checkLinks scans a sample of the page's outbound links for dead targets.
// The scan is capped at maxLinkChecks distinct links and at a quarter of the
// remaining audit budget; hitting either cap keeps the partial counts and
// sets Truncated.
func (c *Collector) checkLinks(ctx context.Context, base *url.URL, hrefs []string, out *audit.LinkSignals) {
	targets := sampleLinks(base, hrefs, maxLinkChecks)
	if len(targets) == 0 {
		return
	}
	out.Truncated = len(targets) < distinctLinkCount(base, hrefs)

	scanCtx := ctx
	var cancel context.CancelFunc
	if dl, ok := ctx.Deadline(); ok {
		budget := time.Until(dl) / 4
		if budget <= 0 {
			out.Truncated = true
			return
		}
		scanCtx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	for _, link := range targets {
		if scanCtx.Err() != nil {
			out.Truncated = true
			return
		}
		status, err := c.headOrGet(scanCtx, link, probeTimeout)
		if err != nil {
			// A budget expiry mid-request is a truncation, not a broken link.
			if scanCtx.Err() != nil {
				out.Truncated = true
				return
			}
			out.Checked++
			out.Broken++
			continue
		}
		out.Checked++
		if status >= 400 {
			out.Broken++
		}
	}
}

// sampleLinks returns up to limit distinct absolutized link targets in
// document order.
func sampleLinks(base *url.URL, hrefs []string, limit int) []string {
	seen := make(map[string]bool, limit)
	out := make([]string, 0, limit)
	for _, href := range hrefs {
		abs, ok := absolutize(base, href)
		if !ok {
			continue
		}
		s := abs.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}

func distinctLinkCount(base *url.URL, hrefs []string) int {
	seen := make(map[string]bool, len(hrefs))
	for _, href := range hrefs {
		if abs, ok := absolutize(base, href); ok {
			seen[abs.String()] = true
		}
	}
	return len(seen)
}
