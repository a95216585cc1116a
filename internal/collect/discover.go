package collect

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/publicsuffix"

	"sitescore/internal/audit"
)

const keywordWordLimit = 5

// discover runs the search pass: derive a keyword from the page, pull the
// organic results for it, locate the target's rank, and fetch up to three
// rival pages. The caller treats any returned error as a degradation, not a
// failure.
func (c *Collector) discover(ctx context.Context, sess Session, target *url.URL, page *pageExtract) (*audit.CompetitiveSlice, error) {
	keyword := keywordFrom(page.FirstH1, page.Title)
	if keyword == "" {
		return nil, &audit.DiscoveryError{Err: fmt.Errorf("no keyword derivable from page")}
	}

	searchURL := fmt.Sprintf(c.searchURL, url.QueryEscape(keyword))
	if err := sess.Navigate(ctx, searchURL); err != nil {
		return nil, &audit.DiscoveryError{Keyword: keyword, Err: err}
	}
	var serp serpExtract
	if err := sess.Evaluate(ctx, serpExtractJS, &serp); err != nil {
		return nil, &audit.DiscoveryError{Keyword: keyword, Err: err}
	}

	results := normalizeResults(serp.Results, maxResultsAnalyzed)
	if len(results) == 0 {
		return nil, &audit.DiscoveryError{Keyword: keyword, Err: fmt.Errorf("no organic results extracted")}
	}

	comp := &audit.CompetitiveSlice{
		Keyword:         keyword,
		ResultsAnalyzed: len(results),
	}

	targetDomain := registrableDomain(target.Hostname())
	for i, r := range results {
		if registrableDomain(hostnameOf(r.URL)) == targetDomain {
			if comp.Rank == nil {
				rank := i + 1
				comp.Rank = &rank
			}
			continue
		}
		if len(comp.Competitors) < maxCompetitors {
			comp.Competitors = append(comp.Competitors, audit.Competitor{
				Position:    i + 1,
				URL:         r.URL,
				Title:       r.Title,
				TitleLength: utf8.RuneCountInString(r.Title),
				Description: r.Snippet,
				DescLength:  utf8.RuneCountInString(r.Snippet),
			})
		}
	}

	for i := range comp.Competitors {
		c.fetchCompetitor(ctx, sess, &comp.Competitors[i])
	}
	return comp, nil
}

// fetchCompetitor reads the rival page's head tags in the shared session.
// Failures leave the SERP snippet in place with Available false.
func (c *Collector) fetchCompetitor(ctx context.Context, sess Session, comp *audit.Competitor) {
	if err := sess.Navigate(ctx, comp.URL); err != nil {
		c.logger.Debug("competitor fetch failed", "url", comp.URL, "error", err)
		return
	}
	var ext competitorExtract
	if err := sess.Evaluate(ctx, competitorExtractJS, &ext); err != nil {
		c.logger.Debug("competitor extraction failed", "url", comp.URL, "error", err)
		return
	}
	comp.Available = true
	if ext.Title != "" {
		comp.Title = ext.Title
		comp.TitleLength = utf8.RuneCountInString(ext.Title)
	}
	if ext.MetaDescription != "" {
		comp.Description = ext.MetaDescription
		comp.DescLength = utf8.RuneCountInString(ext.MetaDescription)
	}
}

// keywordFrom derives the search query: first H1, else the title, lowercased
// with punctuation stripped, capped at the first five words.
func keywordFrom(h1, title string) string {
	src := strings.TrimSpace(h1)
	if src == "" {
		src = strings.TrimSpace(title)
	}
	if src == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range strings.ToLower(src) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		case r == '-', r == '_':
			b.WriteByte(' ')
		}
	}
	words := strings.Fields(b.String())
	if len(words) > keywordWordLimit {
		words = words[:keywordWordLimit]
	}
	return strings.Join(words, " ")
}

// normalizeResults cleans raw SERP anchors: unwraps redirect links, drops
// non-HTTP targets and duplicates, and caps the list.
func normalizeResults(raw []serpResult, limit int) []serpResult {
	seen := make(map[string]bool, limit)
	out := make([]serpResult, 0, limit)
	for _, r := range raw {
		u := unwrapRedirect(r.URL)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		r.URL = u
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out
}

// unwrapRedirect resolves search-engine redirect hrefs (DuckDuckGo's
// /l/?uddg=... form) to the destination URL, returning "" for anything that
// is not a plain HTTP target.
func unwrapRedirect(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if dest := u.Query().Get("uddg"); dest != "" {
		if du, err := url.Parse(dest); err == nil && (du.Scheme == "http" || du.Scheme == "https") {
			return dest
		}
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return ""
	}
	return u.String()
}

func hostnameOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// registrableDomain folds a hostname to its eTLD+1 so www.example.co.uk and
// example.co.uk compare equal. Unparseable hosts fall back to the raw name.
func registrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return ""
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}
