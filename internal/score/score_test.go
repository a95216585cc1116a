package score

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"sitescore/internal/audit"
)

// perfectBundle returns a bundle that earns full marks in every category when
// ranked first.
func perfectBundle() *audit.SignalBundle {
	rank := 1
	return &audit.SignalBundle{
		URL:    "https://acme.example/widgets",
		Domain: "acme.example",
		Technical: audit.TechnicalSignals{
			HTTPS:            true,
			MobileResponsive: true,
			RobotsTxt:        true,
			Sitemap:          true,
			SchemaMarkup:     true,
			Canonical:        true,
			Headings: audit.HeadingsSummary{
				Counts:         [7]int{0, 1, 3, 2, 0, 0, 0},
				FirstH1:        "Best Widgets",
				SingleH1:       true,
				HasAnyHeadings: true,
			},
		},
		Performance: audit.Performance{
			LoadTime:         1200 * time.Millisecond,
			DOMContentLoaded: 800 * time.Millisecond,
			LCP:              1500 * time.Millisecond,
			CLS:              0.02,
		},
		Links: audit.LinkSignals{Internal: 14, External: 6, Checked: 20, Broken: 0},
		OnPage: audit.OnPageSignals{
			Title:           "Best Widgets — Buy Online Today | Acme",
			TitleLength:     39,
			MetaDescription: "Shop the best widgets online with free shipping, a lifetime warranty, and same-day dispatch from our Springfield warehouse today.",
			MetaDescLength:  130,
			WordCount:       1800,
			ImageCount:      10,
			ImagesWithAlt:   10,
			URLLength:       34,
			PathDepth:       1,
			UsesHyphens:     true,
		},
		Competitive: &audit.CompetitiveSlice{
			Keyword:         "best widgets",
			Rank:            &rank,
			ResultsAnalyzed: 10,
			Competitors: []audit.Competitor{
				{Position: 2, URL: "https://rival1.example", Available: true, TitleLength: 41, DescLength: 140},
				{Position: 3, URL: "https://rival2.example", Available: true, TitleLength: 38, DescLength: 125},
				{Position: 4, URL: "https://rival3.example", Available: true, TitleLength: 44, DescLength: 131},
			},
		},
	}
}

func sumSubtotals(b *audit.ScoreBreakdown) int {
	sum := 0
	for _, c := range b.Categories {
		sum += c.Subtotal
	}
	return sum
}

func TestScore_PerfectBundleIsHundred(t *testing.T) {
	got, err := New(nil).Score(perfectBundle())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got.Total != 100 {
		t.Errorf("total = %d, want 100", got.Total)
	}
	if got.Grade != "A" {
		t.Errorf("grade = %s, want A", got.Grade)
	}
	for _, c := range got.Categories {
		if c.Raw != 100 {
			t.Errorf("category %s raw = %d, want 100", c.Name, c.Raw)
		}
	}
}

func TestScore_TotalEqualsSubtotalSum(t *testing.T) {
	s := New(nil)
	bundles := []*audit.SignalBundle{
		perfectBundle(),
		degrade(perfectBundle(), func(b *audit.SignalBundle) { b.Technical.HTTPS = false }),
		degrade(perfectBundle(), func(b *audit.SignalBundle) { b.Competitive = nil }),
		degrade(perfectBundle(), func(b *audit.SignalBundle) {
			b.OnPage.TitleLength = 4
			b.OnPage.Title = "Home"
			b.Performance.LoadTime = 9 * time.Second
			b.Links.Broken = 7
			b.Links.Checked = 20
		}),
		degrade(perfectBundle(), func(b *audit.SignalBundle) {
			b.OnPage.WordCount = 0
			b.OnPage.ImageCount = 3
			b.OnPage.ImagesWithAlt = 1
			b.Links.Internal = 0
		}),
	}
	for i, b := range bundles {
		got, err := s.Score(b)
		if err != nil {
			t.Fatalf("bundle %d: %v", i, err)
		}
		if got.Total != sumSubtotals(got) {
			t.Errorf("bundle %d: total %d != subtotal sum %d", i, got.Total, sumSubtotals(got))
		}
		if got.Total < 0 || got.Total > 100 {
			t.Errorf("bundle %d: total %d out of range", i, got.Total)
		}
		for _, c := range got.Categories {
			for _, m := range c.Metrics {
				if m.Earned < 0 || m.Earned > m.Possible {
					t.Errorf("bundle %d: metric %s/%s earned %d of %d", i, c.Name, m.Name, m.Earned, m.Possible)
				}
			}
		}
	}
}

func degrade(b *audit.SignalBundle, f func(*audit.SignalBundle)) *audit.SignalBundle {
	f(b)
	return b
}

func TestScore_BooleanFlagsAllOrNothing(t *testing.T) {
	s := New(nil)
	flags := []struct {
		name string
		off  func(*audit.SignalBundle)
	}{
		{"https", func(b *audit.SignalBundle) { b.Technical.HTTPS = false }},
		{"mobile_responsive", func(b *audit.SignalBundle) { b.Technical.MobileResponsive = false }},
		{"robots_txt", func(b *audit.SignalBundle) { b.Technical.RobotsTxt = false }},
		{"sitemap", func(b *audit.SignalBundle) { b.Technical.Sitemap = false }},
		{"schema_markup", func(b *audit.SignalBundle) { b.Technical.SchemaMarkup = false }},
		{"canonical", func(b *audit.SignalBundle) { b.Technical.Canonical = false }},
	}
	for _, f := range flags {
		on, err := s.Score(perfectBundle())
		if err != nil {
			t.Fatalf("%s on: %v", f.name, err)
		}
		off, err := s.Score(degrade(perfectBundle(), f.off))
		if err != nil {
			t.Fatalf("%s off: %v", f.name, err)
		}
		var mOn, mOff *audit.MetricScore
		for i, m := range on.Category(audit.CategoryTechnical).Metrics {
			if m.Name == f.name {
				mOn = &on.Category(audit.CategoryTechnical).Metrics[i]
			}
		}
		for i, m := range off.Category(audit.CategoryTechnical).Metrics {
			if m.Name == f.name {
				mOff = &off.Category(audit.CategoryTechnical).Metrics[i]
			}
		}
		if mOn == nil || mOff == nil {
			t.Fatalf("%s: metric not found", f.name)
		}
		if mOn.Earned != mOn.Possible {
			t.Errorf("%s on: earned %d, want full %d", f.name, mOn.Earned, mOn.Possible)
		}
		if mOff.Earned != 0 {
			t.Errorf("%s off: earned %d, want 0", f.name, mOff.Earned)
		}
	}
}

func TestScore_RankMonotonicity(t *testing.T) {
	s := New(nil)

	first := perfectBundle()
	beaten := perfectBundle()
	behind := 4 // three competitors rank above the target
	beaten.Competitive.Rank = &behind

	a, err := s.Score(first)
	if err != nil {
		t.Fatalf("rank 1: %v", err)
	}
	b, err := s.Score(beaten)
	if err != nil {
		t.Fatalf("rank 4: %v", err)
	}
	subA := a.Category(audit.CategoryCompetitive).Subtotal
	subB := b.Category(audit.CategoryCompetitive).Subtotal
	if subB >= subA {
		t.Errorf("competitive subtotal rank4=%d not strictly below rank1=%d", subB, subA)
	}
}

func TestScore_Idempotent(t *testing.T) {
	s := New(nil)
	b := perfectBundle()
	first, err := s.Score(b)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := s.Score(b)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("scoring not idempotent (-first +second):\n%s", diff)
	}
}

func TestScore_RenormalizationWithoutCompetitive(t *testing.T) {
	s := New(nil)
	b := perfectBundle()
	b.Competitive = nil

	got, err := s.Score(b)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	tech := got.Category(audit.CategoryTechnical)
	onpage := got.Category(audit.CategoryOnPage)
	comp := got.Category(audit.CategoryCompetitive)

	if tech.Weight != 50 || onpage.Weight != 50 {
		t.Errorf("weights = %d/%d, want 50/50", tech.Weight, onpage.Weight)
	}
	if comp.Weight != 0 || comp.Subtotal != 0 {
		t.Errorf("competitive = weight %d subtotal %d, want 0/0", comp.Weight, comp.Subtotal)
	}
	// Achievable maximum is still 100 for a perfect page.
	if got.Total != 100 {
		t.Errorf("total = %d, want 100", got.Total)
	}
	if got.Total != sumSubtotals(got) {
		t.Errorf("total %d != subtotal sum %d", got.Total, sumSubtotals(got))
	}
}

func TestScore_TitleBandExamples(t *testing.T) {
	s := New(nil)

	// 39 characters: full points.
	b := perfectBundle()
	b.OnPage.Title = "Best Widgets — Buy Online Today | Acme"
	b.OnPage.TitleLength = 39
	got, err := s.Score(b)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	title := metric(t, got, audit.CategoryOnPage, "title")
	if title.Earned != 15 {
		t.Errorf("39-char title earned %d, want 15", title.Earned)
	}

	// "Home", 4 characters: floor tier, not full.
	b = perfectBundle()
	b.OnPage.Title = "Home"
	b.OnPage.TitleLength = 4
	got, err = s.Score(b)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	title = metric(t, got, audit.CategoryOnPage, "title")
	if title.Earned != 5 {
		t.Errorf("4-char title earned %d, want floor tier 5", title.Earned)
	}
}

func TestScore_UnavailableCompetitorsIgnoredInAverages(t *testing.T) {
	s := New(nil)
	b := perfectBundle()
	// All competitor fetches failed: averages must fall back to no-data
	// points, not treat snippets as zero-length titles.
	for i := range b.Competitive.Competitors {
		b.Competitive.Competitors[i].Available = false
		b.Competitive.Competitors[i].TitleLength = 0
		b.Competitive.Competitors[i].DescLength = 0
	}
	got, err := s.Score(b)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	title := metric(t, got, audit.CategoryCompetitive, "title_vs_competitors")
	if title.Earned != 25 {
		t.Errorf("no-data title comparison earned %d, want 25", title.Earned)
	}
}

func TestScore_RejectsMalformedBundles(t *testing.T) {
	s := New(nil)
	cases := []struct {
		name string
		b    *audit.SignalBundle
	}{
		{"nil bundle", nil},
		{"no url", &audit.SignalBundle{}},
		{"negative words", degrade(perfectBundle(), func(b *audit.SignalBundle) { b.OnPage.WordCount = -1 })},
		{"alt exceeds images", degrade(perfectBundle(), func(b *audit.SignalBundle) { b.OnPage.ImagesWithAlt = 99 })},
		{"broken exceeds checked", degrade(perfectBundle(), func(b *audit.SignalBundle) { b.Links.Broken = 99 })},
	}
	for _, tc := range cases {
		if _, err := s.Score(tc.b); err == nil {
			t.Errorf("%s: expected ScoringError", tc.name)
		}
	}
}

func TestScore_BrokenLinkPenalty(t *testing.T) {
	s := New(nil)
	b := perfectBundle()
	b.Links.Broken = 3
	got, err := s.Score(b)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	m := metric(t, got, audit.CategoryTechnical, "broken_links")
	if m.Earned != 6 { // 15 - 3*3
		t.Errorf("broken_links earned %d, want 6", m.Earned)
	}

	b.Links.Broken = 20
	b.Links.Checked = 20
	got, err = s.Score(b)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	m = metric(t, got, audit.CategoryTechnical, "broken_links")
	if m.Earned != 0 {
		t.Errorf("broken_links floor earned %d, want 0", m.Earned)
	}
}

func TestScore_SpeedTiers(t *testing.T) {
	s := New(nil)
	cases := []struct {
		load time.Duration
		want int
	}{
		{1 * time.Second, 25},
		{2500 * time.Millisecond, 20},
		{4 * time.Second, 15},
		{6 * time.Second, 10},
		{12 * time.Second, 5},
	}
	for _, tc := range cases {
		b := perfectBundle()
		b.Performance.LoadTime = tc.load
		got, err := s.Score(b)
		if err != nil {
			t.Fatalf("Score(%v): %v", tc.load, err)
		}
		m := metric(t, got, audit.CategoryTechnical, "page_speed")
		if m.Earned != tc.want {
			t.Errorf("load %v: earned %d, want %d", tc.load, m.Earned, tc.want)
		}
	}
}

func TestParse_EmbeddedTiersValid(t *testing.T) {
	tiers, err := Parse(defaultTiersYAML)
	if err != nil {
		t.Fatalf("embedded tiers invalid: %v", err)
	}
	if tiers.Weights.Technical != 40 || tiers.Weights.OnPage != 40 || tiers.Weights.Competitive != 20 {
		t.Errorf("unexpected weights: %+v", tiers.Weights)
	}
}

func TestParse_RejectsBadWeights(t *testing.T) {
	doc := []byte("weights: {technical: 50, onpage: 40, competitive: 20}")
	if _, err := Parse(doc); err == nil {
		t.Fatal("expected validation error for weights summing to 110")
	}
}

func metric(t *testing.T, b *audit.ScoreBreakdown, cat, name string) audit.MetricScore {
	t.Helper()
	c := b.Category(cat)
	if c == nil {
		t.Fatalf("category %s missing", cat)
	}
	for _, m := range c.Metrics {
		if m.Name == name {
			return m
		}
	}
	t.Fatalf("metric %s/%s missing", cat, name)
	return audit.MetricScore{}
}
