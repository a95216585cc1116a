package score

import (
	"time"

	"sitescore/internal/audit"
)

// Scorer computes weighted score breakdowns from signal bundles. It holds no
// mutable state; one Scorer may serve any number of concurrent audits.
type Scorer struct {
	tiers *Tiers
}

// New creates a Scorer with the given tier tables (nil means the embedded
// defaults).
func New(tiers *Tiers) *Scorer {
	if tiers == nil {
		tiers = Default()
	}
	return &Scorer{tiers: tiers}
}

// Score maps a bundle to its breakdown. The only error condition is a bundle
// that violates the collector's contract; that is surfaced as a ScoringError
// so the orchestrator can record it distinctly from collection failures.
func (s *Scorer) Score(b *audit.SignalBundle) (*audit.ScoreBreakdown, error) {
	if err := validate(b); err != nil {
		return nil, err
	}

	technical := s.scoreTechnical(b)
	onpage := s.scoreOnPage(b)

	var cats []audit.CategoryScore
	if b.Competitive != nil {
		competitive := s.scoreCompetitive(b)
		cats = weighted(
			[]audit.CategoryScore{technical, onpage, competitive},
			[]int{s.tiers.Weights.Technical, s.tiers.Weights.OnPage, s.tiers.Weights.Competitive},
		)
	} else {
		// Discovery unavailable: renormalize across technical and on-page,
		// preserving their relative proportions.
		wt, wo := renormalize(s.tiers.Weights.Technical, s.tiers.Weights.OnPage)
		cats = weighted([]audit.CategoryScore{technical, onpage}, []int{wt, wo})
		cats = append(cats, audit.CategoryScore{
			Name:   audit.CategoryCompetitive,
			Weight: 0,
		})
	}

	total := 0
	for _, c := range cats {
		total += c.Subtotal
	}

	breakdown := &audit.ScoreBreakdown{
		Categories: cats,
		Total:      total,
		Grade:      s.tiers.GradeFor(total),
	}
	breakdown.Recommendations = s.recommend(b, breakdown)
	return breakdown, nil
}

// weighted fills Weight and Subtotal on each category. Subtotal is
// round-half-up(raw * weight / 100); the caller sums subtotals into the total
// so the invariant total == sum(subtotals) holds by construction.
func weighted(cats []audit.CategoryScore, weights []int) []audit.CategoryScore {
	for i := range cats {
		cats[i].Weight = weights[i]
		cats[i].Subtotal = roundHalfUp(cats[i].Raw*weights[i], 100)
	}
	return cats
}

// renormalize scales two weights to sum to 100, keeping their ratio.
func renormalize(a, b int) (int, int) {
	ra := roundHalfUp(a*100, a+b)
	return ra, 100 - ra
}

// roundHalfUp divides num by den rounding .5 up. Inputs are non-negative.
func roundHalfUp(num, den int) int {
	return (num + den/2) / den
}

func validate(b *audit.SignalBundle) error {
	switch {
	case b == nil:
		return &audit.ScoringError{Msg: "nil bundle"}
	case b.URL == "":
		return &audit.ScoringError{Msg: "bundle has no URL"}
	case b.OnPage.WordCount < 0 || b.OnPage.ImageCount < 0 || b.OnPage.ImagesWithAlt < 0:
		return &audit.ScoringError{Msg: "negative on-page counts"}
	case b.OnPage.ImagesWithAlt > b.OnPage.ImageCount:
		return &audit.ScoringError{Msg: "alt count exceeds image count"}
	case b.Links.Broken < 0 || b.Links.Broken > b.Links.Checked:
		return &audit.ScoringError{Msg: "inconsistent link counts"}
	case b.Performance.CLS < 0:
		return &audit.ScoringError{Msg: "negative CLS"}
	}
	return nil
}

func (s *Scorer) scoreTechnical(b *audit.SignalBundle) audit.CategoryScore {
	t := s.tiers.Technical
	var metrics []audit.MetricScore

	add := func(name string, earned, possible int) {
		metrics = append(metrics, audit.MetricScore{Name: name, Earned: earned, Possible: possible})
	}
	flag := func(name string, on bool, points int) {
		earned := 0
		if on {
			earned = points
		}
		add(name, earned, points)
	}

	flag("https", b.Technical.HTTPS, t.HTTPS)
	flag("mobile_responsive", b.Technical.MobileResponsive, t.Mobile)
	flag("robots_txt", b.Technical.RobotsTxt, t.RobotsTxt)
	flag("sitemap", b.Technical.Sitemap, t.Sitemap)
	flag("schema_markup", b.Technical.SchemaMarkup, t.Schema)
	flag("canonical", b.Technical.Canonical, t.Canonical)

	headings := 0
	switch {
	case b.Technical.Headings.SingleH1:
		headings = t.HeadingsSingleH1
	case b.Technical.Headings.Counts[1] > 0:
		headings = t.HeadingsAnyH1
	}
	add("headings", headings, t.HeadingsSingleH1)

	add("page_speed", msTier(b.Performance.LoadTime, t.Speed.Bands, t.Speed.Floor), t.Speed.Max)
	add("lcp", msTier(b.Performance.LCP, t.LCP.Bands, t.LCP.Floor), t.LCP.Max)
	add("cls", floatTier(b.Performance.CLS, t.CLS.Bands, t.CLS.Floor), t.CLS.Max)

	broken := t.BrokenLinks.Max - b.Links.Broken*t.BrokenLinks.PenaltyPerLink
	if broken < 0 {
		broken = 0
	}
	add("broken_links", broken, t.BrokenLinks.Max)

	return category(audit.CategoryTechnical, metrics)
}

func (s *Scorer) scoreOnPage(b *audit.SignalBundle) audit.CategoryScore {
	t := s.tiers.OnPage
	var metrics []audit.MetricScore
	add := func(name string, earned, possible int) {
		metrics = append(metrics, audit.MetricScore{Name: name, Earned: earned, Possible: possible})
	}

	add("title", t.Title.Points(b.OnPage.TitleLength), t.Title.Max)
	add("meta_description", t.MetaDescription.Points(b.OnPage.MetaDescLength), t.MetaDescription.Max)
	add("content", countTier(b.OnPage.WordCount, t.Content.Bands, t.Content.Floor), t.Content.Max)
	// Image points scale linearly with alt-text coverage.
	img := t.Images.Max
	if b.OnPage.ImageCount > 0 {
		img = roundHalfUp(b.OnPage.ImagesWithAlt*t.Images.Max, b.OnPage.ImageCount)
	}
	add("images", img, t.Images.Max)
	add("internal_links", countTier(b.Links.Internal, t.InternalLinks.Bands, t.InternalLinks.Floor), t.InternalLinks.Max)

	u := t.URLStructure.Max
	if b.OnPage.URLLength > t.URLStructure.LongURLLength {
		u -= t.URLStructure.LongURLPenalty
	}
	if !b.OnPage.UsesHyphens && b.OnPage.PathDepth > 0 {
		u -= t.URLStructure.NoHyphensPenalty
	}
	if b.OnPage.PathDepth > t.URLStructure.DeepPathDepth {
		u -= t.URLStructure.DeepPathPenalty
	}
	if u < 0 {
		u = 0
	}
	add("url_structure", u, t.URLStructure.Max)

	return category(audit.CategoryOnPage, metrics)
}

func (s *Scorer) scoreCompetitive(b *audit.SignalBundle) audit.CategoryScore {
	t := s.tiers.Competitive
	comp := b.Competitive
	var metrics []audit.MetricScore
	add := func(name string, earned, possible int) {
		metrics = append(metrics, audit.MetricScore{Name: name, Earned: earned, Possible: possible})
	}

	rank := t.Rank.Unranked
	if comp.Rank != nil {
		rank = t.Rank.Floor
		for i := len(t.Rank.Bands) - 1; i >= 0; i-- {
			if *comp.Rank <= t.Rank.Bands[i].Within {
				rank = t.Rank.Bands[i].Points
			}
		}
	}
	add("serp_rank", rank, t.Rank.Max)

	avail := comp.AvailableCompetitors()
	add("title_vs_competitors",
		compareTier(b.OnPage.TitleLength, s.tiers.OnPage.Title, t.Title, avgTitleLength(avail)),
		t.Title.Max)
	add("description_vs_competitors",
		compareTier(b.OnPage.MetaDescLength, s.tiers.OnPage.MetaDescription, t.Description, avgDescLength(avail)),
		t.Description.Max)

	return category(audit.CategoryCompetitive, metrics)
}

// compareTier scores one of our lengths against the competitor average: full
// points when in the optimal band and close to the average, present points
// when the field exists at all, missing points otherwise. A nil average means
// no competitor data was available.
func compareTier(length int, band LengthBandTiers, t CompareTiers, avg *float64) int {
	if avg == nil {
		return t.NoDataPoints
	}
	inBand := length >= band.OptimalMin && length <= band.OptimalMax
	if inBand && absInt(length-int(*avg)) < t.AvgTolerance {
		return t.Max
	}
	if length > 0 {
		return t.PresentPoints
	}
	return t.MissingPoints
}

func avgTitleLength(comps []audit.Competitor) *float64 {
	if len(comps) == 0 {
		return nil
	}
	sum := 0
	for _, c := range comps {
		sum += c.TitleLength
	}
	avg := float64(sum) / float64(len(comps))
	return &avg
}

func avgDescLength(comps []audit.Competitor) *float64 {
	if len(comps) == 0 {
		return nil
	}
	sum := 0
	for _, c := range comps {
		sum += c.DescLength
	}
	avg := float64(sum) / float64(len(comps))
	return &avg
}

func category(name string, metrics []audit.MetricScore) audit.CategoryScore {
	raw := 0
	for _, m := range metrics {
		raw += m.Earned
	}
	return audit.CategoryScore{Name: name, Metrics: metrics, Raw: raw}
}

func msTier(d time.Duration, bands []MsBand, floor int) int {
	ms := int(d / time.Millisecond)
	for _, b := range bands {
		if ms < b.UnderMs {
			return b.Points
		}
	}
	return floor
}

func floatTier(v float64, bands []FloatBand, floor int) int {
	for _, b := range bands {
		if v < b.Under {
			return b.Points
		}
	}
	return floor
}

func countTier(n int, bands []CountBand, floor int) int {
	for _, b := range bands {
		if n >= b.AtLeast {
			return b.Points
		}
	}
	return floor
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
