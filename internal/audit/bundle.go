package audit

import "time"

// SignalBundle is the structured output of one collector run. It is held for
// the duration of a single audit and embedded into the Record on completion.
type SignalBundle struct {
	URL         string           `json:"url"`
	Domain      string           `json:"domain"`
	CollectedAt time.Time        `json:"collected_at"`
	Technical   TechnicalSignals `json:"technical"`
	Performance Performance      `json:"performance"`
	Links       LinkSignals      `json:"links"`
	OnPage      OnPageSignals    `json:"onpage"`
	// Competitive is nil when SERP discovery failed entirely; the scorer
	// renormalizes weights across the remaining categories in that case.
	Competitive *CompetitiveSlice `json:"competitive,omitempty"`
}

// TechnicalSignals are boolean crawlability/markup flags plus the heading map.
type TechnicalSignals struct {
	HTTPS            bool            `json:"https"`
	MobileResponsive bool            `json:"mobile_responsive"`
	RobotsTxt        bool            `json:"robots_txt"`
	Sitemap          bool            `json:"sitemap"`
	SchemaMarkup     bool            `json:"schema_markup"`
	SchemaTypes      []string        `json:"schema_types,omitempty"`
	Canonical        bool            `json:"canonical"`
	CanonicalURL     string          `json:"canonical_url,omitempty"`
	RobotsMeta       string          `json:"robots_meta,omitempty"`
	Headings         HeadingsSummary `json:"headings"`
}

// HeadingsSummary condenses the page's heading structure.
type HeadingsSummary struct {
	Counts         [7]int `json:"counts"` // index 1..6 used; h1 count is Counts[1]
	FirstH1        string `json:"first_h1,omitempty"`
	SingleH1       bool   `json:"single_h1"`
	HasAnyHeadings bool   `json:"has_any_headings"`
}

// Performance holds navigation timings and Core Web Vitals approximations.
// Durations are wall-clock as reported by the page; CLS is unitless.
type Performance struct {
	LoadTime         time.Duration `json:"load_time"`
	DOMContentLoaded time.Duration `json:"dom_content_loaded"`
	FirstPaint       time.Duration `json:"first_paint"`
	TransferSize     int64         `json:"transfer_size"`
	LCP              time.Duration `json:"lcp"`
	CLS              float64       `json:"cls"`
}

// LinkSignals summarizes hyperlinks found on the page and the existence scan.
type LinkSignals struct {
	Internal  int  `json:"internal"`
	External  int  `json:"external"`
	Checked   int  `json:"checked"`
	Broken    int  `json:"broken"`
	Truncated bool `json:"truncated"` // broken-link scan hit its time budget
}

// OnPageSignals are content and markup metrics for the primary URL.
type OnPageSignals struct {
	Title           string `json:"title"`
	TitleLength     int    `json:"title_length"`
	MetaDescription string `json:"meta_description"`
	MetaDescLength  int    `json:"meta_desc_length"`
	WordCount       int    `json:"word_count"`
	ImageCount      int    `json:"image_count"`
	ImagesWithAlt   int    `json:"images_with_alt"`
	URLLength       int    `json:"url_length"`
	PathDepth       int    `json:"path_depth"`
	UsesHyphens     bool   `json:"uses_hyphens"`
	UsesUnderscores bool   `json:"uses_underscores"`
	HasQueryParams  bool   `json:"has_query_params"`
}

// AltCoverageRatio returns alt-text coverage in [0,1]. A page with no images
// counts as fully covered.
func (o OnPageSignals) AltCoverageRatio() float64 {
	if o.ImageCount == 0 {
		return 1
	}
	return float64(o.ImagesWithAlt) / float64(o.ImageCount)
}

// CompetitiveSlice is the search-discovery result: the auto-detected keyword,
// the target's organic rank (nil when not found in the analyzed results), and
// up to three competitors.
type CompetitiveSlice struct {
	Keyword         string       `json:"keyword"`
	Rank            *int         `json:"rank,omitempty"`
	ResultsAnalyzed int          `json:"results_analyzed"`
	Competitors     []Competitor `json:"competitors"`
}

// Competitor is one SERP rival. Available is false when its page could not be
// fetched; title/description then fall back to the SERP snippet, which may be
// empty. The scorer must treat unavailable competitors as absent data, not as
// zero-length titles.
type Competitor struct {
	Position    int    `json:"position"`
	URL         string `json:"url"`
	Available   bool   `json:"available"`
	Title       string `json:"title"`
	TitleLength int    `json:"title_length"`
	Description string `json:"description"`
	DescLength  int    `json:"desc_length"`
}

// AvailableCompetitors filters to competitors whose data was actually fetched.
func (c *CompetitiveSlice) AvailableCompetitors() []Competitor {
	if c == nil {
		return nil
	}
	out := make([]Competitor, 0, len(c.Competitors))
	for _, comp := range c.Competitors {
		if comp.Available {
			out = append(out, comp)
		}
	}
	return out
}
