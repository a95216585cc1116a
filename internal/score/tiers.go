// Package score turns a signal bundle into a weighted 0-100 breakdown.
// Scoring is pure and deterministic: the same bundle always yields the same
// breakdown, and the overall total is exactly the sum of the persisted
// category subtotals.
package score

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed tiers.yaml
var defaultTiersYAML []byte

// Tiers is the full point-table configuration.
type Tiers struct {
	Weights     Weights          `yaml:"weights"`
	Technical   TechnicalTiers   `yaml:"technical"`
	OnPage      OnPageTiers      `yaml:"onpage"`
	Competitive CompetitiveTiers `yaml:"competitive"`
	Grades      []GradeBand      `yaml:"grades"`
}

// Weights are category percentages; they must sum to 100.
type Weights struct {
	Technical   int `yaml:"technical"`
	OnPage      int `yaml:"onpage"`
	Competitive int `yaml:"competitive"`
}

// MsBand awards points when a millisecond measurement is under the bound.
type MsBand struct {
	UnderMs int `yaml:"under_ms"`
	Points  int `yaml:"points"`
}

// FloatBand awards points when a unitless measurement is under the bound.
type FloatBand struct {
	Under  float64 `yaml:"under"`
	Points int     `yaml:"points"`
}

// CountBand awards points when a count reaches the threshold.
type CountBand struct {
	AtLeast int `yaml:"at_least"`
	Points  int `yaml:"points"`
}

// TechnicalTiers holds the technical category point tables.
type TechnicalTiers struct {
	HTTPS            int `yaml:"https"`
	Mobile           int `yaml:"mobile"`
	RobotsTxt        int `yaml:"robots_txt"`
	Sitemap          int `yaml:"sitemap"`
	Schema           int `yaml:"schema"`
	Canonical        int `yaml:"canonical"`
	HeadingsSingleH1 int `yaml:"headings_single_h1"`
	HeadingsAnyH1    int `yaml:"headings_any_h1"`
	Speed            struct {
		Max   int      `yaml:"max"`
		Bands []MsBand `yaml:"bands"`
		Floor int      `yaml:"floor"`
	} `yaml:"speed"`
	LCP struct {
		Max   int      `yaml:"max"`
		Bands []MsBand `yaml:"bands"`
		Floor int      `yaml:"floor"`
	} `yaml:"lcp"`
	CLS struct {
		Max   int         `yaml:"max"`
		Bands []FloatBand `yaml:"bands"`
		Floor int         `yaml:"floor"`
	} `yaml:"cls"`
	BrokenLinks struct {
		Max            int `yaml:"max"`
		PenaltyPerLink int `yaml:"penalty_per_link"`
	} `yaml:"broken_links"`
}

// LengthBandTiers scores a character length with an optimal and a near band.
type LengthBandTiers struct {
	Max           int `yaml:"max"`
	OptimalMin    int `yaml:"optimal_min"`
	OptimalMax    int `yaml:"optimal_max"`
	NearMin       int `yaml:"near_min"`
	NearMax       int `yaml:"near_max"`
	NearPoints    int `yaml:"near_points"`
	PresentPoints int `yaml:"present_points"`
}

// Points scores a length against the band table: optimal, near, present, zero.
func (t LengthBandTiers) Points(length int) int {
	switch {
	case length >= t.OptimalMin && length <= t.OptimalMax:
		return t.Max
	case length >= t.NearMin && length <= t.NearMax:
		return t.NearPoints
	case length > 0:
		return t.PresentPoints
	default:
		return 0
	}
}

// OnPageTiers holds the on-page category point tables.
type OnPageTiers struct {
	Title           LengthBandTiers `yaml:"title"`
	MetaDescription LengthBandTiers `yaml:"meta_description"`
	Content         struct {
		Max   int         `yaml:"max"`
		Bands []CountBand `yaml:"bands"`
		Floor int         `yaml:"floor"`
	} `yaml:"content"`
	// Images scale linearly: earned = max * alt coverage ratio.
	Images struct {
		Max int `yaml:"max"`
	} `yaml:"images"`
	InternalLinks struct {
		Max   int         `yaml:"max"`
		Bands []CountBand `yaml:"bands"`
		Floor int         `yaml:"floor"`
	} `yaml:"internal_links"`
	URLStructure struct {
		Max              int `yaml:"max"`
		LongURLLength    int `yaml:"long_url_length"`
		LongURLPenalty   int `yaml:"long_url_penalty"`
		NoHyphensPenalty int `yaml:"no_hyphens_penalty"`
		DeepPathDepth    int `yaml:"deep_path_depth"`
		DeepPathPenalty  int `yaml:"deep_path_penalty"`
	} `yaml:"url_structure"`
}

// CompetitiveTiers holds the competitive category point tables.
type CompetitiveTiers struct {
	Rank struct {
		Max      int        `yaml:"max"`
		Bands    []RankBand `yaml:"bands"`
		Floor    int        `yaml:"floor"`
		Unranked int        `yaml:"unranked"`
	} `yaml:"rank"`
	Title       CompareTiers `yaml:"title"`
	Description CompareTiers `yaml:"description"`
}

// RankBand awards points when the organic rank is within the bound.
type RankBand struct {
	Within int `yaml:"within"`
	Points int `yaml:"points"`
}

// CompareTiers scores a metric against the competitor average.
type CompareTiers struct {
	Max           int `yaml:"max"`
	AvgTolerance  int `yaml:"avg_tolerance"`
	PresentPoints int `yaml:"present_points"`
	MissingPoints int `yaml:"missing_points"`
	NoDataPoints  int `yaml:"no_data_points"`
}

// GradeBand maps a minimum total to a letter grade.
type GradeBand struct {
	AtLeast int    `yaml:"at_least"`
	Grade   string `yaml:"grade"`
}

var defaultTiers = sync.OnceValue(func() *Tiers {
	t, err := Parse(defaultTiersYAML)
	if err != nil {
		// The embedded document is validated by tests; a parse failure here
		// is a build defect.
		panic(fmt.Sprintf("score: embedded tiers.yaml: %v", err))
	}
	return t
})

// Default returns the embedded tier tables. Callers must not mutate the
// shared result.
func Default() *Tiers {
	return defaultTiers()
}

// GradeFor maps a total to its letter grade using the embedded defaults.
func GradeFor(total int) string {
	return Default().GradeFor(total)
}

// Load reads tier tables from a yaml file, for deployments that tune points.
func Load(path string) (*Tiers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("score: read tiers %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a tier document.
func Parse(data []byte) (*Tiers, error) {
	var t Tiers
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("score: parse tiers: %w", err)
	}
	if err := t.validate(); err != nil {
		return nil, fmt.Errorf("score: validate tiers: %w", err)
	}
	return &t, nil
}

func (t *Tiers) validate() error {
	if sum := t.Weights.Technical + t.Weights.OnPage + t.Weights.Competitive; sum != 100 {
		return fmt.Errorf("weights sum to %d, want 100", sum)
	}
	techMax := t.Technical.HTTPS + t.Technical.Mobile + t.Technical.RobotsTxt +
		t.Technical.Sitemap + t.Technical.Schema + t.Technical.Canonical +
		t.Technical.HeadingsSingleH1 + t.Technical.Speed.Max + t.Technical.LCP.Max +
		t.Technical.CLS.Max + t.Technical.BrokenLinks.Max
	if techMax != 100 {
		return fmt.Errorf("technical metrics sum to %d, want 100", techMax)
	}
	onpageMax := t.OnPage.Title.Max + t.OnPage.MetaDescription.Max + t.OnPage.Content.Max +
		t.OnPage.Images.Max + t.OnPage.InternalLinks.Max + t.OnPage.URLStructure.Max
	if onpageMax != 100 {
		return fmt.Errorf("onpage metrics sum to %d, want 100", onpageMax)
	}
	compMax := t.Competitive.Rank.Max + t.Competitive.Title.Max + t.Competitive.Description.Max
	if compMax != 100 {
		return fmt.Errorf("competitive metrics sum to %d, want 100", compMax)
	}
	if len(t.Grades) == 0 {
		return fmt.Errorf("no grade bands")
	}
	return nil
}

// GradeFor maps a total score to its letter grade.
func (t *Tiers) GradeFor(total int) string {
	for _, g := range t.Grades {
		if total >= g.AtLeast {
			return g.Grade
		}
	}
	return t.Grades[len(t.Grades)-1].Grade
}
