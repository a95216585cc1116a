package audit

// Category names used in score breakdowns.
const (
	CategoryTechnical   = "technical"
	CategoryOnPage      = "onpage"
	CategoryCompetitive = "competitive"
)

// MetricScore is one scored metric: points earned out of points possible
// within its category's 0-100 scale.
type MetricScore struct {
	Name     string `json:"name"`
	Earned   int    `json:"earned"`
	Possible int    `json:"possible"`
}

// CategoryScore is one category's result. Raw is the unweighted 0-100 score,
// Weight the effective percentage after any renormalization, and Subtotal the
// weighted integer contribution to the total.
type CategoryScore struct {
	Name     string        `json:"name"`
	Metrics  []MetricScore `json:"metrics"`
	Raw      int           `json:"raw"`
	Weight   int           `json:"weight"`
	Subtotal int           `json:"subtotal"`
}

// Recommendation is one prioritized piece of advice derived from the signals.
type Recommendation struct {
	Priority string `json:"priority"` // critical, high, medium, low
	Category string `json:"category"`
	Issue    string `json:"issue"`
	Advice   string `json:"advice"`
}

// ScoreBreakdown is the scorer's output. Total always equals the sum of the
// category subtotals and lies in [0,100].
type ScoreBreakdown struct {
	Categories      []CategoryScore  `json:"categories"`
	Total           int              `json:"total"`
	Grade           string           `json:"grade"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
}

// Category returns the named category, or nil.
func (b *ScoreBreakdown) Category(name string) *CategoryScore {
	for i := range b.Categories {
		if b.Categories[i].Name == name {
			return &b.Categories[i]
		}
	}
	return nil
}
