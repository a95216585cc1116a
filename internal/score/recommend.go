package score

import (
	"fmt"
	"sort"
	"time"

	"sitescore/internal/audit"
)

// maxRecommendations caps the advice list embedded into reports.
const maxRecommendations = 10

var priorityOrder = map[string]int{
	"critical": 0,
	"high":     1,
	"medium":   2,
	"low":      3,
}

// recommend derives a prioritized advice list from the raw signals. Purely a
// report nicety; it never influences the score.
func (s *Scorer) recommend(b *audit.SignalBundle, _ *audit.ScoreBreakdown) []audit.Recommendation {
	var recs []audit.Recommendation
	add := func(priority, category, issue, advice string) {
		recs = append(recs, audit.Recommendation{
			Priority: priority, Category: category, Issue: issue, Advice: advice,
		})
	}

	if !b.Technical.HTTPS {
		add("critical", "Technical", "No HTTPS/SSL certificate",
			"Install an SSL certificate to enable HTTPS. This is critical for security and search ranking.")
	}
	if !b.Technical.MobileResponsive {
		add("critical", "Technical", "Not mobile responsive",
			"Implement responsive design with a proper viewport meta tag. Mobile-first indexing requires mobile optimization.")
	}
	if b.Performance.LoadTime > 3*time.Second {
		add("high", "Performance",
			fmt.Sprintf("Slow page load (%dms)", b.Performance.LoadTime.Milliseconds()),
			"Optimize images, enable caching, minimize CSS/JS, and use a CDN to improve load times.")
	}
	if !b.Technical.Sitemap {
		add("high", "Technical", "No XML sitemap",
			"Create and submit an XML sitemap to help search engines discover your pages.")
	}
	if b.Links.Broken > 0 {
		add("high", "Technical",
			fmt.Sprintf("%d broken links found", b.Links.Broken),
			"Fix or remove broken links; they waste crawl budget and erode trust.")
	}

	switch l := b.OnPage.TitleLength; {
	case l == 0:
		add("critical", "On-Page", "Missing title tag",
			"Add a unique, descriptive title tag (30-60 characters) to every page.")
	case l < s.tiers.OnPage.Title.OptimalMin || l > s.tiers.OnPage.Title.OptimalMax:
		add("medium", "On-Page", fmt.Sprintf("Title tag length (%d chars)", l),
			"Optimize title tag length to 30-60 characters for better result display.")
	}
	if b.OnPage.MetaDescLength == 0 {
		add("high", "On-Page", "Missing meta description",
			"Add a compelling meta description (120-160 characters) to improve click-through rates.")
	}
	if missing := b.OnPage.ImageCount - b.OnPage.ImagesWithAlt; missing > 0 {
		add("medium", "On-Page", fmt.Sprintf("%d images missing alt text", missing),
			"Add descriptive alt text to all images for accessibility and search visibility.")
	}
	if b.OnPage.WordCount < 300 {
		add("high", "Content", fmt.Sprintf("Thin content (%d words)", b.OnPage.WordCount),
			"Add more high-quality, relevant content. Aim for at least 500-1000 words.")
	}

	if b.Competitive != nil && b.Competitive.Rank == nil {
		add("medium", "Competitive", "Not ranking in analyzed results",
			fmt.Sprintf("Target keyword %q: analyze top-ranking competitors and improve content depth.", b.Competitive.Keyword))
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return priorityOrder[recs[i].Priority] < priorityOrder[recs[j].Priority]
	})
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}
