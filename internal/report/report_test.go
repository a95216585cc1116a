package report

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"sitescore/internal/audit"
)

func testBreakdown() *audit.ScoreBreakdown {
	return &audit.ScoreBreakdown{
		Total: 78,
		Grade: "C",
		Categories: []audit.CategoryScore{
			{
				Name:     audit.CategoryTechnical,
				Raw:      80,
				Weight:   40,
				Subtotal: 32,
				Metrics: []audit.MetricScore{
					{Name: "https", Earned: 5, Possible: 5},
					{Name: "page_speed", Earned: 15, Possible: 25},
				},
			},
			{
				Name:     audit.CategoryOnPage,
				Raw:      75,
				Weight:   40,
				Subtotal: 30,
				Metrics: []audit.MetricScore{
					{Name: "title", Earned: 10, Possible: 15},
				},
			},
			{
				Name:     audit.CategoryCompetitive,
				Raw:      80,
				Weight:   20,
				Subtotal: 16,
				Metrics: []audit.MetricScore{
					{Name: "serp_rank", Earned: 20, Possible: 40},
				},
			},
		},
		Recommendations: []audit.Recommendation{
			{Priority: "high", Category: audit.CategoryTechnical, Issue: "Slow page load", Advice: "Compress images and enable caching."},
		},
	}
}

func testRecord() *audit.Record {
	return &audit.Record{
		ID:     "rec-123",
		URL:    "https://acme.example",
		Status: audit.StatusComplete,
	}
}

func TestRender(t *testing.T) {
	r, err := NewHTMLRenderer(t.TempDir())
	if err != nil {
		t.Fatalf("NewHTMLRenderer: %v", err)
	}
	r.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	path, err := r.Render(context.Background(), testRecord(), testBreakdown())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	html := string(raw)

	for _, want := range []string{
		"https://acme.example",
		">C<",
		"<strong>78</strong>",
		"Technical SEO",
		"On-Page SEO",
		"Page Speed",
		"Slow page load",
		"Compress images",
		"rec-123",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("artifact missing %q", want)
		}
	}
}

func TestRender_SkipsEmptyCategories(t *testing.T) {
	r, err := NewHTMLRenderer(t.TempDir())
	if err != nil {
		t.Fatalf("NewHTMLRenderer: %v", err)
	}

	b := testBreakdown()
	// A renormalized run reports competitive with no metrics.
	b.Categories[2] = audit.CategoryScore{Name: audit.CategoryCompetitive, Weight: 0}
	b.Recommendations = nil

	path, err := r.Render(context.Background(), testRecord(), b)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	raw, _ := os.ReadFile(path)
	if strings.Contains(string(raw), "Search Ranking") {
		t.Error("empty competitive category rendered")
	}
	if strings.Contains(string(raw), "Recommendations") {
		t.Error("empty recommendations section rendered")
	}
}

func TestRender_Validation(t *testing.T) {
	r, err := NewHTMLRenderer(t.TempDir())
	if err != nil {
		t.Fatalf("NewHTMLRenderer: %v", err)
	}
	if _, err := r.Render(context.Background(), nil, testBreakdown()); err == nil {
		t.Error("expected error for nil record")
	}
	if _, err := r.Render(context.Background(), testRecord(), nil); err == nil {
		t.Error("expected error for nil breakdown")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Render(ctx, testRecord(), testBreakdown()); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestNewHTMLRenderer_RequiresDir(t *testing.T) {
	if _, err := NewHTMLRenderer(""); err == nil {
		t.Error("expected error for empty dir")
	}
}
