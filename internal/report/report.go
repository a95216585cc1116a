// Package report renders the downloadable HTML artifact for a completed
// audit.
package report

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sitescore/internal/audit"
)

//go:embed report.html.tmpl
var reportTemplate string

// HTMLRenderer writes one self-contained HTML file per audit into its output
// directory.
type HTMLRenderer struct {
	dir  string
	tmpl *template.Template
	now  func() time.Time
}

// NewHTMLRenderer parses the embedded template and ensures the output
// directory exists.
func NewHTMLRenderer(dir string) (*HTMLRenderer, error) {
	if dir == "" {
		return nil, fmt.Errorf("report: output dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: create output dir: %w", err)
	}
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"title": titleCase,
		"pct":   percent,
	}).Parse(reportTemplate)
	if err != nil {
		return nil, fmt.Errorf("report: parse template: %w", err)
	}
	return &HTMLRenderer{dir: dir, tmpl: tmpl, now: time.Now}, nil
}

type templateData struct {
	Record      *audit.Record
	Breakdown   *audit.ScoreBreakdown
	GeneratedAt time.Time
	GradeClass  string
}

// Render writes the artifact and returns its path. The file is written whole
// or not at all: the template executes into memory first.
func (r *HTMLRenderer) Render(ctx context.Context, rec *audit.Record, breakdown *audit.ScoreBreakdown) (string, error) {
	if rec == nil || breakdown == nil {
		return "", fmt.Errorf("report: record and breakdown are required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	data := templateData{
		Record:      rec,
		Breakdown:   breakdown,
		GeneratedAt: r.now().UTC(),
		GradeClass:  gradeClass(breakdown.Grade),
	}
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("report: execute template: %w", err)
	}

	path := filepath.Join(r.dir, rec.ID+".html")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("report: write artifact: %w", err)
	}
	return path, nil
}

func gradeClass(grade string) string {
	switch grade {
	case "A", "B":
		return "good"
	case "C":
		return "fair"
	default:
		return "poor"
	}
}

var displayNames = map[string]string{
	audit.CategoryTechnical:   "Technical SEO",
	audit.CategoryOnPage:      "On-Page SEO",
	audit.CategoryCompetitive: "Competitive Analysis",
	"lcp":                     "Largest Contentful Paint",
	"cls":                     "Cumulative Layout Shift",
	"https":                   "HTTPS",
	"serp_rank":               "Search Ranking",
	"url_structure":           "URL Structure",
}

// titleCase renders a snake_case metric or category name for display.
func titleCase(s string) string {
	if name, ok := displayNames[s]; ok {
		return name
	}
	words := strings.Split(s, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func percent(part, whole int) string {
	if whole == 0 {
		return "0%"
	}
	return fmt.Sprintf("%d%%", part*100/whole)
}
