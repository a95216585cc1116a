package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"sitescore/internal/audit"
	"sitescore/internal/orchestrate"
	"sitescore/internal/report"
	"sitescore/internal/store"
)

type stubCollector struct {
	err error
}

func (c *stubCollector) Collect(ctx context.Context, target string) (*audit.SignalBundle, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &audit.SignalBundle{
		URL:    target,
		Domain: "acme.example",
		Technical: audit.TechnicalSignals{
			HTTPS: true,
			Headings: audit.HeadingsSummary{
				Counts:         [7]int{0, 1, 0, 0, 0, 0, 0},
				SingleH1:       true,
				HasAnyHeadings: true,
			},
		},
		Performance: audit.Performance{LoadTime: 1500 * time.Millisecond, LCP: 2 * time.Second, CLS: 0.05},
		OnPage: audit.OnPageSignals{
			Title: "Acme Widgets Online Store Catalog", TitleLength: 33,
			WordCount: 1600, UsesHyphens: true,
		},
		Links: audit.LinkSignals{Internal: 12, Checked: 12},
	}, nil
}

func newTestServer(t *testing.T, collector orchestrate.Collector) (*httptest.Server, *orchestrate.Orchestrator) {
	t.Helper()
	renderer, err := report.NewHTMLRenderer(t.TempDir())
	if err != nil {
		t.Fatalf("NewHTMLRenderer: %v", err)
	}
	orch, err := orchestrate.New(store.NewMemStore(), collector,
		orchestrate.WithPoolSize(2),
		orchestrate.WithRenderer(renderer),
	)
	if err != nil {
		t.Fatalf("orchestrate.New: %v", err)
	}
	t.Cleanup(orch.Close)

	api, err := New(orch, []byte("test-secret"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(api.Routes())
	t.Cleanup(srv.Close)
	return srv, orch
}

func getStatus(t *testing.T, srv *httptest.Server, id string) statusResponse {
	t.Helper()
	resp, err := http.Get(srv.URL + "/audit/status/" + id)
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status endpoint = %d", resp.StatusCode)
	}
	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return out
}

func pollUntil(t *testing.T, srv *httptest.Server, id string, done func(statusResponse) bool) statusResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st := getStatus(t, srv, id)
		if done(st) {
			return st
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never reached")
	return statusResponse{}
}

func TestSubmitStatusDownloadFlow(t *testing.T) {
	srv, _ := newTestServer(t, &stubCollector{})

	body := strings.NewReader(`{"url": "acme.example", "email": "owner@acme.example"}`)
	resp, err := http.Post(srv.URL+"/audit/submit", "application/json", body)
	if err != nil {
		t.Fatalf("POST submit: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit = %d, want 202", resp.StatusCode)
	}
	var accepted map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	id := accepted["id"]
	if id == "" {
		t.Fatal("submit response missing id")
	}
	if accepted["status_url"] != "/audit/status/"+id {
		t.Errorf("status_url = %q", accepted["status_url"])
	}

	st := pollUntil(t, srv, id, func(s statusResponse) bool {
		return s.Status == "complete" && s.DownloadURL != ""
	})
	if st.Score == nil || *st.Score < 0 || *st.Score > 100 {
		t.Errorf("score = %v", st.Score)
	}
	if st.Grade == "" {
		t.Error("grade missing on completed status")
	}

	dl, err := http.Get(srv.URL + st.DownloadURL)
	if err != nil {
		t.Fatalf("GET download: %v", err)
	}
	defer dl.Body.Close()
	if dl.StatusCode != http.StatusOK {
		t.Fatalf("download = %d, want 200", dl.StatusCode)
	}
	if ct := dl.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}

	// Tampered token is rejected.
	bad, err := http.Get(srv.URL + "/audit/download/" + id + "?token=not-a-token")
	if err != nil {
		t.Fatalf("GET bad download: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token = %d, want 401", bad.StatusCode)
	}

	// Missing token is rejected.
	missing, err := http.Get(srv.URL + "/audit/download/" + id)
	if err != nil {
		t.Fatalf("GET tokenless download: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusUnauthorized {
		t.Errorf("missing token = %d, want 401", missing.StatusCode)
	}
}

func TestSubmitFormEncoded(t *testing.T) {
	srv, _ := newTestServer(t, &stubCollector{})

	form := url.Values{
		"url":        {"acme.example"},
		"email":      {"owner@acme.example"},
		"first_name": {"Pat"},
	}
	resp, err := http.PostForm(srv.URL+"/audit/submit", form)
	if err != nil {
		t.Fatalf("POST form: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit = %d, want 202", resp.StatusCode)
	}
}

func TestSubmitRejectsBadURL(t *testing.T) {
	srv, _ := newTestServer(t, &stubCollector{})

	resp, err := http.Post(srv.URL+"/audit/submit", "application/json",
		strings.NewReader(`{"url": "ftp://acme.example"}`))
	if err != nil {
		t.Fatalf("POST submit: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("submit = %d, want 400", resp.StatusCode)
	}
}

func TestStatusNotFound(t *testing.T) {
	srv, _ := newTestServer(t, &stubCollector{})

	resp, err := http.Get(srv.URL + "/audit/status/does-not-exist")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestFailedAuditReportsGenericError(t *testing.T) {
	srv, _ := newTestServer(t, &stubCollector{
		err: &audit.CollectionError{Reason: audit.CollectDNS, URL: "https://gone.example", Err: errors.New("lookup failed")},
	})

	resp, err := http.Post(srv.URL+"/audit/submit", "application/json",
		strings.NewReader(`{"url": "gone.example"}`))
	if err != nil {
		t.Fatalf("POST submit: %v", err)
	}
	defer resp.Body.Close()
	var accepted map[string]string
	json.NewDecoder(resp.Body).Decode(&accepted)

	st := pollUntil(t, srv, accepted["id"], func(s statusResponse) bool {
		return s.Status == "failed"
	})
	if st.Error != genericFailure {
		t.Errorf("error = %q, want generic message", st.Error)
	}
	if strings.Contains(st.Error, "dns") || strings.Contains(st.Error, "lookup") {
		t.Errorf("internal detail leaked: %q", st.Error)
	}
	if st.DownloadURL != "" {
		t.Error("failed audit has a download URL")
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &stubCollector{})

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health = %d, want 200", resp.StatusCode)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")

	token, err := mintToken(secret, "audit-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("mintToken: %v", err)
	}
	subject, err := parseToken(secret, token)
	if err != nil {
		t.Fatalf("parseToken: %v", err)
	}
	if subject != "audit-1" {
		t.Errorf("subject = %q", subject)
	}

	if _, err := parseToken([]byte("other-secret"), token); err == nil {
		t.Error("token accepted with wrong secret")
	}

	expired, err := mintToken(secret, "audit-1", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("mintToken: %v", err)
	}
	if _, err := parseToken(secret, expired); err == nil {
		t.Error("expired token accepted")
	}
}
