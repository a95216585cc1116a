package store

import (
	"context"
	"sync"
	"time"

	"sitescore/internal/audit"
)

// MemStore is an in-memory Store for tests and one-shot CLI audits.
type MemStore struct {
	mu      sync.Mutex
	records map[string]*audit.Record
	events  map[string][]audit.Event
	clock   func() time.Time
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[string]*audit.Record),
		events:  make(map[string][]audit.Event),
		clock:   time.Now,
	}
}

func (s *MemStore) Create(_ context.Context, rec *audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *MemStore) Get(_ context.Context, id string) (*audit.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, audit.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemStore) UpdateStatus(_ context.Context, id string, status audit.Status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return audit.ErrNotFound
	}
	rec.Status = status
	rec.Error = errMsg
	return nil
}

func (s *MemStore) Transition(_ context.Context, id string, from, to audit.Status, errMsg string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.Status != from {
		return false, nil
	}
	rec.Status = to
	rec.Error = errMsg
	return true, nil
}

func (s *MemStore) Complete(_ context.Context, id string, score int, bundle *audit.SignalBundle, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return audit.ErrNotFound
	}
	rec.Status = audit.StatusComplete
	rec.Score = &score
	rec.Bundle = bundle
	rec.Error = ""
	rec.CompletedAt = &completedAt
	return nil
}

func (s *MemStore) SetReportArtifact(_ context.Context, id, path string, ready bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return audit.ErrNotFound
	}
	rec.ReportPath = path
	rec.ReportReady = ready
	return nil
}

func (s *MemStore) ListExpired(_ context.Context, before time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, rec := range s.records {
		if rec.Status != audit.StatusExpired && rec.ExpiresAt.Before(before) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MemStore) Expire(_ context.Context, id string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return "", false, audit.ErrNotFound
	}
	if rec.Status == audit.StatusProcessing || rec.Status == audit.StatusExpired {
		return "", false, nil
	}
	path := rec.ReportPath
	rec.Status = audit.StatusExpired
	rec.Score = nil
	rec.Bundle = nil
	rec.ReportPath = ""
	rec.ReportReady = false
	return path, true, nil
}

func (s *MemStore) LogEvent(_ context.Context, id, event, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[id] = append(s.events[id], audit.Event{
		RecordID: id,
		Type:     event,
		Message:  message,
		At:       s.clock(),
	})
	return nil
}

func (s *MemStore) Events(_ context.Context, id string) ([]audit.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.Event, len(s.events[id]))
	copy(out, s.events[id])
	return out, nil
}

func (s *MemStore) Close() error { return nil }
