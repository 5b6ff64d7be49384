package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-agent-studio/graph"
)

// MemoryStore is an in-memory Store used by tests and local sessions.
// It counts mutating calls so tests can assert that rejected operations
// never reached the store.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string]*graph.GraphRecord
	snapshots map[string][]graph.VersionSnapshot

	SaveCalls   int
	DeployCalls int
	DeleteCalls int
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]*graph.GraphRecord),
		snapshots: make(map[string][]graph.VersionSnapshot),
	}
}

func (s *MemoryStore) ListGraphs(_ context.Context, filter Filter) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Summary
	for _, rec := range s.records {
		if !filter.Matches(rec) {
			continue
		}
		out = append(out, Summary{
			ID:          rec.ActiveID(),
			DisplayName: rec.DisplayName,
			GraphType:   rec.GraphType,
			Channel:     rec.Channel,
			Version:     rec.Version,
			Status:      rec.Status,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetGraph(_ context.Context, id string) (*graph.GraphRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrGraphNotFound
	}
	cp := *rec
	return &cp, nil
}

// SaveGraph commits a record, allocating a canonical id on the first save
// of a draft, and appends an immutable VersionSnapshot.
func (s *MemoryStore) SaveGraph(_ context.Context, rec *graph.GraphRecord) (SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SaveCalls++

	cp := *rec
	if cp.CanonicalID == "" {
		cp.CanonicalID = uuid.New().String()
		cp.Status = graph.StatusCanonical
	}

	serialized, err := json.Marshal(&cp)
	if err != nil {
		return SaveResult{}, err
	}
	snapshot := graph.VersionSnapshot{
		VersionID:       uuid.New().String(),
		GraphRecordID:   cp.CanonicalID,
		VersionLabel:    cp.Version,
		CreatedAt:       time.Now().UTC(),
		SerializedGraph: serialized,
	}

	s.records[cp.CanonicalID] = &cp
	s.snapshots[cp.CanonicalID] = append(s.snapshots[cp.CanonicalID], snapshot)
	return SaveResult{ID: cp.CanonicalID, Version: cp.Version}, nil
}

func (s *MemoryStore) DeleteGraph(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeleteCalls++

	if _, ok := s.records[id]; !ok {
		return ErrGraphNotFound
	}
	delete(s.records, id)
	delete(s.snapshots, id)
	return nil
}

func (s *MemoryStore) ListVersions(_ context.Context, id string) ([]graph.VersionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps, ok := s.snapshots[id]
	if !ok {
		return nil, ErrGraphNotFound
	}
	out := make([]graph.VersionSnapshot, len(snaps))
	copy(out, snaps)
	return out, nil
}

func (s *MemoryStore) GetVersion(_ context.Context, id, versionID string) (*graph.VersionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, snap := range s.snapshots[id] {
		if snap.VersionID == versionID {
			cp := snap
			return &cp, nil
		}
	}
	return nil, ErrVersionNotFound
}

// DeployVersion points the record at an existing snapshot. Earlier
// snapshots stay valid; rollback is deploying an older one.
func (s *MemoryStore) DeployVersion(_ context.Context, id, versionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeployCalls++

	rec, ok := s.records[id]
	if !ok {
		return ErrGraphNotFound
	}
	found := false
	for _, snap := range s.snapshots[id] {
		if snap.VersionID == versionID {
			found = true
			break
		}
	}
	if !found {
		return ErrVersionNotFound
	}
	rec.DeployedVersionID = versionID
	rec.Status = graph.StatusDeployed
	return nil
}

var _ Store = (*MemoryStore)(nil)
