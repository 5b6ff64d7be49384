// Package store defines the persistence boundary for graph records and
// version snapshots, with an in-memory backend for tests and a
// Badger-backed durable backend.
package store

import (
	"context"

	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-agent-studio/graph"
)

const (
	ErrCodeGraphNotFound   = "STORE_GRAPH_NOT_FOUND"
	ErrCodeVersionNotFound = "STORE_VERSION_NOT_FOUND"
	ErrCodeStoreIO         = "STORE_IO_FAILURE"
)

// ErrGraphNotFound is returned when no record exists for an id.
var ErrGraphNotFound = errors.New("graph not found", errors.CategoryBadInput).
	WithTextCode(ErrCodeGraphNotFound)

// ErrVersionNotFound is returned when a snapshot id resolves to nothing.
var ErrVersionNotFound = errors.New("version snapshot not found", errors.CategoryBadInput).
	WithTextCode(ErrCodeVersionNotFound)

// ErrIOFailure reports a backend read or write failure.
var ErrIOFailure = errors.New("store io failure", errors.CategoryExternal).
	WithTextCode(ErrCodeStoreIO)

// Filter narrows ListGraphs results. Zero value matches everything.
type Filter struct {
	GraphType graph.GraphType
	Channel   graph.Channel
	Status    graph.GraphStatus
}

// Matches reports whether a record satisfies the filter.
func (f Filter) Matches(rec *graph.GraphRecord) bool {
	if f.GraphType != "" && rec.GraphType != f.GraphType {
		return false
	}
	if f.Channel != "" && rec.Channel != f.Channel {
		return false
	}
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	return true
}

// Summary is the listing projection of a graph record.
type Summary struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	GraphType   graph.GraphType   `json:"graph_type"`
	Channel     graph.Channel     `json:"channel,omitempty"`
	Version     string            `json:"version"`
	Status      graph.GraphStatus `json:"status"`
}

// SaveResult reports the identity and version the store committed.
// ID is the canonical id, allocated on the first save of a draft.
type SaveResult struct {
	ID      string
	Version string
}

// Store is the persistence collaborator. Implementations must allocate a
// canonical id on the first save of a draft record and append an
// immutable VersionSnapshot on every save; snapshots are never
// overwritten or deleted by later saves or deploys.
type Store interface {
	ListGraphs(ctx context.Context, filter Filter) ([]Summary, error)
	GetGraph(ctx context.Context, id string) (*graph.GraphRecord, error)
	SaveGraph(ctx context.Context, rec *graph.GraphRecord) (SaveResult, error)
	DeleteGraph(ctx context.Context, id string) error
	ListVersions(ctx context.Context, id string) ([]graph.VersionSnapshot, error)
	GetVersion(ctx context.Context, id, versionID string) (*graph.VersionSnapshot, error)
	DeployVersion(ctx context.Context, id, versionID string) error
}
