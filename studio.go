// Package studio is the service facade: it wires the persistent store,
// the local edit cache, the shared catalogs and the session manager into
// one surface the HTTP server and the CLI both consume.
package studio

import (
	"context"

	"github.com/goliatone/go-agent-studio/catalog"
	"github.com/goliatone/go-agent-studio/compiler"
	"github.com/goliatone/go-agent-studio/graph"
	"github.com/goliatone/go-agent-studio/session"
	"github.com/goliatone/go-agent-studio/store"
	"github.com/goliatone/go-agent-studio/version"
)

// Config controls service construction.
type Config struct {
	// DataDir is the badger database directory. Empty runs in-memory,
	// which keeps the CLI usable without any local state.
	DataDir string
	Logger  Logger
}

// Service is the composition root for the editing engine.
type Service struct {
	db       *store.BadgerStore
	store    store.Store
	cache    session.CacheMirror
	sessions *session.Manager
	catalog  *catalog.Catalog
	logger   Logger
}

// New builds a service around a badger-backed store and cache mirror.
func New(cfg Config) (*Service, error) {
	logger := normalizeLogger(cfg.Logger)

	db, err := store.OpenBadger(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	cache := store.NewBadgerCache(db)

	svc := &Service{
		db:      db,
		store:   db,
		cache:   cache,
		catalog: catalog.New(),
		logger:  logger,
	}
	svc.sessions = session.NewManager(db, cache, session.WithLogger(logger))
	return svc, nil
}

// Close releases the backing database.
func (s *Service) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Sessions exposes the tab manager.
func (s *Service) Sessions() *session.Manager { return s.sessions }

// Catalog exposes the schema and trigger catalogs.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// Store exposes the persistence layer.
func (s *Service) Store() store.Store { return s.store }

// CompileResult is the outcome of compiling one graph document.
type CompileResult struct {
	Code        string   `json:"code"`
	Valid       bool     `json:"valid"`
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// CompileDocument validates and compiles a parsed graph document.
// Structural failures short-circuit: no code is produced for a graph
// that cannot execute.
func (s *Service) CompileDocument(doc *graph.Document) CompileResult {
	report := graph.ValidateStructure(doc.Nodes, doc.Edges)
	if !report.Valid {
		return CompileResult{Diagnostics: report.Errors}
	}
	code, warnings := compiler.Compile(compiler.Input{
		Name:        doc.Name,
		Nodes:       doc.Nodes,
		Edges:       doc.Edges,
		StateSchema: doc.StateSchema,
		Triggers:    doc.Triggers,
	})
	textReport := compiler.Validate(code)
	diags := make([]string, 0, len(warnings)+len(textReport.Errors))
	for _, w := range warnings {
		diags = append(diags, "warning: "+w)
	}
	diags = append(diags, textReport.Errors...)
	return CompileResult{
		Code:        code,
		Valid:       textReport.Valid,
		Diagnostics: diags,
	}
}

// ValidateSource re-checks compiled source text.
func (s *Service) ValidateSource(source string) compiler.Report {
	return compiler.Validate(source)
}

// ConvertToVisual turns execution-format nodes into an editable graph.
func (s *Service) ConvertToVisual(execNodes []graph.ExecutionNode, entryPointID string) graph.VisualGraph {
	return graph.ToVisual(execNodes, entryPointID)
}

// ConvertToExecution flattens an editable graph back to execution format.
func (s *Service) ConvertToExecution(nodes []graph.Node, edges []graph.Edge) []graph.ExecutionNode {
	return graph.ToExecution(nodes, edges)
}

// ImportDocument persists a parsed document as a new graph through the
// regular editing path: draft tab, edits, save, close. The tab is not
// kept open; the returned id addresses the stored record.
func (s *Service) ImportDocument(ctx context.Context, doc *graph.Document) (store.SaveResult, error) {
	graphType := doc.GraphType
	if graphType == "" {
		graphType = graph.GraphUser
	}
	tab := s.sessions.OpenDraft(doc.Name, graphType, doc.Channel)
	if err := s.sessions.SetGraph(tab.ID(), doc.Nodes, doc.Edges); err != nil {
		return store.SaveResult{}, err
	}
	if doc.Description != "" {
		if err := s.sessions.SetMetadata(tab.ID(), doc.Name, doc.Description); err != nil {
			return store.SaveResult{}, err
		}
	}
	res, err := s.sessions.Save(ctx, tab.ID(), version.SaveOptions{})
	if err != nil {
		return store.SaveResult{}, err
	}
	if err := s.sessions.CloseTab(tab.ID(), false); err != nil {
		return res, err
	}
	s.logger.Info("imported graph %q as %s@%s", doc.Name, res.ID, res.Version)
	return res, nil
}

// Preview compiles the live graph of an open tab, resolving its schema
// and trigger bindings from the catalog.
func (s *Service) Preview(id string) (session.Preview, error) {
	tab, err := s.sessions.Tab(id)
	if err != nil {
		return session.Preview{}, err
	}
	rec := tab.Record()

	var schema *graph.StateSchema
	if rec.StateSchemaID != "" {
		schema, err = s.catalog.GetSchema(rec.StateSchemaID)
		if err != nil {
			return session.Preview{}, err
		}
	}
	triggers := s.catalog.ResolveTriggers(rec.TriggerIDs)
	return s.sessions.BuildPreview(id, schema, triggers)
}

// ListGraphs lists stored graph summaries.
func (s *Service) ListGraphs(ctx context.Context, filter store.Filter) ([]store.Summary, error) {
	return s.store.ListGraphs(ctx, filter)
}

// GetGraph fetches a stored graph record.
func (s *Service) GetGraph(ctx context.Context, id string) (*graph.GraphRecord, error) {
	return s.store.GetGraph(ctx, id)
}

// DeleteGraph removes a stored graph and its local cached edits.
func (s *Service) DeleteGraph(ctx context.Context, id string) error {
	if err := s.store.DeleteGraph(ctx, id); err != nil {
		return err
	}
	s.cache.Delete(id)
	return nil
}

// ListVersions lists the version history of a graph.
func (s *Service) ListVersions(ctx context.Context, id string) ([]graph.VersionSnapshot, error) {
	return s.store.ListVersions(ctx, id)
}
