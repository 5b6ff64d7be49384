// Package session owns the multi-tab editing state: per-tab bounded undo
// history, dirty tracking, reconciliation between locally cached edits
// and server-authoritative snapshots, and single-flight save/deploy
// guards. Tabs live only for the process session; the injected cache
// mirror is the sole state that outlives them.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/goliatone/go-agent-studio/graph"
	"github.com/goliatone/go-agent-studio/store"
	"github.com/goliatone/go-agent-studio/version"
)

// Logger is the minimal logging contract this package needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Tab is one open editing surface. All fields are owned by the Manager;
// callers read them through accessor methods.
type Tab struct {
	id     string
	record *graph.GraphRecord

	nodes []graph.Node
	edges []graph.Edge

	hasUnsavedChanges bool
	isLoading         bool

	hist      history
	restoring bool

	saving    bool
	deploying bool
	editGen   uint64
}

// ID returns the tab key: the draft id until promotion, then still the
// id the tab was opened under.
func (t *Tab) ID() string { return t.id }

// Record exposes the backing graph record.
func (t *Tab) Record() *graph.GraphRecord { return t.record }

// Nodes returns the materialized node list.
func (t *Tab) Nodes() []graph.Node { return t.nodes }

// Edges returns the materialized edge list.
func (t *Tab) Edges() []graph.Edge { return t.edges }

// HasUnsavedChanges reports the dirty flag.
func (t *Tab) HasUnsavedChanges() bool { return t.hasUnsavedChanges }

// IsDraft reports whether the tab's record was never promoted.
func (t *Tab) IsDraft() bool { return t.record.IsDraft() }

// HistoryLen returns the number of retained history entries.
func (t *Tab) HistoryLen() int { return t.hist.len() }

// HistoryIndex returns the cursor into the retained history.
func (t *Tab) HistoryIndex() int { return t.hist.index }

// Manager owns every open tab. Editing is cooperative single-threaded in
// the UI; the mutex only defends the save/deploy network calls that
// overlap editing.
type Manager struct {
	mu      sync.Mutex
	tabs    map[string]*Tab
	store   store.Store
	machine *version.Machine
	cache   CacheMirror
	logger  Logger
}

// Option customizes the manager.
type Option func(*Manager)

// WithLogger sets the session logger.
func WithLogger(logger Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager wires the session manager to its collaborators. The cache
// mirror must be injected; pass NewMemoryCache() when no durable mirror
// is wanted.
func NewManager(s store.Store, cache CacheMirror, opts ...Option) *Manager {
	m := &Manager{
		tabs:    make(map[string]*Tab),
		store:   s,
		machine: version.NewMachine(s),
		cache:   cache,
		logger:  nopLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OpenDraft creates a tab for a brand-new unsaved draft.
func (m *Manager) OpenDraft(displayName string, graphType graph.GraphType, channel graph.Channel) *Tab {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := version.NewDraft(displayName, graphType, channel)
	tab := &Tab{id: rec.DraftID, record: rec}
	tab.hist.push(cloneSnapshot(nil, nil))
	m.tabs[tab.id] = tab
	m.logger.Debug("opened draft tab %s", tab.id)
	return tab
}

// OpenTab opens (or returns) the tab for an existing graph id. The cache
// mirror, when present and non-empty, takes precedence over the
// server-fetched snapshot: local edits win.
func (m *Manager) OpenTab(ctx context.Context, id string) (*Tab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tab, ok := m.tabs[id]; ok {
		return tab, nil
	}

	rec, err := m.store.GetGraph(ctx, id)
	cached, hasCache := m.cache.Load(id)
	hasCache = hasCache && len(cached.Nodes) > 0
	if err != nil {
		// Only a definitive miss means "never-saved draft known to the
		// local mirror". Transient store failures surface; masking them
		// would fabricate a second identity for an existing graph.
		if !errors.Is(err, store.ErrGraphNotFound) || !hasCache {
			return nil, err
		}
		rec = &graph.GraphRecord{
			DraftID: id,
			Version: version.InitialVersion,
			Status:  graph.StatusDraft,
		}
	} else if hasCache {
		// Stale mirror entries that match the server head carry no edits;
		// drop them so the tab opens clean.
		local := graph.ContentHash(cached.Nodes, cached.Edges, rec.StateSchemaID, rec.TriggerIDs)
		head := graph.ContentHash(rec.Nodes, rec.Edges, rec.StateSchemaID, rec.TriggerIDs)
		hasCache = local != head
	}

	tab := &Tab{id: id, record: rec, nodes: rec.Nodes, edges: rec.Edges}
	if hasCache {
		tab.nodes = cached.Nodes
		tab.edges = cached.Edges
		// Local edits diverge from the server head until saved.
		tab.hasUnsavedChanges = true
		m.logger.Info("tab %s restored from local cache, shadowing server snapshot", id)
	}
	tab.hist.push(cloneSnapshot(tab.nodes, tab.edges))
	m.tabs[id] = tab
	return tab, nil
}

// Tab returns an open tab by id.
func (m *Manager) Tab(id string) (*Tab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tab, ok := m.tabs[id]
	if !ok {
		return nil, ErrTabNotFound
	}
	return tab, nil
}

// SetGraph replaces a tab's nodes and edges. Readonly nodes (converted
// from execution format) may change configuration but not disappear;
// removing one is a structural edit and is rejected. The mutation marks
// the tab dirty, appends history and refreshes the cache mirror.
func (m *Manager) SetGraph(id string, nodes []graph.Node, edges []graph.Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tab, ok := m.tabs[id]
	if !ok {
		return ErrTabNotFound
	}

	incoming := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		incoming[n.ID] = struct{}{}
	}
	for _, n := range tab.nodes {
		if !n.Readonly {
			continue
		}
		if _, kept := incoming[n.ID]; !kept {
			return ErrReadonlyNode.Clone().
				WithMetadata(map[string]any{"node_id": n.ID})
		}
	}

	tab.nodes = append([]graph.Node(nil), nodes...)
	tab.edges = append([]graph.Edge(nil), edges...)
	m.recordEdit(tab)
	return nil
}

// SetMetadata updates display name and description. Metadata edits dirty
// the tab and append a history entry like any other mutation.
func (m *Manager) SetMetadata(id, displayName, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tab, ok := m.tabs[id]
	if !ok {
		return ErrTabNotFound
	}
	tab.record.DisplayName = displayName
	tab.record.Description = description
	m.recordEdit(tab)
	return nil
}

// SetBindings updates the schema/trigger bindings of the record.
func (m *Manager) SetBindings(id, stateSchemaID string, triggerIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tab, ok := m.tabs[id]
	if !ok {
		return ErrTabNotFound
	}
	tab.record.StateSchemaID = stateSchemaID
	tab.record.TriggerIDs = append([]string(nil), triggerIDs...)
	m.recordEdit(tab)
	return nil
}

// recordEdit is the single clean→dirty transition point. Mutations that
// re-materialize history (undo/redo) pass through restoring and are not
// recorded again.
func (m *Manager) recordEdit(tab *Tab) {
	tab.hasUnsavedChanges = true
	tab.editGen++
	if !tab.restoring {
		tab.hist.push(cloneSnapshot(tab.nodes, tab.edges))
	}
	m.cache.Store(tab.id, store.CachedEdits{Nodes: tab.nodes, Edges: tab.edges})
}

// Undo steps the tab back one history entry. It never records history
// itself; only the cursor and the materialized state change. No-op at
// the start of history.
func (m *Manager) Undo(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tab, ok := m.tabs[id]
	if !ok {
		return ErrTabNotFound
	}
	snap, moved := tab.hist.undo()
	if !moved {
		return nil
	}
	m.restore(tab, snap)
	return nil
}

// Redo is the inverse of Undo. No-op at the end of history.
func (m *Manager) Redo(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tab, ok := m.tabs[id]
	if !ok {
		return ErrTabNotFound
	}
	snap, moved := tab.hist.redo()
	if !moved {
		return nil
	}
	m.restore(tab, snap)
	return nil
}

func (m *Manager) restore(tab *Tab, snap HistorySnapshot) {
	tab.restoring = true
	tab.nodes = append([]graph.Node(nil), snap.Nodes...)
	tab.edges = append([]graph.Edge(nil), snap.Edges...)
	tab.hasUnsavedChanges = true
	tab.editGen++
	m.cache.Store(tab.id, store.CachedEdits{Nodes: tab.nodes, Edges: tab.edges})
	tab.restoring = false
}

// CloseTab closes a tab. A dirty tab is only closed when force is set;
// otherwise ErrTabDirty is returned so the caller can confirm with the
// user. The cache mirror is left intact either way: it outlives the tab.
func (m *Manager) CloseTab(id string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tab, ok := m.tabs[id]
	if !ok {
		return ErrTabNotFound
	}
	if tab.hasUnsavedChanges && !force {
		return ErrTabDirty
	}
	delete(m.tabs, id)
	return nil
}

// Save validates and persists the tab's graph. One save per tab may be
// in flight; a second request is rejected rather than queued, so two
// version bumps can never race against the same canonical id. A save
// whose tab was force-closed mid-flight completes and its result is
// discarded.
func (m *Manager) Save(ctx context.Context, id string, opts version.SaveOptions) (store.SaveResult, error) {
	m.mu.Lock()
	tab, ok := m.tabs[id]
	if !ok {
		m.mu.Unlock()
		return store.SaveResult{}, ErrTabNotFound
	}
	if tab.saving {
		m.mu.Unlock()
		return store.SaveResult{}, ErrSaveInFlight
	}

	report := graph.ValidateStructure(tab.nodes, tab.edges)
	if !report.Valid {
		opts.Diagnostics = report.Errors
	}

	tab.saving = true
	rec := tab.record
	rec.Nodes = append([]graph.Node(nil), tab.nodes...)
	rec.Edges = append([]graph.Edge(nil), tab.edges...)
	m.mu.Unlock()

	res, err := m.machine.Save(ctx, rec, opts)

	m.mu.Lock()
	defer m.mu.Unlock()
	current, stillOpen := m.tabs[id]
	if stillOpen && current == tab {
		tab.saving = false
		if err == nil {
			tab.hasUnsavedChanges = false
			m.cache.Store(tab.id, store.CachedEdits{Nodes: tab.nodes, Edges: tab.edges})
		}
	} else if err == nil {
		m.logger.Info("save for closed tab %s completed, result discarded", id)
	}
	return res, err
}

// Deploy targets an existing version snapshot. Preconditions (clean tab,
// canonical record, no overlapping deploy) are rejected synchronously
// before any store call.
func (m *Manager) Deploy(ctx context.Context, id, versionID string) error {
	m.mu.Lock()
	tab, ok := m.tabs[id]
	if !ok {
		m.mu.Unlock()
		return ErrTabNotFound
	}
	if tab.deploying {
		m.mu.Unlock()
		return ErrDeployInFlight
	}
	if tab.hasUnsavedChanges {
		m.mu.Unlock()
		return version.ErrDeployDirty
	}
	tab.deploying = true
	rec := tab.record
	m.mu.Unlock()

	err := m.machine.Deploy(ctx, rec, versionID, false)

	m.mu.Lock()
	defer m.mu.Unlock()
	if current, stillOpen := m.tabs[id]; stillOpen && current == tab {
		tab.deploying = false
	}
	return err
}

// LoadVersion materializes a historical snapshot into the tab. The tab
// becomes dirty even though no edit occurred: viewing an old version is
// itself a pending change relative to the canonical head.
func (m *Manager) LoadVersion(ctx context.Context, id, versionID string) error {
	m.mu.Lock()
	tab, ok := m.tabs[id]
	if !ok {
		m.mu.Unlock()
		return ErrTabNotFound
	}
	recordID := tab.record.ActiveID()
	m.mu.Unlock()

	snap, err := m.store.GetVersion(ctx, recordID, versionID)
	if err != nil {
		return err
	}
	var rec graph.GraphRecord
	if err := json.Unmarshal(snap.SerializedGraph, &rec); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, stillOpen := m.tabs[id]; !stillOpen {
		return ErrTabNotFound
	}
	tab.nodes = rec.Nodes
	tab.edges = rec.Edges
	m.recordEdit(tab)
	return nil
}
