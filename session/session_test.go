package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	apperrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-agent-studio/graph"
	"github.com/goliatone/go-agent-studio/store"
	"github.com/goliatone/go-agent-studio/version"
)

func validGraph() ([]graph.Node, []graph.Edge) {
	nodes := []graph.Node{
		{ID: "start", Kind: graph.KindEntryPoint},
		{ID: "reply", Kind: graph.KindEnd},
	}
	edges := []graph.Edge{{ID: "e1", Source: "start", Target: "reply"}}
	return nodes, edges
}

func newTestManager() (*Manager, *store.MemoryStore, *MemoryCache) {
	ms := store.NewMemoryStore()
	cache := NewMemoryCache()
	return NewManager(ms, cache), ms, cache
}

func TestEditMarksDirtyAndRecordsHistory(t *testing.T) {
	m, _, _ := newTestManager()
	tab := m.OpenDraft("agent", graph.GraphUser, graph.ChannelChat)
	if tab.HasUnsavedChanges() {
		t.Fatalf("fresh draft should be clean")
	}

	nodes, edges := validGraph()
	if err := m.SetGraph(tab.ID(), nodes, edges); err != nil {
		t.Fatalf("set graph: %v", err)
	}
	if !tab.HasUnsavedChanges() {
		t.Fatalf("edit must mark the tab dirty")
	}
	if tab.HistoryLen() != 2 { // initial snapshot + edit
		t.Fatalf("expected 2 history entries, got %d", tab.HistoryLen())
	}
}

func TestHistoryBoundSixtyEdits(t *testing.T) {
	m, _, _ := newTestManager()
	tab := m.OpenDraft("agent", graph.GraphUser, graph.ChannelChat)

	for i := 0; i < 60; i++ {
		nodes := []graph.Node{{ID: fmt.Sprintf("n%d", i), Kind: graph.KindEntryPoint}}
		if err := m.SetGraph(tab.ID(), nodes, nil); err != nil {
			t.Fatalf("edit %d: %v", i, err)
		}
	}
	if tab.HistoryLen() != HistoryCapacity {
		t.Fatalf("expected exactly %d entries after 60 edits, got %d", HistoryCapacity, tab.HistoryLen())
	}
}

func TestUndoDoesNotRecordHistory(t *testing.T) {
	m, _, _ := newTestManager()
	tab := m.OpenDraft("agent", graph.GraphUser, graph.ChannelChat)
	nodes, edges := validGraph()
	if err := m.SetGraph(tab.ID(), nodes, edges); err != nil {
		t.Fatalf("set graph: %v", err)
	}

	lenBefore := tab.HistoryLen()
	idxBefore := tab.HistoryIndex()
	if err := m.Undo(tab.ID()); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if tab.HistoryLen() != lenBefore {
		t.Fatalf("undo pushed a history entry: %d -> %d", lenBefore, tab.HistoryLen())
	}
	if tab.HistoryIndex() != idxBefore-1 {
		t.Fatalf("undo did not move the cursor")
	}
	if len(tab.Nodes()) != 0 {
		t.Fatalf("undo did not re-materialize the earlier snapshot")
	}

	if err := m.Redo(tab.ID()); err != nil {
		t.Fatalf("redo: %v", err)
	}
	if len(tab.Nodes()) != 2 {
		t.Fatalf("redo did not restore the edit")
	}
	if tab.HistoryLen() != lenBefore {
		t.Fatalf("redo pushed a history entry")
	}
}

func TestUndoAtStartIsNoop(t *testing.T) {
	m, _, _ := newTestManager()
	tab := m.OpenDraft("agent", graph.GraphUser, graph.ChannelChat)
	if err := m.Undo(tab.ID()); err != nil {
		t.Fatalf("undo on pristine tab: %v", err)
	}
	if tab.HistoryIndex() != 0 {
		t.Fatalf("cursor moved on no-op undo")
	}
}

func TestCloseDirtyTabRejectedWithoutForce(t *testing.T) {
	m, _, _ := newTestManager()
	tab := m.OpenDraft("agent", graph.GraphUser, graph.ChannelChat)
	nodes, edges := validGraph()
	_ = m.SetGraph(tab.ID(), nodes, edges)

	err := m.CloseTab(tab.ID(), false)
	if !errors.Is(err, ErrTabDirty) {
		t.Fatalf("expected dirty rejection, got %v", err)
	}
	if _, err := m.Tab(tab.ID()); err != nil {
		t.Fatalf("tab should remain open after rejected close")
	}

	if err := m.CloseTab(tab.ID(), true); err != nil {
		t.Fatalf("forced close: %v", err)
	}
	if _, err := m.Tab(tab.ID()); err == nil {
		t.Fatalf("tab should be gone after forced close")
	}
}

func TestSavePromotesAndCleans(t *testing.T) {
	m, _, _ := newTestManager()
	tab := m.OpenDraft("agent", graph.GraphUser, graph.ChannelChat)
	nodes, edges := validGraph()
	_ = m.SetGraph(tab.ID(), nodes, edges)

	res, err := m.Save(context.Background(), tab.ID(), version.SaveOptions{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if res.ID == "" {
		t.Fatalf("expected canonical id from first save")
	}
	if tab.HasUnsavedChanges() {
		t.Fatalf("save must clean the tab")
	}
	if tab.Record().Version != "0.0.1" {
		t.Fatalf("unexpected version %s", tab.Record().Version)
	}

	// Second save bumps the patch.
	_ = m.SetGraph(tab.ID(), nodes, edges)
	if _, err := m.Save(context.Background(), tab.ID(), version.SaveOptions{}); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if tab.Record().Version != "0.0.2" {
		t.Fatalf("expected 0.0.2, got %s", tab.Record().Version)
	}
}

func TestSaveRejectsStructurallyInvalidGraph(t *testing.T) {
	m, ms, _ := newTestManager()
	tab := m.OpenDraft("agent", graph.GraphUser, graph.ChannelChat)
	// Two entry points.
	_ = m.SetGraph(tab.ID(), []graph.Node{
		{ID: "a", Kind: graph.KindEntryPoint},
		{ID: "b", Kind: graph.KindEntryPoint},
	}, nil)

	_, err := m.Save(context.Background(), tab.ID(), version.SaveOptions{})
	if err == nil {
		t.Fatalf("expected structural rejection")
	}
	if ms.SaveCalls != 0 {
		t.Fatalf("rejected save must not reach the store")
	}
	if !tab.HasUnsavedChanges() {
		t.Fatalf("failed save must leave the tab dirty")
	}
}

func TestDeployRejectedWhileDirtyWithoutStoreCall(t *testing.T) {
	m, ms, _ := newTestManager()
	tab := m.OpenDraft("agent", graph.GraphUser, graph.ChannelChat)
	nodes, edges := validGraph()
	_ = m.SetGraph(tab.ID(), nodes, edges)

	err := m.Deploy(context.Background(), tab.ID(), "some-version")
	if !errors.Is(err, version.ErrDeployDirty) {
		t.Fatalf("expected dirty rejection, got %v", err)
	}
	if ms.DeployCalls != 0 {
		t.Fatalf("dirty deploy must not reach the store, got %d calls", ms.DeployCalls)
	}
}

func TestDeployAfterSave(t *testing.T) {
	m, ms, _ := newTestManager()
	tab := m.OpenDraft("agent", graph.GraphUser, graph.ChannelChat)
	nodes, edges := validGraph()
	_ = m.SetGraph(tab.ID(), nodes, edges)

	ctx := context.Background()
	res, err := m.Save(ctx, tab.ID(), version.SaveOptions{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	snaps, _ := ms.ListVersions(ctx, res.ID)
	if err := m.Deploy(ctx, tab.ID(), snaps[0].VersionID); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if tab.Record().DeployedVersionID != snaps[0].VersionID {
		t.Fatalf("deploy not recorded on the tab record")
	}
}

func TestLoadVersionMarksDirty(t *testing.T) {
	m, ms, _ := newTestManager()
	tab := m.OpenDraft("agent", graph.GraphUser, graph.ChannelChat)
	nodes, edges := validGraph()
	_ = m.SetGraph(tab.ID(), nodes, edges)

	ctx := context.Background()
	res, err := m.Save(ctx, tab.ID(), version.SaveOptions{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if tab.HasUnsavedChanges() {
		t.Fatalf("tab should be clean after save")
	}

	snaps, _ := ms.ListVersions(ctx, res.ID)
	if err := m.LoadVersion(ctx, tab.ID(), snaps[0].VersionID); err != nil {
		t.Fatalf("load version: %v", err)
	}
	// Viewing an old version is a pending change relative to head.
	if !tab.HasUnsavedChanges() {
		t.Fatalf("loading a historical snapshot must dirty the tab")
	}
	if len(tab.Nodes()) != 2 {
		t.Fatalf("snapshot not materialized")
	}
}

func TestLocalCacheWinsOnReopen(t *testing.T) {
	m, ms, cache := newTestManager()
	tab := m.OpenDraft("agent", graph.GraphUser, graph.ChannelChat)
	nodes, edges := validGraph()
	_ = m.SetGraph(tab.ID(), nodes, edges)

	ctx := context.Background()
	res, err := m.Save(ctx, tab.ID(), version.SaveOptions{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	// Another session saves a newer server-side state.
	serverRec, _ := ms.GetGraph(ctx, res.ID)
	serverRec.Nodes = append(serverRec.Nodes, graph.Node{ID: "server_only", Kind: graph.KindProcess})
	serverRec.Version = "0.0.2"
	if _, err := ms.SaveGraph(ctx, serverRec); err != nil {
		t.Fatalf("server save: %v", err)
	}

	// Local mirror still holds this session's two-node graph.
	if err := m.CloseTab(tab.ID(), true); err != nil {
		t.Fatalf("close: %v", err)
	}
	cache.Store(res.ID, store.CachedEdits{Nodes: nodes, Edges: edges})

	reopened, err := m.OpenTab(ctx, res.ID)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	// Local wins: the server's third node is shadowed.
	if len(reopened.Nodes()) != 2 {
		t.Fatalf("expected cached 2-node graph to win, got %d nodes", len(reopened.Nodes()))
	}
	if !reopened.HasUnsavedChanges() {
		t.Fatalf("cache-restored tab diverges from head and must be dirty")
	}
}

func TestCacheMatchingServerHeadOpensClean(t *testing.T) {
	m, _, cache := newTestManager()
	tab := m.OpenDraft("agent", graph.GraphUser, graph.ChannelChat)
	nodes, edges := validGraph()
	_ = m.SetGraph(tab.ID(), nodes, edges)

	ctx := context.Background()
	res, err := m.Save(ctx, tab.ID(), version.SaveOptions{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := m.CloseTab(tab.ID(), true); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Mirror entry left over from before the save carries no real edits.
	cache.Store(res.ID, store.CachedEdits{Nodes: nodes, Edges: edges})

	reopened, err := m.OpenTab(ctx, res.ID)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.HasUnsavedChanges() {
		t.Fatalf("cache identical to the server head must open clean")
	}
}

// brokenStore simulates a backend whose reads fail.
type brokenStore struct {
	*store.MemoryStore
}

func (s *brokenStore) GetGraph(_ context.Context, _ string) (*graph.GraphRecord, error) {
	return nil, store.ErrIOFailure
}

func TestOpenTabSurfacesStoreErrors(t *testing.T) {
	bs := &brokenStore{MemoryStore: store.NewMemoryStore()}
	cache := NewMemoryCache()
	m := NewManager(bs, cache)

	// A stale mirror entry must not turn an IO failure into a fresh
	// draft; a later save would mint a second canonical id.
	nodes, edges := validGraph()
	cache.Store("g1", store.CachedEdits{Nodes: nodes, Edges: edges})

	_, err := m.OpenTab(context.Background(), "g1")
	if !errors.Is(err, store.ErrIOFailure) {
		t.Fatalf("expected store error surfaced, got %v", err)
	}
	if _, err := m.Tab("g1"); err == nil {
		t.Fatalf("no tab should exist after a failed open")
	}
}

func TestOpenTabDraftKnownOnlyToMirror(t *testing.T) {
	m, _, cache := newTestManager()
	nodes, edges := validGraph()
	cache.Store("draft-local", store.CachedEdits{Nodes: nodes, Edges: edges})

	tab, err := m.OpenTab(context.Background(), "draft-local")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !tab.IsDraft() || !tab.HasUnsavedChanges() {
		t.Fatalf("mirror-only graph should open as a dirty draft")
	}
	if len(tab.Nodes()) != 2 {
		t.Fatalf("cached edits not materialized")
	}
}

func TestOpenTabWithoutCacheUsesServerSnapshot(t *testing.T) {
	m, ms, _ := newTestManager()
	ctx := context.Background()

	nodes, edges := validGraph()
	rec := version.NewDraft("server agent", graph.GraphUser, graph.ChannelChat)
	rec.Nodes, rec.Edges = nodes, edges
	res, err := ms.SaveGraph(ctx, rec)
	if err != nil {
		t.Fatalf("seed save: %v", err)
	}

	tab, err := m.OpenTab(ctx, res.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(tab.Nodes()) != 2 || tab.HasUnsavedChanges() {
		t.Fatalf("server snapshot should load clean: %d nodes dirty=%v", len(tab.Nodes()), tab.HasUnsavedChanges())
	}
}

func TestReadonlyNodeCannotBeRemoved(t *testing.T) {
	m, _, _ := newTestManager()
	tab := m.OpenDraft("agent", graph.GraphUser, graph.ChannelChat)
	_ = m.SetGraph(tab.ID(), []graph.Node{
		{ID: "start", Kind: graph.KindEntryPoint, Readonly: true},
		{ID: "reply", Kind: graph.KindEnd},
	}, nil)

	err := m.SetGraph(tab.ID(), []graph.Node{{ID: "reply", Kind: graph.KindEnd}}, nil)
	if !hasCode(err, ErrCodeReadonlyNode) {
		t.Fatalf("expected readonly rejection, got %v", err)
	}

	// Configuration edits to readonly nodes are fine.
	err = m.SetGraph(tab.ID(), []graph.Node{
		{ID: "start", Kind: graph.KindEntryPoint, Readonly: true, Description: "tweaked"},
		{ID: "reply", Kind: graph.KindEnd},
	}, nil)
	if err != nil {
		t.Fatalf("config edit rejected: %v", err)
	}
}

func hasCode(err error, code string) bool {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr.TextCode == code
	}
	return false
}
