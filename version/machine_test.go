package version

import (
	"context"
	"errors"
	"fmt"
	"testing"

	apperrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-agent-studio/graph"
	"github.com/goliatone/go-agent-studio/store"
)

func validNodes() ([]graph.Node, []graph.Edge) {
	nodes := []graph.Node{
		{ID: "start", Kind: graph.KindEntryPoint},
		{ID: "reply", Kind: graph.KindEnd},
	}
	edges := []graph.Edge{{ID: "e1", Source: "start", Target: "reply"}}
	return nodes, edges
}

func newTestMachine() (*Machine, *store.MemoryStore) {
	ms := store.NewMemoryStore()
	return NewMachine(ms), ms
}

func TestSavePromotesDraft(t *testing.T) {
	m, _ := newTestMachine()
	rec := NewDraft("my agent", graph.GraphUser, graph.ChannelChat)
	rec.Nodes, rec.Edges = validNodes()

	if !rec.IsDraft() {
		t.Fatalf("new record should be a draft")
	}
	res, err := m.Save(context.Background(), rec, SaveOptions{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if res.ID == "" || rec.CanonicalID != res.ID {
		t.Fatalf("canonical id not adopted: %+v", res)
	}
	if rec.Version != "0.0.1" {
		t.Fatalf("first save should initialize version, got %s", rec.Version)
	}
	if rec.Status != graph.StatusCanonical {
		t.Fatalf("expected canonical status, got %s", rec.Status)
	}
}

func TestSaveVersionMonotonicity(t *testing.T) {
	m, _ := newTestMachine()
	rec := NewDraft("my agent", graph.GraphUser, graph.ChannelChat)
	rec.Nodes, rec.Edges = validNodes()

	ctx := context.Background()
	if _, err := m.Save(ctx, rec, SaveOptions{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	for i := 2; i <= 5; i++ {
		if _, err := m.Save(ctx, rec, SaveOptions{}); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
		want := fmt.Sprintf("0.0.%d", i)
		if rec.Version != want {
			t.Fatalf("save %d: version %s, want %s", i, rec.Version, want)
		}
	}
}

// flakyStore fails SaveGraph while failures is positive.
type flakyStore struct {
	*store.MemoryStore
	failures int
}

func (s *flakyStore) SaveGraph(ctx context.Context, rec *graph.GraphRecord) (store.SaveResult, error) {
	if s.failures > 0 {
		s.failures--
		return store.SaveResult{}, store.ErrIOFailure
	}
	return s.MemoryStore.SaveGraph(ctx, rec)
}

func TestFailedSaveDoesNotBurnVersion(t *testing.T) {
	fs := &flakyStore{MemoryStore: store.NewMemoryStore()}
	m := NewMachine(fs)
	rec := NewDraft("my agent", graph.GraphUser, graph.ChannelChat)
	rec.Nodes, rec.Edges = validNodes()
	ctx := context.Background()

	if _, err := m.Save(ctx, rec, SaveOptions{}); err != nil {
		t.Fatalf("save: %v", err)
	}

	fs.failures = 1
	if _, err := m.Save(ctx, rec, SaveOptions{}); err == nil {
		t.Fatalf("expected store failure")
	}
	if rec.Version != "0.0.1" {
		t.Fatalf("failed save left candidate version behind: %s", rec.Version)
	}

	// The retry bumps from the last committed version.
	if _, err := m.Save(ctx, rec, SaveOptions{}); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if rec.Version != "0.0.2" {
		t.Fatalf("retry after failed save produced %s, expected 0.0.2", rec.Version)
	}
}

func TestFailedExplicitSaveKeepsVersion(t *testing.T) {
	fs := &flakyStore{MemoryStore: store.NewMemoryStore()}
	m := NewMachine(fs)
	rec := NewDraft("my agent", graph.GraphUser, graph.ChannelChat)
	rec.Nodes, rec.Edges = validNodes()
	ctx := context.Background()

	if _, err := m.Save(ctx, rec, SaveOptions{}); err != nil {
		t.Fatalf("save: %v", err)
	}

	fs.failures = 1
	if _, err := m.Save(ctx, rec, SaveOptions{ExplicitVersion: "1.2.0"}); err == nil {
		t.Fatalf("expected store failure")
	}
	if rec.Version != "0.0.1" {
		t.Fatalf("failed explicit save mutated the record: %s", rec.Version)
	}
}

func TestSaveExplicitVersionSkipsBump(t *testing.T) {
	m, _ := newTestMachine()
	rec := NewDraft("my agent", graph.GraphUser, graph.ChannelChat)
	rec.Nodes, rec.Edges = validNodes()

	ctx := context.Background()
	if _, err := m.Save(ctx, rec, SaveOptions{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := m.Save(ctx, rec, SaveOptions{ExplicitVersion: "1.2.0"}); err != nil {
		t.Fatalf("explicit save: %v", err)
	}
	if rec.Version != "1.2.0" {
		t.Fatalf("explicit version not used verbatim: %s", rec.Version)
	}

	if _, err := m.Save(ctx, rec, SaveOptions{ExplicitVersion: "not-semver"}); err == nil {
		t.Fatalf("expected invalid semver rejection")
	}
}

func TestSaveRejectsInvalidGraph(t *testing.T) {
	m, ms := newTestMachine()
	rec := NewDraft("broken", graph.GraphUser, graph.ChannelChat)

	_, err := m.Save(context.Background(), rec, SaveOptions{
		Diagnostics: []string{"graph has no entry point"},
	})
	if err == nil {
		t.Fatalf("expected structural rejection")
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.TextCode != ErrCodeInvalidGraph {
		t.Fatalf("unexpected error: %v", err)
	}
	if ms.SaveCalls != 0 {
		t.Fatalf("rejected save must not reach the store, got %d calls", ms.SaveCalls)
	}
}

func TestDeployPreconditions(t *testing.T) {
	m, ms := newTestMachine()
	rec := NewDraft("my agent", graph.GraphUser, graph.ChannelChat)
	rec.Nodes, rec.Edges = validNodes()
	ctx := context.Background()

	// Draft cannot be deployed, and no store call is made.
	if err := m.Deploy(ctx, rec, "v1", false); !errors.Is(err, ErrDeployDraft) {
		t.Fatalf("expected draft rejection, got %v", err)
	}
	if ms.DeployCalls != 0 {
		t.Fatalf("draft deploy reached the store")
	}

	if _, err := m.Save(ctx, rec, SaveOptions{}); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Dirty session rejected before any network call.
	if err := m.Deploy(ctx, rec, "v1", true); !errors.Is(err, ErrDeployDirty) {
		t.Fatalf("expected dirty rejection, got %v", err)
	}
	if ms.DeployCalls != 0 {
		t.Fatalf("dirty deploy reached the store")
	}

	snaps, _ := ms.ListVersions(ctx, rec.CanonicalID)
	if err := m.Deploy(ctx, rec, snaps[0].VersionID, false); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if rec.DeployedVersionID != snaps[0].VersionID || rec.Status != graph.StatusDeployed {
		t.Fatalf("deploy not recorded: %+v", rec)
	}
}

func TestDeployRollback(t *testing.T) {
	m, ms := newTestMachine()
	rec := NewDraft("my agent", graph.GraphUser, graph.ChannelChat)
	rec.Nodes, rec.Edges = validNodes()
	ctx := context.Background()

	if _, err := m.Save(ctx, rec, SaveOptions{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := m.Save(ctx, rec, SaveOptions{}); err != nil {
		t.Fatalf("save: %v", err)
	}

	snaps, _ := ms.ListVersions(ctx, rec.CanonicalID)
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if err := m.Deploy(ctx, rec, snaps[1].VersionID, false); err != nil {
		t.Fatalf("deploy head: %v", err)
	}
	// Rolling back is deploying the earlier snapshot.
	if err := m.Deploy(ctx, rec, snaps[0].VersionID, false); err != nil {
		t.Fatalf("rollback deploy: %v", err)
	}
	if rec.DeployedVersionID != snaps[0].VersionID {
		t.Fatalf("rollback not recorded")
	}
}

func TestDeployToEnvironmentAndDryRun(t *testing.T) {
	m, ms := newTestMachine()
	rec := NewDraft("my agent", graph.GraphUser, graph.ChannelChat)
	rec.Nodes, rec.Edges = validNodes()
	ctx := context.Background()

	if _, err := m.Save(ctx, rec, SaveOptions{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	snaps, _ := ms.ListVersions(ctx, rec.CanonicalID)

	// Uncommitted deploy validates the snapshot but moves nothing.
	if err := m.DeployTo(ctx, rec, snaps[0].VersionID, false, DeployOptions{Environment: "staging"}); err != nil {
		t.Fatalf("dry-run deploy: %v", err)
	}
	if rec.DeployedVersionID != "" || rec.Status == graph.StatusDeployed {
		t.Fatalf("dry run moved the deployed pointer: %+v", rec)
	}
	if ms.DeployCalls != 0 {
		t.Fatalf("dry run reached DeployVersion")
	}

	// A missing snapshot is rejected even without a commit.
	err := m.DeployTo(ctx, rec, "missing", false, DeployOptions{})
	if !errors.Is(err, store.ErrVersionNotFound) {
		t.Fatalf("expected unknown snapshot rejection, got %v", err)
	}

	if err := m.DeployTo(ctx, rec, snaps[0].VersionID, false, DeployOptions{Environment: "staging", Commit: true}); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if rec.DeployedEnvironment != "staging" || rec.DeployedVersionID != snaps[0].VersionID {
		t.Fatalf("environment not recorded: %+v", rec)
	}

	// The plain Deploy path targets the default environment.
	if err := m.Deploy(ctx, rec, snaps[0].VersionID, false); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if rec.DeployedEnvironment != DefaultEnvironment {
		t.Fatalf("expected %s, got %s", DefaultEnvironment, rec.DeployedEnvironment)
	}
}

// captureDeployer records the call it receives.
type captureDeployer struct {
	graphID, versionID string
	opts               DeployOptions
}

func (d *captureDeployer) Deploy(_ context.Context, graphID, versionID string, opts DeployOptions) error {
	d.graphID, d.versionID, d.opts = graphID, versionID, opts
	return nil
}

func TestCustomDeployerReceivesOptions(t *testing.T) {
	ms := store.NewMemoryStore()
	cd := &captureDeployer{}
	m := NewMachine(ms, WithDeployer(cd))
	rec := NewDraft("my agent", graph.GraphUser, graph.ChannelChat)
	rec.Nodes, rec.Edges = validNodes()
	ctx := context.Background()

	if _, err := m.Save(ctx, rec, SaveOptions{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	snaps, _ := ms.ListVersions(ctx, rec.CanonicalID)

	if err := m.DeployTo(ctx, rec, snaps[0].VersionID, false, DeployOptions{Environment: "staging", Commit: true}); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if cd.graphID != rec.CanonicalID || cd.versionID != snaps[0].VersionID {
		t.Fatalf("deployer saw %s/%s", cd.graphID, cd.versionID)
	}
	if cd.opts.Environment != "staging" || !cd.opts.Commit {
		t.Fatalf("options not forwarded: %+v", cd.opts)
	}
}

func TestBumpPatch(t *testing.T) {
	cases := []struct {
		in, want string
		wantErr  bool
	}{
		{"0.0.1", "0.0.2", false},
		{"1.2.9", "1.2.10", false},
		{"2.0.0", "2.0.1", false},
		{"1.2", "", true},
		{"a.b.c", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := BumpPatch(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("BumpPatch(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("BumpPatch(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}
