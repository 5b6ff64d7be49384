// Package version governs graph identity and version lifecycle: a local
// draft is promoted to a store-assigned canonical id on first save, every
// save appends an immutable snapshot with a monotonically bumped patch
// version, and deploys point the record at an existing snapshot.
package version

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/goliatone/go-agent-studio/graph"
	"github.com/goliatone/go-agent-studio/store"
)

// InitialVersion is assigned on the first successful save of a draft.
const InitialVersion = "0.0.1"

// DefaultEnvironment is targeted when a deploy names no environment.
const DefaultEnvironment = "production"

// DeployOptions tunes a deploy transition.
type DeployOptions struct {
	// Environment names the target runtime environment.
	Environment string
	// Commit false validates the target snapshot without moving the
	// deployed pointer.
	Commit bool
}

// Deployer pushes a version snapshot to a runtime environment.
type Deployer interface {
	Deploy(ctx context.Context, graphID, versionID string, opts DeployOptions) error
}

// storeDeployer is the default Deployer: the store itself tracks the
// deployed pointer. Uncommitted deploys only verify the snapshot exists.
type storeDeployer struct {
	store store.Store
}

func (d storeDeployer) Deploy(ctx context.Context, graphID, versionID string, opts DeployOptions) error {
	if !opts.Commit {
		_, err := d.store.GetVersion(ctx, graphID, versionID)
		return err
	}
	return d.store.DeployVersion(ctx, graphID, versionID)
}

// Machine applies lifecycle transitions against the persistence
// collaborator. It holds no per-graph state; records carry their own.
type Machine struct {
	store    store.Store
	deployer Deployer
}

// MachineOption customizes the machine.
type MachineOption func(*Machine)

// WithDeployer replaces the store-backed default deployer.
func WithDeployer(d Deployer) MachineOption {
	return func(m *Machine) {
		if d != nil {
			m.deployer = d
		}
	}
}

// NewMachine wires the state machine to its store.
func NewMachine(s store.Store, opts ...MachineOption) *Machine {
	m := &Machine{store: s, deployer: storeDeployer{store: s}}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SaveOptions tunes a save transition.
type SaveOptions struct {
	// ExplicitVersion skips the automatic patch bump and is used verbatim,
	// e.g. by the rename/save-as-metadata path.
	ExplicitVersion string
	// Diagnostics from structural validation. A non-empty list rejects
	// the save; callers decide whether to re-validate or force nothing.
	Diagnostics []string
}

// NewDraft creates an unsaved draft record with a locally-unique id.
func NewDraft(displayName string, graphType graph.GraphType, channel graph.Channel) *graph.GraphRecord {
	return &graph.GraphRecord{
		DraftID:     "draft-" + uuid.New().String(),
		DisplayName: displayName,
		GraphType:   graphType,
		Channel:     channel,
		Version:     InitialVersion,
		Status:      graph.StatusDraft,
	}
}

// Save commits a record. Drafts are promoted: the store allocates the
// canonical id and the machine adopts it, one-way. Canonical records get
// their patch component bumped by exactly one unless an explicit version
// is supplied. The store appends a VersionSnapshot on every save.
func (m *Machine) Save(ctx context.Context, rec *graph.GraphRecord, opts SaveOptions) (store.SaveResult, error) {
	if len(opts.Diagnostics) > 0 {
		return store.SaveResult{}, ErrInvalidGraph.Clone().
			WithMetadata(map[string]any{"diagnostics": opts.Diagnostics})
	}

	var next string
	switch {
	case opts.ExplicitVersion != "":
		if _, _, _, err := parseSemver(opts.ExplicitVersion); err != nil {
			return store.SaveResult{}, err
		}
		next = opts.ExplicitVersion
	case rec.IsDraft():
		next = InitialVersion
	default:
		bumped, err := BumpPatch(rec.Version)
		if err != nil {
			return store.SaveResult{}, err
		}
		next = bumped
	}

	// The snapshot must carry the candidate version, but a failed save
	// must not: a retry bumps from the last committed version, not from
	// the attempt.
	prev := rec.Version
	rec.Version = next

	hadCanonical := rec.CanonicalID
	res, err := m.store.SaveGraph(ctx, rec)
	if err != nil {
		rec.Version = prev
		return store.SaveResult{}, err
	}
	if hadCanonical != "" && res.ID != hadCanonical {
		return store.SaveResult{}, ErrCanonicalChanged.Clone().
			WithMetadata(map[string]any{"expected": hadCanonical, "got": res.ID})
	}

	rec.CanonicalID = res.ID
	if rec.Status == graph.StatusDraft {
		rec.Status = graph.StatusCanonical
	}
	return res, nil
}

// Deploy commits the record to an existing snapshot in the default
// environment. See DeployTo.
func (m *Machine) Deploy(ctx context.Context, rec *graph.GraphRecord, versionID string, hasUnsavedChanges bool) error {
	return m.DeployTo(ctx, rec, versionID, hasUnsavedChanges, DeployOptions{Commit: true})
}

// DeployTo points the record at an existing snapshot. Preconditions are
// checked synchronously before the deployer is called: the editing
// session must be clean and the record must be canonical. Earlier
// snapshots survive a deploy; rollback is deploying an older snapshot
// id. An uncommitted deploy leaves the record untouched.
func (m *Machine) DeployTo(ctx context.Context, rec *graph.GraphRecord, versionID string, hasUnsavedChanges bool, opts DeployOptions) error {
	if hasUnsavedChanges {
		return ErrDeployDirty
	}
	if rec.IsDraft() {
		return ErrDeployDraft
	}
	if opts.Environment == "" {
		opts.Environment = DefaultEnvironment
	}
	if err := m.deployer.Deploy(ctx, rec.CanonicalID, versionID, opts); err != nil {
		return err
	}
	if !opts.Commit {
		return nil
	}
	rec.DeployedVersionID = versionID
	rec.DeployedEnvironment = opts.Environment
	rec.Status = graph.StatusDeployed
	return nil
}

// BumpPatch increments the patch component of a semver string by one.
func BumpPatch(version string) (string, error) {
	major, minor, patch, err := parseSemver(version)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d.%d.%d", major, minor, patch+1), nil
}

func parseSemver(version string) (major, minor, patch int, err error) {
	parts := strings.Split(strings.TrimSpace(version), ".")
	if len(parts) != 3 {
		return 0, 0, 0, ErrInvalidVersion.Clone().
			WithMetadata(map[string]any{"version": version})
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, convErr := strconv.Atoi(p)
		if convErr != nil || n < 0 {
			return 0, 0, 0, ErrInvalidVersion.Clone().
				WithMetadata(map[string]any{"version": version})
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], nil
}
