package session

import (
	"github.com/goliatone/go-agent-studio/compiler"
	"github.com/goliatone/go-agent-studio/graph"
)

// Preview is one compiled-code preview result, tagged with the edit
// generation it was built from so stale results can be detected.
type Preview struct {
	Code        string
	Valid       bool
	Diagnostics []string
	Generation  uint64
}

// BuildPreview compiles the tab's current graph. Structural validation
// runs first and short-circuits compilation when it fails; compiling a
// structurally invalid graph is never attempted. Callers that schedule
// previews asynchronously (debounced) pass the result back through
// CommitPreview, which rejects results superseded by newer edits.
func (m *Manager) BuildPreview(id string, schema *graph.StateSchema, triggers []graph.TriggerDefinition) (Preview, error) {
	m.mu.Lock()
	tab, ok := m.tabs[id]
	if !ok {
		m.mu.Unlock()
		return Preview{}, ErrTabNotFound
	}
	gen := tab.editGen
	name := tab.record.DisplayName
	nodes := append([]graph.Node(nil), tab.nodes...)
	edges := append([]graph.Edge(nil), tab.edges...)
	m.mu.Unlock()

	preview := Preview{Generation: gen}

	report := graph.ValidateStructure(nodes, edges)
	if !report.Valid {
		preview.Diagnostics = report.Errors
		return preview, nil
	}

	code, warnings := compiler.Compile(compiler.Input{
		Name:        name,
		Nodes:       nodes,
		Edges:       edges,
		StateSchema: schema,
		Triggers:    triggers,
	})
	textReport := compiler.Validate(code)

	preview.Code = code
	preview.Valid = textReport.Valid
	preview.Diagnostics = append(warnings, textReport.Errors...)
	return preview, nil
}

// CommitPreview reports whether the preview is still current for the
// tab. A newer edit supersedes any in-flight compilation; the stale
// result must be dropped, keeping the previous good output on screen.
func (m *Manager) CommitPreview(id string, p Preview) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	tab, ok := m.tabs[id]
	if !ok {
		return false
	}
	return p.Generation == tab.editGen
}
