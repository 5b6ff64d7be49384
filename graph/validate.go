package graph

import (
	"fmt"
	"sort"
)

// StructuralReport lists graph-shape problems independent of generated
// code correctness. An empty Errors slice means the graph may be compiled.
type StructuralReport struct {
	Valid       bool
	Errors      []string
	Unreachable []string
}

// ValidateStructure checks entry-point cardinality, edge endpoints and
// reachability from the entry point. It never inspects generated code;
// callers must run it before compilation and short-circuit on failure.
func ValidateStructure(nodes []Node, edges []Edge) StructuralReport {
	report := StructuralReport{Valid: true}

	index := make(map[string]struct{}, len(nodes))
	var entries []string
	for _, n := range nodes {
		index[n.ID] = struct{}{}
		if n.Kind == KindEntryPoint {
			entries = append(entries, n.ID)
		}
	}

	switch len(entries) {
	case 0:
		report.fail("graph has no entry point")
	case 1:
	default:
		report.fail(fmt.Sprintf("graph has %d entry points: %v", len(entries), entries))
	}

	adjacency := make(map[string][]string, len(nodes))
	for _, e := range edges {
		if _, ok := index[e.Source]; !ok {
			report.fail(fmt.Sprintf("edge %q references missing source node %q", e.ID, e.Source))
			continue
		}
		if _, ok := index[e.Target]; !ok {
			report.fail(fmt.Sprintf("edge %q references missing target node %q", e.ID, e.Target))
			continue
		}
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
	}

	if len(entries) == 1 {
		seen := make(map[string]struct{}, len(nodes))
		stack := []string{entries[0]}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			stack = append(stack, adjacency[id]...)
		}
		for _, n := range nodes {
			if _, ok := seen[n.ID]; !ok {
				report.Unreachable = append(report.Unreachable, n.ID)
			}
		}
		sort.Strings(report.Unreachable)
		for _, id := range report.Unreachable {
			report.fail(fmt.Sprintf("node %q is unreachable from the entry point", id))
		}
	}

	return report
}

func (r *StructuralReport) fail(msg string) {
	r.Valid = false
	r.Errors = append(r.Errors, msg)
}
