package graph

import "fmt"

// VisualGraph is the editor-facing conversion result.
type VisualGraph struct {
	Nodes       []Node
	Edges       []Edge
	Diagnostics []string
}

// ToVisual converts execution-format nodes into positioned nodes plus an
// explicit edge list. The mapping is deterministic: edge ids are derived
// from source, target and next-index so repeated conversion is idempotent.
// Nodes converted from execution format represent runtime-authored
// structure and are marked readonly; the editor may change their
// configuration but not their shape.
func ToVisual(execNodes []ExecutionNode, entryPointID string) VisualGraph {
	if entryPointID == "" && len(execNodes) > 0 {
		entryPointID = execNodes[0].ID
	}

	known := make(map[string]struct{}, len(execNodes))
	for _, n := range execNodes {
		known[n.ID] = struct{}{}
	}

	var out VisualGraph
	out.Nodes = make([]Node, 0, len(execNodes))
	for _, n := range execNodes {
		out.Nodes = append(out.Nodes, Node{
			ID:             n.ID,
			Kind:           Classify(n, n.ID == entryPointID),
			Label:          labelFromID(n.ID),
			Description:    n.Description,
			HandlerRef:     n.Handler,
			TimeoutSeconds: n.TimeoutSeconds,
			Readonly:       true,
		})
	}
	out.Nodes = Layout(out.Nodes)

	for _, n := range execNodes {
		for idx, next := range n.Next {
			if IsTerminalRef(next) {
				continue
			}
			if _, ok := known[next]; !ok {
				out.Diagnostics = append(out.Diagnostics,
					fmt.Sprintf("node %q: next reference %q not found, edge dropped", n.ID, next))
				continue
			}
			out.Edges = append(out.Edges, Edge{
				ID:     fmt.Sprintf("%s-%s-%d", n.ID, next, idx),
				Source: n.ID,
				Target: next,
			})
		}
	}
	return out
}

// ToExecution converts a visual graph back into flat execution nodes.
// Next lists follow edge order; a node with no outgoing edges is terminal
// and carries no next pointers.
func ToExecution(nodes []Node, edges []Edge) []ExecutionNode {
	nextByNode := make(map[string][]string, len(nodes))
	for _, e := range edges {
		nextByNode[e.Source] = append(nextByNode[e.Source], e.Target)
	}

	out := make([]ExecutionNode, 0, len(nodes))
	for _, n := range nodes {
		handler := n.HandlerRef
		if handler == "" {
			handler = n.ID
		}
		out = append(out, ExecutionNode{
			ID:             n.ID,
			Handler:        handler,
			Next:           nextByNode[n.ID],
			Description:    n.Description,
			TimeoutSeconds: n.TimeoutSeconds,
		})
	}
	return out
}

func labelFromID(id string) string {
	label := make([]rune, 0, len(id))
	upperNext := true
	for _, r := range id {
		if r == '_' || r == '-' {
			label = append(label, ' ')
			upperNext = true
			continue
		}
		if upperNext && r >= 'a' && r <= 'z' {
			r = r - 'a' + 'A'
		}
		upperNext = false
		label = append(label, r)
	}
	return string(label)
}
