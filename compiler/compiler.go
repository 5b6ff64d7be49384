// Package compiler lowers a visual agent graph, an optional state schema
// and a set of triggers into generated procedural source text.
//
// Compilation is a pure function of its inputs: identical graphs always
// produce byte-identical output, so callers may diff or hash the emitted
// text between versions. The companion Validate re-parses emitted text
// and reports syntax and reference problems.
package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-agent-studio/graph"
)

// Input bundles everything compilation consumes.
type Input struct {
	Name        string
	Nodes       []graph.Node
	Edges       []graph.Edge
	StateSchema *graph.StateSchema
	Triggers    []graph.TriggerDefinition
}

// Compile emits agent source for a structurally valid graph. It never
// fails for such a graph; nodes without behavior get a not-implemented
// body. Callers must run graph.ValidateStructure first and not call
// Compile when it reports errors.
func Compile(in Input) (string, []string) {
	var warnings []string
	var b strings.Builder

	names := handlerNames(in.Nodes)
	order := walkOrder(in.Nodes, in.Edges)
	outgoing := outgoingEdges(in.Edges)

	fmt.Fprintf(&b, "# Agent: %s\n", in.Name)
	b.WriteString("# Generated by agent-studio; regenerated on every save.\n\n")
	b.WriteString("END = \"__end__\"\n")

	if in.StateSchema != nil {
		warnings = append(warnings, emitStateSchema(&b, in.StateSchema)...)
	}

	entry := ""
	for _, idx := range order {
		n := in.Nodes[idx]
		if n.Kind == graph.KindEntryPoint {
			entry = names[n.ID]
		}
		emitNode(&b, n, names, outgoing[n.ID])
	}

	for _, trig := range in.Triggers {
		emitTrigger(&b, trig, entry)
	}

	if entry != "" {
		fmt.Fprintf(&b, "\nENTRY_POINT = \"%s\"\n", entry)
	}
	return b.String(), warnings
}

// walkOrder is topological from the entry point where the graph is
// acyclic. Nodes left over by cycles or disconnection are appended in
// original array order, which keeps the walk stable for any input.
func walkOrder(nodes []graph.Node, edges []graph.Edge) []int {
	indexOf := make(map[string]int, len(nodes))
	for i, n := range nodes {
		indexOf[n.ID] = i
	}

	indegree := make(map[string]int, len(nodes))
	adjacency := make(map[string][]string, len(nodes))
	for _, e := range edges {
		if _, ok := indexOf[e.Source]; !ok {
			continue
		}
		if _, ok := indexOf[e.Target]; !ok {
			continue
		}
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
		indegree[e.Target]++
	}

	var queue []string
	for _, n := range nodes {
		if indegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	visited := make(map[string]bool, len(nodes))
	order := make([]int, 0, len(nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		order = append(order, indexOf[id])
		for _, next := range adjacency[id] {
			indegree[next]--
			if indegree[next] == 0 && !visited[next] {
				queue = append(queue, next)
			}
		}
	}

	// Cycle members never reach indegree zero; fall back to array order.
	for i, n := range nodes {
		if !visited[n.ID] {
			order = append(order, i)
		}
	}
	return order
}

func outgoingEdges(edges []graph.Edge) map[string][]graph.Edge {
	out := make(map[string][]graph.Edge, len(edges))
	for _, e := range edges {
		out[e.Source] = append(out[e.Source], e)
	}
	return out
}

func emitNode(b *strings.Builder, n graph.Node, names map[string]string, outgoing []graph.Edge) {
	name := names[n.ID]
	fmt.Fprintf(b, "\ndef %s(state):\n", name)
	doc := n.Label
	if doc == "" {
		doc = n.ID
	}
	if n.Description != "" {
		doc += ": " + n.Description
	}
	fmt.Fprintf(b, "    \"\"\"%s\"\"\"\n", strings.ReplaceAll(doc, `"""`, `'''`))

	if n.HandlerRef != "" && n.HandlerRef != n.ID {
		fmt.Fprintf(b, "    state = invoke(\"%s\", state)\n", n.HandlerRef)
	} else {
		b.WriteString("    raise NotImplementedError  # handler body pending\n")
	}

	switch {
	case len(outgoing) == 0:
		b.WriteString("    return END\n")
	case n.Kind == graph.KindDecision:
		fmt.Fprintf(b, "    outcome = state.get(\"__route__\")\n")
		for _, e := range outgoing {
			target := names[e.Target]
			fmt.Fprintf(b, "    if outcome == \"%s\":\n        return \"%s\"\n", target, target)
		}
		// Unmatched outcomes fall through to the first branch.
		fmt.Fprintf(b, "    return \"%s\"\n", names[outgoing[0].Target])
	default:
		fmt.Fprintf(b, "    return \"%s\"\n", names[outgoing[0].Target])
	}
}

func emitStateSchema(b *strings.Builder, schema *graph.StateSchema) []string {
	var warnings []string

	b.WriteString("\nSTATE_FIELDS = {\n")
	declared := make(map[string]bool, len(schema.Fields))
	for _, f := range schema.Fields {
		declared[f.Name] = true
		fmt.Fprintf(b, "    \"%s\": {\"type\": \"%s\", \"reducer\": \"%s\"},\n", f.Name, f.Type, f.Reducer)
	}
	b.WriteString("}\n")

	b.WriteString("\nINITIAL_STATE = {\n")
	keys := make([]string, 0, len(schema.InitialState))
	for k := range schema.InitialState {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !declared[k] {
			warnings = append(warnings, fmt.Sprintf("initial state key %q has no declared field", k))
		}
		fmt.Fprintf(b, "    \"%s\": %s,\n", k, pyLiteral(schema.InitialState[k]))
	}
	for _, f := range schema.Fields {
		if _, seeded := schema.InitialState[f.Name]; seeded {
			continue
		}
		if f.DefaultValue != nil {
			fmt.Fprintf(b, "    \"%s\": %s,\n", f.Name, pyLiteral(f.DefaultValue))
		}
	}
	b.WriteString("}\n")

	for _, f := range schema.Fields {
		emitReducer(b, f)
	}
	return warnings
}

func emitReducer(b *strings.Builder, f graph.StateField) {
	fmt.Fprintf(b, "\ndef reduce_%s(current, update):\n", sanitizeIdent(f.Name))
	switch f.Reducer {
	case graph.ReducerAdd:
		b.WriteString("    return current + update\n")
	case graph.ReducerSum:
		b.WriteString("    return (current or 0) + (update or 0)\n")
	case graph.ReducerMerge:
		b.WriteString("    merged = dict(current or {})\n")
		b.WriteString("    merged.update(update or {})\n")
		b.WriteString("    return merged\n")
	case graph.ReducerMax:
		b.WriteString("    return update if current is None else max(current, update)\n")
	case graph.ReducerMin:
		b.WriteString("    return update if current is None else min(current, update)\n")
	case graph.ReducerCustom:
		fmt.Fprintf(b, "    raise NotImplementedError  # custom reducer for %s\n", f.Name)
	default: // replace
		b.WriteString("    return update\n")
	}
}

func emitTrigger(b *strings.Builder, trig graph.TriggerDefinition, entry string) {
	channel := trig.Channel
	if channel == "" {
		channel = graph.ChannelAny
	}
	target := entry
	if target == "" {
		target = "None"
	} else {
		target = fmt.Sprintf("\"%s\"", target)
	}
	fmt.Fprintf(b, "\nregister_trigger(\"%s\", type=\"%s\", channel=\"%s\", active=%s, entry=%s, config=%s)\n",
		trig.Name, trig.Type, channel, pyBool(trig.IsActive), target, pyLiteral(trig.Config))
}

// pyLiteral renders a JSON-ish Go value as a Python literal. Map keys are
// sorted so output stays deterministic.
func pyLiteral(v any) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case bool:
		return pyBool(val)
	case string:
		return fmt.Sprintf("\"%s\"", strings.ReplaceAll(val, `"`, `\"`))
	case int, int64, float64:
		return fmt.Sprintf("%v", val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, pyLiteral(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("\"%s\": %s", k, pyLiteral(val[k])))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("\"%v\"", val)
	}
}

func pyBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

func handlerNames(nodes []graph.Node) map[string]string {
	names := make(map[string]string, len(nodes))
	used := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		name := sanitizeIdent(n.ID)
		for used[name] {
			name += "_"
		}
		used[name] = true
		names[n.ID] = name
	}
	return names
}

func sanitizeIdent(id string) string {
	var b strings.Builder
	for i, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('n')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "node"
	}
	return b.String()
}
