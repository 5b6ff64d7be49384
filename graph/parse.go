package graph

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk authoring form of a graph: either visual
// (nodes+edges) or execution (flat nodes with next pointers). YAML and
// JSON are both accepted; yaml.v3 parses JSON as a subset.
type Document struct {
	Name        string              `json:"name" yaml:"name"`
	Description string              `json:"description,omitempty" yaml:"description,omitempty"`
	GraphType   GraphType           `json:"graph_type,omitempty" yaml:"graph_type,omitempty"`
	Channel     Channel             `json:"channel,omitempty" yaml:"channel,omitempty"`
	EntryPoint  string              `json:"entry_point,omitempty" yaml:"entry_point,omitempty"`
	Nodes       []Node              `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	Edges       []Edge              `json:"edges,omitempty" yaml:"edges,omitempty"`
	Execution   []ExecutionNode     `json:"execution,omitempty" yaml:"execution,omitempty"`
	StateSchema *StateSchema        `json:"state_schema,omitempty" yaml:"state_schema,omitempty"`
	Triggers    []TriggerDefinition `json:"triggers,omitempty" yaml:"triggers,omitempty"`
}

// ParseDocument parses a YAML or JSON graph document and normalizes it to
// visual form: execution-format documents are converted, unpositioned
// nodes are laid out.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse graph document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if len(doc.Nodes) == 0 && len(doc.Execution) > 0 {
		visual := ToVisual(doc.Execution, doc.EntryPoint)
		doc.Nodes = visual.Nodes
		doc.Edges = visual.Edges
	} else {
		doc.Nodes = Layout(doc.Nodes)
	}
	return &doc, nil
}

// Validate checks the authoring-level constraints a document must satisfy
// before conversion or compilation is attempted.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("graph document requires a name")
	}
	if len(d.Nodes) == 0 && len(d.Execution) == 0 {
		return fmt.Errorf("graph document %q has no nodes", d.Name)
	}
	if len(d.Nodes) > 0 && len(d.Execution) > 0 {
		return fmt.Errorf("graph document %q mixes visual and execution nodes", d.Name)
	}
	seen := make(map[string]struct{}, len(d.Nodes)+len(d.Execution))
	for _, n := range d.Nodes {
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("graph document %q has duplicate node id %q", d.Name, n.ID)
		}
		seen[n.ID] = struct{}{}
		if n.Kind != "" && !n.Kind.Valid() {
			return fmt.Errorf("node %q has unknown kind %q", n.ID, n.Kind)
		}
	}
	for _, n := range d.Execution {
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("graph document %q has duplicate node id %q", d.Name, n.ID)
		}
		seen[n.ID] = struct{}{}
	}
	return nil
}
