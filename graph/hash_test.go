package graph

import "testing"

func TestContentHashStable(t *testing.T) {
	nodes, edges := threeNodeGraph()
	a := ContentHash(nodes, edges, "schema-1", []string{"t1"})
	b := ContentHash(nodes, edges, "schema-1", []string{"t1"})
	if a == "" || a != b {
		t.Fatalf("hash not stable: %q vs %q", a, b)
	}
}

func TestContentHashDetectsEdits(t *testing.T) {
	nodes, edges := threeNodeGraph()
	base := ContentHash(nodes, edges, "", nil)

	moved := make([]Node, len(nodes))
	copy(moved, nodes)
	moved[0].Position = Position{X: 10, Y: 10}
	if ContentHash(moved, edges, "", nil) == base {
		t.Fatalf("moving a node must change the hash")
	}

	if ContentHash(nodes, edges[:1], "", nil) == base {
		t.Fatalf("removing an edge must change the hash")
	}
	if ContentHash(nodes, edges, "schema-2", nil) == base {
		t.Fatalf("rebinding the schema must change the hash")
	}
}
