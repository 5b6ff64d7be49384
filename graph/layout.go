package graph

// Grid geometry for auto-placed nodes.
const (
	layoutOriginX     = 100.0
	layoutOriginY     = 80.0
	layoutSpacingX    = 260.0
	layoutSpacingY    = 160.0
	layoutNodesPerRow = 4
)

// Layout assigns deterministic grid positions to nodes that lack a
// position (at the origin). Nodes already positioned are left untouched,
// which makes the pass idempotent: Layout(Layout(nodes)) == Layout(nodes).
func Layout(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	copy(out, nodes)
	for i := range out {
		if out[i].Position.X != 0 || out[i].Position.Y != 0 {
			continue
		}
		row := i / layoutNodesPerRow
		col := i % layoutNodesPerRow
		out[i].Position = Position{
			X: layoutOriginX + float64(col)*layoutSpacingX,
			Y: layoutOriginY + float64(row)*layoutSpacingY,
		}
	}
	return out
}
