package session

import "github.com/goliatone/go-agent-studio/graph"

// HistoryCapacity bounds per-tab undo history. Oldest entries are
// evicted first once the ring is full.
const HistoryCapacity = 50

// HistorySnapshot is one materializable edit state.
type HistorySnapshot struct {
	Nodes []graph.Node
	Edges []graph.Edge
}

// history is a fixed-capacity ring of snapshots with a cursor. The bound
// is structural: the backing array never grows, so the capacity invariant
// cannot drift no matter how entries are pushed.
type history struct {
	buf   [HistoryCapacity]HistorySnapshot
	start int // ring offset of the logically-first entry
	count int // live entries
	index int // cursor into the logical sequence, 0-based
}

func (h *history) at(logical int) HistorySnapshot {
	return h.buf[(h.start+logical)%HistoryCapacity]
}

// push appends a snapshot after the cursor, discarding any redo tail,
// and evicts the oldest entry when full.
func (h *history) push(snap HistorySnapshot) {
	if h.count > 0 && h.index < h.count-1 {
		h.count = h.index + 1
	}
	if h.count == HistoryCapacity {
		h.start = (h.start + 1) % HistoryCapacity
		h.count--
	}
	h.buf[(h.start+h.count)%HistoryCapacity] = snap
	h.count++
	h.index = h.count - 1
}

// undo moves the cursor back and returns that snapshot. It is a no-op at
// the start of history.
func (h *history) undo() (HistorySnapshot, bool) {
	if h.index <= 0 {
		return HistorySnapshot{}, false
	}
	h.index--
	return h.at(h.index), true
}

// redo moves the cursor forward. No-op at the end of history.
func (h *history) redo() (HistorySnapshot, bool) {
	if h.index >= h.count-1 {
		return HistorySnapshot{}, false
	}
	h.index++
	return h.at(h.index), true
}

func (h *history) len() int { return h.count }

func cloneSnapshot(nodes []graph.Node, edges []graph.Edge) HistorySnapshot {
	snap := HistorySnapshot{
		Nodes: make([]graph.Node, len(nodes)),
		Edges: make([]graph.Edge, len(edges)),
	}
	copy(snap.Nodes, nodes)
	copy(snap.Edges, edges)
	return snap
}
