package graph

import "strings"

// Marker substrings checked against a node's id and handler reference.
// Rule order matters: termination before the generic process fallback so
// words that merely contain "end" elsewhere do not misclassify, and
// decision before tool so a "tool_decision" node lands on decision.
var (
	humanMarkers    = []string{"human", "ask_user", "user_input", "interrupt"}
	endMarkers      = []string{"__end__", "end", "finish", "terminate", "done"}
	decisionMarkers = []string{"decision", "classify", "route", "branch", "condition", "switch"}
	toolMarkers     = []string{"tool", "call_api", "fetch", "lookup", "search"}
)

// Classify assigns a visual kind from handler/id heuristics. The entry
// point identity overrides every heuristic. First match wins.
func Classify(node ExecutionNode, isEntryPoint bool) NodeKind {
	if isEntryPoint {
		return KindEntryPoint
	}
	haystack := strings.ToLower(node.ID + " " + node.Handler)
	switch {
	case containsAny(haystack, humanMarkers):
		return KindHuman
	case containsAny(haystack, endMarkers):
		return KindEnd
	case containsAny(haystack, decisionMarkers):
		return KindDecision
	case containsAny(haystack, toolMarkers):
		return KindToolCall
	}
	return KindProcess
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
