package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// ContentHash computes a stable hash over the editable content of a graph:
// nodes, edges, the bound schema id and trigger ids. Layout positions are
// included because moving a node is an edit worth saving. The unsaved-change
// detector compares hashes rather than deep-comparing structures.
func ContentHash(nodes []Node, edges []Edge, stateSchemaID string, triggerIDs []string) string {
	payload := struct {
		Nodes         []Node   `json:"nodes"`
		Edges         []Edge   `json:"edges"`
		StateSchemaID string   `json:"state_schema_id"`
		TriggerIDs    []string `json:"trigger_ids"`
	}{nodes, edges, stateSchemaID, triggerIDs}

	// encoding/json emits struct fields in declaration order, so identical
	// content always serializes to identical bytes.
	data, err := json.Marshal(payload)
	if err != nil {
		// Only unmarshalable values (channels, funcs) can fail here and the
		// model carries none.
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
