package graph

import (
	"strings"
	"time"
)

// NodeKind is the closed set of visual node categories.
type NodeKind string

const (
	KindEntryPoint NodeKind = "entry_point"
	KindProcess    NodeKind = "process"
	KindDecision   NodeKind = "decision"
	KindToolCall   NodeKind = "tool_call"
	KindHuman      NodeKind = "human"
	KindEnd        NodeKind = "end"
)

// Valid reports whether the kind is a member of the closed set.
func (k NodeKind) Valid() bool {
	switch k {
	case KindEntryPoint, KindProcess, KindDecision, KindToolCall, KindHuman, KindEnd:
		return true
	}
	return false
}

// Position is a canvas coordinate pair.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is a visual-format graph node.
type Node struct {
	ID             string   `json:"id" yaml:"id"`
	Kind           NodeKind `json:"kind" yaml:"kind"`
	Label          string   `json:"label" yaml:"label"`
	Description    string   `json:"description,omitempty" yaml:"description,omitempty"`
	HandlerRef     string   `json:"handler_ref,omitempty" yaml:"handler_ref,omitempty"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
	Position       Position `json:"position" yaml:"position"`
	Readonly       bool     `json:"readonly,omitempty" yaml:"readonly,omitempty"`
}

// Edge connects two nodes. Self-loops are allowed; decision nodes may loop.
type Edge struct {
	ID       string `json:"id" yaml:"id"`
	Source   string `json:"source" yaml:"source"`
	Target   string `json:"target" yaml:"target"`
	Animated bool   `json:"animated,omitempty" yaml:"animated,omitempty"`
}

// ExecutionNode is the flat runtime representation: handler plus next pointers,
// no layout information.
type ExecutionNode struct {
	ID             string   `json:"id" yaml:"id"`
	Handler        string   `json:"handler" yaml:"handler"`
	Next           []string `json:"next,omitempty" yaml:"next,omitempty"`
	Description    string   `json:"description,omitempty" yaml:"description,omitempty"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
}

// FieldType enumerates state-field value types.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldInt     FieldType = "int"
	FieldFloat   FieldType = "float"
	FieldBool    FieldType = "bool"
	FieldList    FieldType = "list"
	FieldDict    FieldType = "dict"
	FieldJSON    FieldType = "json"
	FieldMessage FieldType = "message"
	FieldCustom  FieldType = "custom"
)

// ReducerKind enumerates how concurrent writes to a state field merge.
type ReducerKind string

const (
	ReducerAdd     ReducerKind = "add"
	ReducerReplace ReducerKind = "replace"
	ReducerMerge   ReducerKind = "merge"
	ReducerSum     ReducerKind = "sum"
	ReducerMax     ReducerKind = "max"
	ReducerMin     ReducerKind = "min"
	ReducerCustom  ReducerKind = "custom"
)

// StateField declares one field of an agent state schema.
type StateField struct {
	ID           string      `json:"id" yaml:"id"`
	Name         string      `json:"name" yaml:"name"`
	Type         FieldType   `json:"type" yaml:"type"`
	Reducer      ReducerKind `json:"reducer" yaml:"reducer"`
	Description  string      `json:"description,omitempty" yaml:"description,omitempty"`
	DefaultValue any         `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	Required     bool        `json:"required,omitempty" yaml:"required,omitempty"`
	Sensitive    bool        `json:"sensitive,omitempty" yaml:"sensitive,omitempty"`
}

// StateSchema is a named, versioned collection of state fields.
type StateSchema struct {
	ID           string         `json:"id" yaml:"id"`
	Name         string         `json:"name" yaml:"name"`
	Version      string         `json:"version" yaml:"version"`
	Fields       []StateField   `json:"fields" yaml:"fields"`
	InitialState map[string]any `json:"initial_state,omitempty" yaml:"initial_state,omitempty"`
}

// FieldNames returns declared field names in declaration order.
func (s *StateSchema) FieldNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

// TriggerType enumerates how a trigger fires.
type TriggerType string

const (
	TriggerWebhook TriggerType = "webhook"
	TriggerEvent   TriggerType = "event"
	TriggerCron    TriggerType = "cron"
	TriggerStream  TriggerType = "stream"
	TriggerManual  TriggerType = "manual"
	TriggerCustom  TriggerType = "custom"
)

// Channel identifies the surface a trigger or graph is bound to.
type Channel string

const (
	ChannelChat   Channel = "chat"
	ChannelVoice  Channel = "voice"
	ChannelAPI    Channel = "api"
	ChannelStudio Channel = "studio"
	ChannelAny    Channel = "any"
)

// TriggerDefinition binds an external event source to a graph entry point.
type TriggerDefinition struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Type        TriggerType    `json:"type" yaml:"type"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Channel     Channel        `json:"channel,omitempty" yaml:"channel,omitempty"`
	Config      map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	IsActive    bool           `json:"is_active" yaml:"is_active"`
}

// GraphType categorizes a persisted graph.
type GraphType string

const (
	GraphUser    GraphType = "user"
	GraphChannel GraphType = "channel"
	GraphSystem  GraphType = "system"
)

// GraphStatus tracks the versioning lifecycle of a persisted graph.
type GraphStatus string

const (
	StatusDraft     GraphStatus = "draft"
	StatusCanonical GraphStatus = "canonical"
	StatusDeployed  GraphStatus = "deployed"
)

// GraphRecord is the persisted artifact. CanonicalID is empty until the
// store assigns one on first save; once set it never changes.
type GraphRecord struct {
	CanonicalID         string      `json:"canonical_id,omitempty" yaml:"canonical_id,omitempty"`
	DraftID             string      `json:"draft_id" yaml:"draft_id"`
	DisplayName         string      `json:"display_name" yaml:"display_name"`
	Description         string      `json:"description,omitempty" yaml:"description,omitempty"`
	GraphType           GraphType   `json:"graph_type" yaml:"graph_type"`
	Channel             Channel     `json:"channel,omitempty" yaml:"channel,omitempty"`
	Version             string      `json:"version" yaml:"version"`
	Status              GraphStatus `json:"status" yaml:"status"`
	Nodes               []Node      `json:"nodes" yaml:"nodes"`
	Edges               []Edge      `json:"edges" yaml:"edges"`
	StateSchemaID       string      `json:"state_schema_id,omitempty" yaml:"state_schema_id,omitempty"`
	TriggerIDs          []string    `json:"trigger_ids,omitempty" yaml:"trigger_ids,omitempty"`
	DeployedVersionID   string      `json:"deployed_version_id,omitempty" yaml:"deployed_version_id,omitempty"`
	DeployedEnvironment string      `json:"deployed_environment,omitempty" yaml:"deployed_environment,omitempty"`
}

// ActiveID returns the canonical id when assigned, else the draft id.
func (r *GraphRecord) ActiveID() string {
	if r.CanonicalID != "" {
		return r.CanonicalID
	}
	return r.DraftID
}

// IsDraft reports whether the record has not yet been promoted.
func (r *GraphRecord) IsDraft() bool {
	return r.CanonicalID == ""
}

// VersionSnapshot is the immutable, append-only unit of deployment.
type VersionSnapshot struct {
	VersionID       string    `json:"version_id" yaml:"version_id"`
	GraphRecordID   string    `json:"graph_record_id" yaml:"graph_record_id"`
	VersionLabel    string    `json:"version_label" yaml:"version_label"`
	CreatedBy       string    `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
	SerializedGraph []byte    `json:"serialized_graph" yaml:"serialized_graph"`
}

// Terminal sentinels used by execution-format next lists.
const (
	SentinelEnd    = "END"
	SentinelDunder = "__end__"
)

// IsTerminalRef reports whether an execution next-reference is a terminal
// marker rather than a node id.
func IsTerminalRef(ref string) bool {
	switch strings.TrimSpace(ref) {
	case SentinelEnd, SentinelDunder:
		return true
	}
	return false
}
