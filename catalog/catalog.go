// Package catalog manages the shared state-schema and trigger
// definitions graphs bind to. The catalogs are read-mostly and global to
// the session; trigger configs are validated per type before they are
// accepted.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"

	"github.com/goliatone/go-agent-studio/graph"
	"github.com/goliatone/go-agent-studio/store"
	"github.com/goliatone/go-agent-studio/version"
)

const (
	ErrCodeSchemaInvalid  = "CATALOG_SCHEMA_INVALID"
	ErrCodeTriggerInvalid = "CATALOG_TRIGGER_INVALID"
	ErrCodeNotFound       = "CATALOG_NOT_FOUND"
)

var (
	// ErrSchemaInvalid reports a state schema failing catalog constraints.
	ErrSchemaInvalid = apperrors.New("invalid state schema", apperrors.CategoryValidation).
			WithTextCode(ErrCodeSchemaInvalid)

	// ErrTriggerInvalid reports a trigger definition failing validation.
	ErrTriggerInvalid = apperrors.New("invalid trigger definition", apperrors.CategoryValidation).
				WithTextCode(ErrCodeTriggerInvalid)

	// ErrNotFound reports a lookup miss.
	ErrNotFound = apperrors.New("catalog entry not found", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeNotFound)
)

// Catalog holds schemas and triggers in memory, keyed by id.
type Catalog struct {
	mu       sync.RWMutex
	schemas  map[string]graph.StateSchema
	triggers map[string]graph.TriggerDefinition
}

// New builds an empty catalog.
func New() *Catalog {
	return &Catalog{
		schemas:  make(map[string]graph.StateSchema),
		triggers: make(map[string]graph.TriggerDefinition),
	}
}

// ListSchemas returns schemas sorted by name.
func (c *Catalog) ListSchemas() []graph.StateSchema {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]graph.StateSchema, 0, len(c.schemas))
	for _, s := range c.schemas {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SaveSchema validates and upserts a schema, assigning an id if missing.
func (c *Catalog) SaveSchema(schema graph.StateSchema) (graph.StateSchema, error) {
	if err := ValidateSchema(&schema); err != nil {
		return graph.StateSchema{}, err
	}
	if schema.ID == "" {
		schema.ID = uuid.New().String()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schemas[schema.ID] = schema
	return schema, nil
}

// GetSchema looks a schema up by id.
func (c *Catalog) GetSchema(id string) (*graph.StateSchema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schemas[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

// DeleteSchema removes a schema.
func (c *Catalog) DeleteSchema(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.schemas[id]; !ok {
		return ErrNotFound
	}
	delete(c.schemas, id)
	return nil
}

// ListTriggers returns triggers sorted by name.
func (c *Catalog) ListTriggers() []graph.TriggerDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]graph.TriggerDefinition, 0, len(c.triggers))
	for _, t := range c.triggers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SaveTrigger validates and upserts a trigger definition.
func (c *Catalog) SaveTrigger(trig graph.TriggerDefinition) (graph.TriggerDefinition, error) {
	if err := ValidateTrigger(&trig); err != nil {
		return graph.TriggerDefinition{}, err
	}
	if trig.ID == "" {
		trig.ID = uuid.New().String()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.triggers[trig.ID] = trig
	return trig, nil
}

// GetTrigger looks a trigger up by id.
func (c *Catalog) GetTrigger(id string) (*graph.TriggerDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.triggers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

// DeleteTrigger removes a trigger definition.
func (c *Catalog) DeleteTrigger(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.triggers[id]; !ok {
		return ErrNotFound
	}
	delete(c.triggers, id)
	return nil
}

// ResolveTriggers maps trigger ids to definitions, skipping unknown ids.
func (c *Catalog) ResolveTriggers(ids []string) []graph.TriggerDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]graph.TriggerDefinition, 0, len(ids))
	for _, id := range ids {
		if t, ok := c.triggers[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// AssignTriggers binds catalog triggers to a persisted graph record.
// Unknown trigger ids are rejected before the record is touched. The
// optional entry node id, when set, must name a node in the record.
// The binding is a regular save: it goes through the version machine,
// bumps the patch and appends a snapshot.
func (c *Catalog) AssignTriggers(ctx context.Context, s store.Store, targetID string, triggerIDs []string, entryNodeID string) error {
	c.mu.RLock()
	for _, id := range triggerIDs {
		if _, ok := c.triggers[id]; !ok {
			c.mu.RUnlock()
			return ErrNotFound.Clone().WithMetadata(map[string]any{"trigger_id": id})
		}
	}
	c.mu.RUnlock()

	rec, err := s.GetGraph(ctx, targetID)
	if err != nil {
		return err
	}
	if entryNodeID != "" {
		found := false
		for _, n := range rec.Nodes {
			if n.ID == entryNodeID {
				found = true
				break
			}
		}
		if !found {
			return ErrTriggerInvalid.Clone().
				WithMetadata(map[string]any{"entry_node_id": entryNodeID})
		}
	}
	rec.TriggerIDs = append([]string(nil), triggerIDs...)
	_, err = version.NewMachine(s).Save(ctx, rec, version.SaveOptions{})
	return err
}

// ValidateSchema enforces catalog-level schema constraints: a name,
// unique field names and a parseable semver-ish version.
func ValidateSchema(schema *graph.StateSchema) error {
	if strings.TrimSpace(schema.Name) == "" {
		return schemaErr("schema requires a name")
	}
	seen := make(map[string]struct{}, len(schema.Fields))
	for _, f := range schema.Fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return schemaErr("field name cannot be empty")
		}
		if _, dup := seen[name]; dup {
			return schemaErr(fmt.Sprintf("duplicate field name %q", name))
		}
		seen[name] = struct{}{}
	}
	return nil
}

func schemaErr(msg string) error {
	return ErrSchemaInvalid.Clone().WithMetadata(map[string]any{"reason": msg})
}
