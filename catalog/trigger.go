package catalog

import (
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/robfig/cron/v3"

	"github.com/goliatone/go-agent-studio/graph"
)

// Config schemas per trigger type. Unknown keys are tolerated; required
// keys and types are not negotiable.
var triggerConfigSchemas = map[graph.TriggerType]*jsonschema.Schema{
	graph.TriggerWebhook: {
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"path":   {Type: "string", Description: "Webhook path the runtime listens on"},
			"method": {Type: "string", Description: "HTTP method, defaults to POST"},
			"secret": {Type: "string", Description: "Shared secret for signature checks"},
		},
		Required: []string{"path"},
	},
	graph.TriggerEvent: {
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"topic":  {Type: "string", Description: "Event bus topic"},
			"filter": {Type: "string", Description: "Optional payload filter expression"},
		},
		Required: []string{"topic"},
	},
	graph.TriggerStream: {
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"source":     {Type: "string", Description: "Stream source identifier"},
			"batch_size": {Type: "integer", Description: "Messages per delivery"},
		},
		Required: []string{"source"},
	},
}

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateTrigger checks a trigger definition before it enters the
// catalog: cron expressions must parse, typed configs must satisfy their
// schema, manual and custom triggers carry anything.
func ValidateTrigger(trig *graph.TriggerDefinition) error {
	if strings.TrimSpace(trig.Name) == "" {
		return triggerErr("trigger requires a name")
	}

	switch trig.Type {
	case graph.TriggerCron:
		expr, _ := trig.Config["expression"].(string)
		if expr == "" {
			return triggerErr("cron trigger requires a config.expression")
		}
		if _, err := cronParser.Parse(expr); err != nil {
			return triggerErr(fmt.Sprintf("invalid cron expression %q: %v", expr, err))
		}
	case graph.TriggerWebhook, graph.TriggerEvent, graph.TriggerStream:
		schema := triggerConfigSchemas[trig.Type]
		resolved, err := schema.Resolve(nil)
		if err != nil {
			return triggerErr(fmt.Sprintf("resolve %s config schema: %v", trig.Type, err))
		}
		if err := resolved.Validate(trig.Config); err != nil {
			return triggerErr(fmt.Sprintf("%s config: %v", trig.Type, err))
		}
	case graph.TriggerManual, graph.TriggerCustom:
		// No config constraints.
	case "":
		return triggerErr("trigger requires a type")
	default:
		return triggerErr(fmt.Sprintf("unknown trigger type %q", trig.Type))
	}
	return nil
}

func triggerErr(msg string) error {
	return ErrTriggerInvalid.Clone().WithMetadata(map[string]any{"reason": msg})
}
