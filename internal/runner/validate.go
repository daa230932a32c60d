package runner

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/wardenlabs/warden/internal/action"
)

// validatePayload checks a step's payload against its JSON Schema validation
// rules. Steps without rules always pass.
func validatePayload(step action.Step) error {
	if len(step.ValidationRules) == 0 {
		return nil
	}

	schemaBytes, err := json.Marshal(step.ValidationRules)
	if err != nil {
		return fmt.Errorf("invalid validation rules: %w", err)
	}
	var schemaObj any
	if err := json.Unmarshal(schemaBytes, &schemaObj); err != nil {
		return fmt.Errorf("invalid validation rules: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaObj); err != nil {
		return fmt.Errorf("schema compile: %w", err)
	}
	sch, err := c.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("schema compile: %w", err)
	}

	// Round-trip the payload through JSON so the instance uses canonical
	// JSON types the validator understands.
	payloadBytes, err := json.Marshal(step.Payload)
	if err != nil {
		return fmt.Errorf("payload not serializable: %w", err)
	}
	var instance any
	if err := json.Unmarshal(payloadBytes, &instance); err != nil {
		return fmt.Errorf("payload not serializable: %w", err)
	}

	if err := sch.Validate(instance); err != nil {
		return fmt.Errorf("payload validation failed: %w", err)
	}
	return nil
}
