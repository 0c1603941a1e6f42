package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/orchestr8/engine/pkg/config"
)

// ConfigCmd groups configuration-related subcommands.
type ConfigCmd struct {
	Schema ConfigSchemaCmd `cmd:"" help:"Print the JSON Schema for the engine config file."`
}

// ConfigSchemaCmd generates a JSON Schema from config.EngineConfig, so
// an embedder can validate an engine.yaml file against a real schema
// before startup.
type ConfigSchemaCmd struct {
	Compact bool `short:"c" help:"Compact JSON output (no indentation)."`
}

func (c *ConfigSchemaCmd) Run(app *appContext) error {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&config.EngineConfig{})
	schema.ID = "https://orchestr8.dev/schemas/engine-config.json"
	schema.Title = "Orchestration Engine Configuration"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	enc := json.NewEncoder(os.Stdout)
	if !c.Compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(schema); err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	return nil
}
