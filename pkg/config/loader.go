package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/mapstructure"
)

// EnvPrefix is stripped from ORCH_-prefixed environment variables
// before they're merged over the file layer: environment variables have
// the final say and override whatever the file sets.
const EnvPrefix = "ORCH_"

// Load layers built-in defaults, an optional YAML file at path (skipped
// entirely if path is ""), a .env file in the working directory (best
// effort, ignored if absent), and ORCH_-prefixed environment variables,
// in that order, each layer overriding the previous one.
func Load(path string) (EngineConfig, error) {
	_ = godotenv.Load() // optional; local dev convenience only

	k := koanf.New(".")

	defaults := Default()
	if err := k.Load(confmap.Provider(structToMap(defaults), "."), nil); err != nil {
		return EngineConfig{}, fmt.Errorf("config: load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return EngineConfig{}, fmt.Errorf("config: load file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envTransform), nil); err != nil {
		return EngineConfig{}, fmt.Errorf("config: load env: %w", err)
	}

	var cfg EngineConfig
	decoderConfig := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			TagName:          "koanf",
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, decoderConfig); err != nil {
		return EngineConfig{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Workflow.Coerce()
	return cfg, nil
}

// envTransform converts ORCH_CHECKPOINT_DIR into checkpoint_dir
// (matching the top-level koanf tags) and ORCH_WORKFLOW_MAXITERATIONS
// into workflow.maxiterations (matching the nested Settings fields,
// decoded case-insensitively). Only the "workflow" prefix nests; every
// other top-level key is a flat snake_case match against EngineConfig's
// own koanf tags.
func envTransform(key, value string) (string, any) {
	stripped := strings.ToLower(key[len(EnvPrefix):])
	if rest, ok := strings.CutPrefix(stripped, "workflow_"); ok {
		return "workflow." + rest, value
	}
	return stripped, value
}

// structToMap round-trips cfg through mapstructure to a plain map so it
// can seed koanf as the lowest-precedence layer, reusing the same
// "koanf" tag every other layer decodes against.
func structToMap(cfg EngineConfig) map[string]any {
	var out map[string]any
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &out,
		TagName: "koanf",
	})
	if err != nil {
		return map[string]any{}
	}
	if err := dec.Decode(cfg); err != nil {
		return map[string]any{}
	}
	return out
}
