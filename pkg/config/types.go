// Package config loads engine configuration from layered sources: built-in
// defaults, an optional YAML file, and environment variables. The
// configuration surface is narrow, covering workflow settings and the
// three on-disk store directories, not LLM/RAG/server configuration,
// which belong to other collaborators outside this engine.
package config

import (
	"github.com/orchestr8/engine/pkg/checkpoint"
	"github.com/orchestr8/engine/pkg/workflow"
)

// EngineConfig is the top-level settings object for an orchestrator
// process.
type EngineConfig struct {
	LogLevel string `koanf:"log_level"`

	CheckpointDir string `koanf:"checkpoint_dir"`
	ActivityDir   string `koanf:"activity_dir"`
	AuditDir      string `koanf:"audit_dir"`

	MaxCheckpoints int `koanf:"max_checkpoints"`
	RetentionDays  int `koanf:"retention_days"`

	Workflow workflow.Settings `koanf:"workflow"`
}

// Default mirrors workflow.DefaultSettings and checkpoint.Config's own
// SetDefaults, so a zero-configuration process behaves identically to
// one that loaded an empty file.
func Default() EngineConfig {
	return EngineConfig{
		LogLevel:       "info",
		CheckpointDir:  "./data/checkpoints",
		ActivityDir:    "./data/activity",
		AuditDir:       "./data/audit",
		MaxCheckpoints: 50,
		RetentionDays:  30,
		Workflow:       workflow.DefaultSettings(),
	}
}

// CheckpointConfig adapts the loaded settings into checkpoint.Config.
func (c EngineConfig) CheckpointConfig() checkpoint.Config {
	cc := checkpoint.Config{
		BaseDir:        c.CheckpointDir,
		MaxCheckpoints: c.MaxCheckpoints,
		RetentionDays:  c.RetentionDays,
	}
	cc.SetDefaults()
	return cc
}
