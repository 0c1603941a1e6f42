// Package checkpoint implements the append-only, hash-verified
// checkpoint store with secret redaction and retention, one JSON file
// per checkpoint.
package checkpoint

// Config configures checkpoint store behavior.
type Config struct {
	BaseDir       string
	MaxCheckpoints int
	RetentionDays int
}

// SetDefaults fills zero-valued fields with the documented defaults.
func (c *Config) SetDefaults() {
	if c.MaxCheckpoints <= 0 {
		c.MaxCheckpoints = 50
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	if c.BaseDir == "" {
		c.BaseDir = "./checkpoints"
	}
}
