package checkpoint

import (
	"log/slog"

	"github.com/orchestr8/engine/pkg/schema"
)

// Manager orchestrates checkpointing, providing a small set of
// integration hooks the workflow engine calls at significant
// transitions.
type Manager struct {
	store  *Store
	logger *slog.Logger
}

// NewManager wraps a Store with hook helpers.
func NewManager(store *Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger}
}

// Save creates a checkpoint, logging (not returning) any failure, since
// checkpointing must never abort an otherwise-successful transition.
func (m *Manager) Save(trigger schema.CheckpointTrigger, snaps Snapshots) *schema.Checkpoint {
	cp, err := m.store.CreateCheckpoint(trigger, snaps)
	if err != nil {
		m.logger.Warn("failed to save checkpoint", "trigger", trigger, "error", err)
		return nil
	}
	return cp
}

// Latest returns the most recent checkpoint, or nil if none exists.
func (m *Manager) Latest() *schema.Checkpoint {
	cp, err := m.store.GetLatestCheckpoint()
	if err != nil {
		return nil
	}
	return cp
}

// Store exposes the underlying store for read operations (Get, List,
// Validate).
func (m *Manager) Store() *Store { return m.store }
