package activity

import (
	"log/slog"

	"github.com/orchestr8/engine/pkg/schema"
)

// Manager wires a Stream to a FilePersistence, exposing the small set
// of convenience constructors the workflow engine uses to emit typed
// events without constructing schema.ActivityEvent by hand.
type Manager struct {
	stream *Stream
	logger *slog.Logger
}

// NewManager builds a Manager backed by a file-persisted Stream rooted
// at baseDir. Pass an empty baseDir to run memory-only (no
// persistence), useful in tests.
func NewManager(baseDir string, maxInMemory int, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var persistence Persistence
	if baseDir != "" {
		fp, err := NewFilePersistence(FilePersistenceConfig{BaseDir: baseDir})
		if err != nil {
			return nil, err
		}
		persistence = fp
	}
	return &Manager{stream: New(maxInMemory, persistence), logger: logger}, nil
}

// Stream exposes the underlying Stream for subscription and querying.
func (m *Manager) Stream() *Stream { return m.stream }

// Emit records a typed event, filling Category/Severity defaults for
// the common event types when the caller leaves them zero.
func (m *Manager) Emit(e schema.ActivityEvent) schema.ActivityEvent {
	if e.Category == "" {
		e.Category = categoryFor(e.Type)
	}
	if e.Severity == "" {
		e.Severity = schema.SeverityInfo
	}
	recorded := m.stream.Emit(e)
	m.logger.Debug("activity event emitted",
		"type", recorded.Type, "session_id", recorded.SessionID, "sequence", recorded.Sequence)
	return recorded
}

func categoryFor(t schema.EventType) schema.EventCategory {
	switch t {
	case schema.EventWorkflowStart, schema.EventWorkflowComplete, schema.EventWorkflowError:
		return schema.CategoryWorkflow
	case schema.EventAgentThinking, schema.EventAgentStart, schema.EventAgentComplete:
		return schema.CategoryAgent
	case schema.EventFileWrite:
		return schema.CategoryFile
	case schema.EventUserApproval:
		return schema.CategoryUser
	case schema.EventCheckpointSaved:
		return schema.CategorySystem
	case schema.EventProgress:
		return schema.CategoryProgress
	default:
		return schema.CategorySystem
	}
}
