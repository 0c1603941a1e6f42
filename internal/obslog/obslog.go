// Package obslog provides a slog wrapper with consistent structured fields
// for orchestration components.
package obslog

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

const enginePackagePrefix = "github.com/orchestr8/engine"

// ParseLevel converts a string log level to slog.Level. Unknown values
// fall back to warn so a typo in configuration degrades quietly rather
// than going silent.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, nil
	}
}

// thirdPartyFilter drops every record below the configured level. It
// applies that one level to all records and does not tell records
// emitted by dependencies apart from the engine's own.
type thirdPartyFilter struct {
	handler  slog.Handler
	minLevel slog.Level
}

func (h *thirdPartyFilter) Enabled(ctx context.Context, level slog.Level) bool {
	if level < h.minLevel {
		return false
	}
	return h.handler.Enabled(ctx, level)
}

func (h *thirdPartyFilter) Handle(ctx context.Context, r slog.Record) error {
	return h.handler.Handle(ctx, r)
}

func (h *thirdPartyFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &thirdPartyFilter{handler: h.handler.WithAttrs(attrs), minLevel: h.minLevel}
}

func (h *thirdPartyFilter) WithGroup(name string) slog.Handler {
	return &thirdPartyFilter{handler: h.handler.WithGroup(name), minLevel: h.minLevel}
}

// New builds the process-wide logger at the given level, writing JSON to
// stderr. Call New once at process start; components should otherwise
// accept a *slog.Logger rather than reaching for a global.
func New(level slog.Level) *slog.Logger {
	base := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(&thirdPartyFilter{handler: base, minLevel: level})
}

// WithTask returns a logger annotated with a task id.
func WithTask(l *slog.Logger, taskID string) *slog.Logger {
	return l.With("task_id", taskID)
}

// WithWorkflow returns a logger annotated with a workflow id.
func WithWorkflow(l *slog.Logger, workflowID string) *slog.Logger {
	return l.With("workflow_id", workflowID)
}

// WithAgent returns a logger annotated with an agent id.
func WithAgent(l *slog.Logger, agentID string) *slog.Logger {
	return l.With("agent_id", agentID)
}

// WithTenant returns a logger annotated with a tenant id.
func WithTenant(l *slog.Logger, tenantID string) *slog.Logger {
	return l.With("tenant_id", tenantID)
}
