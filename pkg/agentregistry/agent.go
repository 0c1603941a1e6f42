// Package agentregistry implements the agent registry and execution
// router: capability lookup, lazy agent instantiation, and
// tenant-isolated dispatch.
package agentregistry

import (
	"context"

	ctxmgr "github.com/orchestr8/engine/pkg/context"
	"github.com/orchestr8/engine/pkg/schema"
)

// Capability is one (name, input types, output types) triple an agent
// declares.
type Capability struct {
	Name        string
	InputTypes  []string
	OutputTypes []string
}

// Metadata describes an agent's identity and requirements.
type Metadata struct {
	ID               schema.AgentID
	Name             string
	Capabilities     []Capability
	RequiredContext  []ctxmgr.Requirement
	OutputSchemaID   string
}

// AgentRequest is the fully-constructed request passed to Agent.Execute.
type AgentRequest struct {
	ExecutionID string
	Task        *schema.Task
	Context     RequestContext
}

// RequestContext bundles curated context with identity and history for
// one agent execution.
type RequestContext struct {
	Curated          *ctxmgr.CuratedContext
	TenantID         string
	PreviousOutputs  []schema.AgentOutput
	Constraints      map[string]any
	Auth             Auth
}

// Auth carries the identity validated by Router.Route before dispatch.
type Auth struct {
	TenantID  string
	UserID    string
	SessionID string
	ExpiresAt *int64 // unix seconds, nil = no expiry
}

// Agent is a polymorphic capability set: metadata describes the agent,
// Execute performs one run against a fully-built request.
type Agent interface {
	Metadata() Metadata
	Execute(ctx context.Context, req AgentRequest) (schema.AgentOutput, error)
}
