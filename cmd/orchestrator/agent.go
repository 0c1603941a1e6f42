package main

import (
	"context"
	"fmt"

	"github.com/orchestr8/engine/internal/redact"
	"github.com/orchestr8/engine/pkg/agentregistry"
	"github.com/orchestr8/engine/pkg/decision"
	"github.com/orchestr8/engine/pkg/schema"
)

// genericAgent executes a capability by forwarding the task prompt and
// its own role to the configured provider and returning the raw
// completion as the result. Individual agent business logic is out of
// scope;
// this is the minimal implementation of that contract the binary ships
// with so `orchestrator run` is runnable against any LLMProvider
// without bespoke per-agent code.
type genericAgent struct {
	id       schema.AgentID
	role     string
	provider decision.Provider
}

func (a *genericAgent) Metadata() agentregistry.Metadata {
	return agentregistry.Metadata{
		ID:           a.id,
		Name:         string(a.id),
		Capabilities: []agentregistry.Capability{{Name: a.role}},
	}
}

func (a *genericAgent) Execute(ctx context.Context, req agentregistry.AgentRequest) (schema.AgentOutput, error) {
	if a.provider == nil {
		return schema.AgentOutput{}, fmt.Errorf("agent %s: no provider configured", a.id)
	}

	resp, err := a.provider.Complete(ctx, decision.ProviderRequest{
		System: fmt.Sprintf("You are the %s in an AI agent orchestration pipeline. Respond with your work product for the task, nothing else.", a.role),
		Messages: []decision.ProviderMessage{
			{Role: "user", Content: req.Task.Prompt},
		},
	})
	if err != nil {
		return schema.AgentOutput{
			Agent:   a.id,
			Success: false,
			Error:   &schema.AgentError{Code: schema.ErrorCodeGeneric, Message: redact.String(err.Error())},
		}, nil
	}

	return schema.AgentOutput{
		Agent:   a.id,
		Success: true,
		Result:  resp.Content,
	}, nil
}
