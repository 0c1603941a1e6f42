package agentregistry

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/orchestr8/engine/internal/orcherr"
	ctxmgr "github.com/orchestr8/engine/pkg/context"
	"github.com/orchestr8/engine/pkg/schema"
)

// Decision is the minimal shape the Router needs from a routing
// decision: which agent to dispatch to. pkg/decision.RoutingDecision
// converts to it with ToAgentDecision.
type Decision struct {
	NextAgent schema.AgentID
}

// Constraints are merged with package defaults when building a request.
type Constraints map[string]any

// Router validates auth, resolves an agent, curates its context, and
// builds/executes AgentRequests.
type Router struct {
	registry *Registry
	ctxMgr   *ctxmgr.Manager
	logger   *slog.Logger
}

// NewRouter creates a Router over registry and context manager.
func NewRouter(registry *Registry, ctxMgr *ctxmgr.Manager, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{registry: registry, ctxMgr: ctxMgr, logger: logger}
}

// ValidateAuth requires a non-empty tenantId/userId/sessionId and an
// expiresAt (if present) that is not in the past.
func ValidateAuth(auth Auth, now time.Time) error {
	if auth.TenantID == "" || auth.UserID == "" || auth.SessionID == "" {
		return orcherr.SecurityViolation("agentregistry", "ValidateAuth", "tenantId, userId, and sessionId are required", nil)
	}
	if auth.ExpiresAt != nil && now.Unix() > *auth.ExpiresAt {
		return orcherr.SecurityViolation("agentregistry", "ValidateAuth", "auth token expired", nil)
	}
	return nil
}

// Route builds an AgentRequest for decision.NextAgent without executing
// it.
func (r *Router) Route(ctx context.Context, decision Decision, projectID string, task *schema.Task, auth Auth, previousOutputs []schema.AgentOutput, constraints Constraints) (AgentRequest, error) {
	if err := ValidateAuth(auth, time.Now()); err != nil {
		return AgentRequest{}, err
	}

	meta, ok := r.registry.Metadata(decision.NextAgent)
	if !ok {
		return AgentRequest{}, orcherr.NotFound("agentregistry", "Route", "agent not found: "+string(decision.NextAgent), nil)
	}

	curated, err := r.ctxMgr.CurateContext(ctx, ctxmgr.AgentMeta{
		AgentID:      string(decision.NextAgent),
		Requirements: meta.RequiredContext,
	}, ctxmgr.Auth{TenantID: auth.TenantID, UserID: auth.UserID, SessionID: auth.SessionID}, projectID, task.Prompt)
	if err != nil {
		return AgentRequest{}, err
	}
	for _, missing := range curated.MissingRequired {
		r.logger.Warn("missing required context", "agent", decision.NextAgent, "type", missing)
	}

	merged := mergeConstraints(defaultConstraints(), constraints)

	return AgentRequest{
		ExecutionID: uuid.NewString(),
		Task:        task,
		Context: RequestContext{
			Curated:         curated,
			TenantID:        auth.TenantID,
			PreviousOutputs: previousOutputs,
			Constraints:     merged,
			Auth:            auth,
		},
	}, nil
}

// Execute performs Route followed by agent execution, then verifies
// artifact paths do not leak another tenant's data.
func (r *Router) Execute(ctx context.Context, decision Decision, projectID string, task *schema.Task, auth Auth, previousOutputs []schema.AgentOutput, constraints Constraints) (schema.AgentOutput, error) {
	req, err := r.Route(ctx, decision, projectID, task, auth, previousOutputs, constraints)
	if err != nil {
		return schema.AgentOutput{}, err
	}

	agent, err := r.registry.GetAgent(decision.NextAgent)
	if err != nil {
		return schema.AgentOutput{}, err
	}

	start := time.Now()
	output, err := agent.Execute(ctx, req)
	r.registry.RecordExecution(decision.NextAgent, err == nil && output.Success, time.Now())
	if err != nil {
		return schema.AgentOutput{}, orcherr.UpstreamError("agentregistry", "Execute", "agent execution failed", err)
	}
	output.Duration = time.Since(start)

	if err := verifyTenantIsolation(output, auth.TenantID); err != nil {
		return schema.AgentOutput{}, err
	}

	return output, nil
}

// ExecuteParallel validates auth once, then dispatches every decision
// concurrently, all sharing the same tenant.
func (r *Router) ExecuteParallel(ctx context.Context, decisions []Decision, projectID string, task *schema.Task, auth Auth, previousOutputs []schema.AgentOutput, constraints Constraints) ([]schema.AgentOutput, error) {
	if err := ValidateAuth(auth, time.Now()); err != nil {
		return nil, err
	}

	results := make([]schema.AgentOutput, len(decisions))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, d := range decisions {
		i, d := i, d
		eg.Go(func() error {
			out, err := r.Execute(egCtx, d, projectID, task, auth, previousOutputs, constraints)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func defaultConstraints() Constraints {
	return Constraints{}
}

func mergeConstraints(base, override Constraints) map[string]any {
	merged := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// verifyTenantIsolation enforces the universal invariant:
// every artifact path either contains the tenant id or contains no
// tenant reference at all.
func verifyTenantIsolation(output schema.AgentOutput, tenantID string) error {
	for _, a := range output.Artifacts {
		if looksLikeOtherTenant(a.Path, tenantID) {
			return orcherr.SecurityViolation("agentregistry", "verifyTenantIsolation",
				"artifact path references another tenant: "+a.Path, nil)
		}
	}
	return nil
}

// looksLikeOtherTenant is a conservative heuristic: a path that embeds a
// "tenant-<id>" segment not matching tenantID is treated as
// cross-tenant.
func looksLikeOtherTenant(path, tenantID string) bool {
	const marker = "tenant-"
	idx := strings.Index(path, marker)
	if idx < 0 {
		return false
	}
	rest := path[idx+len(marker):]
	end := strings.IndexAny(rest, "/\\")
	if end >= 0 {
		rest = rest[:end]
	}
	return rest != tenantID
}
