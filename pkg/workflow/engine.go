package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orchestr8/engine/internal/orcherr"
	"github.com/orchestr8/engine/pkg/activity"
	"github.com/orchestr8/engine/pkg/agentregistry"
	"github.com/orchestr8/engine/pkg/audit"
	"github.com/orchestr8/engine/pkg/checkpoint"
	"github.com/orchestr8/engine/pkg/decision"
	"github.com/orchestr8/engine/pkg/schema"
)

// run holds everything the engine needs to resume a workflow between
// calls: the evolving task, its pending approval (if paused), the
// per-agent snapshot used for checkpointing, and the identity under
// which it executes.
type run struct {
	mu sync.Mutex

	task       *schema.Task
	settings   Settings
	auth       agentregistry.Auth
	snapshot   schema.WorkflowSnapshot
	agents     map[schema.AgentID]schema.AgentSnapshot
	outputs    []schema.AgentOutput
	pending    *ApprovalRequest
	checkpoints *checkpoint.Manager
	retryCount int
}

// Engine drives the workflow state machine: it decides
// the next step via the decision engine, dispatches through the
// router, checkpoints after every significant transition, and emits
// activity and audit events along the way.
type Engine struct {
	decisions *decision.Engine
	router    *agentregistry.Router
	activity  *activity.Manager
	audit     *audit.Log
	provider  decision.Provider

	checkpointCfg checkpoint.Config

	mu    sync.Mutex
	runs  map[string]*run
}

// NewEngine wires the workflow engine's collaborators. provider is used
// only for task classification and may be nil; classification then
// falls back to conservative defaults. Decision reasoning uses the
// provider the decision engine was built with.
func NewEngine(decisions *decision.Engine, router *agentregistry.Router, activityMgr *activity.Manager, auditLog *audit.Log, provider decision.Provider, checkpointCfg checkpoint.Config) *Engine {
	checkpointCfg.SetDefaults()
	return &Engine{
		decisions:     decisions,
		router:        router,
		activity:      activityMgr,
		audit:         auditLog,
		provider:      provider,
		checkpointCfg: checkpointCfg,
		runs:          make(map[string]*run),
	}
}

// Start begins a new workflow run: classifies the prompt, then drives
// the loop until a terminal or paused state.
func (e *Engine) Start(ctx context.Context, req StartRequest) (Result, error) {
	req.Settings.Coerce()

	workflowID := fmt.Sprintf("task-%s", uuid.NewString())
	now := time.Now().UTC()
	task := &schema.Task{
		ID:        workflowID,
		TenantID:  req.TenantID,
		ProjectID: req.ProjectID,
		Prompt:    req.Prompt,
		Phase:     schema.PhaseAnalyzing,
		CreatedAt: now,
		UpdatedAt: now,
	}

	cls, err := e.analyze(ctx, req.Prompt)
	if err != nil {
		e.logAudit(workflowID, "analyze", schema.AuditOutcomeFailure, req.TenantID, err)
	}
	task.Classification = cls

	cpStore, err := checkpoint.NewStore(e.checkpointCfg, workflowID)
	if err != nil {
		return Result{}, orcherr.InvariantViolation("workflow", "Start", "failed to create checkpoint store", err)
	}

	r := &run{
		task:     task,
		settings: req.Settings,
		auth: agentregistry.Auth{
			TenantID:  req.TenantID,
			UserID:    req.ProjectID, // no separate user identity on StartRequest; project acts as the caller of record
			SessionID: workflowID,
		},
		snapshot:    schema.WorkflowSnapshot{CurrentState: schema.PhaseAnalyzing},
		agents:      make(map[schema.AgentID]schema.AgentSnapshot),
		checkpoints: checkpoint.NewManager(cpStore, nil),
	}

	e.mu.Lock()
	e.runs[workflowID] = r
	e.mu.Unlock()

	e.emit(workflowID, "", schema.EventWorkflowStart, schema.SeverityInfo, "workflow started", nil)
	e.logAudit(workflowID, "workflow_start", schema.AuditOutcomeSuccess, req.TenantID, nil)

	return e.drive(ctx, r)
}

// Resume restores a workflow from its most recent (or a named)
// checkpoint and continues the loop.
func (e *Engine) Resume(ctx context.Context, workflowID string, auth agentregistry.Auth, settings Settings, checkpointID string) (Result, error) {
	e.mu.Lock()
	r, ok := e.runs[workflowID]
	e.mu.Unlock()

	if !ok {
		restored, err := e.restoreFromCheckpoint(workflowID, auth, settings, checkpointID)
		if err != nil {
			return Result{}, err
		}
		r = restored
		e.mu.Lock()
		e.runs[workflowID] = r
		e.mu.Unlock()
	}

	r.mu.Lock()
	r.pending = nil
	r.mu.Unlock()

	e.emit(workflowID, "", schema.EventWorkflowStart, schema.SeverityInfo, "workflow resumed", nil)
	return e.drive(ctx, r)
}

func (e *Engine) restoreFromCheckpoint(workflowID string, auth agentregistry.Auth, settings Settings, checkpointID string) (*run, error) {
	settings.Coerce()
	cpStore, err := checkpoint.NewStore(e.checkpointCfg, workflowID)
	if err != nil {
		return nil, orcherr.InvariantViolation("workflow", "Resume", "failed to open checkpoint store", err)
	}

	var cp *schema.Checkpoint
	if checkpointID != "" {
		cp, err = cpStore.GetCheckpoint(checkpointID)
	} else {
		cp, err = cpStore.GetLatestCheckpoint()
	}
	if err != nil {
		return nil, orcherr.NotFound("workflow", "Resume", "no checkpoint available for "+workflowID, err)
	}
	if !cp.Recovery.CanResume {
		return nil, orcherr.InvariantViolation("workflow", "Resume", "checkpoint is not resumable: "+joinBlockers(cp.Recovery.Blockers), nil)
	}

	task := &schema.Task{
		ID:        workflowID,
		TenantID:  auth.TenantID,
		Prompt:    cp.Context.TaskDescription,
		Phase:     cp.Recovery.ResumeFromState,
		UpdatedAt: time.Now().UTC(),
	}
	agents := make(map[schema.AgentID]schema.AgentSnapshot, len(cp.Agents))
	for _, a := range cp.Agents {
		snap := a
		if a.Agent == cp.Recovery.ResumeFromAgent && a.Status == "running" {
			// the prior attempt is discarded; it re-executes from scratch
			snap.Status = "pending"
			snap.Attempts = a.Attempts
		} else if a.Status == "completed" {
			task.CompletedAgents = append(task.CompletedAgents, a.Agent)
		}
		agents[a.Agent] = snap
	}

	return &run{
		task:        task,
		settings:    settings,
		auth:        auth,
		snapshot:    cp.Workflow,
		agents:      agents,
		checkpoints: checkpoint.NewManager(cpStore, nil),
	}, nil
}

func joinBlockers(blockers []string) string {
	if len(blockers) == 0 {
		return "unknown"
	}
	out := blockers[0]
	for _, b := range blockers[1:] {
		out += ", " + b
	}
	return out
}

// SubmitApproval resumes a paused workflow with the external response.
// A rejection re-routes to the originating agent with the feedback
// attached to its next request.
func (e *Engine) SubmitApproval(ctx context.Context, workflowID string, resp ApprovalResponse) (Result, error) {
	e.mu.Lock()
	r, ok := e.runs[workflowID]
	e.mu.Unlock()
	if !ok {
		return Result{}, orcherr.NotFound("workflow", "SubmitApproval", "no active workflow: "+workflowID, nil)
	}

	r.mu.Lock()
	if r.pending == nil {
		r.mu.Unlock()
		return Result{}, orcherr.InvariantViolation("workflow", "SubmitApproval", "workflow is not awaiting approval", nil)
	}
	originatingAgent := r.pending.AgentID
	r.pending = nil
	r.task.Phase = schema.PhaseBuilding
	if !resp.Approved {
		r.outputs = append(r.outputs, schema.AgentOutput{
			Agent:   originatingAgent,
			Success: false,
			Result:  resp.Feedback,
			Hints:   schema.RoutingHints{NeedsApproval: false},
		})
	}
	r.mu.Unlock()

	e.emit(workflowID, originatingAgent, schema.EventUserApproval, schema.SeverityInfo, "approval response received", map[string]any{
		"approved": resp.Approved,
	})

	if !resp.Approved && originatingAgent != "" {
		if err := e.routeAndAdvance(ctx, r, decision.RoutingDecision{Action: decision.ActionRoute, NextAgent: originatingAgent}); err != nil {
			return Result{}, err
		}
	}

	return e.drive(ctx, r)
}

// Cancel moves a workflow to failed with reason "cancelled by user".
// An in-flight agent call (if any) is allowed to finish; its output is
// recorded but not acted upon, since Cancel only flips state and does
// not interrupt drive's in-progress router call.
func (e *Engine) Cancel(workflowID string) error {
	e.mu.Lock()
	r, ok := e.runs[workflowID]
	e.mu.Unlock()
	if !ok {
		return orcherr.NotFound("workflow", "Cancel", "no active workflow: "+workflowID, nil)
	}

	r.mu.Lock()
	r.task.Phase = schema.PhaseFailed
	outcome := schema.OutcomeAborted
	r.task.Outcome = &outcome
	r.mu.Unlock()

	e.emit(workflowID, "", schema.EventWorkflowError, schema.SeverityWarning, "cancelled by user", nil)
	e.logAudit(workflowID, "workflow_cancel", schema.AuditOutcomeSuccess, r.task.TenantID, nil)
	return nil
}

// drive runs the top-level loop until a terminal state, a pause, or
// maxIterations is exceeded.
func (e *Engine) drive(ctx context.Context, r *run) (Result, error) {
	for {
		r.mu.Lock()
		task := r.task
		done := task.Phase.Terminal()
		exceeded := task.IterationCount >= r.settings.MaxIterations
		r.mu.Unlock()

		if done {
			return Result{Task: task, Done: true}, nil
		}
		if exceeded {
			r.mu.Lock()
			task.Phase = schema.PhaseFailed
			outcome := schema.OutcomeFailed
			task.Outcome = &outcome
			r.mu.Unlock()
			e.emit(task.ID, "", schema.EventWorkflowError, schema.SeverityError, "max iterations exceeded", nil)
			e.checkpointNow(r, schema.TriggerStateTransition)
			return Result{Task: task, Done: true}, nil
		}

		result, shouldReturn, err := e.step(ctx, r)
		if err != nil {
			return Result{}, err
		}
		if shouldReturn {
			return result, nil
		}
	}
}

// step executes exactly one loop iteration: decide, then act on the
// decision.
func (e *Engine) step(ctx context.Context, r *run) (Result, bool, error) {
	r.mu.Lock()
	task := r.task
	dc := decision.DecisionContext{
		Classification:  task.Classification,
		Phase:           task.Phase,
		HasFailures:     r.retryCount > 0,
		FailureCount:    r.retryCount,
		NeedsApproval:   len(r.outputs) > 0 && r.outputs[len(r.outputs)-1].Hints.NeedsApproval,
		SecurityConcern: lastOutputHadSecurityError(r.outputs),
		CompletedAgents: task.CompletedAgents,
	}
	previousOutputs := append([]schema.AgentOutput(nil), r.outputs...)
	task.IterationCount++
	task.UpdatedAt = time.Now().UTC()
	r.mu.Unlock()

	rd, err := e.decisions.Decide(ctx, dc)
	if err != nil {
		return Result{}, false, orcherr.UpstreamError("workflow", "step", "decision engine failed", err)
	}

	switch rd.Action {
	case decision.ActionComplete:
		return e.terminalize(r, schema.PhaseComplete, schema.OutcomeSuccess, schema.EventWorkflowComplete, "workflow complete"), true, nil

	case decision.ActionAbort:
		return e.terminalize(r, schema.PhaseFailed, schema.OutcomeFailed, schema.EventWorkflowError, rd.Reason), true, nil

	case decision.ActionEscalate:
		r.mu.Lock()
		r.task.Phase = schema.PhasePaused
		r.mu.Unlock()
		e.emit(task.ID, "", schema.EventWorkflowError, schema.SeverityWarning, "escalated: "+rd.Reason, nil)
		e.checkpointNow(r, schema.TriggerStateTransition)
		return Result{Task: r.task}, true, nil

	case decision.ActionPause:
		originator := originatingAgent(previousOutputs)
		approval := &ApprovalRequest{
			WorkflowID: task.ID,
			AgentID:    originator,
			Payload:    approvalPayload(previousOutputs),
			CreatedAt:  time.Now().UTC(),
		}
		r.mu.Lock()
		r.task.Phase = schema.PhasePaused
		r.pending = approval
		r.mu.Unlock()
		e.emit(task.ID, originator, schema.EventUserApproval, schema.SeverityInfo, "awaiting approval", nil)
		e.checkpointNow(r, schema.TriggerStateTransition)
		return Result{Task: r.task, ApprovalRequest: approval}, true, nil

	default: // ActionRoute
		if err := e.routeAndAdvance(ctx, r, rd); err != nil {
			return Result{}, false, err
		}
		return Result{}, false, nil
	}
}

func (e *Engine) routeAndAdvance(ctx context.Context, r *run, d decision.RoutingDecision) error {
	r.mu.Lock()
	task := r.task
	auth := r.auth
	previousOutputs := append([]schema.AgentOutput(nil), r.outputs...)
	r.mu.Unlock()

	e.emit(task.ID, d.NextAgent, schema.EventAgentStart, schema.SeverityInfo, "agent started", nil)
	start := time.Now()

	output, execErr := e.router.Execute(ctx, agentregistry.Decision{NextAgent: d.NextAgent}, task.ProjectID, task, auth, previousOutputs, nil)

	r.mu.Lock()
	defer r.mu.Unlock()

	snap := schema.AgentSnapshot{Agent: d.NextAgent}
	if execErr != nil || !output.Success {
		r.retryCount++
		snap.Status = "failed"
		snap.Attempts = r.agents[d.NextAgent].Attempts + 1
		e.emit(task.ID, d.NextAgent, schema.EventWorkflowError, schema.SeverityError, "agent execution failed", map[string]any{"error": errString(execErr)})

		fa := decision.AnalyzeFailure(output, decision.DecisionContext{FailureCount: r.retryCount})
		if fa.Strategy == decision.StrategyAbort {
			task.Phase = schema.PhaseFailed
			outcome := schema.OutcomeFailed
			task.Outcome = &outcome
		}
	} else {
		r.retryCount = 0
		task.CompletedAgents = append(task.CompletedAgents, d.NextAgent)
		r.outputs = append(r.outputs, output)
		snap.Status = "completed"
		snap.Attempts = r.agents[d.NextAgent].Attempts + 1
		snap.TokensUsed = output.Usage.InputTokens + output.Usage.OutputTokens
		e.emit(task.ID, d.NextAgent, schema.EventAgentComplete, schema.SeverityInfo, "agent completed", nil)

		from := task.Phase
		task.Phase = nextPhase(task)
		if task.Phase != from {
			r.snapshot.AppendHistory(schema.HistoryEntry{From: from, To: task.Phase, Timestamp: time.Now().UTC(), Reason: "advanced after " + string(d.NextAgent)})
			e.emit(task.ID, "", schema.EventProgress, schema.SeverityInfo, "phase advanced to "+string(task.Phase), nil)
		}
	}
	r.agents[d.NextAgent] = snap

	_ = time.Since(start) // execution latency is carried on output.Duration, not persisted in the snapshot

	e.checkpointNowLocked(r, schema.TriggerAgentComplete)
	return nil
}

func (e *Engine) terminalize(r *run, phase schema.Phase, outcome schema.Outcome, eventType schema.EventType, reason string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.task.Phase = phase
	r.task.Outcome = &outcome
	r.snapshot.AppendHistory(schema.HistoryEntry{From: r.snapshot.CurrentState, To: phase, Timestamp: time.Now().UTC(), Reason: reason})
	r.snapshot.CurrentState = phase

	severity := schema.SeverityInfo
	if outcome != schema.OutcomeSuccess {
		severity = schema.SeverityError
	}
	e.emit(r.task.ID, "", eventType, severity, reason, nil)
	e.logAudit(r.task.ID, "workflow_"+string(phase), auditOutcomeFor(outcome), r.task.TenantID, nil)
	e.checkpointNowLocked(r, schema.TriggerStateTransition)
	return Result{Task: r.task, Done: true}
}

func auditOutcomeFor(outcome schema.Outcome) schema.AuditOutcome {
	if outcome == schema.OutcomeSuccess {
		return schema.AuditOutcomeSuccess
	}
	return schema.AuditOutcomeFailure
}

// checkpointNow and checkpointNowLocked create a checkpoint from the
// run's current state. Called after every agent completion and at each
// phase transition.
func (e *Engine) checkpointNow(r *run, trigger schema.CheckpointTrigger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.checkpointNowLocked(r, trigger)
}

func (e *Engine) checkpointNowLocked(r *run, trigger schema.CheckpointTrigger) {
	agents := make([]schema.AgentSnapshot, 0, len(r.agents))
	for _, a := range r.agents {
		agents = append(agents, a)
	}
	r.snapshot.CurrentState = r.task.Phase

	cp := r.checkpoints.Save(trigger, checkpoint.Snapshots{
		Workflow: r.snapshot,
		Agents:   agents,
		Context:  schema.ContextSnapshot{TaskDescription: r.task.Prompt},
	})
	if cp != nil {
		e.emit(r.task.ID, "", schema.EventCheckpointSaved, schema.SeverityInfo, "checkpoint saved: "+cp.ID, nil)
	}
}

func (e *Engine) emit(workflowID string, agentID schema.AgentID, t schema.EventType, sev schema.Severity, message string, details map[string]any) {
	if e.activity == nil {
		return
	}
	e.activity.Emit(schema.ActivityEvent{
		SessionID:  workflowID,
		WorkflowID: workflowID,
		AgentID:    string(agentID),
		Type:       t,
		Severity:   sev,
		Title:      message,
		Message:    message,
		Details:    details,
	})
}

func (e *Engine) logAudit(workflowID, action string, outcome schema.AuditOutcome, tenantID string, cause error) {
	if e.audit == nil {
		return
	}
	rec := audit.Record{
		Category: "workflow",
		Action:   action,
		Severity: schema.SeverityInfo,
		Outcome:  outcome,
		Actor:    schema.Actor{Type: schema.ActorSystem, ID: "workflow-engine"},
		Target:   workflowID,
	}
	if cause != nil {
		rec.Error = &schema.AuditError{Message: cause.Error()}
	}
	_, _ = e.audit.Log(rec)
	_ = tenantID
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// nextPhase advances task.Phase after a successful agent completion.
// The decision engine's rule table only gates which agent runs within
// a phase;
// sequencing the phases themselves is the workflow engine's job
//. The progression mirrors the pipeline the rule table
// assumes: analyzing -> planning -> designing (if required) -> building
// -> testing -> reviewing.
func nextPhase(task *schema.Task) schema.Phase {
	completed := func(a schema.AgentID) bool { return task.HasCompleted(a) }
	cls := task.Classification

	switch task.Phase {
	case schema.PhaseAnalyzing:
		return schema.PhasePlanning
	case schema.PhasePlanning:
		if !completed(schema.AgentPlanner) {
			return schema.PhasePlanning
		}
		if needsDesignStage(cls, completed) {
			return schema.PhaseDesigning
		}
		return schema.PhaseBuilding
	case schema.PhaseDesigning:
		if needsDesignStage(cls, completed) {
			return schema.PhaseDesigning
		}
		return schema.PhaseBuilding
	case schema.PhaseBuilding:
		if completed(schema.AgentFrontendDev) || completed(schema.AgentBackendDev) {
			return schema.PhaseTesting
		}
		return schema.PhaseBuilding
	case schema.PhaseTesting:
		if completed(schema.AgentTester) {
			return schema.PhaseReviewing
		}
		return schema.PhaseTesting
	default:
		return task.Phase
	}
}

func needsDesignStage(cls schema.Classification, completed func(schema.AgentID) bool) bool {
	if cls.RequiresArchitecture && !completed(schema.AgentArchitect) {
		return true
	}
	if cls.RequiresDesign && !completed(schema.AgentUIDesigner) {
		return true
	}
	return false
}

func lastOutputHadSecurityError(outputs []schema.AgentOutput) bool {
	if len(outputs) == 0 {
		return false
	}
	last := outputs[len(outputs)-1]
	return last.Error != nil && last.Error.Code == schema.ErrorCodeSecurityViolation
}

// originatingAgent is whichever agent's output last signaled
// NeedsApproval: the agent an approval response routes back to on
// rejection.
func originatingAgent(outputs []schema.AgentOutput) schema.AgentID {
	for i := len(outputs) - 1; i >= 0; i-- {
		if outputs[i].Hints.NeedsApproval {
			return outputs[i].Agent
		}
	}
	if len(outputs) == 0 {
		return ""
	}
	return outputs[len(outputs)-1].Agent
}

func approvalPayload(outputs []schema.AgentOutput) map[string]any {
	if len(outputs) == 0 {
		return nil
	}
	last := outputs[len(outputs)-1]
	return map[string]any{
		"agent":  last.Agent,
		"result": last.Result,
		"hints":  last.Hints,
	}
}

