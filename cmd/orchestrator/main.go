// Command orchestrator is the CLI front end for the agent orchestration
// engine: start and resume workflow runs, inspect checkpoints, tail the
// activity stream, and verify the audit log's hash chain.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/orchestr8/engine/pkg/activity"
	"github.com/orchestr8/engine/pkg/agentregistry"
	"github.com/orchestr8/engine/pkg/audit"
	"github.com/orchestr8/engine/pkg/checkpoint"
	"github.com/orchestr8/engine/pkg/config"
	ctxmgr "github.com/orchestr8/engine/pkg/context"
	"github.com/orchestr8/engine/pkg/decision"
	"github.com/orchestr8/engine/pkg/schema"
	"github.com/orchestr8/engine/pkg/workflow"
)

// CLI is the top-level kong command tree: a --config flag plus one
// subcommand struct per verb.
type CLI struct {
	ConfigFile string `name:"config" short:"c" help:"Path to engine config file (YAML)." type:"path"`

	Run        RunCmd        `cmd:"" help:"Start a new workflow run."`
	Resume     ResumeCmd     `cmd:"" help:"Resume a workflow from its latest (or a named) checkpoint."`
	Audit      AuditCmd      `cmd:"" help:"Audit log operations."`
	Checkpoint CheckpointCmd `cmd:"" help:"Checkpoint store operations."`
	Activity   ActivityCmd   `cmd:"" help:"Activity stream operations."`
	Config     ConfigCmd     `cmd:"" help:"Configuration operations."`
}

type AuditCmd struct {
	Verify AuditVerifyCmd `cmd:"" help:"Verify the audit log's hash chain."`
}

type CheckpointCmd struct {
	List CheckpointListCmd `cmd:"" help:"List checkpoints for a workflow."`
	Show CheckpointShowCmd `cmd:"" help:"Show one checkpoint."`
}

type ActivityCmd struct {
	Tail ActivityTailCmd `cmd:"" help:"Print the most recent activity events."`
}

type RunCmd struct {
	TenantID  string `required:"" help:"Tenant issuing this task."`
	ProjectID string `required:"" help:"Project this task belongs to."`
	Prompt    string `required:"" help:"Natural-language task description."`
}

func (c *RunCmd) Run(app *appContext) error {
	engine, err := app.workflowEngine()
	if err != nil {
		return err
	}
	result, err := engine.Start(app.ctx, workflow.StartRequest{
		TenantID:  c.TenantID,
		ProjectID: c.ProjectID,
		Prompt:    c.Prompt,
		Settings:  workflow.DefaultSettings(),
	})
	if err != nil {
		return err
	}
	return printResult(result)
}

type ResumeCmd struct {
	WorkflowID   string `required:"" help:"Workflow id to resume."`
	TenantID     string `required:"" help:"Tenant that owns the workflow."`
	CheckpointID string `help:"Checkpoint id to resume from (defaults to latest)."`
}

func (c *ResumeCmd) Run(app *appContext) error {
	engine, err := app.workflowEngine()
	if err != nil {
		return err
	}
	result, err := engine.Resume(app.ctx, c.WorkflowID, agentregistry.Auth{TenantID: c.TenantID}, workflow.DefaultSettings(), c.CheckpointID)
	if err != nil {
		return err
	}
	return printResult(result)
}

type AuditVerifyCmd struct{}

func (c *AuditVerifyCmd) Run(app *appContext) error {
	log, err := audit.Open(audit.Config{BaseDir: app.cfg.AuditDir})
	if err != nil {
		return err
	}
	result, err := log.VerifyIntegrity()
	if err != nil {
		return err
	}
	if result.Valid {
		fmt.Printf("audit log valid: %d events checked\n", result.EventsChecked)
		return nil
	}
	fmt.Printf("audit log TAMPERED at sequence %d: %s\n", *result.BrokenAt, result.Reason)
	return fmt.Errorf("audit integrity check failed")
}

type CheckpointListCmd struct {
	WorkflowID string `required:"" help:"Workflow id whose checkpoints to list."`
}

func (c *CheckpointListCmd) Run(app *appContext) error {
	store, err := checkpoint.NewStore(app.cfg.CheckpointConfig(), c.WorkflowID)
	if err != nil {
		return err
	}
	cps, err := store.ListCheckpoints()
	if err != nil {
		return err
	}
	for _, cp := range cps {
		fmt.Printf("%s\t%s\t%s\n", cp.ID, cp.Trigger, cp.Workflow.CurrentState)
	}
	return nil
}

type CheckpointShowCmd struct {
	WorkflowID   string `required:"" help:"Workflow id the checkpoint belongs to."`
	CheckpointID string `required:"" help:"Checkpoint id to show."`
}

func (c *CheckpointShowCmd) Run(app *appContext) error {
	store, err := checkpoint.NewStore(app.cfg.CheckpointConfig(), c.WorkflowID)
	if err != nil {
		return err
	}
	cp, err := store.GetCheckpoint(c.CheckpointID)
	if err != nil {
		return err
	}
	return printJSON(cp)
}

type ActivityTailCmd struct {
	N int `help:"Number of recent events to print." default:"20"`
}

func (c *ActivityTailCmd) Run(app *appContext) error {
	mgr, err := activity.NewManager(app.cfg.ActivityDir, 1000, nil)
	if err != nil {
		return err
	}
	events, err := mgr.Stream().Query(activity.QueryOptions{})
	if err != nil {
		return err
	}
	if c.N > 0 && len(events) > c.N {
		events = events[len(events)-c.N:]
	}
	for _, e := range events {
		fmt.Printf("%s\t%s\t%s\t%s\n", e.Timestamp.Format(time.RFC3339), e.Type, e.AgentID, e.Message)
	}
	return nil
}

func printResult(r workflow.Result) error {
	if r.ApprovalRequest != nil {
		fmt.Printf("paused for approval: workflow=%s agent=%s\n", r.ApprovalRequest.WorkflowID, r.ApprovalRequest.AgentID)
		return nil
	}
	fmt.Printf("workflow %s: phase=%s\n", r.Task.ID, r.Task.Phase)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// appContext carries the process-wide collaborators every subcommand
// needs. Kong passes it to each Run method via the Bind mechanism.
type appContext struct {
	ctx context.Context
	cfg config.EngineConfig
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli, kong.Name("orchestrator"), kong.Description("Agent orchestration engine CLI"), kong.UsageOnError())

	cfg, err := config.Load(cli.ConfigFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	app := &appContext{ctx: ctx, cfg: cfg}
	if err := kctx.Run(app); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// workflowEngine wires a workflow.Engine from the loaded configuration.
// No LLM provider is configured here, since it's an opaque external
// collaborator an embedder supplies. Without one, every genericAgent
// dispatch returns an error, so a run retries until the decision
// engine escalates it and the workflow ends paused.
func (app *appContext) workflowEngine() (*workflow.Engine, error) {
	registry := agentregistry.New()
	for id, role := range map[schema.AgentID]string{
		schema.AgentPlanner:     "technical planner",
		schema.AgentArchitect:   "system architect",
		schema.AgentUIDesigner:  "UI designer",
		schema.AgentFrontendDev: "frontend developer",
		schema.AgentBackendDev:  "backend developer",
		schema.AgentTester:      "test engineer",
		schema.AgentReviewer:    "code reviewer",
		schema.AgentCompliance:  "compliance reviewer",
		schema.AgentBugFixer:    "bug fixer",
	} {
		id, role := id, role
		err := registry.Register(id, agentregistry.Metadata{ID: id}, func() (agentregistry.Agent, error) {
			return &genericAgent{id: id, role: role, provider: nil}, nil
		})
		if err != nil {
			return nil, err
		}
	}
	registry.Seal()

	ctxMgr := ctxmgr.NewManager(ctxmgr.DefaultBudget(), nil)
	router := agentregistry.NewRouter(registry, ctxMgr, nil)
	decisions := decision.NewEngine(nil, nil)

	activityMgr, err := activity.NewManager(app.cfg.ActivityDir, 1000, nil)
	if err != nil {
		return nil, err
	}
	auditLog, err := audit.Open(audit.Config{BaseDir: app.cfg.AuditDir})
	if err != nil {
		return nil, err
	}

	return workflow.NewEngine(decisions, router, activityMgr, auditLog, nil, app.cfg.CheckpointConfig()), nil
}
