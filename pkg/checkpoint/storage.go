package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/orchestr8/engine/internal/orcherr"
	"github.com/orchestr8/engine/internal/redact"
	"github.com/orchestr8/engine/pkg/schema"
)

// Store persists checkpoints as one JSON file per checkpoint under a
// base directory scoped to a session: mode 0700 directory, mode 0600
// files, write-then-rename.
type Store struct {
	cfg       Config
	sessionID string
	dir       string
	rotLogger hclog.Logger
}

const (
	dirMode  = 0700
	fileMode = 0600
)

// NewStore creates a checkpoint store rooted at cfg.BaseDir/sessionID.
// Returns an error if the directory cannot be created with the
// required mode.
func NewStore(cfg Config, sessionID string) (*Store, error) {
	cfg.SetDefaults()
	if sessionID == "" {
		return nil, orcherr.ValidationFailure("checkpoint", "NewStore", "sessionID is required", nil)
	}
	if strings.Contains(sessionID, "..") || strings.ContainsAny(sessionID, "/\\") {
		return nil, orcherr.SecurityViolation("checkpoint", "NewStore", "sessionID must not contain path separators", nil)
	}

	dir := filepath.Join(cfg.BaseDir, sessionID)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, orcherr.UpstreamError("checkpoint", "NewStore", "failed to create checkpoint directory", err)
	}

	return &Store{
		cfg:       cfg,
		sessionID: sessionID,
		dir:       dir,
		rotLogger: hclog.New(&hclog.LoggerOptions{Name: "checkpoint-rotation", Level: hclog.Warn}),
	}, nil
}

func checkpointFileName(id string, createdAt time.Time) string {
	safe := strings.ReplaceAll(createdAt.UTC().Format("2006-01-02T15:04:05.000000000Z07:00"), ":", "-")
	return fmt.Sprintf("checkpoint-%s-%s.json", safe, id)
}

// Snapshots bundles the four snapshot inputs CreateCheckpoint needs.
type Snapshots struct {
	Workflow   schema.WorkflowSnapshot
	Agents     []schema.AgentSnapshot
	Context    schema.ContextSnapshot
	Filesystem schema.FilesystemSnapshot
}

// CreateCheckpoint captures, redacts, checksums, and persists a new
// checkpoint.
func (s *Store) CreateCheckpoint(trigger schema.CheckpointTrigger, snaps Snapshots) (*schema.Checkpoint, error) {
	redactedAgents, err := redactAgents(snaps.Agents)
	if err != nil {
		return nil, orcherr.ValidationFailure("checkpoint", "CreateCheckpoint", "failed to redact agent snapshots", err)
	}

	cp := &schema.Checkpoint{
		ID:         uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
		Trigger:    trigger,
		Status:     schema.CheckpointValid,
		Workflow:   snaps.Workflow,
		Agents:     redactedAgents,
		Context:    snaps.Context,
		Filesystem: snaps.Filesystem,
	}

	cp.Integrity = computeIntegrity(cp)
	cp.Recovery = analyzeRecovery(cp)

	if err := s.writeAtomic(cp); err != nil {
		return nil, err
	}

	if err := s.enforceRetention(); err != nil {
		s.rotLogger.Warn("retention enforcement failed", "error", err)
	}

	return cp, nil
}

func redactAgents(agents []schema.AgentSnapshot) ([]schema.AgentSnapshot, error) {
	out := make([]schema.AgentSnapshot, len(agents))
	for i, a := range agents {
		red, err := redact.Value(a)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(red)
		if err != nil {
			return nil, err
		}
		var ra schema.AgentSnapshot
		if err := json.Unmarshal(raw, &ra); err != nil {
			return nil, err
		}
		out[i] = ra
	}
	return out, nil
}

func checksum16(v any) string {
	raw, _ := json.Marshal(v)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:16]
}

func computeIntegrity(cp *schema.Checkpoint) schema.IntegrityBlock {
	wc := checksum16(cp.Workflow)
	ac := checksum16(cp.Agents)
	cc := checksum16(cp.Context)
	fc := checksum16(cp.Filesystem)
	overall := checksum16(struct {
		W, A, C, F string
	}{wc, ac, cc, fc})
	return schema.IntegrityBlock{
		WorkflowChecksum:   wc,
		AgentsChecksum:     ac,
		ContextChecksum:    cc,
		FilesystemChecksum: fc,
		OverallChecksum:    overall,
	}
}

// analyzeRecovery computes canResume: true unless a failed agent
// exceeded 3 attempts, or the current phase is terminal-failure.
func analyzeRecovery(cp *schema.Checkpoint) schema.RecoveryBlock {
	var blockers []string
	canResume := true

	for _, a := range cp.Agents {
		if a.Status == "failed" && a.Attempts > 3 {
			canResume = false
			blockers = append(blockers, fmt.Sprintf("agent %s exceeded retry budget", a.Agent))
		}
	}
	if cp.Workflow.CurrentState == schema.PhaseFailed {
		canResume = false
		blockers = append(blockers, "workflow in terminal failed state")
	}

	rb := schema.RecoveryBlock{
		CanResume:       canResume,
		ResumeFromState: cp.Workflow.CurrentState,
		Blockers:        blockers,
	}
	for _, a := range cp.Agents {
		if a.Status == "running" {
			rb.ResumeFromAgent = a.Agent
		}
	}
	return rb
}

func (s *Store) writeAtomic(cp *schema.Checkpoint) error {
	name := checkpointFileName(cp.ID, cp.CreatedAt)
	finalPath := filepath.Join(s.dir, name)
	tmpPath := finalPath + ".tmp"

	raw, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return orcherr.ValidationFailure("checkpoint", "writeAtomic", "failed to serialize checkpoint", err)
	}

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileMode)
	if err != nil {
		return orcherr.UpstreamError("checkpoint", "writeAtomic", "failed to open temp file", err)
	}
	if _, err := f.Write(raw); err != nil {
		f.Close()
		return orcherr.UpstreamError("checkpoint", "writeAtomic", "failed to write checkpoint", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return orcherr.UpstreamError("checkpoint", "writeAtomic", "failed to fsync checkpoint", err)
	}
	if err := f.Close(); err != nil {
		return orcherr.UpstreamError("checkpoint", "writeAtomic", "failed to close checkpoint file", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return orcherr.UpstreamError("checkpoint", "writeAtomic", "failed to rename checkpoint into place", err)
	}
	return nil
}

// listFiles returns checkpoint file paths under the session directory,
// sorted by name (which sorts by timestamp since the filename is
// timestamp-prefixed).
func (s *Store) listFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, orcherr.UpstreamError("checkpoint", "listFiles", "failed to read checkpoint directory", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "checkpoint-") && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// GetCheckpoint loads a checkpoint by id.
func (s *Store) GetCheckpoint(id string) (*schema.Checkpoint, error) {
	names, err := s.listFiles()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if strings.Contains(name, id) {
			return s.loadFile(filepath.Join(s.dir, name))
		}
	}
	return nil, orcherr.NotFound("checkpoint", "GetCheckpoint", "no checkpoint found for id "+id, nil)
}

func (s *Store) loadFile(path string) (*schema.Checkpoint, error) {
	if strings.Contains(path, "..") {
		return nil, orcherr.SecurityViolation("checkpoint", "loadFile", "path traversal rejected", nil)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, orcherr.NotFound("checkpoint", "loadFile", "checkpoint file not found", err)
	}
	var cp schema.Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, orcherr.IntegrityError("checkpoint", "loadFile", "corrupted checkpoint JSON", err)
	}
	return &cp, nil
}

// ListCheckpoints returns every checkpoint in the session, oldest first.
func (s *Store) ListCheckpoints() ([]*schema.Checkpoint, error) {
	names, err := s.listFiles()
	if err != nil {
		return nil, err
	}
	out := make([]*schema.Checkpoint, 0, len(names))
	for _, name := range names {
		cp, err := s.loadFile(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		out = append(out, cp)
	}
	return out, nil
}

// GetLatestCheckpoint returns the most recently created checkpoint.
func (s *Store) GetLatestCheckpoint() (*schema.Checkpoint, error) {
	names, err := s.listFiles()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, orcherr.NotFound("checkpoint", "GetLatestCheckpoint", "no checkpoints exist", nil)
	}
	return s.loadFile(filepath.Join(s.dir, names[len(names)-1]))
}

// ValidateCheckpoint recomputes checksums from the stored snapshots and
// reports whether they still match, detecting tampering.
func (s *Store) ValidateCheckpoint(id string) (bool, error) {
	cp, err := s.GetCheckpoint(id)
	if err != nil {
		return false, err
	}
	recomputed := computeIntegrity(cp)
	if recomputed != cp.Integrity {
		section := diffSection(recomputed, cp.Integrity)
		return false, orcherr.IntegrityError("checkpoint", "ValidateCheckpoint",
			fmt.Sprintf("checksum mismatch in section %q", section), nil)
	}
	return true, nil
}

func diffSection(got, want schema.IntegrityBlock) string {
	switch {
	case got.WorkflowChecksum != want.WorkflowChecksum:
		return "workflow"
	case got.AgentsChecksum != want.AgentsChecksum:
		return "agents"
	case got.ContextChecksum != want.ContextChecksum:
		return "context"
	case got.FilesystemChecksum != want.FilesystemChecksum:
		return "filesystem"
	default:
		return "overall"
	}
}

// enforceRetention archives past maxCheckpoints and deletes anything
// older than retentionDays.
func (s *Store) enforceRetention() error {
	names, err := s.listFiles()
	if err != nil {
		return err
	}

	if len(names) > s.cfg.MaxCheckpoints {
		archiveDir := filepath.Join(s.dir, "archive")
		if err := os.MkdirAll(archiveDir, dirMode); err != nil {
			return err
		}
		excess := len(names) - s.cfg.MaxCheckpoints
		for _, name := range names[:excess] {
			src := filepath.Join(s.dir, name)
			dst := filepath.Join(archiveDir, name)
			if err := os.Rename(src, dst); err != nil {
				s.rotLogger.Warn("failed to archive checkpoint", "file", name, "error", err)
			}
		}
		names = names[excess:]
	}

	cutoff := time.Now().AddDate(0, 0, -s.cfg.RetentionDays)
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				s.rotLogger.Warn("failed to remove expired checkpoint", "file", name, "error", err)
			}
		}
	}
	return nil
}
