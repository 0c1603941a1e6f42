package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orchestr8/engine/pkg/schema"
)

func newTestStore(t *testing.T) *Store {
	dir := t.TempDir()
	s, err := NewStore(Config{BaseDir: dir}, "session-1")
	require.NoError(t, err)
	return s
}

func sampleSnapshots() Snapshots {
	return Snapshots{
		Workflow: schema.WorkflowSnapshot{CurrentState: schema.PhaseBuilding},
		Agents: []schema.AgentSnapshot{
			{Agent: schema.AgentBackendDev, Status: "completed", OutputRedacted: "token=abc12345secretvalue"},
		},
		Context:    schema.ContextSnapshot{TaskDescription: "build a thing"},
		Filesystem: schema.FilesystemSnapshot{CreatedFiles: []string{"main.go"}},
	}
}

func TestCreateAndValidateCheckpoint(t *testing.T) {
	s := newTestStore(t)
	cp, err := s.CreateCheckpoint(schema.TriggerManual, sampleSnapshots())
	require.NoError(t, err)

	valid, err := s.ValidateCheckpoint(cp.ID)
	require.NoError(t, err)
	require.True(t, valid)
}

func TestCheckpointRedactsSecrets(t *testing.T) {
	s := newTestStore(t)
	cp, err := s.CreateCheckpoint(schema.TriggerManual, sampleSnapshots())
	require.NoError(t, err)
	require.Contains(t, cp.Agents[0].OutputRedacted, "[REDACTED]")
	require.NotContains(t, cp.Agents[0].OutputRedacted, "secretvalue")
}

func TestCheckpointTamperDetection(t *testing.T) {
	s := newTestStore(t)
	cp, err := s.CreateCheckpoint(schema.TriggerManual, sampleSnapshots())
	require.NoError(t, err)

	names, err := s.listFiles()
	require.NoError(t, err)
	require.Len(t, names, 1)

	path := filepath.Join(s.dir, names[0])
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := []byte(string(raw[:len(raw)-2]) + "XX") // flip trailing bytes
	require.NoError(t, os.WriteFile(path, tampered, fileMode))

	valid, err := s.ValidateCheckpoint(cp.ID)
	require.False(t, valid)
	require.Error(t, err)
}

func TestMaxCheckpointsArchival(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(Config{BaseDir: dir, MaxCheckpoints: 2, RetentionDays: 365}, "session-1")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := s.CreateCheckpoint(schema.TriggerManual, sampleSnapshots())
		require.NoError(t, err)
	}

	names, err := s.listFiles()
	require.NoError(t, err)
	require.LessOrEqual(t, len(names), 2)

	archiveDir := filepath.Join(s.dir, "archive")
	entries, err := os.ReadDir(archiveDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}

func TestRecoveryCanResumeFalseAfterTooManyAttempts(t *testing.T) {
	s := newTestStore(t)
	snaps := sampleSnapshots()
	snaps.Agents[0].Status = "failed"
	snaps.Agents[0].Attempts = 4

	cp, err := s.CreateCheckpoint(schema.TriggerManual, snaps)
	require.NoError(t, err)
	require.False(t, cp.Recovery.CanResume)
}

func TestSessionIDPathTraversalRejected(t *testing.T) {
	dir := t.TempDir()
	_, err := NewStore(Config{BaseDir: dir}, "../escape")
	require.Error(t, err)
}
