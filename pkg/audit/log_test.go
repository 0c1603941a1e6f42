package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orchestr8/engine/pkg/schema"
)

func newTestLog(t *testing.T) *Log {
	dir := t.TempDir()
	l, err := Open(Config{BaseDir: dir})
	require.NoError(t, err)
	return l
}

func sampleRecord() Record {
	return Record{
		Category:    "workflow",
		Action:      "phase_transition",
		Severity:    schema.SeverityInfo,
		Outcome:     schema.AuditOutcomeSuccess,
		Actor:       schema.Actor{Type: schema.ActorSystem, ID: "orchestrator"},
		Target:      "workflow-1",
		Description: "transitioned to building",
	}
}

func TestLogChainsSequentially(t *testing.T) {
	l := newTestLog(t)
	e1, err := l.Log(sampleRecord())
	require.NoError(t, err)
	require.Equal(t, schema.GenesisHash, e1.PreviousHash)
	require.Equal(t, uint64(1), e1.Sequence)

	e2, err := l.Log(sampleRecord())
	require.NoError(t, err)
	require.Equal(t, e1.Hash, e2.PreviousHash)
	require.Equal(t, uint64(2), e2.Sequence)
}

func TestVerifyIntegritySucceedsOnUntamperedChain(t *testing.T) {
	l := newTestLog(t)
	for i := 0; i < 5; i++ {
		_, err := l.Log(sampleRecord())
		require.NoError(t, err)
	}
	result, err := l.VerifyIntegrity()
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, 5, result.EventsChecked)
}

func TestVerifyIntegrityDetectsTamperedMiddleEvent(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(Config{BaseDir: dir})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := l.Log(sampleRecord())
		require.NoError(t, err)
	}

	path := filepath.Join(dir, "audit.jsonl")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	require.Len(t, lines, 3)
	tampered := strings.Replace(lines[1], `"action":"phase_transition"`, `"action":"phase_transition_altered"`, 1)
	lines[1] = tampered
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), fileMode))

	reopened, err := Open(Config{BaseDir: dir})
	require.NoError(t, err)
	result, err := reopened.VerifyIntegrity()
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.NotNil(t, result.BrokenAt)
	require.Equal(t, uint64(2), *result.BrokenAt)
}

func TestQueryFiltersByActorAndOutcome(t *testing.T) {
	l := newTestLog(t)
	r1 := sampleRecord()
	r1.Actor = schema.Actor{Type: schema.ActorUser, ID: "alice"}
	_, err := l.Log(r1)
	require.NoError(t, err)

	r2 := sampleRecord()
	r2.Actor = schema.Actor{Type: schema.ActorUser, ID: "bob"}
	r2.Outcome = schema.AuditOutcomeDenied
	_, err = l.Log(r2)
	require.NoError(t, err)

	results, err := l.Query(QueryOptions{Actor: "bob"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, schema.AuditOutcomeDenied, results[0].Outcome)
}

func TestRecoverRestoresChainState(t *testing.T) {
	dir := t.TempDir()
	l1, err := Open(Config{BaseDir: dir})
	require.NoError(t, err)
	last, err := l1.Log(sampleRecord())
	require.NoError(t, err)

	l2, err := Open(Config{BaseDir: dir})
	require.NoError(t, err)
	next, err := l2.Log(sampleRecord())
	require.NoError(t, err)
	require.Equal(t, last.Hash, next.PreviousHash)
	require.Equal(t, uint64(2), next.Sequence)
}
