// Package audit implements the tamper-evident, append-only audit event
// chain: every event's hash commits to its own canonical
// content and the previous event's hash, so any edit or deletion
// anywhere in the chain is detectable by recomputing forward.
package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/orchestr8/engine/internal/redact"
	"github.com/orchestr8/engine/pkg/schema"
)

const (
	dirMode  = 0o700
	fileMode = 0o600
)

// Config configures the audit Log's on-disk location.
type Config struct {
	BaseDir string
}

// Log is an append-only, hash-chained audit event store. One Log
// serves one logical audit trail (for example, one tenant or one
// deployment); callers needing multiple trails construct multiple Logs
// against distinct BaseDirs. Each event's hash commits to its own
// canonical content and to the previous event's hash, chaining them
// together.
type Log struct {
	mu       sync.Mutex
	baseDir  string
	filePath string
	lastHash string
	sequence uint64
}

// Open creates (or reopens) a Log rooted at cfg.BaseDir, replaying the
// existing chain (if any) to recover the last hash and sequence.
func Open(cfg Config) (*Log, error) {
	if cfg.BaseDir == "" {
		cfg.BaseDir = "./audit"
	}
	if err := os.MkdirAll(cfg.BaseDir, dirMode); err != nil {
		return nil, fmt.Errorf("audit: create base dir: %w", err)
	}
	l := &Log{
		baseDir:  cfg.BaseDir,
		filePath: filepath.Join(cfg.BaseDir, "audit.jsonl"),
		lastHash: schema.GenesisHash,
	}
	if err := l.recover(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Log) recover() error {
	f, err := os.Open(l.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("audit: open chain: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), int(schema.MaxEventSizeBytes)+1024)
	var last schema.AuditEvent
	var found bool
	for scanner.Scan() {
		var e schema.AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return fmt.Errorf("audit: corrupt chain entry: %w", err)
		}
		last = e
		found = true
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("audit: scan chain: %w", err)
	}
	if found {
		l.lastHash = last.Hash
		l.sequence = last.Sequence
	}
	return nil
}

// Record is the input to Log (AuditEvent minus the chain/sequence
// fields the Log itself computes).
type Record struct {
	Category    string
	Action      string
	Severity    schema.AuditSeverity
	Outcome     schema.AuditOutcome
	Actor       schema.Actor
	Target      string
	Description string
	Details     map[string]any
	Error       *schema.AuditError
}

// Log appends a new event to the chain, computing its hash over the
// canonical encoding of (previous hash, sequence, and every other
// field). Returns the fully populated, persisted event.
func (l *Log) Log(r Record) (schema.AuditEvent, error) {
	r.Description = redact.String(r.Description)
	if len(r.Description) > schema.MaxDescriptionLen {
		r.Description = r.Description[:schema.MaxDescriptionLen]
	}
	if r.Details != nil {
		r.Details, _ = redact.JSON(r.Details).(map[string]any)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e := schema.AuditEvent{
		ID:           uuid.NewString(),
		Sequence:     l.sequence + 1,
		Category:     r.Category,
		Action:       r.Action,
		Severity:     r.Severity,
		Outcome:      r.Outcome,
		Actor:        r.Actor,
		Target:       r.Target,
		Description:  r.Description,
		Details:      r.Details,
		Error:        r.Error,
		PreviousHash: l.lastHash,
	}
	e.Timestamp = nowFunc()
	e.Hash = computeHash(e)

	raw, err := json.Marshal(e)
	if err != nil {
		return schema.AuditEvent{}, fmt.Errorf("audit: marshal event: %w", err)
	}
	if len(raw) > schema.MaxEventSizeBytes {
		return schema.AuditEvent{}, fmt.Errorf("audit: event exceeds max size (%d > %d)", len(raw), schema.MaxEventSizeBytes)
	}

	f, err := os.OpenFile(l.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, fileMode)
	if err != nil {
		return schema.AuditEvent{}, fmt.Errorf("audit: open chain: %w", err)
	}
	defer f.Close()

	raw = append(raw, '\n')
	if _, err := f.Write(raw); err != nil {
		return schema.AuditEvent{}, fmt.Errorf("audit: append event: %w", err)
	}
	if err := f.Sync(); err != nil {
		return schema.AuditEvent{}, fmt.Errorf("audit: sync chain: %w", err)
	}

	l.sequence = e.Sequence
	l.lastHash = e.Hash
	return e, nil
}

// computeHash hashes the canonical form of e: a JSON object whose keys
// are sorted lexicographically and whose non-ASCII characters are
// escaped as \u sequences, so the digest is reproducible across
// processes and locales regardless of Go's map-iteration order or
// encoding/json's default UTF-8 passthrough.
func computeHash(e schema.AuditEvent) string {
	fields := map[string]any{
		"id":            e.ID,
		"sequence":      e.Sequence,
		"timestamp":     e.Timestamp.UTC().UnixNano(),
		"category":      e.Category,
		"action":        e.Action,
		"severity":      string(e.Severity),
		"outcome":       string(e.Outcome),
		"actor":         map[string]any{"id": e.Actor.ID, "type": string(e.Actor.Type)},
		"target":        e.Target,
		"description":   e.Description,
		"details":       canonicalizeDetails(e.Details),
		"error":         e.Error,
		"previous_hash": e.PreviousHash,
	}
	raw, _ := json.Marshal(fields)
	sum := sha256.Sum256(escapeNonASCII(raw))
	return hex.EncodeToString(sum[:])
}

// canonicalizeDetails normalizes nested maps of type any into
// map[string]any so they marshal with the same lexicographic key
// ordering as the top-level fields; round-tripping through
// json.Marshal/Unmarshal also normalizes numeric types.
func canonicalizeDetails(d map[string]any) map[string]any {
	if d == nil {
		return nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return d
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return d
	}
	return out
}

// escapeNonASCII rewrites a valid JSON encoding so every byte outside
// the ASCII range is replaced by its \uXXXX escape (surrogate pairs for
// codepoints above U+FFFF), matching the canonical form the hash chain
// commits to independent of json.Marshal's default UTF-8 passthrough.
func escapeNonASCII(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	for _, r := range string(raw) {
		if r < utf8.RuneSelf {
			out = append(out, byte(r))
			continue
		}
		if r > 0xFFFF {
			r1, r2 := utf16.EncodeRune(r)
			out = append(out, []byte(fmt.Sprintf(`\u%04x\u%04x`, r1, r2))...)
			continue
		}
		out = append(out, []byte(fmt.Sprintf(`\u%04x`, r))...)
	}
	return out
}

// Tail returns up to n most recent events, oldest first. n<=0 returns
// the entire chain.
func (l *Log) Tail(n int) ([]schema.AuditEvent, error) {
	events, err := l.all()
	if err != nil {
		return nil, err
	}
	if n <= 0 || n >= len(events) {
		return events, nil
	}
	return events[len(events)-n:], nil
}

func (l *Log) all() ([]schema.AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.filePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []schema.AuditEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), int(schema.MaxEventSizeBytes)+1024)
	for scanner.Scan() {
		var e schema.AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("audit: corrupt chain entry: %w", err)
		}
		events = append(events, e)
	}
	return events, scanner.Err()
}

// QueryOptions filters Query results.
type QueryOptions struct {
	Category string
	Action   string
	Actor    string
	Outcome  schema.AuditOutcome
}

// Query returns every event matching every non-empty option, in
// sequence order.
func (l *Log) Query(opts QueryOptions) ([]schema.AuditEvent, error) {
	events, err := l.all()
	if err != nil {
		return nil, err
	}
	out := events[:0:0]
	for _, e := range events {
		if opts.Category != "" && e.Category != opts.Category {
			continue
		}
		if opts.Action != "" && e.Action != opts.Action {
			continue
		}
		if opts.Actor != "" && e.Actor.ID != opts.Actor {
			continue
		}
		if opts.Outcome != "" && e.Outcome != opts.Outcome {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

// nowFunc is overridable in tests that need deterministic timestamps.
var nowFunc = defaultNow
