package activity

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/orchestr8/engine/pkg/schema"
)

const (
	defaultMaxEventsPerFile = 100_000
	defaultMaxFileBytes     = 50 << 20 // 50 MiB
	maxLineBytes            = 100 << 10 // 100 KiB
	dirMode                 = 0o700
	fileMode                = 0o600
)

// FilePersistence is a JSONL append-only implementation of Persistence,
// one growing set of rotated files per session directory.
type FilePersistence struct {
	mu              sync.Mutex
	baseDir         string
	maxEventsPerFile int
	maxFileBytes    int64
	retention       time.Duration

	current      *os.File
	currentCount int
	currentBytes int64
	currentIndex int
}

// FilePersistenceConfig configures a FilePersistence.
type FilePersistenceConfig struct {
	BaseDir          string
	MaxEventsPerFile int
	MaxFileBytes     int64
	RetentionHours   int
}

// NewFilePersistence validates baseDir and prepares it for append-only
// writes. baseDir must not escape outside itself via symlink or "..".
func NewFilePersistence(cfg FilePersistenceConfig) (*FilePersistence, error) {
	if strings.Contains(cfg.BaseDir, "..") {
		return nil, fmt.Errorf("activity: base dir must not contain '..': %q", cfg.BaseDir)
	}
	if cfg.MaxEventsPerFile <= 0 {
		cfg.MaxEventsPerFile = defaultMaxEventsPerFile
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = defaultMaxFileBytes
	}
	if err := os.MkdirAll(cfg.BaseDir, dirMode); err != nil {
		return nil, fmt.Errorf("activity: create base dir: %w", err)
	}
	if info, err := os.Lstat(cfg.BaseDir); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("activity: base dir must not be a symlink: %q", cfg.BaseDir)
	}

	retention := time.Duration(cfg.RetentionHours) * time.Hour
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}

	fp := &FilePersistence{
		baseDir:          cfg.BaseDir,
		maxEventsPerFile: cfg.MaxEventsPerFile,
		maxFileBytes:     cfg.MaxFileBytes,
		retention:        retention,
	}
	idx, err := fp.nextFileIndex()
	if err != nil {
		return nil, err
	}
	fp.currentIndex = idx
	return fp, nil
}

func (fp *FilePersistence) nextFileIndex() (int, error) {
	entries, err := os.ReadDir(fp.baseDir)
	if err != nil {
		return 0, err
	}
	max := -1
	for _, e := range entries {
		var idx int
		if _, err := fmt.Sscanf(e.Name(), "events-%d.jsonl", &idx); err == nil && idx > max {
			max = idx
		}
	}
	return max + 1, nil
}

func (fp *FilePersistence) fileName(idx int) string {
	return filepath.Join(fp.baseDir, fmt.Sprintf("events-%d.jsonl", idx))
}

func (fp *FilePersistence) openCurrent() error {
	if fp.current != nil {
		return nil
	}
	name := fp.fileName(fp.currentIndex)
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, fileMode)
	if err != nil {
		return fmt.Errorf("activity: open %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	fp.current = f
	fp.currentBytes = info.Size()
	fp.currentCount = 0
	return nil
}

func (fp *FilePersistence) rotateIfNeeded() error {
	if fp.currentCount >= fp.maxEventsPerFile || fp.currentBytes >= fp.maxFileBytes {
		if fp.current != nil {
			fp.current.Close()
			fp.current = nil
		}
		fp.currentIndex++
	}
	return fp.openCurrent()
}

// Persist appends e to the current JSONL file, rotating when the
// configured event-count or byte-size threshold is crossed.
func (fp *FilePersistence) Persist(e schema.ActivityEvent) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("activity: marshal event: %w", err)
	}
	if len(line) > maxLineBytes {
		return fmt.Errorf("activity: event %s exceeds max line size (%d > %d)", e.ID, len(line), maxLineBytes)
	}
	line = append(line, '\n')

	if err := fp.rotateIfNeeded(); err != nil {
		return err
	}
	n, err := fp.current.Write(line)
	if err != nil {
		return fmt.Errorf("activity: append event: %w", err)
	}
	fp.currentCount++
	fp.currentBytes += int64(n)
	return nil
}

// Query scans all rotated files in order, returning events matching
// opts. Scans are sequential; this store favors simple durability over
// query performance, leaving indexed query to a later iteration.
func (fp *FilePersistence) Query(opts QueryOptions) ([]schema.ActivityEvent, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	entries, err := os.ReadDir(fp.baseDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "events-") && strings.HasSuffix(e.Name(), ".jsonl") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	typeSet := make(map[string]bool, len(opts.Types))
	for _, t := range opts.Types {
		typeSet[string(t)] = true
	}

	var out []schema.ActivityEvent
	for _, name := range names {
		if err := fp.scanFile(filepath.Join(fp.baseDir, name), opts, typeSet, &out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (fp *FilePersistence) scanFile(path string, opts QueryOptions, typeSet map[string]bool, out *[]schema.ActivityEvent) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes+1024)
	for scanner.Scan() {
		var e schema.ActivityEvent
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if opts.SessionID != "" && e.SessionID != opts.SessionID {
			continue
		}
		if !opts.From.IsZero() && e.Timestamp.Before(opts.From) {
			continue
		}
		if !opts.To.IsZero() && e.Timestamp.After(opts.To) {
			continue
		}
		if len(typeSet) > 0 && !typeSet[string(e.Type)] {
			continue
		}
		*out = append(*out, e)
	}
	return scanner.Err()
}

// PruneOlderThan removes rotated files whose every event predates the
// retention window, checked by each file's last modification time.
func (fp *FilePersistence) PruneOlderThan(now time.Time) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	entries, err := os.ReadDir(fp.baseDir)
	if err != nil {
		return err
	}
	cutoff := now.Add(-fp.retention)
	for _, e := range entries {
		if e.Name() == fp.fileName(fp.currentIndex)[len(fp.baseDir)+1:] {
			continue // never prune the file being actively written
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(fp.baseDir, e.Name()))
		}
	}
	return nil
}

// Close flushes and closes the current file.
func (fp *FilePersistence) Close() error {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	if fp.current == nil {
		return nil
	}
	err := fp.current.Close()
	fp.current = nil
	return err
}
