package run

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vulntune/vulntune/internal/manifest"
)

// DefaultRunPrefix is the fixed prefix every run id carries.
const DefaultRunPrefix = "run_"

// DefaultBaseModel is the stage-0 starting model recorded on new runs when
// the caller does not configure one.
const DefaultBaseModel = "mlx-community/Llama-3.2-3B-Instruct-4bit"

// runIDTimeFormat generates ids from the creation time when the caller
// does not supply one.
const runIDTimeFormat = "20060102_150405"

// Manager creates, discovers and prunes training runs under a root
// directory. Each run owns a distinct subdirectory, so independent runs
// never interfere; discovery treats each run's failure independently.
type Manager struct {
	root      string
	prefix    string
	baseModel string
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithPrefix overrides the run-id prefix.
func WithPrefix(prefix string) Option {
	return func(m *Manager) {
		if prefix != "" {
			m.prefix = prefix
		}
	}
}

// WithBaseModel overrides the base model recorded on new runs.
func WithBaseModel(baseModel string) Option {
	return func(m *Manager) {
		if baseModel != "" {
			m.baseModel = baseModel
		}
	}
}

// WithLogger overrides the discovery logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager returns a Manager rooted at dir.
func NewManager(dir string, opts ...Option) *Manager {
	m := &Manager{
		root:      dir,
		prefix:    DefaultRunPrefix,
		baseModel: DefaultBaseModel,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, fn := range opts {
		fn(m)
	}
	return m
}

// Root returns the directory all runs live under.
func (m *Manager) Root() string {
	return m.root
}

// CreateRun creates a new run directory with the entire two-stage path
// contract pre-declared in its manifest, before any training has executed.
// Downstream consumers can reference the declared paths deterministically
// regardless of whether training has reached a given stage yet.
//
// If id is empty, one is generated from the current time.
func (m *Manager) CreateRun(id string) (*TrainingRun, error) {
	if id == "" {
		id = m.now().UTC().Format(runIDTimeFormat)
	}
	id = m.normalizeID(id)

	root := filepath.Join(m.root, id)
	if _, err := os.Stat(root); err == nil {
		return nil, fmt.Errorf("run directory %s already exists", root)
	}

	doc := &manifest.RunManifest{
		SchemaVersion: manifest.SchemaVersionCurrent,
		RunID:         id,
		Timestamp:     m.now().UTC().Format(manifest.TimestampFormat),
		BaseModel:     m.baseModel,
		Stage1: &manifest.StageManifest{
			AdaptersPath:          "stage1/adapters",
			TrainingDataPath:      "stage1/training-data",
			EvaluationResultsPath: "stage1/evaluation/evaluation_results.json",
		},
		Stage2: &manifest.StageManifest{
			AdaptersPath:          "stage2/adapters",
			TrainingDataPath:      "stage2/training-data",
			EvaluationResultsPath: "stage2/evaluation/evaluation_results.json",
		},
		FinalModelPath: "final-model",
	}

	r := New(root)
	r.SetManifest(doc)

	// Pre-create the declared directory skeleton. The artifacts themselves
	// appear later, written by the training subprocesses.
	skeleton := []string{
		"stage1/adapters", "stage1/training-data", "stage1/evaluation",
		"stage2/adapters", "stage2/training-data", "stage2/evaluation",
		"final-model",
	}
	for _, rel := range skeleton {
		if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(rel)), 0755); err != nil {
			return nil, fmt.Errorf("creating run skeleton: %w", err)
		}
	}

	if err := r.SaveManifest(); err != nil {
		return nil, err
	}
	return r, nil
}

// RunByID loads the run with the given id, adding the configured prefix if
// absent.
func (m *Manager) RunByID(id string) (*TrainingRun, error) {
	id = m.normalizeID(id)
	root := filepath.Join(m.root, id)
	fi, err := os.Stat(root)
	if err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, root)
	}
	return New(root), nil
}

// ListRuns enumerates all runs under the root, skipping (and logging) any
// whose manifest is missing or invalid, so one corrupted run never prevents
// enumeration of the others. Results are sorted by manifest timestamp
// ascending. A nil filter keeps every readable run.
func (m *Manager) ListRuns(filter func(*TrainingRun) bool) ([]*TrainingRun, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading runs directory: %w", err)
	}

	var runs []*TrainingRun
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), m.prefix) {
			continue
		}
		r := New(filepath.Join(m.root, entry.Name()))
		if _, err := r.Manifest(); err != nil {
			m.logger.Warn("skipping run with unreadable manifest", "run", entry.Name(), "error", err)
			continue
		}
		if filter != nil && !filter(r) {
			continue
		}
		runs = append(runs, r)
	}

	// Timestamps share a fixed-width format, so lexicographic order is
	// chronological order.
	sort.Slice(runs, func(i, j int) bool {
		mi, _ := runs[i].Manifest()
		mj, _ := runs[j].Manifest()
		return mi.Timestamp < mj.Timestamp
	})
	return runs, nil
}

// LatestRun returns the most recently created run whose final model has
// materialized. The manifest timestamp is the sole sort key, not filesystem
// mtimes.
func (m *Manager) LatestRun() (*TrainingRun, error) {
	runs, err := m.ListRuns((*TrainingRun).Completed)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoCompletedRuns
	}
	return runs[len(runs)-1], nil
}

// Archiver snapshots a run directory to durable storage before it is
// deleted. Implemented by the archive package.
type Archiver interface {
	Snapshot(ctx context.Context, runDir string) (string, error)
}

// CleanupOptions controls CleanupFailedRuns.
type CleanupOptions struct {
	// DryRun reports what would be deleted without touching anything.
	DryRun bool
	// Archiver, when set, snapshots each run before deletion. A failed
	// snapshot aborts the cleanup of that run.
	Archiver Archiver
}

// CleanupFailedRuns deletes every run directory that has not completed,
// including directories whose manifest is unreadable. Deletion is
// irreversible; set CleanupOptions.Archiver to snapshot first, or DryRun
// to preview. Returns the ids of the runs removed (or that would be).
func (m *Manager) CleanupFailedRuns(ctx context.Context, opts CleanupOptions) ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading runs directory: %w", err)
	}

	var removed []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), m.prefix) {
			continue
		}
		r := New(filepath.Join(m.root, entry.Name()))
		if r.Completed() {
			continue
		}

		if opts.DryRun {
			removed = append(removed, entry.Name())
			continue
		}
		if opts.Archiver != nil {
			key, err := opts.Archiver.Snapshot(ctx, r.Root())
			if err != nil {
				return removed, fmt.Errorf("snapshotting run %s before deletion: %w", entry.Name(), err)
			}
			m.logger.Info("archived run before deletion", "run", entry.Name(), "object", key)
		}
		if err := os.RemoveAll(r.Root()); err != nil {
			return removed, fmt.Errorf("deleting run %s: %w", entry.Name(), err)
		}
		m.logger.Info("deleted incomplete run", "run", entry.Name())
		removed = append(removed, entry.Name())
	}
	return removed, nil
}

func (m *Manager) normalizeID(id string) string {
	if strings.HasPrefix(id, m.prefix) {
		return id
	}
	return m.prefix + id
}
