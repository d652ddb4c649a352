package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/san-kum/qshpost/internal/axis"
	"github.com/san-kum/qshpost/internal/fourier"
	"github.com/san-kum/qshpost/internal/tracing"
)

const (
	metadataFile = "metadata.json"
	linesFile    = "lines.json.zst"
)

// Store keeps one directory per run under baseDir.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Command   string             `json:"command"`
	Timestamp time.Time          `json:"timestamp"`
	Params    map[string]string  `json:"params,omitempty"`
	Results   map[string]float64 `json:"results,omitempty"`
	Files     []string           `json:"files,omitempty"`
}

// Run is an open run directory. Close writes its metadata.
type Run struct {
	Meta RunMetadata
	dir  string
}

func (s *Store) Create(command string) (*Run, error) {
	now := time.Now()
	id := fmt.Sprintf("%s_%d", command, now.UnixNano())
	dir := filepath.Join(s.baseDir, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Run{
		Meta: RunMetadata{
			ID:        id,
			Command:   command,
			Timestamp: now,
			Params:    map[string]string{},
			Results:   map[string]float64{},
		},
		dir: dir,
	}, nil
}

func (r *Run) Dir() string { return r.dir }

func (r *Run) SetParam(key, value string) { r.Meta.Params[key] = value }

func (r *Run) SetResult(key string, value float64) { r.Meta.Results[key] = value }

func (r *Run) track(name string) string {
	r.Meta.Files = append(r.Meta.Files, name)
	return filepath.Join(r.dir, name)
}

func (r *Run) SaveLines(lines []*tracing.FieldLine) error {
	return WriteLines(r.track(linesFile), lines)
}

func (r *Run) SaveCurve(name string, c *fourier.Curve) error {
	return WriteCurve(r.track(name+".json"), c)
}

func (r *Run) SaveAxis(name string, a *axis.Axis) error {
	return WriteAxis(r.track(name+".json"), a)
}

func (r *Run) Close() error {
	return writeJSON(filepath.Join(r.dir, metadataFile), r.Meta)
}

// List returns the metadata of every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		var meta RunMetadata
		if err := readJSON(filepath.Join(s.baseDir, entry.Name(), metadataFile), &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	var meta RunMetadata
	if err := readJSON(filepath.Join(s.baseDir, runID, metadataFile), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadLines(runID string) ([]*tracing.FieldLine, error) {
	return ReadLines(filepath.Join(s.baseDir, runID, linesFile))
}

func (s *Store) LoadCurve(runID, name string) (*fourier.Curve, error) {
	return ReadCurve(filepath.Join(s.baseDir, runID, name+".json"))
}

func (s *Store) LoadAxis(runID, name string) (*axis.Axis, error) {
	return ReadAxis(filepath.Join(s.baseDir, runID, name+".json"))
}
