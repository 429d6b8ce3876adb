// Package storage keeps one directory per run with its metadata and the
// emitted field points.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	metadataFile = "metadata.json"
	pointsFile   = "points.csv"
)

type Store struct {
	baseDir string
	newID   func() string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{
		baseDir: baseDir,
		newID:   func() string { return uuid.NewString() },
		now:     time.Now,
	}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Program     string             `json:"program"`
	Integrator  string             `json:"integrator"`
	Backend     string             `json:"backend"`
	Timestamp   time.Time          `json:"timestamp"`
	Finished    *time.Time         `json:"finished,omitempty"`
	Seed        int64              `json:"seed"`
	Spins       int                `json:"spins"`
	Temperature float64            `json:"temperature"`
	Dt          float64            `json:"dt"`
	StartMode   string             `json:"start_mode,omitempty"`
	Steps       uint64             `json:"steps"`
	Points      int                `json:"points"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

// Create allocates a run id, writes the initial metadata and opens the
// points file.
func (s *Store) Create(meta RunMetadata) (*Writer, error) {
	meta.ID = s.newID()
	meta.Timestamp = s.now()

	dir := s.Dir(meta.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if err := writeMetadata(dir, &meta); err != nil {
		return nil, err
	}

	f, err := os.Create(filepath.Join(dir, pointsFile))
	if err != nil {
		return nil, err
	}
	w := &Writer{store: s, dir: dir, meta: meta, file: f, csv: csv.NewWriter(f)}
	if err := w.csv.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	w.csv.Flush()
	return w, w.csv.Error()
}

func writeMetadata(dir string, meta *RunMetadata) error {
	f, err := os.Create(filepath.Join(dir, metadataFile))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

// List returns every readable run, oldest first.
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
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(runID), metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadPoints reads back the points file of a run.
func (s *Store) LoadPoints(runID string) ([]Row, error) {
	file, err := os.Open(filepath.Join(s.Dir(runID), pointsFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(header)

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	if len(records) < 2 {
		return []Row{}, nil
	}

	rows := make([]Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		row, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("run %s line %d: %w", runID, i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(rec []string) (Row, error) {
	var (
		row  Row
		errs []error
	)
	atoi := func(s string) int64 {
		v, err := strconv.ParseInt(s, 10, 64)
		errs = append(errs, err)
		return v
	}
	atou := func(s string) uint64 {
		v, err := strconv.ParseUint(s, 10, 64)
		errs = append(errs, err)
		return v
	}
	atof := func(s string) float64 {
		v, err := strconv.ParseFloat(s, 64)
		errs = append(errs, err)
		return v
	}

	row.Index = int(atoi(rec[0]))
	row.Polarity = atoi(rec[1])
	row.FieldUT = atoi(rec[2])
	row.HApplied = atof(rec[3])
	row.StartTime = atou(rec[4])
	row.EndTime = atou(rec[5])
	row.Samples = int(atoi(rec[6]))
	row.M = atof(rec[7])
	row.MStd = atof(rec[8])
	row.MLength = atof(rec[9])
	row.Energy = atof(rec[10])

	for _, err := range errs {
		if err != nil {
			return Row{}, err
		}
	}
	return row, nil
}
