package storage

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"

	"github.com/san-kum/magsim/internal/sweep"
)

var header = []string{
	"index", "polarity", "field_ut", "h_applied",
	"start_time", "end_time", "samples",
	"m", "m_std", "m_length", "energy",
}

// Row is one line of points.csv.
type Row struct {
	Index     int     `json:"index"`
	Polarity  int64   `json:"polarity"`
	FieldUT   int64   `json:"field_ut"`
	HApplied  float64 `json:"h_applied"`
	StartTime uint64  `json:"start_time"`
	EndTime   uint64  `json:"end_time"`
	Samples   int     `json:"samples"`
	M         float64 `json:"m"`
	MStd      float64 `json:"m_std"`
	MLength   float64 `json:"m_length"`
	Energy    float64 `json:"energy"`
}

// Magnetisation is read when a point is emitted.
type Magnetisation interface {
	Value() float64
	StdDev() float64
	MeanLength() float64
}

type Valuer interface {
	Value() float64
}

// Writer appends points to a run. It implements sweep.Emitter.
type Writer struct {
	store *Store
	dir   string
	meta  RunMetadata

	mu     sync.Mutex
	file   *os.File
	csv    *csv.Writer
	mag    Magnetisation
	energy Valuer
	points int
}

// Observe sets the metrics copied into every row.
func (w *Writer) Observe(mag Magnetisation, energy Valuer) {
	w.mag = mag
	w.energy = energy
}

func (w *Writer) ID() string  { return w.meta.ID }
func (w *Writer) Dir() string { return w.dir }
func (w *Writer) Points() int { return w.points }

func (w *Writer) Emit(p sweep.Point) error {
	_, err := w.Record(p)
	return err
}

// Record writes p with the current metric values and returns the row.
func (w *Writer) Record(p sweep.Point) (Row, error) {
	row := Row{
		Index:     p.Index,
		Polarity:  p.Polarity,
		FieldUT:   p.Field,
		HApplied:  p.HApplied,
		StartTime: p.StartTime,
		EndTime:   p.EndTime,
		Samples:   p.Samples,
	}
	if w.mag != nil {
		row.M = w.mag.Value()
		row.MStd = w.mag.StdDev()
		row.MLength = w.mag.MeanLength()
	}
	if w.energy != nil {
		row.Energy = w.energy.Value()
	}
	return row, w.Write(row)
}

func (w *Writer) Write(row Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rec := []string{
		strconv.Itoa(row.Index),
		strconv.FormatInt(row.Polarity, 10),
		strconv.FormatInt(row.FieldUT, 10),
		strconv.FormatFloat(row.HApplied, 'f', 6, 64),
		strconv.FormatUint(row.StartTime, 10),
		strconv.FormatUint(row.EndTime, 10),
		strconv.Itoa(row.Samples),
		strconv.FormatFloat(row.M, 'f', 6, 64),
		strconv.FormatFloat(row.MStd, 'f', 6, 64),
		strconv.FormatFloat(row.MLength, 'f', 6, 64),
		strconv.FormatFloat(row.Energy, 'e', 6, 64),
	}
	if err := w.csv.Write(rec); err != nil {
		return err
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return err
	}
	w.points++
	return nil
}

// Close records the final counters in the metadata and closes the points file.
func (w *Writer) Close(steps uint64, startMode string, metrics map[string]float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.csv.Flush()
	if err := w.file.Close(); err != nil {
		return err
	}

	finished := w.store.now()
	w.meta.Finished = &finished
	w.meta.Steps = steps
	w.meta.Points = w.points
	w.meta.StartMode = startMode
	w.meta.Metrics = metrics
	return writeMetadata(w.dir, &w.meta)
}
