package storage

import (
	"encoding/json"
	"io"
)

// Export is a run's metadata and points as one document.
type Export struct {
	RunMetadata
	Rows []Row `json:"rows"`
}

// ExportJSON writes the run as indented JSON to w.
func (s *Store) ExportJSON(runID string, w io.Writer) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	rows, err := s.LoadPoints(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Export{RunMetadata: *meta, Rows: rows})
}
