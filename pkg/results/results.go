// Package results persists one JSON record per simulated output.
package results

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	nerrors "neuroglitch/pkg/errors"
	"neuroglitch/pkg/simulation"
)

// Intensity summarises the voxel values of an output volume.
type Intensity struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Record documents one simulated output: what was applied, with which
// parameters, and the resulting labels.
type Record struct {
	ID             string          `json:"id"`
	RunID          string          `json:"run_id,omitempty"`
	FileName       string          `json:"file_name"`
	SimulationMode simulation.Mode `json:"simulation_mode"`

	// SimulationType is set in single and independent mode,
	// SimulationTypes in chained mode.
	SimulationType  simulation.Kind   `json:"simulation_type,omitempty"`
	SimulationTypes []simulation.Kind `json:"simulation_types,omitempty"`

	// Parameters holds the applied TransformSpec, or a []TransformSpec in
	// chained mode. Decoded records hold generic JSON values instead.
	Parameters any `json:"parameters"`

	Targets     *simulation.Labels `json:"targets"`
	OutputShape [3]int             `json:"output_shape"`
	FixedRange  string             `json:"fixed_range"`
	GIFPath     string             `json:"gif_path,omitempty"`
	OutputPath  string             `json:"output_path,omitempty"`
	Intensity   *Intensity         `json:"intensity,omitempty"`
}

// NewRecord returns a record with a fresh ID.
func NewRecord(fileName string, mode simulation.Mode) Record {
	return Record{
		ID:             uuid.NewString(),
		FileName:       fileName,
		SimulationMode: mode,
	}
}

// Encode renders records as an indented JSON array.
func Encode(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Write replaces the file at path with records.
func Write(path string, records []Record) error {
	data, err := Encode(records)
	if err != nil {
		return nerrors.Wrap(nerrors.ErrCodeIOFailure, err, "failed to encode results")
	}
	return writeFile(path, data)
}

// Append adds records to the JSON array stored at path. A missing, empty
// or malformed file is treated as an empty array. Existing entries are kept
// verbatim.
func Append(path string, records ...Record) error {
	existing := readRaw(path)

	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return nerrors.Wrap(nerrors.ErrCodeIOFailure, err, "failed to encode results")
		}
		existing = append(existing, data)
	}

	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return nerrors.Wrap(nerrors.ErrCodeIOFailure, err, "failed to encode results")
	}
	return writeFile(path, append(data, '\n'))
}

// Read loads the records stored at path.
func Read(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nerrors.Wrap(nerrors.ErrCodeIOFailure, err, "failed to read %s", path)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, nerrors.Wrap(nerrors.ErrCodeIOFailure, err, "failed to decode %s", path)
	}
	return records, nil
}

func readRaw(path string) []json.RawMessage {
	data, err := os.ReadFile(path)
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return []json.RawMessage{}
	}
	var existing []json.RawMessage
	if err := json.Unmarshal(data, &existing); err != nil {
		return []json.RawMessage{}
	}
	return existing
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nerrors.Wrap(nerrors.ErrCodeIOFailure, err, "failed to create directory for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nerrors.Wrap(nerrors.ErrCodeIOFailure, err, "failed to write %s", path)
	}
	return nil
}
