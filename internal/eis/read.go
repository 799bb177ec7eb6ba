package eis

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Fixed row offsets of the instrument's CSV export, zero-based. These are
// constant across every EIS file the instrument produces.
const (
	metadataStartRow = 2
	metadataRowCount = 23
	headerRow        = 29
	calibrationRows  = 4
)

// droppedColumns are instrument bookkeeping columns the analysis never
// uses; dropping them here keeps spectra comparable across firmware
// revisions that reorder them.
var droppedColumns = map[string]struct{}{
	"Voltage":     {},
	"Current":     {},
	"Cycle":       {},
	"Cycle Level": {},
	"EisStart":    {},
	"EisFinish":   {},
	"AAcMax":      {},
}

// Spectrum is one imported EIS measurement: the metadata block and the
// measurement table. The Comment metadata field was set as the unique
// test key during the experiment.
type Spectrum struct {
	Metadata map[string]string
	Columns  []string
	Rows     [][]string
}

// Key returns the spectrum's unique test key.
func (s *Spectrum) Key() string { return s.Metadata["Comment"] }

// ColumnIndex returns the position of the named column, or -1.
func (s *Spectrum) ColumnIndex(name string) int {
	for i, col := range s.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// Float parses the named column of one row.
func (s *Spectrum) Float(row int, column string) (float64, error) {
	idx := s.ColumnIndex(column)
	if idx < 0 {
		return 0, fmt.Errorf("spectrum %q has no column %q", s.Key(), column)
	}
	if row < 0 || row >= len(s.Rows) {
		return 0, fmt.Errorf("spectrum %q has no row %d", s.Key(), row)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s.Rows[row][idx]), 64)
	if err != nil {
		return 0, fmt.Errorf("spectrum %q: row %d column %q is not numeric: %w", s.Key(), row, column, err)
	}
	return v, nil
}

// FilterPositiveReal returns a copy containing only the rows whose real
// impedance is positive. Negative real parts are measurement artifacts at
// the high-frequency end; the input spectrum is never modified.
func (s *Spectrum) FilterPositiveReal() (*Spectrum, error) {
	idx := s.ColumnIndex("Zreal1")
	if idx < 0 {
		return nil, fmt.Errorf("spectrum %q has no Zreal1 column", s.Key())
	}

	filtered := &Spectrum{
		Metadata: make(map[string]string, len(s.Metadata)),
		Columns:  append([]string(nil), s.Columns...),
	}
	for k, v := range s.Metadata {
		filtered.Metadata[k] = v
	}

	for i, row := range s.Rows {
		v, err := s.Float(i, "Zreal1")
		if err != nil {
			return nil, err
		}
		if v > 0 {
			filtered.Rows = append(filtered.Rows, append([]string(nil), row...))
		}
	}

	return filtered, nil
}

// ReadFile parses a single raw EIS file.
func ReadFile(path string) (*Spectrum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open EIS file %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // Preamble, metadata and table widths differ.

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse EIS file %s: %w", path, err)
	}

	if len(records) <= headerRow+calibrationRows {
		return nil, fmt.Errorf("EIS file %s truncated: %d rows", path, len(records))
	}

	metadata := make(map[string]string, metadataRowCount)
	for _, rec := range records[metadataStartRow : metadataStartRow+metadataRowCount] {
		if len(rec) < 2 {
			continue
		}
		metadata[strings.TrimSpace(rec[0])] = strings.TrimSpace(rec[1])
	}
	if metadata["Comment"] == "" {
		return nil, fmt.Errorf("EIS file %s has no Comment metadata; test key unknown", path)
	}

	header := records[headerRow]
	keep := make([]int, 0, len(header))
	columns := make([]string, 0, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			continue // Trailing unnamed column from the export.
		}
		if _, drop := droppedColumns[name]; drop {
			continue
		}
		keep = append(keep, i)
		columns = append(columns, name)
	}

	spectrum := &Spectrum{Metadata: metadata, Columns: columns}
	for _, rec := range records[headerRow+1+calibrationRows:] {
		row := make([]string, len(keep))
		for j, idx := range keep {
			if idx < len(rec) {
				row[j] = rec[idx]
			}
		}
		spectrum.Rows = append(spectrum.Rows, row)
	}

	return spectrum, nil
}

// ReadFiles imports a set of EIS files keyed by their Comment metadata.
// Two files claiming the same test key make the archive ambiguous, which
// is an error.
func ReadFiles(paths []string) (map[string]*Spectrum, error) {
	spectra := make(map[string]*Spectrum, len(paths))
	for _, path := range paths {
		s, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		if _, dup := spectra[s.Key()]; dup {
			return nil, fmt.Errorf("duplicate test key %q in %s", s.Key(), path)
		}
		spectra[s.Key()] = s
	}
	return spectra, nil
}
