package eis

import "fmt"

// Grouping helpers split an imported spectra set along the axes the
// analysis plots against. Keys that fail to parse poison the whole group
// operation; a silently dropped spectrum would skew the published curves.

// GroupByBatch splits spectra by production batch.
func GroupByBatch(spectra map[string]*Spectrum) (map[string]map[string]*Spectrum, error) {
	return groupBy(spectra, func(l Label) string { return l.Batch })
}

// GroupByTemperature splits spectra by chamber setpoint.
func GroupByTemperature(spectra map[string]*Spectrum) (map[string]map[string]*Spectrum, error) {
	return groupBy(spectra, func(l Label) string { return l.Temperature })
}

// GroupByCellNumber splits spectra by cell number within a batch.
func GroupByCellNumber(spectra map[string]*Spectrum) (map[string]map[string]*Spectrum, error) {
	return groupBy(spectra, func(l Label) string { return l.Number })
}

func groupBy(spectra map[string]*Spectrum, axis func(Label) string) (map[string]map[string]*Spectrum, error) {
	grouped := make(map[string]map[string]*Spectrum)
	for key, s := range spectra {
		label, err := ParseLabel(key)
		if err != nil {
			return nil, fmt.Errorf("cannot group spectra: %w", err)
		}
		bucket := axis(label)
		if grouped[bucket] == nil {
			grouped[bucket] = make(map[string]*Spectrum)
		}
		grouped[bucket][key] = s
	}
	return grouped, nil
}
