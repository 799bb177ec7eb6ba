package eis

import (
	"context"
	"fmt"
	"sort"

	"labpipe/internal/ctxlog"
)

// Report summarizes a verified raw data tree.
type Report struct {
	Files        int
	Spectra      int
	Batches      []string
	Temperatures []string
}

// Verify scans the raw data tree and proves every EIS file in scope
// parses, carries a unique test key, and decomposes into a known batch
// and temperature. It runs before any notebook executes so a corrupt
// archive fails the run in seconds instead of after a kernel warm-up.
func Verify(ctx context.Context, dir string, scope Scope) (*Report, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := FindFiles(dir, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to scan raw data tree %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("raw data tree %s contains no EIS files in scope %q", dir, scope)
	}

	spectra, err := ReadFiles(files)
	if err != nil {
		return nil, err
	}

	byBatch, err := GroupByBatch(spectra)
	if err != nil {
		return nil, err
	}
	byTemperature, err := GroupByTemperature(spectra)
	if err != nil {
		return nil, err
	}

	report := &Report{Files: len(files), Spectra: len(spectra)}
	for batch := range byBatch {
		report.Batches = append(report.Batches, batch)
	}
	for temp := range byTemperature {
		report.Temperatures = append(report.Temperatures, temp)
	}
	sort.Strings(report.Batches)
	sort.Strings(report.Temperatures)

	logger.Info("Raw data verified.",
		"files", report.Files,
		"spectra", report.Spectra,
		"batches", report.Batches,
		"temperatures", report.Temperatures)
	return report, nil
}
