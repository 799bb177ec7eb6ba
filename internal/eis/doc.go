// Package eis reads the raw electrochemical impedance spectroscopy files
// the notebooks consume. The pipeline never writes these files; this
// package exists so a run can verify the raw data tree parses cleanly
// before any notebook burns kernel time on it, and so operators can
// inspect the archive without opening a notebook.
//
// File layout (fixed by the instrument export): two preamble lines, a
// 23-row key/value metadata block, a column header at a constant offset,
// four calibration rows, then the measurement table.
package eis
