// Package notebook models the analysis documents the pipeline executes:
// an ordered sequence of cells whose stored outputs are overwritten in
// place by execution. The normalized form strips the transient fields
// (execution counters, cell timing metadata) so that two executions
// against unchanged inputs can be compared for identity.
package notebook

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Document is a parsed .ipynb file. Identity is the file path; the
// document itself carries no name.
type Document struct {
	Cells         []Cell         `json:"cells"`
	Metadata      map[string]any `json:"metadata"`
	NBFormat      int            `json:"nbformat"`
	NBFormatMinor int            `json:"nbformat_minor"`
}

// Cell is one ordered notebook cell. Code cells carry stored outputs and
// an execution counter; narrative cells carry neither.
type Cell struct {
	Type           string           `json:"cell_type"`
	ExecutionCount *int             `json:"execution_count,omitempty"`
	Metadata       map[string]any   `json:"metadata"`
	Source         json.RawMessage  `json:"source"`
	Outputs        []map[string]any `json:"outputs,omitempty"`
}

// Load parses the notebook document at the given path.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read notebook %s: %w", path, err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse notebook %s: %w", path, err)
	}
	if doc.NBFormat == 0 {
		return nil, fmt.Errorf("notebook %s has no nbformat version", path)
	}

	return &doc, nil
}

// Save overwrites the document at the given path. The encoding is fixed
// (one-space indent, trailing newline) so saving an unchanged document is
// byte-identical to the previous save.
func (d *Document) Save(path string) error {
	raw, err := json.MarshalIndent(d, "", " ")
	if err != nil {
		return fmt.Errorf("failed to encode notebook: %w", err)
	}
	raw = append(raw, '\n')

	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write notebook %s: %w", path, err)
	}
	return nil
}

// Normalized returns a deep copy with the transient execution fields
// cleared: cell execution counters, per-cell timing metadata, and the
// execution counters embedded in stored outputs.
func (d *Document) Normalized() *Document {
	copied := deepCopy(d)
	for i := range copied.Cells {
		cell := &copied.Cells[i]
		cell.ExecutionCount = nil
		delete(cell.Metadata, "execution")
		for _, out := range cell.Outputs {
			delete(out, "execution_count")
		}
	}
	return copied
}

// Fingerprint hashes the normalized document. Executing a notebook twice
// against unchanged inputs and environment must yield equal fingerprints.
func (d *Document) Fingerprint() (string, error) {
	raw, err := json.Marshal(d.Normalized())
	if err != nil {
		return "", fmt.Errorf("failed to encode notebook for fingerprinting: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// CodeCellCount reports how many executable cells the document holds.
func (d *Document) CodeCellCount() int {
	n := 0
	for _, cell := range d.Cells {
		if cell.Type == "code" {
			n++
		}
	}
	return n
}

// deepCopy round-trips the document through JSON. The document is plain
// data, so this is the simplest faithful copy.
func deepCopy(d *Document) *Document {
	raw, err := json.Marshal(d)
	if err != nil {
		panic(fmt.Sprintf("notebook: document not serializable: %v", err))
	}
	var copied Document
	if err := json.Unmarshal(raw, &copied); err != nil {
		panic(fmt.Sprintf("notebook: document not round-trippable: %v", err))
	}
	return &copied
}

// RenderedPaths returns the sibling page-display (.html) and plain-markup
// (.md) paths for a notebook path, sharing its base name.
func RenderedPaths(notebookPath string) (htmlPath, markdownPath string) {
	base := strings.TrimSuffix(notebookPath, ".ipynb")
	return base + ".html", base + ".md"
}
