package config

import (
	"context"
	"fmt"
	"time"
)

// Loader loads a pipeline definition from a file path into the model.
// The HCL implementation lives in internal/hcl; tests provide their own.
type Loader interface {
	Load(ctx context.Context, path string) (*Pipeline, error)
}

// Pipeline is the complete, validated description of one analysis run.
type Pipeline struct {
	Name        string
	Environment Environment
	Notebooks   []Notebook
	Data        *Data
	Publish     Publish

	// Timeout is the wall-clock budget for a whole run. Zero means no
	// budget beyond whatever the CI host enforces externally.
	Timeout time.Duration
}

// Environment describes the interpreter environment the notebooks execute
// against, plus the typesetting toolchain needed for figure embedding.
type Environment struct {
	// ManifestPath points at the declarative package manifest
	// (conda environment.yml shape).
	ManifestPath string

	// Python is the required interpreter version, e.g. "3.11". The
	// provisioner fails if the created environment reports another one.
	Python string

	// Name overrides the environment name from the manifest. Optional.
	Name string

	// Kernel is the fixed kernel name the environment is registered
	// under, and the name the executor targets.
	Kernel string

	// TexLive lists the named typesetting package groups to install.
	TexLive []TexLiveGroup
}

// TexLiveGroup is one named group of typesetting packages.
type TexLiveGroup struct {
	Name     string
	Packages []string
}

// Notebook is a single analysis document, executed in declaration order.
type Notebook struct {
	Name string
	Path string
}

// Data describes the raw instrument data directory checked before any
// notebook runs. Optional; pipelines without a data block skip the check.
type Data struct {
	// EISDir is the root of the raw EIS spectra tree.
	EISDir string

	// Scope selects which spectra the verification covers: "main"
	// (default) or "all".
	Scope string
}

// Publish describes artifact collection after all notebooks succeed.
type Publish struct {
	// PlotsDir is scanned wholesale; every file present at bundle time
	// is included, no filtering.
	PlotsDir string

	// ArtifactName names the uploaded bundle. Defaults to "plots".
	ArtifactName string

	// UploadURL is a pre-signed PUT target. Empty disables upload and
	// leaves the local bundle in the staging directory.
	UploadURL string

	// SummaryPath is the CI run summary stream the markdown renderings
	// are appended to. Empty skips the summary step.
	SummaryPath string

	// FailOnEmpty makes an empty or missing plots directory fatal
	// instead of producing an empty bundle.
	FailOnEmpty bool
}

// Validate checks the invariants the rest of the pipeline assumes. It is
// called once by the loader; a validation error is a fatal startup error.
func (p *Pipeline) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("pipeline name must not be empty")
	}
	if p.Environment.ManifestPath == "" {
		return fmt.Errorf("pipeline %q: environment manifest path is required", p.Name)
	}
	if p.Environment.Kernel == "" {
		return fmt.Errorf("pipeline %q: environment kernel name is required", p.Name)
	}
	if len(p.Notebooks) == 0 {
		return fmt.Errorf("pipeline %q: at least one notebook is required", p.Name)
	}

	seenNames := make(map[string]struct{}, len(p.Notebooks))
	seenPaths := make(map[string]struct{}, len(p.Notebooks))
	for _, nb := range p.Notebooks {
		if nb.Path == "" {
			return fmt.Errorf("pipeline %q: notebook %q has no path", p.Name, nb.Name)
		}
		if _, dup := seenNames[nb.Name]; dup {
			return fmt.Errorf("pipeline %q: duplicate notebook name %q", p.Name, nb.Name)
		}
		if _, dup := seenPaths[nb.Path]; dup {
			return fmt.Errorf("pipeline %q: notebook path %q listed twice", p.Name, nb.Path)
		}
		seenNames[nb.Name] = struct{}{}
		seenPaths[nb.Path] = struct{}{}
	}

	seenGroups := make(map[string]struct{}, len(p.Environment.TexLive))
	for _, g := range p.Environment.TexLive {
		if g.Name == "" {
			return fmt.Errorf("pipeline %q: texlive group without a name", p.Name)
		}
		if _, dup := seenGroups[g.Name]; dup {
			return fmt.Errorf("pipeline %q: duplicate texlive group %q", p.Name, g.Name)
		}
		seenGroups[g.Name] = struct{}{}
	}

	if p.Data != nil {
		if p.Data.EISDir == "" {
			return fmt.Errorf("pipeline %q: data block requires eis_dir", p.Name)
		}
		switch p.Data.Scope {
		case "", "main", "all":
		default:
			return fmt.Errorf("pipeline %q: data scope must be 'main' or 'all', got %q", p.Name, p.Data.Scope)
		}
	}

	if p.Publish.PlotsDir == "" {
		return fmt.Errorf("pipeline %q: publish block requires plots_dir", p.Name)
	}
	if p.Publish.ArtifactName == "" {
		p.Publish.ArtifactName = "plots"
	}

	return nil
}
