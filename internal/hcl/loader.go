// Package hcl is the HCL implementation of config.Loader. A pipeline file
// holds a single pipeline block; its attributes may reference process
// environment variables through the `env` object, which is how CI-provided
// values such as the summary stream path reach the model.
package hcl

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"labpipe/internal/config"
	"labpipe/internal/ctxlog"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL pipeline loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses and validates the pipeline file at the given path.
func (l *Loader) Load(ctx context.Context, path string) (*config.Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse pipeline file %s: %w", path, diags)
	}

	var root fileRoot
	diags = gohcl.DecodeBody(file.Body, evalContext(), &root)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode pipeline file %s: %w", path, diags)
	}

	if len(root.Pipelines) != 1 {
		return nil, fmt.Errorf("pipeline file %s must contain exactly one pipeline block, found %d", path, len(root.Pipelines))
	}

	pipeline, err := translate(root.Pipelines[0])
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline file %s: %w", path, err)
	}
	if err := pipeline.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline file %s: %w", path, err)
	}

	logger.Debug("Pipeline loaded and translated into model.",
		"pipeline", pipeline.Name, "notebooks", len(pipeline.Notebooks))
	return pipeline, nil
}

// evalContext exposes the process environment to attribute expressions as
// the object `env`, e.g. `summary_path = env.GITHUB_STEP_SUMMARY`.
func evalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		pair := strings.SplitN(kv, "=", 2)
		if len(pair) == 2 && pair[0] != "" {
			vars[pair[0]] = cty.StringVal(pair[1])
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(vars),
		},
	}
}

// translate converts the decoded schema into the agnostic model.
func translate(s *pipelineSchema) (*config.Pipeline, error) {
	if s.Environment == nil {
		return nil, fmt.Errorf("pipeline %q: environment block is required", s.Name)
	}
	if s.Publish == nil {
		return nil, fmt.Errorf("pipeline %q: publish block is required", s.Name)
	}

	p := &config.Pipeline{
		Name: s.Name,
		Environment: config.Environment{
			ManifestPath: s.Environment.Manifest,
			Python:       s.Environment.Python,
			Name:         s.Environment.Name,
			Kernel:       s.Environment.Kernel,
		},
		Publish: config.Publish{
			PlotsDir:     s.Publish.PlotsDir,
			ArtifactName: s.Publish.Artifact,
			UploadURL:    s.Publish.UploadURL,
			SummaryPath:  s.Publish.SummaryPath,
			FailOnEmpty:  s.Publish.FailOnEmpty,
		},
	}

	for _, g := range s.Environment.TexLive {
		p.Environment.TexLive = append(p.Environment.TexLive, config.TexLiveGroup{
			Name:     g.Name,
			Packages: g.Packages,
		})
	}

	for _, nb := range s.Notebooks {
		p.Notebooks = append(p.Notebooks, config.Notebook{Name: nb.Name, Path: nb.Path})
	}

	if s.Data != nil {
		p.Data = &config.Data{EISDir: s.Data.EISDir, Scope: s.Data.Scope}
	}

	if s.Timeout != "" {
		d, err := time.ParseDuration(s.Timeout)
		if err != nil {
			return nil, fmt.Errorf("pipeline %q: invalid timeout %q: %w", s.Name, s.Timeout, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("pipeline %q: timeout must be positive, got %q", s.Name, s.Timeout)
		}
		p.Timeout = d
	}

	return p, nil
}
