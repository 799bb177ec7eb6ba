// Package provision builds the isolated interpreter environment the
// notebooks execute against: the declared conda environment, the notebook
// execution engine, the kernel registration under its fixed name, and the
// typesetting toolchain used for figure embedding. Every step is a single
// attempt; any failure aborts the run before a notebook is touched.
package provision

import (
	"context"
	"fmt"
	"strings"

	"labpipe/internal/config"
	"labpipe/internal/ctxlog"
	"labpipe/internal/manifest"
	"labpipe/internal/runner"
)

// enginePackages is the on-demand notebook execution engine installed on
// top of the declared manifest.
var enginePackages = []string{"nbconvert", "ipykernel"}

// Provisioner creates and verifies one environment per pipeline run.
type Provisioner struct {
	run runner.Runner
}

// New returns a Provisioner that shells out through the given runner.
func New(r runner.Runner) *Provisioner {
	return &Provisioner{run: r}
}

// Provision builds the environment described by the pipeline and returns
// the resolved environment name the executor should target.
func (p *Provisioner) Provision(ctx context.Context, env config.Environment) (string, error) {
	logger := ctxlog.FromContext(ctx)

	m, err := manifest.Load(env.ManifestPath)
	if err != nil {
		return "", err
	}

	envName := env.Name
	if envName == "" {
		envName = m.Name
	}
	logger.Info("Provisioning environment.", "env", envName, "manifest", env.ManifestPath)

	if _, err := p.run.Run(ctx, runner.Command{
		Name: "conda",
		Args: []string{"env", "create", "--yes", "--name", envName, "--file", env.ManifestPath},
	}); err != nil {
		return "", fmt.Errorf("environment creation failed: %w", err)
	}

	if _, err := p.run.Run(ctx, runner.Command{
		Name: "conda",
		Args: append([]string{"run", "--name", envName, "python", "-m", "pip", "install"}, enginePackages...),
	}); err != nil {
		return "", fmt.Errorf("execution engine install failed: %w", err)
	}

	// Register the environment as a selectable kernel under its fixed
	// name so the executor can target it unambiguously.
	if _, err := p.run.Run(ctx, runner.Command{
		Name: "conda",
		Args: []string{"run", "--name", envName, "python", "-m", "ipykernel",
			"install", "--user", "--name", env.Kernel},
	}); err != nil {
		return "", fmt.Errorf("kernel registration failed: %w", err)
	}
	logger.Info("Kernel registered.", "kernel", env.Kernel)

	for _, group := range env.TexLive {
		logger.Info("Installing typesetting package group.", "group", group.Name, "packages", len(group.Packages))
		if _, err := p.run.Run(ctx, runner.Command{
			Name: "tlmgr",
			Args: append([]string{"install"}, group.Packages...),
		}); err != nil {
			return "", fmt.Errorf("typesetting group %q install failed: %w", group.Name, err)
		}
	}

	if err := p.verifyInterpreter(ctx, envName, env.Python); err != nil {
		return "", err
	}
	if err := p.verifyPins(ctx, envName, m.PinnedSpecs()); err != nil {
		return "", err
	}

	logger.Info("Environment provisioned.", "env", envName)
	return envName, nil
}

// verifyInterpreter checks that the created environment actually carries
// the requested interpreter version.
func (p *Provisioner) verifyInterpreter(ctx context.Context, envName, want string) error {
	if want == "" {
		return nil
	}

	res, err := p.run.Run(ctx, runner.Command{
		Name: "conda",
		Args: []string{"run", "--name", envName, "python", "--version"},
	})
	if err != nil {
		return fmt.Errorf("interpreter version check failed: %w", err)
	}

	// Output shape: "Python 3.11.9".
	got := strings.TrimSpace(string(res.Stdout))
	got = strings.TrimPrefix(got, "Python ")
	if got != want && !strings.HasPrefix(got, want+".") {
		return fmt.Errorf("environment %q has interpreter %q, manifest demands %q", envName, got, want)
	}

	return nil
}

// verifyPins compares the live environment against the manifest's exact
// pins. A stale or cached package at the wrong version must fail the run
// rather than silently produce artifacts from an undeclared environment.
// The interpreter pin is excluded: pip never lists the interpreter as a
// distribution, and verifyInterpreter already covers it.
func (p *Provisioner) verifyPins(ctx context.Context, envName string, pins []manifest.PackageSpec) error {
	packages := make([]manifest.PackageSpec, 0, len(pins))
	for _, pin := range pins {
		if normalizeName(pin.Name) == "python" {
			continue
		}
		packages = append(packages, pin)
	}
	if len(packages) == 0 {
		return nil
	}

	res, err := p.run.Run(ctx, runner.Command{
		Name: "conda",
		Args: []string{"run", "--name", envName, "python", "-m", "pip", "list", "--format=freeze"},
	})
	if err != nil {
		return fmt.Errorf("environment verification failed: %w", err)
	}

	installed := parseFreeze(string(res.Stdout))
	for _, pin := range packages {
		got, ok := installed[normalizeName(pin.Name)]
		if !ok {
			return fmt.Errorf("pinned package %q is missing from environment %q", pin.String(), envName)
		}
		if got != pin.Version {
			return fmt.Errorf("environment %q has %s==%s, manifest pins %s", envName, pin.Name, got, pin.String())
		}
	}

	return nil
}

// parseFreeze parses `pip list --format=freeze` output (name==version per
// line) into a name→version map.
func parseFreeze(out string) map[string]string {
	installed := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "==", 2)
		if len(parts) != 2 {
			continue
		}
		installed[normalizeName(parts[0])] = strings.TrimSpace(parts[1])
	}
	return installed
}

// normalizeName folds the case/separator variants package indexes allow
// so "Frequency-Tools" and "frequency_tools" compare equal.
func normalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", "-"))
}
