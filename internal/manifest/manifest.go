// Package manifest reads the declarative environment manifest (conda
// environment.yml shape) that defines the reproducible interpreter
// environment the notebooks execute against. The manifest is consumed
// once at provisioning time and never written.
package manifest

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest is the parsed environment declaration.
type Manifest struct {
	Name     string   `yaml:"name"`
	Channels []string `yaml:"channels"`

	// Dependencies holds conda package specs plus an optional nested
	// pip list, matching the environment.yml layout.
	Dependencies []Dependency `yaml:"dependencies"`
}

// Dependency is one entry of the dependencies list: either a package spec
// string or a `pip:` mapping carrying its own spec list.
type Dependency struct {
	Spec PackageSpec
	Pip  []PackageSpec
}

// PackageSpec is a package name with an optional version pin. Conda specs
// use a single '=' separator, pip specs use '=='; both parse to the same
// structure.
type PackageSpec struct {
	Name    string
	Version string
}

// Pinned reports whether the spec demands an exact version.
func (s PackageSpec) Pinned() bool { return s.Version != "" }

func (s PackageSpec) String() string {
	if !s.Pinned() {
		return s.Name
	}
	return s.Name + "==" + s.Version
}

// UnmarshalYAML accepts either a scalar spec string or a pip mapping.
func (d *Dependency) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		spec, err := ParseSpec(node.Value)
		if err != nil {
			return err
		}
		d.Spec = spec
		return nil
	case yaml.MappingNode:
		var pipBlock struct {
			Pip []string `yaml:"pip"`
		}
		if err := node.Decode(&pipBlock); err != nil {
			return fmt.Errorf("invalid dependency mapping at line %d: %w", node.Line, err)
		}
		if pipBlock.Pip == nil {
			return fmt.Errorf("dependency mapping at line %d is not a pip block", node.Line)
		}
		for _, raw := range pipBlock.Pip {
			spec, err := ParseSpec(raw)
			if err != nil {
				return err
			}
			d.Pip = append(d.Pip, spec)
		}
		return nil
	default:
		return fmt.Errorf("unsupported dependency entry at line %d", node.Line)
	}
}

// ParseSpec parses "name", "name=version" or "name==version". A channel
// prefix ("conda-forge::name") is stripped; it selects a source, not a
// different package.
func ParseSpec(raw string) (PackageSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return PackageSpec{}, fmt.Errorf("empty package spec")
	}
	if i := strings.Index(s, "::"); i >= 0 {
		s = s[i+2:]
	}

	var name, version string
	switch {
	case strings.Contains(s, "=="):
		parts := strings.SplitN(s, "==", 2)
		name, version = parts[0], parts[1]
	case strings.Contains(s, "="):
		parts := strings.SplitN(s, "=", 2)
		name, version = parts[0], parts[1]
	default:
		name = s
	}

	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)
	if name == "" {
		return PackageSpec{}, fmt.Errorf("package spec %q has no name", raw)
	}
	if strings.ContainsAny(name, " \t") {
		return PackageSpec{}, fmt.Errorf("package name %q contains whitespace", name)
	}
	if version != "" && strings.ContainsAny(version, "=<>!") {
		return PackageSpec{}, fmt.Errorf("package spec %q: only exact pins are supported", raw)
	}

	return PackageSpec{Name: name, Version: version}, nil
}

// Load reads and validates the manifest at the given path. Any parse or
// validation error is fatal to the whole run; nothing is provisioned from
// a manifest that cannot be trusted.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}

	return &m, nil
}

// Validate rejects manifests that could provision an ambiguous
// environment: a missing name or two pins for the same package that
// disagree.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest has no environment name")
	}
	if len(m.Dependencies) == 0 {
		return fmt.Errorf("manifest declares no dependencies")
	}

	pins := make(map[string]string)
	for _, spec := range m.Specs() {
		prev, seen := pins[spec.Name]
		if seen && spec.Version != prev {
			return fmt.Errorf("conflicting pins for package %q: %q vs %q", spec.Name, prev, spec.Version)
		}
		pins[spec.Name] = spec.Version
	}

	return nil
}

// Specs flattens the conda and pip dependency lists into one spec list,
// preserving declaration order.
func (m *Manifest) Specs() []PackageSpec {
	var specs []PackageSpec
	for _, dep := range m.Dependencies {
		if dep.Spec.Name != "" {
			specs = append(specs, dep.Spec)
		}
		specs = append(specs, dep.Pip...)
	}
	return specs
}

// PinnedSpecs returns only the specs that demand an exact version; these
// are the ones the provisioner verifies against the live environment.
func (m *Manifest) PinnedSpecs() []PackageSpec {
	var pinned []PackageSpec
	for _, spec := range m.Specs() {
		if spec.Pinned() {
			pinned = append(pinned, spec)
		}
	}
	return pinned
}
