package envfile

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition is the subset of a conda environment file that envrebuild
// looks at. Unknown keys (variables, prefix, ...) are ignored; the file is
// always handed to the package manager verbatim.
//
// Example:
//
//	name: gpu
//	channels: [conda-forge]
//	dependencies:
//	  - python=3.11
//	  - pip:
//	      - torch
type Definition struct {
	Name         string       `yaml:"name"`
	Channels     []string     `yaml:"channels"`
	Dependencies []Dependency `yaml:"dependencies"`
}

// Dependency is one entry of the dependencies list. Conda entries are
// plain strings; a mapping entry carries a nested pip requirement list.
type Dependency struct {
	// Spec is the conda match spec (e.g. "numpy>=1.26"). Empty for pip blocks.
	Spec string

	// Pip lists the requirements of a "- pip: [...]" entry.
	Pip []string
}

// UnmarshalYAML accepts either a scalar spec or a {pip: [...]} mapping.
func (d *Dependency) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		d.Spec = value.Value
		return nil
	case yaml.MappingNode:
		var block struct {
			Pip []string `yaml:"pip"`
		}
		if err := value.Decode(&block); err != nil {
			return err
		}
		d.Pip = block.Pip
		return nil
	default:
		return fmt.Errorf("line %d: dependency must be a string or a pip mapping", value.Line)
	}
}

// PackageCount returns the number of conda specs plus pip requirements.
func (d *Definition) PackageCount() int {
	n := 0
	for _, dep := range d.Dependencies {
		if dep.Spec != "" {
			n++
		}
		n += len(dep.Pip)
	}
	return n
}

// Parse decodes an environment definition from r. An empty document is
// accepted and yields a zero Definition.
func Parse(r io.Reader) (*Definition, error) {
	var def Definition
	if err := yaml.NewDecoder(r).Decode(&def); err != nil && err != io.EOF {
		return nil, err
	}
	return &def, nil
}

// Load opens and parses the environment definition at path.
func Load(path string) (*Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open environment file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	def, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment file %s: %w", path, err)
	}
	return def, nil
}
