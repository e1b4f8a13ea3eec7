package chains

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// File is the on-disk shape of a chain override file
type File struct {
	Chains []Descriptor `toml:"chains" yaml:"chains"`
}

// LoadFile reads chain descriptors from a .toml, .yaml or .yml file
func LoadFile(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading chains file: %w", err)
	}

	var f File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), &f); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported chains file extension %q", ext)
	}

	for _, d := range f.Chains {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return f.Chains, nil
}

// Apply registers every descriptor from an override file on top of r
func (r *Registry) Apply(path string) error {
	descriptors, err := LoadFile(path)
	if err != nil {
		return err
	}
	for _, d := range descriptors {
		r.Register(d)
	}
	return nil
}
