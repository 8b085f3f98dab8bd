// Package dna holds DNA layouts (assets) and the values converters read.
package dna

import (
	"fmt"
	"hash/fnv"
	"os"

	"gopkg.in/yaml.v3"
)

// Variable defines one named DNA value.
type Variable struct {
	Name    string  `yaml:"name" json:"name"`
	Default float64 `yaml:"default" json:"default"`
}

// Asset is a DNA layout: the ordered list of names a character carries.
type Asset struct {
	Name      string     `yaml:"name" json:"name"`
	Variables []Variable `yaml:"dna" json:"dna"`
}

// DefaultAsset is used when no asset file is configured.
func DefaultAsset() *Asset {
	return &Asset{
		Name: "default",
		Variables: []Variable{
			{Name: "height", Default: 0.5},
			{Name: "weight", Default: 0.5},
			{Name: "width", Default: 0.5},
			{Name: "armLength", Default: 0.5},
			{Name: "legLength", Default: 0.5},
			{Name: "headSize", Default: 0.5},
		},
	}
}

// LoadAsset loads a DNA asset from a YAML file.
func LoadAsset(path string) (*Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read DNA asset: %w", err)
	}
	return ParseAsset(data)
}

// ParseAsset decodes and validates a YAML DNA asset.
func ParseAsset(data []byte) (*Asset, error) {
	var asset Asset
	if err := yaml.Unmarshal(data, &asset); err != nil {
		return nil, fmt.Errorf("failed to parse DNA asset: %w", err)
	}
	if err := asset.Validate(); err != nil {
		return nil, err
	}
	return &asset, nil
}

// Validate checks that every variable has a unique, non-empty name.
func (a *Asset) Validate() error {
	if len(a.Variables) == 0 {
		return fmt.Errorf("DNA asset %q has no variables", a.Name)
	}
	seen := make(map[string]bool, len(a.Variables))
	for i, v := range a.Variables {
		if v.Name == "" {
			return fmt.Errorf("DNA asset %q: variable %d has no name", a.Name, i)
		}
		if seen[v.Name] {
			return fmt.Errorf("DNA asset %q: duplicate variable %q", a.Name, v.Name)
		}
		seen[v.Name] = true
	}
	return nil
}

// Names returns the variable names in asset order.
func (a *Asset) Names() []string {
	names := make([]string, len(a.Variables))
	for i, v := range a.Variables {
		names[i] = v.Name
	}
	return names
}

// Defaults returns a Set holding every variable's default.
func (a *Asset) Defaults() Set {
	set := make(Set, len(a.Variables))
	for _, v := range a.Variables {
		set[v.Name] = v.Default
	}
	return set
}

// NameHash identifies the layout. Assets with the same names in the same
// order hash the same.
func (a *Asset) NameHash() uint32 {
	h := fnv.New32a()
	for _, v := range a.Variables {
		h.Write([]byte(v.Name))
		h.Write([]byte{0})
	}
	return h.Sum32()
}
