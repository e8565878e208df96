// Package script loads calculators declared in a YAML manifest whose compute
// bodies are small Lua programs. Scripted calculators register through the
// same calculator.Module contract as compiled ones and can be hot reloaded.
package script

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/matiasleandrokruk/calcatalog/internal/domain/calculator"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidManifest = errors.New("invalid calculator manifest")
	ErrInvalidScript   = errors.New("invalid calculator script")
)

// Spec is one manifest entry: a descriptor plus the Lua source of its compute
// function. Source comes either inline (script) or from a file relative to
// the manifest (script_file).
type Spec struct {
	calculator.Descriptor `yaml:",inline"`

	Script     string `yaml:"script,omitempty"`
	ScriptFile string `yaml:"script_file,omitempty"`
}

// Manifest is the document layout of a manifest file.
type Manifest struct {
	Calculators []Spec `yaml:"calculators"`
}

// LoadManifest reads and parses the manifest at path. Script files are
// resolved relative to the manifest's directory and inlined into Script.
func LoadManifest(path string) ([]Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	return ParseManifest(data, filepath.Dir(path))
}

// ParseManifest decodes a manifest document. Unknown keys are rejected so a
// typo in a field name does not silently drop a constraint.
func ParseManifest(data []byte, baseDir string) ([]Spec, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	seen := make(map[string]struct{}, len(m.Calculators))
	specs := make([]Spec, 0, len(m.Calculators))
	for i, s := range m.Calculators {
		s.ID = strings.TrimSpace(s.ID)
		if _, dup := seen[s.ID]; dup && s.ID != "" {
			return nil, fmt.Errorf("%w: calculators[%d]: duplicate id %q", ErrInvalidManifest, i, s.ID)
		}
		seen[s.ID] = struct{}{}

		if err := s.resolveSource(baseDir); err != nil {
			return nil, fmt.Errorf("%w: calculators[%d] %q: %w", ErrInvalidManifest, i, s.ID, err)
		}
		if s.OutputSchema.Result == "" {
			s.OutputSchema.Result = calculator.TypeNumber
		}
		specs = append(specs, s)
	}
	return specs, nil
}

func (s *Spec) resolveSource(baseDir string) error {
	switch {
	case s.Script != "" && s.ScriptFile != "":
		return errors.New("script and script_file are mutually exclusive")
	case s.ScriptFile != "":
		path := s.ScriptFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read script: %w", err)
		}
		s.Script = string(src)
	case strings.TrimSpace(s.Script) == "":
		return errors.New("script or script_file is required")
	}
	return nil
}
