// Package scenario loads YAML and JSON request/assert scenarios and runs
// them against a running qwikbasket twin.
package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is one test scenario file.
type Scenario struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description" json:"description,omitempty"`
	Setup       Setup             `yaml:"setup" json:"setup"`
	Variables   map[string]string `yaml:"variables" json:"variables,omitempty"`
	Steps       []Step            `yaml:"steps" json:"steps"`
}

// Setup runs before the first step, in field order.
type Setup struct {
	Reset  bool           `yaml:"reset" json:"reset,omitempty"`
	Seed   string         `yaml:"seed" json:"seed,omitempty"` // JSON state file, relative to the scenario
	Config map[string]any `yaml:"config" json:"config,omitempty"`
	Faults map[string]int `yaml:"faults" json:"faults,omitempty"` // op -> count, 0 until cleared
	Login  string         `yaml:"login" json:"login,omitempty"`   // phone; the token is sent on every step
}

// Step is a single request/assert pair.
type Step struct {
	Name    string            `yaml:"name" json:"name"`
	Request Request           `yaml:"request" json:"request"`
	Capture map[string]string `yaml:"capture" json:"capture,omitempty"` // var -> JSON path
	Assert  Assert            `yaml:"assert" json:"assert"`
}

// Request is the HTTP request for a step. Path is relative to the twin's
// base URL. Body is encoded as JSON.
type Request struct {
	Method  string            `yaml:"method" json:"method"`
	Path    string            `yaml:"path" json:"path"`
	Headers map[string]string `yaml:"headers" json:"headers,omitempty"`
	Body    any               `yaml:"body" json:"body,omitempty"`
}

// Assert is what a step expects back.
type Assert struct {
	Status       int            `yaml:"status" json:"status,omitempty"`
	BodyContains string         `yaml:"body_contains" json:"body_contains,omitempty"`
	Body         map[string]any `yaml:"body" json:"body,omitempty"` // JSON path -> value or operator map
}

var decoders = map[string]func([]byte, any) error{
	".json": json.Unmarshal,
	".yaml": yaml.Unmarshal,
	".yml":  yaml.Unmarshal,
}

func (s *Scenario) validate() error {
	switch {
	case s.Name == "":
		return errors.New("name is required")
	case len(s.Steps) == 0:
		return errors.New("at least one step is required")
	}
	for i, st := range s.Steps {
		if st.Request.Method == "" || st.Request.Path == "" {
			return fmt.Errorf("step %d needs a method and path", i+1)
		}
	}
	return nil
}

// LoadScenario reads one scenario file, choosing JSON or YAML by extension.
// A relative seed path is taken from the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := decoders[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported scenario format %q (expected .json, .yaml, or .yml)", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}
	s := new(Scenario)
	if err := decode(data, s); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	if seed := s.Setup.Seed; seed != "" && !filepath.IsAbs(seed) {
		s.Setup.Seed = filepath.Join(filepath.Dir(path), seed)
	}
	return s, nil
}

// LoadDir loads every scenario file directly inside dir, sorted by file
// name. Subdirectories such as seeds/ are skipped.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scenario directory %s: %w", dir, err)
	}
	var out []*Scenario
	for _, e := range entries {
		if _, known := decoders[strings.ToLower(filepath.Ext(e.Name()))]; e.IsDir() || !known {
			continue
		}
		s, err := LoadScenario(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", dir)
	}
	return out, nil
}
