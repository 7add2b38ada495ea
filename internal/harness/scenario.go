package harness

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is a sequence of documents applied to one live session.
type Scenario struct {
	// Name uniquely identifies this scenario. It prefixes pass ids and
	// names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Assets lists the asset ids the session can resolve. Any other id
	// fails to resolve.
	Assets []string `yaml:"assets,omitempty"`

	// Steps are applied in order, one pass each.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final live graph and pass log.
	Assertions []Assertion `yaml:"assertions"`

	// dir is the directory document paths are relative to.
	dir string
}

// Step actions.
const (
	ActionReload = "reload" // spawn into an empty graph, reconcile otherwise
	ActionUpdate = "update" // re-apply every attribute, no structural change
)

// Step applies one document.
type Step struct {
	// Document is a scene document or intermediate tree file.
	Document string `yaml:"document"`

	// Action is reload (the default) or update.
	Action string `yaml:"action,omitempty"`

	// Expect checks the pass result. If nil, any outcome is accepted.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause checks a pass. Only the fields that are set are compared.
type ExpectClause struct {
	Kind          string `yaml:"kind,omitempty"`
	Creates       *int   `yaml:"creates,omitempty"`
	Destroys      *int   `yaml:"destroys,omitempty"`
	Applied       *int   `yaml:"applied,omitempty"`
	Skipped       *int   `yaml:"skipped,omitempty"`
	AssetFailures *int   `yaml:"asset_failures,omitempty"`

	// Error is the expected runtime error code, e.g. UNKNOWN_FACET_KIND.
	// Empty means the pass must succeed.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the state after the last step.
type Assertion struct {
	// Type is one of node_count, facet_count, field, absent, pass_count.
	Type string `yaml:"type"`

	// Count is the expected number (node_count, facet_count, pass_count).
	Count int `yaml:"count,omitempty"`

	// Node is the name of a live node (field, absent).
	Node string `yaml:"node,omitempty"`

	// Facet is a facet kind on Node (field, absent). Empty targets the
	// node itself.
	Facet string `yaml:"facet,omitempty"`

	// Field is the live field name (field).
	Field string `yaml:"field,omitempty"`

	// Equals is the expected rendering of the field value (field).
	Equals string `yaml:"equals,omitempty"`

	// Status and Kind filter logged passes (pass_count).
	Status string `yaml:"status,omitempty"`
	Kind   string `yaml:"kind,omitempty"`
}

// Assertion type constants.
const (
	AssertNodeCount  = "node_count"
	AssertFacetCount = "facet_count"
	AssertField      = "field"
	AssertAbsent     = "absent"
	AssertPassCount  = "pass_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.dir = filepath.Dir(path)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// DocumentPath resolves a step's document against the scenario location.
func (s *Scenario) DocumentPath(step Step) string {
	if filepath.IsAbs(step.Document) || s.dir == "" {
		return step.Document
	}
	return filepath.Join(s.dir, step.Document)
}

// FindScenarios returns the .yaml and .yml files under dir whose base name
// (without extension) matches filter. An empty filter matches everything.
func FindScenarios(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			if ok, _ := filepath.Match(filter, name); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Document == "" {
			return fmt.Errorf("steps[%d]: document is required", i)
		}
		if _, err := os.Stat(s.DocumentPath(step)); err != nil {
			return fmt.Errorf("steps[%d]: document not found: %s", i, s.DocumentPath(step))
		}
		switch step.Action {
		case "", ActionReload, ActionUpdate:
		default:
			return fmt.Errorf("steps[%d]: unknown action %q", i, step.Action)
		}
		if e := step.Expect; e != nil {
			switch e.Kind {
			case "", "spawn", "reconcile", "update":
			default:
				return fmt.Errorf("steps[%d].expect: unknown kind %q", i, e.Kind)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertNodeCount, AssertFacetCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertField:
		if a.Node == "" || a.Field == "" {
			return fmt.Errorf("assertions[%d]: node and field are required for field", index)
		}
	case AssertAbsent:
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for absent", index)
		}
	case AssertPassCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for pass_count", index)
		}
		switch a.Status {
		case "", "ok", "failed":
		default:
			return fmt.Errorf("assertions[%d]: unknown status %q", index, a.Status)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
