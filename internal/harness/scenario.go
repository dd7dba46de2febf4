package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a catalog test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Seed is an optional seed file applied before setup. Relative paths
	// are resolved against the scenario file.
	Seed string `yaml:"seed,omitempty"`

	// Setup contains steps that establish initial state. They must succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the steps under test. Each may carry an expect clause.
	Flow []Step `yaml:"flow"`

	// Assertions validate the trace and the final catalog.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one catalog operation.
type Step struct {
	// Op is the operation name, e.g. "create_edge".
	Op string `yaml:"op"`

	// Args holds the operation arguments.
	Args Args `yaml:"args"`

	// Expect specifies the expected outcome. If nil the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Args is the union of all operation arguments. Each operation reads the
// fields it needs.
type Args struct {
	ID       string   `yaml:"id,omitempty"`
	Node     string   `yaml:"node,omitempty"`
	Parent   string   `yaml:"parent,omitempty"`
	Child    string   `yaml:"child,omitempty"`
	Item     string   `yaml:"item,omitempty"`
	Active   *bool    `yaml:"active,omitempty"`
	Root     bool     `yaml:"root,omitempty"`
	Sequence int64    `yaml:"sequence,omitempty"`
	SortKey  *int64   `yaml:"sort_key,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
	Order    []string `yaml:"order,omitempty"`
	Live     bool     `yaml:"live,omitempty"`
	Own      bool     `yaml:"own,omitempty"`
	Skip     bool     `yaml:"skip_upstream,omitempty"`
}

// Expect specifies the expected outcome of a flow step.
type Expect struct {
	// Error is the expected error code, e.g. "CYCLIC_GRAPH". Empty means
	// the step must succeed.
	Error string `yaml:"error,omitempty"`

	// Items is the expected result of an items step.
	Items []string `yaml:"items,omitempty"`

	// Unordered compares Items as a set.
	Unordered bool `yaml:"unordered,omitempty"`

	// Paths is the expected result of a breadcrumbs step, one "R>A>B"
	// string per breadcrumb.
	Paths []string `yaml:"paths,omitempty"`

	// Written lists the nodes an invalidate or rebuild step must write.
	Written []string `yaml:"written,omitempty"`
}

// Assertion validates the trace or the final catalog.
type Assertion struct {
	// Type selects the assertion. See the AssertXxx constants.
	Type string `yaml:"type"`

	// Node is the node under test (items, breadcrumbs).
	Node string `yaml:"node,omitempty"`

	// Item is the item under test (breadcrumbs).
	Item string `yaml:"item,omitempty"`

	// Items is the expected item list (items).
	Items []string `yaml:"items,omitempty"`

	// Unordered compares Items as a set (items).
	Unordered bool `yaml:"unordered,omitempty"`

	// Live compares against a live computation instead of the cache (items).
	Live bool `yaml:"live,omitempty"`

	// Paths are the expected breadcrumbs (breadcrumbs).
	Paths []string `yaml:"paths,omitempty"`

	// Op and Outcome select flow steps (trace_count). Outcome defaults to
	// any outcome.
	Op      string `yaml:"op,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`

	// Count is the expected number of matches (trace_count).
	Count int `yaml:"count,omitempty"`

	// Metric names a cache counter: recomputes, writes, short_circuits,
	// live_computes or cycle_rejections (metric).
	Metric string `yaml:"metric,omitempty"`

	// Value is the expected counter value (metric).
	Value float64 `yaml:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertItems           = "items"
	AssertBreadcrumbs     = "breadcrumbs"
	AssertTraceCount      = "trace_count"
	AssertCacheConsistent = "cache_consistent"
	AssertAcyclic         = "acyclic"
	AssertMetric          = "metric"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Seed != "" && !filepath.IsAbs(scenario.Seed) {
		scenario.Seed = filepath.Join(filepath.Dir(path), scenario.Seed)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Seed != "" {
		if _, err := os.Stat(s.Seed); os.IsNotExist(err) {
			return fmt.Errorf("seed file not found: %s", s.Seed)
		}
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is not allowed in setup", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateStep checks that an operation is known and has its arguments.
func validateStep(step Step) error {
	a := step.Args
	switch step.Op {
	case "":
		return fmt.Errorf("op is required")
	case OpCreateNode:
		if a.ID == "" {
			return fmt.Errorf("%s: id is required", step.Op)
		}
	case OpUpdateNode, OpSetBase, OpDeleteNode, OpItems, OpInvalidate:
		if a.Node == "" {
			return fmt.Errorf("%s: node is required", step.Op)
		}
	case OpCreateEdge, OpDeleteEdge:
		if a.Parent == "" || a.Child == "" {
			return fmt.Errorf("%s: parent and child are required", step.Op)
		}
	case OpCreateAssignment, OpDeleteAssignment:
		if a.Node == "" || a.Item == "" {
			return fmt.Errorf("%s: node and item are required", step.Op)
		}
	case OpReorderEdges:
		if a.Parent == "" || len(a.Order) == 0 {
			return fmt.Errorf("%s: parent and order are required", step.Op)
		}
	case OpReorderAssignments:
		if a.Node == "" || len(a.Order) == 0 {
			return fmt.Errorf("%s: node and order are required", step.Op)
		}
	case OpBreadcrumbs:
		if (a.Node == "") == (a.Item == "") {
			return fmt.Errorf("%s: exactly one of node or item is required", step.Op)
		}
	case OpRebuild:
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertItems:
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for items", index)
		}
	case AssertBreadcrumbs:
		if (a.Node == "") == (a.Item == "") {
			return fmt.Errorf("assertions[%d]: exactly one of node or item is required for breadcrumbs", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
	case AssertMetric:
		if _, ok := metricNames[a.Metric]; !ok {
			return fmt.Errorf("assertions[%d]: unknown metric %q", index, a.Metric)
		}
	case AssertCacheConsistent, AssertAcyclic:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
