package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/placefinder/internal/intent"
)

// Scenario scripts one search session.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// DebounceMS overrides the pipeline's debounce window. Nil means the
	// production default.
	DebounceMS *int `yaml:"debounce_ms,omitempty"`

	// Responses maps a query to what the places API answers for it.
	Responses map[string]ScriptedResponse `yaml:"responses,omitempty"`

	// Steps are the user's inputs, in time order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace, the requests and the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// ScriptedResponse is the API's answer to one query.
type ScriptedResponse struct {
	Results      []map[string]any `yaml:"results,omitempty"`
	ErrorMessage string           `yaml:"error_message,omitempty"`
	Status       string           `yaml:"status,omitempty"`

	// Fail makes the request fail with this message, as a transport
	// error would.
	Fail string `yaml:"fail,omitempty"`

	// HTTPStatus makes the request fail with a non-2xx status.
	HTTPStatus int `yaml:"http_status,omitempty"`

	// DelayMS is how long the answer takes, in virtual time.
	DelayMS int `yaml:"delay_ms,omitempty"`
}

// Step is one user input at a point in virtual time.
// Exactly one of Search and Clear is set.
type Step struct {
	AtMS   int64   `yaml:"at_ms"`
	Search *string `yaml:"search,omitempty"`
	Clear  bool    `yaml:"clear,omitempty"`
}

// Assertion validates the outcome of a run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Kind is the intent kind (trace_contains, trace_count).
	Kind string `yaml:"kind,omitempty"`

	// Query narrows trace_contains to a search_requested with this text.
	Query *string `yaml:"query,omitempty"`

	// Kinds is the expected order (trace_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Queries and AtMS are the expected requests (requests). AtMS is
	// optional; when present it must have one entry per query.
	Queries []string `yaml:"queries,omitempty"`
	AtMS    []int64  `yaml:"at_ms,omitempty"`

	// State holds the expected final state (final_state).
	State *StateExpect `yaml:"state,omitempty"`
}

// StateExpect is a partial final state. Unset fields are not checked.
type StateExpect struct {
	IsLoading *bool    `yaml:"is_loading,omitempty"`
	ErrorMsg  *string  `yaml:"error_msg,omitempty"`
	Places    *int     `yaml:"places,omitempty"`
	Addresses []string `yaml:"addresses,omitempty"`
}

// Assertion type constants.
const (
	AssertRequests      = "requests"
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so that typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// FindScenarios returns the .yaml and .yml files in dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", dir, err)
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)
	return paths, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.DebounceMS != nil && *s.DebounceMS < 0 {
		return fmt.Errorf("debounce_ms must be non-negative")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for query, resp := range s.Responses {
		if resp.DelayMS < 0 {
			return fmt.Errorf("responses[%q]: delay_ms must be non-negative", query)
		}
		if resp.Fail != "" && resp.HTTPStatus != 0 {
			return fmt.Errorf("responses[%q]: fail and http_status are mutually exclusive", query)
		}
		if resp.HTTPStatus != 0 && (resp.HTTPStatus < 300 || resp.HTTPStatus > 599) {
			return fmt.Errorf("responses[%q]: http_status must be a non-2xx status", query)
		}
	}

	var last int64
	for i, step := range s.Steps {
		if step.AtMS < 0 {
			return fmt.Errorf("steps[%d]: at_ms must be non-negative", i)
		}
		if step.AtMS < last {
			return fmt.Errorf("steps[%d]: at_ms %d is before the previous step (%d)", i, step.AtMS, last)
		}
		last = step.AtMS

		if (step.Search != nil) == step.Clear {
			return fmt.Errorf("steps[%d]: exactly one of search or clear is required", i)
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
	case AssertRequests:
		if len(a.AtMS) > 0 && len(a.AtMS) != len(a.Queries) {
			return fmt.Errorf("assertions[%d]: at_ms must have one entry per query", index)
		}
	case AssertTraceContains:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_contains", index)
		}
		if err := validateKind(index, a.Kind); err != nil {
			return err
		}
	case AssertTraceOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for trace_order", index)
		}
		for _, k := range a.Kinds {
			if err := validateKind(index, k); err != nil {
				return err
			}
		}
	case AssertTraceCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_count", index)
		}
		if err := validateKind(index, a.Kind); err != nil {
			return err
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.State == nil {
			return fmt.Errorf("assertions[%d]: state is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// validateKind rejects intent kinds the store never produces.
func validateKind(index int, kind string) error {
	if !slices.Contains(intent.Kinds, intent.Kind(kind)) {
		return fmt.Errorf("assertions[%d]: unknown intent kind %q", index, kind)
	}
	return nil
}
