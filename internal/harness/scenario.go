package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/onemodel/internal/model"
	"github.com/roach88/onemodel/internal/store"
)

// Scenario is a named sequence of graph operations followed by assertions
// about the resulting graph.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Steps are executed in order against a fresh store.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated after all steps ran.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one graph operation. Which fields apply depends on Op.
type Step struct {
	Op string `yaml:"op"`

	// As names the created entity, relation type, class or group.
	As string `yaml:"as,omitempty"`

	Name           string `yaml:"name,omitempty"`
	Reverse        string `yaml:"reverse,omitempty"`
	Directionality string `yaml:"directionality,omitempty"`
	AllowMixed     bool   `yaml:"allow_mixed,omitempty"`

	Entity  string `yaml:"entity,omitempty"`
	From    string `yaml:"from,omitempty"`
	To      string `yaml:"to,omitempty"`
	RelType string `yaml:"reltype,omitempty"`
	Group   string `yaml:"group,omitempty"`
	Class   string `yaml:"class,omitempty"`
	Text    string `yaml:"text,omitempty"`

	// ExpectError is the store error code the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion checks the graph after the steps ran.
type Assertion struct {
	Type string `yaml:"type"`

	// search
	From            string   `yaml:"from,omitempty"`
	Text            string   `yaml:"text,omitempty"`
	Depth           *int     `yaml:"depth,omitempty"`
	StopAfterAny    bool     `yaml:"stop_after_any,omitempty"`
	IncludeArchived bool     `yaml:"include_archived,omitempty"`
	Expect          []string `yaml:"expect,omitempty"`

	// group_members
	Group string `yaml:"group,omitempty"`

	// entity_count
	Count int `yaml:"count,omitempty"`

	// entity_exists
	Entity string `yaml:"entity,omitempty"`
	Exists *bool  `yaml:"exists,omitempty"`
}

// Step op constants.
const (
	OpCreateEntity  = "create_entity"
	OpCreateRelType = "create_reltype"
	OpRelate        = "relate"
	OpAddText       = "add_text"
	OpCreateGroup   = "create_group"
	OpAddToGroup    = "add_to_group"
	OpSetClass      = "set_class"
	OpCreateClass   = "create_class"
	OpArchive       = "archive"
	OpDeleteEntity  = "delete_entity"
)

// Assertion type constants.
const (
	AssertSearch       = "search"
	AssertGroupMembers = "group_members"
	AssertEntityCount  = "entity_count"
	AssertEntityExists = "entity_exists"
)

// Built-in aliases.
const (
	SystemAlias = "system"
	HasAlias    = "has"
)

var knownCodes = map[string]bool{
	string(store.CodeNotFound):            true,
	string(store.CodeCardinality):         true,
	string(store.CodeMixedClasses):        true,
	string(store.CodeTxMismatch):          true,
	string(store.CodeAllocationExhausted): true,
	string(store.CodeDuplicateName):       true,
	string(store.CodeInvalidInput):        true,
	string(store.CodeIntegrity):           true,
	string(store.CodeRenumberInvariant):   true,
	string(store.CodeSchemaVersion):       true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or refers to undefined aliases.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// aliasSet tracks the aliases defined so far, one namespace per kind.
type aliasSet struct {
	entities, relTypes, classes, groups map[string]bool
}

func newAliasSet() *aliasSet {
	return &aliasSet{
		entities: map[string]bool{SystemAlias: true},
		relTypes: map[string]bool{HasAlias: true},
		classes:  map[string]bool{},
		groups:   map[string]bool{},
	}
}

// validateScenario checks required fields and that every alias is defined
// before it is used.
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

	aliases := newAliasSet()
	for i, step := range s.Steps {
		if err := validateStep(step, aliases); err != nil {
			return fmt.Errorf("steps[%d] (%s): %w", i, step.Op, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a, aliases); err != nil {
			return fmt.Errorf("assertions[%d] (%s): %w", i, a.Type, err)
		}
	}
	return nil
}

func validateStep(step Step, aliases *aliasSet) error {
	if step.ExpectError != "" && !knownCodes[step.ExpectError] {
		return fmt.Errorf("unknown error code %q", step.ExpectError)
	}

	need := func(field, value string) error {
		if value == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
	ref := func(kind string, set map[string]bool, alias string) error {
		if alias == "" {
			return fmt.Errorf("%s is required", kind)
		}
		if !set[alias] {
			return fmt.Errorf("undefined %s alias %q", kind, alias)
		}
		return nil
	}
	define := func(set map[string]bool) error {
		if step.As == "" {
			return nil
		}
		if set[step.As] {
			return fmt.Errorf("alias %q already defined", step.As)
		}
		// A step expected to fail creates nothing to refer to.
		if step.ExpectError == "" {
			set[step.As] = true
		}
		return nil
	}

	var errs []error
	switch step.Op {
	case OpCreateEntity:
		errs = append(errs, need("name", step.Name))
		if step.Class != "" {
			errs = append(errs, ref("class", aliases.classes, step.Class))
		}
		errs = append(errs, define(aliases.entities))
	case OpCreateRelType:
		errs = append(errs, need("name", step.Name), need("reverse", step.Reverse))
		if step.Directionality != "" && !model.ValidDirectionalities[model.Directionality(step.Directionality)] {
			errs = append(errs, fmt.Errorf("invalid directionality %q", step.Directionality))
		}
		errs = append(errs, define(aliases.relTypes))
	case OpRelate:
		errs = append(errs,
			ref("entity", aliases.entities, step.From),
			ref("entity", aliases.entities, step.To),
			ref("reltype", aliases.relTypes, step.RelType))
	case OpAddText:
		errs = append(errs, ref("entity", aliases.entities, step.Entity), need("text", step.Text))
	case OpCreateGroup:
		errs = append(errs, need("name", step.Name))
		if step.From != "" {
			errs = append(errs, ref("entity", aliases.entities, step.From))
			if step.RelType != "" {
				errs = append(errs, ref("reltype", aliases.relTypes, step.RelType))
			}
		}
		errs = append(errs, define(aliases.groups))
	case OpAddToGroup:
		errs = append(errs,
			ref("group", aliases.groups, step.Group),
			ref("entity", aliases.entities, step.Entity))
	case OpCreateClass:
		errs = append(errs, need("name", step.Name), define(aliases.classes))
	case OpSetClass:
		errs = append(errs,
			ref("entity", aliases.entities, step.Entity),
			ref("class", aliases.classes, step.Class))
	case OpArchive, OpDeleteEntity:
		errs = append(errs, ref("entity", aliases.entities, step.Entity))
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(a Assertion, aliases *aliasSet) error {
	switch a.Type {
	case AssertSearch:
		if !aliases.entities[a.From] {
			return fmt.Errorf("undefined entity alias %q", a.From)
		}
		if a.Depth != nil && *a.Depth < 0 {
			return fmt.Errorf("depth must be non-negative")
		}
		return checkEntityAliases(a.Expect, aliases)
	case AssertGroupMembers:
		if !aliases.groups[a.Group] {
			return fmt.Errorf("undefined group alias %q", a.Group)
		}
		return checkEntityAliases(a.Expect, aliases)
	case AssertEntityCount:
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative")
		}
	case AssertEntityExists:
		if !aliases.entities[a.Entity] {
			return fmt.Errorf("undefined entity alias %q", a.Entity)
		}
		if a.Exists == nil {
			return fmt.Errorf("exists is required")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func checkEntityAliases(names []string, aliases *aliasSet) error {
	for _, n := range names {
		if !aliases.entities[n] {
			return fmt.Errorf("undefined entity alias %q", n)
		}
	}
	return nil
}
