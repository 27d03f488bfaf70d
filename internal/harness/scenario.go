package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/dwhelan/sequences/internal/sequence"
)

// Scenario describes one sequence verification: the declared shape, the
// calls replayed against it, and the expected outcome.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" json:"description"`

	// Mode selects the context mode: "goroutine" (default) or "flow".
	// In flow mode every call is reported from a fresh goroutine.
	Mode string `yaml:"mode,omitempty" json:"mode,omitempty"`

	// SequenceID is a fixed sequence id for deterministic golden files.
	// If empty, defaults to "test-sequence-default".
	SequenceID string `yaml:"sequence_id,omitempty" json:"sequence_id,omitempty"`

	// Sequence is the declared shape, in declaration order.
	Sequence []Node `yaml:"sequence" json:"sequence"`

	// Calls lists step labels in the order they are invoked.
	Calls []string `yaml:"calls" json:"calls"`

	// Expect is the expected outcome. Nil means the sequence must verify.
	Expect *Expectation `yaml:"expect,omitempty" json:"expect,omitempty"`
}

// Node is either a step or a loop.
type Node struct {
	// Step is the step label.
	Step string `yaml:"step,omitempty" json:"step,omitempty"`

	// Times is the step's range. Defaults to once.
	Times *TimesSpec `yaml:"times,omitempty" json:"times,omitempty"`

	// Loop is a nested loop.
	Loop *LoopNode `yaml:"loop,omitempty" json:"loop,omitempty"`
}

// LoopNode is a loop and the nodes declared inside it.
type LoopNode struct {
	// Times is the number of passes. Defaults to any number.
	Times *TimesSpec `yaml:"times,omitempty" json:"times,omitempty"`

	Body []Node `yaml:"body" json:"body"`
}

// Expectation is the expected verification outcome.
type Expectation struct {
	// Pass is true if the sequence must verify without errors.
	Pass bool `yaml:"pass" json:"pass"`

	// Code is the expected code of the first error (e.g., "INCOMPLETE").
	Code string `yaml:"code,omitempty" json:"code,omitempty"`

	// MessageContains is a substring of the first error message.
	MessageContains string `yaml:"message_contains,omitempty" json:"message_contains,omitempty"`
}

// DefaultSequenceID is used when a scenario sets no sequence_id.
const DefaultSequenceID = "test-sequence-default"

// LoadScenario reads and parses a scenario file. YAML (.yaml, .yml) and
// CUE (.cue) are supported. Returns an error if the file doesn't exist, is
// malformed, contains unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario *Scenario
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		scenario, err = ParseYAML(data)
	case ".cue":
		scenario, err = ParseCUE(path, data)
	default:
		return nil, fmt.Errorf("unsupported scenario file extension %q", ext)
	}
	if err != nil {
		return nil, err
	}

	if err := Validate(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseYAML decodes a YAML scenario without validating it.
func ParseYAML(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// ParseCUE evaluates a CUE scenario and decodes its concrete value without
// validating the scenario. filename is used in CUE error positions.
func ParseCUE(filename string, data []byte) (*Scenario, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE: %w", err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("CUE value is not concrete: %w", err)
	}

	raw, err := value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to export CUE: %w", err)
	}

	var scenario Scenario
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to decode CUE value: %w", err)
	}
	return &scenario, nil
}

// Validate checks required fields, normalizes labels to NFC, and checks
// that every call names a declared step. Labels must be unique.
func Validate(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Mode != "" {
		if _, err := sequence.ParseMode(s.Mode); err != nil {
			return fmt.Errorf("mode: %w", err)
		}
	}

	if len(s.Sequence) == 0 {
		return fmt.Errorf("sequence list is required and must be non-empty")
	}

	labels := make(map[string]bool)
	if err := validateNodes("sequence", s.Sequence, labels); err != nil {
		return err
	}

	for i, call := range s.Calls {
		call = norm.NFC.String(call)
		s.Calls[i] = call
		if !labels[call] {
			return fmt.Errorf("calls[%d]: %q is not a declared step", i, call)
		}
	}

	if e := s.Expect; e != nil && e.Pass && (e.Code != "" || e.MessageContains != "") {
		return fmt.Errorf("expect: code and message_contains require pass: false")
	}

	return nil
}

func validateNodes(path string, nodes []Node, labels map[string]bool) error {
	for i := range nodes {
		n := &nodes[i]
		at := fmt.Sprintf("%s[%d]", path, i)

		switch {
		case n.Step != "" && n.Loop != nil:
			return fmt.Errorf("%s: step and loop are mutually exclusive", at)

		case n.Loop != nil:
			if n.Times != nil {
				return fmt.Errorf("%s: loop times belong inside loop", at)
			}
			if _, err := n.Loop.Times.Times(sequence.AnyNumber()); err != nil {
				return fmt.Errorf("%s.loop.times: %w", at, err)
			}
			if err := validateNodes(at+".loop.body", n.Loop.Body, labels); err != nil {
				return err
			}

		case n.Step != "":
			n.Step = norm.NFC.String(n.Step)
			if labels[n.Step] {
				return fmt.Errorf("%s: duplicate step %q", at, n.Step)
			}
			labels[n.Step] = true
			if _, err := n.Times.Times(sequence.Once()); err != nil {
				return fmt.Errorf("%s.times: %w", at, err)
			}

		default:
			return fmt.Errorf("%s: step or loop is required", at)
		}
	}
	return nil
}
