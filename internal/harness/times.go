package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dwhelan/sequences/internal/sequence"
)

// TimesSpec is the scenario form of an occurrence range. It is written
// either as a name:
//
//	times: at_most_once
//
// or as bounds:
//
//	times: { exactly: 3 }
//	times: { min: 1, max: 4 }
//	times: { min: 2 }          # at least 2
type TimesSpec struct {
	Name    string `yaml:"-" json:"-"`
	Exactly *int   `yaml:"exactly,omitempty" json:"exactly,omitempty"`
	Min     *int   `yaml:"min,omitempty" json:"min,omitempty"`
	Max     *int   `yaml:"max,omitempty" json:"max,omitempty"`
}

// timesBounds has the fields of TimesSpec without its decoders.
type timesBounds TimesSpec

// namedTimes maps scenario names to ranges.
var namedTimes = map[string]func() sequence.Times{
	"once":          sequence.Once,
	"never":         sequence.Never,
	"at_most_once":  sequence.AtMostOnce,
	"at_least_once": sequence.AtLeastOnce,
	"any":           sequence.AnyNumber,
	"any_number":    sequence.AnyNumber,
}

// UnmarshalYAML accepts a scalar name or a bounds mapping.
func (s *TimesSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		s.Name = value.Value
		return nil
	}
	var b timesBounds
	if err := value.Decode(&b); err != nil {
		return err
	}
	*s = TimesSpec(b)
	return nil
}

// UnmarshalJSON accepts a string name or a bounds object.
func (s *TimesSpec) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &s.Name)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var b timesBounds
	if err := dec.Decode(&b); err != nil {
		return err
	}
	*s = TimesSpec(b)
	return nil
}

// Times converts the bounds to a range. A nil TimesSpec yields def.
func (s *TimesSpec) Times(def sequence.Times) (sequence.Times, error) {
	if s == nil {
		return def, nil
	}

	if s.Name != "" {
		if s.Exactly != nil || s.Min != nil || s.Max != nil {
			return sequence.Times{}, fmt.Errorf("times %q cannot be combined with bounds", s.Name)
		}
		ctor, ok := namedTimes[strings.ToLower(strings.TrimSpace(s.Name))]
		if !ok {
			return sequence.Times{}, fmt.Errorf("unknown times %q", s.Name)
		}
		return ctor(), nil
	}

	if s.Exactly != nil {
		if s.Min != nil || s.Max != nil {
			return sequence.Times{}, fmt.Errorf("exactly cannot be combined with min or max")
		}
		if *s.Exactly < 0 {
			return sequence.Times{}, fmt.Errorf("exactly must be non-negative, got %d", *s.Exactly)
		}
		return sequence.Exactly(*s.Exactly), nil
	}

	if s.Min == nil && s.Max == nil {
		return sequence.Times{}, fmt.Errorf("times needs a name, exactly, min or max")
	}
	lo, hi := 0, sequence.Unbounded
	if s.Min != nil {
		lo = *s.Min
	}
	if s.Max != nil {
		hi = *s.Max
	}
	if lo < 0 || hi < lo {
		return sequence.Times{}, fmt.Errorf("invalid range [%d, %d]", lo, hi)
	}

	switch {
	case s.Max == nil:
		return sequence.AtLeast(lo), nil
	case s.Min == nil:
		return sequence.AtMost(hi), nil
	case lo == hi:
		return sequence.Exactly(lo), nil
	default:
		return sequence.Between(lo, hi), nil
	}
}
