package schema

import (
	"fmt"
	"math"
	"strings"
)

// Kind is the value kind of a field.
type Kind string

const (
	FreeText        Kind = "free_text"
	Enum            Kind = "enum"
	OrdinalScale    Kind = "ordinal_scale"
	BooleanOrUnsure Kind = "boolean_or_unsure"
	NumberRange     Kind = "number_range"
	// List is a multi-select question; each element must be a vocabulary term.
	List Kind = "list"
)

func (k Kind) valid() bool {
	switch k {
	case FreeText, Enum, OrdinalScale, BooleanOrUnsure, NumberRange, List:
		return true
	}
	return false
}

// Range bounds a numeric field. Step is the allowed increment from Min.
type Range struct {
	Min  float64 `yaml:"min" json:"min"`
	Max  float64 `yaml:"max" json:"max"`
	Step float64 `yaml:"step" json:"step"`
}

// Clamp limits v to [Min, Max].
func (r Range) Clamp(v float64) float64 {
	return math.Max(r.Min, math.Min(r.Max, v))
}

// Snap clamps v and rounds it to the nearest allowed increment.
func (r Range) Snap(v float64) float64 {
	v = r.Clamp(v)
	if r.Step <= 0 {
		return v
	}
	steps := math.Round((v - r.Min) / r.Step)
	snapped := r.Min + steps*r.Step
	if snapped > r.Max {
		snapped -= r.Step
	}
	// keep 0.1 + 0.2 style noise out of the answers
	return math.Round(snapped*1e6) / 1e6
}

// FieldDescriptor describes one answer slot of the questionnaire.
type FieldDescriptor struct {
	Path        string   `yaml:"path" json:"path"`
	Kind        Kind     `yaml:"kind" json:"kind"`
	Description string   `yaml:"description" json:"description"`
	Vocabulary  []string `yaml:"vocabulary,omitempty" json:"vocabulary,omitempty"`
	Range       *Range   `yaml:"range,omitempty" json:"range,omitempty"`
}

// Section returns the first path segment.
func (d FieldDescriptor) Section() string {
	if i := strings.IndexByte(d.Path, '.'); i >= 0 {
		return d.Path[:i]
	}
	return ""
}

// IsNumeric reports whether answers for d are numbers.
func (d FieldDescriptor) IsNumeric() bool {
	return d.Kind == NumberRange || (d.Kind == OrdinalScale && d.Range != nil && len(d.Vocabulary) == 0)
}

// Canonical matches s against the vocabulary ignoring case and surrounding
// whitespace and returns the vocabulary spelling.
func (d FieldDescriptor) Canonical(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, term := range d.Vocabulary {
		if strings.EqualFold(term, s) {
			return term, true
		}
	}
	return "", false
}

func (d FieldDescriptor) validate() error {
	if d.Path == "" {
		return fmt.Errorf("field with empty path")
	}
	if !d.Kind.valid() {
		return fmt.Errorf("field %s: unknown kind %q", d.Path, d.Kind)
	}
	switch d.Kind {
	case Enum, List:
		if len(d.Vocabulary) == 0 {
			return fmt.Errorf("field %s: %s requires a vocabulary", d.Path, d.Kind)
		}
	case NumberRange:
		if d.Range == nil {
			return fmt.Errorf("field %s: number_range requires a range", d.Path)
		}
	case OrdinalScale:
		if len(d.Vocabulary) == 0 && d.Range == nil {
			return fmt.Errorf("field %s: ordinal_scale requires a vocabulary or a range", d.Path)
		}
	}
	if d.Range != nil && d.Range.Min >= d.Range.Max {
		return fmt.Errorf("field %s: empty range [%v, %v]", d.Path, d.Range.Min, d.Range.Max)
	}
	return nil
}
