package synonym

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/feichai0017/intake-processor/internal/schema"
)

//go:embed rules.yaml
var defaultRules []byte

// Rule maps trigger phrases to one canonical term. Triggers match as whole
// words anywhere in a value; Exact entries only match the whole value.
type Rule struct {
	Canonical string        `yaml:"canonical"`
	Triggers  []string      `yaml:"triggers"`
	Exact     []string      `yaml:"exact"`
	Kinds     []schema.Kind `yaml:"-"`

	matchers []phrase
}

// Ladder is an ordered group of rules applied to fields of the listed kinds.
type Ladder struct {
	Name  string        `yaml:"name"`
	Kinds []schema.Kind `yaml:"kinds"`
	Rules []Rule        `yaml:"rules"`
}

// BoolSet is one of the disjoint Yes/No/Unsure phrase sets. Canonical lists
// acceptable spellings; the first one present in a field's vocabulary wins.
type BoolSet struct {
	Name      string   `yaml:"name"`
	Canonical []string `yaml:"canonical"`
	Triggers  []string `yaml:"triggers"`
	Exact     []string `yaml:"exact"`

	matchers []phrase
}

type NumericPattern struct {
	Name     string `yaml:"name"`
	Describe string `yaml:"describe"`
	Regex    string `yaml:"regex"`

	re *regexp.Regexp
}

type Fraction struct {
	Fraction float64  `yaml:"fraction"`
	Triggers []string `yaml:"triggers"`

	matchers []phrase
}

// Tables is the full rule library.
type Tables struct {
	Ladders []Ladder `yaml:"ladders"`
	Enums   []Rule   `yaml:"enums"`
	Boolean struct {
		Sets []BoolSet `yaml:"sets"`
	} `yaml:"boolean"`
	Numeric struct {
		Patterns  []NumericPattern   `yaml:"patterns"`
		Words     map[string]float64 `yaml:"words"`
		Ignore    []string           `yaml:"ignore"`
		Fractions []Fraction         `yaml:"fractions"`
	} `yaml:"numeric"`

	wordsRe  *regexp.Regexp
	ignoreRe *regexp.Regexp
}

// ParseTables decodes and compiles a YAML rule library.
func ParseTables(raw []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("failed to decode synonym tables: %w", err)
	}
	if err := t.compile(); err != nil {
		return nil, err
	}
	return &t, nil
}

// DefaultTables returns the embedded rule library.
func DefaultTables() (*Tables, error) {
	return ParseTables(defaultRules)
}

func (t *Tables) compile() error {
	for li := range t.Ladders {
		l := &t.Ladders[li]
		if len(l.Kinds) == 0 {
			return fmt.Errorf("ladder %s declares no kinds", l.Name)
		}
		for ri := range l.Rules {
			r := &l.Rules[ri]
			r.Kinds = l.Kinds
			r.matchers = compilePhrases(r.Canonical, r.Triggers, r.Exact)
		}
	}
	for i := range t.Enums {
		r := &t.Enums[i]
		r.Kinds = []schema.Kind{schema.Enum, schema.List}
		r.matchers = compilePhrases(r.Canonical, r.Triggers, r.Exact)
	}
	if len(t.Boolean.Sets) == 0 {
		return fmt.Errorf("no boolean phrase sets")
	}
	for i := range t.Boolean.Sets {
		s := &t.Boolean.Sets[i]
		if len(s.Canonical) == 0 {
			return fmt.Errorf("boolean set %s has no canonical term", s.Name)
		}
		s.matchers = compilePhrases("", s.Triggers, append(append([]string{}, s.Exact...), s.Canonical...))
	}
	for i := range t.Numeric.Patterns {
		p := &t.Numeric.Patterns[i]
		re, err := regexp.Compile("(?i)" + p.Regex)
		if err != nil {
			return fmt.Errorf("numeric pattern %s: %w", p.Name, err)
		}
		p.re = re
	}
	for i := range t.Numeric.Fractions {
		f := &t.Numeric.Fractions[i]
		f.matchers = compilePhrases("", f.Triggers, nil)
	}
	if len(t.Numeric.Words) > 0 {
		words := make([]string, 0, len(t.Numeric.Words))
		for w := range t.Numeric.Words {
			words = append(words, regexp.QuoteMeta(strings.ToLower(w)))
		}
		t.wordsRe = regexp.MustCompile(`\b(` + strings.Join(words, "|") + `)\b`)
	}
	if len(t.Numeric.Ignore) > 0 {
		phrases := make([]string, 0, len(t.Numeric.Ignore))
		for _, p := range t.Numeric.Ignore {
			phrases = append(phrases, regexp.QuoteMeta(strings.ToLower(strings.TrimSpace(p))))
		}
		t.ignoreRe = regexp.MustCompile(`\b(?:` + strings.Join(phrases, "|") + `)\b`)
	}
	return nil
}

// phrase is one compiled trigger.
type phrase struct {
	text  string
	exact bool
	re    *regexp.Regexp
}

func compilePhrases(canonical string, triggers, exact []string) []phrase {
	var out []phrase
	if canonical != "" {
		out = append(out, phrase{text: strings.ToLower(canonical), exact: true})
	}
	for _, e := range exact {
		out = append(out, phrase{text: strings.ToLower(strings.TrimSpace(e)), exact: true})
	}
	for _, tr := range triggers {
		text := strings.ToLower(strings.TrimSpace(tr))
		if text == "" {
			continue
		}
		out = append(out, phrase{
			text: text,
			re:   regexp.MustCompile(`(?:^|[^\p{L}\p{N}])` + regexp.QuoteMeta(text) + `(?:$|[^\p{L}\p{N}])`),
		})
	}
	return out
}

// matchExact reports whether value equals any phrase.
func matchExact(value string, ps []phrase) bool {
	for _, p := range ps {
		if p.text == value {
			return true
		}
	}
	return false
}

// negationRe matches a negator directly before a position in a value.
var negationRe = regexp.MustCompile(`(?:\bnot|n't|\bnever|\bno longer)\s+$`)

func negatedAt(value string, i int) bool {
	return negationRe.MatchString(value[:i])
}

// occurrences returns the start offsets of p's trigger text in value.
func (p phrase) occurrences(value string) []int {
	var out []int
	for _, loc := range p.re.FindAllStringIndex(value, -1) {
		out = append(out, loc[0]+strings.Index(value[loc[0]:loc[1]], p.text))
	}
	return out
}

// matchContains returns the length of the longest trigger found in value
// outside a negation ("not often" does not count as "often"), or 0.
func matchContains(value string, ps []phrase) int {
	best := 0
	for _, p := range ps {
		if p.exact || len(p.text) <= best {
			continue
		}
		for _, i := range p.occurrences(value) {
			if !negatedAt(value, i) {
				best = len(p.text)
				break
			}
		}
	}
	return best
}

// matchFirst returns the offset and length of the leftmost trigger in value,
// preferring the longer trigger at equal offsets. pos is -1 when none match.
func matchFirst(value string, ps []phrase) (pos, length int) {
	pos = -1
	for _, p := range ps {
		if p.exact {
			continue
		}
		loc := p.re.FindStringIndex(value)
		if loc == nil {
			continue
		}
		i := loc[0] + strings.Index(value[loc[0]:loc[1]], p.text)
		if pos < 0 || i < pos || (i == pos && len(p.text) > length) {
			pos, length = i, len(p.text)
		}
	}
	return pos, length
}

func kindIn(k schema.Kind, kinds []schema.Kind) bool {
	for _, x := range kinds {
		if x == k {
			return true
		}
	}
	return false
}
