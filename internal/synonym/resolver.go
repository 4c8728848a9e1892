package synonym

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/feichai0017/intake-processor/internal/models"
	"github.com/feichai0017/intake-processor/internal/schema"
)

// Resolver maps natural-language answers onto a field's canonical values.
// It never mutates its tables, so one instance serves every request.
type Resolver struct {
	tables *Tables
}

func NewResolver(t *Tables) *Resolver {
	return &Resolver{tables: t}
}

// Default builds a resolver over the embedded rule library.
func Default() (*Resolver, error) {
	t, err := DefaultTables()
	if err != nil {
		return nil, err
	}
	return NewResolver(t), nil
}

// Normalize resolves raw for d. The result is a canonical vocabulary string,
// a float64, a []string for list fields, free text, or models.Unknown.
func (r *Resolver) Normalize(raw any, d schema.FieldDescriptor) any {
	if raw == nil {
		return models.Unknown
	}
	if s, ok := raw.(string); ok && isUnknown(s) {
		return models.Unknown
	}
	// a one-element array stands for its element on single-valued kinds
	if arr, ok := raw.([]any); ok && len(arr) == 1 && d.Kind != schema.List && d.Kind != schema.FreeText {
		return r.Normalize(arr[0], d)
	}

	switch d.Kind {
	case schema.FreeText:
		return freeText(raw)
	case schema.BooleanOrUnsure:
		return r.boolean(raw, d)
	case schema.NumberRange:
		return r.number(raw, d)
	case schema.OrdinalScale:
		if d.IsNumeric() {
			return r.number(raw, d)
		}
		return r.term(raw, d)
	case schema.Enum:
		return r.term(raw, d)
	case schema.List:
		return r.list(raw, d)
	}
	return models.Unknown
}

func isUnknown(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, models.Unknown)
}

func clean(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Trim(s, ".!,;: \"'")
}

func freeText(raw any) any {
	switch v := raw.(type) {
	case string:
		return v
	case bool:
		if v {
			return "Yes"
		}
		return "No"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case []any:
		parts := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := freeText(e).(string); ok && !isUnknown(s) {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return models.Unknown
		}
		return strings.Join(parts, ", ")
	}
	return models.Unknown
}

func scalarString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	}
	return "", false
}

// rulesFor returns the rules whose kind and canonical term fit d, ladders
// first.
func (r *Resolver) rulesFor(d schema.FieldDescriptor) []Rule {
	var out []Rule
	for _, l := range r.tables.Ladders {
		if !kindIn(d.Kind, l.Kinds) {
			continue
		}
		for _, rule := range l.Rules {
			if _, ok := d.Canonical(rule.Canonical); ok {
				out = append(out, rule)
			}
		}
	}
	if d.Kind == schema.Enum || d.Kind == schema.List {
		for _, rule := range r.tables.Enums {
			if _, ok := d.Canonical(rule.Canonical); ok {
				out = append(out, rule)
			}
		}
	}
	return out
}

func (r *Resolver) term(raw any, d schema.FieldDescriptor) any {
	s, ok := scalarString(raw)
	if !ok {
		return models.Unknown
	}
	if term, ok := r.matchTerm(clean(s), d); ok {
		return term
	}
	return models.Unknown
}

func (r *Resolver) matchTerm(v string, d schema.FieldDescriptor) (string, bool) {
	if v == "" {
		return "", false
	}
	if term, ok := d.Canonical(v); ok {
		return term, true
	}

	rules := r.rulesFor(d)
	for _, rule := range rules {
		if matchExact(v, rule.matchers) {
			term, _ := d.Canonical(rule.Canonical)
			return term, true
		}
	}

	// Longest trigger wins; vocabulary terms found verbatim compete too.
	best, bestLen := "", 0
	for _, term := range d.Vocabulary {
		lt := strings.ToLower(term)
		if len(lt) > bestLen && containsTerm(v, lt) {
			best, bestLen = term, len(lt)
		}
	}
	for _, rule := range rules {
		if n := matchContains(v, rule.matchers); n > bestLen {
			term, _ := d.Canonical(rule.Canonical)
			best, bestLen = term, n
		}
	}
	return best, bestLen > 0
}

var listSplit = regexp.MustCompile(`\s*(?:[;\n/]|,|\band\b|\bplus\b|&)\s*`)

func (r *Resolver) list(raw any, d schema.FieldDescriptor) any {
	found := make(map[string]bool)
	switch v := raw.(type) {
	case []any:
		for _, e := range v {
			if s, ok := scalarString(e); ok {
				if term, ok := r.matchTerm(clean(s), d); ok {
					found[term] = true
				}
			}
		}
	default:
		s, ok := scalarString(raw)
		if !ok {
			return models.Unknown
		}
		whole := clean(s)
		if term, ok := r.matchTerm(whole, d); ok {
			found[term] = true
		}
		// terms may themselves contain separators
		for _, term := range d.Vocabulary {
			if containsTerm(whole, strings.ToLower(term)) {
				found[term] = true
			}
		}
		for _, part := range listSplit.Split(whole, -1) {
			if term, ok := r.matchTerm(clean(part), d); ok {
				found[term] = true
			}
		}
	}
	if len(found) == 0 {
		return models.Unknown
	}
	out := make([]string, 0, len(found))
	for _, term := range d.Vocabulary {
		if found[term] {
			out = append(out, term)
		}
	}
	return out
}

func (r *Resolver) boolean(raw any, d schema.FieldDescriptor) any {
	var v string
	switch b := raw.(type) {
	case bool:
		v = "no"
		if b {
			v = "yes"
		}
	default:
		s, ok := scalarString(raw)
		if !ok {
			return models.Unknown
		}
		v = clean(s)
	}
	if v == "" {
		return models.Unknown
	}
	sets := r.tables.Boolean.Sets
	for _, set := range sets {
		if matchExact(v, set.matchers) {
			return spell(set, d)
		}
	}
	// The earliest indicator decides: "yes, no concerns" is Yes. At the same
	// offset the longer trigger wins, then table order.
	best, bestPos, bestLen := -1, 0, 0
	for i, set := range sets {
		pos, n := matchFirst(v, set.matchers)
		if pos < 0 {
			continue
		}
		if best < 0 || pos < bestPos || (pos == bestPos && n > bestLen) {
			best, bestPos, bestLen = i, pos, n
		}
	}
	if best < 0 {
		return models.Unknown
	}
	return spell(sets[best], d)
}

// spell picks the spelling of a boolean set that the field accepts.
func spell(set BoolSet, d schema.FieldDescriptor) string {
	if len(d.Vocabulary) == 0 {
		return set.Canonical[0]
	}
	for _, c := range set.Canonical {
		if term, ok := d.Canonical(c); ok {
			return term
		}
	}
	return models.Unknown
}

func (r *Resolver) number(raw any, d schema.FieldDescriptor) any {
	rng := schema.Range{Min: math.Inf(-1), Max: math.Inf(1)}
	if d.Range != nil {
		rng = *d.Range
	}
	switch v := raw.(type) {
	case float64:
		return rng.Snap(v)
	case int:
		return rng.Snap(float64(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return models.Unknown
		}
		return rng.Snap(f)
	case string:
		if f, ok := r.ExtractNumber(v); ok {
			return rng.Snap(f)
		}
		if d.Range == nil {
			return models.Unknown
		}
		if frac, ok := r.fraction(clean(v)); ok {
			return rng.Snap(rng.Min + frac*(rng.Max-rng.Min))
		}
	}
	return models.Unknown
}

var halfRe = regexp.MustCompile(`(\d+) and a half`)

// ExtractNumber finds the first value matched by the numeric patterns, after
// number words are turned into digits. "7 out of 10" yields 7.
func (r *Resolver) ExtractNumber(s string) (float64, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	if r.tables.ignoreRe != nil {
		v = r.tables.ignoreRe.ReplaceAllString(v, " ")
	}
	if r.tables.wordsRe != nil {
		v = r.tables.wordsRe.ReplaceAllStringFunc(v, func(w string) string {
			return strconv.FormatFloat(r.tables.Numeric.Words[w], 'f', -1, 64)
		})
	}
	v = halfRe.ReplaceAllString(v, "$1.5")
	for _, p := range r.tables.Numeric.Patterns {
		m := p.re.FindStringSubmatch(v)
		if m == nil {
			continue
		}
		f, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		return f, true
	}
	return 0, false
}

func (r *Resolver) fraction(v string) (float64, bool) {
	best, bestLen := 0.0, 0
	for _, f := range r.tables.Numeric.Fractions {
		if n := matchContains(v, f.matchers); n > bestLen {
			best, bestLen = f.Fraction, n
		}
	}
	return best, bestLen > 0
}

// containsTerm reports whether term occurs in v as a whole word and not
// right after a negator.
func containsTerm(v, term string) bool {
	i := strings.Index(v, term)
	for i >= 0 {
		before := i == 0 || !isWordByte(v[i-1])
		end := i + len(term)
		after := end == len(v) || !isWordByte(v[end])
		if before && after && !negatedAt(v, i) {
			return true
		}
		next := strings.Index(v[i+1:], term)
		if next < 0 {
			break
		}
		i += next + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// Describe renders the rules that apply to reg as plain-language lines for
// an extraction prompt.
func (r *Resolver) Describe(reg *schema.Registry) string {
	var b strings.Builder
	kinds := make(map[schema.Kind]bool)
	vocab := make(map[string]bool)
	for _, f := range reg.Fields() {
		kinds[f.Kind] = true
		for _, term := range f.Vocabulary {
			vocab[strings.ToLower(term)] = true
		}
	}

	for _, l := range r.tables.Ladders {
		var lines []string
		for _, rule := range l.Rules {
			if !vocab[strings.ToLower(rule.Canonical)] || len(rule.Triggers) == 0 {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s -> %s", quoteAll(rule.Triggers), rule.Canonical))
		}
		if len(lines) > 0 {
			fmt.Fprintf(&b, "- %s scale: %s\n", l.Name, strings.Join(lines, "; "))
		}
	}

	var enumLines []string
	for _, rule := range r.tables.Enums {
		if vocab[strings.ToLower(rule.Canonical)] && len(rule.Triggers) > 0 {
			enumLines = append(enumLines, fmt.Sprintf("%s -> %s", quoteAll(rule.Triggers), rule.Canonical))
		}
	}
	if len(enumLines) > 0 {
		sort.Strings(enumLines)
		fmt.Fprintf(&b, "- choices: %s\n", strings.Join(enumLines, "; "))
	}

	if kinds[schema.BooleanOrUnsure] {
		var lines []string
		for _, set := range r.tables.Boolean.Sets {
			lines = append(lines, fmt.Sprintf("%s -> %s", quoteAll(set.Triggers), set.Canonical[0]))
		}
		fmt.Fprintf(&b, "- yes/no questions: %s\n", strings.Join(lines, "; "))
	}

	if kinds[schema.NumberRange] || kinds[schema.OrdinalScale] {
		var lines []string
		for _, p := range r.tables.Numeric.Patterns {
			if p.Describe != "" {
				lines = append(lines, p.Describe)
			}
		}
		lines = append(lines, "number words become digits (\"seven\" -> 7)")
		fmt.Fprintf(&b, "- numbers: %s\n", strings.Join(lines, "; "))
	}
	return b.String()
}

func quoteAll(ss []string) string {
	q := make([]string, len(ss))
	for i, s := range ss {
		q[i] = strconv.Quote(s)
	}
	return strings.Join(q, ", ")
}
