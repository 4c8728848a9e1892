package models

import "sort"

// Unknown is the sentinel for any field the pipeline could not resolve.
const Unknown = "Unknown"

// RawRecord is the decoded, untrusted output of the completion service,
// keyed by dotted field path.
type RawRecord map[string]any

// AnswerSet maps every field path of a schema profile to a resolved value:
// a canonical string, a number, a list of canonical strings, or Unknown.
type AnswerSet map[string]any

// Keys returns the field paths in sorted order.
func (a AnswerSet) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns the value at path as a string, or Unknown.
func (a AnswerSet) String(path string) string {
	if s, ok := a[path].(string); ok {
		return s
	}
	return Unknown
}

// Resolved counts the fields that are not Unknown.
func (a AnswerSet) Resolved() int {
	n := 0
	for _, v := range a {
		if s, ok := v.(string); ok && s == Unknown {
			continue
		}
		n++
	}
	return n
}
