package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/feichai0017/intake-processor/internal/schema"
)

const schemaBaseURL = "https://intake-processor.local/schemas/"

var (
	scalarTypes  = []string{"string", "number", "boolean", "null"}
	numericTypes = []string{"number", "string", "null"}
	itemTypes    = []string{"string", "number", "boolean"}
)

// scalarOrArray accepts one of types or an array of scalars. Arrays are left
// for the resolver to join or pick from.
func scalarOrArray(types []string) map[string]any {
	return map[string]any{
		"anyOf": []any{
			map[string]any{"type": types},
			map[string]any{"type": "array", "items": map[string]any{"type": itemTypes}},
		},
	}
}

// recordSchema derives the JSON schema a completion must satisfy from the
// registry. Keys outside the registry are allowed and dropped later.
func recordSchema(reg *schema.Registry) map[string]any {
	props := make(map[string]any, reg.Len())
	for _, f := range reg.Fields() {
		switch {
		case f.Kind == schema.List:
			props[f.Path] = map[string]any{
				"anyOf": []any{
					map[string]any{"type": "array", "items": map[string]any{"type": itemTypes}},
					map[string]any{"type": []string{"string", "null"}},
				},
			}
		case f.IsNumeric():
			props[f.Path] = scalarOrArray(numericTypes)
		default:
			props[f.Path] = scalarOrArray(scalarTypes)
		}
	}
	return map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": props,
	}
}

func compileSchema(reg *schema.Registry) (*jsonschema.Schema, error) {
	doc, err := json.Marshal(recordSchema(reg))
	if err != nil {
		return nil, err
	}
	u := schemaBaseURL + url.PathEscape(reg.Name()) + ".json"

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(u, bytes.NewReader(doc)); err != nil {
		return nil, err
	}
	return c.Compile(u)
}

// invalidKeys lists the top-level keys named by a validation error.
func invalidKeys(err error) []string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil
	}
	seen := make(map[string]bool)
	var keys []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if key := topLevelKey(e.InstanceLocation); key != "" && !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return keys
}

var pointerUnescape = strings.NewReplacer("~1", "/", "~0", "~")

func topLevelKey(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return ""
	}
	if i := strings.IndexByte(pointer, '/'); i >= 0 {
		pointer = pointer[:i]
	}
	return pointerUnescape.Replace(pointer)
}
