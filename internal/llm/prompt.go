package llm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/feichai0017/intake-processor/internal/models"
	"github.com/feichai0017/intake-processor/internal/schema"
)

// BuildInstruction renders the single extraction instruction sent to the
// completion service: target fields with their allowed values, the
// normalization rules, then the source text.
func BuildInstruction(text string, reg *schema.Registry, rules string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Extract the answers to the %q intake questionnaire from the source text below.\n\n", reg.Name())
	b.WriteString("Return a single JSON object. Its keys must be exactly the field paths listed below, written as flat dotted strings, one key per field.\n")
	fmt.Fprintf(&b, "When the text does not answer a field, use the string %q. Do not guess.\n\n", models.Unknown)

	b.WriteString("Fields:\n")
	for _, f := range reg.Fields() {
		fmt.Fprintf(&b, "- %s: %s [%s]\n", f.Path, f.Description, valueHint(f))
	}

	if rules != "" {
		b.WriteString("\nNormalization rules:\n")
		b.WriteString(rules)
	}

	b.WriteString("\nSource text:\n\"\"\"\n")
	b.WriteString(strings.TrimSpace(text))
	b.WriteString("\n\"\"\"\n")
	return b.String()
}

func valueHint(f schema.FieldDescriptor) string {
	switch {
	case f.IsNumeric():
		return fmt.Sprintf("number from %s to %s in steps of %s",
			formatNum(f.Range.Min), formatNum(f.Range.Max), formatNum(f.Range.Step))
	case f.Kind == schema.List:
		return "JSON array of any of: " + strings.Join(f.Vocabulary, ", ")
	case f.Kind == schema.BooleanOrUnsure && len(f.Vocabulary) == 0:
		return "one of: Yes, No, Unsure"
	case f.Kind == schema.FreeText:
		return "free text"
	default:
		return "one of: " + strings.Join(f.Vocabulary, ", ")
	}
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
