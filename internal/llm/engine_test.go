package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/intake-processor/internal/models"
	"github.com/feichai0017/intake-processor/internal/schema"
	"github.com/feichai0017/intake-processor/internal/synonym"
	"github.com/feichai0017/intake-processor/pkg/logger"
)

type stubCompletion struct {
	output       string
	err          error
	calls        int
	instructions []string
}

func (s *stubCompletion) Complete(ctx context.Context, instruction string) (string, error) {
	s.calls++
	s.instructions = append(s.instructions, instruction)
	return s.output, s.err
}

func minimalRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	cat, err := schema.LoadCatalog()
	require.NoError(t, err)
	reg, err := cat.Get(schema.ProfileMinimal)
	require.NoError(t, err)
	return reg
}

func newEngine(t *testing.T, c TextCompletionService) (*Engine, *logger.TestLogger) {
	t.Helper()
	r, err := synonym.Default()
	require.NoError(t, err)
	log := logger.NewTestLogger()
	return NewEngine(c, r, log), log
}

func TestEngine_NonJSONFallsBackToDefaults(t *testing.T) {
	reg := minimalRegistry(t)
	stub := &stubCompletion{output: "I cannot help with that"}
	e, log := newEngine(t, stub)

	raw, err := e.ExtractFields(context.Background(), "some text", reg)
	require.NoError(t, err)
	assert.Equal(t, reg.Defaults(), raw)
	for _, p := range reg.Paths() {
		assert.Equal(t, models.Unknown, raw[p], p)
	}
	assert.True(t, log.HasMessage("WARN", "Completion output unusable, falling back to defaults"))
}

func TestEngine_NonObjectJSONFallsBackToDefaults(t *testing.T) {
	reg := minimalRegistry(t)
	for _, out := range []string{`["Yes"]`, `"Yes"`, `null`, `42`} {
		t.Run(out, func(t *testing.T) {
			e, _ := newEngine(t, &stubCompletion{output: out})
			raw, err := e.ExtractFields(context.Background(), "text", reg)
			require.NoError(t, err)
			assert.Equal(t, reg.Defaults(), raw)
		})
	}
}

func TestEngine_CompletionErrorIsSchemaExtractionFailure(t *testing.T) {
	e, _ := newEngine(t, &stubCompletion{err: errors.New("dial tcp: connection refused")})

	_, err := e.ExtractFields(context.Background(), "text", minimalRegistry(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrSchemaExtraction)
	assert.NotErrorIs(t, err, models.ErrSchemaParse)
}

func TestEngine_StripsFencesAndProse(t *testing.T) {
	out := "Sure, here you go:\n```json\n{\"introduction.new_participant\": \"yes\", \"wellbeing.frequency\": \"a lot\"}\n```\nAnything else?"
	e, _ := newEngine(t, &stubCompletion{output: out})

	raw, err := e.ExtractFields(context.Background(), "text", minimalRegistry(t))
	require.NoError(t, err)
	assert.Equal(t, "yes", raw["introduction.new_participant"])
	assert.Equal(t, "a lot", raw["wellbeing.frequency"])
}

func TestEngine_FlattensNestedObjects(t *testing.T) {
	out := `{"icf_impairment": {"diagnoses": "stroke", "score": 2.5}, "about_you.living_situation": "with partner"}`
	e, _ := newEngine(t, &stubCompletion{output: out})

	raw, err := e.ExtractFields(context.Background(), "text", minimalRegistry(t))
	require.NoError(t, err)
	assert.Equal(t, "stroke", raw["icf_impairment.diagnoses"])
	assert.Equal(t, 2.5, raw["icf_impairment.score"])
	assert.Equal(t, "with partner", raw["about_you.living_situation"])
}

func TestEngine_DropsInvalidValuesKeepsRest(t *testing.T) {
	reg, err := schema.NewRegistry("lists", []schema.FieldDescriptor{
		{Path: "introduction.funding_source", Kind: schema.List, Vocabulary: []string{"NDIS", "Workcover"}},
		{Path: "about_me.name", Kind: schema.FreeText},
		{Path: "about_me.pain", Kind: schema.NumberRange, Range: &schema.Range{Min: 0, Max: 10}},
	})
	require.NoError(t, err)

	out := `{"introduction.funding_source": ["ndis", "workcover"], "about_me.name": [{"first": "Jo"}], "about_me.pain": true, "extra.key": 1}`
	e, log := newEngine(t, &stubCompletion{output: out})

	raw, err := e.ExtractFields(context.Background(), "text", reg)
	require.NoError(t, err)
	assert.Equal(t, []any{"ndis", "workcover"}, raw["introduction.funding_source"])
	assert.NotContains(t, raw, "about_me.name")
	assert.NotContains(t, raw, "about_me.pain")
	assert.Equal(t, float64(1), raw["extra.key"])
	assert.True(t, log.HasMessage("WARN", "Dropped fields with invalid values"))
}

func TestEngine_KeepsScalarArraysForResolver(t *testing.T) {
	out := `{"icf_impairment.diagnoses": ["ADHD", "Autism"], "icf_impairment.mobility_support_level": [3], "wellbeing.frequency": ["often"]}`
	e, log := newEngine(t, &stubCompletion{output: out})

	raw, err := e.ExtractFields(context.Background(), "text", minimalRegistry(t))
	require.NoError(t, err)
	assert.Equal(t, []any{"ADHD", "Autism"}, raw["icf_impairment.diagnoses"])
	assert.Equal(t, []any{float64(3)}, raw["icf_impairment.mobility_support_level"])
	assert.Equal(t, []any{"often"}, raw["wellbeing.frequency"])
	assert.False(t, log.HasMessage("WARN", "Dropped fields with invalid values"))
}

func TestFlatten_LiteralDottedKeyWins(t *testing.T) {
	in := map[string]any{
		"a.b": "literal",
		"a":   map[string]any{"b": "nested", "c": 1.0},
		"d":   map[string]any{},
	}
	for i := 0; i < 20; i++ {
		out := models.RawRecord{}
		flatten("", in, out)
		assert.Equal(t, models.RawRecord{"a.b": "literal", "a.c": 1.0, "d": map[string]any{}}, out)
	}
}

func TestEngine_InstructionCarriesFieldsRulesAndText(t *testing.T) {
	reg := minimalRegistry(t)
	stub := &stubCompletion{output: `{}`}
	e, _ := newEngine(t, stub)

	_, err := e.ExtractFields(context.Background(), "Patient John Doe feels a little tired.", reg)
	require.NoError(t, err)
	require.Len(t, stub.instructions, 1)

	instr := stub.instructions[0]
	for _, p := range reg.Paths() {
		assert.Contains(t, instr, "- "+p+": ")
	}
	assert.Contains(t, instr, `"Unknown"`)
	assert.Contains(t, instr, "number from 0 to 5 in steps of 0.5")
	assert.Contains(t, instr, "one of: Never, Rarely, Occasionally, Often, Almost always")
	assert.Contains(t, instr, `"a little"`)
	assert.Contains(t, instr, "out of")
	assert.Contains(t, instr, "Patient John Doe feels a little tired.")
}

func TestExtractJSON(t *testing.T) {
	tests := map[string]string{
		`{"a":1}`:                      `{"a":1}`,
		"```json\n{\"a\":1}\n```":      `{"a":1}`,
		"```\n{\"a\":1}\n```":          `{"a":1}`,
		"Here: {\"a\":{\"b\":2}} done": `{"a":{"b":2}}`,
		"I cannot help with that":      "I cannot help with that",
	}
	for in, want := range tests {
		assert.Equal(t, want, extractJSON(in))
	}
}

func TestTopLevelKey(t *testing.T) {
	assert.Equal(t, "about_me.name", topLevelKey("/about_me.name"))
	assert.Equal(t, "introduction.funding_source", topLevelKey("/introduction.funding_source/0"))
	assert.Equal(t, "a/b", topLevelKey("/a~1b"))
	assert.Equal(t, "", topLevelKey(""))
}
