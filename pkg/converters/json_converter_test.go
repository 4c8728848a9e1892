package converters

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/intake-processor/internal/models"
)

func TestNest(t *testing.T) {
	answers := models.AnswerSet{
		"introduction.new_participant": "Yes",
		"icf_impairment.score":         2.5,
		"icf_impairment.diagnoses":     "Stroke",
		"about_me.contact.phone":       "Unknown",
		"flat":                         "x",
	}
	got := Nest(answers)

	assert.Equal(t, map[string]any{
		"introduction":   map[string]any{"new_participant": "Yes"},
		"icf_impairment": map[string]any{"score": 2.5, "diagnoses": "Stroke"},
		"about_me":       map[string]any{"contact": map[string]any{"phone": "Unknown"}},
		"flat":           "x",
	}, got)
}

func TestNest_ValueBeatsSubtree(t *testing.T) {
	got := Nest(models.AnswerSet{"a": "leaf", "a.b": "child"})
	assert.Equal(t, map[string]any{"a": "leaf"}, got)
}

func TestConvert(t *testing.T) {
	doc := models.NewDocument("id-1", "intake.pdf", models.MediaKindPDF, "application/pdf", []byte("%PDF"))
	answers := models.AnswerSet{"a.x": "Yes", "a.y": models.Unknown, "b.z": 3.0}

	out, err := NewJSONConverter(true).Convert(doc, "minimal", answers, "native_text", 1500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "id-1", out.ID)
	assert.Equal(t, "completed", out.Status)
	assert.Equal(t, []string{"a", "b"}, out.Metadata.Sections)
	assert.Equal(t, 3, out.Metadata.Fields)
	assert.Equal(t, 2, out.Metadata.Resolved)
	assert.Equal(t, int64(1500), out.Metadata.ProcessingMs)
	assert.Equal(t, "pdf", out.Metadata.FileType)
	assert.NotNil(t, out.Nested)

	flat, err := NewJSONConverter(false).Convert(doc, "minimal", answers, "native_text", 0)
	require.NoError(t, err)
	assert.Nil(t, flat.Nested)

	_, err = NewJSONConverter(false).Convert(doc, "minimal", nil, "", 0)
	assert.Error(t, err)
}

func TestToPatientRecord(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("AEST", 10*3600))
	rec := ToPatientRecord("p1", models.AnswerSet{
		models.LegacyPatientName:      "John Doe",
		models.LegacyDateOfBirth:      "01/02/1970",
		models.LegacyPrimaryDiagnosis: 42.0,
	}, at)

	assert.Equal(t, "p1", rec.ID)
	assert.Equal(t, "John Doe", rec.Name)
	assert.Equal(t, "01/02/1970", rec.DateOfBirth)
	assert.Equal(t, models.Unknown, rec.PrimaryDiagnosis)
	assert.Equal(t, time.UTC, rec.CreatedAt.Location())
}
