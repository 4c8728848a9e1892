package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/intake-processor/internal/models"
)

func TestLoadCatalogProfiles(t *testing.T) {
	cat, err := LoadCatalog()
	require.NoError(t, err)

	tests := []struct {
		profile  Profile
		min, max int
		sections []string
	}{
		{ProfileMinimal, 2, 7, nil},
		{ProfileLegacy, 3, 3, []string{""}},
		{ProfileFull, 100, 140, []string{
			"introduction", "about_me", "about_family",
			"icf_impairment", "icf_activity", "icf_participation", "icf_wellbeing",
		}},
	}
	for _, tt := range tests {
		t.Run(string(tt.profile), func(t *testing.T) {
			reg, err := cat.Get(tt.profile)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, reg.Len(), tt.min)
			assert.LessOrEqual(t, reg.Len(), tt.max)
			if tt.sections != nil {
				assert.Equal(t, tt.sections, reg.Sections())
			}
		})
	}

	assert.Equal(t, []Profile{ProfileFull, ProfileLegacy, ProfileMinimal}, cat.Profiles())
}

func TestFullProfileVocabulariesResolved(t *testing.T) {
	cat, err := LoadCatalog()
	require.NoError(t, err)
	reg, err := cat.Get(ProfileFull)
	require.NoError(t, err)

	f, ok := reg.Lookup("about_family.family_impact_level")
	require.True(t, ok)
	assert.Equal(t, OrdinalScale, f.Kind)
	assert.Equal(t, []string{"None", "Mild", "Moderate", "Severe", "Extreme"}, f.Vocabulary)

	f, ok = reg.Lookup("icf_impairment.score")
	require.True(t, ok)
	require.NotNil(t, f.Range)
	assert.Equal(t, 0.5, f.Range.Step)
	assert.True(t, f.IsNumeric())

	f, ok = reg.Lookup("introduction.new_participant")
	require.True(t, ok)
	assert.Equal(t, BooleanOrUnsure, f.Kind)
}

func TestDefaultsCoverEveryPath(t *testing.T) {
	cat, err := LoadCatalog()
	require.NoError(t, err)
	for _, p := range cat.Profiles() {
		reg, err := cat.Get(p)
		require.NoError(t, err)
		defaults := reg.Defaults()
		assert.Len(t, defaults, reg.Len())
		for _, path := range reg.Paths() {
			assert.Equal(t, models.Unknown, defaults[path], path)
		}
	}
}

func TestNewRegistryRejectsBadFields(t *testing.T) {
	tests := []struct {
		name   string
		fields []FieldDescriptor
	}{
		{"empty", nil},
		{"duplicate", []FieldDescriptor{
			{Path: "a.b", Kind: FreeText},
			{Path: "a.b", Kind: FreeText},
		}},
		{"enum without vocabulary", []FieldDescriptor{{Path: "a.b", Kind: Enum}}},
		{"number without range", []FieldDescriptor{{Path: "a.b", Kind: NumberRange}}},
		{"inverted range", []FieldDescriptor{{Path: "a.b", Kind: NumberRange, Range: &Range{Min: 5, Max: 1}}}},
		{"unknown kind", []FieldDescriptor{{Path: "a.b", Kind: "colour"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry("test", tt.fields)
			assert.Error(t, err)
		})
	}
}

func TestSubsetAndSection(t *testing.T) {
	reg, err := NewRegistry("test", []FieldDescriptor{
		{Path: "one.a", Kind: FreeText},
		{Path: "two.b", Kind: NumberRange, Range: &Range{Min: 0, Max: 10}},
		{Path: "one.c", Kind: FreeText},
	})
	require.NoError(t, err)

	f, _ := reg.Lookup("two.b")
	assert.Equal(t, 1.0, f.Range.Step, "step defaults to 1")

	sub, err := reg.Subset("sub", "one.c", "one.a")
	require.NoError(t, err)
	assert.Equal(t, []string{"one.a", "one.c"}, sub.Paths())

	sec, err := reg.Section("two")
	require.NoError(t, err)
	assert.Equal(t, []string{"two.b"}, sec.Paths())

	_, err = reg.Subset("sub", "missing")
	assert.Error(t, err)
}

func TestRangeSnap(t *testing.T) {
	half := Range{Min: 0, Max: 5, Step: 0.5}
	assert.Equal(t, 3.5, half.Snap(3.4))
	assert.Equal(t, 3.0, half.Snap(3.2))
	assert.Equal(t, 5.0, half.Snap(9))
	assert.Equal(t, 0.0, half.Snap(-2))

	ten := Range{Min: 0, Max: 10, Step: 1}
	assert.Equal(t, 7.0, ten.Snap(7))
	assert.Equal(t, 8.0, ten.Snap(7.6))
}

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile(" Intake ")
	require.NoError(t, err)
	assert.Equal(t, ProfileFull, p)

	p, err = ParseProfile("questions")
	require.NoError(t, err)
	assert.Equal(t, ProfileMinimal, p)

	_, err = ParseProfile("nope")
	assert.Error(t, err)
}

func TestCanonicalIgnoresCase(t *testing.T) {
	f := FieldDescriptor{Path: "x.y", Kind: Enum, Vocabulary: []string{"Home", "Community"}}
	term, ok := f.Canonical("  community ")
	assert.True(t, ok)
	assert.Equal(t, "Community", term)
	_, ok = f.Canonical("garden")
	assert.False(t, ok)
	assert.Equal(t, "x", f.Section())
}
