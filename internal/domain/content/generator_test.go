package content

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

func additionTemplate() *QuestionTemplate {
	return &QuestionTemplate{
		ID:                  "tpl-add-1",
		SkillID:             "skill-add",
		Difficulty:          shared.DifficultyMedium,
		Type:                "arithmetic",
		PromptTemplate:      "What is {{a}} + {{b}}?",
		ExplanationTemplate: "{{a}} + {{b}} = {{answer}}",
		Generator: GeneratorSpec{
			Fields: []FieldSpec{
				{Name: "a", Kind: FieldRange, Min: 1, Max: 20},
				{Name: "b", Kind: FieldRange, Min: 1, Max: 20},
			},
			Derived: []DerivedSpec{
				{Name: "answer", Op: DeriveAdd, Left: "a", Right: "b"},
			},
		},
		Renderer: RendererSpec{Kind: RenderMultipleChoice, ChoiceCount: 4},
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	gen := NewGenerator()
	tpl := additionTemplate()

	v1, err := gen.Generate(tpl, "user-1", "2026-03-02", 0)
	require.NoError(t, err)
	v2, err := gen.Generate(tpl, "user-1", "2026-03-02", 0)
	require.NoError(t, err)

	// Whole-struct equality: no field, CreatedAt included, may depend on
	// the wall clock.
	assert.Equal(t, v1, v2)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), v1.CreatedAt)
}

func TestGenerate_RejectsMalformedDayBucket(t *testing.T) {
	gen := NewGenerator()

	_, err := gen.Generate(additionTemplate(), "user-1", "march 2nd", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestGenerate_AttemptIndexChangesCandidate(t *testing.T) {
	gen := NewGenerator()
	tpl := additionTemplate()

	signatures := make(map[string]bool)
	for attempt := 0; attempt < 8; attempt++ {
		v, err := gen.Generate(tpl, "user-1", "2026-03-02", attempt)
		require.NoError(t, err)
		signatures[v.Signature] = true
	}

	// With a 20x20 operand space, eight attempts collapsing to one
	// signature would mean the attempt index is not feeding the seed.
	assert.Greater(t, len(signatures), 1)
}

func TestGenerate_DerivedAnswerAndSubstitution(t *testing.T) {
	gen := NewGenerator()
	tpl := additionTemplate()

	v, err := gen.Generate(tpl, "user-7", "2026-03-02", 0)
	require.NoError(t, err)

	a := v.Vars["a"]
	b := v.Vars["b"]
	answer := v.Vars["answer"]
	require.True(t, a.Numeric)
	require.True(t, b.Numeric)
	require.True(t, answer.Numeric)

	assert.Equal(t, a.Num+b.Num, answer.Num)
	assert.NotContains(t, v.Prompt, "{{")
	assert.Contains(t, v.Prompt, a.Str)
	assert.Equal(t, answer.Str, v.Answer)
}

func TestGenerate_NoNegativeSubtraction(t *testing.T) {
	gen := NewGenerator()
	tpl := additionTemplate()
	tpl.Generator.Derived = []DerivedSpec{
		{Name: "answer", Op: DeriveSub, Left: "a", Right: "b", NoNegative: true},
	}

	for attempt := 0; attempt < 20; attempt++ {
		v, err := gen.Generate(tpl, "user-3", "2026-03-02", attempt)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v.Vars["answer"].Num, int64(0))
	}
}

func TestGenerate_WeightedSelection(t *testing.T) {
	gen := NewGenerator()
	tpl := additionTemplate()
	tpl.Generator = GeneratorSpec{
		Fields: []FieldSpec{
			{Name: "animal", Kind: FieldWeighted, Choices: []WeightedChoice{
				{Value: "cat", Weight: 3},
				{Value: "dog", Weight: 1},
				{Value: "owl", Weight: 0},
			}},
		},
	}
	tpl.PromptTemplate = "Spell {{animal}}."
	tpl.Renderer = RendererSpec{Kind: RenderFreeInput}

	counts := map[string]int{}
	for attempt := 0; attempt < 40; attempt++ {
		v, err := gen.Generate(tpl, "user-5", "2026-03-02", attempt)
		require.NoError(t, err)
		counts[v.Vars["animal"].Str]++
	}

	assert.Zero(t, counts["owl"], "zero-weight choices must never be drawn")
	assert.Greater(t, counts["cat"], 0)
}

func TestGenerate_MultipleChoiceShape(t *testing.T) {
	gen := NewGenerator()
	tpl := additionTemplate()

	v, err := gen.Generate(tpl, "user-9", "2026-03-02", 0)
	require.NoError(t, err)

	require.Len(t, v.Choices, 4)
	require.GreaterOrEqual(t, v.CorrectIndex, 0)
	assert.Equal(t, v.Answer, v.Choices[v.CorrectIndex])

	seen := map[string]bool{}
	for _, c := range v.Choices {
		assert.False(t, seen[c], "duplicate choice %s", c)
		seen[c] = true
	}
}

func TestGenerate_EmptyTemplateRendersEmptyVariables(t *testing.T) {
	gen := NewGenerator()
	tpl := &QuestionTemplate{
		ID:             "tpl-static",
		SkillID:        "skill-read",
		Difficulty:     shared.DifficultyEasy,
		PromptTemplate: "Read the passage aloud.",
		Renderer:       RendererSpec{Kind: RenderFreeInput},
	}

	v, err := gen.Generate(tpl, "user-1", "2026-03-02", 0)
	require.NoError(t, err)

	assert.Empty(t, v.Vars)
	assert.Equal(t, "Read the passage aloud.", v.Prompt)
	assert.Equal(t, -1, v.CorrectIndex)
	assert.NotEmpty(t, v.Signature)
}

func TestGenerate_SignatureDependsOnVariables(t *testing.T) {
	gen := NewGenerator()
	tpl := additionTemplate()

	sigs := map[string]string{}
	for attempt := 0; attempt < 10; attempt++ {
		v, err := gen.Generate(tpl, "user-1", "2026-03-02", attempt)
		require.NoError(t, err)

		key := v.Vars["a"].Str + "+" + v.Vars["b"].Str
		if prev, ok := sigs[key]; ok {
			assert.Equal(t, prev, v.Signature, "same variable set must hash identically")
		} else {
			sigs[key] = v.Signature
		}
	}
}
