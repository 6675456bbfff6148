package content

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
	"github.com/brightpath-labs/brightpath-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GENERATOR
// Deterministic: generate(template, user, dayBucket, attemptIndex) called
// twice with identical arguments yields byte-identical output. All randomness
// flows through the seeded LCG; even variant IDs are derived from the seed.
// ══════════════════════════════════════════════════════════════════════════════

// Generator synthesizes variants from question templates.
type Generator struct {
	// MaxDistractorTries bounds the distractor search per choice slot.
	MaxDistractorTries int
}

// NewGenerator creates a generator with default bounds.
func NewGenerator() *Generator {
	return &Generator{MaxDistractorTries: 16}
}

// Generate synthesizes one variant. The same (template, user, dayBucket,
// attemptIndex) always reproduces the same variant; bumping attemptIndex
// yields an independent candidate for the anti-repeat retry loop.
func (g *Generator) Generate(tpl *QuestionTemplate, user shared.UserID, dayBucket string, attemptIndex int) (*Variant, error) {
	if tpl == nil {
		return nil, shared.ErrTemplateNotFound
	}

	seedKey := SeedKey(string(user), string(tpl.ID), dayBucket, attemptIndex)
	rng := NewSeededRNG(SeedFor(string(user), string(tpl.ID), dayBucket, attemptIndex))

	// CreatedAt is pinned to the day bucket, not the wall clock, so the
	// whole variant really is a pure function of the arguments.
	createdAt, err := time.Parse(timeutil.DayBucketLayout, dayBucket)
	if err != nil {
		return nil, shared.WrapError("content", "Generate", shared.ErrInvalidInput,
			fmt.Sprintf("day bucket %q is not a valid day key", dayBucket), err)
	}

	vars, err := g.drawVars(tpl, rng)
	if err != nil {
		return nil, err
	}

	v := &Variant{
		// UUIDv5-style stability: the ID is a function of the seed so that
		// regeneration is idempotent.
		ID:         uuid.NewSHA1(uuid.NameSpaceOID, []byte(seedKey)).String(),
		UserID:     user,
		TemplateID: tpl.ID,
		SkillID:    tpl.SkillID,
		Difficulty: tpl.Difficulty,
		Seed:       seedKey,
		Signature:  signatureOf(tpl.ID, vars),
		Vars:       vars,
		CreatedAt:  createdAt,
	}

	v.Prompt = substitute(tpl.PromptTemplate, vars)
	v.Explanation = substitute(tpl.ExplanationTemplate, vars)

	if err := g.render(tpl, v, rng); err != nil {
		return nil, err
	}

	return v, nil
}

// drawVars walks the generator spec: ranged fields, then weighted fields,
// then derived arithmetic over the already-drawn variables.
func (g *Generator) drawVars(tpl *QuestionTemplate, rng *SeededRNG) (map[string]VarValue, error) {
	vars := make(map[string]VarValue, len(tpl.Generator.Fields)+len(tpl.Generator.Derived))

	for _, field := range tpl.Generator.Fields {
		switch field.Kind {
		case FieldRange:
			vars[field.Name] = NumVar(rng.Int64Between(field.Min, field.Max))
		case FieldWeighted:
			choice, err := drawWeighted(field, rng)
			if err != nil {
				return nil, err
			}
			vars[field.Name] = choice
		default:
			return nil, shared.WrapError("content", "Generate", shared.ErrInvalidInput,
				fmt.Sprintf("field %q has unknown kind %q", field.Name, field.Kind), nil)
		}
	}

	for _, derived := range tpl.Generator.Derived {
		value, err := deriveField(derived, vars)
		if err != nil {
			return nil, err
		}
		vars[derived.Name] = value
	}

	return vars, nil
}

// drawWeighted selects a choice via cumulative-weight selection.
func drawWeighted(field FieldSpec, rng *SeededRNG) (VarValue, error) {
	total := 0
	for _, c := range field.Choices {
		if c.Weight > 0 {
			total += c.Weight
		}
	}
	if total == 0 {
		return VarValue{}, shared.WrapError("content", "Generate", shared.ErrInvalidInput,
			fmt.Sprintf("weighted field %q has no positive weights", field.Name), nil)
	}

	target := rng.Intn(total)
	cumulative := 0
	for _, c := range field.Choices {
		if c.Weight <= 0 {
			continue
		}
		cumulative += c.Weight
		if target < cumulative {
			return weightedValue(c.Value), nil
		}
	}
	// Unreachable with positive total; keep the last choice as a guard.
	return weightedValue(field.Choices[len(field.Choices)-1].Value), nil
}

// weightedValue promotes numeric-text choices to numeric variables so they
// can participate in derived arithmetic.
func weightedValue(raw string) VarValue {
	var n int64
	if _, err := fmt.Sscanf(raw, "%d", &n); err == nil && fmt.Sprintf("%d", n) == strings.TrimSpace(raw) {
		return NumVar(n)
	}
	return StrVar(raw)
}

// deriveField computes one derived field from drawn numeric operands.
func deriveField(spec DerivedSpec, vars map[string]VarValue) (VarValue, error) {
	left, ok := vars[spec.Left]
	if !ok || !left.Numeric {
		return VarValue{}, shared.WrapError("content", "Generate", shared.ErrInvalidInput,
			fmt.Sprintf("derived field %q: operand %q is not a drawn numeric variable", spec.Name, spec.Left), nil)
	}
	right, ok := vars[spec.Right]
	if !ok || !right.Numeric {
		return VarValue{}, shared.WrapError("content", "Generate", shared.ErrInvalidInput,
			fmt.Sprintf("derived field %q: operand %q is not a drawn numeric variable", spec.Name, spec.Right), nil)
	}

	a, b := left.Num, right.Num
	switch spec.Op {
	case DeriveAdd:
		return NumVar(a + b), nil
	case DeriveSub:
		if spec.NoNegative && a < b {
			a, b = b, a
		}
		return NumVar(a - b), nil
	case DeriveMul:
		return NumVar(a * b), nil
	default:
		return VarValue{}, shared.WrapError("content", "Generate", shared.ErrInvalidInput,
			fmt.Sprintf("derived field %q has unknown op %q", spec.Name, spec.Op), nil)
	}
}

// substitute replaces {{var}} placeholders with rendered values. Unknown
// placeholders are left in place so authoring mistakes stay visible.
func substitute(pattern string, vars map[string]VarValue) string {
	if pattern == "" {
		return ""
	}
	out := pattern
	for name, value := range vars {
		out = strings.ReplaceAll(out, "{{"+name+"}}", value.Str)
	}
	return out
}

// render fills the presentation fields according to the renderer spec.
func (g *Generator) render(tpl *QuestionTemplate, v *Variant, rng *SeededRNG) error {
	answer, ok := v.Vars[tpl.Renderer.answerField()]
	if !ok {
		// Templates without an answer variable (e.g. empty generator specs)
		// render prompt-only.
		v.CorrectIndex = -1
		return nil
	}
	v.Answer = answer.Str

	switch tpl.Renderer.Kind {
	case RenderMultipleChoice:
		if !answer.Numeric {
			return shared.WrapError("content", "Render", shared.ErrInvalidInput,
				"multiple choice needs a numeric answer for distractor synthesis", nil)
		}
		g.renderMultipleChoice(v, answer.Num, tpl.Renderer.choiceCount(), rng)
	case RenderFreeInput, "":
		// Free input presents no choices.
	default:
		return shared.WrapError("content", "Render", shared.ErrInvalidInput,
			fmt.Sprintf("unknown renderer kind %q", tpl.Renderer.Kind), nil)
	}

	return nil
}

// renderMultipleChoice synthesizes distractors near the correct answer and
// deterministically shuffles the options.
func (g *Generator) renderMultipleChoice(v *Variant, answer int64, count int, rng *SeededRNG) {
	seen := map[int64]bool{answer: true}
	options := []int64{answer}

	for len(options) < count {
		candidate := answer
		for try := 0; try < g.MaxDistractorTries; try++ {
			offset := rng.Int64Between(1, 5)
			if rng.Intn(2) == 0 {
				offset = -offset
			}
			candidate = answer + offset
			if candidate >= 0 && !seen[candidate] {
				break
			}
		}
		if seen[candidate] || candidate < 0 {
			// Fall back to a widening positive offset; always terminates.
			candidate = answer + int64(len(options))*5
		}
		seen[candidate] = true
		options = append(options, candidate)
	}

	rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	v.Choices = make([]string, len(options))
	for i, opt := range options {
		v.Choices[i] = fmt.Sprintf("%d", opt)
		if opt == answer {
			v.CorrectIndex = i
		}
	}
}
