package content

import (
	"time"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUESTION TEMPLATE
// Immutable after authoring; authoring itself is an out-of-scope admin surface.
// ══════════════════════════════════════════════════════════════════════════════

// QuestionTemplate describes how to synthesize variants of one practice item.
type QuestionTemplate struct {
	// ID identifies the template.
	ID shared.TemplateID

	// SkillID is the skill this template exercises.
	SkillID shared.SkillID

	// Difficulty is the authored difficulty of the generated items.
	Difficulty shared.Difficulty

	// Type is a free-form tag ("arithmetic", "word_problem", ...).
	Type string

	// PromptTemplate is the prompt pattern with {{var}} placeholders.
	PromptTemplate string

	// ExplanationTemplate is the explanation pattern shown after answering.
	ExplanationTemplate string

	// Generator describes how to draw the variable set.
	Generator GeneratorSpec

	// Renderer describes how to present the drawn variables.
	Renderer RendererSpec

	// CreatedAt is when the template was authored.
	CreatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// GENERATOR SPEC
// ══════════════════════════════════════════════════════════════════════════════

// FieldKind selects the drawing strategy for one variable.
type FieldKind string

const (
	// FieldRange draws an integer uniformly between Min and Max inclusive.
	FieldRange FieldKind = "range"

	// FieldWeighted draws from Choices via cumulative-weight selection.
	FieldWeighted FieldKind = "weighted"
)

// WeightedChoice is one candidate value with its selection weight.
type WeightedChoice struct {
	Value  string
	Weight int
}

// FieldSpec describes one generated variable.
type FieldSpec struct {
	Name    string
	Kind    FieldKind
	Min     int64
	Max     int64
	Choices []WeightedChoice
}

// DeriveOp is a derived-field arithmetic operation.
type DeriveOp string

const (
	DeriveAdd DeriveOp = "add"
	DeriveSub DeriveOp = "sub"
	DeriveMul DeriveOp = "mul"
)

// DerivedSpec computes a field (typically "answer") from drawn variables.
type DerivedSpec struct {
	// Name is the derived field name.
	Name string

	// Op is the arithmetic operation.
	Op DeriveOp

	// Left and Right name the operand variables.
	Left  string
	Right string

	// NoNegative swaps subtraction operands when the result would be
	// negative, keeping generated answers in natural-number range.
	NoNegative bool
}

// GeneratorSpec is the full variable-drawing recipe for a template.
type GeneratorSpec struct {
	Fields  []FieldSpec
	Derived []DerivedSpec
}

// IsEmpty reports whether the spec draws no variables. Empty templates render
// with empty variables rather than failing.
func (s GeneratorSpec) IsEmpty() bool {
	return len(s.Fields) == 0 && len(s.Derived) == 0
}

// ══════════════════════════════════════════════════════════════════════════════
// RENDERER SPEC
// ══════════════════════════════════════════════════════════════════════════════

// RendererKind selects the presentation of a generated variant.
type RendererKind string

const (
	// RenderMultipleChoice presents the answer among synthesized distractors.
	RenderMultipleChoice RendererKind = "multiple_choice"

	// RenderFreeInput presents a free-form input field.
	RenderFreeInput RendererKind = "free_input"
)

// RendererSpec describes how to present the drawn variables.
type RendererSpec struct {
	// Kind is the presentation form.
	Kind RendererKind

	// ChoiceCount is the number of options for multiple choice (answer
	// included). Defaults to 4 when zero.
	ChoiceCount int

	// AnswerField names the variable holding the correct answer.
	// Defaults to "answer".
	AnswerField string
}

// choiceCount returns the effective option count.
func (s RendererSpec) choiceCount() int {
	if s.ChoiceCount <= 1 {
		return 4
	}
	return s.ChoiceCount
}

// answerField returns the effective answer variable name.
func (s RendererSpec) answerField() string {
	if s.AnswerField == "" {
		return "answer"
	}
	return s.AnswerField
}
