package content

import (
	"context"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG & REPOSITORY INTERFACES
// Templates and the static bank are authored out of band; this core only
// reads them. Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// TemplateCatalog provides read access to authored question templates.
type TemplateCatalog interface {
	// GetByID returns a template. Returns ErrTemplateNotFound when missing.
	GetByID(ctx context.Context, id shared.TemplateID) (*QuestionTemplate, error)

	// ListBySkill returns the templates for a skill at a difficulty, ordered
	// by template ID for deterministic selection.
	ListBySkill(ctx context.Context, skill shared.SkillID, difficulty shared.Difficulty) ([]*QuestionTemplate, error)
}

// BankQuestion is a static, pre-authored practice item used as the fallback
// when procedural generation cannot satisfy a slot.
type BankQuestion struct {
	ID           shared.QuestionID
	SkillID      shared.SkillID
	Difficulty   shared.Difficulty
	Prompt       string
	Explanation  string
	Choices      []string
	CorrectIndex int
}

// QuestionBank provides read access to the static question bank.
type QuestionBank interface {
	// GetByID returns a bank question. Returns ErrQuestionNotFound when missing.
	GetByID(ctx context.Context, id shared.QuestionID) (*BankQuestion, error)

	// ListBySkill returns bank questions for a skill at a difficulty,
	// ordered by question ID.
	ListBySkill(ctx context.Context, skill shared.SkillID, difficulty shared.Difficulty) ([]*BankQuestion, error)
}

// VariantRepository persists generated variants for audit and answer
// verification. Variants are immutable once saved.
type VariantRepository interface {
	// Save stores a variant. Saving the same variant ID twice is a no-op.
	Save(ctx context.Context, v *Variant) error

	// GetByID returns a variant. Returns ErrVariantNotFound when missing.
	GetByID(ctx context.Context, id string) (*Variant, error)
}
