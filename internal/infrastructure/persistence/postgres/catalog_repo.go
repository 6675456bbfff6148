package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/content"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// JSONB CODECS
// Generator and renderer specs, variable sets, and choice lists are stored
// as JSONB. The wire shapes below are the authoring format; field names are
// part of the stored contract and must not change casually.
// ══════════════════════════════════════════════════════════════════════════════

type weightedChoiceJSON struct {
	Value  string `json:"value"`
	Weight int    `json:"weight"`
}

type fieldSpecJSON struct {
	Name    string               `json:"name"`
	Kind    string               `json:"kind"`
	Min     int64                `json:"min,omitempty"`
	Max     int64                `json:"max,omitempty"`
	Choices []weightedChoiceJSON `json:"choices,omitempty"`
}

type derivedSpecJSON struct {
	Name       string `json:"name"`
	Op         string `json:"op"`
	Left       string `json:"left"`
	Right      string `json:"right"`
	NoNegative bool   `json:"no_negative,omitempty"`
}

type generatorSpecJSON struct {
	Fields  []fieldSpecJSON   `json:"fields,omitempty"`
	Derived []derivedSpecJSON `json:"derived,omitempty"`
}

type rendererSpecJSON struct {
	Kind        string `json:"kind"`
	ChoiceCount int    `json:"choice_count,omitempty"`
	AnswerField string `json:"answer_field,omitempty"`
}

type varValueJSON struct {
	Str     string `json:"str"`
	Num     int64  `json:"num,omitempty"`
	Numeric bool   `json:"numeric,omitempty"`
}

func decodeGeneratorSpec(raw []byte) (content.GeneratorSpec, error) {
	var dto generatorSpecJSON
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &dto); err != nil {
			return content.GeneratorSpec{}, fmt.Errorf("decode generator spec: %w", err)
		}
	}
	spec := content.GeneratorSpec{}
	for _, f := range dto.Fields {
		field := content.FieldSpec{
			Name: f.Name,
			Kind: content.FieldKind(f.Kind),
			Min:  f.Min,
			Max:  f.Max,
		}
		for _, c := range f.Choices {
			field.Choices = append(field.Choices, content.WeightedChoice{Value: c.Value, Weight: c.Weight})
		}
		spec.Fields = append(spec.Fields, field)
	}
	for _, d := range dto.Derived {
		spec.Derived = append(spec.Derived, content.DerivedSpec{
			Name:       d.Name,
			Op:         content.DeriveOp(d.Op),
			Left:       d.Left,
			Right:      d.Right,
			NoNegative: d.NoNegative,
		})
	}
	return spec, nil
}

func decodeRendererSpec(raw []byte) (content.RendererSpec, error) {
	var dto rendererSpecJSON
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &dto); err != nil {
			return content.RendererSpec{}, fmt.Errorf("decode renderer spec: %w", err)
		}
	}
	return content.RendererSpec{
		Kind:        content.RendererKind(dto.Kind),
		ChoiceCount: dto.ChoiceCount,
		AnswerField: dto.AnswerField,
	}, nil
}

func encodeVars(vars map[string]content.VarValue) ([]byte, error) {
	dto := make(map[string]varValueJSON, len(vars))
	for k, v := range vars {
		dto[k] = varValueJSON{Str: v.Str, Num: v.Num, Numeric: v.Numeric}
	}
	return json.Marshal(dto)
}

func decodeVars(raw []byte) (map[string]content.VarValue, error) {
	var dto map[string]varValueJSON
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &dto); err != nil {
			return nil, fmt.Errorf("decode vars: %w", err)
		}
	}
	vars := make(map[string]content.VarValue, len(dto))
	for k, v := range dto {
		vars[k] = content.VarValue{Str: v.Str, Num: v.Num, Numeric: v.Numeric}
	}
	return vars, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TEMPLATE CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// TemplateCatalog implements content.TemplateCatalog on the
// question_templates table.
type TemplateCatalog struct {
	conn *Connection
}

// NewTemplateCatalog creates the catalog.
func NewTemplateCatalog(conn *Connection) *TemplateCatalog {
	return &TemplateCatalog{conn: conn}
}

const templateColumns = `id, skill_id, difficulty, question_type,
	prompt_template, explanation_template, generator, renderer, created_at`

// GetByID returns a template by ID.
func (c *TemplateCatalog) GetByID(ctx context.Context, id shared.TemplateID) (*content.QuestionTemplate, error) {
	rows, err := c.conn.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM question_templates WHERE id = $1
	`, templateColumns), string(id))
	if err != nil {
		return nil, fmt.Errorf("catalog: get template: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("catalog: get template: %w", err)
		}
		return nil, shared.ErrTemplateNotFound
	}
	return scanTemplate(rows)
}

// ListBySkill returns the templates for a skill at a difficulty, ordered by
// ID so template selection stays deterministic.
func (c *TemplateCatalog) ListBySkill(ctx context.Context, skill shared.SkillID, difficulty shared.Difficulty) ([]*content.QuestionTemplate, error) {
	rows, err := c.conn.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM question_templates
		WHERE skill_id = $1 AND difficulty = $2
		ORDER BY id
	`, templateColumns), string(skill), string(difficulty))
	if err != nil {
		return nil, fmt.Errorf("catalog: list templates: %w", err)
	}
	defer rows.Close()

	var out []*content.QuestionTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*content.QuestionTemplate, error) {
	var tpl content.QuestionTemplate
	var id, skill, difficulty string
	var generatorRaw, rendererRaw []byte
	err := row.Scan(
		&id, &skill, &difficulty, &tpl.Type,
		&tpl.PromptTemplate, &tpl.ExplanationTemplate,
		&generatorRaw, &rendererRaw, &tpl.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: scan template: %w", err)
	}
	tpl.ID = shared.TemplateID(id)
	tpl.SkillID = shared.SkillID(skill)
	tpl.Difficulty = shared.Difficulty(difficulty)
	if tpl.Generator, err = decodeGeneratorSpec(generatorRaw); err != nil {
		return nil, err
	}
	if tpl.Renderer, err = decodeRendererSpec(rendererRaw); err != nil {
		return nil, err
	}
	return &tpl, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// QUESTION BANK
// ══════════════════════════════════════════════════════════════════════════════

// QuestionBank implements content.QuestionBank on the bank_questions table.
type QuestionBank struct {
	conn *Connection
}

// NewQuestionBank creates the bank.
func NewQuestionBank(conn *Connection) *QuestionBank {
	return &QuestionBank{conn: conn}
}

const bankColumns = `id, skill_id, difficulty, prompt, explanation, choices, correct_index`

// GetByID returns a bank question by ID.
func (b *QuestionBank) GetByID(ctx context.Context, id shared.QuestionID) (*content.BankQuestion, error) {
	rows, err := b.conn.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM bank_questions WHERE id = $1
	`, bankColumns), string(id))
	if err != nil {
		return nil, fmt.Errorf("catalog: get bank question: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("catalog: get bank question: %w", err)
		}
		return nil, shared.ErrQuestionNotFound
	}
	return scanBankQuestion(rows)
}

// ListBySkill returns bank questions for a skill at a difficulty, ordered by ID.
func (b *QuestionBank) ListBySkill(ctx context.Context, skill shared.SkillID, difficulty shared.Difficulty) ([]*content.BankQuestion, error) {
	rows, err := b.conn.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM bank_questions
		WHERE skill_id = $1 AND difficulty = $2
		ORDER BY id
	`, bankColumns), string(skill), string(difficulty))
	if err != nil {
		return nil, fmt.Errorf("catalog: list bank questions: %w", err)
	}
	defer rows.Close()

	var out []*content.BankQuestion
	for rows.Next() {
		q, err := scanBankQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func scanBankQuestion(row rowScanner) (*content.BankQuestion, error) {
	var q content.BankQuestion
	var id, skill, difficulty string
	var choicesRaw []byte
	err := row.Scan(&id, &skill, &difficulty, &q.Prompt, &q.Explanation, &choicesRaw, &q.CorrectIndex)
	if err != nil {
		return nil, fmt.Errorf("catalog: scan bank question: %w", err)
	}
	q.ID = shared.QuestionID(id)
	q.SkillID = shared.SkillID(skill)
	q.Difficulty = shared.Difficulty(difficulty)
	if len(choicesRaw) > 0 {
		if err := json.Unmarshal(choicesRaw, &q.Choices); err != nil {
			return nil, fmt.Errorf("catalog: decode choices: %w", err)
		}
	}
	return &q, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// VARIANT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// VariantRepository implements content.VariantRepository on the
// generated_variants table.
type VariantRepository struct {
	conn *Connection
}

// NewVariantRepository creates the repository.
func NewVariantRepository(conn *Connection) *VariantRepository {
	return &VariantRepository{conn: conn}
}

// Save stores a generated variant. Variants are immutable; saving the same
// ID twice is a no-op.
func (r *VariantRepository) Save(ctx context.Context, v *content.Variant) error {
	varsRaw, err := encodeVars(v.Vars)
	if err != nil {
		return fmt.Errorf("variant: encode vars: %w", err)
	}
	choicesRaw, err := json.Marshal(v.Choices)
	if err != nil {
		return fmt.Errorf("variant: encode choices: %w", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO generated_variants
			(id, user_id, template_id, skill_id, difficulty, seed, signature,
			 vars, prompt, explanation, answer, choices, correct_index, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`, v.ID, string(v.UserID), string(v.TemplateID), string(v.SkillID), string(v.Difficulty),
		v.Seed, v.Signature, varsRaw, v.Prompt, v.Explanation, v.Answer,
		choicesRaw, v.CorrectIndex, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("variant: save: %w", err)
	}
	return nil
}

// GetByID returns a stored variant by ID.
func (r *VariantRepository) GetByID(ctx context.Context, id string) (*content.Variant, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT id, user_id, template_id, skill_id, difficulty, seed, signature,
			vars, prompt, explanation, answer, choices, correct_index, created_at
		FROM generated_variants WHERE id = $1
	`, id)

	var v content.Variant
	var user, template, skill, difficulty string
	var varsRaw, choicesRaw []byte
	err := row.Scan(
		&v.ID, &user, &template, &skill, &difficulty, &v.Seed, &v.Signature,
		&varsRaw, &v.Prompt, &v.Explanation, &v.Answer,
		&choicesRaw, &v.CorrectIndex, &v.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrVariantNotFound
		}
		return nil, fmt.Errorf("variant: get: %w", err)
	}
	v.UserID = shared.UserID(user)
	v.TemplateID = shared.TemplateID(template)
	v.SkillID = shared.SkillID(skill)
	v.Difficulty = shared.Difficulty(difficulty)
	if v.Vars, err = decodeVars(varsRaw); err != nil {
		return nil, err
	}
	if len(choicesRaw) > 0 {
		if err := json.Unmarshal(choicesRaw, &v.Choices); err != nil {
			return nil, fmt.Errorf("variant: decode choices: %w", err)
		}
	}
	return &v, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SKILL CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// SkillCatalog implements planner.SkillCatalog on the skills table.
type SkillCatalog struct {
	conn *Connection
}

// NewSkillCatalog creates the catalog.
func NewSkillCatalog(conn *Connection) *SkillCatalog {
	return &SkillCatalog{conn: conn}
}

// ResolveScope returns the candidate skills for a planning scope. The global
// scope resolves to the skills the user has mastery rows for.
func (c *SkillCatalog) ResolveScope(ctx context.Context, user shared.UserID, scope shared.PlanScope) ([]shared.SkillID, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	var (
		sql  string
		args []any
	)
	switch scope.Kind {
	case shared.ScopeSkill:
		return []shared.SkillID{scope.Skill}, nil
	case shared.ScopeLesson:
		sql = `SELECT id FROM skills WHERE lesson_id = $1 ORDER BY id`
		args = []any{string(scope.Lesson)}
	case shared.ScopeSubject:
		sql = `SELECT id FROM skills WHERE subject_id = $1 ORDER BY id`
		args = []any{string(scope.Subject)}
	case shared.ScopeGlobal:
		sql = `SELECT skill_id FROM skill_mastery WHERE user_id = $1 ORDER BY skill_id`
		args = []any{string(user)}
	default:
		return nil, shared.ErrUnknownScope
	}

	rows, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: resolve scope: %w", err)
	}
	defer rows.Close()

	var skills []shared.SkillID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("catalog: scan skill: %w", err)
		}
		skills = append(skills, shared.SkillID(id))
	}
	return skills, rows.Err()
}
