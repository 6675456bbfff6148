package planner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/content"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/mastery"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeSkillCatalog struct {
	skills []shared.SkillID
}

func (f *fakeSkillCatalog) ResolveScope(_ context.Context, _ shared.UserID, _ shared.PlanScope) ([]shared.SkillID, error) {
	return f.skills, nil
}

type fakeMasteryRepo struct {
	rows map[shared.SkillID]*mastery.SkillMastery
}

func (f *fakeMasteryRepo) GetOrCreate(_ context.Context, user shared.UserID, skill shared.SkillID) (*mastery.SkillMastery, error) {
	if row, ok := f.rows[skill]; ok {
		return row, nil
	}
	return mastery.NewSkillMastery(user, skill, time.Now().UTC()), nil
}

func (f *fakeMasteryRepo) GetForUser(_ context.Context, _ shared.UserID) ([]*mastery.SkillMastery, error) {
	out := make([]*mastery.SkillMastery, 0, len(f.rows))
	for _, row := range f.rows {
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeMasteryRepo) GetForSkills(_ context.Context, _ shared.UserID, skills []shared.SkillID) (map[shared.SkillID]*mastery.SkillMastery, error) {
	out := make(map[shared.SkillID]*mastery.SkillMastery)
	for _, s := range skills {
		if row, ok := f.rows[s]; ok {
			out[s] = row
		}
	}
	return out, nil
}

func (f *fakeMasteryRepo) Mutate(_ context.Context, _ shared.UserID, skill shared.SkillID, fn func(*mastery.SkillMastery) error) (*mastery.SkillMastery, error) {
	row := f.rows[skill]
	if err := fn(row); err != nil {
		return nil, err
	}
	return row, nil
}

func (f *fakeMasteryRepo) FindDueForReview(_ context.Context, _ shared.UserID, now time.Time) ([]shared.SkillID, error) {
	var due []shared.SkillID
	for s, row := range f.rows {
		if row.IsDueForReview(now) {
			due = append(due, s)
		}
	}
	return due, nil
}

type fakeTemplateCatalog struct {
	templates map[shared.SkillID][]*content.QuestionTemplate
}

func (f *fakeTemplateCatalog) GetByID(_ context.Context, id shared.TemplateID) (*content.QuestionTemplate, error) {
	for _, list := range f.templates {
		for _, tpl := range list {
			if tpl.ID == id {
				return tpl, nil
			}
		}
	}
	return nil, shared.ErrTemplateNotFound
}

func (f *fakeTemplateCatalog) ListBySkill(_ context.Context, skill shared.SkillID, difficulty shared.Difficulty) ([]*content.QuestionTemplate, error) {
	var out []*content.QuestionTemplate
	for _, tpl := range f.templates[skill] {
		if tpl.Difficulty == difficulty {
			out = append(out, tpl)
		}
	}
	return out, nil
}

type fakeBank struct {
	questions map[shared.SkillID][]*content.BankQuestion
}

func (f *fakeBank) GetByID(_ context.Context, id shared.QuestionID) (*content.BankQuestion, error) {
	for _, list := range f.questions {
		for _, q := range list {
			if q.ID == id {
				return q, nil
			}
		}
	}
	return nil, shared.ErrQuestionNotFound
}

func (f *fakeBank) ListBySkill(_ context.Context, skill shared.SkillID, difficulty shared.Difficulty) ([]*content.BankQuestion, error) {
	var out []*content.BankQuestion
	for _, q := range f.questions[skill] {
		if q.Difficulty == difficulty {
			out = append(out, q)
		}
	}
	return out, nil
}

type fakeWindow struct {
	served map[string]bool
}

func (f *fakeWindow) WasServed(_ context.Context, _ shared.UserID, key string) (bool, error) {
	return f.served[key], nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func masteryRow(user shared.UserID, skill shared.SkillID, value float64) *mastery.SkillMastery {
	row := mastery.NewSkillMastery(user, skill, time.Now().UTC())
	row.Mastery = value
	return row
}

func templateFor(skill shared.SkillID, difficulty shared.Difficulty, id shared.TemplateID, maxOperand int64) *content.QuestionTemplate {
	return &content.QuestionTemplate{
		ID:             id,
		SkillID:        skill,
		Difficulty:     difficulty,
		PromptTemplate: "What is {{a}} + {{b}}?",
		Generator: content.GeneratorSpec{
			Fields: []content.FieldSpec{
				{Name: "a", Kind: content.FieldRange, Min: 1, Max: maxOperand},
				{Name: "b", Kind: content.FieldRange, Min: 1, Max: maxOperand},
			},
			Derived: []content.DerivedSpec{
				{Name: "answer", Op: content.DeriveAdd, Left: "a", Right: "b"},
			},
		},
		Renderer: content.RendererSpec{Kind: content.RenderMultipleChoice},
	}
}

func allDifficultyTemplates(skill shared.SkillID) []*content.QuestionTemplate {
	return []*content.QuestionTemplate{
		templateFor(skill, shared.DifficultyEasy, shared.TemplateID("tpl-"+skill+"-easy"), 50),
		templateFor(skill, shared.DifficultyMedium, shared.TemplateID("tpl-"+skill+"-med"), 50),
		templateFor(skill, shared.DifficultyHard, shared.TemplateID("tpl-"+skill+"-hard"), 50),
	}
}

func newTestPlanner(skills []shared.SkillID, rows map[shared.SkillID]*mastery.SkillMastery, tpls map[shared.SkillID][]*content.QuestionTemplate, bank map[shared.SkillID][]*content.BankQuestion, served map[string]bool) *Planner {
	if served == nil {
		served = map[string]bool{}
	}
	return New(
		&fakeSkillCatalog{skills: skills},
		&fakeMasteryRepo{rows: rows},
		&fakeTemplateCatalog{templates: tpls},
		&fakeBank{questions: bank},
		content.NewGenerator(),
		&fakeWindow{served: served},
		DefaultConfig(),
	)
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestMixForMastery_Table(t *testing.T) {
	low := MixForMastery(0.2)
	assert.Equal(t, DifficultyMix{Easy: 0.70, Medium: 0.25, Hard: 0.05}, low)

	mid := MixForMastery(0.5)
	assert.Equal(t, DifficultyMix{Easy: 0.30, Medium: 0.50, Hard: 0.20}, mid)

	high := MixForMastery(0.9)
	assert.Equal(t, DifficultyMix{Easy: 0.10, Medium: 0.45, Hard: 0.45}, high)
}

func TestMixForMastery_Monotonic(t *testing.T) {
	prevEasy := 2.0
	prevHard := -1.0
	for m := 0.0; m <= 1.0; m += 0.05 {
		mix := MixForMastery(m)
		assert.LessOrEqual(t, mix.Easy, prevEasy, "easy ratio must not increase (mastery %.2f)", m)
		assert.GreaterOrEqual(t, mix.Hard, prevHard, "hard ratio must not decrease (mastery %.2f)", m)
		prevEasy = mix.Easy
		prevHard = mix.Hard
	}
}

func TestDifficultyMix_DrawFollowsRatios(t *testing.T) {
	mix := MixForMastery(0.9) // {0.10, 0.45, 0.45}

	counts := map[shared.Difficulty]int{}
	for seed := uint64(0); seed < 1000; seed++ {
		rng := content.NewSeededRNG(seed)
		counts[mix.Draw(rng, "")]++
	}

	// All three bands must be reachable, and the draw must not collapse
	// onto the smallest band: at this mix easy is the rarest outcome.
	assert.Greater(t, counts[shared.DifficultyEasy], 0)
	assert.Greater(t, counts[shared.DifficultyMedium], counts[shared.DifficultyEasy])
	assert.Greater(t, counts[shared.DifficultyHard], counts[shared.DifficultyEasy])
	assert.InDelta(t, 100, counts[shared.DifficultyEasy], 60)
}

func TestPlan_FocusSkillPriorities(t *testing.T) {
	user := shared.UserID("user-1")
	skills := []shared.SkillID{"s1", "s2", "s3", "s4", "s5", "s6"}
	due := time.Now().UTC().Add(-time.Hour)
	rows := map[shared.SkillID]*mastery.SkillMastery{
		"s1": masteryRow(user, "s1", 0.9),
		"s2": masteryRow(user, "s2", 0.1),
		"s3": masteryRow(user, "s3", 0.5),
		"s4": masteryRow(user, "s4", 0.95),
		"s5": masteryRow(user, "s5", 0.6),
		"s6": masteryRow(user, "s6", 0.7),
	}
	// s4 is nearly mastered but due for review: the boost must put it first.
	rows["s4"].NextReviewAt = &due

	tpls := map[shared.SkillID][]*content.QuestionTemplate{}
	for _, s := range skills {
		tpls[s] = allDifficultyTemplates(s)
	}

	p := newTestPlanner(skills, rows, tpls, nil, nil)
	plan, err := p.Plan(context.Background(), Request{UserID: user, Scope: shared.GlobalScope(), Count: 5})
	require.NoError(t, err)

	require.Len(t, plan.FocusSkills, 5)
	assert.Equal(t, shared.SkillID("s4"), plan.FocusSkills[0].SkillID)
	assert.Equal(t, shared.SkillID("s2"), plan.FocusSkills[1].SkillID)
	// The strongest non-due skill (s1, mastery 0.9) must be cut.
	for _, f := range plan.FocusSkills {
		assert.NotEqual(t, shared.SkillID("s1"), f.SkillID)
	}
}

func TestPlan_AntiRepeatWithinWindow(t *testing.T) {
	user := shared.UserID("user-2")
	skills := []shared.SkillID{"s1"}
	rows := map[shared.SkillID]*mastery.SkillMastery{"s1": masteryRow(user, "s1", 0.5)}
	tpls := map[shared.SkillID][]*content.QuestionTemplate{"s1": allDifficultyTemplates("s1")}

	served := map[string]bool{}
	window := &fakeWindow{served: served}
	p := New(
		&fakeSkillCatalog{skills: skills},
		&fakeMasteryRepo{rows: rows},
		&fakeTemplateCatalog{templates: tpls},
		&fakeBank{questions: nil},
		content.NewGenerator(),
		window,
		DefaultConfig(),
	)

	seen := map[string]bool{}
	for call := 0; call < 4; call++ {
		plan, err := p.Plan(context.Background(), Request{UserID: user, Scope: shared.GlobalScope(), Count: 3})
		require.NoError(t, err)

		for _, item := range plan.Items {
			assert.False(t, seen[item.RepeatKey], "repeat key %s served twice within window", item.RepeatKey)
			seen[item.RepeatKey] = true
			served[item.RepeatKey] = true
		}
	}
}

func TestPlan_BankFallback(t *testing.T) {
	user := shared.UserID("user-3")
	skills := []shared.SkillID{"s1"}
	rows := map[shared.SkillID]*mastery.SkillMastery{"s1": masteryRow(user, "s1", 0.5)}

	bank := map[shared.SkillID][]*content.BankQuestion{
		"s1": {
			{ID: "q1", SkillID: "s1", Difficulty: shared.DifficultyEasy, Prompt: "2+2?"},
			{ID: "q2", SkillID: "s1", Difficulty: shared.DifficultyMedium, Prompt: "12+7?"},
			{ID: "q3", SkillID: "s1", Difficulty: shared.DifficultyHard, Prompt: "123+77?"},
		},
	}

	// No templates at all: every slot must come from the bank.
	p := newTestPlanner(skills, rows, nil, bank, nil)
	plan, err := p.Plan(context.Background(), Request{UserID: user, Scope: shared.GlobalScope(), Count: 3})
	require.NoError(t, err)

	require.NotEmpty(t, plan.Items)
	for _, item := range plan.Items {
		assert.Equal(t, SourceBank, item.Source)
		require.NotNil(t, item.Question)
	}
}

func TestPlan_ExhaustedSlotsOmitted(t *testing.T) {
	user := shared.UserID("user-4")
	skills := []shared.SkillID{"s1"}
	rows := map[shared.SkillID]*mastery.SkillMastery{"s1": masteryRow(user, "s1", 0.5)}

	// No templates and no bank: the plan is empty, not an error.
	p := newTestPlanner(skills, rows, nil, nil, nil)
	plan, err := p.Plan(context.Background(), Request{UserID: user, Scope: shared.GlobalScope(), Count: 5})
	require.NoError(t, err)
	assert.Empty(t, plan.Items)
	assert.NotEmpty(t, plan.FocusSkills)
}

func TestPlan_AcceptsDuplicateWhenBankEmpty(t *testing.T) {
	user := shared.UserID("user-5")
	skills := []shared.SkillID{"s1"}
	rows := map[shared.SkillID]*mastery.SkillMastery{"s1": masteryRow(user, "s1", 0.5)}
	tpls := map[shared.SkillID][]*content.QuestionTemplate{
		// 1x1 operand space: every generation collides.
		"s1": {
			templateFor("s1", shared.DifficultyEasy, "tpl-tiny-easy", 1),
			templateFor("s1", shared.DifficultyMedium, "tpl-tiny-med", 1),
			templateFor("s1", shared.DifficultyHard, "tpl-tiny-hard", 1),
		},
	}

	served := map[string]bool{}
	p := newTestPlanner(skills, rows, tpls, nil, served)

	first, err := p.Plan(context.Background(), Request{UserID: user, Scope: shared.GlobalScope(), Count: 1})
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	served[first.Items[0].RepeatKey] = true

	second, err := p.Plan(context.Background(), Request{UserID: user, Scope: shared.GlobalScope(), Count: 1})
	require.NoError(t, err)
	require.Len(t, second.Items, 1, "duplicate must be accepted over starving the slot")
	assert.Equal(t, first.Items[0].RepeatKey, second.Items[0].RepeatKey)
}

func TestPlan_DifficultyCeiling(t *testing.T) {
	user := shared.UserID("user-6")
	skills := []shared.SkillID{"s1"}
	// High mastery pushes the mix toward hard.
	rows := map[shared.SkillID]*mastery.SkillMastery{"s1": masteryRow(user, "s1", 0.95)}
	tpls := map[shared.SkillID][]*content.QuestionTemplate{"s1": allDifficultyTemplates("s1")}

	p := newTestPlanner(skills, rows, tpls, nil, nil)
	plan, err := p.Plan(context.Background(), Request{
		UserID:            user,
		Scope:             shared.GlobalScope(),
		Count:             10,
		DifficultyCeiling: shared.DifficultyEasy,
	})
	require.NoError(t, err)

	require.NotEmpty(t, plan.Items)
	for _, item := range plan.Items {
		assert.Equal(t, shared.DifficultyEasy, item.Difficulty)
	}
}

func TestPlan_DifficultyOverride(t *testing.T) {
	user := shared.UserID("user-7")
	skills := []shared.SkillID{"s1"}
	rows := map[shared.SkillID]*mastery.SkillMastery{"s1": masteryRow(user, "s1", 0.1)}
	tpls := map[shared.SkillID][]*content.QuestionTemplate{"s1": allDifficultyTemplates("s1")}

	p := newTestPlanner(skills, rows, tpls, nil, nil)
	plan, err := p.Plan(context.Background(), Request{
		UserID:             user,
		Scope:              shared.GlobalScope(),
		Count:              5,
		DifficultyOverride: shared.DifficultyHard,
	})
	require.NoError(t, err)

	require.NotEmpty(t, plan.Items)
	for _, item := range plan.Items {
		assert.Equal(t, shared.DifficultyHard, item.Difficulty)
	}
}

func TestPlan_ValidatesRequest(t *testing.T) {
	p := newTestPlanner(nil, nil, nil, nil, nil)

	_, err := p.Plan(context.Background(), Request{UserID: "", Scope: shared.GlobalScope(), Count: 3})
	assert.Error(t, err)

	_, err = p.Plan(context.Background(), Request{UserID: "u", Scope: shared.GlobalScope(), Count: 0})
	assert.Error(t, err)

	_, err = p.Plan(context.Background(), Request{UserID: "u", Scope: shared.PlanScope{Kind: shared.ScopeSkill}, Count: 3})
	assert.Error(t, err)
}
