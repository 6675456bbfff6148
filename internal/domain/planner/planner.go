// Package planner assembles personalized practice plans: it picks focus
// skills from mastery priorities, derives a difficulty mix, and fills slots
// with procedurally generated variants (bank questions as fallback) while
// avoiding recently served content.
package planner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/content"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/mastery"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
	"github.com/brightpath-labs/brightpath-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// COLLABORATOR INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// SkillCatalog resolves planning scopes to candidate skill sets.
type SkillCatalog interface {
	// ResolveScope returns the candidate skills for the scope. For the
	// global scope this is every skill the user has touched.
	ResolveScope(ctx context.Context, user shared.UserID, scope shared.PlanScope) ([]shared.SkillID, error)
}

// RepeatWindow answers whether content was recently served to a user.
// Implementations keep a rolling window (typically Redis-backed).
type RepeatWindow interface {
	// WasServed reports whether the signature or question ID was served to
	// the user within the anti-repeat window.
	WasServed(ctx context.Context, user shared.UserID, key string) (bool, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// PLAN TYPES
// ══════════════════════════════════════════════════════════════════════════════

// ItemSource tells where a plan item came from.
type ItemSource string

const (
	SourceGenerated ItemSource = "generated"
	SourceBank      ItemSource = "bank"
)

// PlanItem is one slot of a question plan.
type PlanItem struct {
	Slot       int
	SkillID    shared.SkillID
	Difficulty shared.Difficulty
	Source     ItemSource

	// Variant is set for generated items, Question for bank items.
	Variant  *content.Variant
	Question *content.BankQuestion

	// RepeatKey is the signature (generated) or question ID (bank) recorded
	// into the anti-repeat window once the item is served.
	RepeatKey string
}

// FocusSkill is one prioritized skill with its selection inputs.
type FocusSkill struct {
	SkillID      shared.SkillID
	Mastery      float64
	DueForReview bool
	Priority     float64
}

// QuestionPlan is the planner output handed to the presentation layer.
type QuestionPlan struct {
	UserID      shared.UserID
	Items       []PlanItem
	FocusSkills []FocusSkill
	Mix         DifficultyMix
	GeneratedAt time.Time
}

// FocusSkillIDs returns the focus skills in priority order.
func (p *QuestionPlan) FocusSkillIDs() []shared.SkillID {
	ids := make([]shared.SkillID, 0, len(p.FocusSkills))
	for _, f := range p.FocusSkills {
		ids = append(ids, f.SkillID)
	}
	return ids
}

// Request describes one planning call.
type Request struct {
	UserID shared.UserID
	Scope  shared.PlanScope
	Count  int

	// DifficultyCeiling caps every selection at or below it when set.
	DifficultyCeiling shared.Difficulty

	// DifficultyOverride pins every slot to one difficulty when set,
	// bypassing the mix draw (the ceiling still applies).
	DifficultyOverride shared.Difficulty
}

// Validate checks the request.
func (r Request) Validate() error {
	if r.UserID.IsZero() {
		return fmt.Errorf("plan: user_id: %w", shared.ErrEmptyValue)
	}
	if r.Count <= 0 {
		return fmt.Errorf("plan: count must be positive: %w", shared.ErrValueOutOfRange)
	}
	return r.Scope.Validate()
}

// ══════════════════════════════════════════════════════════════════════════════
// PLANNER
// ══════════════════════════════════════════════════════════════════════════════

// Config tunes the planner.
type Config struct {
	// MaxFocusSkills bounds the focus set.
	MaxFocusSkills int

	// ReviewPriorityBoost is added to a skill's priority when it is due.
	ReviewPriorityBoost float64

	// MaxGenerateAttempts bounds the anti-repeat generation retries per
	// slot before a duplicate is accepted.
	MaxGenerateAttempts int

	// ProceduralGeneration enables the generation-first path. When off the
	// planner serves from the bank only.
	ProceduralGeneration bool
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		MaxFocusSkills:       5,
		ReviewPriorityBoost:  2.0,
		MaxGenerateAttempts:  4,
		ProceduralGeneration: true,
	}
}

// Planner builds question plans.
type Planner struct {
	skills    SkillCatalog
	masteries mastery.Repository
	templates content.TemplateCatalog
	bank      content.QuestionBank
	generator *content.Generator
	window    RepeatWindow
	cfg       Config

	// now is injectable for tests.
	now func() time.Time
}

// New creates a planner.
func New(
	skills SkillCatalog,
	masteries mastery.Repository,
	templates content.TemplateCatalog,
	bank content.QuestionBank,
	generator *content.Generator,
	window RepeatWindow,
	cfg Config,
) *Planner {
	if cfg.MaxFocusSkills == 0 {
		cfg = DefaultConfig()
	}
	return &Planner{
		skills:    skills,
		masteries: masteries,
		templates: templates,
		bank:      bank,
		generator: generator,
		window:    window,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Plan assembles a question plan. Slots that cannot be satisfied after
// bounded retries and an empty bank are omitted rather than failing the whole
// plan, so the planner always terminates with at most req.Count items.
func (p *Planner) Plan(ctx context.Context, req Request) (*QuestionPlan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := p.now()

	focus, err := p.selectFocusSkills(ctx, req, now)
	if err != nil {
		return nil, err
	}

	plan := &QuestionPlan{
		UserID:      req.UserID,
		FocusSkills: focus,
		GeneratedAt: now,
	}
	if len(focus) == 0 {
		return plan, nil
	}

	avg := 0.0
	for _, f := range focus {
		avg += f.Mastery
	}
	avg /= float64(len(focus))
	plan.Mix = MixForMastery(avg)

	dayBucket := timeutil.DayBucket(now)

	for slot := 0; slot < req.Count; slot++ {
		skill := focus[slot%len(focus)].SkillID
		difficulty := p.slotDifficulty(req, plan.Mix, dayBucket, slot)

		item, err := p.fillSlot(ctx, req.UserID, skill, difficulty, dayBucket, slot)
		if err != nil {
			return nil, err
		}
		if item == nil {
			// Exhausted: slot omitted, plan continues.
			continue
		}
		plan.Items = append(plan.Items, *item)
	}

	return plan, nil
}

// selectFocusSkills resolves the scope, scores each candidate skill by
// (1 - mastery) plus a due-for-review boost, and keeps the top few.
func (p *Planner) selectFocusSkills(ctx context.Context, req Request, now time.Time) ([]FocusSkill, error) {
	candidates, err := p.skills.ResolveScope(ctx, req.UserID, req.Scope)
	if err != nil {
		return nil, fmt.Errorf("plan: resolve scope: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	rows, err := p.masteries.GetForSkills(ctx, req.UserID, candidates)
	if err != nil {
		return nil, fmt.Errorf("plan: load masteries: %w", err)
	}

	focus := make([]FocusSkill, 0, len(candidates))
	for _, skill := range candidates {
		f := FocusSkill{SkillID: skill}
		if row, ok := rows[skill]; ok {
			f.Mastery = row.Mastery
			f.DueForReview = row.IsDueForReview(now)
		}
		f.Priority = 1 - f.Mastery
		if f.DueForReview {
			f.Priority += p.cfg.ReviewPriorityBoost
		}
		focus = append(focus, f)
	}

	sort.SliceStable(focus, func(i, j int) bool {
		if focus[i].Priority != focus[j].Priority {
			return focus[i].Priority > focus[j].Priority
		}
		return focus[i].SkillID < focus[j].SkillID
	})

	if len(focus) > p.cfg.MaxFocusSkills {
		focus = focus[:p.cfg.MaxFocusSkills]
	}
	return focus, nil
}

// slotDifficulty draws the target difficulty for a slot. The draw is seeded
// by (user, day bucket, slot) so a plan is reproducible within a day.
func (p *Planner) slotDifficulty(req Request, mix DifficultyMix, dayBucket string, slot int) shared.Difficulty {
	if req.DifficultyOverride.IsValid() {
		return capDifficulty(req.DifficultyOverride, req.DifficultyCeiling)
	}
	rng := content.NewSeededRNG(content.SeedFor(string(req.UserID), "plan-slot", dayBucket, slot))
	return mix.Draw(rng, req.DifficultyCeiling)
}

// fillSlot tries procedural generation first, then the static bank. Both
// paths skip content served within the anti-repeat window; generation retries
// with increasing attempt indexes before accepting a duplicate. A nil item
// with nil error means the slot is exhausted.
func (p *Planner) fillSlot(
	ctx context.Context,
	user shared.UserID,
	skill shared.SkillID,
	difficulty shared.Difficulty,
	dayBucket string,
	slot int,
) (*PlanItem, error) {
	var duplicate *content.Variant

	if p.cfg.ProceduralGeneration {
		templates, err := p.templates.ListBySkill(ctx, skill, difficulty)
		if err != nil && !shared.IsNotFound(err) {
			return nil, fmt.Errorf("plan: list templates: %w", err)
		}

		if len(templates) > 0 {
			// Spread slots across templates, then walk attempts.
			tpl := templates[slot%len(templates)]
			for attempt := 0; attempt < p.cfg.MaxGenerateAttempts; attempt++ {
				v, err := p.generator.Generate(tpl, user, dayBucket, slot*p.cfg.MaxGenerateAttempts+attempt)
				if err != nil {
					return nil, fmt.Errorf("plan: generate: %w", err)
				}

				served, err := p.window.WasServed(ctx, user, v.Signature)
				if err != nil {
					// A stale window only risks a repeated item; degrade
					// to serving the candidate.
					served = false
				}
				if !served {
					return generatedItem(slot, skill, difficulty, v), nil
				}
				duplicate = v
			}
		}
	}

	item, err := p.fillFromBank(ctx, user, skill, difficulty, slot)
	if err != nil {
		return nil, err
	}
	if item != nil {
		return item, nil
	}

	// Empty bank: accept the duplicate variant rather than starving the slot.
	if duplicate != nil {
		return generatedItem(slot, skill, difficulty, duplicate), nil
	}

	return nil, nil
}

// fillFromBank picks the first bank question not inside the repeat window.
func (p *Planner) fillFromBank(
	ctx context.Context,
	user shared.UserID,
	skill shared.SkillID,
	difficulty shared.Difficulty,
	slot int,
) (*PlanItem, error) {
	questions, err := p.bank.ListBySkill(ctx, skill, difficulty)
	if err != nil && !shared.IsNotFound(err) {
		return nil, fmt.Errorf("plan: list bank questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, nil
	}

	for i := 0; i < len(questions); i++ {
		q := questions[(slot+i)%len(questions)]
		served, err := p.window.WasServed(ctx, user, string(q.ID))
		if err != nil {
			served = false
		}
		if !served {
			return bankItem(slot, skill, difficulty, q), nil
		}
	}

	return nil, nil
}

func generatedItem(slot int, skill shared.SkillID, difficulty shared.Difficulty, v *content.Variant) *PlanItem {
	return &PlanItem{
		Slot:       slot,
		SkillID:    skill,
		Difficulty: difficulty,
		Source:     SourceGenerated,
		Variant:    v,
		RepeatKey:  v.Signature,
	}
}

func bankItem(slot int, skill shared.SkillID, difficulty shared.Difficulty, q *content.BankQuestion) *PlanItem {
	return &PlanItem{
		Slot:       slot,
		SkillID:    skill,
		Difficulty: difficulty,
		Source:     SourceBank,
		Question:   q,
		RepeatKey:  string(q.ID),
	}
}
