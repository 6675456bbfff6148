package shared

import (
	"fmt"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// IDENTIFIERS
// ══════════════════════════════════════════════════════════════════════════════

// UserID identifies a learner.
type UserID string

// SkillID identifies a practicable skill.
type SkillID string

// TemplateID identifies a question template.
type TemplateID string

// QuestionID identifies a static bank question.
type QuestionID string

// LessonID identifies a lesson grouping of skills.
type LessonID string

// SubjectID identifies a subject grouping of lessons.
type SubjectID string

// IsZero reports whether the user ID is empty.
func (id UserID) IsZero() bool { return id == "" }

// IsZero reports whether the skill ID is empty.
func (id SkillID) IsZero() bool { return id == "" }

// ══════════════════════════════════════════════════════════════════════════════
// DIFFICULTY
// ══════════════════════════════════════════════════════════════════════════════

// Difficulty is the served difficulty of a practice item.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Factor returns the mastery-delta multiplier for this difficulty.
func (d Difficulty) Factor() float64 {
	switch d {
	case DifficultyEasy:
		return 0.8
	case DifficultyHard:
		return 1.2
	default:
		return 1.0
	}
}

// Rank orders difficulties (easy < medium < hard) for ceiling comparisons.
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyEasy:
		return 0
	case DifficultyMedium:
		return 1
	case DifficultyHard:
		return 2
	default:
		return 1
	}
}

// IsValid reports whether d is a known difficulty.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// ParseDifficulty parses a difficulty string.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", fmt.Errorf("parse difficulty %q: %w", s, ErrInvalidInput)
	}
	return d, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ANSWER RESULT
// ══════════════════════════════════════════════════════════════════════════════

// AnswerResult is the outcome of a single answer submission.
type AnswerResult string

const (
	ResultCorrect AnswerResult = "CORRECT"
	ResultWrong   AnswerResult = "WRONG"
	ResultSkipped AnswerResult = "SKIPPED"
)

// IsValid reports whether r is a known answer result.
func (r AnswerResult) IsValid() bool {
	switch r {
	case ResultCorrect, ResultWrong, ResultSkipped:
		return true
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// SCORES
// ══════════════════════════════════════════════════════════════════════════════

// Clamp01 clamps v to the [0,1] interval.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Clamp clamps v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ══════════════════════════════════════════════════════════════════════════════
// PLANNING SCOPE
// ══════════════════════════════════════════════════════════════════════════════

// ScopeKind selects how the planner resolves candidate skills.
type ScopeKind string

const (
	ScopeSkill   ScopeKind = "skill"
	ScopeLesson  ScopeKind = "lesson"
	ScopeSubject ScopeKind = "subject"
	ScopeGlobal  ScopeKind = "global"
)

// PlanScope describes the requested practice scope.
type PlanScope struct {
	Kind    ScopeKind
	Skill   SkillID
	Lesson  LessonID
	Subject SubjectID
}

// Validate checks that the scope references match its kind.
func (s PlanScope) Validate() error {
	switch s.Kind {
	case ScopeSkill:
		if s.Skill.IsZero() {
			return fmt.Errorf("scope skill: %w", ErrEmptyValue)
		}
	case ScopeLesson:
		if s.Lesson == "" {
			return fmt.Errorf("scope lesson: %w", ErrEmptyValue)
		}
	case ScopeSubject:
		if s.Subject == "" {
			return fmt.Errorf("scope subject: %w", ErrEmptyValue)
		}
	case ScopeGlobal:
		// No references needed.
	default:
		return fmt.Errorf("scope kind %q: %w", s.Kind, ErrInvalidInput)
	}
	return nil
}

// GlobalScope returns a scope covering every skill the user has touched.
func GlobalScope() PlanScope { return PlanScope{Kind: ScopeGlobal} }

// SkillScope returns a scope pinned to a single skill.
func SkillScope(skill SkillID) PlanScope { return PlanScope{Kind: ScopeSkill, Skill: skill} }
