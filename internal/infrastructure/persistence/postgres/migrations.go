package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// Migrator applies embedded migrations in order.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a migrator with the embedded engine migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.ensureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}

		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			_, err := tx.Exec(ctx,
				fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName),
				mig.Version, mig.Name,
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}

	return nil
}

func (m *Migrator) ensureMigrationTable(ctx context.Context) error {
	_, err := m.conn.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName))
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx,
		fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_learning", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_telemetry", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_decisioning", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: LEARNING
// Skills, mastery rows, question templates, the static bank, and generated
// variants.
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS skills (
	id TEXT PRIMARY KEY,
	lesson_id TEXT NOT NULL DEFAULT '',
	subject_id TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_skills_lesson ON skills(lesson_id);
CREATE INDEX IF NOT EXISTS idx_skills_subject ON skills(subject_id);

CREATE TABLE IF NOT EXISTS skill_mastery (
	user_id TEXT NOT NULL,
	skill_id TEXT NOT NULL,
	mastery DOUBLE PRECISION NOT NULL DEFAULT 0,
	streak_correct INTEGER NOT NULL DEFAULT 0,
	streak_wrong INTEGER NOT NULL DEFAULT 0,
	last_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	next_review_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, skill_id),
	CONSTRAINT mastery_bounds CHECK (mastery >= 0 AND mastery <= 1)
);
CREATE INDEX IF NOT EXISTS idx_skill_mastery_review
	ON skill_mastery(user_id, next_review_at)
	WHERE next_review_at IS NOT NULL;

CREATE TABLE IF NOT EXISTS question_templates (
	id TEXT PRIMARY KEY,
	skill_id TEXT NOT NULL,
	difficulty TEXT NOT NULL,
	question_type TEXT NOT NULL DEFAULT '',
	prompt_template TEXT NOT NULL,
	explanation_template TEXT NOT NULL DEFAULT '',
	generator JSONB NOT NULL DEFAULT '{}',
	renderer JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_templates_skill ON question_templates(skill_id, difficulty);

CREATE TABLE IF NOT EXISTS bank_questions (
	id TEXT PRIMARY KEY,
	skill_id TEXT NOT NULL,
	difficulty TEXT NOT NULL,
	prompt TEXT NOT NULL,
	explanation TEXT NOT NULL DEFAULT '',
	choices JSONB NOT NULL DEFAULT '[]',
	correct_index INTEGER NOT NULL DEFAULT -1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_bank_skill ON bank_questions(skill_id, difficulty);

CREATE TABLE IF NOT EXISTS generated_variants (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	template_id TEXT NOT NULL,
	skill_id TEXT NOT NULL,
	difficulty TEXT NOT NULL,
	seed TEXT NOT NULL,
	signature TEXT NOT NULL,
	vars JSONB NOT NULL DEFAULT '{}',
	prompt TEXT NOT NULL,
	explanation TEXT NOT NULL DEFAULT '',
	answer TEXT NOT NULL DEFAULT '',
	choices JSONB NOT NULL DEFAULT '[]',
	correct_index INTEGER NOT NULL DEFAULT -1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_variants_user_signature ON generated_variants(user_id, signature);
`

const migration001Down = `
DROP TABLE IF EXISTS generated_variants;
DROP TABLE IF EXISTS bank_questions;
DROP TABLE IF EXISTS question_templates;
DROP TABLE IF EXISTS skill_mastery;
DROP TABLE IF EXISTS skills;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: TELEMETRY
// Answer events, sessions, and task outcomes the behavioral scorer
// aggregates over rolling windows.
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS answer_events (
	id BIGSERIAL PRIMARY KEY,
	user_id TEXT NOT NULL,
	skill_id TEXT NOT NULL,
	question_ref TEXT NOT NULL DEFAULT '',
	difficulty TEXT NOT NULL,
	result TEXT NOT NULL,
	mastery_delta DOUBLE PRECISION NOT NULL DEFAULT 0,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	answered_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_answer_events_user_time ON answer_events(user_id, answered_at DESC);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	ended_at TIMESTAMPTZ,
	xp_earned INTEGER NOT NULL DEFAULT 0,
	answers_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_user_time ON sessions(user_id, started_at DESC);

CREATE TABLE IF NOT EXISTS task_outcomes (
	id BIGSERIAL PRIMARY KEY,
	user_id TEXT NOT NULL,
	approved BOOLEAN NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_task_outcomes_user_time ON task_outcomes(user_id, occurred_at DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS task_outcomes;
DROP TABLE IF EXISTS sessions;
DROP TABLE IF EXISTS answer_events;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: DECISIONING
// Behavioral state rows, persona assignments, and the authored policy rules.
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS behavioral_states (
	user_id TEXT PRIMARY KEY,
	rhythm DOUBLE PRECISION NOT NULL DEFAULT 0,
	frustration DOUBLE PRECISION NOT NULL DEFAULT 0,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	dropout_risk DOUBLE PRECISION NOT NULL DEFAULT 0,
	momentum DOUBLE PRECISION NOT NULL DEFAULT 0,
	at_risk_now BOOLEAN NOT NULL DEFAULT FALSE,
	last_active_at TIMESTAMPTZ,
	inputs JSONB NOT NULL DEFAULT '{}',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS persona_states (
	user_id TEXT PRIMARY KEY,
	active_persona TEXT NOT NULL,
	switched_at TIMESTAMPTZ NOT NULL,
	switch_count INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS policy_rules (
	id TEXT PRIMARY KEY,
	context TEXT NOT NULL,
	priority INTEGER NOT NULL DEFAULT 0,
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	conditions JSONB NOT NULL DEFAULT '[]',
	actions JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_policy_rules_context ON policy_rules(context) WHERE enabled;
`

const migration003Down = `
DROP TABLE IF EXISTS policy_rules;
DROP TABLE IF EXISTS persona_states;
DROP TABLE IF EXISTS behavioral_states;
`
