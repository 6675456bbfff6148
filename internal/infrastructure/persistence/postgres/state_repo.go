package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/behavior"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/persona"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BEHAVIORAL STATE REPOSITORY
// One row per user, replaced on every recomputation. The raw input bag is
// stored as JSONB so the scorer's delta signals survive restarts.
// ══════════════════════════════════════════════════════════════════════════════

// BehavioralStateRepository implements behavior.StateRepository.
type BehavioralStateRepository struct {
	conn *Connection
}

// NewBehavioralStateRepository creates the repository.
func NewBehavioralStateRepository(conn *Connection) *BehavioralStateRepository {
	return &BehavioralStateRepository{conn: conn}
}

// Get returns the stored state or shared.ErrNotFound before the first
// recomputation.
func (r *BehavioralStateRepository) Get(ctx context.Context, user shared.UserID) (*behavior.BehavioralState, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT user_id, rhythm, frustration, confidence, dropout_risk, momentum,
			at_risk_now, last_active_at, inputs, updated_at
		FROM behavioral_states WHERE user_id = $1
	`, string(user))

	var state behavior.BehavioralState
	var id string
	var inputsRaw []byte
	err := row.Scan(
		&id, &state.Rhythm, &state.Frustration, &state.Confidence,
		&state.DropoutRisk, &state.Momentum, &state.AtRiskNow,
		&state.LastActiveAt, &inputsRaw, &state.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStateNotFound
		}
		return nil, fmt.Errorf("behavioral state: get: %w", err)
	}
	state.UserID = shared.UserID(id)
	if len(inputsRaw) > 0 {
		if err := json.Unmarshal(inputsRaw, &state.Inputs); err != nil {
			return nil, fmt.Errorf("behavioral state: decode inputs: %w", err)
		}
	}
	return &state, nil
}

// Save replaces the user's state row.
func (r *BehavioralStateRepository) Save(ctx context.Context, state *behavior.BehavioralState) error {
	inputsRaw, err := json.Marshal(state.Inputs)
	if err != nil {
		return fmt.Errorf("behavioral state: encode inputs: %w", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO behavioral_states
			(user_id, rhythm, frustration, confidence, dropout_risk, momentum,
			 at_risk_now, last_active_at, inputs, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			rhythm = EXCLUDED.rhythm,
			frustration = EXCLUDED.frustration,
			confidence = EXCLUDED.confidence,
			dropout_risk = EXCLUDED.dropout_risk,
			momentum = EXCLUDED.momentum,
			at_risk_now = EXCLUDED.at_risk_now,
			last_active_at = EXCLUDED.last_active_at,
			inputs = EXCLUDED.inputs,
			updated_at = EXCLUDED.updated_at
	`, string(state.UserID), state.Rhythm, state.Frustration, state.Confidence,
		state.DropoutRisk, state.Momentum, state.AtRiskNow,
		state.LastActiveAt, inputsRaw, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("behavioral state: save: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PERSONA STATE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// PersonaStateRepository implements persona.StateRepository.
type PersonaStateRepository struct {
	conn *Connection
}

// NewPersonaStateRepository creates the repository.
func NewPersonaStateRepository(conn *Connection) *PersonaStateRepository {
	return &PersonaStateRepository{conn: conn}
}

// Get returns the stored assignment or shared.ErrNotFound before the first
// resolution.
func (r *PersonaStateRepository) Get(ctx context.Context, user shared.UserID) (*persona.UserPersonaState, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT user_id, active_persona, switched_at, switch_count, updated_at
		FROM persona_states WHERE user_id = $1
	`, string(user))

	var state persona.UserPersonaState
	var id, active string
	err := row.Scan(&id, &active, &state.SwitchedAt, &state.SwitchCount, &state.UpdatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("persona state: get: %w", err)
	}
	state.UserID = shared.UserID(id)
	state.Active = persona.Key(active)
	return &state, nil
}

// Save upserts the assignment row.
func (r *PersonaStateRepository) Save(ctx context.Context, state *persona.UserPersonaState) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO persona_states (user_id, active_persona, switched_at, switch_count, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			active_persona = EXCLUDED.active_persona,
			switched_at = EXCLUDED.switched_at,
			switch_count = EXCLUDED.switch_count,
			updated_at = EXCLUDED.updated_at
	`, string(state.UserID), string(state.Active), state.SwitchedAt, state.SwitchCount, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("persona state: save: %w", err)
	}
	return nil
}
