package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/policy"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RULE REPOSITORY
// Policy rules are authored as JSONB condition and action arrays. Condition
// values are plain JSON scalars in storage (numbers, strings, booleans) and
// get typed into fact values on load.
// ══════════════════════════════════════════════════════════════════════════════

type conditionJSON struct {
	Key    string `json:"key"`
	Kind   string `json:"kind"`
	Op     string `json:"op,omitempty"`
	Value  any    `json:"value,omitempty"`
	Values []any  `json:"values,omitempty"`
}

func encodeConditions(conds []policy.Condition) ([]byte, error) {
	out := make([]conditionJSON, 0, len(conds))
	for _, c := range conds {
		dto := conditionJSON{
			Key:  c.Key,
			Kind: string(c.Kind),
			Op:   string(c.Op),
		}
		if c.Kind == policy.ExprLiteral || c.Kind == policy.ExprComparison {
			dto.Value = factToScalar(c.Value)
		}
		for _, v := range c.Values {
			dto.Values = append(dto.Values, factToScalar(v))
		}
		out = append(out, dto)
	}
	return json.Marshal(out)
}

func decodeConditions(raw []byte) ([]policy.Condition, error) {
	var dtos []conditionJSON
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &dtos); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrUnknownCondition, err)
		}
	}

	conds := make([]policy.Condition, 0, len(dtos))
	for _, dto := range dtos {
		c := policy.Condition{
			Key:  dto.Key,
			Kind: policy.ExprKind(dto.Kind),
			Op:   policy.Operator(dto.Op),
		}
		if dto.Value != nil {
			v, err := scalarToFact(dto.Value)
			if err != nil {
				return nil, err
			}
			c.Value = v
		}
		for _, raw := range dto.Values {
			v, err := scalarToFact(raw)
			if err != nil {
				return nil, err
			}
			c.Values = append(c.Values, v)
		}
		conds = append(conds, c)
	}
	return conds, nil
}

func factToScalar(v policy.FactValue) any {
	if v.IsNum {
		return v.Num
	}
	return v.Str
}

// scalarToFact types a stored JSON scalar. Booleans collapse to 0/1 the same
// way MergeFacts types boolean extras.
func scalarToFact(v any) (policy.FactValue, error) {
	switch t := v.(type) {
	case float64:
		return policy.NumFact(t), nil
	case string:
		return policy.StrFact(t), nil
	case bool:
		if t {
			return policy.NumFact(1), nil
		}
		return policy.NumFact(0), nil
	default:
		return policy.FactValue{}, fmt.Errorf("%w: value %v (%T)", shared.ErrUnknownCondition, v, v)
	}
}

// RuleRepository implements policy.RuleSource on the policy_rules table.
type RuleRepository struct {
	conn *Connection
}

// NewRuleRepository creates the repository.
func NewRuleRepository(conn *Connection) *RuleRepository {
	return &RuleRepository{conn: conn}
}

// ListEnabled returns the enabled rules for an evaluation context. A rule
// whose stored conditions or actions fail to decode is skipped; one bad row
// must not take decisioning down.
func (r *RuleRepository) ListEnabled(ctx context.Context, evalCtx policy.EvaluationContext) ([]policy.Rule, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, context, priority, enabled, conditions, actions
		FROM policy_rules
		WHERE context = $1 AND enabled
		ORDER BY id
	`, string(evalCtx))
	if err != nil {
		return nil, fmt.Errorf("rules: list enabled: %w", err)
	}
	defer rows.Close()

	var out []policy.Rule
	for rows.Next() {
		var rule policy.Rule
		var context string
		var conditionsRaw, actionsRaw []byte
		if err := rows.Scan(&rule.ID, &context, &rule.Priority, &rule.Enabled, &conditionsRaw, &actionsRaw); err != nil {
			return nil, fmt.Errorf("rules: scan: %w", err)
		}
		rule.Context = policy.EvaluationContext(context)

		if rule.Conditions, err = decodeConditions(conditionsRaw); err != nil {
			continue
		}
		if len(actionsRaw) > 0 {
			if err := json.Unmarshal(actionsRaw, &rule.Actions); err != nil {
				continue
			}
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// Upsert stores or replaces one rule.
func (r *RuleRepository) Upsert(ctx context.Context, rule policy.Rule) error {
	conditionsRaw, err := encodeConditions(rule.Conditions)
	if err != nil {
		return fmt.Errorf("rules: encode conditions: %w", err)
	}
	actionsRaw, err := json.Marshal(rule.Actions)
	if err != nil {
		return fmt.Errorf("rules: encode actions: %w", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO policy_rules (id, context, priority, enabled, conditions, actions)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			context = EXCLUDED.context,
			priority = EXCLUDED.priority,
			enabled = EXCLUDED.enabled,
			conditions = EXCLUDED.conditions,
			actions = EXCLUDED.actions,
			updated_at = NOW()
	`, rule.ID, string(rule.Context), rule.Priority, rule.Enabled, conditionsRaw, actionsRaw)
	if err != nil {
		return fmt.Errorf("rules: upsert: %w", err)
	}
	return nil
}

// SeedDefaults inserts the built-in rule set without touching rules an
// operator has already stored or tuned.
func (r *RuleRepository) SeedDefaults(ctx context.Context) error {
	for _, rule := range policy.DefaultRules() {
		conditionsRaw, err := encodeConditions(rule.Conditions)
		if err != nil {
			return fmt.Errorf("rules: encode conditions: %w", err)
		}
		actionsRaw, err := json.Marshal(rule.Actions)
		if err != nil {
			return fmt.Errorf("rules: encode actions: %w", err)
		}

		_, err = r.conn.Exec(ctx, `
			INSERT INTO policy_rules (id, context, priority, enabled, conditions, actions)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING
		`, rule.ID, string(rule.Context), rule.Priority, rule.Enabled, conditionsRaw, actionsRaw)
		if err != nil {
			return fmt.Errorf("rules: seed %s: %w", rule.ID, err)
		}
	}
	return nil
}
