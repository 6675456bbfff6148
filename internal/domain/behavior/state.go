// Package behavior derives composite behavioral scores from rolling-window
// activity telemetry. The scores feed the policy rule engine and the persona
// resolver.
package behavior

import (
	"context"
	"time"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BEHAVIORAL STATE
// ══════════════════════════════════════════════════════════════════════════════

// BehavioralState is the per-user score row. One row per user, replaced in
// place on every recomputation; the prior row is read first so delta signals
// (rhythm drop, frustration rise) can be derived.
type BehavioralState struct {
	UserID shared.UserID

	// Bounded scores in [0,1].
	Rhythm      float64
	Frustration float64
	Confidence  float64
	DropoutRisk float64

	// Momentum is unbounded and signed.
	Momentum float64

	AtRiskNow bool

	LastActiveAt *time.Time
	UpdatedAt    time.Time

	// Inputs carries the raw window aggregates and intermediate signals the
	// scores were computed from, keyed by name. Downstream rule evaluation
	// merges these into its fact lookup.
	Inputs map[string]float64
}

// Input returns a named raw input, zero when absent.
func (s *BehavioralState) Input(key string) float64 {
	if s == nil || s.Inputs == nil {
		return 0
	}
	return s.Inputs[key]
}

// Facts flattens the composite scores and raw inputs into a single lookup
// for rule evaluation. Scores win on key collision.
func (s *BehavioralState) Facts() map[string]float64 {
	facts := make(map[string]float64, len(s.Inputs)+6)
	for k, v := range s.Inputs {
		facts[k] = v
	}
	facts["rhythm"] = s.Rhythm
	facts["frustration"] = s.Frustration
	facts["confidence"] = s.Confidence
	facts["dropout_risk"] = s.DropoutRisk
	facts["momentum"] = s.Momentum
	if s.AtRiskNow {
		facts["at_risk_now"] = 1
	} else {
		facts["at_risk_now"] = 0
	}
	return facts
}

// StateRepository persists behavioral state rows.
type StateRepository interface {
	// Get returns the stored state or shared.ErrNotFound before the first
	// recomputation.
	Get(ctx context.Context, user shared.UserID) (*BehavioralState, error)

	// Save replaces the user's state row.
	Save(ctx context.Context, state *BehavioralState) error
}
