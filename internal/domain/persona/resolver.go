package persona

import (
	"context"
	"fmt"
	"time"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/behavior"
	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESOLVER
// ══════════════════════════════════════════════════════════════════════════════

// Score thresholds driving persona transitions.
const (
	calmingFrustration    = 0.70
	challengingConfidence = 0.80
	challengingMaxDropout = 0.55
	supportiveDropout     = 0.65
	supportiveDropoutRise = 0.10
)

// MinDwell is the anti-flapping guard: a switch within this window of the
// previous one is suppressed.
const MinDwell = 30 * time.Minute

// Resolution is the outcome of one resolve call.
type Resolution struct {
	Persona  Persona
	State    *UserPersonaState
	Switched bool
	Previous Key
}

// Resolver assigns and transitions the active persona from behavioral
// scores. One persona per user; missing state lazily initializes to neutral
// rather than erroring.
type Resolver struct {
	catalog Catalog
	states  StateRepository

	autoSwitchOff bool
}

// NewResolver creates a resolver over an immutable catalog.
func NewResolver(catalog Catalog, states StateRepository) *Resolver {
	return &Resolver{catalog: catalog, states: states}
}

// SetAutoSwitch toggles behavioral transitions. When off the resolver still
// assigns and returns the stored persona; it just never changes it.
func (r *Resolver) SetAutoSwitch(enabled bool) {
	r.autoSwitchOff = !enabled
}

// Resolve returns the user's active persona, applying any transition the
// current scores trigger. Transitions are persisted; the dwell guard keeps
// back-to-back recomputations from flapping between personas.
func (r *Resolver) Resolve(ctx context.Context, user shared.UserID, state *behavior.BehavioralState, now time.Time) (*Resolution, error) {
	if user.IsZero() {
		return nil, fmt.Errorf("persona: user_id: %w", shared.ErrEmptyValue)
	}

	stored, err := r.states.Get(ctx, user)
	if err != nil {
		if !shared.IsNotFound(err) {
			return nil, fmt.Errorf("persona: load state: %w", err)
		}
		stored = &UserPersonaState{
			UserID:     user,
			Active:     KeyNeutral,
			SwitchedAt: now,
			UpdatedAt:  now,
		}
		if err := r.states.Save(ctx, stored); err != nil {
			return nil, fmt.Errorf("persona: init state: %w", err)
		}
	}

	resolution := &Resolution{
		Persona:  r.catalog.Get(stored.Active),
		State:    stored,
		Previous: stored.Active,
	}

	if r.autoSwitchOff {
		return resolution, nil
	}

	target, triggered := r.transitionFor(state)
	if !triggered || target == stored.Active {
		return resolution, nil
	}
	if now.Sub(stored.SwitchedAt) < MinDwell && stored.SwitchCount > 0 {
		return resolution, nil
	}

	stored.Active = target
	stored.SwitchedAt = now
	stored.SwitchCount++
	stored.UpdatedAt = now
	if err := r.states.Save(ctx, stored); err != nil {
		return nil, fmt.Errorf("persona: save transition: %w", err)
	}

	resolution.Persona = r.catalog.Get(target)
	resolution.Switched = true
	return resolution, nil
}

// transitionFor maps scores to a target persona. Checked in severity order:
// frustration outranks confidence, dropout outranks both being absent.
func (r *Resolver) transitionFor(state *behavior.BehavioralState) (Key, bool) {
	if state == nil {
		return "", false
	}

	switch {
	case state.Frustration >= calmingFrustration:
		return KeyCalming, true
	case state.DropoutRisk >= supportiveDropout || state.Input("dropout_rise") >= supportiveDropoutRise:
		return KeySupportive, true
	case state.Confidence >= challengingConfidence && state.DropoutRisk < challengingMaxDropout:
		return KeyChallenging, true
	default:
		return "", false
	}
}
