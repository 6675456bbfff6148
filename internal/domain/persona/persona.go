// Package persona maintains the per-user bias profile applied to policy
// decisions. Personas are a fixed catalog; only the assignment is per-user.
package persona

import (
	"context"
	"time"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// Key identifies a persona in the catalog.
type Key string

const (
	KeyNeutral     Key = "neutral"
	KeyCalming     Key = "calming"
	KeyChallenging Key = "challenging"
	KeySupportive  Key = "supportive"
	KeyPlayful     Key = "playful"
)

// Persona is one named bias profile. StyleKey selects the copy/tone bundle
// in the message-template layer downstream.
type Persona struct {
	Key           Key
	Name          string
	ToneBias      float64
	RewardBias    float64
	ChallengeBias float64
	StyleKey      string
}

// Catalog is the immutable persona table the resolver is constructed with.
type Catalog map[Key]Persona

// DefaultCatalog returns the production persona set.
func DefaultCatalog() Catalog {
	return Catalog{
		KeyNeutral: {
			Key: KeyNeutral, Name: "Neutral",
			ToneBias: 1.0, RewardBias: 1.0, ChallengeBias: 1.0,
			StyleKey: "neutral",
		},
		KeyCalming: {
			Key: KeyCalming, Name: "Calming",
			ToneBias: 0.8, RewardBias: 1.2, ChallengeBias: 0.7,
			StyleKey: "calm_reassuring",
		},
		KeyChallenging: {
			Key: KeyChallenging, Name: "Challenging",
			ToneBias: 1.1, RewardBias: 0.9, ChallengeBias: 1.4,
			StyleKey: "energetic_pushing",
		},
		KeySupportive: {
			Key: KeySupportive, Name: "Supportive",
			ToneBias: 0.9, RewardBias: 1.5, ChallengeBias: 0.8,
			StyleKey: "warm_encouraging",
		},
		KeyPlayful: {
			Key: KeyPlayful, Name: "Playful",
			ToneBias: 1.2, RewardBias: 1.1, ChallengeBias: 1.0,
			StyleKey: "light_playful",
		},
	}
}

// Get returns the persona for key, falling back to neutral for unknown keys
// so a stale stored assignment never breaks decisioning.
func (c Catalog) Get(key Key) Persona {
	if p, ok := c[key]; ok {
		return p
	}
	return c[KeyNeutral]
}

// ══════════════════════════════════════════════════════════════════════════════
// PER-USER STATE
// ══════════════════════════════════════════════════════════════════════════════

// UserPersonaState is the per-user assignment row.
type UserPersonaState struct {
	UserID      shared.UserID
	Active      Key
	SwitchedAt  time.Time
	SwitchCount int
	UpdatedAt   time.Time
}

// StateRepository persists persona assignments.
type StateRepository interface {
	// Get returns the stored assignment or shared.ErrNotFound before the
	// first resolution.
	Get(ctx context.Context, user shared.UserID) (*UserPersonaState, error)

	// Save upserts the assignment row.
	Save(ctx context.Context, state *UserPersonaState) error
}
