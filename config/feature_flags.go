package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages feature toggles for the engine. Supports gradual
// rollout by user-ID hash and per-user overrides for debugging.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Override rules (for testing/debugging)
	userOverrides map[string]map[string]bool // userID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100). Users are assigned based on a hash of
	// their ID, so assignment is sticky across sessions.
	RolloutPercent int
}

// Predefined feature flag names.
const (
	// === Learning Engine ===
	FeatureSpacedRepetition     = "learning.spaced_repetition"     // review scheduling
	FeatureProceduralGeneration = "learning.procedural_generation" // generation-first planning

	// === Decision Engine ===
	FeatureAtRiskProtection  = "decision.at_risk_protection"  // protective action bundle
	FeatureAutoPersonaSwitch = "decision.auto_persona_switch" // behavioral persona transitions
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[string]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureSpacedRepetition] = &Feature{
		Name:           FeatureSpacedRepetition,
		Description:    "Schedule skill reviews by mastery bucket",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureProceduralGeneration] = &Feature{
		Name:           FeatureProceduralGeneration,
		Description:    "Fill plan slots from templates before the static bank",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAtRiskProtection] = &Feature{
		Name:           FeatureAtRiskProtection,
		Description:    "Prepend the protective bundle for at-risk users",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAutoPersonaSwitch] = &Feature{
		Name:           FeatureAutoPersonaSwitch,
		Description:    "Let behavioral thresholds switch the active persona",
		Enabled:        true,
		RolloutPercent: 100,
	}
}

// loadFromEnvironment applies env overrides of the form
// FEATURE_<NAME>=true|false and FEATURE_<NAME>_ROLLOUT=0..100, where <NAME>
// is the flag name upper-cased with separators replaced by underscores.
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := "FEATURE_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(name))

		if val := os.Getenv(envKey); val != "" {
			if enabled, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = enabled
			}
		}
		if val := os.Getenv(envKey + "_ROLLOUT"); val != "" {
			if pct, err := strconv.Atoi(val); err == nil && pct >= 0 && pct <= 100 {
				feature.RolloutPercent = pct
			}
		}
	}
}

// IsEnabled checks whether a feature is enabled for a user. Per-user
// overrides win; otherwise the rollout percentage gates by user-ID hash.
func (ff *FeatureFlags) IsEnabled(name string, userID string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if overrides, ok := ff.userOverrides[userID]; ok {
		if enabled, ok := overrides[name]; ok {
			return enabled
		}
	}

	feature, ok := ff.features[name]
	if !ok || !feature.Enabled {
		return false
	}
	if feature.RolloutPercent >= 100 {
		return true
	}
	if feature.RolloutPercent <= 0 {
		return false
	}

	return userBucket(name, userID) < feature.RolloutPercent
}

// IsEnabledGlobally checks the flag without user context; partial rollouts
// count as enabled.
func (ff *FeatureFlags) IsEnabledGlobally(name string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[name]
	return ok && feature.Enabled && feature.RolloutPercent > 0
}

// SetOverride pins a feature on or off for one user.
func (ff *FeatureFlags) SetOverride(userID, name string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if ff.userOverrides[userID] == nil {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][name] = enabled
}

// ClearOverrides removes all overrides for a user.
func (ff *FeatureFlags) ClearOverrides(userID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, userID)
}

// userBucket maps (feature, user) to a stable bucket in [0, 100).
func userBucket(name, userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % 100)
}
