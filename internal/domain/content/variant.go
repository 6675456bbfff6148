package content

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/brightpath-labs/brightpath-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GENERATED VARIANT
// ══════════════════════════════════════════════════════════════════════════════

// VarValue is one generated variable. Ranged and derived fields are numeric;
// weighted choices are strings (which may themselves be numeric text).
type VarValue struct {
	Str     string
	Num     int64
	Numeric bool
}

// NumVar creates a numeric variable value.
func NumVar(n int64) VarValue {
	return VarValue{Str: fmt.Sprintf("%d", n), Num: n, Numeric: true}
}

// StrVar creates a string variable value.
func StrVar(s string) VarValue {
	return VarValue{Str: s}
}

// Variant is one concrete practice item synthesized from a template. Created
// on demand, never mutated; discarded by the caller when its signature
// collides with a recently served one for the same (user, template).
type Variant struct {
	// ID identifies the variant (assigned at generation).
	ID string

	// UserID is the owning user.
	UserID shared.UserID

	// TemplateID references the source template.
	TemplateID shared.TemplateID

	// SkillID and Difficulty are copied from the template for convenience.
	SkillID    shared.SkillID
	Difficulty shared.Difficulty

	// Seed is the canonical seed string the variant was generated from.
	Seed string

	// Signature is the hash of the generated variable set, used for
	// anti-repeat deduplication within the rolling window.
	Signature string

	// Vars is the drawn variable set.
	Vars map[string]VarValue

	// Prompt and Explanation are the rendered patterns.
	Prompt      string
	Explanation string

	// Answer is the rendered correct answer.
	Answer string

	// Choices holds the presented options for multiple choice; empty for
	// free input. CorrectIndex locates Answer within Choices.
	Choices      []string
	CorrectIndex int

	// CreatedAt is midnight UTC of the generation day bucket, so it is as
	// deterministic as every other field.
	CreatedAt time.Time
}

// signatureOf hashes the variable set into a stable hex signature. Variables
// are encoded in sorted key order so map iteration order cannot leak in; the
// template ID keeps zero-variable templates distinguishable from each other.
func signatureOf(template shared.TemplateID, vars map[string]VarValue) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(template))
	for _, k := range keys {
		b.WriteByte(0x1f)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(vars[k].Str)
	}

	sum := blake2b.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", sum[:16])
}
