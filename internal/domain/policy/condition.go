package policy

import "fmt"

// ══════════════════════════════════════════════════════════════════════════════
// CONDITION EXPRESSIONS
// ══════════════════════════════════════════════════════════════════════════════

// Operator is a comparison operator usable in rule conditions.
type Operator string

const (
	OpGT    Operator = "gt"
	OpGTE   Operator = "gte"
	OpLT    Operator = "lt"
	OpLTE   Operator = "lte"
	OpEQ    Operator = "eq"
	OpNEQ   Operator = "neq"
	OpIn    Operator = "in"
	OpNotIn Operator = "notIn"
)

// ExprKind tags the condition expression variant.
type ExprKind string

const (
	// ExprLiteral matches when the fact equals the value.
	ExprLiteral ExprKind = "literal"
	// ExprComparison matches when `fact <op> value` holds.
	ExprComparison ExprKind = "comparison"
	// ExprInSet matches when the fact is (or is not) a member of Values.
	ExprInSet ExprKind = "in_set"
)

// FactValue is one typed fact. Numeric facts carry Num with IsNum set;
// string facts carry Str.
type FactValue struct {
	Num   float64
	Str   string
	IsNum bool
}

// NumFact builds a numeric fact value.
func NumFact(v float64) FactValue { return FactValue{Num: v, IsNum: true} }

// StrFact builds a string fact value.
func StrFact(v string) FactValue { return FactValue{Str: v} }

// Equal compares two fact values of the same type.
func (f FactValue) Equal(other FactValue) bool {
	if f.IsNum != other.IsNum {
		return false
	}
	if f.IsNum {
		return f.Num == other.Num
	}
	return f.Str == other.Str
}

// Condition is one key/expression pair of a rule. A rule matches only when
// every condition's key resolves in the fact lookup and its expression holds.
type Condition struct {
	Key    string
	Kind   ExprKind
	Op     Operator  // comparison only
	Value  FactValue // literal and comparison
	Values []FactValue
}

// Literal builds an equality condition.
func Literal(key string, value FactValue) Condition {
	return Condition{Key: key, Kind: ExprLiteral, Value: value}
}

// Compare builds an operator condition.
func Compare(key string, op Operator, value FactValue) Condition {
	return Condition{Key: key, Kind: ExprComparison, Op: op, Value: value}
}

// InSet builds a membership condition.
func InSet(key string, values ...FactValue) Condition {
	return Condition{Key: key, Kind: ExprInSet, Op: OpIn, Values: values}
}

// NotInSet builds a negated membership condition.
func NotInSet(key string, values ...FactValue) Condition {
	return Condition{Key: key, Kind: ExprInSet, Op: OpNotIn, Values: values}
}

// Eval evaluates the condition against the fact lookup. A missing key, a
// type mismatch, or an unsupported operator returns an error; the engine
// treats that as the rule not matching, never a hard failure.
func (c Condition) Eval(facts map[string]FactValue) (bool, error) {
	fact, ok := facts[c.Key]
	if !ok {
		return false, fmt.Errorf("policy: fact %q not present", c.Key)
	}

	switch c.Kind {
	case ExprLiteral:
		return fact.Equal(c.Value), nil

	case ExprComparison:
		return evalComparison(fact, c.Op, c.Value)

	case ExprInSet:
		member := false
		for _, v := range c.Values {
			if fact.Equal(v) {
				member = true
				break
			}
		}
		switch c.Op {
		case OpNotIn:
			return !member, nil
		case OpIn, "":
			return member, nil
		default:
			return false, fmt.Errorf("policy: operator %q invalid for set condition", c.Op)
		}

	default:
		return false, fmt.Errorf("policy: unknown condition kind %q", c.Kind)
	}
}

func evalComparison(fact FactValue, op Operator, value FactValue) (bool, error) {
	switch op {
	case OpEQ:
		return fact.Equal(value), nil
	case OpNEQ:
		return !fact.Equal(value), nil
	}

	// Ordering operators require numeric operands on both sides.
	if !fact.IsNum || !value.IsNum {
		return false, fmt.Errorf("policy: operator %q requires numeric operands", op)
	}

	switch op {
	case OpGT:
		return fact.Num > value.Num, nil
	case OpGTE:
		return fact.Num >= value.Num, nil
	case OpLT:
		return fact.Num < value.Num, nil
	case OpLTE:
		return fact.Num <= value.Num, nil
	default:
		return false, fmt.Errorf("policy: unsupported operator %q", op)
	}
}

// MergeFacts flattens behavioral scores and caller-provided extras into one
// typed lookup. Extras win on key collision so a caller can pin a fact.
func MergeFacts(scores map[string]float64, extras map[string]any) map[string]FactValue {
	facts := make(map[string]FactValue, len(scores)+len(extras))
	for k, v := range scores {
		facts[k] = NumFact(v)
	}
	for k, v := range extras {
		switch t := v.(type) {
		case float64:
			facts[k] = NumFact(t)
		case float32:
			facts[k] = NumFact(float64(t))
		case int:
			facts[k] = NumFact(float64(t))
		case int64:
			facts[k] = NumFact(float64(t))
		case bool:
			if t {
				facts[k] = NumFact(1)
			} else {
				facts[k] = NumFact(0)
			}
		case string:
			facts[k] = StrFact(t)
		default:
			// Unrepresentable extras are dropped; conditions keyed on them
			// simply fail to match.
		}
	}
	return facts
}
