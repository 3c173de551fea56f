package core

// Operator is a comparison operator usable in a WhereCondition.
type Operator string

// Supported WHERE operators.
const (
	OpEq        Operator = "eq"
	OpNe        Operator = "ne"
	OpGt        Operator = "gt"
	OpGte       Operator = "gte"
	OpLt        Operator = "lt"
	OpLte       Operator = "lte"
	OpLike      Operator = "like"
	OpNotLike   Operator = "notLike"
	OpIn        Operator = "in"
	OpNotIn     Operator = "notIn"
	OpBetween   Operator = "between"
	OpIsNull    Operator = "isNull"
	OpIsNotNull Operator = "isNotNull"
)

// WhereCondition is one predicate in a conjunction. Value-shape rules:
//   - isNull / isNotNull must not carry a value
//   - in / notIn must carry a non-empty slice
//   - between must carry a two-element slice
//   - every other operator carries a single scalar
//
// The query builder validates these shapes before emitting SQL.
type WhereCondition struct {
	Column   string
	Operator Operator
	Value    any
}
