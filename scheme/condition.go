package scheme

// Op enumerates the comparison operators spec §4.3 requires the builder to
// support.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpBetween
	OpBetweenOpen
	OpNotBetween
	OpIncludes // full-text @@
	OpIn
	OpNotIn
	OpIsNull
	OpIsNotNull
)

// Condition is one predicate of a Query's selector list (spec §3.4):
// (field, op, value1, value2).
type Condition struct {
	Field  string
	Op     Op
	Value1 any
	Value2 any
}

// Direction is an ordering direction.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// Nulls controls NULLS FIRST/LAST placement.
type Nulls int

const (
	NullsDefault Nulls = iota
	NullsFirst
	NullsLast
)
