package core

// Operator is a predicate comparison operator recognized by the sync
// framework's query contract.
type Operator string

const (
	OpEq          Operator = "eq"
	OpNe          Operator = "ne"
	OpGt          Operator = "gt"
	OpGe          Operator = "ge"
	OpLt          Operator = "lt"
	OpLe          Operator = "le"
	OpContains    Operator = "contains"
	OpNotContains Operator = "notContains"
	OpBeginsWith  Operator = "beginsWith"
	OpBetween     Operator = "between"
	OpIn          Operator = "in"
	OpNotIn       Operator = "notIn"
)

// LogicalOp combines sub-predicates.
type LogicalOp string

const (
	LogicalAnd LogicalOp = "and"
	LogicalOr  LogicalOp = "or"
)

// FieldPredicate is a single-field comparison. Operand carries the value
// for unary comparisons; Operands carries the values for between/in/notIn.
type FieldPredicate struct {
	Field    string        `json:"field"`
	Operator Operator      `json:"operator"`
	Operand  interface{}   `json:"operand,omitempty"`
	Operands []interface{} `json:"operands,omitempty"`
}

// PredicateGroup is a boolean combination of sub-predicates.
type PredicateGroup struct {
	Op         LogicalOp    `json:"op"`
	Predicates []*Predicate `json:"predicates"`
}

// Predicate is the generic predicate expression tree: exactly one of Field
// or Group is set. A nil Predicate matches everything.
type Predicate struct {
	Field *FieldPredicate `json:"field_predicate,omitempty"`
	Group *PredicateGroup `json:"group,omitempty"`
}

// Field builds a single-field comparison predicate.
func Field(name string, op Operator, operands ...interface{}) *Predicate {
	fp := &FieldPredicate{Field: name, Operator: op}
	switch len(operands) {
	case 0:
	case 1:
		fp.Operand = operands[0]
	default:
		fp.Operands = operands
	}
	return &Predicate{Field: fp}
}

// And combines predicates with logical conjunction.
func And(preds ...*Predicate) *Predicate {
	return &Predicate{Group: &PredicateGroup{Op: LogicalAnd, Predicates: preds}}
}

// Or combines predicates with logical disjunction.
func Or(preds ...*Predicate) *Predicate {
	return &Predicate{Group: &PredicateGroup{Op: LogicalOr, Predicates: preds}}
}

// Condition is the native query-condition representation evaluated by the
// backends' query engines. Exactly one of Column (leaf) or And/Or (branch)
// is populated.
type Condition struct {
	// Leaf comparison.
	Column   string
	Operator Operator
	Value    interface{}
	Values   []interface{}

	// Branch combinators; children are evaluated recursively.
	And []Condition
	Or  []Condition
}

// IsBranch reports whether the condition is a combinator node.
func (c *Condition) IsBranch() bool {
	return len(c.And) > 0 || len(c.Or) > 0
}

// SortDirective orders query results by a column.
type SortDirective struct {
	// Field is the mixed-case field name as given by the caller.
	Field string `json:"field"`

	// Descending selects descending order; default is ascending.
	Descending bool `json:"descending,omitempty"`
}

// Pagination is the framework's page/limit directive. Zero values mean
// "not present" and compile to no take/skip.
type Pagination struct {
	// Limit is the maximum number of records per page.
	Limit int `json:"limit,omitempty"`

	// Page is the zero-based page index.
	Page int `json:"page,omitempty"`

	// Sort orders the result before pagination applies.
	Sort []SortDirective `json:"sort,omitempty"`
}

// Directives is a fully compiled query: native conditions plus sort and
// take/skip, ready for a backend's query engine.
type Directives struct {
	// Conditions are the compiled native conditions, combined with AND.
	Conditions []Condition

	// Sort holds column-level sort directives in application order.
	Sort []SortColumn

	// Take caps the result size; 0 means unlimited.
	Take int

	// Skip drops leading records; 0 means none.
	Skip int
}

// SortColumn is a compiled sort directive referencing a column name.
type SortColumn struct {
	Column     string
	Descending bool
}
