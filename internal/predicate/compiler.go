// Package predicate compiles the sync framework's generic predicate trees
// into the native query-condition representation, and evaluates compiled
// conditions for scan-style backends.
package predicate

import (
	"fmt"

	"github.com/ripplekit/storebridge/internal/core"
	"github.com/ripplekit/storebridge/internal/logger"
	"github.com/ripplekit/storebridge/internal/schema"
)

var supportedOperators = map[core.Operator]bool{
	core.OpEq:          true,
	core.OpNe:          true,
	core.OpGt:          true,
	core.OpGe:          true,
	core.OpLt:          true,
	core.OpLe:          true,
	core.OpContains:    true,
	core.OpNotContains: true,
	core.OpBeginsWith:  true,
	core.OpBetween:     true,
	core.OpIn:          true,
	core.OpNotIn:       true,
}

// Compiler translates predicate trees for one model. Field names pass
// through the model descriptor's stored name mapping so the compiler stays
// in lockstep with the schema translator.
type Compiler struct {
	model *core.ModelDescriptor
}

// NewCompiler creates a compiler bound to a model descriptor.
func NewCompiler(model *core.ModelDescriptor) *Compiler {
	return &Compiler{model: model}
}

// Compile converts a predicate tree into native conditions. Unsupported or
// malformed sub-predicates are dropped with a warning and reported in the
// second return value; translation never fails the query (fail-open).
// A nil predicate compiles to no conditions.
func (c *Compiler) Compile(pred *core.Predicate) ([]core.Condition, []string) {
	if pred == nil {
		return nil, nil
	}
	var dropped []string
	conds := c.compile(pred, &dropped)
	return conds, dropped
}

func (c *Compiler) compile(pred *core.Predicate, dropped *[]string) []core.Condition {
	switch {
	case pred == nil:
		return nil
	case pred.Field != nil:
		cond, err := c.compileField(pred.Field)
		if err != nil {
			c.drop(dropped, err.Error())
			return nil
		}
		return []core.Condition{cond}
	case pred.Group != nil:
		return c.compileGroup(pred.Group, dropped)
	default:
		c.drop(dropped, "empty predicate node")
		return nil
	}
}

func (c *Compiler) compileGroup(group *core.PredicateGroup, dropped *[]string) []core.Condition {
	children := make([]core.Condition, 0, len(group.Predicates))
	for _, sub := range group.Predicates {
		children = append(children, c.compile(sub, dropped)...)
	}
	if len(children) == 0 {
		return nil
	}
	switch group.Op {
	case core.LogicalAnd:
		return []core.Condition{{And: children}}
	case core.LogicalOr:
		return []core.Condition{{Or: children}}
	default:
		c.drop(dropped, fmt.Sprintf("unknown logical operator %q", group.Op))
		return nil
	}
}

// compileField translates one single-field comparison to exactly one
// native condition referencing the case-converted column name.
func (c *Compiler) compileField(fp *core.FieldPredicate) (core.Condition, error) {
	if fp.Field == "" {
		return core.Condition{}, fmt.Errorf("comparison is missing a field name")
	}
	if !supportedOperators[fp.Operator] {
		return core.Condition{}, fmt.Errorf("unsupported operator %q on field %q", fp.Operator, fp.Field)
	}

	cond := core.Condition{
		Column:   c.column(fp.Field),
		Operator: fp.Operator,
	}
	switch fp.Operator {
	case core.OpBetween:
		if len(fp.Operands) != 2 {
			return core.Condition{}, fmt.Errorf("between on field %q requires exactly two operands", fp.Field)
		}
		cond.Values = fp.Operands
	case core.OpIn, core.OpNotIn:
		values := fp.Operands
		// A single-element membership test arrives in Operand, the way
		// every one-operand comparison does.
		if len(values) == 0 && fp.Operand != nil {
			values = []interface{}{fp.Operand}
		}
		if len(values) == 0 {
			return core.Condition{}, fmt.Errorf("%s on field %q requires at least one operand", fp.Operator, fp.Field)
		}
		cond.Values = values
	default:
		cond.Value = fp.Operand
	}
	return cond, nil
}

// CompileQuery compiles a predicate plus pagination into full query
// directives. Take/skip apply only when limit and page are present.
func (c *Compiler) CompileQuery(pred *core.Predicate, page *core.Pagination) (core.Directives, []string) {
	conds, dropped := c.Compile(pred)
	dir := core.Directives{Conditions: conds}
	if page == nil {
		return dir, dropped
	}
	for _, s := range page.Sort {
		dir.Sort = append(dir.Sort, core.SortColumn{
			Column:     c.column(s.Field),
			Descending: s.Descending,
		})
	}
	if page.Limit > 0 {
		dir.Take = page.Limit
		if page.Page > 0 {
			dir.Skip = page.Page * page.Limit
		}
	}
	return dir, dropped
}

func (c *Compiler) column(field string) string {
	if c.model != nil {
		return c.model.ColumnFor(field, schema.ToSnake)
	}
	return schema.ToSnake(field)
}

func (c *Compiler) drop(dropped *[]string, reason string) {
	*dropped = append(*dropped, reason)
	logger.Warn("predicate translation dropped a condition: %s", reason)
}
