package relq

import (
	"reflect"
	"strings"
)

// =====================================
// Predicate Expressions
// =====================================

// Predicate is a single WHERE fragment. Fragments in a query's where list
// are combined with AND in declaration order.
type Predicate interface {
	// Fragment renders the predicate for the given dialect, returning the
	// SQL text and its positional parameters.
	Fragment(dialect string) (string, []interface{})
}

// ColumnOf marks a comparison value as a column reference so it is rendered
// as an identifier rather than bound as a parameter. Used for join
// predicates such as "user"."id" = "email"."user_id".
type ColumnOf string

// Comparison is a basic column/operator/value predicate
type Comparison struct {
	Col string
	Op  Operator
	Val interface{}
}

// Fragment implements Predicate
func (c Comparison) Fragment(dialect string) (string, []interface{}) {
	left := quoteIdent(dialect, c.Col)
	switch c.Op {
	case OpIsNull, OpIsNotNull:
		return left + " " + string(c.Op), nil
	case OpIn, OpNotIn:
		vals := expandList(c.Val)
		if len(vals) == 0 {
			// An empty IN list matches nothing; an empty NOT IN matches all.
			if c.Op == OpIn {
				return "1 = 0", nil
			}
			return "1 = 1", nil
		}
		marks := strings.Repeat("?, ", len(vals))
		return left + " " + string(c.Op) + " (" + marks[:len(marks)-2] + ")", vals
	default:
		if col, ok := c.Val.(ColumnOf); ok {
			return left + " " + string(c.Op) + " " + quoteIdent(dialect, string(col)), nil
		}
		return left + " " + string(c.Op) + " ?", []interface{}{c.Val}
	}
}

// expandList widens an IN operand to a value slice. Typed slices and
// arrays expand element-wise; a single non-nil scalar becomes a
// one-element list.
func expandList(v interface{}) []interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return t
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]interface{}, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []interface{}{v}
}

// Group combines predicates with a logic operator
type Group struct {
	Logic LogicOperator
	Preds []Predicate
}

// Fragment implements Predicate
func (g Group) Fragment(dialect string) (string, []interface{}) {
	if len(g.Preds) == 0 {
		return "", nil
	}
	var parts []string
	var args []interface{}
	for _, p := range g.Preds {
		frag, pargs := p.Fragment(dialect)
		if frag == "" {
			continue
		}
		parts = append(parts, frag)
		args = append(args, pargs...)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "(" + strings.Join(parts, " "+string(g.Logic)+" ") + ")", args
}

// Negation inverts a predicate
type Negation struct {
	Pred Predicate
}

// Fragment implements Predicate
func (n Negation) Fragment(dialect string) (string, []interface{}) {
	frag, args := n.Pred.Fragment(dialect)
	if frag == "" {
		return "", nil
	}
	return "NOT (" + frag + ")", args
}

// Range is a BETWEEN predicate
type Range struct {
	Col  string
	Low  interface{}
	High interface{}
}

// Fragment implements Predicate
func (r Range) Fragment(dialect string) (string, []interface{}) {
	return quoteIdent(dialect, r.Col) + " BETWEEN ? AND ?", []interface{}{r.Low, r.High}
}

// RawFragment is the escape hatch for literal SQL. The text is passed
// through rendering unmodified.
type RawFragment struct {
	SQL  string
	Args []interface{}
}

// Fragment implements Predicate
func (r RawFragment) Fragment(dialect string) (string, []interface{}) {
	return r.SQL, r.Args
}

// =====================================
// Predicate Builder Functions
// =====================================

// Eq creates an equality predicate
func Eq(col string, val interface{}) Predicate {
	return Comparison{Col: col, Op: OpEqual, Val: val}
}

// Ne creates an inequality predicate
func Ne(col string, val interface{}) Predicate {
	return Comparison{Col: col, Op: OpNotEqual, Val: val}
}

// Gt creates a greater-than predicate
func Gt(col string, val interface{}) Predicate {
	return Comparison{Col: col, Op: OpGreaterThan, Val: val}
}

// Gte creates a greater-than-or-equal predicate
func Gte(col string, val interface{}) Predicate {
	return Comparison{Col: col, Op: OpGreaterThanOrEqual, Val: val}
}

// Lt creates a less-than predicate
func Lt(col string, val interface{}) Predicate {
	return Comparison{Col: col, Op: OpLessThan, Val: val}
}

// Lte creates a less-than-or-equal predicate
func Lte(col string, val interface{}) Predicate {
	return Comparison{Col: col, Op: OpLessThanOrEqual, Val: val}
}

// Like creates a LIKE predicate
func Like(col string, val string) Predicate {
	return Comparison{Col: col, Op: OpLike, Val: val}
}

// NotLike creates a NOT LIKE predicate
func NotLike(col string, val string) Predicate {
	return Comparison{Col: col, Op: OpNotLike, Val: val}
}

// In creates an IN predicate
func In(col string, vals ...interface{}) Predicate {
	return Comparison{Col: col, Op: OpIn, Val: vals}
}

// NotIn creates a NOT IN predicate
func NotIn(col string, vals ...interface{}) Predicate {
	return Comparison{Col: col, Op: OpNotIn, Val: vals}
}

// IsNull creates an IS NULL predicate
func IsNull(col string) Predicate {
	return Comparison{Col: col, Op: OpIsNull}
}

// IsNotNull creates an IS NOT NULL predicate
func IsNotNull(col string) Predicate {
	return Comparison{Col: col, Op: OpIsNotNull}
}

// Between creates a BETWEEN predicate
func Between(col string, low, high interface{}) Predicate {
	return Range{Col: col, Low: low, High: high}
}

// And combines predicates with AND
func And(preds ...Predicate) Predicate {
	return Group{Logic: LogicAnd, Preds: preds}
}

// Or combines predicates with OR
func Or(preds ...Predicate) Predicate {
	return Group{Logic: LogicOr, Preds: preds}
}

// Not inverts a predicate
func Not(pred Predicate) Predicate {
	return Negation{Pred: pred}
}

// Raw wraps a literal SQL fragment so it is rendered unmodified
func Raw(sql string, args ...interface{}) Predicate {
	return RawFragment{SQL: sql, Args: args}
}

// Call builds a SQL function-call expression usable wherever a column
// reference is accepted. Expressions bypass identifier quoting and
// prefixing.
func Call(fn string, args ...string) string {
	return fn + "(" + strings.Join(args, ", ") + ")"
}
