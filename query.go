package relq

import (
	"context"
	"fmt"
	"strings"
)

// =====================================
// Query Representation
// =====================================

// Field is a projected column, optionally aliased
type Field struct {
	Col   string
	Alias string
}

// postQuery is a deferred result transform. Lazy relationship loading is
// implemented as post queries that issue follow-up statements through the
// session they are handed at run time.
type postQuery func(ctx context.Context, s *Session, rows []Record) ([]Record, error)

// Query is an immutable description of a single select, insert, update or
// delete statement. Composition methods never mutate the receiver; each
// returns a new value, so partially built queries are safe to reuse as
// templates.
type Query struct {
	Kind   QueryKind
	Entity *Entity
	Table  string
	Alias  string

	// FieldList nil means "all columns": the entity's default projection
	// when one is declared, otherwise a bare star. The first Fields call
	// replaces the sentinel; later calls append.
	FieldList  []Field
	Aliases    map[string]bool
	Joins      []Join
	WhereList  []Predicate
	OrderList  []Order
	GroupList  []string
	ValuesList []Record
	SetMap     Record
	LimitN     *int
	OffsetN    *int
	Modifiers  []string
	Shape      ResultShape

	post []postQuery
	err  error
}

// =====================================
// Verb Entry Points
// =====================================

// Select builds a fresh select query. The target may be an *Entity or a
// bare table name.
func Select(target interface{}) Query {
	return newQuery(KindSelect, target, ShapeRows)
}

// Insert builds a fresh insert query
func Insert(target interface{}) Query {
	return newQuery(KindInsert, target, ShapeKeys)
}

// Update builds a fresh update query
func Update(target interface{}) Query {
	return newQuery(KindUpdate, target, ShapeNone)
}

// Delete builds a fresh delete query
func Delete(target interface{}) Query {
	return newQuery(KindDelete, target, ShapeNone)
}

func newQuery(kind QueryKind, target interface{}, shape ResultShape) Query {
	q := Query{Kind: kind, Shape: shape}
	switch t := target.(type) {
	case *Entity:
		q.Entity = t
		q.Table = t.Table
		q.Alias = t.Alias
	case string:
		q.Table = t
	default:
		q.err = NewError(ErrorTypeInvalidEntity,
			fmt.Sprintf("query target must be an entity or a table name, got %T", target))
	}
	if q.Alias != "" {
		q.Aliases = map[string]bool{q.Alias: true}
	}
	return q
}

// Err returns the first error recorded during composition, if any. A query
// carrying an error renders and executes to that error.
func (q Query) Err() error {
	return q.err
}

// qualifier is the identifier used to prefix this query's own columns
func (q Query) qualifier() string {
	if q.Alias != "" {
		return q.Alias
	}
	return q.Table
}

// clone deep-copies the clause lists so appends on the copy cannot alias
// the receiver's backing arrays.
func (q Query) clone() Query {
	c := q
	if q.FieldList != nil {
		c.FieldList = append([]Field(nil), q.FieldList...)
	}
	if q.Aliases != nil {
		c.Aliases = make(map[string]bool, len(q.Aliases))
		for k, v := range q.Aliases {
			c.Aliases[k] = v
		}
	}
	c.Joins = append([]Join(nil), q.Joins...)
	c.WhereList = append([]Predicate(nil), q.WhereList...)
	c.OrderList = append([]Order(nil), q.OrderList...)
	c.GroupList = append([]string(nil), q.GroupList...)
	c.ValuesList = append([]Record(nil), q.ValuesList...)
	if q.SetMap != nil {
		c.SetMap = q.SetMap.Clone()
	}
	c.Modifiers = append([]string(nil), q.Modifiers...)
	c.post = append([]postQuery(nil), q.post...)
	return c
}

// =====================================
// Composition API
// =====================================

// Fields sets or extends the select projection. On a query still carrying
// the "all columns" sentinel the first call replaces it; subsequent calls
// append.
func (q Query) Fields(cols ...string) Query {
	if len(cols) == 0 {
		return q
	}
	c := q.clone()
	if c.FieldList == nil {
		c.FieldList = make([]Field, 0, len(cols))
	}
	for _, col := range cols {
		c.FieldList = append(c.FieldList, Field{Col: col})
	}
	return c
}

// FieldAs projects a column under an alias and registers the alias for
// collision tracking.
func (q Query) FieldAs(col, alias string) Query {
	c := q.clone()
	if c.FieldList == nil {
		c.FieldList = make([]Field, 0, 1)
	}
	c.FieldList = append(c.FieldList, Field{Col: col, Alias: alias})
	c = c.registerAlias(alias)
	return c
}

func (q Query) registerAlias(alias string) Query {
	if alias == "" {
		return q
	}
	if q.Aliases == nil {
		q.Aliases = map[string]bool{}
	}
	q.Aliases[alias] = true
	return q
}

// Where appends predicate fragments to the AND list
func (q Query) Where(preds ...Predicate) Query {
	if len(preds) == 0 {
		return q
	}
	c := q.clone()
	c.WhereList = append(c.WhereList, preds...)
	return c
}

// Join appends a left join, the default join kind
func (q Query) Join(table string, on Predicate) Query {
	return q.JoinAs(JoinLeft, table, "", on)
}

// LeftJoin appends a left join
func (q Query) LeftJoin(table string, on Predicate) Query {
	return q.JoinAs(JoinLeft, table, "", on)
}

// InnerJoin appends an inner join
func (q Query) InnerJoin(table string, on Predicate) Query {
	return q.JoinAs(JoinInner, table, "", on)
}

// JoinAs appends a join of the given kind with an optional table alias
func (q Query) JoinAs(kind JoinType, table, alias string, on Predicate) Query {
	c := q.clone()
	c.Joins = append(c.Joins, Join{Type: kind, Table: table, Alias: alias, On: on})
	c = c.registerAlias(alias)
	return c
}

// OrderBy appends an ordering; direction defaults to ascending
func (q Query) OrderBy(field string, direction ...OrderDirection) Query {
	dir := OrderAsc
	if len(direction) > 0 {
		dir = direction[0]
	}
	c := q.clone()
	c.OrderList = append(c.OrderList, Order{Field: field, Direction: dir})
	return c
}

// GroupBy appends grouping columns
func (q Query) GroupBy(cols ...string) Query {
	c := q.clone()
	c.GroupList = append(c.GroupList, cols...)
	return c
}

// Limit sets the maximum number of rows; last write wins
func (q Query) Limit(n int) Query {
	c := q.clone()
	c.LimitN = &n
	return c
}

// Offset sets the number of rows to skip; last write wins
func (q Query) Offset(n int) Query {
	c := q.clone()
	c.OffsetN = &n
	return c
}

// Values appends records to an insert's batch. Multiple calls accumulate
// into one batch.
func (q Query) Values(recs ...Record) Query {
	c := q.clone()
	c.ValuesList = append(c.ValuesList, recs...)
	return c
}

// Set assigns a column for an update query
func (q Query) Set(col string, val interface{}) Query {
	c := q.clone()
	if c.SetMap == nil {
		c.SetMap = Record{}
	}
	c.SetMap[col] = val
	return c
}

// SetAll assigns every column in rec for an update query
func (q Query) SetAll(rec Record) Query {
	c := q.clone()
	if c.SetMap == nil {
		c.SetMap = Record{}
	}
	for k, v := range rec {
		c.SetMap[k] = v
	}
	return c
}

// Modifier appends raw query-prefix strings such as "DISTINCT"
func (q Query) Modifier(mods ...string) Query {
	c := q.clone()
	c.Modifiers = append(c.Modifiers, mods...)
	return c
}

// PostQuery appends a result transform. Transforms compose left-to-right:
// the first registered runs first on the raw rows and its output feeds the
// next.
func (q Query) PostQuery(fn RowsTransform) Query {
	c := q.clone()
	c.post = append(c.post, func(ctx context.Context, s *Session, rows []Record) ([]Record, error) {
		return fn(rows), nil
	})
	return c
}

// fail records a composition error; the first error wins
func (q Query) fail(err error) Query {
	c := q.clone()
	if c.err == nil {
		c.err = err
	}
	return c
}

// effectiveFields resolves the projection sentinel: an explicit field list
// is used as-is, otherwise the entity's default projection, otherwise a
// qualified star.
func (q Query) effectiveFields() []Field {
	if q.FieldList != nil {
		return q.FieldList
	}
	if q.Entity != nil && len(q.Entity.Fields) > 0 {
		fs := make([]Field, len(q.Entity.Fields))
		for i, f := range q.Entity.Fields {
			fs[i] = Field{Col: f}
		}
		return fs
	}
	return []Field{{Col: q.qualifier() + ".*"}}
}

// prefixColumn qualifies a bare column with a table or alias identifier.
// Columns already qualified, stars and expressions are left alone.
func prefixColumn(qualifier, col string) string {
	if qualifier == "" || col == "*" {
		return col
	}
	if strings.ContainsAny(col, "(. ") {
		return col
	}
	return qualifier + "." + col
}
