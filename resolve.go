package relq

import (
	"context"
	"fmt"
)

// =====================================
// Relationship Resolution
// =====================================

// With resolves the named relationship on the query's entity. has-one and
// belongs-to relations are eagerly joined into this statement; has-many
// and many-to-many relations are loaded through deferred follow-up queries
// registered as post-query hooks. Optional refinement functions compose
// onto the related entity's query and may themselves contain nested With
// calls, which resolve against the target entity's own relationships.
func (q Query) With(name string, refine ...func(Query) Query) Query {
	return q.resolveWith(name, refine, false)
}

// WithLater resolves the named relationship as a lazy follow-up even for
// has-one and belongs-to relations, associating the first matching row or
// nil instead of joining eagerly.
func (q Query) WithLater(name string, refine ...func(Query) Query) Query {
	return q.resolveWith(name, refine, true)
}

func (q Query) resolveWith(name string, refine []func(Query) Query, later bool) Query {
	if q.err != nil {
		return q
	}
	if q.Entity == nil {
		return q.fail(NewError(ErrorTypeInvalidEntity,
			fmt.Sprintf("cannot resolve relationship %q on a bare table query", name)))
	}
	rel, err := q.Entity.Relation(name)
	if err != nil {
		return q.fail(err)
	}

	key := name
	if rel.Alias != "" {
		key = rel.Alias
	}

	switch rel.Type {
	case RelHasMany:
		c := q.clone()
		c.post = append(c.post, manyFollowUp(q.Entity, rel, key, refine))
		return c
	case RelHasOne, RelBelongsTo:
		if later {
			c := q.clone()
			c.post = append(c.post, singularFollowUp(q.Entity, rel, key, refine))
			return c
		}
		return eagerJoin(q, rel, refine)
	case RelManyToMany:
		c := q.clone()
		c.post = append(c.post, joinTableFollowUp(q.Entity, rel, key, refine))
		return c
	default:
		return q.fail(NewError(ErrorTypeUnknownRelation,
			fmt.Sprintf("no resolution strategy for relationship kind %q", rel.Type)))
	}
}

// childSelect builds the base follow-up or refinement query on the
// relation's target entity
func childSelect(rel *Relation) Query {
	c := Select(rel.Target)
	if rel.Alias != "" {
		c.Alias = rel.Alias
		c = c.registerAlias(rel.Alias)
	}
	return c
}

func applyRefinements(q Query, refine []func(Query) Query) Query {
	for _, fn := range refine {
		q = fn(q)
	}
	return q
}

// eagerJoin appends a join equating the relation's key pair and merges the
// refinement's clauses into the parent statement.
func eagerJoin(parent Query, rel *Relation, refine []func(Query) Query) Query {
	on := Comparison{Col: rel.PK, Op: OpEqual, Val: ColumnOf(rel.FK)}
	// The relation's keys are prefixed with the target entity's own alias
	// when the relation declares none, so the join must bind that alias.
	alias := rel.Alias
	if alias == "" {
		alias = rel.Target.Alias
	}
	p := parent.JoinAs(JoinLeft, rel.Target.Table, alias, on)
	child := applyRefinements(childSelect(rel), refine)
	return mergeQuery(p, child)
}

// manyFollowUp loads a has-many relation: one follow-up select per parent
// row, matching the child foreign key against the row's primary-key value.
// The resulting row sequence is associated under key.
func manyFollowUp(parent *Entity, rel *Relation, key string, refine []func(Query) Query) postQuery {
	return func(ctx context.Context, s *Session, rows []Record) ([]Record, error) {
		out := make([]Record, 0, len(rows))
		for _, row := range rows {
			r := row.Clone()
			pv, ok := row[parent.PK]
			if !ok || pv == nil {
				r[key] = []Record{}
				out = append(out, r)
				continue
			}
			child := childSelect(rel).Where(Comparison{Col: rel.FK, Op: OpEqual, Val: pv})
			child = applyRefinements(child, refine)
			res, err := s.Exec(ctx, child)
			if err != nil {
				return nil, err
			}
			r[key] = res.Rows
			out = append(out, r)
		}
		return out, nil
	}
}

// singularFollowUp loads a has-one or belongs-to relation lazily,
// associating the first matching row or nil. belongs-to matches the local
// foreign-key value against the referenced primary key; has-one matches
// the local primary-key value against the child's foreign key.
func singularFollowUp(parent *Entity, rel *Relation, key string, refine []func(Query) Query) postQuery {
	matchCol, localKey := rel.FK, parent.PK
	if rel.Type == RelBelongsTo {
		matchCol, localKey = rel.PK, rel.FKColumn
	}
	return func(ctx context.Context, s *Session, rows []Record) ([]Record, error) {
		out := make([]Record, 0, len(rows))
		for _, row := range rows {
			r := row.Clone()
			lv, ok := row[localKey]
			if !ok || lv == nil {
				r[key] = nil
				out = append(out, r)
				continue
			}
			child := childSelect(rel).Where(Comparison{Col: matchCol, Op: OpEqual, Val: lv}).Limit(1)
			child = applyRefinements(child, refine)
			res, err := s.Exec(ctx, child)
			if err != nil {
				return nil, err
			}
			if len(res.Rows) > 0 {
				r[key] = res.Rows[0]
			} else {
				r[key] = nil
			}
			out = append(out, r)
		}
		return out, nil
	}
}

// joinTableFollowUp loads a many-to-many relation: one follow-up select
// per parent row against the target entity inner-joined through the join
// table, filtered by the join table's left foreign key.
func joinTableFollowUp(parent *Entity, rel *Relation, key string, refine []func(Query) Query) postQuery {
	return func(ctx context.Context, s *Session, rows []Record) ([]Record, error) {
		out := make([]Record, 0, len(rows))
		for _, row := range rows {
			r := row.Clone()
			pv, ok := row[parent.PK]
			if !ok || pv == nil {
				r[key] = []Record{}
				out = append(out, r)
				continue
			}
			child := childSelect(rel).
				InnerJoin(rel.JoinTable, Comparison{Col: rel.RFK, Op: OpEqual, Val: ColumnOf(rel.RPK)}).
				Where(Comparison{Col: rel.LFK, Op: OpEqual, Val: pv})
			child = applyRefinements(child, refine)
			res, err := s.Exec(ctx, child)
			if err != nil {
				return nil, err
			}
			r[key] = res.Rows
			out = append(out, r)
		}
		return out, nil
	}
}
