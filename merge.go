package relq

// =====================================
// Sub-query Merge
// =====================================

// mergeQuery folds the child query's clauses onto the parent: fields,
// grouping, ordering, predicates, joins and post-query hooks concatenate
// parent-then-child, and the alias sets union. Bare field, order and group
// references from the child are re-prefixed with the child's table or
// alias first, so an unqualified column supplied inside a relationship
// refinement cannot be misattributed to the parent or a sibling relation.
func mergeQuery(parent, child Query) Query {
	p := parent.clone()
	qual := child.qualifier()

	childFields := child.effectiveFields()
	if len(childFields) > 0 {
		if p.FieldList == nil {
			p.FieldList = p.effectiveFields()
		}
		for _, f := range childFields {
			p.FieldList = append(p.FieldList, Field{
				Col:   prefixColumn(qual, f.Col),
				Alias: f.Alias,
			})
		}
	}

	for _, g := range child.GroupList {
		p.GroupList = append(p.GroupList, prefixColumn(qual, g))
	}
	for _, o := range child.OrderList {
		p.OrderList = append(p.OrderList, Order{
			Field:     prefixColumn(qual, o.Field),
			Direction: o.Direction,
		})
	}

	p.WhereList = append(p.WhereList, child.WhereList...)
	p.Joins = append(p.Joins, child.Joins...)
	p.post = append(p.post, child.post...)

	for a := range child.Aliases {
		p = p.registerAlias(a)
	}
	if p.err == nil && child.err != nil {
		p.err = child.err
	}
	return p
}
