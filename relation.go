package relq

import (
	"fmt"
	"sync"
)

// =====================================
// Relationship Metadata
// =====================================

// Relation is resolved relationship metadata. All key fields are fully
// table-prefixed so they stay unambiguous after merging into an aliased
// parent query.
type Relation struct {
	Type   RelType
	Target *Entity
	Alias  string

	// has-one / has-many / belongs-to
	PK string // prefixed primary key of the key-owning side's parent
	FK string // prefixed foreign key
	// FKColumn is the bare foreign-key column, used for lazy lookups keyed
	// by a local row value.
	FKColumn string

	// many-to-many
	LPK       string // prefixed parent primary key
	RPK       string // prefixed target primary key
	LFK       string // prefixed join-table column referencing the parent
	RFK       string // prefixed join-table column referencing the target
	JoinTable string
}

// relDecl is a deferred relationship declaration. The referenced entity
// may not exist yet when the declaration is made; derivation runs at most
// once, at first use, and the outcome (metadata or configuration error) is
// memoized.
type relDecl struct {
	rtype     RelType
	target    string
	fk        string
	alias     string
	joinTable string
	lfk       string
	rfk       string

	once sync.Once
	rel  *Relation
	err  error
}

// RelOption configures a relationship declaration
type RelOption func(d *relDecl)

// FK overrides the conventional "<table>_id" foreign-key column
func FK(column string) RelOption {
	return func(d *relDecl) { d.fk = column }
}

// RelAlias sets the key under which resolved rows are associated and the
// alias the target table is joined as
func RelAlias(alias string) RelOption {
	return func(d *relDecl) { d.alias = alias }
}

// JoinTable names the join table of a many-to-many relationship
func JoinTable(table string) RelOption {
	return func(d *relDecl) { d.joinTable = table }
}

// LeftFK overrides the join-table column referencing the declaring entity
func LeftFK(column string) RelOption {
	return func(d *relDecl) { d.lfk = column }
}

// RightFK overrides the join-table column referencing the target entity
func RightFK(column string) RelOption {
	return func(d *relDecl) { d.rfk = column }
}

// Relation resolves the relationship registered under name. Resolution
// happens once per relation per process; an unresolved reference is a
// configuration error at first use, not at declaration time.
func (e *Entity) Relation(name string) (*Relation, error) {
	d, ok := e.rels[name]
	if !ok {
		return nil, NewError(ErrorTypeUnknownRelation,
			fmt.Sprintf("no relationship %q registered on entity %q", name, e.Name))
	}
	d.once.Do(func() {
		d.rel, d.err = deriveRelation(e, name, d)
	})
	return d.rel, d.err
}

// defaultFK is the conventional foreign-key column referencing e
func defaultFK(e *Entity) string {
	return e.Table + "_id"
}

// deriveRelation computes the key metadata for one relationship kind
func deriveRelation(owner *Entity, name string, d *relDecl) (*Relation, error) {
	if owner.schema == nil {
		return nil, NewError(ErrorTypeUnresolvedRelation,
			fmt.Sprintf("relationship %q on entity %q used before the entity was registered", name, owner.Name))
	}
	target, ok := owner.schema.Entity(d.target)
	if !ok {
		return nil, NewError(ErrorTypeUnresolvedRelation,
			fmt.Sprintf("relationship %q on entity %q references unknown entity %q", name, owner.Name, d.target))
	}

	targetQual := target.qualifier()
	if d.alias != "" {
		targetQual = d.alias
	}

	rel := &Relation{Type: d.rtype, Target: target, Alias: d.alias}
	switch d.rtype {
	case RelHasOne, RelHasMany:
		fk := d.fk
		if fk == "" {
			fk = defaultFK(owner)
		}
		rel.PK = prefixColumn(owner.qualifier(), owner.PK)
		rel.FK = prefixColumn(targetQual, fk)
		rel.FKColumn = fk
	case RelBelongsTo:
		// Roles swap: the declaring entity references the target, so the
		// foreign key lives on the owner and points at the target's pk.
		fk := d.fk
		if fk == "" {
			fk = defaultFK(target)
		}
		rel.PK = prefixColumn(targetQual, target.PK)
		rel.FK = prefixColumn(owner.qualifier(), fk)
		rel.FKColumn = fk
	case RelManyToMany:
		if d.joinTable == "" {
			return nil, NewError(ErrorTypeUnresolvedRelation,
				fmt.Sprintf("many-to-many relationship %q on entity %q requires a join table", name, owner.Name))
		}
		lfk := d.lfk
		if lfk == "" {
			lfk = defaultFK(owner)
		}
		rfk := d.rfk
		if rfk == "" {
			rfk = defaultFK(target)
		}
		rel.JoinTable = d.joinTable
		rel.LPK = prefixColumn(owner.qualifier(), owner.PK)
		rel.RPK = prefixColumn(targetQual, target.PK)
		rel.LFK = prefixColumn(d.joinTable, lfk)
		rel.RFK = prefixColumn(d.joinTable, rfk)
	default:
		return nil, NewError(ErrorTypeUnknownRelation,
			fmt.Sprintf("relationship %q on entity %q has unknown kind %q", name, owner.Name, d.rtype))
	}
	return rel, nil
}
