package relq

import (
	"fmt"
	"strings"
	"sync"
)

// =====================================
// Entity Metadata
// =====================================

// Entity describes a table mapping: its physical table, primary key,
// default projection, registered relationships and record hooks. Entities
// are built once at registration time and treated as immutable afterwards.
type Entity struct {
	Name  string
	Table string
	Alias string
	PK    string
	DB    string

	// Fields is the default projection, column-prefixed with the entity's
	// table or alias at declaration time.
	Fields []string

	// Transforms apply to incoming result records; Prepares apply to
	// outgoing insert/update values.
	Transforms []RecordTransform
	Prepares   []RecordTransform

	schema *Schema
	rels   map[string]*relDecl
}

// qualifier is the identifier used to prefix this entity's columns
func (e *Entity) qualifier() string {
	if e.Alias != "" {
		return e.Alias
	}
	return e.Table
}

// NewEntity creates entity metadata. The table defaults to the entity
// name and the primary key to "id". A generated table expression requires
// an explicit alias.
func NewEntity(name string, opts ...EntityOption) (*Entity, error) {
	e := &Entity{
		Name:  name,
		Table: name,
		PK:    "id",
		rels:  make(map[string]*relDecl),
	}
	for _, opt := range opts {
		opt.Apply(e)
	}
	if strings.ContainsAny(e.Table, "( ") && e.Alias == "" {
		return nil, NewError(ErrorTypeMalformedTable,
			fmt.Sprintf("entity %q declares table expression %q without an alias", name, e.Table))
	}
	for i, f := range e.Fields {
		e.Fields[i] = prefixColumn(e.qualifier(), f)
	}
	return e, nil
}

// MustEntity is like NewEntity but panics on a malformed declaration.
// Intended for package-level entity variables.
func MustEntity(name string, opts ...EntityOption) *Entity {
	e, err := NewEntity(name, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// =====================================
// Entity Declaration Options
// =====================================

// EntityOption configures an entity declaration
type EntityOption interface {
	Apply(entity *Entity)
}

// TableOption sets the physical table name
type TableOption struct {
	Name string
}

// Apply implements EntityOption
func (o TableOption) Apply(e *Entity) { e.Table = o.Name }

// Table sets the physical table an entity maps to
func Table(name string) EntityOption { return TableOption{Name: name} }

// AliasOption sets the entity's display alias
type AliasOption struct {
	Alias string
}

// Apply implements EntityOption
func (o AliasOption) Apply(e *Entity) { e.Alias = o.Alias }

// Alias sets the alias an entity's table is joined and prefixed under
func Alias(alias string) EntityOption { return AliasOption{Alias: alias} }

// PKOption sets the primary-key column
type PKOption struct {
	Column string
}

// Apply implements EntityOption
func (o PKOption) Apply(e *Entity) { e.PK = o.Column }

// PK overrides the primary-key column, which defaults to "id"
func PK(column string) EntityOption { return PKOption{Column: column} }

// DBOption names the managed connection the entity's queries run on
type DBOption struct {
	Name string
}

// Apply implements EntityOption
func (o DBOption) Apply(e *Entity) { e.DB = o.Name }

// UseDB names the managed executor this entity's queries should use
func UseDB(name string) EntityOption { return DBOption{Name: name} }

// ProjectionOption sets the default field projection
type ProjectionOption struct {
	Columns []string
}

// Apply implements EntityOption
func (o ProjectionOption) Apply(e *Entity) {
	e.Fields = append(e.Fields, o.Columns...)
}

// DefaultFields declares the columns selected when a query on the entity
// never calls Fields
func DefaultFields(columns ...string) EntityOption {
	return ProjectionOption{Columns: columns}
}

// TransformOption appends a result transform
type TransformOption struct {
	Fn RecordTransform
}

// Apply implements EntityOption
func (o TransformOption) Apply(e *Entity) {
	e.Transforms = append(e.Transforms, o.Fn)
}

// Transform registers a transform applied to each record a select returns
func Transform(fn RecordTransform) EntityOption { return TransformOption{Fn: fn} }

// PrepareOption appends a value-preparation hook
type PrepareOption struct {
	Fn RecordTransform
}

// Apply implements EntityOption
func (o PrepareOption) Apply(e *Entity) {
	e.Prepares = append(e.Prepares, o.Fn)
}

// Prepare registers a hook applied to outgoing insert and update values
// before rendering
func Prepare(fn RecordTransform) EntityOption { return PrepareOption{Fn: fn} }

// RelDeclOption declares a relationship to another entity by name. The
// target may be registered later; the reference is resolved at first use.
type RelDeclOption struct {
	Type   RelType
	Target string
	Opts   []RelOption
}

// Apply implements EntityOption
func (o RelDeclOption) Apply(e *Entity) {
	d := &relDecl{rtype: o.Type, target: o.Target}
	for _, opt := range o.Opts {
		opt(d)
	}
	e.rels[o.Target] = d
}

// HasOne declares a one-to-one relationship where the target carries the
// foreign key
func HasOne(target string, opts ...RelOption) EntityOption {
	return RelDeclOption{Type: RelHasOne, Target: target, Opts: opts}
}

// HasMany declares a one-to-many relationship where the target carries the
// foreign key
func HasMany(target string, opts ...RelOption) EntityOption {
	return RelDeclOption{Type: RelHasMany, Target: target, Opts: opts}
}

// BelongsTo declares a many-to-one relationship where this entity carries
// the foreign key
func BelongsTo(target string, opts ...RelOption) EntityOption {
	return RelDeclOption{Type: RelBelongsTo, Target: target, Opts: opts}
}

// ManyToMany declares a many-to-many relationship through a join table.
// The JoinTable option is required; omitting it fails at first use.
func ManyToMany(target string, opts ...RelOption) EntityOption {
	return RelDeclOption{Type: RelManyToMany, Target: target, Opts: opts}
}

// =====================================
// Schema Registry
// =====================================

// Schema is a name-to-entity registry. Relationship declarations reference
// entities by name so mutually referencing entities can be declared in any
// order; the registry breaks the cycle at resolution time.
type Schema struct {
	mu       sync.RWMutex
	entities map[string]*Entity
}

// NewSchema creates an empty schema registry
func NewSchema() *Schema {
	return &Schema{entities: make(map[string]*Entity)}
}

// Register adds entities to the schema, binding their relationship
// declarations to it
func (s *Schema) Register(entities ...*Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entities {
		e.schema = s
		s.entities[e.Name] = e
	}
}

// Entity retrieves a registered entity by name
func (s *Schema) Entity(name string) (*Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[name]
	return e, ok
}
