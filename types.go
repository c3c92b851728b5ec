package relq

import "time"

// =====================================
// Core Types and Constants
// =====================================

// Record is a single row of data keyed by column name.
type Record map[string]interface{}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RecordTransform rewrites a single record. Entity transforms and prepares
// are record transforms applied to incoming rows and outgoing values.
type RecordTransform func(Record) Record

// RowsTransform rewrites a whole result set. Post-query hooks registered
// with Query.PostQuery are rows transforms composed left-to-right.
type RowsTransform func([]Record) []Record

// Config represents database connection configuration
type Config struct {
	// Connection details
	Driver        string `json:"driver" yaml:"driver"`
	ConnectionURL string `json:"connection_url" yaml:"connection_url"`
	Host          string `json:"host" yaml:"host"`
	Port          int    `json:"port" yaml:"port"`
	Database      string `json:"database" yaml:"database"`
	Username      string `json:"username" yaml:"username"`
	Password      string `json:"password" yaml:"password"`

	// Connection pool settings
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time"`

	// Additional options
	Options map[string]interface{} `json:"options" yaml:"options"`
}

// QueryKind identifies which statement a Query describes
type QueryKind string

const (
	KindSelect QueryKind = "select"
	KindInsert QueryKind = "insert"
	KindUpdate QueryKind = "update"
	KindDelete QueryKind = "delete"
)

// ResultShape is the hint handed to the executor describing what rows a
// command is expected to produce
type ResultShape string

const (
	ShapeRows ResultShape = "all-rows"
	ShapeKeys ResultShape = "generated-keys"
	ShapeNone ResultShape = "none"
)

// ExecMode selects what a Session does with a fully composed query
type ExecMode string

const (
	// ModeExec renders and executes the query against the executor.
	ModeExec ExecMode = "exec"
	// ModeSQLOnly renders the query and returns the command without executing.
	ModeSQLOnly ExecMode = "sql-only"
	// ModeDryRun prints the rendered command and synthesizes a placeholder
	// result without contacting the executor.
	ModeDryRun ExecMode = "dry-run"
	// ModeQueryObject returns the query representation itself.
	ModeQueryObject ExecMode = "query-object"
)

// Operator represents predicate operators
type Operator string

const (
	OpEqual              Operator = "="
	OpNotEqual           Operator = "<>"
	OpGreaterThan        Operator = ">"
	OpGreaterThanOrEqual Operator = ">="
	OpLessThan           Operator = "<"
	OpLessThanOrEqual    Operator = "<="
	OpLike               Operator = "LIKE"
	OpNotLike            Operator = "NOT LIKE"
	OpIn                 Operator = "IN"
	OpNotIn              Operator = "NOT IN"
	OpIsNull             Operator = "IS NULL"
	OpIsNotNull          Operator = "IS NOT NULL"
)

// LogicOperator represents logic operators for combining predicates
type LogicOperator string

const (
	LogicAnd LogicOperator = "AND"
	LogicOr  LogicOperator = "OR"
	LogicNot LogicOperator = "NOT"
)

// Order represents sorting order
type Order struct {
	Field     string
	Direction OrderDirection
}

// OrderDirection represents sort direction
type OrderDirection string

const (
	OrderAsc  OrderDirection = "ASC"
	OrderDesc OrderDirection = "DESC"
)

// Join represents a table join
type Join struct {
	Type  JoinType
	Table string
	Alias string
	On    Predicate
}

// JoinType represents types of table joins
type JoinType string

const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
)

// RelType represents the kind of an entity relationship
type RelType string

const (
	RelHasOne     RelType = "has-one"
	RelHasMany    RelType = "has-many"
	RelBelongsTo  RelType = "belongs-to"
	RelManyToMany RelType = "many-to-many"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeInvalidEntity      ErrorType = "invalid_entity"
	ErrorTypeUnresolvedRelation ErrorType = "unresolved_relation"
	ErrorTypeUnknownRelation    ErrorType = "unknown_relation"
	ErrorTypeMalformedTable     ErrorType = "malformed_table"
	ErrorTypeRender             ErrorType = "render"
	ErrorTypeConnection         ErrorType = "connection"
	ErrorTypeUnsupported        ErrorType = "unsupported"
	ErrorTypeExecution          ErrorType = "execution"
)
