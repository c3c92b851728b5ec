package relq

import (
	"context"
	"fmt"
	"io"
	"os"
)

// =====================================
// Sessions and Execution Modes
// =====================================

// Session binds an executor, a dialect and an execution mode. Sessions are
// immutable; the mode-deriving methods return copies, giving nested scopes
// stack-discipline overriding without shared state.
type Session struct {
	executor Executor
	dialect  string
	mode     ExecMode
	out      io.Writer
}

// SessionOption configures a session
type SessionOption func(s *Session)

// WithDialect sets the rendering dialect
func WithDialect(dialect string) SessionOption {
	return func(s *Session) { s.dialect = dialect }
}

// WithMode sets the execution mode
func WithMode(mode ExecMode) SessionOption {
	return func(s *Session) { s.mode = mode }
}

// WithOutput sets the writer dry-run commands are printed to
func WithOutput(w io.Writer) SessionOption {
	return func(s *Session) { s.out = w }
}

// NewSession creates a session in normal execution mode
func NewSession(executor Executor, opts ...SessionOption) *Session {
	s := &Session{
		executor: executor,
		dialect:  DialectSQLite,
		mode:     ModeExec,
		out:      os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns a derived session in the given execution mode
func (s *Session) Mode(mode ExecMode) *Session {
	c := *s
	c.mode = mode
	return &c
}

// DryRun returns a derived session that prints commands and synthesizes
// placeholder results without contacting the executor
func (s *Session) DryRun() *Session { return s.Mode(ModeDryRun) }

// SQLOnly returns a derived session that renders commands without
// executing them
func (s *Session) SQLOnly() *Session { return s.Mode(ModeSQLOnly) }

// QueryOnly returns a derived session that yields the query representation
// itself, so nested sub-selects can be merged instead of executed
func (s *Session) QueryOnly() *Session { return s.Mode(ModeQueryObject) }

// Result is the outcome of driving a query through a session. Which
// fields are populated depends on the session's mode.
type Result struct {
	Rows  []Record
	SQL   string
	Args  []interface{}
	Query *Query
}

// Exec drives a composed query according to the session mode. In normal
// mode the order is: prepares over outgoing insert/update values, render,
// execute, entity transforms over returned rows (selects only), then
// post-query hooks. Hooks do not run when execution fails.
func (s *Session) Exec(ctx context.Context, q Query) (*Result, error) {
	if err := q.Err(); err != nil {
		return nil, err
	}
	if s.mode == ModeQueryObject {
		qc := q.clone()
		return &Result{Query: &qc}, nil
	}

	q = applyPrepares(q)
	command, args, err := Render(q, s.dialect)
	if err != nil {
		return nil, err
	}

	switch s.mode {
	case ModeSQLOnly:
		return &Result{SQL: command, Args: args}, nil
	case ModeDryRun:
		fmt.Fprintf(s.out, "dry run :: %s :: %v\n", command, args)
		rows := []Record{placeholderRecord(q.Entity)}
		rows, err = runPostQueries(ctx, s, q, rows)
		if err != nil {
			return nil, err
		}
		return &Result{Rows: rows, SQL: command, Args: args}, nil
	default:
		rows, err := s.executor.Execute(ctx, command, args, q.Shape)
		if err != nil {
			return nil, err
		}
		if q.Kind == KindSelect && q.Entity != nil {
			rows = applyTransforms(q.Entity, rows)
		}
		rows, err = runPostQueries(ctx, s, q, rows)
		if err != nil {
			return nil, err
		}
		return &Result{Rows: rows, SQL: command, Args: args}, nil
	}
}

// Select builds, composes and executes a select on the target
func (s *Session) Select(ctx context.Context, target interface{}, compose ...func(Query) Query) ([]Record, error) {
	return s.run(ctx, Select(target), compose)
}

// Insert builds, composes and executes an insert on the target
func (s *Session) Insert(ctx context.Context, target interface{}, compose ...func(Query) Query) ([]Record, error) {
	return s.run(ctx, Insert(target), compose)
}

// Update builds, composes and executes an update on the target
func (s *Session) Update(ctx context.Context, target interface{}, compose ...func(Query) Query) ([]Record, error) {
	return s.run(ctx, Update(target), compose)
}

// Delete builds, composes and executes a delete on the target
func (s *Session) Delete(ctx context.Context, target interface{}, compose ...func(Query) Query) ([]Record, error) {
	return s.run(ctx, Delete(target), compose)
}

func (s *Session) run(ctx context.Context, q Query, compose []func(Query) Query) ([]Record, error) {
	for _, fn := range compose {
		q = fn(q)
	}
	res, err := s.Exec(ctx, q)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

func runPostQueries(ctx context.Context, s *Session, q Query, rows []Record) ([]Record, error) {
	var err error
	for _, p := range q.post {
		rows, err = p(ctx, s, rows)
		if err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// applyPrepares runs the entity's prepare hooks over outgoing values
func applyPrepares(q Query) Query {
	if q.Entity == nil || len(q.Entity.Prepares) == 0 {
		return q
	}
	switch q.Kind {
	case KindInsert:
		if len(q.ValuesList) == 0 {
			return q
		}
		c := q.clone()
		for i, rec := range c.ValuesList {
			r := rec.Clone()
			for _, fn := range q.Entity.Prepares {
				r = fn(r)
			}
			c.ValuesList[i] = r
		}
		return c
	case KindUpdate:
		if len(q.SetMap) == 0 {
			return q
		}
		c := q.clone()
		r := c.SetMap.Clone()
		for _, fn := range q.Entity.Prepares {
			r = fn(r)
		}
		c.SetMap = r
		return c
	default:
		return q
	}
}

func applyTransforms(e *Entity, rows []Record) []Record {
	if len(e.Transforms) == 0 {
		return rows
	}
	out := make([]Record, len(rows))
	for i, row := range rows {
		r := row
		for _, fn := range e.Transforms {
			r = fn(r)
		}
		out[i] = r
	}
	return out
}

// placeholderRecord synthesizes the dry-run result: the entity's primary
// key, plus the bare foreign-key column of every derivable belongs-to
// relation, each bound to a placeholder value.
func placeholderRecord(e *Entity) Record {
	rec := Record{}
	if e == nil {
		return rec
	}
	rec[e.PK] = "?"
	for name, d := range e.rels {
		if d.rtype != RelBelongsTo {
			continue
		}
		if rel, err := e.Relation(name); err == nil {
			rec[rel.FKColumn] = "?"
		}
	}
	return rec
}
