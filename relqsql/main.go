// Package relqsql provides a database/sql executor backend for relq
package relqsql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lemmego/relq"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// =====================================
// Executor Implementation
// =====================================

// Executor implements relq.Executor over database/sql
type Executor struct {
	db     *sql.DB
	driver string
}

// Open creates an executor for the configured driver
func Open(config relq.Config) (*Executor, error) {
	var db *sql.DB
	var err error

	driver := strings.ToLower(config.Driver)
	switch driver {
	case "postgres", "postgresql":
		db, err = openPostgres(config)
	case "mysql":
		db, err = openMySQL(config)
	case "sqlite", "sqlite3":
		db, err = openSQLite(config)
	default:
		return nil, relq.NewError(relq.ErrorTypeUnsupported,
			fmt.Sprintf("unsupported driver: %s", config.Driver))
	}
	if err != nil {
		return nil, relq.NewErrorWithCause(relq.ErrorTypeConnection,
			"failed to connect to database", err)
	}

	configurePool(db, config)
	return &Executor{db: db, driver: driver}, nil
}

// SupportedDrivers returns the list of supported database drivers
func SupportedDrivers() []string {
	return []string{"postgres", "postgresql", "mysql", "sqlite", "sqlite3"}
}

// DB exposes the underlying connection pool
func (e *Executor) DB() *sql.DB {
	return e.db
}

// Close closes the connection pool
func (e *Executor) Close() error {
	return e.db.Close()
}

// Execute implements relq.Executor
func (e *Executor) Execute(ctx context.Context, command string, args []interface{}, shape relq.ResultShape) ([]relq.Record, error) {
	switch shape {
	case relq.ShapeRows:
		rows, err := e.db.QueryContext(ctx, command, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return scanRecords(rows)
	case relq.ShapeKeys:
		res, err := e.db.ExecContext(ctx, command, args...)
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			// Drivers without insert-id support still succeed.
			return []relq.Record{}, nil
		}
		return []relq.Record{{"generated_key": id}}, nil
	default:
		res, err := e.db.ExecContext(ctx, command, args...)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return []relq.Record{}, nil
		}
		return []relq.Record{{"rows_affected": n}}, nil
	}
}

// scanRecords reads every row into a column-keyed record. Byte slices are
// widened to strings so records compare cleanly across drivers.
func scanRecords(rows *sql.Rows) ([]relq.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []relq.Record{}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(relq.Record, len(cols))
		for i, c := range cols {
			v := vals[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			rec[c] = v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// =====================================
// Connection Helpers
// =====================================

func openPostgres(config relq.Config) (*sql.DB, error) {
	if config.ConnectionURL != "" {
		return sql.Open("postgres", config.ConnectionURL)
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		config.Username, config.Password, config.Host, config.Port, config.Database)
	return sql.Open("postgres", dsn)
}

func openMySQL(config relq.Config) (*sql.DB, error) {
	if config.ConnectionURL != "" {
		return sql.Open("mysql", config.ConnectionURL)
	}
	mysqlConfig := mysql.Config{
		User:   config.Username,
		Passwd: config.Password,
		Net:    "tcp",
		Addr:   fmt.Sprintf("%s:%d", config.Host, config.Port),
		DBName: config.Database,
	}
	return sql.Open("mysql", mysqlConfig.FormatDSN())
}

func openSQLite(config relq.Config) (*sql.DB, error) {
	dsn := config.ConnectionURL
	if dsn == "" {
		dsn = config.Database
	}
	return sql.Open("sqlite3", dsn)
}

func configurePool(db *sql.DB, config relq.Config) {
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if config.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}
}
