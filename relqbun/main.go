// Package relqbun provides a Bun executor backend for relq
package relqbun

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lemmego/relq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

// =====================================
// Executor Implementation
// =====================================

// Executor implements relq.Executor over a bun.DB
type Executor struct {
	db *bun.DB
}

// Open creates an executor for the configured driver. Setting the "bun"
// option key "log_level" to "debug" or "verbose" attaches a bundebug
// query hook.
func Open(config relq.Config) (*Executor, error) {
	var sqlDB *sql.DB
	var err error

	switch strings.ToLower(config.Driver) {
	case "postgres", "postgresql":
		sqlDB, err = openPostgres(config)
	case "mysql":
		sqlDB, err = openMySQL(config)
	case "sqlite", "sqlite3":
		sqlDB, err = openSQLite(config)
	default:
		return nil, relq.NewError(relq.ErrorTypeUnsupported,
			fmt.Sprintf("unsupported driver: %s", config.Driver))
	}
	if err != nil {
		return nil, relq.NewErrorWithCause(relq.ErrorTypeConnection,
			"failed to connect to database", err)
	}

	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if config.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	var bunDB *bun.DB
	switch strings.ToLower(config.Driver) {
	case "postgres", "postgresql":
		bunDB = bun.NewDB(sqlDB, pgdialect.New())
	case "mysql":
		bunDB = bun.NewDB(sqlDB, mysqldialect.New())
	case "sqlite", "sqlite3":
		bunDB = bun.NewDB(sqlDB, sqlitedialect.New())
	}

	if options, ok := config.Options["bun"]; ok {
		if bunOpts, ok := options.(map[string]interface{}); ok {
			if logLevel, ok := bunOpts["log_level"].(string); ok && logLevel != "silent" {
				bunDB.AddQueryHook(bundebug.NewQueryHook(
					bundebug.WithVerbose(logLevel == "debug"),
				))
			}
		}
	}

	return &Executor{db: bunDB}, nil
}

// SupportedDrivers returns the list of supported database drivers
func SupportedDrivers() []string {
	return []string{"postgres", "postgresql", "mysql", "sqlite", "sqlite3"}
}

// DB exposes the underlying bun database
func (e *Executor) DB() *bun.DB {
	return e.db
}

// Close closes the database
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
	dsn := config.ConnectionURL
	if dsn == "" {
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
			config.Username, config.Password, config.Host, config.Port, config.Database)
	}
	connector := pgdriver.NewConnector(pgdriver.WithDSN(dsn))
	return sql.OpenDB(connector), nil
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
