// Package relqgorm provides a GORM executor backend for relq
package relqgorm

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lemmego/relq"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// =====================================
// Executor Implementation
// =====================================

// Executor implements relq.Executor over a gorm.DB
type Executor struct {
	db *gorm.DB
}

// Open creates an executor for the configured driver. Setting the "gorm"
// option key "log_level" to "info" enables statement logging.
func Open(config relq.Config) (*Executor, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(config.Driver) {
	case "postgres", "postgresql":
		dialector = postgres.Open(buildPostgresDSN(config))
	case "mysql":
		dialector = mysql.Open(buildMySQLDSN(config))
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(buildSQLiteDSN(config))
	case "sqlserver", "mssql":
		dialector = sqlserver.Open(buildSQLServerDSN(config))
	default:
		return nil, relq.NewError(relq.ErrorTypeUnsupported,
			fmt.Sprintf("unsupported driver: %s", config.Driver))
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
	if options, ok := config.Options["gorm"]; ok {
		if gormOpts, ok := options.(map[string]interface{}); ok {
			if logLevel, ok := gormOpts["log_level"].(string); ok && logLevel == "info" {
				gormConfig.Logger = logger.Default.LogMode(logger.Info)
			}
		}
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, relq.NewErrorWithCause(relq.ErrorTypeConnection,
			"failed to connect to database", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, relq.NewErrorWithCause(relq.ErrorTypeConnection,
			"failed to access connection pool", err)
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

	return &Executor{db: db}, nil
}

// SupportedDrivers returns the list of supported database drivers
func SupportedDrivers() []string {
	return []string{"postgres", "postgresql", "mysql", "sqlite", "sqlite3", "sqlserver", "mssql"}
}

// DB exposes the underlying gorm database
func (e *Executor) DB() *gorm.DB {
	return e.db
}

// Close closes the underlying connection pool
func (e *Executor) Close() error {
	sqlDB, err := e.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Execute implements relq.Executor
func (e *Executor) Execute(ctx context.Context, command string, args []interface{}, shape relq.ResultShape) ([]relq.Record, error) {
	switch shape {
	case relq.ShapeRows:
		rows, err := e.db.WithContext(ctx).Raw(command, args...).Rows()
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return scanRecords(rows)
	case relq.ShapeKeys:
		// gorm's Exec surfaces only RowsAffected; the generated key needs
		// the raw sql.Result, so run on the session's pool and emit the
		// same trace Exec would.
		begin := time.Now()
		res, err := e.db.ConnPool.ExecContext(ctx, command, args...)
		e.db.Logger.Trace(ctx, begin, func() (string, int64) {
			sql := e.db.Dialector.Explain(command, args...)
			if err != nil || res == nil {
				return sql, -1
			}
			n, _ := res.RowsAffected()
			return sql, n
		}, err)
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return []relq.Record{}, nil
		}
		return []relq.Record{{"generated_key": id}}, nil
	default:
		tx := e.db.WithContext(ctx).Exec(command, args...)
		if tx.Error != nil {
			return nil, tx.Error
		}
		return []relq.Record{{"rows_affected": tx.RowsAffected}}, nil
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
// DSN Helpers
// =====================================

func buildPostgresDSN(config relq.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		config.Host, config.Port, config.Username, config.Password, config.Database)
}

func buildMySQLDSN(config relq.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		config.Username, config.Password, config.Host, config.Port, config.Database)
}

func buildSQLiteDSN(config relq.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}
	return config.Database
}

func buildSQLServerDSN(config relq.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}
	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
		config.Username, config.Password, config.Host, config.Port, config.Database)
}
