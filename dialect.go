package relq

import "strings"

// Dialect constants
const (
	DialectSQLite = "sqlite"
	DialectMySQL  = "mysql"
	DialectPgSQL  = "pgsql"
	DialectMsSQL  = "mssql"
)

// SupportedDialects is a list of all supported database dialects
var SupportedDialects = []string{
	DialectSQLite,
	DialectMySQL,
	DialectPgSQL,
	DialectMsSQL,
}

// IsDialectSupported checks if the given dialect is supported
func IsDialectSupported(dialect string) bool {
	for _, d := range SupportedDialects {
		if d == dialect {
			return true
		}
	}
	return false
}

// quoteIdent delimits a possibly table-prefixed identifier for the given
// dialect. A trailing "*" segment and anything that is not a plain
// identifier (function calls, raw expressions) pass through unquoted.
func quoteIdent(dialect, ident string) string {
	if ident == "" || ident == "*" {
		return ident
	}
	if strings.ContainsAny(ident, "( ") {
		return ident
	}
	left, right := `"`, `"`
	switch dialect {
	case DialectMySQL:
		left, right = "`", "`"
	case DialectMsSQL:
		left, right = "[", "]"
	}
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		if p != "*" {
			parts[i] = left + p + right
		}
	}
	return strings.Join(parts, ".")
}
