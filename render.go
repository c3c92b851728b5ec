package relq

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// =====================================
// SQL Rendering
// =====================================

// Render turns a query representation into a command string with
// positional parameters for the given dialect.
func Render(q Query, dialect string) (string, []interface{}, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	switch q.Kind {
	case KindSelect:
		return renderSelect(q, dialect)
	case KindInsert:
		return renderInsert(q, dialect)
	case KindUpdate:
		return renderUpdate(q, dialect)
	case KindDelete:
		return renderDelete(q, dialect)
	default:
		return "", nil, NewError(ErrorTypeRender,
			fmt.Sprintf("cannot render query kind %q", q.Kind))
	}
}

func renderSelect(q Query, dialect string) (string, []interface{}, error) {
	var sb strings.Builder
	var args []interface{}

	sb.WriteString("SELECT ")
	for _, m := range q.Modifiers {
		sb.WriteString(m)
		sb.WriteString(" ")
	}

	fields := q.effectiveFields()
	for i, f := range fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(quoteIdent(dialect, f.Col))
		if f.Alias != "" {
			sb.WriteString(" AS ")
			sb.WriteString(quoteIdent(dialect, f.Alias))
		}
	}

	sb.WriteString(" FROM ")
	sb.WriteString(renderTarget(q.Table, q.Alias, dialect))

	for _, j := range q.Joins {
		sb.WriteString(" ")
		sb.WriteString(string(j.Type))
		sb.WriteString(" JOIN ")
		sb.WriteString(renderTarget(j.Table, j.Alias, dialect))
		if j.On != nil {
			frag, fargs := j.On.Fragment(dialect)
			if frag != "" {
				sb.WriteString(" ON ")
				sb.WriteString(frag)
				args = append(args, fargs...)
			}
		}
	}

	args = renderWhere(&sb, q.WhereList, dialect, args)

	if len(q.GroupList) > 0 {
		sb.WriteString(" GROUP BY ")
		for i, g := range q.GroupList {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(quoteIdent(dialect, g))
		}
	}

	if len(q.OrderList) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, o := range q.OrderList {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(quoteIdent(dialect, o.Field))
			sb.WriteString(" ")
			sb.WriteString(string(o.Direction))
		}
	}

	if q.LimitN != nil {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(*q.LimitN))
	}
	if q.OffsetN != nil {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.Itoa(*q.OffsetN))
	}
	return sb.String(), args, nil
}

func renderInsert(q Query, dialect string) (string, []interface{}, error) {
	if len(q.ValuesList) == 0 {
		return "", nil, NewError(ErrorTypeRender,
			fmt.Sprintf("insert into %q has no values", q.Table))
	}

	cols := sortedColumnUnion(q.ValuesList)
	var sb strings.Builder
	var args []interface{}

	sb.WriteString("INSERT INTO ")
	sb.WriteString(quoteIdent(dialect, q.Table))
	sb.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(quoteIdent(dialect, c))
	}
	sb.WriteString(") VALUES ")

	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	for i, rec := range q.ValuesList {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(tuple)
		for _, c := range cols {
			args = append(args, rec[c])
		}
	}
	return sb.String(), args, nil
}

func renderUpdate(q Query, dialect string) (string, []interface{}, error) {
	if len(q.SetMap) == 0 {
		return "", nil, NewError(ErrorTypeRender,
			fmt.Sprintf("update of %q sets no fields", q.Table))
	}

	cols := make([]string, 0, len(q.SetMap))
	for c := range q.SetMap {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	var sb strings.Builder
	var args []interface{}
	sb.WriteString("UPDATE ")
	sb.WriteString(quoteIdent(dialect, q.Table))
	sb.WriteString(" SET ")
	for i, c := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(quoteIdent(dialect, c))
		sb.WriteString(" = ?")
		args = append(args, q.SetMap[c])
	}
	args = renderWhere(&sb, q.WhereList, dialect, args)
	return sb.String(), args, nil
}

func renderDelete(q Query, dialect string) (string, []interface{}, error) {
	var sb strings.Builder
	var args []interface{}
	sb.WriteString("DELETE FROM ")
	sb.WriteString(quoteIdent(dialect, q.Table))
	args = renderWhere(&sb, q.WhereList, dialect, args)
	return sb.String(), args, nil
}

func renderWhere(sb *strings.Builder, preds []Predicate, dialect string, args []interface{}) []interface{} {
	var parts []string
	for _, p := range preds {
		frag, fargs := p.Fragment(dialect)
		if frag == "" {
			continue
		}
		parts = append(parts, frag)
		args = append(args, fargs...)
	}
	if len(parts) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(parts, " AND "))
	}
	return args
}

func renderTarget(table, alias, dialect string) string {
	t := quoteIdent(dialect, table)
	if alias != "" {
		return t + " AS " + quoteIdent(dialect, alias)
	}
	return t
}

// sortedColumnUnion collects every column appearing in the batch, sorted
// for deterministic rendering. Records missing a column insert NULL.
func sortedColumnUnion(recs []Record) []string {
	seen := map[string]bool{}
	var cols []string
	for _, r := range recs {
		for c := range r {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	sort.Strings(cols)
	return cols
}
