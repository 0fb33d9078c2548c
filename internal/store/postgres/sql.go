package postgres

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"waselni/internal/store"
)

// builder accumulates positional arguments while rendering SQL.
type builder struct {
	args []any
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func ident(name string) string {
	return pq.QuoteIdentifier(name)
}

func (b *builder) predicate(alias string, f store.Filter) string {
	col := alias + "." + ident(f.Column)
	switch f.Op {
	case store.OpIsNull:
		return col + " IS NULL"
	case store.OpIn:
		if len(f.Values) == 0 {
			return "FALSE"
		}
		params := make([]string, len(f.Values))
		for i, v := range f.Values {
			params[i] = b.arg(v)
		}
		return col + " IN (" + strings.Join(params, ", ") + ")"
	default:
		return col + " = " + b.arg(f.Value)
	}
}

// where renders the ANDed filters plus the optional OR group.
func (b *builder) where(alias string, all []store.Filter, anyOf []store.Filter) string {
	var parts []string
	for _, f := range all {
		parts = append(parts, b.predicate(alias, f))
	}
	if len(anyOf) > 0 {
		ors := make([]string, len(anyOf))
		for i, f := range anyOf {
			ors[i] = b.predicate(alias, f)
		}
		parts = append(parts, "("+strings.Join(ors, " OR ")+")")
	}
	if len(parts) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(parts, " AND ")
}

// buildSelect renders q as a query producing one JSON object per row.
func buildSelect(c store.Collection, schema store.Schema, q store.Query) (string, []any) {
	var b builder

	var sb strings.Builder
	sb.WriteString("SELECT row_to_json(r) FROM (SELECT t.*")
	for i, e := range q.Embed {
		alias := "e" + strconv.Itoa(i)
		fmt.Fprintf(&sb, ", (SELECT row_to_json(%s) FROM %s %s WHERE %s.id = t.%s) AS %s",
			alias, ident(string(e)), alias, alias, ident(schema.Relations[e]), ident(string(e)))
	}
	sb.WriteString(" FROM " + ident(string(c)) + " t")
	sb.WriteString(b.where("t", q.Filters, q.Any))
	sb.WriteString(") r")

	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "ASC"
			if o.Descending {
				dir = "DESC"
			}
			parts[i] = "r." + ident(o.Column) + " " + dir
		}
		sb.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
	if q.Limit > 0 {
		sb.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
	}
	return sb.String(), b.args
}

func sortedColumns(v store.Values) []string {
	cols := make([]string, 0, len(v))
	for col := range v {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// buildInsert renders a single-row insert returning the stored row.
func buildInsert(c store.Collection, v store.Values) (string, []any) {
	var b builder
	cols := sortedColumns(v)
	names := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, col := range cols {
		names[i] = ident(col)
		params[i] = b.arg(v[col])
	}
	query := fmt.Sprintf("INSERT INTO %s AS t (%s) VALUES (%s) RETURNING row_to_json(t)",
		ident(string(c)), strings.Join(names, ", "), strings.Join(params, ", "))
	return query, b.args
}

// buildUpdate renders a single-row update guarded by id and conds.
func buildUpdate(c store.Collection, schema store.Schema, id string, v store.Values, conds []store.Filter) (string, []any) {
	var b builder
	cols := sortedColumns(v)
	sets := make([]string, 0, len(cols)+1)
	for _, col := range cols {
		sets = append(sets, ident(col)+" = "+b.arg(v[col]))
	}
	if schema.Touched {
		if _, ok := v["updated_at"]; !ok {
			sets = append(sets, ident("updated_at")+" = now()")
		}
	}
	where := b.where("t", append([]store.Filter{store.Eq("id", id)}, conds...), nil)
	query := fmt.Sprintf("UPDATE %s AS t SET %s%s RETURNING row_to_json(t)",
		ident(string(c)), strings.Join(sets, ", "), where)
	return query, b.args
}
