package store

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Operator is a filter comparison.
type Operator string

const (
	OpEq     Operator = "eq"
	OpIn     Operator = "in"
	OpIsNull Operator = "is"
)

// Filter is a single column predicate.
type Filter struct {
	Column string
	Op     Operator
	Value  any
	Values []any
}

// Eq matches rows whose column equals v. A nil v matches NULL.
func Eq(column string, v any) Filter {
	if v == nil {
		return IsNull(column)
	}
	return Filter{Column: column, Op: OpEq, Value: v}
}

// In matches rows whose column equals any of vs. An empty set matches nothing.
func In(column string, vs ...any) Filter {
	return Filter{Column: column, Op: OpIn, Values: vs}
}

// IsNull matches rows whose column is NULL.
func IsNull(column string) Filter {
	return Filter{Column: column, Op: OpIsNull}
}

// Strings converts a string slice for use with In.
func Strings(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// Order sorts results by a column.
type Order struct {
	Column     string
	Descending bool
}

// Query selects rows of one collection.
type Query struct {
	Filters []Filter
	Any     []Filter
	Order   []Order
	Limit   int
	Embed   []Collection
}

// NewQuery returns an empty query matching every row.
func NewQuery() Query {
	return Query{}
}

// Where adds ANDed filters.
func (q Query) Where(fs ...Filter) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), fs...)
	return q
}

// Or sets the OR group. A row matches the group when any filter in it matches.
func (q Query) Or(fs ...Filter) Query {
	q.Any = append([]Filter(nil), fs...)
	return q
}

// OrderBy appends an ordering.
func (q Query) OrderBy(column string, descending bool) Query {
	q.Order = append(append([]Order(nil), q.Order...), Order{Column: column, Descending: descending})
	return q
}

// WithLimit caps the number of rows returned.
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// Embedding requests the related row of c inline under its collection name.
func (q Query) Embedding(c Collection) Query {
	q.Embed = append(append([]Collection(nil), q.Embed...), c)
	return q
}

// FormatValue renders a filter value the way the hosted backend spells it
// in a query string.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return x.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return "null"
		}
		return FormatValue(rv.Elem().Interface())
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// String renders the filter in the hosted backend's syntax, e.g. "status=eq.pending".
func (f Filter) String() string {
	switch f.Op {
	case OpIsNull:
		return f.Column + "=is.null"
	case OpIn:
		parts := make([]string, len(f.Values))
		for i, v := range f.Values {
			parts[i] = quoteListItem(FormatValue(v))
		}
		return f.Column + "=in.(" + strings.Join(parts, ",") + ")"
	default:
		return f.Column + "=eq." + FormatValue(f.Value)
	}
}

// quoteListItem wraps list members containing reserved characters in double quotes.
func quoteListItem(s string) string {
	if !strings.ContainsAny(s, ",()\" ") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
