package store

import (
	"encoding/json"
	"strings"
)

// Row is a decoded row keyed by column.
type Row map[string]any

// DecodeRow decodes a JSON row, keeping numbers as float64.
func DecodeRow(raw json.RawMessage) (Row, error) {
	var r Row
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return r, nil
}

// Matches reports whether the row satisfies f.
func (r Row) Matches(f Filter) bool {
	v, ok := r[f.Column]
	switch f.Op {
	case OpIsNull:
		return !ok || v == nil
	case OpIn:
		if !ok || v == nil {
			return false
		}
		got := FormatValue(v)
		for _, want := range f.Values {
			if FormatValue(want) == got {
				return true
			}
		}
		return false
	case OpEq:
		if !ok || v == nil {
			return false
		}
		return FormatValue(v) == FormatValue(f.Value)
	}
	return false
}

// MatchesQuery reports whether the row satisfies every filter of q and,
// when present, at least one filter of its OR group.
func (r Row) MatchesQuery(q Query) bool {
	return r.MatchesAll(q.Filters) && r.matchesAny(q.Any)
}

// MatchesAll reports whether the row satisfies every filter.
func (r Row) MatchesAll(fs []Filter) bool {
	for _, f := range fs {
		if !r.Matches(f) {
			return false
		}
	}
	return true
}

func (r Row) matchesAny(fs []Filter) bool {
	if len(fs) == 0 {
		return true
	}
	for _, f := range fs {
		if r.Matches(f) {
			return true
		}
	}
	return false
}

// ParseFilter parses the "column=eq.value" syntax. Only eq and is.null are
// accepted.
func ParseFilter(s string) (Filter, error) {
	col, rest, ok := strings.Cut(s, "=")
	if !ok || col == "" {
		return Filter{}, Invalid("filter", "expected column=op.value")
	}
	op, val, ok := strings.Cut(rest, ".")
	if !ok {
		return Filter{}, Invalid("filter", "expected column=op.value")
	}
	switch Operator(op) {
	case OpEq:
		return Filter{Column: col, Op: OpEq, Value: val}, nil
	case OpIsNull:
		if val != "null" {
			return Filter{}, Invalid("filter", "is only supports null")
		}
		return IsNull(col), nil
	}
	return Filter{}, Invalid("filter", "unsupported operator "+op)
}
