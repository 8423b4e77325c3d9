package search

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Op is a comparison operator in a filter condition
type Op string

const (
	OpEq  Op = "="
	OpNeq Op = "!="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

// Condition compares one attribute against a literal
type Condition struct {
	Field string
	Op    Op
	Value interface{} // string, bool or a numeric type
}

func Eq(field string, v interface{}) Condition  { return Condition{Field: field, Op: OpEq, Value: v} }
func Neq(field string, v interface{}) Condition { return Condition{Field: field, Op: OpNeq, Value: v} }
func Lt(field string, v interface{}) Condition  { return Condition{Field: field, Op: OpLt, Value: v} }
func Lte(field string, v interface{}) Condition { return Condition{Field: field, Op: OpLte, Value: v} }
func Gt(field string, v interface{}) Condition  { return Condition{Field: field, Op: OpGt, Value: v} }
func Gte(field string, v interface{}) Condition { return Condition{Field: field, Op: OpGte, Value: v} }

// Filter is a conjunction of conditions
type Filter []Condition

// And builds a Filter from conditions
func And(conds ...Condition) Filter {
	return Filter(conds)
}

// Fields returns the attributes referenced by the filter
func (f Filter) Fields() []string {
	fields := make([]string, 0, len(f))
	for _, c := range f {
		fields = append(fields, c.Field)
	}
	return fields
}

// String renders the filter in Meilisearch syntax, e.g.
// `project_id = "docs" AND last_seen_at < 1700000000000`
func (f Filter) String() string {
	parts := make([]string, 0, len(f))
	for _, c := range f {
		parts = append(parts, fmt.Sprintf("%s %s %s", c.Field, c.Op, formatValue(c.Value)))
	}
	return strings.Join(parts, " AND ")
}

// Match evaluates the filter against a decoded JSON document
func (f Filter) Match(doc map[string]interface{}) bool {
	for _, c := range f {
		if !c.match(doc[c.Field]) {
			return false
		}
	}
	return true
}

func (c Condition) match(actual interface{}) bool {
	if actual == nil {
		return c.Op == OpNeq
	}

	if want, ok := toFloat(c.Value); ok {
		got, ok := toFloat(actual)
		if !ok {
			return c.Op == OpNeq
		}
		switch c.Op {
		case OpEq:
			return got == want
		case OpNeq:
			return got != want
		case OpLt:
			return got < want
		case OpLte:
			return got <= want
		case OpGt:
			return got > want
		case OpGte:
			return got >= want
		}
		return false
	}

	// Strings and booleans only support equality
	equal := fmt.Sprint(actual) == fmt.Sprint(c.Value)
	switch c.Op {
	case OpEq:
		return equal
	case OpNeq:
		return !equal
	}
	return false
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return quote(val)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	}
	if f, ok := toFloat(v); ok {
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return quote(fmt.Sprint(v))
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
