package zymmr

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strconv"
)

// Filter operators understood by Frappe
const (
	OpEquals       = "="
	OpNotEquals    = "!="
	OpGreater      = ">"
	OpLess         = "<"
	OpGreaterEqual = ">="
	OpLessEqual    = "<="
	OpIn           = "in"
	OpNotIn        = "not in"
	OpLike         = "like"
	OpNotLike      = "not like"
	OpBetween      = "between"
	OpIs           = "is"
)

var operators = map[string]bool{
	OpEquals: true, OpNotEquals: true, OpGreater: true, OpLess: true,
	OpGreaterEqual: true, OpLessEqual: true, OpIn: true, OpNotIn: true,
	OpLike: true, OpNotLike: true, OpBetween: true, OpIs: true,
}

// IsOperator reports whether op is a known filter operator
func IsOperator(op string) bool {
	return operators[op]
}

// NoLimit requests every matching row instead of the server's default page.
const NoLimit = -1

// Condition compares a field with an operator other than equality.
type Condition struct {
	Operator string
	Value    any
}

// Cond builds a Condition
func Cond(operator string, value any) Condition {
	return Condition{Operator: operator, Value: value}
}

// Filters maps field names to either a literal (equality) or a Condition.
// A two element []any or []string whose first item is an operator, e.g.
// []any{">=", 3} or []string{"like", "%login%"}, is accepted as a Condition
// as well. Any other slice is compared for equality.
type Filters map[string]any

// triples returns the filters as Frappe [field, operator, value] triples,
// ordered by field name.
func (f Filters) triples() [][]any {
	out := make([][]any, 0, len(f))
	for _, field := range slices.Sorted(maps.Keys(f)) {
		op, value := splitCondition(f[field])
		out = append(out, []any{field, op, value})
	}
	return out
}

// MarshalJSON encodes the filters in Frappe's triple form
func (f Filters) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.triples())
}

func splitCondition(v any) (string, any) {
	switch t := v.(type) {
	case Condition:
		return t.Operator, t.Value
	case *Condition:
		return t.Operator, t.Value
	case []any:
		if len(t) == 2 {
			if op, ok := t[0].(string); ok && IsOperator(op) {
				return op, t[1]
			}
		}
	case []string:
		if len(t) == 2 && IsOperator(t[0]) {
			return t[0], t[1]
		}
	}
	return OpEquals, v
}

// ListOptions describes one list request.
type ListOptions struct {
	// Fields to return; empty means the server's default field set.
	Fields []string
	// Filters narrows the result on the server.
	Filters Filters
	// OrderBy is passed through unchanged, e.g. "creation desc".
	OrderBy string
	// Limit is the page length. Zero means the server default, NoLimit means all rows.
	Limit int
	// Offset is the number of rows to skip.
	Offset int
}

// values encodes the options as Frappe query parameters
func (o ListOptions) values() (url.Values, error) {
	if o.Limit < 0 && o.Limit != NoLimit {
		return nil, &APIError{Kind: KindValidation, Message: fmt.Sprintf("limit must be non-negative, got %d", o.Limit)}
	}
	if o.Offset < 0 {
		return nil, &APIError{Kind: KindValidation, Message: fmt.Sprintf("offset must be non-negative, got %d", o.Offset)}
	}

	params := url.Values{}

	if len(o.Fields) > 0 {
		data, err := json.Marshal(o.Fields)
		if err != nil {
			return nil, &APIError{Kind: KindValidation, Message: "failed to encode fields", Err: err}
		}
		params.Set("fields", string(data))
	}

	if len(o.Filters) > 0 {
		data, err := json.Marshal(o.Filters)
		if err != nil {
			return nil, &APIError{Kind: KindValidation, Message: "failed to encode filters", Err: err}
		}
		params.Set("filters", string(data))
	}

	if o.OrderBy != "" {
		params.Set("order_by", o.OrderBy)
	}

	switch {
	case o.Limit == NoLimit:
		params.Set("limit_page_length", "0")
	case o.Limit > 0:
		params.Set("limit_page_length", strconv.Itoa(o.Limit))
	}

	if o.Offset > 0 {
		params.Set("limit_start", strconv.Itoa(o.Offset))
	}

	return params, nil
}

func fieldsParam(fields []string) (url.Values, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, &APIError{Kind: KindValidation, Message: "failed to encode fields", Err: err}
	}
	return url.Values{"fields": {string(data)}}, nil
}
