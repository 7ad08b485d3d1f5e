package filter

import (
	"context"
	"fmt"
)

// Record is a single document as decoded from the API: field name to value
type Record map[string]any

// Name returns the document name, or "" if the record has none
func (r Record) Name() string {
	switch v := r["name"].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Filter defines the basic interface for record filters
type Filter interface {
	// Evaluate checks if a record matches the filter criteria
	Evaluate(record Record) bool
}

// CompiledFilter represents a pre-compiled filter ready for evaluation
type CompiledFilter interface {
	Filter

	// Match is Evaluate with the evaluation error reported instead of
	// treated as a non-match
	Match(record Record) (bool, error)

	// Expression returns the original filter expression
	Expression() string
}

// Compiler compiles filter expressions into executable filters
type Compiler interface {
	// Compile parses and compiles a filter expression
	Compile(expression string) (CompiledFilter, error)
}

// Evaluator evaluates filters against records
type Evaluator interface {
	// Evaluate evaluates a filter against all records
	Evaluate(ctx context.Context, filter CompiledFilter, records []Record) ([]Record, error)
}

// BatchEvaluator evaluates multiple filters concurrently
type BatchEvaluator interface {
	Evaluator

	// EvaluateBatch evaluates multiple filters against records concurrently
	EvaluateBatch(ctx context.Context, filters map[string]CompiledFilter, records []Record) (map[string][]Record, error)
}

// CachingCompiler provides caching for compiled filters
type CachingCompiler interface {
	Compiler

	// Clear removes all cached filters
	Clear()

	// Size returns the number of cached filters
	Size() int
}
