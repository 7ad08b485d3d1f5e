package filter

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Date layouts used by Frappe for Date and Datetime fields
var dateLayouts = []string{
	"2006-01-02 15:04:05.999999",
	time.RFC3339,
	"2006-01-02",
}

// exprFilter implements CompiledFilter using the expr language
type exprFilter struct {
	expression string
	program    *vm.Program
	helpers    map[string]any
}

// ExprCompilerOption configures an expr compiler
type ExprCompilerOption func(*exprCompiler)

// WithCache enables filter caching with the specified size
func WithCache(size int) ExprCompilerOption {
	return func(c *exprCompiler) {
		if size > 0 {
			c.cache = newLRUCache[CompiledFilter](size)
		}
	}
}

// WithCustomFunctions adds custom helper functions
func WithCustomFunctions(funcs map[string]any) ExprCompilerOption {
	return func(c *exprCompiler) {
		maps.Copy(c.helperFuncs, funcs)
	}
}

// NewExprCompiler creates a new expr-based filter compiler
func NewExprCompiler(opts ...ExprCompilerOption) CachingCompiler {
	c := &exprCompiler{
		helperFuncs: createHelperFunctions(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// exprCompiler implements Compiler for expr-based filters
type exprCompiler struct {
	helperFuncs map[string]any
	cache       *lruCache[CompiledFilter]
}

var (
	defaultCompiler     Compiler
	defaultCompilerOnce sync.Once
)

// CompileFilter compiles an expression with a shared, caching compiler
func CompileFilter(expression string) (CompiledFilter, error) {
	defaultCompilerOnce.Do(func() {
		defaultCompiler = NewExprCompiler(WithCache(100))
	})
	return defaultCompiler.Compile(expression)
}

// Compile compiles an expression into an executable filter. Document
// fields are available as variables, e.g. `status == "Open"`; fields whose
// names are not identifiers can be read with field("...") or doc["..."].
func (c *exprCompiler) Compile(expression string) (CompiledFilter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "empty expression",
			Position:   -1,
		}
	}

	if c.cache != nil {
		if cached, ok := c.cache.Get(expression); ok {
			return cached, nil
		}
	}

	// Record helpers are bound per evaluation; placeholders give the checker
	// their signatures.
	env := make(map[string]any, len(c.helperFuncs)+8)
	maps.Copy(env, c.helperFuncs)
	addRecordFunctions(env, Record{})

	program, err := expr.Compile(expression,
		expr.Env(env),
		expr.AllowUndefinedVariables(), // document fields
		expr.AsBool(),
	)
	if err != nil {
		return nil, newCompilationError(expression, err)
	}

	filter := &exprFilter{
		expression: expression,
		program:    program,
		helpers:    c.helperFuncs,
	}

	if c.cache != nil {
		c.cache.Put(expression, filter)
	}

	return filter, nil
}

// Clear removes all cached filters
func (c *exprCompiler) Clear() {
	if c.cache != nil {
		c.cache.Clear()
	}
}

// Size returns the number of cached filters
func (c *exprCompiler) Size() int {
	if c.cache != nil {
		return c.cache.Size()
	}
	return 0
}

// Evaluate evaluates the filter against a record. Records that cannot be
// evaluated, e.g. comparing a missing field with a number, do not match.
func (f *exprFilter) Evaluate(record Record) bool {
	ok, err := f.Match(record)
	return err == nil && ok
}

// Match evaluates the filter against a record and reports evaluation errors
func (f *exprFilter) Match(record Record) (bool, error) {
	result, err := expr.Run(f.program, createRuntimeEnvironment(record, f.helpers))
	if err != nil {
		return false, &EvaluationError{
			Expression: f.expression,
			RecordName: record.Name(),
			Reason:     "failed to run expression",
			Err:        err,
		}
	}

	// AsBool guarantees the result type
	return result.(bool), nil
}

// Expression returns the original expression
func (f *exprFilter) Expression() string {
	return f.expression
}

// createHelperFunctions creates the static helper functions used during compilation
func createHelperFunctions() map[string]any {
	funcs := make(map[string]any, 16)
	addHelperFunctions(funcs)
	return funcs
}

// addHelperFunctions adds all record-independent helper functions to the
// provided map. String and time basics (lower, upper, now, trim, ...) are
// expr builtins.
func addHelperFunctions(env map[string]any) {
	// Date helpers
	env["daysSince"] = func(t time.Time) int {
		return int(time.Since(t).Hours() / 24)
	}
	env["daysAgo"] = func(days int) time.Time {
		return time.Now().AddDate(0, 0, -days)
	}
	env["monthsAgo"] = func(months int) time.Time {
		return time.Now().AddDate(0, -months, 0)
	}
	env["yearsAgo"] = func(years int) time.Time {
		return time.Now().AddDate(-years, 0, 0)
	}
	env["parseDate"] = func(s string) time.Time {
		t, _ := parseDate(s)
		return t
	}
	// Case-insensitive variant of the contains operator
	env["icontains"] = func(str, substr string) bool {
		return strings.Contains(strings.ToLower(str), strings.ToLower(substr))
	}
}

// createRuntimeEnvironment creates the runtime environment for filter evaluation
func createRuntimeEnvironment(record Record, helpers map[string]any) map[string]any {
	env := make(map[string]any, len(record)+len(helpers)+8)

	// Fields first so helpers win on name clashes
	maps.Copy(env, record)
	maps.Copy(env, helpers)
	addRecordFunctions(env, record)

	return env
}

// addRecordFunctions binds the record-specific helpers
func addRecordFunctions(env map[string]any, record Record) {
	env["doc"] = map[string]any(record)
	env["field"] = func(name string) any {
		return record[name]
	}
	env["has"] = func(name string) bool {
		switch v := record[name].(type) {
		case nil:
			return false
		case string:
			return v != ""
		default:
			return true
		}
	}
	env["str"] = func(name string) string {
		if v, ok := record[name]; ok && v != nil {
			return fmt.Sprint(v)
		}
		return ""
	}
	env["num"] = func(name string) float64 {
		n, _ := toFloat(record[name])
		return n
	}
	env["dateOf"] = func(name string) time.Time {
		s, _ := record[name].(string)
		t, _ := parseDate(s)
		return t
	}
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
