package filter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestCompileFilter(t *testing.T) {
	tests := []struct {
		name        string
		expression  string
		wantErr     bool
		errContains string
	}{
		{
			name:       "valid expression",
			expression: `status == "Open"`,
			wantErr:    false,
		},
		{
			name:        "empty expression",
			expression:  "   ",
			wantErr:     true,
			errContains: "empty expression",
		},
		{
			name:       "invalid syntax",
			expression: `status == "unclosed`,
			wantErr:    true,
		},
		{
			name:       "complex expression",
			expression: `has("sprint") and num("story_point") >= 3 and title contains "login"`,
			wantErr:    false,
		},
		{
			name:       "non boolean result",
			expression: `num("story_point") + 1`,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := CompileFilter(tt.expression)

			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error but got none")
					return
				}
				var ce *CompilationError
				if !errors.As(err, &ce) {
					t.Errorf("expected *CompilationError, got %T", err)
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.errContains)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if filter == nil {
					t.Errorf("expected filter but got nil")
				}
			}
		})
	}
}

func TestFilterEvaluation(t *testing.T) {
	record := Record{
		"name":        "WI-0042",
		"key":         "ZMR-42",
		"title":       "Fix login redirect",
		"status":      "In Progress",
		"priority":    "High",
		"story_point": float64(5),
		"sprint":      "Sprint 7",
		"start_date":  "2020-01-15",
		"modified":    "2020-01-20 10:30:00.123456",
		"description": "",
		"team name":   "x",
	}

	tests := []struct {
		name       string
		expression string
		expected   bool
	}{
		{
			name:       "field equality",
			expression: `status == "In Progress"`,
			expected:   true,
		},
		{
			name:       "field inequality",
			expression: `priority != "High"`,
			expected:   false,
		},
		{
			name:       "numeric comparison",
			expression: `story_point >= 3`,
			expected:   true,
		},
		{
			name:       "num helper",
			expression: `num("story_point") > 8`,
			expected:   false,
		},
		{
			name:       "has set field",
			expression: `has("sprint")`,
			expected:   true,
		},
		{
			name:       "has empty field",
			expression: `has("description")`,
			expected:   false,
		},
		{
			name:       "has missing field",
			expression: `has("reporter")`,
			expected:   false,
		},
		{
			name:       "icontains helper",
			expression: `icontains(title, "LOGIN")`,
			expected:   true,
		},
		{
			name:       "startsWith operator",
			expression: `key startsWith "ZMR-"`,
			expected:   true,
		},
		{
			name:       "lower builtin",
			expression: `lower(priority) == "high"`,
			expected:   true,
		},
		{
			name:       "field helper for awkward names",
			expression: `field("team name") == "x"`,
			expected:   true,
		},
		{
			name:       "doc map access",
			expression: `doc["team name"] == "x"`,
			expected:   true,
		},
		{
			name:       "date comparison",
			expression: `dateOf("start_date") < daysAgo(30)`,
			expected:   true,
		},
		{
			name:       "datetime field",
			expression: `dateOf("modified") > parseDate("2020-01-19")`,
			expected:   true,
		},
		{
			name:       "in operator",
			expression: `status in ["Open", "In Progress"]`,
			expected:   true,
		},
		{
			name:       "combined expression",
			expression: `status == "In Progress" and story_point > 3 and not has("reporter")`,
			expected:   true,
		},
		{
			name:       "missing field compared with number does not match",
			expression: `estimate > 3`,
			expected:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := CompileFilter(tt.expression)
			if err != nil {
				t.Fatalf("failed to compile filter: %v", err)
			}

			result := filter.Evaluate(record)
			if result != tt.expected {
				t.Errorf("expected %v but got %v for expression %q", tt.expected, result, tt.expression)
			}
		})
	}
}

func TestMatchReportsEvaluationError(t *testing.T) {
	filter, err := CompileFilter(`estimate > 3`)
	if err != nil {
		t.Fatalf("failed to compile filter: %v", err)
	}

	ok, err := filter.Match(Record{"name": "WI-1"})
	if ok {
		t.Error("expected no match")
	}

	var ee *EvaluationError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *EvaluationError, got %v", err)
	}
	if ee.RecordName != "WI-1" {
		t.Errorf("expected record name WI-1, got %q", ee.RecordName)
	}
}

func TestConcurrentEvaluation(t *testing.T) {
	records := generateTestRecords(1000)

	filter, err := CompileFilter(`status == "Open" and story_point > 2`)
	if err != nil {
		t.Fatalf("failed to compile filter: %v", err)
	}

	ctx := context.Background()
	evaluator := NewConcurrentEvaluator(WithWorkers(4), WithBatchSize(50))

	matches, err := evaluator.Evaluate(ctx, filter, records)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}

	// Verify results by sequential evaluation
	expected := evaluateSequential(filter, records)
	if len(matches) != len(expected) {
		t.Fatalf("expected %d matches but got %d", len(expected), len(matches))
	}
	for i := range matches {
		if matches[i].Name() != expected[i].Name() {
			t.Fatalf("match %d: expected %s but got %s", i, expected[i].Name(), matches[i].Name())
		}
	}
}

func TestEvaluateCancelled(t *testing.T) {
	filter, err := CompileFilter(`status == "Open"`)
	if err != nil {
		t.Fatalf("failed to compile filter: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = NewConcurrentEvaluator().Evaluate(ctx, filter, generateTestRecords(10))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBatchEvaluation(t *testing.T) {
	records := generateTestRecords(500)

	compiled := make(map[string]CompiledFilter)
	for name, expr := range map[string]string{
		"open":      `status == "Open"`,
		"large":     `story_point >= 5`,
		"scheduled": `has("sprint")`,
	} {
		filter, err := CompileFilter(expr)
		if err != nil {
			t.Fatalf("failed to compile %s: %v", name, err)
		}
		compiled[name] = filter
	}

	results, err := NewConcurrentEvaluator(WithWorkers(2)).EvaluateBatch(context.Background(), compiled, records)
	if err != nil {
		t.Fatalf("batch evaluation failed: %v", err)
	}

	if len(results) != len(compiled) {
		t.Errorf("expected %d filter results but got %d", len(compiled), len(results))
	}
	// Statuses rotate over four values
	if len(results["open"]) != 125 {
		t.Errorf("expected 125 open records but got %d", len(results["open"]))
	}
	// Every other record has a sprint
	if len(results["scheduled"]) != 250 {
		t.Errorf("expected 250 scheduled records but got %d", len(results["scheduled"]))
	}
}

func TestFilterManager(t *testing.T) {
	manager := NewManager()
	ctx := context.Background()

	filters := map[string]string{
		"open":      `status == "Open"`,
		"large":     `story_point >= 5`,
		"scheduled": `has("sprint")`,
	}

	if err := manager.RegisterFilters(filters); err != nil {
		t.Fatalf("failed to register filters: %v", err)
	}

	names := manager.ListFilters()
	if strings.Join(names, ",") != "large,open,scheduled" {
		t.Errorf("unexpected filter names %v", names)
	}

	filter, exists := manager.GetFilter("open")
	if !exists || filter == nil {
		t.Fatal("expected filter 'open' to exist")
	}
	if filter.Expression() != `status == "Open"` {
		t.Errorf("unexpected expression %q", filter.Expression())
	}

	records := generateTestRecords(100)
	matches, err := manager.EvaluateFilter(ctx, "open", records)
	if err != nil {
		t.Fatalf("failed to evaluate filter: %v", err)
	}
	if len(matches) != 25 {
		t.Errorf("expected 25 matches but got %d", len(matches))
	}

	all, err := manager.EvaluateAll(ctx, records)
	if err != nil {
		t.Fatalf("failed to evaluate all filters: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 results but got %d", len(all))
	}

	if _, err := manager.EvaluateSelected(ctx, []string{"open", "missing"}, records); err == nil {
		t.Error("expected error for unknown filter")
	}

	if _, err := manager.EvaluateFilter(ctx, "missing", records); err == nil {
		t.Error("expected error for unknown filter")
	}

	selected, err := manager.EvaluateSelected(ctx, []string{"open", "large"}, records)
	if err != nil {
		t.Fatalf("failed to evaluate selected filters: %v", err)
	}
	if len(selected) != 2 || len(selected["open"]) != 25 {
		t.Errorf("unexpected selected results %d/%d", len(selected), len(selected["open"]))
	}
}

// countingEvaluator records batch calls so the manager's delegation can be checked
type countingEvaluator struct {
	*ConcurrentEvaluator
	batches int
}

func (e *countingEvaluator) EvaluateBatch(ctx context.Context, filters map[string]CompiledFilter, records []Record) (map[string][]Record, error) {
	e.batches++
	return e.ConcurrentEvaluator.EvaluateBatch(ctx, filters, records)
}

func TestFilterManagerCustomEvaluator(t *testing.T) {
	evaluator := &countingEvaluator{ConcurrentEvaluator: NewConcurrentEvaluator(WithWorkers(1))}
	manager := NewManager(WithCompiler(NewExprCompiler()), WithEvaluator(evaluator))

	if err := manager.RegisterFilter("open", `status == "Open"`); err != nil {
		t.Fatalf("failed to register filter: %v", err)
	}

	results, err := manager.EvaluateAll(context.Background(), generateTestRecords(8))
	if err != nil {
		t.Fatalf("failed to evaluate all filters: %v", err)
	}
	if len(results["open"]) != 2 {
		t.Errorf("expected 2 matches but got %d", len(results["open"]))
	}
	if evaluator.batches != 1 {
		t.Errorf("expected 1 batch call but got %d", evaluator.batches)
	}
}

func TestRegisterFiltersIsAtomic(t *testing.T) {
	manager := NewManager()

	err := manager.RegisterFilters(map[string]string{
		"good": `status == "Open"`,
		"bad":  `status ==`,
	})
	if err == nil {
		t.Fatal("expected compile error")
	}
	if len(manager.ListFilters()) != 0 {
		t.Errorf("expected no filters registered, got %v", manager.ListFilters())
	}
}

func TestCacheEffectiveness(t *testing.T) {
	compiler := NewExprCompiler(WithCache(10))
	expression := `status == "Open" and story_point > 2`

	first, err := compiler.Compile(expression)
	if err != nil {
		t.Fatalf("first compilation failed: %v", err)
	}

	second, err := compiler.Compile(expression)
	if err != nil {
		t.Fatalf("second compilation failed: %v", err)
	}
	if first != second {
		t.Error("expected cached filter to be reused")
	}

	if compiler.Size() != 1 {
		t.Errorf("expected cache size 1 but got %d", compiler.Size())
	}

	compiler.Clear()
	if compiler.Size() != 0 {
		t.Errorf("expected cache size 0 after clear but got %d", compiler.Size())
	}
}

func TestLRUEviction(t *testing.T) {
	cache := newLRUCache[int](2)
	cache.Put("a", 1)
	cache.Put("b", 2)

	// Touch a so b becomes the oldest
	if v, ok := cache.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a=1, got %v %v", v, ok)
	}
	cache.Put("c", 3)

	if _, ok := cache.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if cache.Size() != 2 {
		t.Errorf("expected size 2 but got %d", cache.Size())
	}
}

func TestCustomFunctions(t *testing.T) {
	compiler := NewExprCompiler(WithCustomFunctions(map[string]any{
		"isTeam": func(s string) bool { return strings.HasSuffix(s, "@team.example.com") },
	}))

	filter, err := compiler.Compile(`isTeam(str("passignee"))`)
	if err != nil {
		t.Fatalf("failed to compile filter: %v", err)
	}
	if !filter.Evaluate(Record{"passignee": "dev@team.example.com"}) {
		t.Error("expected match")
	}
}

func generateTestRecords(n int) []Record {
	statuses := []string{"Open", "In Progress", "Done", "Blocked"}
	records := make([]Record, n)
	for i := range records {
		r := Record{
			"name":        fmt.Sprintf("WI-%04d", i),
			"status":      statuses[i%len(statuses)],
			"story_point": float64(i % 8),
		}
		if i%2 == 0 {
			r["sprint"] = "Sprint 1"
		}
		records[i] = r
	}
	return records
}
