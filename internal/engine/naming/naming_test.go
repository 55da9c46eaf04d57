package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidates(t *testing.T) {
	tests := []struct {
		name  string
		hints Hints
		want  []string
	}{
		{"range loop", Hints{LoopVariable: true, RangeLoop: true}, []string{"index"}},
		{"outer nested range", Hints{LoopVariable: true, RangeLoop: true, NestedRange: true}, []string{"row_index", "index"}},
		{"inner nested range", Hints{LoopVariable: true, RangeLoop: true, NestedRange: true, RangeDepth: 1}, []string{"col_index", "index"}},
		{"deep nested range", Hints{LoopVariable: true, RangeLoop: true, NestedRange: true, RangeDepth: 2}, []string{"index_3", "index"}},
		{"accumulator", Hints{Accumulator: true, AccumulatorOp: "+="}, []string{"total", "accumulator"}},
		{"product", Hints{Accumulator: true, AccumulatorOp: "*="}, []string{"product", "accumulator"}},
		{"plural iterable", Hints{LoopVariable: true, Iterable: "orders"}, []string{"order", "item"}},
		{"singular iterable", Hints{LoopVariable: true, Iterable: "data"}, []string{"item"}},
		{"builtin call", Hints{CallResult: "len"}, []string{"length"}},
		{"unknown call", Hints{CallResult: "fetch"}, nil},
		{"nothing", Hints{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Candidates(tt.hints))
		})
	}
}

func TestSingular(t *testing.T) {
	cases := map[string]string{
		"items":        "item",
		"entries":      "entry",
		"boxes":        "box",
		"matches":      "match",
		"user_records": "user_record",
		"people":       "person",
		"status":       "",
		"class":        "",
		"data":         "",
		"xs":           "",
		"":             "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Singular(in), "Singular(%q)", in)
	}
}

func TestConditionCandidates(t *testing.T) {
	assert.Equal(t, []string{"is_valid_age"}, ConditionCandidates(Condition{Subjects: []string{"age", "age"}, Op: "and"}))
	assert.Equal(t, []string{"meets_criteria"}, ConditionCandidates(Condition{Subjects: []string{"x", "b"}, Op: "and"}))
	assert.Equal(t, []string{"mode_matches"}, ConditionCandidates(Condition{Subjects: []string{"mode", "mode"}, Op: "or"}))
	assert.Equal(t, []string{"any_criteria_met"}, ConditionCandidates(Condition{Subjects: []string{"a", "b"}, Op: "or"}))
	assert.Equal(t, []string{"has_user"}, ConditionCandidates(Condition{Subjects: []string{"user"}, NoneChecks: true}))
	assert.Nil(t, ConditionCandidates(Condition{}))
	assert.Equal(t, "condition_2", ConditionFallback(2))
}

func TestVerb(t *testing.T) {
	assert.Equal(t, "strip", Verb([]string{"strip", "split", "len", "print"}))
	assert.Equal(t, "load", Verb([]string{"print", "load_config", "save", "load_rules"}))
	assert.Equal(t, "", Verb([]string{"print", "len", "range"}))
	assert.Equal(t, "", Verb(nil))
}

func TestHelperNames(t *testing.T) {
	assert.Equal(t, "shared_strip", SharedHelper("strip", 1))
	assert.Equal(t, "shared_block_3", SharedHelper("", 3))
	assert.Equal(t, "parse_step", ExtractedHelper("parse", 1))
	assert.Equal(t, "extracted_helper_2", ExtractedHelper("", 2))
	assert.Equal(t, "value_1", Fallback(1))
}

func TestSuffixed(t *testing.T) {
	taken := map[string]bool{"index": true, "index_2": true}
	assert.Equal(t, "index_3", Suffixed("index", func(s string) bool { return taken[s] }))
	assert.Equal(t, "total", Suffixed("total", func(s string) bool { return taken[s] }))
}
