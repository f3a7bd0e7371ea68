package tally

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/jacoelho/jsontally/internal/clock"
	"github.com/jacoelho/jsontally/internal/match"
	"github.com/jacoelho/jsontally/internal/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		doc         string
		property    string
		criteria    string
		matching    int64
		nonMatching int64
	}{
		{
			name:        "multi_value_case_insensitive",
			doc:         `[{"p":"a"},{"p":"B"},{"p":"x"}]`,
			property:    "p",
			criteria:    "A|b|C",
			matching:    2,
			nonMatching: 1,
		},
		{
			name:        "empty_criteria_matches_empty_string",
			doc:         `[{"p":""},{"p":"x"}]`,
			property:    "p",
			criteria:    "",
			matching:    1,
			nonMatching: 1,
		},
		{
			name:        "null_only",
			doc:         `[{"p":null},{"p":"null"},{"p":0},{"p":null}]`,
			property:    "p",
			criteria:    "NULL",
			matching:    2,
			nonMatching: 2,
		},
		{
			name:        "null_in_multi_set",
			doc:         `[{"p":null},{"p":"a"},{"p":"b"}]`,
			property:    "p",
			criteria:    "a|null",
			matching:    2,
			nonMatching: 1,
		},
		{
			name:        "null_value_against_single",
			doc:         `{"p":null}`,
			property:    "p",
			criteria:    "x",
			matching:    0,
			nonMatching: 1,
		},
		{
			name:        "numbers_compare_by_literal",
			doc:         `[{"p":42},{"p":42.0},{"p":-1}]`,
			property:    "p",
			criteria:    "42",
			matching:    1,
			nonMatching: 2,
		},
		{
			name:        "case_folding_is_rune_for_rune",
			doc:         `[{"p":"straße"},{"p":"\ufb01le"},{"p":"FILE"}]`,
			property:    "p",
			criteria:    "STRASSE|file",
			matching:    1,
			nonMatching: 2,
		},
		{
			name:        "unpaired_surrogate_before_pair",
			doc:         `{"p":"\ud800\ud83d\ude00"}`,
			property:    "p",
			criteria:    "\uFFFD\U0001F600",
			matching:    1,
			nonMatching: 0,
		},
		{
			name:        "booleans",
			doc:         `[{"p":true},{"p":false}]`,
			property:    "p",
			criteria:    "True",
			matching:    1,
			nonMatching: 1,
		},
		{
			name:        "property_name_is_case_sensitive",
			doc:         `{"P":"a","p":"a","pp":"a"}`,
			property:    "p",
			criteria:    "a",
			matching:    1,
			nonMatching: 0,
		},
		{
			name:        "any_depth_and_duplicates",
			doc:         `{"p":"a","x":{"p":"a","y":[{"p":"b"},{"z":{"p":"a"}}]},"p":"a"}`,
			property:    "p",
			criteria:    "a",
			matching:    4,
			nonMatching: 1,
		},
		{
			name:        "structured_value_counts_and_nested_occurrences_still_count",
			doc:         `{"p":{"p":"a"},"q":[{"p":[1]}]}`,
			property:    "p",
			criteria:    "a",
			matching:    1,
			nonMatching: 2,
		},
		{
			name:        "structured_value_matches_marker",
			doc:         `{"p":{},"q":{"p":[]}}`,
			property:    "p",
			criteria:    "{",
			matching:    1,
			nonMatching: 1,
		},
		{
			name:        "string_value_equal_to_property_name_is_not_an_occurrence",
			doc:         `["p", {"q":"p"}]`,
			property:    "p",
			criteria:    "",
			matching:    0,
			nonMatching: 0,
		},
		{
			name:        "escaped_property_name",
			doc:         `{"n\u0061me":"x"}`,
			property:    "name",
			criteria:    "X",
			matching:    1,
			nonMatching: 0,
		},
		{
			name:        "single_value_whitespace_is_significant",
			doc:         `[{"p":"a"},{"p":" a"}]`,
			property:    "p",
			criteria:    " a",
			matching:    1,
			nonMatching: 1,
		},
		{
			name:        "no_occurrences",
			doc:         `{"a":1,"b":[{"c":null}]}`,
			property:    "p",
			criteria:    "x",
			matching:    0,
			nonMatching: 0,
		},
		{
			name:        "empty_document",
			doc:         "  \n",
			property:    "p",
			criteria:    "x",
			matching:    0,
			nonMatching: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := Analyze(strings.NewReader(tt.doc), tt.property, tt.criteria)
			require.NoError(t, err)
			assert.Equal(t, tt.matching, result.MatchingItems, "matching")
			assert.Equal(t, tt.nonMatching, result.NonMatchingItems, "non-matching")
			assert.Equal(t, tt.matching+tt.nonMatching, result.TotalPropertiesFound())
		})
	}
}

func TestAnalyzeParseError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		doc    string
		line   int
		column int
	}{
		{name: "missing_value", doc: `{"p": }`, line: 1, column: 7},
		{name: "name_then_close", doc: "{\"a\":1,\n\"p\"}", line: 2, column: 4},
		{name: "name_then_eof", doc: `{"p"`, line: 1, column: 5},
		{name: "error_after_occurrences", doc: "[{\"p\":\"a\"},\n{\"p\":\"a\"},\n{\"p\" \"a\"}]", line: 3, column: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := Analyze(strings.NewReader(tt.doc), "p", "a")
			require.Error(t, err)
			assert.Zero(t, result)

			var pe *scan.ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.line, pe.Line)
			assert.Equal(t, tt.column, pe.Column)
		})
	}
}

func TestAnalyzeInputErrors(t *testing.T) {
	t.Parallel()

	_, err := Analyze(nil, "p", "")
	require.ErrorIs(t, err, ErrNoInput)
	require.ErrorIs(t, err, ErrInput)

	_, err = Analyze(strings.NewReader(`{}`), "", "")
	require.ErrorIs(t, err, ErrEmptyProperty)
	require.ErrorIs(t, err, ErrInput)
}

func TestAnalyzeMaxDepthOption(t *testing.T) {
	t.Parallel()

	_, err := Analyze(strings.NewReader(`[[[{"p":1}]]]`), "p", "1", scan.MaxDepth(2))
	var pe *scan.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Msg, "maximum nesting depth")
}

func TestAnalyzeIsRepeatable(t *testing.T) {
	t.Parallel()

	doc := generateDocument(rand.New(rand.NewPCG(7, 11)), 4)
	payload, err := json.Marshal(doc)
	require.NoError(t, err)

	first, err := Analyze(strings.NewReader(string(payload)), "p", "a|b")
	require.NoError(t, err)
	second, err := Analyze(strings.NewReader(string(payload)), "p", "a|b")
	require.NoError(t, err)

	assert.Equal(t, first.MatchingItems, second.MatchingItems)
	assert.Equal(t, first.NonMatchingItems, second.NonMatchingItems)
}

func TestAnalyzeTotalEqualsKeyCount(t *testing.T) {
	t.Parallel()

	for seed := range uint64(25) {
		t.Run(fmt.Sprintf("seed_%d", seed), func(t *testing.T) {
			t.Parallel()

			doc := generateDocument(rand.New(rand.NewPCG(seed, seed*31+1)), 5)
			payload, err := json.MarshalIndent(doc, "", "  ")
			require.NoError(t, err)

			wantTotal, wantMatching := countKeys(doc, "p", "a")

			result, err := Analyze(strings.NewReader(string(payload)), "p", "A")
			require.NoError(t, err)
			assert.Equal(t, wantTotal, result.TotalPropertiesFound())
			assert.Equal(t, wantMatching, result.MatchingItems)
		})
	}
}

// TestRunTiming swaps the package clock, so it must not run in parallel.
func TestRunTiming(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	restore := clock.SetNowForTest(clock.Stepper(start, 1500*time.Microsecond))
	defer restore()

	sc, err := scan.New(strings.NewReader(`{"p":"a"}`))
	require.NoError(t, err)

	result, err := Run(sc, "p", match.Build("a"))
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Microsecond, result.Elapsed)
	assert.InDelta(t, 1.5, result.ElapsedMilliseconds(), 1e-9)
}

func TestResult(t *testing.T) {
	t.Parallel()

	r := Result{MatchingItems: 3, NonMatchingItems: 4, Elapsed: 2250 * time.Microsecond}
	assert.Equal(t, int64(7), r.TotalPropertiesFound())
	assert.InDelta(t, 2.25, r.ElapsedMilliseconds(), 1e-9)
}

func generateDocument(rng *rand.Rand, depth int) any {
	if depth == 0 {
		return generateScalar(rng)
	}

	switch rng.IntN(3) {
	case 0:
		items := make([]any, rng.IntN(4))
		for i := range items {
			items[i] = generateDocument(rng, depth-1)
		}
		return items
	case 1:
		obj := make(map[string]any)
		for range rng.IntN(5) {
			keys := []string{"p", "q", "P", "name"}
			obj[keys[rng.IntN(len(keys))]] = generateDocument(rng, depth-1)
		}
		return obj
	default:
		return generateScalar(rng)
	}
}

func generateScalar(rng *rand.Rand) any {
	switch rng.IntN(5) {
	case 0:
		return nil
	case 1:
		return rng.IntN(3) == 0
	case 2:
		return rng.IntN(100)
	default:
		values := []string{"a", "A", "b", "", "c"}
		return values[rng.IntN(len(values))]
	}
}

// countKeys walks a decoded document and counts keys named property, and
// those whose string value folds to want.
func countKeys(doc any, property, want string) (total, matching int64) {
	switch v := doc.(type) {
	case map[string]any:
		for key, value := range v {
			if key == property {
				total++
				if s, ok := value.(string); ok && strings.EqualFold(s, want) {
					matching++
				}
			}
			t, m := countKeys(value, property, want)
			total += t
			matching += m
		}
	case []any:
		for _, item := range v {
			t, m := countKeys(item, property, want)
			total += t
			matching += m
		}
	}
	return total, matching
}
