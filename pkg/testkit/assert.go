package testkit

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertStatusCode checks the response code.
func AssertStatusCode(t *testing.T, s *Scenario, got int) {
	t.Helper()
	assert.Equal(t, s.ExpectedCode, got, "[%s] HTTP status code mismatch", s.Name)
}

// AssertJSONBody compares actual against expected after normalising both
// through JSON, honouring s.ResponseMatch.
func AssertJSONBody(t *testing.T, s *Scenario, expected, actual []byte) {
	t.Helper()
	if len(expected) == 0 {
		return
	}

	var expVal, actVal any
	require.NoError(t, json.Unmarshal(expected, &expVal),
		"[%s] expected response is not valid JSON", s.Name)

	if !assert.NoError(t, json.Unmarshal(actual, &actVal),
		"[%s] actual response is not valid JSON\nbody: %s", s.Name, string(actual)) {
		return
	}

	if s.ResponseMatch == MatchSubset {
		if diffs := SubsetDiff("", expVal, actVal); len(diffs) > 0 {
			assert.Fail(t, fmt.Sprintf("[%s] response body mismatch", s.Name),
				"%s\nbody: %s", strings.Join(diffs, "\n"), string(actual))
		}
		return
	}
	assert.Equal(t, expVal, actVal, "[%s] response body mismatch", s.Name)
}

// AssertMocksAllCalled fails the test if any mock was never triggered.
func AssertMocksAllCalled(t *testing.T, s *Scenario, mt *MockTransport) {
	t.Helper()
	for _, err := range mt.AssertAllCalled() {
		assert.NoError(t, err, "[%s]", s.Name)
	}
}

// SubsetDiff lists every place where expected is not contained in actual.
// Objects match when each expected key matches; arrays must have equal
// length and match element-wise.
func SubsetDiff(path string, expected, actual any) []string {
	var diffs []string
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return append(diffs, fmt.Sprintf("  %s: expected object, got %T", keyPath(path), actual))
		}
		for k, ev := range exp {
			p := keyPath(path) + "." + k
			av, exists := act[k]
			if !exists {
				diffs = append(diffs, fmt.Sprintf("  %s: missing in actual", p))
				continue
			}
			diffs = append(diffs, SubsetDiff(p, ev, av)...)
		}
	case []any:
		act, ok := actual.([]any)
		if !ok {
			return append(diffs, fmt.Sprintf("  %s: expected array, got %T", keyPath(path), actual))
		}
		if len(exp) != len(act) {
			return append(diffs, fmt.Sprintf("  %s: array length expected=%d actual=%d", keyPath(path), len(exp), len(act)))
		}
		for i := range exp {
			diffs = append(diffs, SubsetDiff(fmt.Sprintf("%s[%d]", keyPath(path), i), exp[i], act[i])...)
		}
	default:
		if fmt.Sprintf("%v", expected) != fmt.Sprintf("%v", actual) {
			diffs = append(diffs, fmt.Sprintf("  %s:\n    - %v\n    + %v", keyPath(path), expected, actual))
		}
	}
	return diffs
}

func keyPath(path string) string {
	if path == "" {
		return "root"
	}
	return strings.TrimPrefix(path, "root.")
}
