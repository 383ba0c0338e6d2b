package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/lnkday/automation-service/internal/domain"
)

// EvaluateConditions checks whether the payload satisfies every condition.
// An empty or nil list always passes; the list is conjunctive.
func EvaluateConditions(conditions []domain.Condition, payload map[string]interface{}) bool {
	for _, c := range conditions {
		if !evaluateCondition(c, payload) {
			return false
		}
	}
	return true
}

func evaluateCondition(c domain.Condition, payload map[string]interface{}) bool {
	actual, found := LookupPath(payload, c.Field)

	switch c.Operator {
	case "eq":
		return found && looseEqual(actual, c.Value)
	case "ne":
		return !found || !looseEqual(actual, c.Value)
	case "gt":
		return compareNumeric(actual, c.Value, found, func(a, b float64) bool { return a > b })
	case "lt":
		return compareNumeric(actual, c.Value, found, func(a, b float64) bool { return a < b })
	case "gte":
		return compareNumeric(actual, c.Value, found, func(a, b float64) bool { return a >= b })
	case "lte":
		return compareNumeric(actual, c.Value, found, func(a, b float64) bool { return a <= b })
	case "contains":
		return found && strings.Contains(stringify(actual), stringify(c.Value))
	case "not_contains":
		return !found || !strings.Contains(stringify(actual), stringify(c.Value))
	case "exists":
		return found && actual != nil
	case "not_exists":
		return !found || actual == nil
	case "in":
		return found && memberOf(actual, c.Value)
	case "not_in":
		return !found || !memberOf(actual, c.Value)
	case "regex":
		if !found {
			return false
		}
		re, err := regexp.Compile(stringify(c.Value))
		if err != nil {
			slog.Warn("Invalid regex in workflow condition", "field", c.Field, "pattern", c.Value, "error", err)
			return false
		}
		return re.MatchString(stringify(actual))
	default:
		// Unrecognised operators fail open so a typo disables the guard,
		// not the workflow.
		slog.Warn("Unknown condition operator, treating as satisfied", "operator", c.Operator, "field", c.Field)
		return true
	}
}

// LookupPath walks a dot-separated path through nested maps. A missing path
// yields (nil, false), never an error.
func LookupPath(payload map[string]interface{}, path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var current interface{} = payload
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// looseEqual compares numerically when both sides coerce to numbers, and by
// stringified value otherwise.
func looseEqual(a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return stringify(a) == stringify(b)
}

func compareNumeric(actual, expected interface{}, found bool, cmp func(a, b float64) bool) bool {
	if !found {
		return false
	}
	af, aok := toFloat(actual)
	bf, bok := toFloat(expected)
	if !aok || !bok {
		return false
	}
	return cmp(af, bf)
}

func memberOf(actual, expected interface{}) bool {
	list, ok := expected.([]interface{})
	if !ok {
		return false
	}
	for _, item := range list {
		if looseEqual(actual, item) {
			return true
		}
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func stringify(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
