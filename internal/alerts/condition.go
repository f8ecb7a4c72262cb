package alerts

import (
	"strconv"
	"strings"

	"github.com/txgraph/rollingmedian/pkg/types"
)

// evalCondition evaluates a rule condition string against an emission.
//
// Supported expressions (field operator value):
//
//	median > 3
//	participants >= 500
//	window_transactions < 1
//
// Returns (fires bool, triggering value float64).
// Returns (false, 0) if the expression cannot be parsed or the field is unknown.
func evalCondition(cond string, e types.Emission) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	v, ok := numericField(field, e)
	if !ok {
		return false, 0
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}
	return compareFloat(v, op, threshold), v
}

// numericField maps a field name to its value in the emission.
func numericField(field string, e types.Emission) (float64, bool) {
	switch field {
	case "median":
		return e.Median, true
	case "participants":
		return float64(e.Participants), true
	case "window_transactions":
		return float64(e.WindowLen), true
	default:
		return 0, false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	default:
		return false
	}
}
