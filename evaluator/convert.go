package evaluator

import (
	"math"

	qerrors "github.com/go-sif/quantiles/errors"
)

// ToFloat64 converts numeric row values into doubles, skipping NaN
func ToFloat64(v interface{}) (float64, bool, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	default:
		return 0, false, qerrors.InvalidValueError{Position: 0, Expected: "double", Value: v}
	}
	if math.IsNaN(f) {
		return 0, false, nil
	}
	return f, true, nil
}

// ToString converts string row values
func ToString(v interface{}) (string, bool, error) {
	s, ok := v.(string)
	if !ok {
		return "", false, qerrors.InvalidValueError{Position: 0, Expected: "string", Value: v}
	}
	return s, true, nil
}

// ToInt64 converts integral row values into int64s
func ToInt64(v interface{}) (int64, bool, error) {
	switch x := v.(type) {
	case int:
		return int64(x), true, nil
	case int8:
		return int64(x), true, nil
	case int16:
		return int64(x), true, nil
	case int32:
		return int64(x), true, nil
	case int64:
		return x, true, nil
	default:
		return 0, false, qerrors.InvalidValueError{Position: 0, Expected: "bigint", Value: v}
	}
}

// toK converts the trailing resolution argument of a row
func toK(v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int8:
		return int(x), nil
	case int16:
		return int(x), nil
	case int32:
		return int(x), nil
	case int64:
		if x > math.MaxInt32 || x < math.MinInt32 {
			break
		}
		return int(x), nil
	}
	return 0, qerrors.InvalidValueError{Position: 1, Expected: "int resolution", Value: v}
}
