package jsonl

import (
	"encoding/base64"
	"fmt"
	"math"

	"github.com/go-sif/quantiles"
	"github.com/tidwall/gjson"
)

// parseValue converts a gjson value into the Go type matching col.Kind. Missing and null values become nil.
func parseValue(val gjson.Result, col Column) (interface{}, error) {
	if !val.Exists() || val.Type == gjson.Null {
		return nil, nil
	}
	switch col.Kind {
	case quantiles.BooleanKind:
		if val.Type != gjson.True && val.Type != gjson.False {
			return nil, fmt.Errorf("Column %s was not a boolean. Was: %s", col.Path, val.Raw)
		}
		return val.Bool(), nil
	case quantiles.ByteKind:
		n, err := integral(val, col, math.MinInt8, math.MaxInt8)
		return int8(n), err
	case quantiles.ShortKind:
		n, err := integral(val, col, math.MinInt16, math.MaxInt16)
		return int16(n), err
	case quantiles.IntKind:
		n, err := integral(val, col, math.MinInt32, math.MaxInt32)
		return int32(n), err
	case quantiles.LongKind:
		return integral(val, col, math.MinInt64, math.MaxInt64)
	case quantiles.FloatKind:
		if val.Type != gjson.Number {
			return nil, fmt.Errorf("Column %s was not a number. Was: %s", col.Path, val.Raw)
		}
		return float32(val.Num), nil
	case quantiles.DoubleKind:
		if val.Type != gjson.Number {
			return nil, fmt.Errorf("Column %s was not a number. Was: %s", col.Path, val.Raw)
		}
		return val.Num, nil
	case quantiles.StringKind:
		if val.Type != gjson.String {
			return nil, fmt.Errorf("Column %s was not a string. Was: %s", col.Path, val.Raw)
		}
		return val.Str, nil
	case quantiles.BinaryKind:
		if val.Type != gjson.String {
			return nil, fmt.Errorf("Column %s was not a base64 string. Was: %s", col.Path, val.Raw)
		}
		b, err := base64.StdEncoding.DecodeString(val.Str)
		if err != nil {
			return nil, fmt.Errorf("Column %s was not a base64 string: %w", col.Path, err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("JSONL parsing does not support column kind %s", col.Kind)
	}
}

func integral(val gjson.Result, col Column, min int64, max int64) (int64, error) {
	if val.Type != gjson.Number {
		return 0, fmt.Errorf("Column %s was not a number. Was: %s", col.Path, val.Raw)
	}
	n := val.Int()
	if float64(n) != val.Num || n < min || n > max {
		return 0, fmt.Errorf("Column %s was not an integer in [%d, %d]. Was: %s", col.Path, min, max, val.Raw)
	}
	return n, nil
}
