package utils

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// SafeInt coerces a raw API cell into an establishment count.
// "N" (suppressed) and "0" map to 0, integer text maps to its value and
// anything unparseable (including nil) maps to nil. It never panics.
func SafeInt(val interface{}) *int {
	switch v := val.(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(v)
		if s == "N" || s == "0" {
			return IntPtr(0)
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return nil
		}
		return IntPtr(i)
	case *string:
		if v == nil {
			return nil
		}
		return SafeInt(*v)
	case int:
		return IntPtr(v)
	case int64:
		return IntPtr(int(v))
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return nil
		}
		return IntPtr(int(v))
	case json.Number:
		i, err := strconv.Atoi(v.String())
		if err != nil {
			return nil
		}
		return IntPtr(i)
	default:
		return nil
	}
}

func IntPtr(i int) *int { return &i }

func FloatPtr(f float64) *float64 { return &f }
