package desktop

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Args wraps the decoded call arguments. The dispatcher has already validated
// them against the tool's input schema, so accessors only convert types.
type Args map[string]any

// String returns the named argument or def when absent.
func (a Args) String(key, def string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int returns the named argument or def when absent or not numeric.
func (a Args) Int(key string, def int) int {
	switch n := a[key].(type) {
	case float64:
		return int(math.Round(n))
	case int:
		return n
	case int64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return def
}

// OptionalInt reports whether the argument was given.
func (a Args) OptionalInt(key string) (int, bool) {
	if _, ok := a[key]; !ok {
		return 0, false
	}
	const sentinel = math.MinInt
	v := a.Int(key, sentinel)
	return v, v != sentinel
}

// Float returns the named argument or def.
func (a Args) Float(key string, def float64) float64 {
	switch n := a[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return def
}

// Bool returns the named argument or def.
func (a Args) Bool(key string, def bool) bool {
	switch b := a[key].(type) {
	case bool:
		return b
	case string:
		if v, err := strconv.ParseBool(b); err == nil {
			return v
		}
	}
	return def
}
