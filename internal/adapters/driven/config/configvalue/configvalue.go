// Package configvalue converts loosely typed config values into the types
// driven.ConfigStore getters return. TOML decodes integers as int64, in-memory
// callers store plain ints, and durations arrive as strings or seconds.
package configvalue

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// String returns v when it is a string.
func String(v any) string {
	s, _ := v.(string)
	return s
}

// Int accepts any integer kind and whole floats, since `top_k = 5.0` is a
// common typo.
func Int(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case int32:
		return int(n)
	case float64:
		if n == math.Trunc(n) {
			return int(n)
		}
	}
	return 0
}

// Float widens integers and float32.
func Float(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// Bool returns v when it is a bool.
func Bool(v any) bool {
	b, _ := v.(bool)
	return b
}

// Duration parses "15s"-style strings; bare integers are seconds.
func Duration(v any) time.Duration {
	switch d := v.(type) {
	case time.Duration:
		return d
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0
		}
		return parsed
	case int:
		return time.Duration(d) * time.Second
	case int64:
		return time.Duration(d) * time.Second
	}
	return 0
}

// ValidateKey rejects keys that cannot map onto a nested table path.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, ".") || strings.HasSuffix(key, ".") || strings.Contains(key, "..") {
		return fmt.Errorf("invalid config key %q", key)
	}
	return nil
}
