// Package sanitize removes credential material from parameter payloads
// before they are persisted or displayed. Sanitize is pure and idempotent;
// the audit log refuses any record whose payload does not reach a
// sanitization fixed point.
package sanitize

import (
	"fmt"
	"reflect"
	"strings"
)

// Marker replaces any value stored under a denylisted key.
const Marker = "[REDACTED]"

// maskThreshold is the minimum length at which an opaque token-shaped
// string is masked even under an innocuous key name.
const maskThreshold = 30

// denylist entries are matched as case-insensitive substrings of key names.
var denylist = []string{
	"password",
	"passwd",
	"token",
	"secret",
	"api_key",
	"apikey",
	"credential",
	"auth",
	"bearer",
	"authorization",
	"private_key",
	"access_key",
	"session",
	"cookie",
}

// SensitiveKey reports whether a key name matches the denylist.
func SensitiveKey(key string) bool {
	normalized := strings.ToLower(key)
	for _, entry := range denylist {
		if strings.Contains(normalized, entry) {
			return true
		}
	}
	return false
}

// Sanitize returns a deep copy of the payload with denylisted keys redacted
// and token-shaped string values masked. The input is never mutated.
func Sanitize(payload map[string]interface{}) map[string]interface{} {
	if payload == nil {
		return nil
	}
	out := make(map[string]interface{}, len(payload))
	for key, value := range payload {
		if SensitiveKey(key) {
			out[key] = Marker
			continue
		}
		out[key] = Value(value)
	}
	return out
}

// Value sanitizes a single value of any shape, recursing into nested maps
// and sequences.
func Value(value interface{}) interface{} {
	switch actual := value.(type) {
	case string:
		return maskToken(actual)
	case map[string]interface{}:
		return Sanitize(actual)
	case map[string]string:
		out := make(map[string]interface{}, len(actual))
		for k, v := range actual {
			if SensitiveKey(k) {
				out[k] = Marker
				continue
			}
			out[k] = maskToken(v)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(actual))
		for i, v := range actual {
			out[i] = Value(v)
		}
		return out
	case []string:
		out := make([]interface{}, len(actual))
		for i, v := range actual {
			out[i] = maskToken(v)
		}
		return out
	default:
		return value
	}
}

// Verified reports whether the payload is a sanitization fixed point, i.e.
// sanitizing it again changes nothing. Appends are rejected otherwise.
func Verified(payload map[string]interface{}) bool {
	return equal(payload, Sanitize(payload))
}

// maskToken masks long opaque strings composed solely of token alphabet
// characters to first4...last4. Masked output contains dots and therefore
// never re-matches, which keeps the transform idempotent.
func maskToken(value string) string {
	if len(value) <= maskThreshold {
		return value
	}
	for i := 0; i < len(value); i++ {
		if !isTokenByte(value[i]) {
			return value
		}
	}
	return fmt.Sprintf("%s...%s", value[:4], value[len(value)-4:])
}

func isTokenByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '+', c == '/', c == '=', c == '_', c == '-':
		return true
	}
	return false
}

func equal(a, b interface{}) bool {
	switch actual := a.(type) {
	case map[string]interface{}:
		other, ok := b.(map[string]interface{})
		if !ok || len(actual) != len(other) {
			return false
		}
		for k, v := range actual {
			if !equal(v, other[k]) {
				return false
			}
		}
		return true
	case []interface{}:
		other, ok := b.([]interface{})
		if !ok || len(actual) != len(other) {
			return false
		}
		for i := range actual {
			if !equal(actual[i], other[i]) {
				return false
			}
		}
		return true
	case nil:
		return b == nil
	default:
		// parameters are opaque and may carry dynamic types that == cannot
		// compare, e.g. []byte or map[string]int
		return reflect.DeepEqual(a, b)
	}
}
