package parsers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

// String keeps the query value as is.
var String = New(
	func(s string) (string, error) { return s, nil },
	func(v string) string { return v },
)

// Int parses base-10 integers.
var Int = New(strconv.Atoi, strconv.Itoa)

// Int64 parses base-10 64-bit integers.
var Int64 = New(
	func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) },
	func(v int64) string { return strconv.FormatInt(v, 10) },
)

// Float parses floating point numbers and serializes them in their shortest
// form, so 42.0 becomes "42".
var Float = New(
	func(s string) (float64, error) { return strconv.ParseFloat(s, 64) },
	func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) },
)

// Bool parses "true"/"false" (and the other forms strconv.ParseBool accepts).
var Bool = New(strconv.ParseBool, strconv.FormatBool)

// Time parses RFC 3339 timestamps.
var Time = New(
	func(s string) (time.Time, error) { return time.Parse(time.RFC3339, s) },
	func(v time.Time) string { return v.Format(time.RFC3339) },
).WithEqual(func(a, b time.Time) bool { return a.Equal(b) })

// Timestamp parses Unix milliseconds.
var Timestamp = New(
	func(s string) (time.Time, error) {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(ms), nil
	},
	func(v time.Time) string { return strconv.FormatInt(v.UnixMilli(), 10) },
).WithEqual(func(a, b time.Time) bool { return a.Equal(b) })

// Duration parses Go duration strings such as "1m30s".
var Duration = New(time.ParseDuration, time.Duration.String)

// StringEnum accepts only the listed values.
func StringEnum(values ...string) Parser[string] {
	allowed := slices.Clone(values)
	return New(
		func(s string) (string, error) {
			if !slices.Contains(allowed, s) {
				return "", fmt.Errorf("parsers: %q is not one of %v", s, allowed)
			}
			return s, nil
		},
		func(v string) string { return v },
	)
}

// JSON encodes T as base64url (unpadded) JSON, which keeps the query value
// free of characters that need escaping.
func JSON[T any]() Parser[T] {
	return New(
		func(s string) (T, error) {
			var v T
			data, err := base64.RawURLEncoding.DecodeString(s)
			if err != nil {
				return v, err
			}
			if err := json.Unmarshal(data, &v); err != nil {
				return v, err
			}
			return v, nil
		},
		func(v T) string {
			data, err := json.Marshal(v)
			if err != nil {
				return ""
			}
			return base64.RawURLEncoding.EncodeToString(data)
		},
	)
}

// ArrayOf encodes a slice as item values joined by sep. Occurrences of sep
// inside an item are percent-encoded.
func ArrayOf[T any](item Parser[T], sep string) Parser[[]T] {
	if sep == "" {
		sep = ","
	}
	escaped := url.QueryEscape(sep)
	if escaped == sep {
		escaped = fmt.Sprintf("%%%02X", sep[0]) + sep[1:]
	}

	p := New(
		func(s string) ([]T, error) {
			if s == "" {
				return []T{}, nil
			}
			parts := strings.Split(s, sep)
			out := make([]T, 0, len(parts))
			for _, part := range parts {
				v, err := item.Parse(strings.ReplaceAll(part, escaped, sep))
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
			return out, nil
		},
		func(vs []T) string {
			parts := make([]string, len(vs))
			for i, v := range vs {
				parts[i] = strings.ReplaceAll(item.Serialize(v), sep, escaped)
			}
			return strings.Join(parts, sep)
		},
	)
	return p.WithEqual(func(a, b []T) bool {
		return slices.EqualFunc(a, b, item.Equal)
	})
}
