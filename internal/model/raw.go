package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RawRecord is an untyped listing record as returned by a source adapter.
// Field names and presence vary by source.
type RawRecord map[string]any

// String returns the first non-blank string value among keys.
func (r RawRecord) String(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case fmt.Stringer:
			s = t.String()
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case int:
			s = strconv.Itoa(t)
		case int64:
			s = strconv.FormatInt(t, 10)
		case json.Number:
			s = t.String()
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// Float returns the first positive numeric value among keys. Strings such
// as "$245,000" are parsed. Zero and negative values count as missing.
func (r RawRecord) Float(keys ...string) float64 {
	for _, k := range keys {
		if f, ok := toFloat(r[k]); ok && f > 0 {
			return f
		}
	}
	return 0
}

// Signed returns the first non-zero numeric value among keys. Use it for
// coordinates, where negative values are meaningful.
func (r RawRecord) Signed(keys ...string) float64 {
	for _, k := range keys {
		if f, ok := toFloat(r[k]); ok && f != 0 {
			return f
		}
	}
	return 0
}

// Int returns the first positive integer value among keys.
func (r RawRecord) Int(keys ...string) int {
	return int(r.Float(keys...))
}

// Has reports whether any key carries a non-nil value.
func (r RawRecord) Has(keys ...string) bool {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(t)
		s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
