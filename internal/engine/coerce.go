package engine

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/spf13/cast"
)

// Number is a leniently decoded JSON number. Numeric strings and booleans are
// accepted; anything else (null, objects, garbage) decodes as unset so the
// caller can fall back to a documented default.
type Number struct {
	Value float64
	Set   bool
}

// N returns a set Number.
func N(v float64) Number {
	return Number{Value: v, Set: true}
}

// Or returns the value, or def when unset.
func (n Number) Or(def float64) float64 {
	if !n.Set {
		return def
	}
	return n.Value
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Set {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// UnmarshalJSON never fails; malformed input leaves the Number unset.
func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}
	var v any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	if f, ok := toFloat(v); ok {
		*n = N(f)
	}
	return nil
}

// toFloat converts a decoded JSON value into a finite float64. Null, blank
// strings and anything cast cannot convert are rejected.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case json.Number:
		v = string(x)
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return 0, false
		}
		v = x
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toBool accepts booleans, numbers and the usual on/off spellings.
func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case nil:
		return false, false
	case bool:
		return x, true
	case string:
		switch s := strings.ToLower(strings.TrimSpace(x)); s {
		case "yes", "on":
			return true, true
		case "no", "off", "":
			return false, true
		default:
			if b, err := cast.ToBoolE(s); err == nil {
				return b, true
			}
		}
	}
	if f, ok := toFloat(v); ok {
		return f != 0, true
	}
	return false, false
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// normalizeHour truncates to an integer hour and clamps to 0-23.
func normalizeHour(h float64) int {
	return int(clamp(math.Trunc(h), 0, 23))
}
