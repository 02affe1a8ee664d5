package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-bench/constants"
)

// Kind tells which alternative a Value holds.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindString
	KindNumber
)

// Value is one field value of a Record: absent, a string, or a number.
// The zero Value is absent.
type Value struct {
	kind Kind
	str  string
	num  float64
}

// Absent returns the absent value.
func Absent() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric value. NaN and infinities are stored as absent.
func Number(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{kind: KindNumber, num: f}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

func (v Value) IsNumber() bool { return v.kind == KindNumber }

func (v Value) IsString() bool { return v.kind == KindString }

// IsBlank reports whether v carries no information: absent, empty or the literal "null".
func (v Value) IsBlank() bool {
	switch v.kind {
	case KindAbsent:
		return true
	case KindString:
		s := strings.TrimSpace(v.str)
		return s == "" || strings.EqualFold(s, "null")
	default:
		return false
	}
}

// Str returns the string alternative.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

// Num returns the numeric alternative.
func (v Value) Num() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// Text renders the value for comparison and CSV output. Absent renders as "".
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

func (v Value) GoString() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.str)
	case KindNumber:
		return v.Text()
	default:
		return "<absent>"
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ValueOf converts a decoded JSON scalar into a Value.
func ValueOf(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Absent(), nil
	case string:
		return String(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("number %q: %w", t.String(), err)
		}
		return Number(f), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", raw)
	}
}

// Record maps schema fields to values. A missing key reads as absent.
// Records handed between stages are treated as immutable; Clone before modifying.
type Record map[constants.Field]Value

// Get returns the value of f, absent when not set.
func (r Record) Get(f constants.Field) Value {
	return r[f]
}

// Clone returns an independent copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// MarshalJSON writes every schema field in column order; absent fields are null.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range constants.AllFields() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(string(f))
		buf.Write(k)
		buf.WriteByte(':')
		b, err := r.Get(f).MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	rec, _, err := RecordFromMap(m)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

// CanonicalKeys renames legacy keys (iban, ust-id, ...) to schema field names.
// An existing canonical key wins over its aliases; among several aliases of one
// field the first in sorted key order wins. Unknown keys are kept as-is.
func CanonicalKeys(m map[string]any) map[string]any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(m))
	for _, k := range keys {
		v := m[k]
		f, ok := constants.ParseField(k)
		if !ok {
			out[k] = v
			continue
		}
		if string(f) != k {
			if _, exists := m[string(f)]; exists {
				continue
			}
			if _, taken := out[string(f)]; taken {
				continue
			}
		}
		out[string(f)] = v
	}
	return out
}

// RecordFromMap builds a Record from a decoded JSON object. It returns the keys that
// are not schema fields.
func RecordFromMap(m map[string]any) (Record, []string, error) {
	rec := make(Record, len(m))
	var unknown []string
	for k, raw := range CanonicalKeys(m) {
		f, ok := constants.ParseField(k)
		if !ok {
			unknown = append(unknown, k)
			continue
		}
		v, err := ValueOf(raw)
		if err != nil {
			return nil, unknown, fmt.Errorf("field %s: %w", f, err)
		}
		rec[f] = v
	}
	sort.Strings(unknown)
	return rec, unknown, nil
}
