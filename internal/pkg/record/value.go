package record

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind identifies which member of the Value union is set.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindMap
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindMap:
		return "map"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Value is a single field value of a table row.
// The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	m    Record
	a    []Value
}

// Record is one table row: field name to value.
type Record map[string]Value

func Null() Value             { return Value{} }
func Bool(b bool) Value       { return Value{kind: KindBool, b: b} }
func Number(n float64) Value  { return Value{kind: KindNumber, n: n} }
func String(s string) Value   { return Value{kind: KindString, s: s} }
func Map(m Record) Value      { return Value{kind: KindMap, m: m} }
func Array(a []Value) Value   { return Value{kind: KindArray, a: a} }
func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsNull() bool  { return v.kind == KindNull }

func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) Number() (float64, bool) {
	return v.n, v.kind == KindNumber
}

func (v Value) Str() (string, bool) {
	return v.s, v.kind == KindString
}

func (v Value) Map() (Record, bool) {
	return v.m, v.kind == KindMap
}

func (v Value) Array() ([]Value, bool) {
	return v.a, v.kind == KindArray
}

// Text renders scalars as plain text. Integral numbers are printed without
// a fraction; maps and arrays are rendered as JSON.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return FormatNumber(v.n)
	case KindString:
		return v.s
	default:
		data, err := json.Marshal(v.Any())
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// FormatNumber prints n the shortest way, without exponent for integers.
func FormatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// Any converts the value back to plain Go types:
// nil, bool, float64, string, map[string]any, []any.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindMap:
		return v.m.Any()
	case KindArray:
		out := make([]any, 0, len(v.a))
		for _, item := range v.a {
			out = append(out, item.Any())
		}
		return out
	default:
		return nil
	}
}

// Equal reports deep equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindString:
		return v.s == o.s
	case KindMap:
		return v.m.Equal(o.m)
	case KindArray:
		if len(v.a) != len(o.a) {
			return false
		}
		for i := range v.a {
			if !v.a[i].Equal(o.a[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) String() string {
	if v.kind == KindString {
		return strconv.Quote(v.s)
	}
	if v.kind == KindNull {
		return "null"
	}
	return v.Text()
}

// FromAny converts a decoded Go value (JSON, BSON or spreadsheet) into a Value.
// Unknown types are rendered with fmt.
func FromAny(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return Null()
	case Value:
		return v
	case Record:
		return Map(v)
	case bool:
		return Bool(v)
	case string:
		return String(v)
	case []byte:
		return String(string(v))
	case int:
		return Number(float64(v))
	case int8:
		return Number(float64(v))
	case int16:
		return Number(float64(v))
	case int32:
		return Number(float64(v))
	case int64:
		return Number(float64(v))
	case uint:
		return Number(float64(v))
	case uint8:
		return Number(float64(v))
	case uint16:
		return Number(float64(v))
	case uint32:
		return Number(float64(v))
	case uint64:
		return Number(float64(v))
	case float32:
		return Number(float64(v))
	case float64:
		return Number(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return Number(f)
		}
		return String(v.String())
	case time.Time:
		return String(v.UTC().Format(time.RFC3339Nano))
	case primitive.Null, primitive.Undefined:
		return Null()
	case primitive.ObjectID:
		return String(v.Hex())
	case primitive.DateTime:
		return String(v.Time().UTC().Format(time.RFC3339Nano))
	case primitive.Timestamp:
		return String(time.Unix(int64(v.T), 0).UTC().Format(time.RFC3339Nano))
	case primitive.Decimal128:
		return String(v.String())
	case primitive.Regex:
		return String(v.Pattern)
	case primitive.JavaScript:
		return String(string(v))
	case primitive.Symbol:
		return String(string(v))
	case primitive.Binary:
		return String(string(v.Data))
	case bson.D:
		out := make(Record, len(v))
		for _, e := range v {
			out[e.Key] = FromAny(e.Value)
		}
		return Map(out)
	case bson.M:
		return Map(FromMap(v))
	case map[string]any:
		return Map(FromMap(v))
	case bson.A:
		return Array(fromSlice(v))
	case []any:
		return Array(fromSlice(v))
	case []string:
		out := make([]Value, 0, len(v))
		for _, s := range v {
			out = append(out, String(s))
		}
		return Array(out)
	default:
		return String(fmt.Sprint(v))
	}
}

func fromSlice(items []any) []Value {
	out := make([]Value, 0, len(items))
	for _, item := range items {
		out = append(out, FromAny(item))
	}
	return out
}

// FromMap converts a plain map into a Record.
func FromMap(m map[string]any) Record {
	out := make(Record, len(m))
	for key, item := range m {
		out[key] = FromAny(item)
	}
	return out
}

// Any converts the record to a plain map.
func (r Record) Any() map[string]any {
	out := make(map[string]any, len(r))
	for key, v := range r {
		out[key] = v.Any()
	}
	return out
}

// Keys returns the field names in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for key := range r {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for key, v := range r {
		out[key] = v
	}
	return out
}

// Equal reports whether both records hold the same fields and values.
func (r Record) Equal(o Record) bool {
	if len(r) != len(o) {
		return false
	}
	for key, v := range r {
		ov, ok := o[key]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Any())
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = FromMap(raw)
	return nil
}

// ParseJSON decodes a JSON object into a Record.
func ParseJSON(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if r == nil {
		r = Record{}
	}
	return r, nil
}
