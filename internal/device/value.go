package device

import (
	"encoding/json"
	"time"
)

// ValueKind discriminates the variants a diagnostic Value can hold.
type ValueKind int

const (
	KindFloat ValueKind = iota
	KindInt
	KindString
	KindBool
	KindTime
)

// Value is the variant stored in a device's diagnostic map. Keeping the
// store semi-typed avoids the unchecked casts an interface{} map invites.
type Value struct {
	kind ValueKind
	num  float64
	i    int64
	str  string
	b    bool
	t    time.Time
}

func Float(v float64) Value  { return Value{kind: KindFloat, num: v} }
func Int(v int64) Value      { return Value{kind: KindInt, i: v} }
func Str(v string) Value     { return Value{kind: KindString, str: v} }
func Bool(v bool) Value      { return Value{kind: KindBool, b: v} }
func Time(v time.Time) Value { return Value{kind: KindTime, t: v} }

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) Float() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.num
}

func (v Value) Int() int64 {
	if v.kind == KindFloat {
		return int64(v.num)
	}
	return v.i
}

func (v Value) String() string  { return v.str }
func (v Value) Bool() bool      { return v.b }
func (v Value) Time() time.Time { return v.t }

// Any unwraps the variant for sinks that need a plain interface value, such
// as InfluxDB point fields or JSON responses.
func (v Value) Any() interface{} {
	switch v.kind {
	case KindFloat:
		return v.num
	case KindInt:
		return v.i
	case KindString:
		return v.str
	case KindBool:
		return v.b
	case KindTime:
		return v.t
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}
