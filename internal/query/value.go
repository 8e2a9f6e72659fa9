package query

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return "null"
	}
}

// Value is a result scalar: a number, a string (dates included) or null.
type Value struct {
	kind Kind
	num  float64
	str  string
}

func Null() Value {
	return Value{}
}

func Number(v float64) Value {
	return Value{kind: KindNumber, num: v}
}

func String(v string) Value {
	return Value{kind: KindString, str: v}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Float returns the numeric reading of v. Strings count when they parse as
// a finite decimal number.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		return parseNumber(v.str)
	default:
		return 0, false
	}
}

// IsNumeric reports whether Float would succeed.
func (v Value) IsNumeric() bool {
	_, ok := v.Float()
	return ok
}

// Text renders v as a chart label. Null renders as the empty string.
func (v Value) Text() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	default:
		return ""
	}
}

func (v Value) String() string {
	if v.kind == KindNull {
		return "NULL"
	}
	return v.Text()
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindString:
		return json.Marshal(v.str)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// FromAny converts a database/sql or decoded JSON scalar into a Value.
func FromAny(raw any) Value {
	switch typed := raw.(type) {
	case nil:
		return Null()
	case Value:
		return typed
	case string:
		return String(typed)
	case []byte:
		return String(string(typed))
	case bool:
		if typed {
			return Number(1)
		}
		return Number(0)
	case int:
		return Number(float64(typed))
	case int8:
		return Number(float64(typed))
	case int16:
		return Number(float64(typed))
	case int32:
		return Number(float64(typed))
	case int64:
		return Number(float64(typed))
	case uint:
		return Number(float64(typed))
	case uint8:
		return Number(float64(typed))
	case uint16:
		return Number(float64(typed))
	case uint32:
		return Number(float64(typed))
	case uint64:
		return Number(float64(typed))
	case float32:
		return finiteOrNull(float64(typed))
	case float64:
		return finiteOrNull(typed)
	case json.Number:
		if f, ok := parseNumber(typed.String()); ok {
			return Number(f)
		}
		return String(typed.String())
	case *big.Int:
		if typed == nil {
			return Null()
		}
		f, _ := new(big.Float).SetInt(typed).Float64()
		return finiteOrNull(f)
	case time.Time:
		return String(formatTime(typed))
	case fmt.Stringer:
		if f, ok := typed.(interface{ Float64() float64 }); ok {
			return finiteOrNull(f.Float64())
		}
		return String(typed.String())
	case interface{ Float64() float64 }:
		return finiteOrNull(typed.Float64())
	default:
		return String(fmt.Sprint(typed))
	}
}

func finiteOrNull(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Null()
	}
	return Number(f)
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339)
}

func parseNumber(raw string) (float64, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
