package core

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// ArraySeparator joins the elements of array-valued properties.
const ArraySeparator = "; "

// ValueOf converts an adapter-native property value into a Value.
//
// nil becomes Null, booleans become Boolean, Go integer and float kinds
// become Number, and strings and []byte become String. time.Time renders as
// RFC 3339. Slices and arrays render their elements joined with
// ArraySeparator. Anything else renders with its String method or fmt.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case bool:
		return Bool(x)
	case string:
		return String(x)
	case []byte:
		return String(string(x))
	case int:
		return Int(int64(x))
	case int8:
		return Int(int64(x))
	case int16:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case uint:
		return Uint(uint64(x))
	case uint8:
		return Uint(uint64(x))
	case uint16:
		return Uint(uint64(x))
	case uint32:
		return Uint(uint64(x))
	case uint64:
		return Uint(x)
	case float32:
		return float32Value(x)
	case float64:
		return Float(x)
	case json.Number:
		return Value{kind: KindNumber, text: x.String()}
	case time.Time:
		return String(x.Format(time.RFC3339))
	case fmt.Stringer:
		return String(x.String())
	case error:
		return String(x.Error())
	}
	return reflectValue(reflect.ValueOf(v))
}

func float32Value(f float32) Value {
	f64 := float64(f)
	if math.IsNaN(f64) || math.IsInf(f64, 0) {
		return Float(f64)
	}
	return Value{kind: KindNumber, text: strconv.FormatFloat(f64, 'g', -1, 32)}
}

// reflectValue handles named types, pointers and sequences.
func reflectValue(rv reflect.Value) Value {
	switch rv.Kind() {
	case reflect.Invalid:
		return Null()
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null()
		}
		return ValueOf(rv.Elem().Interface())
	case reflect.Bool:
		return Bool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Uint(rv.Uint())
	case reflect.Float32:
		return float32Value(float32(rv.Float()))
	case reflect.Float64:
		return Float(rv.Float())
	case reflect.String:
		return String(rv.String())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Null()
		}
		parts := make([]string, rv.Len())
		for i := range parts {
			elem := ValueOf(rv.Index(i).Interface())
			if !elem.IsNull() {
				parts[i] = elem.String()
			}
		}
		return String(strings.Join(parts, ArraySeparator))
	}
	return String(fmt.Sprint(rv.Interface()))
}
