package core

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Kinds(t *testing.T) {
	tests := []struct {
		name     string
		value    Value
		wantKind ValueKind
		wantStr  string
		wantJSON string
	}{
		{name: "zero value is null", value: Value{}, wantKind: KindNull, wantStr: "NULL", wantJSON: "null"},
		{name: "null", value: Null(), wantKind: KindNull, wantStr: "NULL", wantJSON: "null"},
		{name: "string", value: String("Intel64"), wantKind: KindString, wantStr: "Intel64", wantJSON: `"Intel64"`},
		{name: "empty string", value: String(""), wantKind: KindString, wantStr: "", wantJSON: `""`},
		{name: "bool true", value: Bool(true), wantKind: KindBoolean, wantStr: "true", wantJSON: "true"},
		{name: "negative int", value: Int(-42), wantKind: KindNumber, wantStr: "-42", wantJSON: "-42"},
		{name: "max uint64 stays exact", value: Uint(math.MaxUint64), wantKind: KindNumber, wantStr: "18446744073709551615", wantJSON: "18446744073709551615"},
		{name: "float", value: Float(2.5), wantKind: KindNumber, wantStr: "2.5", wantJSON: "2.5"},
		{name: "NaN degrades to string", value: Float(math.NaN()), wantKind: KindString, wantStr: "NaN", wantJSON: `"NaN"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantKind, tt.value.Kind())
			assert.Equal(t, tt.wantStr, tt.value.String())

			data, err := json.Marshal(tt.value)
			require.NoError(t, err)
			assert.JSONEq(t, tt.wantJSON, string(data))
		})
	}
}

func TestValue_Accessors(t *testing.T) {
	i, ok := Int(7).Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(7), i)

	_, ok = Float(1.5).Int64()
	assert.False(t, ok, "non-integer number should not convert to int64")

	f, ok := Float(1.5).Float64()
	assert.True(t, ok)
	assert.InDelta(t, 1.5, f, 0)

	s, ok := String("x").Str()
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	_, ok = Int(1).Str()
	assert.False(t, ok)

	b, ok := Bool(false).Boolean()
	assert.True(t, ok)
	assert.False(t, b)

	assert.Equal(t, uint64(math.MaxUint64), Uint(math.MaxUint64).Any())
	assert.Equal(t, int64(3), Int(3).Any())
	assert.Nil(t, Null().Any())
}

func TestValue_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input   string
		want    Value
		wantErr bool
	}{
		{input: `null`, want: Null()},
		{input: `"abc"`, want: String("abc")},
		{input: `true`, want: Bool(true)},
		{input: `12`, want: Int(12)},
		{input: `[1]`, wantErr: true},
		{input: `{"a":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var v Value
			err := json.Unmarshal([]byte(tt.input), &v)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(v), "got %v, want %v", v, tt.want)
		})
	}
}
