package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/carlmjohnson/be"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"$1,234.50", 123450, true},
		{"1", 100, true},
		{"1.23", 123, true},
		{"0", 0, true},
		{"0.01", 1, true},
		{"12.345", 1235, true}, // half-up rounding
		{"12.344", 1234, true},
		{" 2.50 ", 250, true},
		{"-40", -4000, true},
		{"(12.50)", -1250, true},
		{"$ -7.5", -750, true},
		{"+3", 300, true},
		{"€1 000", 100000, true},
		{".5", 50, true},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"$", 0, false},
		{"99999999999999999999", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%q expected ErrInvalidAmount, got %d (err=%v)", tc.in, got, err)
		}
	}
}

func TestMoneyString(t *testing.T) {
	be.Equal(t, "1234.50", Money{Cents: 123450}.String())
	be.Equal(t, "-0.05", Money{Cents: -5}.String())
	be.Equal(t, "0.00", Money{}.String())

	b, err := json.Marshal(struct {
		A Money `json:"a"`
	}{Money{Cents: -1250}})
	be.NilErr(t, err)
	be.Equal(t, `{"a":-12.50}`, string(b))
}

func TestNormalizeType(t *testing.T) {
	be.Equal(t, Actual, NormalizeType(" actual "))
	be.Equal(t, Actual, NormalizeType("Spent"))
	be.Equal(t, Expected, NormalizeType("Budget"))
	be.Equal(t, Expected, NormalizeType("planned"))
	be.Equal(t, TxType("Forecast"), NormalizeType(" Forecast"))
}

func TestMissingColumnsError(t *testing.T) {
	err := error(&MissingColumnsError{Source: "transactions", Fields: []Field{FieldDate, FieldAmount}})
	be.True(t, errors.Is(err, ErrMissingColumns))
	be.False(t, errors.Is(err, ErrSourceUnavailable))

	var se error = &SourceError{Source: "mapping", Err: errors.New("timeout")}
	be.True(t, errors.Is(se, ErrSourceUnavailable))
}
