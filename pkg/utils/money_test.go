package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain integer", raw: "119000", want: "119000"},
		{name: "dot decimal", raw: "1500.50", want: "1500.5"},
		{name: "comma decimal", raw: "1500,50", want: "1500.5"},
		{name: "chilean thousands", raw: "119.000", want: "119000"},
		{name: "chilean thousands with decimals", raw: "1.234.567,89", want: "1234567.89"},
		{name: "us thousands with decimals", raw: "1,234,567.89", want: "1234567.89"},
		{name: "comma thousands", raw: "1,234,567", want: "1234567"},
		{name: "currency symbol", raw: "$ 59.500", want: "59500"},
		{name: "currency code", raw: "CLP 9.500", want: "9500"},
		{name: "negative", raw: "-9.500", want: "-9500"},
		{name: "negative after symbol", raw: "$-1.000", want: "-1000"},
		{name: "parenthesised negative", raw: "(1.000)", want: "-1000"},
		{name: "small dot decimal is not thousands", raw: "0.190", want: "0.19"},
		{name: "surrounding spaces", raw: "  42  ", want: "42"},
		{name: "empty", raw: "", want: "0"},
		{name: "nan", raw: "NaN", want: "0"},
		{name: "null", raw: "null", want: "0"},
		{name: "garbage", raw: "abc", want: "0"},
		{name: "ambiguous commas", raw: "1,2,3", want: "0"},
		{name: "exponent", raw: "1e5", want: "0"},
		{name: "upper case exponent", raw: "1E5", want: "0"},
		{name: "huge exponent", raw: "1e9999999", want: "0"},
		{name: "negative exponent", raw: "-2.5e-3", want: "0"},
		{name: "leading decimal mark", raw: ",5", want: "0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAmount(tt.raw)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"ParseAmount(%q) = %s, want %s", tt.raw, got, tt.want)
		})
	}
}

func TestParseTypeCode(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"33", 33},
		{" 61 ", 61},
		{"61.0", 61},
		{"61,0", 61},
		{"", 0},
		{"factura", 0},
		{"NaN", 0},
		{"61.9", 0},
		{"33,5", 0},
		{"1e300", 0},
		{"99999999999", 0},
		{"-99999999999", 0},
		{"3.3e1", 33},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTypeCode(tt.raw))
		})
	}
}

func TestFormatCLP(t *testing.T) {
	tests := []struct {
		name   string
		amount decimal.Decimal
		want   string
	}{
		{"zero", decimal.Zero, "$0"},
		{"small", decimal.RequireFromString("999.5"), "$999.50"},
		{"thousands", decimal.NewFromInt(119000), "$119,000"},
		{"negative thousands", decimal.NewFromInt(-59500), "-$59,500"},
		{"millions", decimal.NewFromInt(1_500_000), "$1.50 M"},
		{"billions", decimal.NewFromInt(2_345_000_000), "$2.35 MM"},
		{"thousand millions grouped", decimal.NewFromInt(1_234_000_000_000), "$1,234.00 MM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCLP(tt.amount))
		})
	}
}
