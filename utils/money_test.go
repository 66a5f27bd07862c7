package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in           string
		decimalComma bool
		expected     string
	}{
		{"1.234,56", false, "1234.56"},
		{"R$ -1.234,56", false, "-1234.56"},
		{"1234.56", false, "1234.56"},
		{"(150,00)", false, "-150"},
		{"1,234.56", false, "1234.56"},
		{"10,5", false, "10.5"},
		{"1.234", true, "1234"},
		{"1.234", false, "1.234"},
		{"1.234.567", false, "1234567"},
		{"+42", false, "42"},
		{"300-", false, "-300"},
	}
	for _, tc := range cases {
		d, err := ParseAmount(tc.in, tc.decimalComma)
		require.NoError(t, err, tc.in)
		assert.True(t, d.Equal(decimal.RequireFromString(tc.expected)), "ParseAmount(%q) = %s, want %s", tc.in, d, tc.expected)
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "R$"} {
		_, err := ParseAmount(in, false)
		assert.ErrorIs(t, err, ErrInvalidAmount, in)
	}
}

func TestFormatBRL(t *testing.T) {
	assert.Equal(t, "R$ 1.234,56", FormatBRL(decimal.RequireFromString("1234.56")))
	assert.Equal(t, "R$ 1.234.567,80", FormatBRL(decimal.RequireFromString("1234567.8")))
	assert.Equal(t, "R$ 100,00", FormatBRL(decimal.NewFromInt(100)))
	assert.Equal(t, "R$ 0,00", FormatBRL(decimal.Zero))
	assert.Equal(t, "-R$ 0,50", FormatBRL(decimal.RequireFromString("-0.5")))
}

func TestPercent(t *testing.T) {
	assert.True(t, Percent(decimal.NewFromInt(25), decimal.NewFromInt(200)).Equal(decimal.RequireFromString("12.5")))
	assert.True(t, Percent(decimal.NewFromInt(1), decimal.NewFromInt(3)).Equal(decimal.RequireFromString("33.33")))
	assert.True(t, Percent(decimal.NewFromInt(10), decimal.Zero).IsZero())
}
