package shared

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"100", "100", true},
		{"100.5", "100.5", true},
		{"0.01", "0.01", true},
		{"12345.67", "12345.67", true},
		{"100.555", "", false},
		{"0", "", false},
		{"-5", "", false},
		{"abc", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.raw)
		if !tc.ok {
			require.ErrorIs(t, err, ErrValidation, "raw %q", tc.raw)
			continue
		}
		require.NoError(t, err, "raw %q", tc.raw)
		require.True(t, got.Equal(decimal.RequireFromString(tc.want)), "raw %q parsed to %s", tc.raw, got)
	}
}

func TestCheckAmountRejectsSubCent(t *testing.T) {
	_, err := CheckAmount(decimal.RequireFromString("9.999"))
	require.ErrorIs(t, err, ErrValidation)

	got, err := CheckAmount(decimal.RequireFromString("9.99"))
	require.NoError(t, err)
	require.Equal(t, "9.99", got.StringFixed(2))
}

func TestCheckAmountRejectsNonPositive(t *testing.T) {
	for _, raw := range []string{"0", "0.00", "-1", "-0.01"} {
		_, err := CheckAmount(decimal.RequireFromString(raw))
		require.ErrorIs(t, err, ErrValidation, "amount %q", raw)
		require.True(t, errors.Is(err, ErrValidation))
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"0", "0.00"},
		{"5", "5.00"},
		{"100.5", "100.50"},
		{"1234.56", "1,234.56"},
		{"12345.67", "12,345.67"},
		{"1000000", "1,000,000.00"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, FormatAmount(decimal.RequireFromString(tc.raw)), "amount %s", tc.raw)
	}
}
