package accounts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateNumberShape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		n, err := GenerateNumber()
		require.NoError(t, err)
		require.Len(t, n, 12)
		require.True(t, strings.HasPrefix(n, "ACC"))
		require.True(t, ValidNumber(n), "generated %q", n)
		seen[n] = true
	}
	require.Greater(t, len(seen), 1, "generator must not be constant")
}

func TestValidNumber(t *testing.T) {
	cases := []struct {
		number string
		ok     bool
	}{
		{"ACC123456789", true},
		{"ACC000000000", true},
		{"ACC12345678", false},
		{"ACC1234567890", false},
		{"ACB123456789", false},
		{"acc123456789", false},
		{"ACC12345678a", false},
		{"", false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.ok, ValidNumber(tc.number), "number %q", tc.number)
	}
}
