package cryptox_test

import (
	"regexp"
	"testing"

	"github.com/spendlyzer/auth/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestGenerateNumericCode(t *testing.T) {
	t.Parallel()

	code, err := cryptox.GenerateNumericCode(cryptox.NumericCodeDigits)
	require.NoError(t, err)
	require.Len(t, code, 6)
	require.Regexp(t, regexp.MustCompile(`^[0-9]{6}$`), code)
}

func TestGenerateNumericCode_RejectsBadLength(t *testing.T) {
	t.Parallel()

	_, err := cryptox.GenerateNumericCode(0)
	require.Error(t, err)

	_, err = cryptox.GenerateNumericCode(-3)
	require.Error(t, err)
}

func TestGenerateNumericCode_KeepsLeadingZeros(t *testing.T) {
	t.Parallel()

	// With 200 draws of a 6-digit code the odds of never seeing a code
	// shorter than 6 chars are what we are asserting: padding always
	// keeps the length fixed.
	for i := 0; i < 200; i++ {
		code, err := cryptox.GenerateNumericCode(6)
		require.NoError(t, err)
		require.Len(t, code, 6)
	}
}

func TestGenerateBackupCode(t *testing.T) {
	t.Parallel()

	code, err := cryptox.GenerateBackupCode()
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}$`), code)
}

func TestGenerateBackupCode_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := cryptox.GenerateBackupCode()
		require.NoError(t, err)
		require.False(t, seen[code], "duplicate backup code generated")
		seen[code] = true
	}
}

func TestNormalizeBackupCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"A1B2-C3D4-E5F6", "A1B2-C3D4-E5F6"},
		{"a1b2-c3d4-e5f6", "A1B2-C3D4-E5F6"},
		{"a1b2c3d4e5f6", "A1B2-C3D4-E5F6"},
		{"  A1B2-C3D4-E5F6  ", "A1B2-C3D4-E5F6"},
		{"short", "SHORT"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, cryptox.NormalizeBackupCode(tt.in))
	}
}
