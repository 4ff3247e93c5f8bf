package cryptox

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// NumericCodeDigits is the standard length for out-of-band verification
// codes delivered by sms or email.
const NumericCodeDigits = 6

// BackupCodeGroups controls the "XXXX-XXXX-XXXX" shape of backup codes:
// three groups of four uppercase hex characters.
const (
	BackupCodeGroups    = 3
	BackupCodeGroupSize = 4
)

// GenerateNumericCode returns a zero-padded random decimal code of the
// given length, e.g. "042917". Uses crypto/rand so codes are not guessable
// from prior codes.
func GenerateNumericCode(digits int) (string, error) {
	if digits <= 0 {
		return "", fmt.Errorf("code length must be positive, got %d", digits)
	}

	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("failed to generate numeric code: %w", err)
	}

	return fmt.Sprintf("%0*d", digits, n), nil
}

// GenerateBackupCode returns a human-friendly recovery code in the form
// "A1B2-C3D4-E5F6". Only the SHA-256 fingerprint is ever stored.
func GenerateBackupCode() (string, error) {
	groups := make([]string, BackupCodeGroups)
	for i := range groups {
		buf := make([]byte, BackupCodeGroupSize/2)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate backup code: %w", err)
		}
		groups[i] = strings.ToUpper(hex.EncodeToString(buf))
	}
	return strings.Join(groups, "-"), nil
}

// NormalizeBackupCode canonicalises user input before fingerprinting so
// lowercase or unhyphenated entry still matches.
func NormalizeBackupCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, " ", "")
	if !strings.Contains(code, "-") && len(code) == BackupCodeGroups*BackupCodeGroupSize {
		parts := make([]string, BackupCodeGroups)
		for i := range parts {
			parts[i] = code[i*BackupCodeGroupSize : (i+1)*BackupCodeGroupSize]
		}
		code = strings.Join(parts, "-")
	}
	return code
}
