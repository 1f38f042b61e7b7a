// internal/utils/license_key.go
package utils

import (
	"crypto/rand"
	"regexp"
	"strings"
)

// LicenseKeyCharset is the key alphabet: uppercase letters and digits
// without I, O, 0 and 1.
const LicenseKeyCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	licenseKeyGroups    = 3
	licenseKeyGroupSize = 4
)

var licenseKeyPattern = regexp.MustCompile(
	`^[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{4}-[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{4}-[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{4}$`,
)

// GenerateLicenseKey returns a random XXXX-XXXX-XXXX key. Uniqueness is
// enforced by the licenses table, not here.
func GenerateLicenseKey() (string, error) {
	b := make([]byte, licenseKeyGroups*licenseKeyGroupSize)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.Grow(len(b) + licenseKeyGroups - 1)
	for i, v := range b {
		if i > 0 && i%licenseKeyGroupSize == 0 {
			sb.WriteByte('-')
		}
		// 256 is a multiple of 32, so the modulo is unbiased.
		sb.WriteByte(LicenseKeyCharset[int(v)%len(LicenseKeyCharset)])
	}
	return sb.String(), nil
}

// IsValidLicenseKey checks the exact display format. It is case-sensitive
// and does not trim.
func IsValidLicenseKey(key string) bool {
	return licenseKeyPattern.MatchString(key)
}
