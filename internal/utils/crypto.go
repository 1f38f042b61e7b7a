// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

const purchaseTokenBytes = 32

// GeneratePurchaseToken returns 64 hex characters from crypto/rand.
func GeneratePurchaseToken() (string, error) {
	b := make([]byte, purchaseTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateReference builds the short merchant reference sent to the gateway,
// e.g. "TS-m2k9x1c4".
func GenerateReference(prefix string, now time.Time) string {
	return prefix + "-" + strconv.FormatInt(now.UnixMilli(), 36)
}
