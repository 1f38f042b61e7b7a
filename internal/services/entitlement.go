// internal/services/entitlement.go
package services

import (
	"time"

	"github.com/tarksober/license-backend/internal/models"
	"github.com/tarksober/license-backend/internal/utils"
)

// ActivationResult is what a client learns when it asks to bind a device.
type ActivationResult struct {
	Status         models.ActivationStatus `json:"status"`
	ExpiresAt      *time.Time              `json:"expires_at,omitempty"`
	OwnerEmailHint string                  `json:"owner_email_hint,omitempty"`
	ManageURL      string                  `json:"manage_url,omitempty"`
}

// PremiumStatus reports whether a device currently holds a usable license.
type PremiumStatus struct {
	IsPremium bool       `json:"is_premium"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// CheckLicenseValidity reports whether license is usable at now: present,
// not revoked and not yet expired.
func CheckLicenseValidity(license *models.License, now time.Time) bool {
	if license == nil {
		return false
	}
	if license.IsRevoked {
		return false
	}
	return now.Before(license.ExpiresAt)
}

// DetermineActivationResult decides whether a device may bind to license.
// A device that already holds an active binding is never rejected by the
// cap, since its own row is part of activeDeviceCount.
func DetermineActivationResult(license *models.License, activeDeviceCount int64, deviceAlreadyActive bool, manageURL string) ActivationResult {
	if deviceAlreadyActive {
		return activeResult(license)
	}

	if activeDeviceCount >= int64(license.MaxDevices) {
		return ActivationResult{
			Status:         models.ActivationStatusDeviceLimitReached,
			OwnerEmailHint: utils.MaskEmail(license.OwnerEmail),
			ManageURL:      manageURL,
		}
	}

	return activeResult(license)
}

// IsPremiumActive returns the first activation that is active and whose
// license is valid at now.
func IsPremiumActive(activations []models.DeviceActivation, now time.Time) PremiumStatus {
	for i := range activations {
		act := &activations[i]
		if act.IsActive && CheckLicenseValidity(&act.License, now) {
			expiresAt := act.License.ExpiresAt
			return PremiumStatus{IsPremium: true, ExpiresAt: &expiresAt}
		}
	}
	return PremiumStatus{IsPremium: false}
}

func activeResult(license *models.License) ActivationResult {
	expiresAt := license.ExpiresAt
	return ActivationResult{
		Status:    models.ActivationStatusActive,
		ExpiresAt: &expiresAt,
	}
}

func invalidResult() ActivationResult {
	return ActivationResult{Status: models.ActivationStatusInvalid}
}
