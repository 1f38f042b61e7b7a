// internal/models/license.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type License struct {
	BaseModel
	LicenseKey string    `json:"license_key" gorm:"size:14;not null;uniqueIndex"`
	ProductID  uuid.UUID `json:"product_id" gorm:"type:uuid;not null;index"`
	OwnerEmail string    `json:"owner_email" gorm:"size:255;not null;index"`
	UserID     *string   `json:"user_id" gorm:"size:64;index"`
	AppSlug    string    `json:"app_slug" gorm:"size:100;not null;index"`
	MaxDevices int       `json:"max_devices" gorm:"not null"`
	StartsAt   time.Time `json:"starts_at" gorm:"not null"`
	ExpiresAt  time.Time `json:"expires_at" gorm:"not null"`
	IsRevoked  bool      `json:"is_revoked" gorm:"not null;default:false"`

	// Relationships
	Product           Product            `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	DeviceActivations []DeviceActivation `json:"device_activations,omitempty" gorm:"foreignKey:LicenseID"`
}

type DeviceActivation struct {
	BaseModel
	LicenseID     uuid.UUID  `json:"license_id" gorm:"type:uuid;not null;uniqueIndex:idx_device_activations_license_device,priority:1"`
	DeviceID      string     `json:"device_id" gorm:"size:255;not null;uniqueIndex:idx_device_activations_license_device,priority:2;index"`
	ActivatedAt   time.Time  `json:"activated_at" gorm:"not null"`
	IsActive      bool       `json:"is_active" gorm:"not null;index"`
	DeactivatedAt *time.Time `json:"deactivated_at"`

	// Relationships
	License License `json:"license,omitempty" gorm:"foreignKey:LicenseID"`
}
