// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns the primary key client-side so rows created on any
// dialect carry a UUID.
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// RawJSON keeps a JSON document byte for byte. It maps to jsonb on
// PostgreSQL and to text elsewhere.
type RawJSON json.RawMessage

func (r RawJSON) Value() (driver.Value, error) {
	if len(r) == 0 {
		return nil, nil
	}
	if !json.Valid(r) {
		return nil, fmt.Errorf("invalid json document")
	}
	return string(r), nil
}

func (r *RawJSON) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*r = nil
	case []byte:
		*r = append((*r)[:0], v...)
	case string:
		*r = RawJSON(v)
	default:
		return fmt.Errorf("unsupported json source %T", value)
	}
	return nil
}

func (r RawJSON) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

func (r *RawJSON) UnmarshalJSON(data []byte) error {
	*r = append((*r)[:0], data...)
	return nil
}

// PurchaseStatus mirrors the gateway transaction status verbatim.
type PurchaseStatus string

const (
	PurchaseStatusCreated      PurchaseStatus = "CREATED"
	PurchaseStatusPending      PurchaseStatus = "PENDING"
	PurchaseStatusApproved     PurchaseStatus = "APPROVED"
	PurchaseStatusCompleted    PurchaseStatus = "COMPLETED"
	PurchaseStatusCancelled    PurchaseStatus = "CANCELLED"
	PurchaseStatusExpired      PurchaseStatus = "EXPIRED"
	PurchaseStatusPartRefunded PurchaseStatus = "PART_REFUNDED"
	PurchaseStatusRefunded     PurchaseStatus = "REFUNDED"
)

// ActivationStatus is the outcome reported to a client asking to bind a device.
type ActivationStatus string

const (
	ActivationStatusActive             ActivationStatus = "active"
	ActivationStatusInvalid            ActivationStatus = "invalid"
	ActivationStatusDeviceLimitReached ActivationStatus = "device_limit_reached"
)
