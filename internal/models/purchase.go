// internal/models/purchase.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Purchase struct {
	BaseModel
	ProductID        uuid.UUID      `json:"product_id" gorm:"type:uuid;not null;index"`
	PurchaseToken    string         `json:"-" gorm:"size:64;not null;uniqueIndex"`
	MKTransactionID  string         `json:"mk_transaction_id" gorm:"column:mk_transaction_id;size:64;not null;uniqueIndex"`
	MKStatus         PurchaseStatus `json:"mk_status" gorm:"column:mk_status;type:varchar(32);not null;index"`
	MKAmountCents    int64          `json:"mk_amount_cents" gorm:"column:mk_amount_cents;not null"`
	MKCurrency       string         `json:"mk_currency" gorm:"column:mk_currency;size:3;not null"`
	MKReference      string         `json:"mk_reference" gorm:"column:mk_reference;size:64"`
	CustomerIP       string         `json:"customer_ip" gorm:"size:64"`
	CustomerEmail    *string        `json:"customer_email" gorm:"size:255"`
	EmailCollectedAt *time.Time     `json:"email_collected_at"`
	PaidAt           *time.Time     `json:"paid_at"`
	LicenseID        *uuid.UUID     `json:"license_id" gorm:"type:uuid;index"`

	// Relationships
	Product Product  `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	License *License `json:"license,omitempty" gorm:"foreignKey:LicenseID"`
}

func (p *Purchase) IsCompleted() bool {
	return p.MKStatus == PurchaseStatusCompleted
}
