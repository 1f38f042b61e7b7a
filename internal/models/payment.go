// internal/models/payment.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentMethodsCacheID is the key of the only row in payment_methods_cache.
const PaymentMethodsCacheID = "singleton"

type PaymentMethodsCache struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	Methods   RawJSON   `json:"methods" gorm:"type:jsonb"`
	FetchedAt time.Time `json:"fetched_at" gorm:"not null"`
}

func (PaymentMethodsCache) TableName() string {
	return "payment_methods_cache"
}

// WebhookOutcome records what the processor did with a delivery.
type WebhookOutcome string

const (
	WebhookOutcomeApplied          WebhookOutcome = "applied"
	WebhookOutcomeAlreadyCompleted WebhookOutcome = "already_completed"
	WebhookOutcomeUnknownPurchase  WebhookOutcome = "unknown_purchase"
	WebhookOutcomeInvalidSignature WebhookOutcome = "invalid_signature"
	WebhookOutcomeMalformed        WebhookOutcome = "malformed"
	WebhookOutcomeError            WebhookOutcome = "error"
)

// PaymentWebhookEvent keeps every gateway delivery for audit; it is never
// consulted when deciding how to process the next one.
type PaymentWebhookEvent struct {
	ID              uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	TransactionID   string         `json:"transaction_id" gorm:"size:64;index"`
	Status          string         `json:"status" gorm:"size:32"`
	DeliveryMode    string         `json:"delivery_mode" gorm:"size:16"`
	SignatureValid  bool           `json:"signature_valid" gorm:"not null;index"`
	Outcome         WebhookOutcome `json:"outcome" gorm:"type:varchar(32);not null;index"`
	ProcessingError string         `json:"processing_error" gorm:"type:text"`
	Payload         string         `json:"payload" gorm:"type:text"`
	CreatedAt       time.Time      `json:"created_at" gorm:"index"`
}

func (e *PaymentWebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
