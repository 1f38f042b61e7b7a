// internal/services/notification_service.go
package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tarksober/license-backend/internal/events"
	"github.com/tarksober/license-backend/internal/models"
)

// defaultPublishTimeout bounds how long a request waits on the broker.
const defaultPublishTimeout = 2 * time.Second

// NotificationService announces state changes to downstream consumers.
// Publishing never fails the operation that triggered it.
type NotificationService struct {
	publisher      events.Publisher
	publishTimeout time.Duration
}

// EventEnvelope is the JSON body of every published event.
type EventEnvelope struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

type PurchaseCompletedEvent struct {
	PurchaseID    string `json:"purchase_id"`
	ProductID     string `json:"product_id"`
	TransactionID string `json:"transaction_id"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	Reference     string `json:"reference"`
}

type LicenseIssuedEvent struct {
	LicenseID  string    `json:"license_id"`
	PurchaseID string    `json:"purchase_id"`
	ProductID  string    `json:"product_id"`
	AppSlug    string    `json:"app_slug"`
	MaxDevices int       `json:"max_devices"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type DeviceEvent struct {
	ActivationID string `json:"activation_id,omitempty"`
	LicenseID    string `json:"license_id"`
	DeviceID     string `json:"device_id"`
	AppSlug      string `json:"app_slug,omitempty"`
}

func NewNotificationService(publisher events.Publisher) *NotificationService {
	return &NotificationService{
		publisher:      publisher,
		publishTimeout: defaultPublishTimeout,
	}
}

func (s *NotificationService) PurchaseCompleted(ctx context.Context, purchase *models.Purchase) {
	s.publish(ctx, events.PurchaseCompleted, purchase.ID.String(), PurchaseCompletedEvent{
		PurchaseID:    purchase.ID.String(),
		ProductID:     purchase.ProductID.String(),
		TransactionID: purchase.MKTransactionID,
		AmountCents:   purchase.MKAmountCents,
		Currency:      purchase.MKCurrency,
		Reference:     purchase.MKReference,
	})
}

// LicenseIssued deliberately omits the owner email and license key.
func (s *NotificationService) LicenseIssued(ctx context.Context, license *models.License, purchase *models.Purchase) {
	s.publish(ctx, events.LicenseIssued, license.ID.String(), LicenseIssuedEvent{
		LicenseID:  license.ID.String(),
		PurchaseID: purchase.ID.String(),
		ProductID:  license.ProductID.String(),
		AppSlug:    license.AppSlug,
		MaxDevices: license.MaxDevices,
		ExpiresAt:  license.ExpiresAt,
	})
}

func (s *NotificationService) DeviceActivated(ctx context.Context, license *models.License, deviceID string) {
	s.publish(ctx, events.DeviceActivated, license.ID.String(), DeviceEvent{
		LicenseID: license.ID.String(),
		DeviceID:  deviceID,
		AppSlug:   license.AppSlug,
	})
}

func (s *NotificationService) DeviceDeactivated(ctx context.Context, activation *models.DeviceActivation) {
	s.publish(ctx, events.DeviceDeactivated, activation.LicenseID.String(), DeviceEvent{
		ActivationID: activation.ID.String(),
		LicenseID:    activation.LicenseID.String(),
		DeviceID:     activation.DeviceID,
	})
}

func (s *NotificationService) publish(ctx context.Context, eventType, key string, data interface{}) {
	if s == nil || s.publisher == nil {
		return
	}

	payload, err := json.Marshal(EventEnvelope{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		logrus.WithError(err).WithField("event_type", eventType).Error("Failed to encode event")
		return
	}

	// Detached from request cancellation, bounded by publishTimeout.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, eventType, payload, key); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"event_type":    eventType,
			"partition_key": key,
		}).Warn("Failed to publish event")
	}
}
