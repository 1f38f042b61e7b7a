// internal/services/webhook_service.go
package services

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tarksober/license-backend/internal/config"
	"github.com/tarksober/license-backend/internal/maksekeskus"
	"github.com/tarksober/license-backend/internal/models"
)

// maxStoredPayload bounds the raw body kept for unverifiable deliveries.
const maxStoredPayload = 4096

type WebhookService struct {
	db                  *gorm.DB
	config              *config.Config
	notificationService *NotificationService
	now                 func() time.Time
}

// WebhookDelivery is an inbound gateway notification as received.
type WebhookDelivery struct {
	ContentType string
	Body        []byte
	Query       url.Values
}

// TransitionDecision is what a notification does to a purchase.
type TransitionDecision struct {
	Outcome     models.WebhookOutcome
	Apply       bool
	NextStatus  models.PurchaseStatus
	StampPaidAt bool
}

func NewWebhookService(db *gorm.DB, config *config.Config, notificationService *NotificationService) *WebhookService {
	return &WebhookService{
		db:                  db,
		config:              config,
		notificationService: notificationService,
		now:                 time.Now,
	}
}

// DecideTransition maps the current purchase and an incoming status to the
// next state. COMPLETED is terminal.
func DecideTransition(current *models.Purchase, incoming models.PurchaseStatus) TransitionDecision {
	if current == nil {
		return TransitionDecision{Outcome: models.WebhookOutcomeUnknownPurchase}
	}
	if current.IsCompleted() {
		return TransitionDecision{Outcome: models.WebhookOutcomeAlreadyCompleted}
	}
	return TransitionDecision{
		Outcome:     models.WebhookOutcomeApplied,
		Apply:       true,
		NextStatus:  incoming,
		StampPaidAt: incoming == models.PurchaseStatusCompleted,
	}
}

// Process verifies and applies one delivery. It never returns an error: the
// caller acknowledges every delivery and the outcome is only recorded and
// logged here.
func (s *WebhookService) Process(ctx context.Context, delivery WebhookDelivery) models.WebhookOutcome {
	event := &models.PaymentWebhookEvent{}
	outcome := s.process(ctx, delivery, event)

	event.Outcome = outcome
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		logrus.WithError(err).WithField("transaction_id", event.TransactionID).Error("Failed to record webhook delivery")
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id": event.TransactionID,
		"status":         event.Status,
		"delivery_mode":  event.DeliveryMode,
		"outcome":        outcome,
	}).Info("Payment webhook processed")

	return outcome
}

func (s *WebhookService) process(ctx context.Context, delivery WebhookDelivery, event *models.PaymentWebhookEvent) models.WebhookOutcome {
	signed, err := maksekeskus.ExtractSignedPayload(delivery.ContentType, delivery.Body, delivery.Query)
	if err != nil {
		event.Payload = truncate(string(delivery.Body), maxStoredPayload)
		event.ProcessingError = err.Error()
		return models.WebhookOutcomeMalformed
	}
	event.DeliveryMode = signed.Mode
	event.Payload = truncate(string(signed.JSON), maxStoredPayload)

	if !maksekeskus.VerifyMAC(signed.JSON, signed.MAC, s.config.Gateway.SecretKey) {
		logrus.WithField("delivery_mode", signed.Mode).Warn("Invalid MAC signature on payment webhook")
		return models.WebhookOutcomeInvalidSignature
	}
	event.SignatureValid = true

	notification, err := maksekeskus.ParseNotification(signed.JSON)
	if err != nil {
		event.ProcessingError = err.Error()
		return models.WebhookOutcomeMalformed
	}
	event.TransactionID = notification.TransactionID
	event.Status = notification.Status

	purchase, err := s.findPurchase(ctx, notification.TransactionID)
	if err != nil {
		logrus.WithError(err).WithField("transaction_id", notification.TransactionID).Error("Failed to load purchase for webhook")
		event.ProcessingError = err.Error()
		return models.WebhookOutcomeError
	}

	decision := DecideTransition(purchase, models.PurchaseStatus(notification.Status))
	if !decision.Apply {
		if decision.Outcome == models.WebhookOutcomeUnknownPurchase {
			logrus.WithField("transaction_id", notification.TransactionID).Warn("Purchase not found for transaction")
		}
		return decision.Outcome
	}

	applied, err := s.apply(ctx, purchase, decision)
	if err != nil {
		logrus.WithError(err).WithField("purchase_id", purchase.ID).Error("Failed to update purchase status")
		event.ProcessingError = err.Error()
		return models.WebhookOutcomeError
	}
	if !applied {
		// A concurrent delivery completed the purchase first.
		return models.WebhookOutcomeAlreadyCompleted
	}

	if decision.StampPaidAt {
		s.notificationService.PurchaseCompleted(ctx, purchase)
	}
	return models.WebhookOutcomeApplied
}

func (s *WebhookService) findPurchase(ctx context.Context, transactionID string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := s.db.WithContext(ctx).Where("mk_transaction_id = ?", transactionID).First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

// apply writes the decision only if the purchase is still not COMPLETED, so
// two racing deliveries cannot both complete it.
func (s *WebhookService) apply(ctx context.Context, purchase *models.Purchase, decision TransitionDecision) (bool, error) {
	updates := map[string]interface{}{
		"mk_status": decision.NextStatus,
	}
	if decision.StampPaidAt {
		paidAt := s.now().UTC()
		updates["paid_at"] = paidAt
		purchase.PaidAt = &paidAt
	}

	result := s.db.WithContext(ctx).Model(&models.Purchase{}).
		Where("id = ? AND mk_status <> ?", purchase.ID, models.PurchaseStatusCompleted).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}

	purchase.MKStatus = decision.NextStatus
	return result.RowsAffected > 0, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
