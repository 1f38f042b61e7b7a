// internal/services/payment_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tarksober/license-backend/internal/config"
	"github.com/tarksober/license-backend/internal/maksekeskus"
	"github.com/tarksober/license-backend/internal/models"
	"github.com/tarksober/license-backend/internal/utils"
)

// Gateway is the part of the Maksekeskus client the payment flow uses.
type Gateway interface {
	CreateTransaction(ctx context.Context, payload maksekeskus.TransactionPayload) (*maksekeskus.Transaction, error)
	ListMethods(ctx context.Context, country, currency string) (json.RawMessage, error)
}

type PaymentService struct {
	db       *gorm.DB
	config   *config.Config
	gateway  Gateway
	cache    MethodsCache
	products *ProductService
	now      func() time.Time
}

type CreateCheckoutRequest struct {
	ProductID string `json:"product_id" validate:"required,entity_id"`
}

type CheckoutResponse struct {
	PurchaseToken  string          `json:"purchase_token"`
	PaymentMethods json.RawMessage `json:"payment_methods"`
	TransactionID  string          `json:"transaction_id"`
	PaymentURL     string          `json:"payment_url,omitempty"`
}

func NewPaymentService(db *gorm.DB, config *config.Config, gateway Gateway, cache MethodsCache, products *ProductService) *PaymentService {
	return &PaymentService{
		db:       db,
		config:   config,
		gateway:  gateway,
		cache:    cache,
		products: products,
		now:      time.Now,
	}
}

// CreateCheckout opens a gateway transaction for an active product and
// records a CREATED purchase. Nothing is stored when the gateway fails.
func (s *PaymentService) CreateCheckout(ctx context.Context, req *CreateCheckoutRequest, customerIP string) (*CheckoutResponse, error) {
	if !utils.IsValidUUID(req.ProductID) {
		return nil, invalidInput("Valid product_id is required")
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, invalidInput("Valid product_id is required")
	}

	product, err := s.products.GetActiveProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	purchaseToken, err := utils.GeneratePurchaseToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate purchase token: %w", err)
	}
	reference := utils.GenerateReference(s.config.Checkout.ReferencePrefix, s.now())

	payload := maksekeskus.BuildTransactionPayload(maksekeskus.TransactionParams{
		AmountCents:     product.PriceCents,
		Currency:        product.Currency,
		Reference:       reference,
		CustomerIP:      customerIP,
		ReturnURL:       s.returnURL(purchaseToken),
		CancelURL:       s.config.Checkout.PublicBaseURL + "/payment/cancelled",
		NotificationURL: s.config.Checkout.NotificationURL,
		Locale:          s.config.Gateway.Locale,
		Country:         s.config.Gateway.Country,
	})

	tx, err := s.gateway.CreateTransaction(ctx, payload)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"product_id": product.ID,
			"reference":  reference,
		}).Error("Gateway rejected transaction")
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	purchase := &models.Purchase{
		ProductID:       product.ID,
		PurchaseToken:   purchaseToken,
		MKTransactionID: tx.ID,
		MKStatus:        models.PurchaseStatusCreated,
		MKAmountCents:   product.PriceCents,
		MKCurrency:      product.Currency,
		MKReference:     reference,
		CustomerIP:      customerIP,
	}
	if err := s.db.WithContext(ctx).Create(purchase).Error; err != nil {
		logrus.WithError(err).WithField("transaction_id", tx.ID).Error("Failed to store purchase")
		return nil, fmt.Errorf("failed to create purchase record: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"purchase_id":    purchase.ID,
		"product_id":     product.ID,
		"transaction_id": tx.ID,
		"reference":      reference,
	}).Info("Checkout created")

	resp := &CheckoutResponse{
		PurchaseToken:  purchaseToken,
		PaymentMethods: tx.PaymentMethods,
		TransactionID:  tx.ID,
	}
	if s.config.Checkout.Presentation == config.PresentationRedirect {
		resp.PaymentURL = tx.RedirectURL()
	}
	return resp, nil
}

// PaymentMethods returns the gateway's method list, served from cache while
// fresh. When the gateway fails a stale cached copy is returned instead.
func (s *PaymentService) PaymentMethods(ctx context.Context) (json.RawMessage, error) {
	cached, err := s.cache.Get(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Payment methods cache read failed")
		cached = nil
	}

	if cached != nil && s.now().Sub(cached.FetchedAt) < s.config.MethodsCacheTTL() {
		return cached.Methods, nil
	}

	methods, err := s.gateway.ListMethods(ctx, s.config.Gateway.Country, s.config.Gateway.Currency)
	if err != nil {
		if cached != nil {
			logrus.WithError(err).WithField("fetched_at", cached.FetchedAt).Warn("Serving stale payment methods")
			return cached.Methods, nil
		}
		logrus.WithError(err).Error("Failed to fetch payment methods")
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if err := s.cache.Put(ctx, methods, s.now().UTC()); err != nil {
		logrus.WithError(err).Warn("Payment methods cache write failed")
	}

	return methods, nil
}

func (s *PaymentService) returnURL(purchaseToken string) string {
	return s.config.Checkout.PublicBaseURL + "/payment/success?token=" + url.QueryEscape(purchaseToken)
}
