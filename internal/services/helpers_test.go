package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tarksober/license-backend/internal/config"
	"github.com/tarksober/license-backend/internal/database"
	"github.com/tarksober/license-backend/internal/maksekeskus"
	"github.com/tarksober/license-backend/internal/models"
)

const testSecret = "mk-test-secret"

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Gateway: config.GatewayConfig{
			Env:       config.GatewayEnvTest,
			ShopID:    "shop",
			SecretKey: testSecret,
			Country:   "ee",
			Locale:    "et",
			Currency:  "EUR",
		},
		Checkout: config.CheckoutConfig{
			PublicBaseURL:   "https://minu.tarksober.ee",
			NotificationURL: "https://api.tarksober.ee/v1/payment-webhook",
			Presentation:    config.PresentationMethods,
			ManageURL:       "https://minu.tarksober.ee",
			ReferencePrefix: "TS",
		},
		Redis: config.RedisConfig{MethodsCacheTTL: 12},
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenInMemory(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })
	return db
}

type fakeGateway struct {
	tx        *maksekeskus.Transaction
	createErr error
	methods   json.RawMessage
	listErr   error

	created   []maksekeskus.TransactionPayload
	listCalls int
}

func (g *fakeGateway) CreateTransaction(ctx context.Context, payload maksekeskus.TransactionPayload) (*maksekeskus.Transaction, error) {
	g.created = append(g.created, payload)
	if g.createErr != nil {
		return nil, g.createErr
	}
	return g.tx, nil
}

func (g *fakeGateway) ListMethods(ctx context.Context, country, currency string) (json.RawMessage, error) {
	g.listCalls++
	if g.listErr != nil {
		return nil, g.listErr
	}
	return g.methods, nil
}

type publishedEvent struct {
	Type    string
	Key     string
	Payload []byte
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Type: eventType, Key: partitionKey, Payload: payload})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func createProduct(t *testing.T, db *gorm.DB, mutate func(*models.Product)) *models.Product {
	t.Helper()
	product := &models.Product{
		AppSlug:      "tarksober",
		Name:         "Premium 1 year",
		Description:  "All features for a year",
		PriceCents:   849,
		Currency:     "EUR",
		DurationDays: 365,
		MaxDevices:   2,
		IsActive:     true,
		SortOrder:    1,
	}
	if mutate != nil {
		mutate(product)
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func createPurchase(t *testing.T, db *gorm.DB, product *models.Product, status models.PurchaseStatus, token, transactionID string) *models.Purchase {
	t.Helper()
	purchase := &models.Purchase{
		ProductID:       product.ID,
		PurchaseToken:   token,
		MKTransactionID: transactionID,
		MKStatus:        status,
		MKAmountCents:   product.PriceCents,
		MKCurrency:      product.Currency,
		MKReference:     "TS-test",
		CustomerIP:      "203.0.113.1",
	}
	require.NoError(t, db.Create(purchase).Error)
	return purchase
}

func createLicense(t *testing.T, db *gorm.DB, product *models.Product, key string, mutate func(*models.License)) *models.License {
	t.Helper()
	now := time.Now().UTC()
	license := &models.License{
		LicenseKey: key,
		ProductID:  product.ID,
		OwnerEmail: "kasutaja@gmail.com",
		AppSlug:    product.AppSlug,
		MaxDevices: product.MaxDevices,
		StartsAt:   now,
		ExpiresAt:  now.AddDate(0, 0, product.DurationDays),
	}
	if mutate != nil {
		mutate(license)
	}
	require.NoError(t, db.Create(license).Error)
	return license
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
