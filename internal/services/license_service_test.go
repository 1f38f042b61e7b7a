package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarksober/license-backend/internal/events"
	"github.com/tarksober/license-backend/internal/models"
)

func newLicenseService(t *testing.T) (*LicenseService, *recordingPublisher) {
	t.Helper()
	db := setupTestDB(t)
	publisher := &recordingPublisher{}
	return NewLicenseService(db, testConfig(), NewNotificationService(publisher)), publisher
}

func activeCount(t *testing.T, s *LicenseService, license *models.License) int64 {
	t.Helper()
	var count int64
	require.NoError(t, s.db.Model(&models.DeviceActivation{}).
		Where("license_id = ? AND is_active = ?", license.ID, true).
		Count(&count).Error)
	return count
}

func TestActivateDevice(t *testing.T) {
	service, publisher := newLicenseService(t)
	ctx := context.Background()
	product := createProduct(t, service.db, func(p *models.Product) { p.MaxDevices = 2 })
	license := createLicense(t, service.db, product, "ABCD-EFGH-JKLM", nil)

	req := &ActivateDeviceRequest{LicenseKey: "ABCD-EFGH-JKLM", DeviceID: "device-1", AppSlug: "tarksober"}
	result, err := service.ActivateDevice(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.ActivationStatusActive, result.Status)
	require.NotNil(t, result.ExpiresAt)
	assert.WithinDuration(t, license.ExpiresAt, *result.ExpiresAt, time.Millisecond)

	// Same device again is idempotent.
	result, err = service.ActivateDevice(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.ActivationStatusActive, result.Status)
	assert.Equal(t, int64(1), activeCount(t, service, license))

	result, err = service.ActivateDevice(ctx, &ActivateDeviceRequest{LicenseKey: "ABCD-EFGH-JKLM", DeviceID: "device-2", AppSlug: "tarksober"})
	require.NoError(t, err)
	assert.Equal(t, models.ActivationStatusActive, result.Status)

	result, err = service.ActivateDevice(ctx, &ActivateDeviceRequest{LicenseKey: "ABCD-EFGH-JKLM", DeviceID: "device-3", AppSlug: "tarksober"})
	require.NoError(t, err)
	assert.Equal(t, models.ActivationStatusDeviceLimitReached, result.Status)
	assert.Equal(t, "k***a@gmail.com", result.OwnerEmailHint)
	assert.Equal(t, "https://minu.tarksober.ee", result.ManageURL)
	assert.Equal(t, int64(2), activeCount(t, service, license))

	// A device already bound at the cap is still accepted.
	result, err = service.ActivateDevice(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.ActivationStatusActive, result.Status)

	assert.Equal(t, []string{events.DeviceActivated, events.DeviceActivated}, publisher.types())
}

func TestActivateDeviceInvalid(t *testing.T) {
	service, _ := newLicenseService(t)
	ctx := context.Background()
	product := createProduct(t, service.db, nil)
	createLicense(t, service.db, product, "REVK-EFGH-JKLM", func(l *models.License) { l.IsRevoked = true })
	createLicense(t, service.db, product, "EXPD-EFGH-JKLM", func(l *models.License) {
		l.StartsAt = time.Now().UTC().AddDate(-1, 0, -1)
		l.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	})
	createLicense(t, service.db, product, "GDKY-EFGH-JKLM", nil)

	tests := []struct {
		name string
		req  ActivateDeviceRequest
	}{
		{"malformed key", ActivateDeviceRequest{LicenseKey: "abcd-efgh-jklm", DeviceID: "d", AppSlug: "tarksober"}},
		{"unknown key", ActivateDeviceRequest{LicenseKey: "ZZZZ-ZZZZ-ZZZZ", DeviceID: "d", AppSlug: "tarksober"}},
		{"revoked", ActivateDeviceRequest{LicenseKey: "REVK-EFGH-JKLM", DeviceID: "d", AppSlug: "tarksober"}},
		{"expired", ActivateDeviceRequest{LicenseKey: "EXPD-EFGH-JKLM", DeviceID: "d", AppSlug: "tarksober"}},
		{"wrong app", ActivateDeviceRequest{LicenseKey: "GDKY-EFGH-JKLM", DeviceID: "d", AppSlug: "other-app"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			result, err := service.ActivateDevice(ctx, &req)
			require.NoError(t, err)
			assert.Equal(t, models.ActivationStatusInvalid, result.Status)
			assert.Nil(t, result.ExpiresAt)
		})
	}

	_, err := service.ActivateDevice(ctx, &ActivateDeviceRequest{LicenseKey: "GDKY-EFGH-JKLM", AppSlug: "tarksober"})
	var inputErr *InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "license_key, device_id, and app_slug are required", inputErr.Message)

	var count int64
	require.NoError(t, service.db.Model(&models.DeviceActivation{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestActivateDeviceReactivates(t *testing.T) {
	service, _ := newLicenseService(t)
	ctx := context.Background()
	product := createProduct(t, service.db, func(p *models.Product) { p.MaxDevices = 1 })
	license := createLicense(t, service.db, product, "ABCD-EFGH-JKLM", nil)

	deactivatedAt := time.Now().UTC().Add(-time.Hour)
	previous := &models.DeviceActivation{
		LicenseID:     license.ID,
		DeviceID:      "device-1",
		ActivatedAt:   time.Now().UTC().Add(-48 * time.Hour),
		IsActive:      false,
		DeactivatedAt: &deactivatedAt,
	}
	require.NoError(t, service.db.Create(previous).Error)

	result, err := service.ActivateDevice(ctx, &ActivateDeviceRequest{LicenseKey: "ABCD-EFGH-JKLM", DeviceID: "device-1", AppSlug: "tarksober"})
	require.NoError(t, err)
	assert.Equal(t, models.ActivationStatusActive, result.Status)

	var rows []models.DeviceActivation
	require.NoError(t, service.db.Where("license_id = ?", license.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, previous.ID, rows[0].ID)
	assert.True(t, rows[0].IsActive)
	assert.Nil(t, rows[0].DeactivatedAt)
}

func TestBindDeviceConcurrentSameDevice(t *testing.T) {
	service, _ := newLicenseService(t)
	ctx := context.Background()
	product := createProduct(t, service.db, func(p *models.Product) { p.MaxDevices = 1 })
	license := createLicense(t, service.db, product, "ABCD-EFGH-JKLM", nil)
	now := time.Now().UTC()

	// Both requests saw no existing row; the second insert loses on the
	// unique (license_id, device_id) index and still counts as success.
	changed, err := service.bindDevice(ctx, license, nil, "device-1", now)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = service.bindDevice(ctx, license, nil, "device-1", now)
	require.NoError(t, err)
	assert.False(t, changed)

	assert.Equal(t, int64(1), activeCount(t, service, license))
}

func TestBindDeviceOvershootIsBounded(t *testing.T) {
	service, _ := newLicenseService(t)
	ctx := context.Background()
	product := createProduct(t, service.db, func(p *models.Product) { p.MaxDevices = 1 })
	license := createLicense(t, service.db, product, "ABCD-EFGH-JKLM", nil)
	now := time.Now().UTC()

	// Two new devices that both counted zero active bindings before either
	// inserted. Each passes the cap check and both bind: the license ends
	// one over its cap, at most one extra per concurrent request.
	racers := []string{"device-a", "device-b"}
	for _, device := range racers {
		decision := DetermineActivationResult(license, 0, false, manageURL)
		require.Equal(t, models.ActivationStatusActive, decision.Status)
		_, err := service.bindDevice(ctx, license, nil, device, now)
		require.NoError(t, err)
	}

	overshoot := activeCount(t, service, license) - int64(license.MaxDevices)
	assert.Equal(t, int64(1), overshoot)
	assert.LessOrEqual(t, overshoot, int64(len(racers)-1))

	// Once committed, the next new device sees the real count and is refused.
	result, err := service.ActivateDevice(ctx, &ActivateDeviceRequest{LicenseKey: "ABCD-EFGH-JKLM", DeviceID: "device-c", AppSlug: "tarksober"})
	require.NoError(t, err)
	assert.Equal(t, models.ActivationStatusDeviceLimitReached, result.Status)
}

func TestDeactivateDevice(t *testing.T) {
	service, publisher := newLicenseService(t)
	ctx := context.Background()
	product := createProduct(t, service.db, nil)
	owner := "user-1"
	license := createLicense(t, service.db, product, "ABCD-EFGH-JKLM", func(l *models.License) { l.UserID = &owner })

	_, err := service.ActivateDevice(ctx, &ActivateDeviceRequest{LicenseKey: "ABCD-EFGH-JKLM", DeviceID: "device-1", AppSlug: "tarksober"})
	require.NoError(t, err)

	var activation models.DeviceActivation
	require.NoError(t, service.db.Where("license_id = ?", license.ID).First(&activation).Error)

	_, err = service.DeactivateDevice(ctx, "someone-else", &DeactivateDeviceRequest{ActivationID: activation.ID.String()})
	assert.ErrorIs(t, err, ErrActivationNotFound)

	_, err = service.DeactivateDevice(ctx, owner, &DeactivateDeviceRequest{ActivationID: "not-a-uuid"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	resp, err := service.DeactivateDevice(ctx, owner, &DeactivateDeviceRequest{ActivationID: activation.ID.String()})
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Empty(t, resp.Message)
	assert.Zero(t, activeCount(t, service, license))

	var stored models.DeviceActivation
	require.NoError(t, service.db.First(&stored, "id = ?", activation.ID).Error)
	assert.False(t, stored.IsActive)
	assert.NotNil(t, stored.DeactivatedAt)

	resp, err = service.DeactivateDevice(ctx, owner, &DeactivateDeviceRequest{ActivationID: activation.ID.String()})
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, "Already deactivated", resp.Message)

	assert.Equal(t, []string{events.DeviceActivated, events.DeviceDeactivated}, publisher.types())
}

func TestMyLicenses(t *testing.T) {
	service, _ := newLicenseService(t)
	ctx := context.Background()
	product := createProduct(t, service.db, nil)
	owner := "user-1"
	other := "user-2"

	older := createLicense(t, service.db, product, "OLDR-EFGH-JKLM", func(l *models.License) {
		l.UserID = &owner
		l.CreatedAt = time.Now().UTC().Add(-24 * time.Hour)
		l.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	})
	newer := createLicense(t, service.db, product, "NEWR-EFGH-JKLM", func(l *models.License) { l.UserID = &owner })
	createLicense(t, service.db, product, "OTHR-EFGH-JKLM", func(l *models.License) { l.UserID = &other })

	for _, device := range []string{"device-1", "device-2"} {
		_, err := service.ActivateDevice(ctx, &ActivateDeviceRequest{LicenseKey: "NEWR-EFGH-JKLM", DeviceID: device, AppSlug: "tarksober"})
		require.NoError(t, err)
	}
	var activation models.DeviceActivation
	require.NoError(t, service.db.Where("license_id = ? AND device_id = ?", newer.ID, "device-2").First(&activation).Error)
	_, err := service.DeactivateDevice(ctx, owner, &DeactivateDeviceRequest{ActivationID: activation.ID.String()})
	require.NoError(t, err)

	summaries, err := service.MyLicenses(ctx, owner)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, newer.ID, summaries[0].ID)
	assert.False(t, summaries[0].IsExpired)
	assert.Equal(t, 1, summaries[0].ActiveDeviceCount)
	require.Len(t, summaries[0].Devices, 1)
	assert.Equal(t, "device-1", summaries[0].Devices[0].DeviceID)
	assert.Equal(t, "Premium 1 year", summaries[0].Product.Name)
	assert.Equal(t, 365, summaries[0].Product.DurationDays)

	assert.Equal(t, older.ID, summaries[1].ID)
	assert.True(t, summaries[1].IsExpired)
	assert.Zero(t, summaries[1].ActiveDeviceCount)
	assert.Empty(t, summaries[1].Devices)

	none, err := service.MyLicenses(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPremiumStatus(t *testing.T) {
	service, _ := newLicenseService(t)
	ctx := context.Background()
	product := createProduct(t, service.db, nil)
	license := createLicense(t, service.db, product, "ABCD-EFGH-JKLM", nil)

	status, err := service.PremiumStatus(ctx, "device-1", "tarksober")
	require.NoError(t, err)
	assert.False(t, status.IsPremium)

	_, err = service.ActivateDevice(ctx, &ActivateDeviceRequest{LicenseKey: "ABCD-EFGH-JKLM", DeviceID: "device-1", AppSlug: "tarksober"})
	require.NoError(t, err)

	status, err = service.PremiumStatus(ctx, "device-1", "tarksober")
	require.NoError(t, err)
	assert.True(t, status.IsPremium)
	require.NotNil(t, status.ExpiresAt)
	assert.WithinDuration(t, license.ExpiresAt, *status.ExpiresAt, time.Millisecond)

	status, err = service.PremiumStatus(ctx, "device-1", "other-app")
	require.NoError(t, err)
	assert.False(t, status.IsPremium)

	require.NoError(t, service.db.Model(license).Update("is_revoked", true).Error)
	status, err = service.PremiumStatus(ctx, "device-1", "tarksober")
	require.NoError(t, err)
	assert.False(t, status.IsPremium)

	_, err = service.PremiumStatus(ctx, "", "tarksober")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLinkAccount(t *testing.T) {
	service, _ := newLicenseService(t)
	ctx := context.Background()
	product := createProduct(t, service.db, nil)
	existingOwner := "user-0"

	first := createLicense(t, service.db, product, "AAAA-EFGH-JKLM", func(l *models.License) { l.OwnerEmail = "buyer@example.com" })
	second := createLicense(t, service.db, product, "BBBB-EFGH-JKLM", func(l *models.License) { l.OwnerEmail = "buyer@example.com" })
	claimed := createLicense(t, service.db, product, "CCCC-EFGH-JKLM", func(l *models.License) {
		l.OwnerEmail = "buyer@example.com"
		l.UserID = &existingOwner
	})
	createLicense(t, service.db, product, "DDDD-EFGH-JKLM", func(l *models.License) { l.OwnerEmail = "someone@example.com" })

	resp, err := service.LinkAccount(ctx, "user-1", " Buyer@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.LinkedCount)

	for _, id := range []interface{}{first.ID, second.ID} {
		var license models.License
		require.NoError(t, service.db.First(&license, "id = ?", id).Error)
		require.NotNil(t, license.UserID)
		assert.Equal(t, "user-1", *license.UserID)
	}

	var kept models.License
	require.NoError(t, service.db.First(&kept, "id = ?", claimed.ID).Error)
	assert.Equal(t, existingOwner, *kept.UserID)

	resp, err = service.LinkAccount(ctx, "user-1", "buyer@example.com")
	require.NoError(t, err)
	assert.Zero(t, resp.LinkedCount)

	resp, err = service.LinkAccount(ctx, "user-2", "buyer@example.com")
	require.NoError(t, err)
	assert.Zero(t, resp.LinkedCount)

	_, err = service.LinkAccount(ctx, "user-1", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCollectEmailIssuesLicense(t *testing.T) {
	service, publisher := newLicenseService(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	service.now = fixedClock(now)

	product := createProduct(t, service.db, func(p *models.Product) { p.DurationDays = 30; p.MaxDevices = 3 })
	purchase := createPurchase(t, service.db, product, models.PurchaseStatusCompleted, "token-1", "mk-tx-1")

	issued, err := service.CollectEmail(ctx, &CollectEmailRequest{PurchaseToken: "token-1", Email: "Buyer@Example.com"})
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Z2-9]{4}-[A-Z2-9]{4}-[A-Z2-9]{4}$`, issued.LicenseKey)
	assert.Equal(t, "tarksober", issued.AppSlug)
	assert.True(t, now.AddDate(0, 0, 30).Equal(issued.ExpiresAt))
	assert.True(t, issued.Created)

	var license models.License
	require.NoError(t, service.db.Where("license_key = ?", issued.LicenseKey).First(&license).Error)
	assert.Equal(t, "buyer@example.com", license.OwnerEmail)
	assert.Equal(t, 3, license.MaxDevices)
	assert.True(t, now.Equal(license.StartsAt))
	assert.Nil(t, license.UserID)

	stored := loadPurchase(t, service.db, purchase.ID)
	require.NotNil(t, stored.LicenseID)
	assert.Equal(t, license.ID, *stored.LicenseID)
	require.NotNil(t, stored.CustomerEmail)
	assert.Equal(t, "buyer@example.com", *stored.CustomerEmail)
	assert.NotNil(t, stored.EmailCollectedAt)

	// Retrying returns the same license and issues nothing new.
	service.now = fixedClock(now.Add(time.Hour))
	again, err := service.CollectEmail(ctx, &CollectEmailRequest{PurchaseToken: "token-1", Email: "other@example.com"})
	require.NoError(t, err)
	assert.Equal(t, issued.LicenseKey, again.LicenseKey)
	assert.True(t, issued.ExpiresAt.Equal(again.ExpiresAt))
	assert.False(t, again.Created)

	var count int64
	require.NoError(t, service.db.Model(&models.License{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, []string{events.LicenseIssued}, publisher.types())
}

func TestCollectEmailRejects(t *testing.T) {
	service, _ := newLicenseService(t)
	ctx := context.Background()
	product := createProduct(t, service.db, nil)
	createPurchase(t, service.db, product, models.PurchaseStatusPending, "token-pending", "mk-tx-2")

	_, err := service.CollectEmail(ctx, &CollectEmailRequest{Email: "a@b.ee"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = service.CollectEmail(ctx, &CollectEmailRequest{PurchaseToken: "token-pending", Email: "not-an-email"})
	var inputErr *InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "Invalid email format", inputErr.Message)

	_, err = service.CollectEmail(ctx, &CollectEmailRequest{PurchaseToken: "missing", Email: "a@b.ee"})
	assert.ErrorIs(t, err, ErrPurchaseNotFound)

	_, err = service.CollectEmail(ctx, &CollectEmailRequest{PurchaseToken: "token-pending", Email: "a@b.ee"})
	var notCompleted *PaymentNotCompletedError
	require.True(t, errors.As(err, &notCompleted))
	assert.Equal(t, models.PurchaseStatusPending, notCompleted.Status)

	var count int64
	require.NoError(t, service.db.Model(&models.License{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCollectEmailRetriesKeyCollision(t *testing.T) {
	service, _ := newLicenseService(t)
	ctx := context.Background()
	product := createProduct(t, service.db, nil)
	createLicense(t, service.db, product, "TAKN-EFGH-JKLM", nil)
	createPurchase(t, service.db, product, models.PurchaseStatusCompleted, "token-1", "mk-tx-1")

	keys := []string{"TAKN-EFGH-JKLM", "TAKN-EFGH-JKLM", "FRSH-EFGH-JKLM"}
	calls := 0
	service.generateKey = func() (string, error) {
		key := keys[calls]
		calls++
		return key, nil
	}

	issued, err := service.CollectEmail(ctx, &CollectEmailRequest{PurchaseToken: "token-1", Email: "a@b.ee"})
	require.NoError(t, err)
	assert.Equal(t, "FRSH-EFGH-JKLM", issued.LicenseKey)
	assert.Equal(t, 3, calls)
}

func TestCollectEmailKeyExhaustion(t *testing.T) {
	service, _ := newLicenseService(t)
	ctx := context.Background()
	product := createProduct(t, service.db, nil)
	createLicense(t, service.db, product, "TAKN-EFGH-JKLM", nil)
	purchase := createPurchase(t, service.db, product, models.PurchaseStatusCompleted, "token-1", "mk-tx-1")

	calls := 0
	service.generateKey = func() (string, error) {
		calls++
		return "TAKN-EFGH-JKLM", nil
	}

	_, err := service.CollectEmail(ctx, &CollectEmailRequest{PurchaseToken: "token-1", Email: "a@b.ee"})
	assert.ErrorIs(t, err, ErrLicenseKeyExhausted)
	assert.Equal(t, licenseKeyAttempts, calls)
	assert.Nil(t, loadPurchase(t, service.db, purchase.ID).LicenseID)
}
