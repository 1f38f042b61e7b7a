// internal/services/license_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tarksober/license-backend/internal/config"
	"github.com/tarksober/license-backend/internal/database"
	"github.com/tarksober/license-backend/internal/models"
	"github.com/tarksober/license-backend/internal/utils"
)

// licenseKeyAttempts bounds the retries on a license_key collision.
const licenseKeyAttempts = 5

const alreadyDeactivatedMessage = "Already deactivated"

var errPurchaseAlreadyLinked = errors.New("purchase already linked to a license")

type LicenseService struct {
	db                  *gorm.DB
	config              *config.Config
	notificationService *NotificationService
	now                 func() time.Time
	generateKey         func() (string, error)
}

type ActivateDeviceRequest struct {
	LicenseKey string `json:"license_key"`
	DeviceID   string `json:"device_id" validate:"max=255"`
	AppSlug    string `json:"app_slug" validate:"max=100"`
}

type DeactivateDeviceRequest struct {
	ActivationID string `json:"activation_id"`
}

type DeactivateDeviceResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

type CollectEmailRequest struct {
	PurchaseToken string `json:"purchase_token"`
	Email         string `json:"email"`
}

// IssuedLicense is the public part of a license handed to its buyer.
type IssuedLicense struct {
	LicenseKey string    `json:"license_key"`
	AppSlug    string    `json:"app_slug"`
	ExpiresAt  time.Time `json:"expires_at"`

	// Created is set only when this call issued the license.
	Created bool `json:"-"`
}

type LicenseSummary struct {
	ID                uuid.UUID       `json:"id"`
	LicenseKey        string          `json:"license_key"`
	AppSlug           string          `json:"app_slug"`
	MaxDevices        int             `json:"max_devices"`
	StartsAt          time.Time       `json:"starts_at"`
	ExpiresAt         time.Time       `json:"expires_at"`
	IsRevoked         bool            `json:"is_revoked"`
	IsExpired         bool            `json:"is_expired"`
	Product           ProductSummary  `json:"product"`
	ActiveDeviceCount int             `json:"active_device_count"`
	Devices           []DeviceSummary `json:"devices"`
}

type ProductSummary struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	DurationDays int    `json:"duration_days"`
}

type DeviceSummary struct {
	ID          uuid.UUID `json:"id"`
	DeviceID    string    `json:"device_id"`
	ActivatedAt time.Time `json:"activated_at"`
	IsActive    bool      `json:"is_active"`
}

type LinkAccountResponse struct {
	LinkedCount int64 `json:"linked_count"`
}

func NewLicenseService(db *gorm.DB, config *config.Config, notificationService *NotificationService) *LicenseService {
	return &LicenseService{
		db:                  db,
		config:              config,
		notificationService: notificationService,
		now:                 time.Now,
		generateKey:         utils.GenerateLicenseKey,
	}
}

// ActivateDevice binds a device to a license unless the device cap is
// reached. Unknown, revoked or expired licenses and malformed keys answer
// invalid rather than an error.
func (s *LicenseService) ActivateDevice(ctx context.Context, req *ActivateDeviceRequest) (ActivationResult, error) {
	if req.LicenseKey == "" || req.DeviceID == "" || req.AppSlug == "" {
		return ActivationResult{}, invalidInput("license_key, device_id, and app_slug are required")
	}
	if !utils.IsValidLicenseKey(req.LicenseKey) {
		return invalidResult(), nil
	}

	db := s.db.WithContext(ctx)
	now := s.now().UTC()

	var license models.License
	err := db.Where("license_key = ? AND app_slug = ?", req.LicenseKey, req.AppSlug).First(&license).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invalidResult(), nil
		}
		return ActivationResult{}, fmt.Errorf("failed to load license: %w", err)
	}

	if !CheckLicenseValidity(&license, now) {
		return invalidResult(), nil
	}

	var existing *models.DeviceActivation
	var activation models.DeviceActivation
	err = db.Where("license_id = ? AND device_id = ?", license.ID, req.DeviceID).First(&activation).Error
	switch {
	case err == nil:
		existing = &activation
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return ActivationResult{}, fmt.Errorf("failed to load activation: %w", err)
	}

	alreadyActive := existing != nil && existing.IsActive

	var activeCount int64
	if !alreadyActive {
		if err := db.Model(&models.DeviceActivation{}).
			Where("license_id = ? AND is_active = ?", license.ID, true).
			Count(&activeCount).Error; err != nil {
			return ActivationResult{}, fmt.Errorf("failed to count activations: %w", err)
		}
	}

	result := DetermineActivationResult(&license, activeCount, alreadyActive, s.config.Checkout.ManageURL)
	if alreadyActive || result.Status != models.ActivationStatusActive {
		return result, nil
	}

	changed, err := s.bindDevice(ctx, &license, existing, req.DeviceID, now)
	if err != nil {
		return ActivationResult{}, err
	}
	if changed {
		logrus.WithFields(logrus.Fields{
			"license_id": license.ID,
			"device_id":  req.DeviceID,
		}).Info("Device activated")
		s.notificationService.DeviceActivated(ctx, &license, req.DeviceID)
	}

	return result, nil
}

// bindDevice makes the (license, device) row active. Another request binding
// the same device concurrently is not an error: the unique index on
// (license_id, device_id) lets exactly one insert win and the loser reports
// success. Two different new devices may both pass the cap check; that
// overshoot is bounded by the number of concurrent requests.
func (s *LicenseService) bindDevice(ctx context.Context, license *models.License, existing *models.DeviceActivation, deviceID string, now time.Time) (bool, error) {
	db := s.db.WithContext(ctx)

	if existing != nil {
		result := db.Model(&models.DeviceActivation{}).
			Where("id = ? AND is_active = ?", existing.ID, false).
			Updates(map[string]interface{}{
				"is_active":      true,
				"activated_at":   now,
				"deactivated_at": nil,
			})
		if result.Error != nil {
			return false, fmt.Errorf("failed to reactivate device: %w", result.Error)
		}
		return result.RowsAffected > 0, nil
	}

	activation := &models.DeviceActivation{
		LicenseID:   license.ID,
		DeviceID:    deviceID,
		ActivatedAt: now,
		IsActive:    true,
	}
	if err := db.Create(activation).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to activate device: %w", err)
	}
	return true, nil
}

// DeactivateDevice releases a device slot on a license owned by userID.
func (s *LicenseService) DeactivateDevice(ctx context.Context, userID string, req *DeactivateDeviceRequest) (*DeactivateDeviceResponse, error) {
	if !utils.IsValidUUID(req.ActivationID) {
		return nil, invalidInput("Valid activation_id is required")
	}

	db := s.db.WithContext(ctx)

	owned := db.Model(&models.License{}).Select("id").Where("user_id = ?", userID)

	var activation models.DeviceActivation
	err := db.Where("id = ? AND license_id IN (?)", req.ActivationID, owned).First(&activation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrActivationNotFound
		}
		return nil, fmt.Errorf("failed to load activation: %w", err)
	}

	if !activation.IsActive {
		return &DeactivateDeviceResponse{OK: true, Message: alreadyDeactivatedMessage}, nil
	}

	result := db.Model(&models.DeviceActivation{}).
		Where("id = ? AND is_active = ?", activation.ID, true).
		Updates(map[string]interface{}{
			"is_active":      false,
			"deactivated_at": s.now().UTC(),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to deactivate device: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &DeactivateDeviceResponse{OK: true, Message: alreadyDeactivatedMessage}, nil
	}

	logrus.WithFields(logrus.Fields{
		"activation_id": activation.ID,
		"license_id":    activation.LicenseID,
		"user_id":       userID,
	}).Info("Device deactivated")
	s.notificationService.DeviceDeactivated(ctx, &activation)

	return &DeactivateDeviceResponse{OK: true}, nil
}

// MyLicenses lists the licenses linked to userID, newest first.
func (s *LicenseService) MyLicenses(ctx context.Context, userID string) ([]LicenseSummary, error) {
	var licenses []models.License
	err := s.db.WithContext(ctx).
		Preload("Product").
		Preload("DeviceActivations", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_active = ?", true).Order("activated_at ASC")
		}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&licenses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch licenses: %w", err)
	}

	now := s.now()
	summaries := make([]LicenseSummary, 0, len(licenses))
	for _, license := range licenses {
		devices := make([]DeviceSummary, 0, len(license.DeviceActivations))
		for _, act := range license.DeviceActivations {
			devices = append(devices, DeviceSummary{
				ID:          act.ID,
				DeviceID:    act.DeviceID,
				ActivatedAt: act.ActivatedAt,
				IsActive:    act.IsActive,
			})
		}

		summaries = append(summaries, LicenseSummary{
			ID:         license.ID,
			LicenseKey: license.LicenseKey,
			AppSlug:    license.AppSlug,
			MaxDevices: license.MaxDevices,
			StartsAt:   license.StartsAt,
			ExpiresAt:  license.ExpiresAt,
			IsRevoked:  license.IsRevoked,
			IsExpired:  !now.Before(license.ExpiresAt),
			Product: ProductSummary{
				Name:         license.Product.Name,
				Description:  license.Product.Description,
				DurationDays: license.Product.DurationDays,
			},
			ActiveDeviceCount: len(devices),
			Devices:           devices,
		})
	}

	return summaries, nil
}

// PremiumStatus reports whether deviceID holds an active binding to a valid
// license of appSlug.
func (s *LicenseService) PremiumStatus(ctx context.Context, deviceID, appSlug string) (PremiumStatus, error) {
	if deviceID == "" || appSlug == "" {
		return PremiumStatus{}, invalidInput("device_id and app_slug parameters are required")
	}

	var activations []models.DeviceActivation
	err := s.db.WithContext(ctx).
		InnerJoins("License", s.db.Where(&models.License{AppSlug: appSlug})).
		Where("device_activations.device_id = ? AND device_activations.is_active = ?", deviceID, true).
		Find(&activations).Error
	if err != nil {
		return PremiumStatus{}, fmt.Errorf("failed to check premium status: %w", err)
	}

	return IsPremiumActive(activations, s.now()), nil
}

// LinkAccount attaches every unlinked license bought with email to userID.
// A license that already has an owner is never reassigned.
func (s *LicenseService) LinkAccount(ctx context.Context, userID, email string) (*LinkAccountResponse, error) {
	email = utils.NormalizeEmail(email)
	if userID == "" || email == "" {
		return nil, invalidInput("verified email is required")
	}

	result := s.db.WithContext(ctx).Model(&models.License{}).
		Where("lower(owner_email) = ? AND user_id IS NULL", email).
		Update("user_id", userID)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to link licenses: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		logrus.WithFields(logrus.Fields{
			"user_id":      userID,
			"linked_count": result.RowsAffected,
		}).Info("Licenses linked to account")
	}

	return &LinkAccountResponse{LinkedCount: result.RowsAffected}, nil
}

// CollectEmail issues the license for a completed purchase. Calling it again
// for the same purchase returns the license issued the first time.
func (s *LicenseService) CollectEmail(ctx context.Context, req *CollectEmailRequest) (*IssuedLicense, error) {
	if req.PurchaseToken == "" || req.Email == "" {
		return nil, invalidInput("purchase_token and email are required")
	}
	if !utils.IsValidEmail(req.Email) {
		return nil, invalidInput("Invalid email format")
	}

	var purchase models.Purchase
	err := s.db.WithContext(ctx).Preload("Product").
		Where("purchase_token = ?", req.PurchaseToken).
		First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("failed to load purchase: %w", err)
	}

	if !purchase.IsCompleted() {
		return nil, &PaymentNotCompletedError{Status: purchase.MKStatus}
	}

	if purchase.LicenseID != nil {
		return s.issuedLicense(ctx, *purchase.LicenseID)
	}

	email := utils.NormalizeEmail(req.Email)
	now := s.now().UTC().Truncate(time.Microsecond)

	for attempt := 1; attempt <= licenseKeyAttempts; attempt++ {
		licenseKey, err := s.generateKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate license key: %w", err)
		}

		license := &models.License{
			LicenseKey: licenseKey,
			ProductID:  purchase.ProductID,
			OwnerEmail: email,
			AppSlug:    purchase.Product.AppSlug,
			MaxDevices: purchase.Product.MaxDevices,
			StartsAt:   now,
			ExpiresAt:  now.AddDate(0, 0, purchase.Product.DurationDays),
		}

		err = database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
			if err := tx.Create(license).Error; err != nil {
				return err
			}

			result := tx.Model(&models.Purchase{}).
				Where("id = ? AND license_id IS NULL", purchase.ID).
				Updates(map[string]interface{}{
					"license_id":         license.ID,
					"customer_email":     email,
					"email_collected_at": now,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return errPurchaseAlreadyLinked
			}
			return nil
		})

		switch {
		case err == nil:
			logrus.WithFields(logrus.Fields{
				"license_id":  license.ID,
				"purchase_id": purchase.ID,
				"app_slug":    license.AppSlug,
				"attempt":     attempt,
			}).Info("License issued")
			s.notificationService.LicenseIssued(ctx, license, &purchase)
			return &IssuedLicense{
				LicenseKey: license.LicenseKey,
				AppSlug:    license.AppSlug,
				ExpiresAt:  license.ExpiresAt,
				Created:    true,
			}, nil

		case errors.Is(err, errPurchaseAlreadyLinked):
			// A concurrent call issued the license first.
			return s.issuedLicenseForPurchase(ctx, purchase.ID)

		case database.IsUniqueViolation(err):
			logrus.WithField("attempt", attempt).Warn("License key collision, retrying")
			continue

		default:
			return nil, fmt.Errorf("failed to create license: %w", err)
		}
	}

	logrus.WithField("purchase_id", purchase.ID).Error("Exhausted license key attempts")
	return nil, ErrLicenseKeyExhausted
}

func (s *LicenseService) issuedLicense(ctx context.Context, licenseID uuid.UUID) (*IssuedLicense, error) {
	var license models.License
	if err := s.db.WithContext(ctx).First(&license, "id = ?", licenseID).Error; err != nil {
		return nil, fmt.Errorf("failed to load issued license: %w", err)
	}
	return &IssuedLicense{
		LicenseKey: license.LicenseKey,
		AppSlug:    license.AppSlug,
		ExpiresAt:  license.ExpiresAt,
	}, nil
}

func (s *LicenseService) issuedLicenseForPurchase(ctx context.Context, purchaseID uuid.UUID) (*IssuedLicense, error) {
	var purchase models.Purchase
	if err := s.db.WithContext(ctx).First(&purchase, "id = ?", purchaseID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload purchase: %w", err)
	}
	if purchase.LicenseID == nil {
		return nil, fmt.Errorf("purchase %s has no license after issuance", purchaseID)
	}
	return s.issuedLicense(ctx, *purchase.LicenseID)
}

