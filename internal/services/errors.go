// internal/services/errors.go
package services

import (
	"errors"
	"fmt"

	"github.com/tarksober/license-backend/internal/models"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrPurchaseNotFound    = errors.New("purchase not found")
	ErrActivationNotFound  = errors.New("activation not found")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrLicenseKeyExhausted = errors.New("failed to generate unique license key")
	ErrInvalidInput        = errors.New("invalid input")
)

// PaymentNotCompletedError is returned when a license is claimed for a
// purchase the gateway has not confirmed yet.
type PaymentNotCompletedError struct {
	Status models.PurchaseStatus
}

func (e *PaymentNotCompletedError) Error() string {
	return fmt.Sprintf("payment not completed (status: %s)", e.Status)
}

// InputError carries a caller-facing validation message.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

func invalidInput(message string) error {
	return &InputError{Message: message}
}
