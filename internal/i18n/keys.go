// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Authentication
	KeyAuthRequired     = "auth.required"
	KeyAuthInvalidToken = "auth.invalid_token"
	KeyAuthTokenExpired = "auth.token_expired"

	// Validation
	KeyValidationInvalid  = "validation.invalid"
	KeyValidationRequired = "validation.required"

	// Catalogue and checkout
	KeyProductNotFound     = "product.not_found"
	KeyPurchaseNotFound    = "purchase.not_found"
	KeyPaymentNotCompleted = "payment.not_completed"
	KeyGatewayUnavailable  = "gateway.unavailable"

	// Devices
	KeyActivationNotFound = "activation.not_found"

	// General
	KeyRateLimited   = "rate_limit.exceeded"
	KeyInternalError = "internal.error"
)
