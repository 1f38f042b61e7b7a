// internal/handlers/errors.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tarksober/license-backend/internal/i18n"
	"github.com/tarksober/license-backend/internal/services"
	"github.com/tarksober/license-backend/internal/utils"
)

// respondError maps a service error onto the response envelope. Anything
// unrecognised is logged and answered with an opaque 500.
func respondError(c *gin.Context, err error) {
	lang := utils.GetLangFromContext(c)

	var inputErr *services.InputError
	var notCompleted *services.PaymentNotCompletedError

	switch {
	case errors.As(err, &inputErr):
		utils.BadRequestResponse(c, inputErr.Message, nil)
	case errors.Is(err, services.ErrProductNotFound):
		utils.NotFoundResponse(c, i18n.KeyProductNotFound)
	case errors.Is(err, services.ErrPurchaseNotFound):
		utils.NotFoundResponse(c, i18n.KeyPurchaseNotFound)
	case errors.Is(err, services.ErrActivationNotFound):
		utils.NotFoundResponse(c, i18n.KeyActivationNotFound)
	case errors.As(err, &notCompleted):
		utils.ConflictResponse(c, i18n.T(lang, i18n.KeyPaymentNotCompleted), gin.H{
			"status": notCompleted.Status,
		})
	case errors.Is(err, services.ErrGatewayUnavailable):
		utils.UpstreamUnavailableResponse(c)
	default:
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("Request failed")
		utils.InternalErrorResponse(c)
	}
}

// bindJSON decodes and validates the request body into req. It writes the
// error response itself and reports whether the handler may continue.
func bindJSON(c *gin.Context, req interface{}) bool {
	lang := utils.GetLangFromContext(c)

	if err := c.ShouldBindJSON(req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), nil)
		return false
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}

	return true
}
